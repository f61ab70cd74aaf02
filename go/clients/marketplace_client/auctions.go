package marketplace_client

import (
	"context"
	"fmt"

	"github.com/mcdev12/bidlive/go/internal/models"
)

// GetAuction fetches the full aggregate of one auction.
func (c *Client) GetAuction(ctx context.Context, auctionID int64) (models.AuctionAggregate, error) {
	body, err := c.Get(ctx, fmt.Sprintf(AuctionEndpoint, auctionID))
	if err != nil {
		return models.AuctionAggregate{}, fmt.Errorf("failed to get auction %d: %w", auctionID, err)
	}
	return decode[models.AuctionAggregate](body)
}

// ListBids fetches one page of bid history, most recent first.
func (c *Client) ListBids(ctx context.Context, auctionID int64, page int) (models.BidPage, error) {
	endpoint := fmt.Sprintf(BidsEndpoint+"?page=%d&size=%d", auctionID, page, c.pageSize)
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		return models.BidPage{}, fmt.Errorf("failed to list bids for auction %d: %w", auctionID, err)
	}
	return decode[models.BidPage](body)
}
