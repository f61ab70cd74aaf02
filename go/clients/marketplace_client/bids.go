package marketplace_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcdev12/bidlive/go/internal/models"
)

// BidRejectedError carries the server's rejection reason unmodified.
type BidRejectedError struct {
	Reason string
}

func (e *BidRejectedError) Error() string {
	return e.Reason
}

// PlaceBid submits a bid. A rejection by the server is returned as *BidRejectedError.
func (c *Client) PlaceBid(ctx context.Context, sub models.BidSubmission) (models.BidReceipt, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return models.BidReceipt{}, fmt.Errorf("failed to marshal bid: %w", err)
	}

	headers := map[string]string{IdempotencyKeyHeader: sub.IdempotencyKey}
	body, err := c.Post(ctx, fmt.Sprintf(BidsEndpoint, sub.AuctionID), bytes.NewReader(payload), headers)
	if err != nil {
		if reason, ok := rejectionReason(err); ok {
			return models.BidReceipt{}, &BidRejectedError{Reason: reason}
		}
		return models.BidReceipt{}, fmt.Errorf("failed to place bid on auction %d: %w", sub.AuctionID, err)
	}

	var response apiResponse[*models.BidReceipt]
	if err := json.Unmarshal(body, &response); err != nil {
		return models.BidReceipt{}, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	if !response.Success {
		return models.BidReceipt{}, &BidRejectedError{Reason: response.Message}
	}
	if response.Data == nil {
		return models.BidReceipt{}, nil
	}
	return *response.Data, nil
}
