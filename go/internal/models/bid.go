package models

import "time"

// BidRecord is one row of an auction's bid history.
// Positive BidIDs are server-assigned; negative ones mark locally created records.
type BidRecord struct {
	BidID          int64     `json:"bidId"`
	BidderNickname string    `json:"bidderNickname"`
	BidPrice       int64     `json:"bidPrice"`
	CreatedAt      time.Time `json:"createdAt"`
}

// IsLocal reports whether the record was synthesized on this client.
func (b BidRecord) IsLocal() bool {
	return b.BidID < 0
}

// BidPage is one page of bid history, most recent first.
type BidPage struct {
	Bids    []BidRecord `json:"content"`
	Page    int         `json:"page"`
	Size    int         `json:"size"`
	HasNext bool        `json:"hasNext"`
}

// BidSubmission is the write command sent when the viewer places a bid.
type BidSubmission struct {
	AuctionID      int64  `json:"auctionId"`
	BidAmount      int64  `json:"bidAmount"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// BidReceipt is the write API's acceptance payload. BidID is zero when the
// server does not echo the assigned id.
type BidReceipt struct {
	BidID int64 `json:"bidId"`
}
