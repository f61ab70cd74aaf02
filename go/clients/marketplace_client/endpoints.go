package marketplace_client

const (
	// API Endpoints
	AuctionEndpoint = "/api/auctions/%d"
	BidsEndpoint    = "/api/auctions/%d/bids"

	// Headers
	IdempotencyKeyHeader = "Idempotency-Key"

	DefaultPageSize = 20
)
