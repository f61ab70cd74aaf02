package marketplace_client

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/bidlive/go/clients"
	"github.com/mcdev12/bidlive/go/internal/credentials"
)

// Client talks to the marketplace read and write APIs.
type Client struct {
	*clients.BaseClient
	pageSize int
}

func NewClient(baseURL string, creds credentials.Provider) *Client {
	return &Client{
		BaseClient: clients.NewBaseClient(baseURL, creds),
		pageSize:   DefaultPageSize,
	}
}

// SetPageSize sets how many bid history rows are fetched per page.
func (c *Client) SetPageSize(size int) {
	if size > 0 {
		c.pageSize = size
	}
}

// apiResponse is the envelope every marketplace endpoint wraps its data in.
type apiResponse[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func decode[T any](body []byte) (T, error) {
	var response apiResponse[T]
	if err := json.Unmarshal(body, &response); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	if !response.Success {
		var zero T
		return zero, fmt.Errorf("API returned failure: %s", response.Message)
	}
	return response.Data, nil
}

// rejectionReason extracts the server's message from an error body, falling back to the raw body.
func rejectionReason(err error) (string, bool) {
	var statusErr *clients.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode >= 500 {
		return "", false
	}
	var response apiResponse[json.RawMessage]
	if jsonErr := json.Unmarshal(statusErr.Body, &response); jsonErr == nil && response.Message != "" {
		return response.Message, true
	}
	return string(statusErr.Body), true
}
