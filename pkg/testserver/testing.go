package testserver

import "net/http"

// NewTestClient creates a Client against an arbitrary base URL.
// This should only be used in tests.
func NewTestClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		http:    hc,
		baseURL: baseURL,
	}
}
