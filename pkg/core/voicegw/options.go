package voicegw

import (
	"net/http"

	"github.com/sethvargo/go-retry"
)

// Option configures the Client.
type Option func(*Client)

// WithBaseURL sets a custom API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient sets the HTTP client for API requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBackoff replaces the retry policy. The factory is called once per
// request because backoffs are stateful.
func WithBackoff(f func() retry.Backoff) Option {
	return func(c *Client) {
		if f != nil {
			c.backoff = f
		}
	}
}
