package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	svcErr "github.com/oggyb/luvo/internal/errors"
)

// Graph is the follow graph of one Instagram account, as usernames.
type Graph struct {
	Subscriptions []string `json:"subscriptions"`
	Followers     []string `json:"followers"`
}

// Connector fetches the follow graph of an Instagram account.
type Connector interface {
	Fetch(ctx context.Context, username string) (*Graph, error)
}

// HTTPConnector talks to the scraping sidecar:
//
//	GET {base}/users/{username}/graph -> Graph
type HTTPConnector struct {
	base   string
	client *http.Client
}

func NewHTTPConnector(baseURL string, timeout time.Duration) *HTTPConnector {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPConnector{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPConnector) Fetch(ctx context.Context, username string) (*Graph, error) {
	if c.base == "" {
		return nil, svcErr.Unavailable("instagram connector is not configured")
	}

	endpoint := c.base + "/users/" + url.PathEscape(username) + "/graph"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build connector request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, svcErr.Upstream("instagram connector unavailable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, svcErr.NotFound("instagram account not found")
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, svcErr.Upstream("instagram connector failed",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var g Graph
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		return nil, svcErr.Upstream("instagram connector returned invalid json", err)
	}
	return &g, nil
}
