// Package aur looks packages up in the Arch User Repository via the RPC v5
// interface.
package aur

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultRPCURL is the public AUR RPC endpoint.
const DefaultRPCURL = "https://aur.archlinux.org/rpc/"

// Package is one entry of an RPC info response.
type Package struct {
	ID           int64  `json:"ID"`
	Name         string `json:"Name"`
	PackageBase  string `json:"PackageBase"`
	Version      string `json:"Version"`
	Description  string `json:"Description"`
	URL          string `json:"URL"`
	Maintainer   string `json:"Maintainer"`
	LastModified int64  `json:"LastModified"`
	OutOfDate    int64  `json:"OutOfDate"`
}

// Resolver resolves package names to their upstream AUR entries.
type Resolver interface {
	// Info returns the AUR entries for the given package names. Names
	// unknown to the AUR are simply absent from the result; an empty
	// result is not an error.
	Info(ctx context.Context, names []string) ([]Package, error)
}

// Client implements Resolver over HTTP.
type Client struct {
	rpcURL     string
	httpClient *http.Client
}

// NewClient creates an AUR RPC client. An empty rpcURL selects the public
// AUR endpoint.
func NewClient(rpcURL string) *Client {
	if rpcURL == "" {
		rpcURL = DefaultRPCURL
	}
	return &Client{
		rpcURL:     rpcURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type infoResponse struct {
	Type    string    `json:"type"`
	Error   string    `json:"error"`
	Results []Package `json:"results"`
}

// Info queries the RPC info endpoint for the given package names.
func (c *Client) Info(ctx context.Context, names []string) ([]Package, error) {
	query := url.Values{}
	query.Set("v", "5")
	query.Set("type", "info")
	for _, name := range names {
		query.Add("arg[]", name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rpcURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build RPC request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("RPC request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("RPC request failed: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read RPC response: %w", err)
	}

	var parsed infoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse RPC response: %w", err)
	}
	if parsed.Type == "error" {
		return nil, fmt.Errorf("RPC error: %s", parsed.Error)
	}

	return parsed.Results, nil
}

// CloneURL returns the git clone URL for a package under the given AUR base
// URL (the public AUR when base is empty).
func CloneURL(base, name string) string {
	if base == "" {
		base = "https://aur.archlinux.org/"
	}
	return strings.TrimSuffix(base, "/") + "/" + name + ".git"
}
