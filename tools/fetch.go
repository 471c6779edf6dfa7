// URL fetch tool.
//
// Information Hiding:
// - HTTP client implementation details hidden
// - Domain allow-list enforced before any request

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FetchURLName is the name of the fetch tool.
const FetchURLName = "fetch_url"

const defaultMaxFetchBytes = 64 * 1024

// FetchURLTool retrieves a web page for background research.
type FetchURLTool struct {
	client         *http.Client
	timeoutSecs    uint64
	allowedDomains []string
	maxBytes       int64
}

// NewFetchURLTool creates a fetch tool with the given timeout.
func NewFetchURLTool(timeoutSecs uint64) *FetchURLTool {
	return &FetchURLTool{
		client: &http.Client{
			Timeout: time.Duration(timeoutSecs) * time.Second,
		},
		timeoutSecs: timeoutSecs,
		maxBytes:    defaultMaxFetchBytes,
	}
}

// WithAllowedDomains restricts requests to the given domains and their
// subdomains. An empty list allows every domain.
func (t *FetchURLTool) WithAllowedDomains(domains []string) *FetchURLTool {
	t.allowedDomains = domains
	return t
}

// WithMaxBytes caps the response body returned to the model.
func (t *FetchURLTool) WithMaxBytes(n int64) *FetchURLTool {
	if n > 0 {
		t.maxBytes = n
	}
	return t
}

// Metadata returns the tool metadata.
func (t *FetchURLTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        FetchURLName,
		Description: "Fetch a web page over HTTP GET for background research",
		Parameters: []ToolParameter{
			{Name: "url", ParamType: "string", Description: "The http or https URL to fetch", Required: true},
		},
		Exploratory: true,
	}
}

type fetchArgs struct {
	URL string `json:"url"`
}

// Validate validates the arguments.
func (t *FetchURLTool) Validate(args json.RawMessage) error {
	var a fetchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.URL == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	u, err := url.Parse(a.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("URL must be http or https: %q", a.URL)
	}
	return nil
}

// Execute makes the request.
func (t *FetchURLTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a fetchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if !t.isDomainAllowed(a.URL) {
		return FailureResultf("access to domain in '%s' is not allowed", a.URL), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to create request: %w", err)), nil
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return FailureResult(fmt.Errorf("request timed out after %d seconds: %w", t.timeoutSecs, ctx.Err())), nil
		}
		return FailureResult(fmt.Errorf("request failed: %w", err)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes+1))
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read response body: %w", err)), nil
	}
	text := string(body)
	if int64(len(body)) > t.maxBytes {
		text = string(body[:t.maxBytes]) + "\n[truncated]"
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return SuccessResult(fmt.Sprintf("Status: %s\n\n%s", resp.Status, text)), nil
	}
	return PermanentFailuref("HTTP error: %s", resp.Status), nil
}

// isDomainAllowed checks if the URL's domain is in the allowlist.
func (t *FetchURLTool) isDomainAllowed(urlStr string) bool {
	if len(t.allowedDomains) == 0 {
		return true
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	host := u.Hostname()
	for _, domain := range t.allowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

var _ Tool = (*FetchURLTool)(nil)
