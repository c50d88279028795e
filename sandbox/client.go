package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// DefaultClientTimeout leaves headroom over the executor's own run limit.
const DefaultClientTimeout = 40 * time.Second

// Client calls a remote dvl-executor over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}
	return &Client{
		url:        strings.TrimRight(baseURL, "/") + "/execute",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Execute posts req and decodes the executor's Outcome. Transport failures,
// timeouts and undecodable replies are returned as errors; the caller treats
// them as service failures.
func (c *Client) Execute(ctx context.Context, req Request) (Outcome, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Outcome{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Outcome{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("❌ [SANDBOX] Executor unreachable at %s: %v", c.url, err)
		return Outcome{}, fmt.Errorf("executor request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("read executor response: %w", err)
	}

	var out Outcome
	if err := json.Unmarshal(body, &out); err != nil || (out.Status != StatusSuccess && out.Status != StatusError) {
		return Outcome{}, fmt.Errorf("executor returned status %d with unexpected body: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode != http.StatusOK && out.IsSuccess() {
		return Outcome{}, fmt.Errorf("executor returned status %d for a successful outcome", resp.StatusCode)
	}
	return out, nil
}
