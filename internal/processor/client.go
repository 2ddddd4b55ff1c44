package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/pockethour/image-sentinel/internal/common"
	"github.com/pockethour/image-sentinel/internal/netx"
)

// Client is a Processor backed by a remote worker. Transport failures and
// gateway statuses surface as common.ErrUpstreamUnavailable; worker-side
// processing failures keep their own sentinel.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Process(ctx context.Context, req Request) (*Response, error) {
	var resp Response
	if err := c.post(ctx, "/process", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, ErrorFor(resp.Code, resp.Error)
	}
	return &resp, nil
}

func (c *Client) Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	var resp VerifyResponse
	if err := c.post(ctx, "/verify", req, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "" {
		return nil, ErrorFor(resp.Code, resp.Error)
	}
	return &resp, nil
}

// Health pings the worker.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", common.ErrUpstreamUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if id := middleware.GetReqID(ctx); id != "" {
		req.Header.Set(common.RequestIDHeader, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if netx.IsUnavailable(err) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: worker status %d", common.ErrUpstreamUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: worker status %d", common.ErrorInternal, resp.StatusCode)
		}
		return fmt.Errorf("decode worker response: %w", err)
	}
	return nil
}
