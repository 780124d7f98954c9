package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/S3MTFoundationv0/s3mt.xyz/core"
	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/native/presale"
	"github.com/S3MTFoundationv0/s3mt.xyz/rpc"
)

// ErrDuplicateRequest is returned when the node has already executed a
// request with the same digest.
var ErrDuplicateRequest = errors.New("client: duplicate request")

// Config defines the HTTP client settings for a presale node.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the node HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError is a non-2xx answer from the node. It unwraps to the matching
// presale error kind so callers can use errors.Is.
type APIError struct {
	Status int
	rpc.ErrorResponse
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("client: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("client: %s (%d): %s", e.Name, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Name == "DuplicateRequest" {
		return ErrDuplicateRequest
	}
	switch presale.ErrorCode(e.Code) {
	case presale.CodeSalePaused:
		return presale.ErrSalePaused
	case presale.CodeZeroAmount:
		return presale.ErrZeroAmount
	case presale.CodeUnauthorized:
		return presale.ErrUnauthorized
	case presale.CodeAssetMismatch:
		return presale.ErrAssetMismatch
	case presale.CodeTransferFailure:
		return presale.ErrTransferFailure
	case presale.CodeAlreadyInitialized:
		return presale.ErrAlreadyInitialized
	case presale.CodeNotInitialized:
		return presale.ErrNotInitialized
	case presale.CodeInvalidArgument:
		return presale.ErrInvalidArgument
	}
	return nil
}

// New constructs a client with sane defaults.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("client: base url required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("client: base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// Submit sends a signed request and returns its receipt.
func (c *Client) Submit(ctx context.Context, req *types.Request) (*core.Receipt, error) {
	var receipt core.Receipt
	if err := c.do(ctx, http.MethodPost, "/v1/requests", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Config fetches the committed presale configuration.
func (c *Client) Config(ctx context.Context) (*rpc.ConfigView, error) {
	var view rpc.ConfigView
	if err := c.do(ctx, http.MethodGet, "/v1/presale/config", nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Addresses fetches the program and well-known identities.
func (c *Client) Addresses(ctx context.Context) (*rpc.AddressesView, error) {
	var view rpc.AddressesView
	if err := c.do(ctx, http.MethodGet, "/v1/presale/addresses", nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Account fetches the account stored at id.
func (c *Client) Account(ctx context.Context, id crypto.Identity) (*rpc.AccountView, error) {
	var view rpc.AccountView
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+id.String(), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Log fetches up to limit records after the cursor. A zero buyer returns the
// whole log.
func (c *Client) Log(ctx context.Context, buyer crypto.Identity, after uint64, limit int) (*rpc.LogPage, error) {
	query := url.Values{}
	query.Set("after", strconv.FormatUint(after, 10))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if !buyer.IsZero() {
		query.Set("buyer", buyer.String())
	}
	var page rpc.LogPage
	if err := c.do(ctx, http.MethodGet, "/v1/presale/log?"+query.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c == nil {
		return fmt.Errorf("client: not configured")
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr.ErrorResponse); err != nil {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode: %w", err)
	}
	return nil
}
