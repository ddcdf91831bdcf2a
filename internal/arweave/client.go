package arweave

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// StatusError is returned when a node answers with an unexpected HTTP status.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("arweave: %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Temporary reports whether the request may succeed when repeated.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client talks to a single Arweave node or gateway.
type Client struct {
	endpoint Endpoint
	http     *http.Client
	backoff  func() retry.Backoff
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithBackoff sets the retry policy for chunk uploads. The factory is called
// once per chunk because backoffs are stateful.
func WithBackoff(f func() retry.Backoff) Option {
	return func(c *Client) { c.backoff = f }
}

// DefaultBackoff retries up to five times with exponential delays capped at
// ten seconds.
func DefaultBackoff() retry.Backoff {
	b := retry.NewExponential(500 * time.Millisecond)
	b = retry.WithCappedDuration(10*time.Second, b)
	return retry.WithMaxRetries(5, b)
}

func NewClient(e Endpoint, opts ...Option) *Client {
	c := &Client{
		endpoint: e,
		http:     &http.Client{Timeout: 60 * time.Second},
		backoff:  DefaultBackoff,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Endpoint returns the node the client talks to.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// Price returns the reward in winston for storing size bytes.
func (c *Client) Price(ctx context.Context, size int64) (string, error) {
	if size < 0 {
		return "", fmt.Errorf("arweave: negative size %d", size)
	}
	body, err := c.get(ctx, "/price/"+strconv.FormatInt(size, 10))
	if err != nil {
		return "", err
	}
	return parseWinston(body)
}

// TxAnchor returns a recent block anchor to use as last_tx.
func (c *Client) TxAnchor(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/tx_anchor")
	if err != nil {
		return "", err
	}
	anchor := strings.TrimSpace(string(body))
	if anchor == "" {
		return "", errors.New("arweave: empty tx anchor")
	}
	return anchor, nil
}

// Balance returns the wallet's balance in winston.
func (c *Client) Balance(ctx context.Context, address string) (string, error) {
	body, err := c.get(ctx, "/wallet/"+address+"/balance")
	if err != nil {
		return "", err
	}
	return parseWinston(body)
}

// Mint credits a wallet with winston on a local test node (ArLocal).
// Gateways on the real network reject this call.
func (c *Client) Mint(ctx context.Context, address, winston string) (string, error) {
	body, err := c.get(ctx, "/mint/"+address+"/"+winston)
	if err != nil {
		return "", err
	}
	return parseWinston(body)
}

// Mine asks a local test node to produce a block.
func (c *Client) Mine(ctx context.Context) error {
	_, err := c.get(ctx, "/mine")
	return err
}

// CreateTransaction fetches an anchor and a price and returns an unsigned
// data transaction owned by w.
func (c *Client) CreateTransaction(ctx context.Context, data []byte, w *Wallet) (*Transaction, error) {
	anchor, err := c.TxAnchor(ctx)
	if err != nil {
		return nil, err
	}
	reward, err := c.Price(ctx, int64(len(data)))
	if err != nil {
		return nil, err
	}
	return NewTransaction(data, w, anchor, reward), nil
}

// postTransaction submits the transaction header, with or without its data.
func (c *Client) postTransaction(ctx context.Context, tx *Transaction, withData bool) error {
	body := *tx
	body.Data = ""
	if withData {
		body.Data = encode(tx.data)
	}
	return c.post(ctx, "/tx", body)
}

type chunkRequest struct {
	DataRoot string `json:"data_root"`
	DataSize string `json:"data_size"`
	DataPath string `json:"data_path"`
	Offset   string `json:"offset"`
	Chunk    string `json:"chunk"`
}

// fatalChunkErrors are node responses that will not change on retry.
var fatalChunkErrors = []string{
	"invalid_json",
	"chunk_too_big",
	"data_path_too_big",
	"offset_too_big",
	"data_size_too_big",
	"chunk_proof_ratio_not_attractive",
	"invalid_proof",
}

// postChunk submits one chunk, retrying transient failures.
func (c *Client) postChunk(ctx context.Context, req chunkRequest) error {
	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		err := c.post(ctx, "/chunk", req)
		if err == nil {
			return nil
		}

		var se *StatusError
		if errors.As(err, &se) {
			for _, fatal := range fatalChunkErrors {
				if strings.Contains(se.Body, fatal) {
					return err
				}
			}
			if !se.Temporary() {
				return err
			}
		}
		return retry.RetryableError(err)
	})
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.BaseURL()+path, nil)
	if err != nil {
		return nil, fmt.Errorf("arweave: build request: %w", err)
	}
	return c.do(req, path)
}

func (c *Client) post(ctx context.Context, path string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("arweave: encode %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.BaseURL()+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("arweave: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req, path)
	return err
}

func (c *Client) do(req *http.Request, path string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arweave: %s %s: %w", req.Method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("arweave: read %s: %w", path, err)
	}

	// 208 means the node already has the transaction or chunk.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAlreadyReported {
		return nil, &StatusError{Method: req.Method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
