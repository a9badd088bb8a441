// Package node provides the HTTP client for ledger node REST endpoints.
package node

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
)

// ErrNotFound is returned when the node answers 404 for a resource.
var ErrNotFound = errors.New("resource not found on node")

// ErrNoNodes is returned when a client is built without node URLs.
var ErrNoNodes = errors.New("no nodes configured")

// Options configures a Client.
type Options struct {
	// Nodes are tried in order; the first that answers wins.
	Nodes []string
	// Timeout per HTTP request (default: 15s)
	Timeout time.Duration
	// RateLimit is the maximum number of requests per second (default: 10)
	RateLimit int
	Logger    *slog.Logger
}

// Client talks to one or more nodes exposing the /api/v1 REST API.
type Client struct {
	Nodes   []string
	HTTP    *http.Client
	limiter ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewClient creates a client for the given nodes.
func NewClient(opts Options) (*Client, error) {
	if len(opts.Nodes) == 0 {
		return nil, ErrNoNodes
	}

	nodes := make([]string, 0, len(opts.Nodes))
	for _, n := range opts.Nodes {
		if err := ValidateNodeURL(n); err != nil {
			return nil, err
		}
		nodes = append(nodes, strings.TrimRight(n, "/"))
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rate := opts.RateLimit
	if rate <= 0 {
		rate = 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		Nodes:   nodes,
		HTTP:    &http.Client{Timeout: timeout},
		limiter: ratelimit.New(rate),
		breaker: newCircuitBreaker(logger),
		logger:  logger,
	}, nil
}

// ValidateNodeURL checks that raw is an absolute http(s) URL.
func ValidateNodeURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid node URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid node URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid node URL %q: missing host", raw)
	}
	return nil
}

func newCircuitBreaker(logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "node",
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests > 10 && failureRatio >= 0.7
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logger.Warn("nodes seem down, stop allowing requests")
			}
			if from == gobreaker.StateOpen && to == gobreaker.StateHalfOpen {
				logger.Info("checking node status")
			}
			if from == gobreaker.StateHalfOpen && to == gobreaker.StateClosed {
				logger.Info("nodes seem ok, restart allowing requests")
			}
		},
	})
}

// InfoResponse is the /api/v1/info payload.
type InfoResponse struct {
	Bech32HRP   string `json:"bech32HRP"`
	MinPoWScore uint8  `json:"minPoWScore"`
}

// AddressResponse is the /api/v1/addresses/{address} payload.
type AddressResponse struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

// MessageRecord is a message touching an address, as reported by the node.
type MessageRecord struct {
	ID        string  `json:"id"`
	Value     *uint64 `json:"value,omitempty"`
	Timestamp int64   `json:"timestamp"`
	Incoming  bool    `json:"incoming"`
	Address   string  `json:"address"`
}

// MessageMetadata is the /api/v1/messages/{id}/metadata payload.
type MessageMetadata struct {
	Confirmed      *bool `json:"confirmed"`
	ShouldPromote  bool  `json:"shouldPromote"`
	ShouldReattach bool  `json:"shouldReattach"`
}

// SubmitRequest is the body of POST /api/v1/messages.
type SubmitRequest struct {
	Parents []string        `json:"parents"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Nonce   uint64          `json:"nonce"`
	// RemotePoW asks the node to compute the nonce.
	RemotePoW bool `json:"remotePow,omitempty"`
}

// Info fetches node information.
func (c *Client) Info(ctx context.Context) (*InfoResponse, error) {
	var info InfoResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// AddressBalance returns the confirmed balance of a bech32 address.
func (c *Client) AddressBalance(ctx context.Context, address string) (uint64, error) {
	var resp AddressResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/addresses/"+url.PathEscape(address), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// AddressMessages lists the messages touching a bech32 address.
func (c *Client) AddressMessages(ctx context.Context, address string) ([]MessageRecord, error) {
	var resp struct {
		Messages []MessageRecord `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/addresses/"+url.PathEscape(address)+"/messages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// MessageMetadata fetches the inclusion state of a message.
func (c *Client) MessageMetadata(ctx context.Context, id string) (*MessageMetadata, error) {
	var meta MessageMetadata
	if err := c.do(ctx, http.MethodGet, "/api/v1/messages/"+url.PathEscape(id)+"/metadata", nil, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Tips returns message ids suitable as parents of a new message.
func (c *Client) Tips(ctx context.Context) ([]string, error) {
	var resp struct {
		Tips []string `json:"tips"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/tips", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tips, nil
}

// SubmitMessage posts a message and returns the id assigned by the node.
func (c *Client) SubmitMessage(ctx context.Context, req *SubmitRequest) (string, error) {
	var resp struct {
		MessageID string `json:"messageId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/messages", req, &resp); err != nil {
		return "", err
	}
	if resp.MessageID == "" {
		return "", errors.New("node returned an empty message id")
	}
	return resp.MessageID, nil
}

// do runs a request against each node in turn until one answers.
// A 404 is an answer and is not retried on other nodes.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		payload = data
	}

	var lastErr error
	for _, base := range c.Nodes {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.doOnce(ctx, method, base+path, payload, out)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return err
		}
		c.logger.Debug("node request failed", "node", base, "path", path, "error", err)
		lastErr = err
	}

	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, target string, payload []byte, out any) error {
	c.limiter.Take()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, target)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", target, err)
	}
	return nil
}
