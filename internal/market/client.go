// Package market hosts clients for the proving market that executes the
// forecaster program and returns committed journals.
package market

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trendsignal-go/internal/metrics"
)

const (
	// ProviderStub executes the guest program in-process and frames its
	// journal like a real fulfillment (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderREST submits over HTTP and polls for the fulfillment.
	ProviderREST = "rest"
	// ProviderStream submits over HTTP and waits for the fulfillment push on
	// a websocket.
	ProviderStream = "stream"
)

// ErrExpired reports a request the market let lapse without fulfilling.
var ErrExpired = errors.New("market: request expired before fulfillment")

// Request identifies a submitted proving job.
type Request struct {
	ID        string
	ExpiresAt time.Time
}

// Fulfillment carries the opaque payload and proof returned by the market.
// Data embeds the canonical journal behind transport framing; Seal is passed
// through to the ledger contract untouched.
type Fulfillment struct {
	RequestID string
	Data      []byte
	Seal      []byte
}

// GuestFunc runs the forecaster program locally for the stub provider.
type GuestFunc func(input []byte) ([]byte, error)

// Signer authenticates outbound requests.
type Signer interface {
	Sign(payload []byte) string
	Fingerprint() string
}

// Client submits proving requests to the configured provider and retrieves
// their fulfillments.
type Client struct {
	provider     string
	baseURL      string
	streamURL    string
	programURL   string
	http         *http.Client
	log          zerolog.Logger
	pollInterval time.Duration
	guest        GuestFunc
	signer       Signer

	mu      sync.Mutex
	stubSeq uint64
	pending map[string][]byte
}

// Option configures Client construction parameters.
type Option func(*Client)

const defaultPollInterval = 5 * time.Second

// WithPollInterval overrides the fulfillment polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithStreamURL points the stream provider at the fulfillment websocket.
func WithStreamURL(u string) Option {
	return func(c *Client) {
		c.streamURL = strings.TrimSuffix(u, "/")
	}
}

// WithProgramURL tells the market where provers fetch the program image.
func WithProgramURL(u string) Option {
	return func(c *Client) {
		c.programURL = u
	}
}

// WithGuest installs the local program run by the stub provider.
func WithGuest(g GuestFunc) Option {
	return func(c *Client) {
		c.guest = g
	}
}

// WithSigner attaches request authentication.
func WithSigner(s Signer) Option {
	return func(c *Client) {
		c.signer = s
	}
}

// WithHTTPClient replaces the underlying HTTP transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient constructs a market client backed by the requested provider.
func NewClient(provider, baseURL string, log zerolog.Logger, opts ...Option) *Client {
	if provider == "" {
		provider = ProviderStub
	}
	c := &Client{
		provider:     strings.ToLower(provider),
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		http:         &http.Client{Timeout: 15 * time.Second},
		log:          log,
		pollInterval: defaultPollInterval,
		pending:      make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	return c
}

// Provider returns the active provider name.
func (c *Client) Provider() string { return c.provider }

// Submit sends the encoded forecaster input to the market and returns the
// assigned request handle.
func (c *Client) Submit(ctx context.Context, input []byte) (*Request, error) {
	var (
		req *Request
		err error
	)
	switch c.provider {
	case ProviderREST, ProviderStream:
		req, err = c.submitREST(ctx, input)
	default:
		req, err = c.submitStub(input)
	}
	if err != nil {
		return nil, err
	}
	metrics.SubmissionsTotal.WithLabelValues(c.provider).Inc()
	c.log.Info().Str("provider", c.provider).Str("request", req.ID).Msg("proving request submitted")
	return req, nil
}

// WaitForFulfillment blocks until the market fulfills the request, the
// request expires, or ctx is done.
func (c *Client) WaitForFulfillment(ctx context.Context, req *Request) (*Fulfillment, error) {
	var (
		f   *Fulfillment
		err error
	)
	switch c.provider {
	case ProviderREST:
		f, err = c.pollFulfillment(ctx, req)
	case ProviderStream:
		f, err = c.watchFulfillment(ctx, req)
	default:
		f, err = c.stubFulfillment(req)
	}
	if err != nil {
		return nil, err
	}
	metrics.FulfillmentsTotal.WithLabelValues(c.provider).Inc()
	c.log.Info().Str("provider", c.provider).Str("request", req.ID).Int("bytes", len(f.Data)).Msg("request fulfilled")
	return f, nil
}

func (c *Client) submitStub(input []byte) (*Request, error) {
	if c.guest == nil {
		return nil, fmt.Errorf("stub provider requires a guest program")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stubSeq++
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], c.stubSeq)
	sum := sha256.Sum256(append(seq[:], input...))
	id := "0x" + hex.EncodeToString(sum[:])
	c.pending[id] = append([]byte(nil), input...)
	return &Request{ID: id, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (c *Client) stubFulfillment(req *Request) (*Fulfillment, error) {
	c.mu.Lock()
	input, ok := c.pending[req.ID]
	delete(c.pending, req.ID)
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown request %s", req.ID)
	}
	committed, err := c.guest(input)
	if err != nil {
		return nil, fmt.Errorf("execute guest: %w", err)
	}
	seal := sha256.Sum256(committed)
	return &Fulfillment{
		RequestID: req.ID,
		Data:      wrapEnvelope(req.ID, committed),
		Seal:      seal[:],
	}, nil
}
