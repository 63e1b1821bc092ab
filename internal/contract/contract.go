// Package contract talks to the signal ledger contract through its HTTP
// gateway: it publishes verified results and reads the stored state back.
package contract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"trendsignal-go/internal/metrics"
	"trendsignal-go/internal/signal"
)

// Signer authenticates outbound gateway requests.
type Signer interface {
	Sign(payload []byte) string
	Fingerprint() string
}

// Client wraps the ledger gateway endpoints for one contract address.
type Client struct {
	Base            string
	Address         string
	Http            *http.Client
	Log             zerolog.Logger
	Signer          Signer
	TxTimeout       time.Duration
	ConfirmInterval time.Duration
}

// NewClient builds a ledger client with production timeouts.
func NewClient(base, address string, log zerolog.Logger) *Client {
	return &Client{
		Base:            strings.TrimSuffix(base, "/"),
		Address:         address,
		Http:            &http.Client{Timeout: 8 * time.Second},
		Log:             log,
		TxTimeout:       30 * time.Second,
		ConfirmInterval: time.Second,
	}
}

// Receipt identifies the broadcast state-update transaction.
type Receipt struct {
	TxHash string `json:"tx_hash"`
}

// Latest is the stored signal as reported by the ledger.
type Latest struct {
	Action         signal.Action
	Confidence     *big.Int
	PredictedPrice *big.Int
	Timestamp      time.Time
}

type setSignalRequest struct {
	Action         uint8  `json:"action"`
	Confidence     string `json:"confidence"`
	PredictedPrice string `json:"predicted_price"`
	Seal           string `json:"seal"`
}

type txStatusResponse struct {
	Status string `json:"status"`
}

type latestResponse struct {
	Action         int    `json:"action"`
	Confidence     string `json:"confidence"`
	PredictedPrice string `json:"predicted_price"`
	Timestamp      int64  `json:"timestamp"`
}

// SetSignal submits the recovered result and its seal to the contract and
// returns the broadcast receipt. Confirmation is a separate step.
func (c *Client) SetSignal(ctx context.Context, res signal.Result, seal []byte) (*Receipt, error) {
	payload := setSignalRequest{
		Action:         uint8(res.Action),
		Confidence:     bigString(res.Confidence),
		PredictedPrice: bigString(res.PredictedPrice),
		Seal:           base64.StdEncoding.EncodeToString(seal),
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.signalURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req, body)

	resp, err := c.Http.Do(req)
	if err != nil {
		metrics.ContractCallsTotal.WithLabelValues("set_signal", "error").Inc()
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		metrics.ContractCallsTotal.WithLabelValues("set_signal", "error").Inc()
		return nil, fmt.Errorf("set signal status %d", resp.StatusCode)
	}

	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		metrics.ContractCallsTotal.WithLabelValues("set_signal", "error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if receipt.TxHash == "" {
		metrics.ContractCallsTotal.WithLabelValues("set_signal", "error").Inc()
		return nil, fmt.Errorf("gateway returned empty tx hash")
	}
	metrics.ContractCallsTotal.WithLabelValues("set_signal", "ok").Inc()
	c.Log.Info().Str("action", res.Action.String()).Str("tx", receipt.TxHash).Msg("signal update broadcast")
	return &receipt, nil
}

// WaitMined polls the transaction status until it confirms or fails, bounded
// by the configured timeout.
func (c *Client) WaitMined(ctx context.Context, receipt *Receipt) error {
	ctx, cancel := context.WithTimeout(ctx, c.TxTimeout)
	defer cancel()

	ticker := time.NewTicker(c.ConfirmInterval)
	defer ticker.Stop()
	for {
		status, err := c.txStatus(ctx, receipt.TxHash)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("confirm tx %s: %w", receipt.TxHash, ctx.Err())
			}
			c.Log.Warn().Err(err).Str("tx", receipt.TxHash).Msg("tx status check failed")
		} else {
			switch status {
			case "confirmed":
				return nil
			case "failed":
				return fmt.Errorf("tx %s failed on chain", receipt.TxHash)
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirm tx %s: %w", receipt.TxHash, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) txStatus(ctx context.Context, txHash string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+"/v1/tx/"+url.PathEscape(txHash), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	c.authorize(req, nil)

	resp, err := c.Http.Do(req)
	if err != nil {
		return "", fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tx status %d", resp.StatusCode)
	}

	var ts txStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&ts); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return ts.Status, nil
}

// LatestSignal reads the stored signal back from the ledger.
func (c *Client) LatestSignal(ctx context.Context) (*Latest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.signalURL()+"/latest", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authorize(req, nil)

	resp, err := c.Http.Do(req)
	if err != nil {
		metrics.ContractCallsTotal.WithLabelValues("latest_signal", "error").Inc()
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.ContractCallsTotal.WithLabelValues("latest_signal", "error").Inc()
		return nil, fmt.Errorf("latest signal status %d", resp.StatusCode)
	}

	var lr latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		metrics.ContractCallsTotal.WithLabelValues("latest_signal", "error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}
	latest, err := lr.parse()
	if err != nil {
		metrics.ContractCallsTotal.WithLabelValues("latest_signal", "error").Inc()
		return nil, err
	}
	metrics.ContractCallsTotal.WithLabelValues("latest_signal", "ok").Inc()
	return latest, nil
}

func (lr *latestResponse) parse() (*Latest, error) {
	if lr.Action < 0 || lr.Action > 255 {
		return nil, fmt.Errorf("invalid action %d", lr.Action)
	}
	confidence, ok := new(big.Int).SetString(lr.Confidence, 10)
	if !ok {
		return nil, fmt.Errorf("invalid confidence %q", lr.Confidence)
	}
	price, ok := new(big.Int).SetString(lr.PredictedPrice, 10)
	if !ok {
		return nil, fmt.Errorf("invalid predicted price %q", lr.PredictedPrice)
	}
	return &Latest{
		Action:         signal.Action(lr.Action),
		Confidence:     confidence,
		PredictedPrice: price,
		Timestamp:      time.Unix(lr.Timestamp, 0).UTC(),
	}, nil
}

func (c *Client) signalURL() string {
	return c.Base + "/v1/contracts/" + url.PathEscape(c.Address) + "/signal"
}

func (c *Client) authorize(req *http.Request, body []byte) {
	if c.Signer == nil {
		return
	}
	req.Header.Set("X-Key-Fingerprint", c.Signer.Fingerprint())
	req.Header.Set("X-Signature", c.Signer.Sign(append([]byte(req.URL.Path), body...)))
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
