package market

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type submitRequest struct {
	Input      string `json:"input"`
	ProgramURL string `json:"program_url,omitempty"`
}

type submitResponse struct {
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type statusResponse struct {
	ID          string           `json:"id"`
	Status      string           `json:"status"`
	Fulfillment *fulfillmentBody `json:"fulfillment,omitempty"`
}

type fulfillmentBody struct {
	Data string `json:"data"`
	Seal string `json:"seal"`
}

const (
	statusPending   = "pending"
	statusFulfilled = "fulfilled"
	statusExpired   = "expired"
)

func (c *Client) submitREST(ctx context.Context, input []byte) (*Request, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("market base URL not configured")
	}
	payload := submitRequest{
		Input:      base64.StdEncoding.EncodeToString(input),
		ProgramURL: c.programURL,
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/requests", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req, body)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("market submit status %d", resp.StatusCode)
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if sr.ID == "" {
		return nil, fmt.Errorf("market returned empty request id")
	}
	var expires time.Time
	if sr.ExpiresAt > 0 {
		expires = time.Unix(sr.ExpiresAt, 0)
	}
	return &Request{ID: sr.ID, ExpiresAt: expires}, nil
}

func (c *Client) authorize(req *http.Request, body []byte) {
	if c.signer == nil {
		return
	}
	req.Header.Set("X-Key-Fingerprint", c.signer.Fingerprint())
	req.Header.Set("X-Signature", c.signer.Sign(append([]byte(req.URL.Path), body...)))
}

// pollFulfillment asks the market for request status on a fixed cadence
// until the request resolves one way or the other.
func (c *Client) pollFulfillment(ctx context.Context, req *Request) (*Fulfillment, error) {
	f, done, err := c.checkFulfillment(ctx, req)
	if done {
		return f, err
	}
	if err != nil && ctx.Err() == nil {
		c.log.Warn().Err(err).Str("request", req.ID).Msg("fulfillment poll failed")
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if !req.ExpiresAt.IsZero() && time.Now().After(req.ExpiresAt) {
				return nil, fmt.Errorf("%w: %s", ErrExpired, req.ID)
			}
			f, done, err := c.checkFulfillment(ctx, req)
			if done {
				return f, err
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				c.log.Warn().Err(err).Str("request", req.ID).Msg("fulfillment poll failed")
			}
		}
	}
}

// checkFulfillment returns done=true once the request has resolved; a false
// done with a non-nil error is a transient failure worth retrying.
func (c *Client) checkFulfillment(ctx context.Context, req *Request) (*Fulfillment, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/requests/"+url.PathEscape(req.ID), nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	c.authorize(httpReq, nil)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, false, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("market status %d", resp.StatusCode)
	}

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	switch sr.Status {
	case statusFulfilled:
		if sr.Fulfillment == nil {
			return nil, false, fmt.Errorf("fulfilled response missing payload")
		}
		f, err := sr.Fulfillment.decode(req.ID)
		if err != nil {
			return nil, false, err
		}
		return f, true, nil
	case statusExpired:
		return nil, true, fmt.Errorf("%w: %s", ErrExpired, req.ID)
	default:
		return nil, false, nil
	}
}

func (b *fulfillmentBody) decode(requestID string) (*Fulfillment, error) {
	data, err := base64.StdEncoding.DecodeString(b.Data)
	if err != nil {
		return nil, fmt.Errorf("decode fulfillment data: %w", err)
	}
	seal, err := base64.StdEncoding.DecodeString(b.Seal)
	if err != nil {
		return nil, fmt.Errorf("decode fulfillment seal: %w", err)
	}
	return &Fulfillment{RequestID: requestID, Data: data, Seal: seal}, nil
}
