package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

type streamEnvelope struct {
	RequestID   string           `json:"request_id"`
	Status      string           `json:"status"`
	Fulfillment *fulfillmentBody `json:"fulfillment,omitempty"`
}

// watchFulfillment subscribes to the market's fulfillment stream and waits
// for the push matching the request, reconnecting with backoff on transport
// errors until the request resolves or ctx is done.
func (c *Client) watchFulfillment(ctx context.Context, req *Request) (*Fulfillment, error) {
	if c.streamURL == "" {
		return nil, fmt.Errorf("stream provider requires a stream URL")
	}
	streamURL := c.streamURL + "/v1/fulfillments?request_id=" + url.QueryEscape(req.ID)
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !req.ExpiresAt.IsZero() && time.Now().After(req.ExpiresAt) {
			return nil, fmt.Errorf("%w: %s", ErrExpired, req.ID)
		}
		f, err := c.consumeStream(ctx, streamURL, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, ErrExpired) {
				return nil, err
			}
			c.log.Warn().Err(err).Str("request", req.ID).Msg("fulfillment stream disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return f, nil
	}
}

func (c *Client) consumeStream(ctx context.Context, streamURL string, req *Request) (*Fulfillment, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	c.log.Info().Str("request", req.ID).Msg("subscribed to fulfillment stream")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.log.Warn().Err(err).Msg("fulfillment stream ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}

		var env streamEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.log.Warn().Err(err).Msg("failed to decode stream message")
			continue
		}
		if env.RequestID != req.ID {
			continue
		}
		switch env.Status {
		case statusFulfilled:
			if env.Fulfillment == nil {
				return nil, fmt.Errorf("fulfilled push missing payload")
			}
			return env.Fulfillment.decode(req.ID)
		case statusExpired:
			return nil, fmt.Errorf("%w: %s", ErrExpired, req.ID)
		}
	}
}
