// Package pumpfun holds the external collaborators around the pump.fun
// launchpad: the real-time creation feed, the token metadata API, and the
// ledger RPC endpoint.
package pumpfun

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"mintwatch/internal/logger"
)

// creationEvent is the wire shape of a new-token message on the feed.
type creationEvent struct {
	Signature string `json:"signature"`
	TxType    string `json:"txType"`
}

// Feed streams new-token creation events over WebSocket and reconnects with
// capped exponential backoff when the connection drops.
type Feed struct {
	endpoint string
	handler  func(signature string)
	onState  func(connected bool)

	handshakeTimeout time.Duration
	readTimeout      time.Duration
	writeTimeout     time.Duration
}

// NewFeed creates a Feed. handler receives each creation-event signature;
// onState is called on connect/disconnect transitions and may be nil.
func NewFeed(endpoint string, handler func(signature string), onState func(connected bool)) *Feed {
	return &Feed{
		endpoint:         endpoint,
		handler:          handler,
		onState:          onState,
		handshakeTimeout: 10 * time.Second,
		readTimeout:      60 * time.Second,
		writeTimeout:     10 * time.Second,
	}
}

// Run connects and reads until ctx is cancelled. It blocks; callers start it
// in its own goroutine.
func (f *Feed) Run(ctx context.Context) {
	b := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for ctx.Err() == nil {
		if err := f.session(ctx); err != nil && ctx.Err() == nil {
			wait := b.Duration()
			logger.Warn("Feed disconnected: %v, reconnecting in %v", err, wait)
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
			continue
		}
		b.Reset()
	}
}

// session runs one connection lifetime: dial, subscribe, read.
func (f *Feed) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: f.handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(f.writeTimeout))
	if err := conn.WriteJSON(map[string]string{"method": "subscribeNewToken"}); err != nil {
		return err
	}

	logger.Info("Subscribed to new-token feed at %s", f.endpoint)
	f.setConnected(true)
	defer f.setConnected(false)

	// Close the connection when ctx ends so the blocking read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(f.readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var ev creationEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Debug("Skipping malformed feed message: %v", err)
			continue
		}
		if ev.Signature == "" {
			continue // subscription ack or unrelated message
		}
		if ev.TxType != "" && ev.TxType != "create" {
			continue
		}
		f.handler(ev.Signature)
	}
}

func (f *Feed) setConnected(connected bool) {
	if f.onState != nil {
		f.onState(connected)
	}
}
