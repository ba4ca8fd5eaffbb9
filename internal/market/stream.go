package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// TickStream consumes the market-data collaborator's live quote feed over a
// WebSocket connection and fans ticks out to a single dispatch channel.
// The feed is expected to deliver one JSON-encoded Tick per message and to
// maintain the running VWAP server-side.
type TickStream struct {
	url     string
	conn    *websocket.Conn
	ticks   chan Tick
	symbols []string

	mu        sync.Mutex
	stopChan  chan struct{}
	reconnect time.Duration
	running   bool
}

// NewTickStream creates a tick stream client for the given feed URL
func NewTickStream(url string, symbols []string) *TickStream {
	return &TickStream{
		url:       url,
		symbols:   symbols,
		ticks:     make(chan Tick, 1024),
		stopChan:  make(chan struct{}),
		reconnect: 5 * time.Second,
	}
}

// Ticks returns the channel live ticks are delivered on
func (ts *TickStream) Ticks() <-chan Tick {
	return ts.ticks
}

// Start connects and begins the read loop. Reconnects with a fixed delay
// until the context is cancelled or Stop is called.
func (ts *TickStream) Start(ctx context.Context) error {
	ts.mu.Lock()
	if ts.running {
		ts.mu.Unlock()
		return fmt.Errorf("tick stream already running")
	}
	ts.running = true
	ts.mu.Unlock()

	if err := ts.dial(); err != nil {
		return fmt.Errorf("initial tick stream connect: %w", err)
	}

	go ts.readLoop(ctx)
	return nil
}

func (ts *TickStream) dial() error {
	conn, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	if err != nil {
		return err
	}

	// Subscribe to the session watchlist
	sub := map[string]interface{}{
		"action":  "subscribe",
		"symbols": ts.symbols,
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe: %w", err)
	}

	ts.mu.Lock()
	ts.conn = conn
	ts.mu.Unlock()
	log.Printf("[TickStream] Connected to %s (%d symbols)", ts.url, len(ts.symbols))
	return nil
}

func (ts *TickStream) readLoop(ctx context.Context) {
	defer close(ts.ticks)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ts.stopChan:
			return
		default:
		}

		ts.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, message, err := ts.conn.ReadMessage()
		if err != nil {
			log.Printf("[TickStream] Read error: %v, reconnecting in %v", err, ts.reconnect)
			ts.conn.Close()

			select {
			case <-time.After(ts.reconnect):
			case <-ctx.Done():
				return
			case <-ts.stopChan:
				return
			}

			if err := ts.dial(); err != nil {
				log.Printf("[TickStream] Reconnect failed: %v", err)
			}
			continue
		}

		var tick Tick
		if err := json.Unmarshal(message, &tick); err != nil {
			log.Printf("[TickStream] Dropping malformed tick: %v", err)
			continue
		}
		if tick.Timestamp.IsZero() {
			tick.Timestamp = time.Now()
		}

		select {
		case ts.ticks <- tick:
		default:
			// Dispatch loop is behind; drop the oldest tick to stay current.
			select {
			case <-ts.ticks:
			default:
			}
			ts.ticks <- tick
		}
	}
}

// Stop closes the stream and the tick channel
func (ts *TickStream) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	select {
	case <-ts.stopChan:
	default:
		close(ts.stopChan)
	}
	if ts.conn != nil {
		ts.conn.Close()
	}
}
