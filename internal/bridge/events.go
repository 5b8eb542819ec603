package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// Signal types pushed by the bridge over the WebSocket.
const (
	// SignalComponentAdded fires when an inventory appears on a
	// transposer face, e.g. the operator places the charger.
	SignalComponentAdded = "component_added"

	// SignalComponentRemoved fires when an inventory disappears. If it
	// is the charger or the store, the transfer loop is about to start
	// failing.
	SignalComponentRemoved = "component_removed"
)

// Signal is a hardware event from the in-game computer.
type Signal struct {
	Type      string `json:"signal"`
	Component string `json:"component,omitempty"`
	Side      int    `json:"side"`
}

// SignalClient maintains a WebSocket connection to the bridge's signal
// stream. Reconnection is not automatic; the watchdog calls
// [SignalClient.Reconnect] when the bridge becomes reachable again.
type SignalClient struct {
	baseURL string
	token   string
	logger  *slog.Logger
	signals chan Signal

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewSignalClient creates a new signal stream client.
func NewSignalClient(baseURL, token string, logger *slog.Logger) *SignalClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SignalClient{
		baseURL: baseURL,
		token:   token,
		logger:  logger,
		signals: make(chan Signal, 16),
	}
}

// Connect dials the bridge's signal stream and starts the read loop.
func (c *SignalClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	target, err := c.streamURL()
	if err != nil {
		return err
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Info("connecting to bridge signal stream", "url", target)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		return fmt.Errorf("dial signal stream: %w", err)
	}

	// Signal frames are tiny; anything bigger is a confused bridge.
	conn.SetReadLimit(64 * 1024)

	c.conn = conn
	go c.readLoop(conn)
	return nil
}

// streamURL rewrites the configured HTTP base URL into its ws(s)
// equivalent pointing at the signal endpoint.
func (c *SignalClient) streamURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse bridge URL %q: %w", c.baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/api/signals"
	return u.String(), nil
}

// Close tears down the stream connection. Calling it with no live
// connection is a no-op.
func (c *SignalClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Reconnect drops the current connection and dials again. The watchdog
// calls this from its OnReady callback once the bridge answers pings
// after an outage.
func (c *SignalClient) Reconnect(ctx context.Context) error {
	c.logger.Info("reconnecting signal stream")
	c.Close() // the old conn is likely already dead, its error says nothing
	return c.Connect(ctx)
}

// Signals returns the channel of received hardware signals.
func (c *SignalClient) Signals() <-chan Signal {
	return c.signals
}

// readLoop reads signal frames until the connection dies. It takes the
// connection as an argument so a stale loop from before a Reconnect
// cannot read the new connection.
func (c *SignalClient) readLoop(conn *websocket.Conn) {
	for {
		var sig Signal
		if err := conn.ReadJSON(&sig); err != nil {
			c.streamEnded(err)
			return
		}

		select {
		case c.signals <- sig:
		default:
			c.logger.Warn("signal channel full, dropping signal", "type", sig.Type)
		}
	}
}

func (c *SignalClient) streamEnded(err error) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Info("signal stream closed")
		return
	}
	// The watchdog notices the outage and calls Reconnect once the
	// bridge answers pings again.
	c.logger.Warn("signal stream lost", "error", err)
}
