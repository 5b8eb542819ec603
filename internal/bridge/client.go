// Package bridge provides clients for the in-game bridge API.
//
// The bridge is a small HTTP daemon running on the in-game computer.
// It exposes exactly one generic operation, POST /api/invoke, which
// calls a method on an attached component and returns the component's
// results. ferryd only ever talks to the transposer component through
// it. A WebSocket endpoint streams hardware signals (see SignalClient).
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/TAMATLT/ferryd/internal/config"
	"github.com/TAMATLT/ferryd/internal/httpkit"
	"github.com/TAMATLT/ferryd/internal/transposer"
)

// Client is a bridge REST API client. It implements
// [transposer.Transposer] by invoking the transposer component's
// methods over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	watcher    readyChecker // set via SetWatcher for health status
}

// readyChecker is satisfied by watchdog.Watcher. Defined here to avoid
// importing watchdog directly, keeping the dependency one-directional.
type readyChecker interface {
	IsReady() bool
}

// SetWatcher sets the connection watcher for health status queries.
func (c *Client) SetWatcher(w readyChecker) {
	c.watcher = w
}

// IsReady reports whether the bridge is currently reachable.
// Returns true if no watcher is configured.
func (c *Client) IsReady() bool {
	if c.watcher == nil {
		return true
	}
	return c.watcher.IsReady()
}

// NewClient creates a new bridge client. The retry layer covers the
// short connection-refused window while the in-game computer reboots;
// extra httpkit options (e.g. TLS opt-outs) are appended after the
// defaults.
func NewClient(baseURL, token string, logger *slog.Logger, extra ...httpkit.ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	opts := append([]httpkit.ClientOption{
		httpkit.WithTimeout(30 * time.Second),
		httpkit.WithRetry(3, 2*time.Second),
		httpkit.WithLogger(logger),
	}, extra...)

	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpkit.NewClient(opts...),
		logger:     logger,
	}
}

// Status is the bridge status response from GET /api/.
type Status struct {
	Message string `json:"message"`
	Uptime  int64  `json:"uptime,omitempty"`
}

// Ping checks if the bridge API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request /api/: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 512)
		return fmt.Errorf("bridge error %d: %s", resp.StatusCode, body)
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	if status.Message != "bridge online" {
		return fmt.Errorf("unexpected bridge status: %s", status.Message)
	}
	return nil
}

// invokeRequest is the generic component call payload.
type invokeRequest struct {
	Component string `json:"component"`
	Method    string `json:"method"`
	Args      []any  `json:"args"`
}

// invokeResponse carries the component's multiple return values in
// order. A component-level failure sets Error instead.
type invokeResponse struct {
	Result []json.RawMessage `json:"result"`
	Error  string            `json:"error,omitempty"`
}

// invoke calls a method on the transposer component and returns its
// raw result values.
func (c *Client) invoke(ctx context.Context, method string, args ...any) ([]json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	reqBody, err := json.Marshal(invokeRequest{
		Component: "transposer",
		Method:    method,
		Args:      args,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal invoke: %w", err)
	}

	c.logger.Log(ctx, config.LevelTrace, "bridge invoke",
		"method", method, "payload", string(reqBody))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/invoke", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", method, err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 512)
		return nil, fmt.Errorf("bridge error %d: %s", resp.StatusCode, body)
	}

	var result invokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode invoke response: %w", err)
	}

	c.logger.Log(ctx, config.LevelTrace, "bridge invoke result",
		"method", method, "values", len(result.Result), "error", result.Error)

	if result.Error != "" {
		return nil, fmt.Errorf("bridge: %s: %s", method, result.Error)
	}
	return result.Result, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// --- transposer.Transposer implementation ---

// InventorySize returns the slot count of the inventory on side, or 0
// when nothing with an inventory is attached there.
func (c *Client) InventorySize(ctx context.Context, side transposer.Side) (int, error) {
	res, err := c.invoke(ctx, "getInventorySize", int(side))
	if err != nil {
		return 0, err
	}

	// The component answers [null, reason] for a bare face. That is
	// not a failure, just an empty side.
	var n int
	if len(res) > 0 {
		if err := json.Unmarshal(res[0], &n); err != nil {
			return 0, fmt.Errorf("getInventorySize: bad result %s: %w", res[0], err)
		}
	}
	return n, nil
}

// InventoryName returns the display name of the inventory on side.
func (c *Client) InventoryName(ctx context.Context, side transposer.Side) (string, error) {
	res, err := c.invoke(ctx, "getInventoryName", int(side))
	if err != nil {
		return "", err
	}

	var name string
	if len(res) > 0 {
		if err := json.Unmarshal(res[0], &name); err != nil {
			return "", fmt.Errorf("getInventoryName: bad result %s: %w", res[0], err)
		}
	}
	return name, nil
}

// stackPayload is the component's item stack shape. Field names follow
// the component API, not ours.
type stackPayload struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Size  int    `json:"size"`
}

// StackInSlot returns the stack in the given 1-based slot, or
// (nil, nil) when the slot is empty.
func (c *Client) StackInSlot(ctx context.Context, side transposer.Side, slot int) (*transposer.Stack, error) {
	res, err := c.invoke(ctx, "getStackInSlot", int(side), slot)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 || bytes.Equal(res[0], []byte("null")) {
		return nil, nil
	}

	var p stackPayload
	if err := json.Unmarshal(res[0], &p); err != nil {
		return nil, fmt.Errorf("getStackInSlot: bad result %s: %w", res[0], err)
	}
	return &transposer.Stack{
		ItemID: p.Name,
		Label:  p.Label,
		Count:  p.Size,
	}, nil
}

// TransferItem moves up to count items from one side to the other and
// returns how many actually moved. Zero with a nil error is a normal
// answer: the target refused the items.
func (c *Client) TransferItem(ctx context.Context, from, to transposer.Side, count int) (int, error) {
	res, err := c.invoke(ctx, "transferItem", int(from), int(to), count)
	if err != nil {
		return 0, err
	}

	var moved int
	if len(res) > 0 {
		if err := json.Unmarshal(res[0], &moved); err != nil {
			return 0, fmt.Errorf("transferItem: bad result %s: %w", res[0], err)
		}
	}
	return moved, nil
}
