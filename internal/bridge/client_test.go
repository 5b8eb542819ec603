package bridge

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TAMATLT/ferryd/internal/transposer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newInvokeServer runs an httptest server whose /api/invoke handler
// answers with respond. The last decoded request is kept for
// inspection.
func newInvokeServer(t *testing.T, respond func(invokeRequest) (int, string)) (*httptest.Server, *invokeRequest, *http.Header) {
	t.Helper()
	var last invokeRequest
	var lastHeader http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/invoke" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		lastHeader = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&last); err != nil {
			t.Errorf("decode invoke request: %v", err)
		}
		status, body := respond(last)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &last, &lastHeader
}

func TestClient_InventorySize(t *testing.T) {
	srv, last, _ := newInvokeServer(t, func(invokeRequest) (int, string) {
		return 200, `{"result":[27]}`
	})
	c := NewClient(srv.URL, "", discardLogger())

	n, err := c.InventorySize(context.Background(), transposer.East)
	if err != nil {
		t.Fatalf("InventorySize: %v", err)
	}
	if n != 27 {
		t.Errorf("size = %d, want 27", n)
	}
	if last.Component != "transposer" || last.Method != "getInventorySize" {
		t.Errorf("request = %+v, want transposer.getInventorySize", last)
	}
	if len(last.Args) != 1 || last.Args[0] != float64(5) {
		t.Errorf("args = %v, want [5]", last.Args)
	}
}

func TestClient_InventorySize_BareFace(t *testing.T) {
	srv, _, _ := newInvokeServer(t, func(invokeRequest) (int, string) {
		return 200, `{"result":[null,"no inventory"]}`
	})
	c := NewClient(srv.URL, "", discardLogger())

	n, err := c.InventorySize(context.Background(), transposer.Up)
	if err != nil {
		t.Fatalf("InventorySize: %v", err)
	}
	if n != 0 {
		t.Errorf("size = %d, want 0 for a bare face", n)
	}
}

func TestClient_InventoryName(t *testing.T) {
	srv, _, _ := newInvokeServer(t, func(invokeRequest) (int, string) {
		return 200, `{"result":["Basic Charger"]}`
	})
	c := NewClient(srv.URL, "", discardLogger())

	name, err := c.InventoryName(context.Background(), transposer.East)
	if err != nil {
		t.Fatalf("InventoryName: %v", err)
	}
	if name != "Basic Charger" {
		t.Errorf("name = %q, want %q", name, "Basic Charger")
	}
}

func TestClient_StackInSlot(t *testing.T) {
	srv, last, _ := newInvokeServer(t, func(invokeRequest) (int, string) {
		return 200, `{"result":[{"name":"mod:energycube","label":"Energy Cube","size":1}]}`
	})
	c := NewClient(srv.URL, "", discardLogger())

	st, err := c.StackInSlot(context.Background(), transposer.East, 1)
	if err != nil {
		t.Fatalf("StackInSlot: %v", err)
	}
	if st == nil {
		t.Fatal("StackInSlot returned nil for an occupied slot")
	}
	if st.ItemID != "mod:energycube" || st.Label != "Energy Cube" || st.Count != 1 {
		t.Errorf("stack = %+v", st)
	}
	if len(last.Args) != 2 || last.Args[1] != float64(1) {
		t.Errorf("args = %v, want [side, 1]", last.Args)
	}
}

func TestClient_StackInSlot_Empty(t *testing.T) {
	srv, _, _ := newInvokeServer(t, func(invokeRequest) (int, string) {
		return 200, `{"result":[null]}`
	})
	c := NewClient(srv.URL, "", discardLogger())

	st, err := c.StackInSlot(context.Background(), transposer.East, 1)
	if err != nil {
		t.Fatalf("StackInSlot: %v", err)
	}
	if st != nil {
		t.Errorf("stack = %+v, want nil for an empty slot", st)
	}
}

func TestClient_TransferItem(t *testing.T) {
	srv, last, _ := newInvokeServer(t, func(invokeRequest) (int, string) {
		return 200, `{"result":[1]}`
	})
	c := NewClient(srv.URL, "", discardLogger())

	moved, err := c.TransferItem(context.Background(), transposer.West, transposer.East, 1)
	if err != nil {
		t.Fatalf("TransferItem: %v", err)
	}
	if moved != 1 {
		t.Errorf("moved = %d, want 1", moved)
	}
	if last.Method != "transferItem" {
		t.Errorf("method = %q, want transferItem", last.Method)
	}
	want := []any{float64(4), float64(5), float64(1)}
	if len(last.Args) != 3 || last.Args[0] != want[0] || last.Args[1] != want[1] || last.Args[2] != want[2] {
		t.Errorf("args = %v, want %v", last.Args, want)
	}
}

func TestClient_TransferItem_Refused(t *testing.T) {
	srv, _, _ := newInvokeServer(t, func(invokeRequest) (int, string) {
		return 200, `{"result":[0]}`
	})
	c := NewClient(srv.URL, "", discardLogger())

	moved, err := c.TransferItem(context.Background(), transposer.West, transposer.East, 1)
	if err != nil {
		t.Fatalf("TransferItem: %v", err)
	}
	if moved != 0 {
		t.Errorf("moved = %d, want 0 when the target refuses", moved)
	}
}

func TestClient_ComponentError(t *testing.T) {
	srv, _, _ := newInvokeServer(t, func(invokeRequest) (int, string) {
		return 200, `{"error":"no such component"}`
	})
	c := NewClient(srv.URL, "", discardLogger())

	_, err := c.InventorySize(context.Background(), transposer.East)
	if err == nil {
		t.Fatal("expected error from component failure")
	}
	if !strings.Contains(err.Error(), "no such component") {
		t.Errorf("error = %v, want component message", err)
	}
}

func TestClient_HTTPError(t *testing.T) {
	srv, _, _ := newInvokeServer(t, func(invokeRequest) (int, string) {
		return 500, "lua crashed"
	})
	c := NewClient(srv.URL, "", discardLogger())

	_, err := c.InventorySize(context.Background(), transposer.East)
	if err == nil {
		t.Fatal("expected error from HTTP 500")
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "lua crashed") {
		t.Errorf("error = %v, want status and body", err)
	}
}

func TestClient_AuthHeader(t *testing.T) {
	srv, _, header := newInvokeServer(t, func(invokeRequest) (int, string) {
		return 200, `{"result":[0]}`
	})
	c := NewClient(srv.URL, "sekrit", discardLogger())

	if _, err := c.InventorySize(context.Background(), transposer.East); err != nil {
		t.Fatalf("InventorySize: %v", err)
	}
	if got := header.Get("Authorization"); got != "Bearer sekrit" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer sekrit")
	}
}

func TestClient_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `{"message":"bridge online","uptime":1234}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", discardLogger())
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestClient_PingWrongService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"API running."}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", discardLogger())
	if err := c.Ping(context.Background()); err == nil {
		t.Error("Ping accepted a non-bridge service")
	}
}

type stubReady bool

func (s stubReady) IsReady() bool { return bool(s) }

func TestClient_IsReady(t *testing.T) {
	c := NewClient("http://localhost:1", "", discardLogger())
	if !c.IsReady() {
		t.Error("IsReady() = false without a watcher, want true")
	}

	c.SetWatcher(stubReady(false))
	if c.IsReady() {
		t.Error("IsReady() = true, watcher says false")
	}
	c.SetWatcher(stubReady(true))
	if !c.IsReady() {
		t.Error("IsReady() = false, watcher says true")
	}
}
