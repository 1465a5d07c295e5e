package toolclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/user/wattwise/internal/types"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeService scripts a tool service: tokens are sequential ("tok-1",
// "tok-2", ...) and expireFirst makes every token except the latest
// report token_expired.
type fakeService struct {
	issued      atomic.Int32
	authCalls   atomic.Int32
	toolCalls   atomic.Int32
	listCalls   atomic.Int32
	expireFirst bool
	rejectAuth  bool
	// listFailures makes the first N GET /tools requests return 500.
	listFailures int32
}

func (f *fakeService) latest() string {
	return "tok-" + string(rune('0'+f.issued.Load()))
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth", func(w http.ResponseWriter, r *http.Request) {
		f.authCalls.Add(1)
		if f.rejectAuth {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
			return
		}
		f.issued.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"token": f.latest(), "expires_in": 60})
	})
	mux.HandleFunc("POST /api/tool", func(w http.ResponseWriter, r *http.Request) {
		f.toolCalls.Add(1)
		got := r.Header.Get("Authorization")
		if f.expireFirst && got != "Bearer "+f.latest() {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "token_expired"})
			return
		}
		var req struct {
			Tool string `json:"tool"`
			Seq  int    `json:"seq"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(types.ToolResult{
			Seq: req.Seq, Name: req.Tool, Success: true,
			Payload: json.RawMessage(`{"ok":true}`),
		})
	})
	mux.HandleFunc("GET /tools", func(w http.ResponseWriter, r *http.Request) {
		if f.listCalls.Add(1) <= f.listFailures {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "temporarily broken"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"tools": []types.Declaration{
			{Name: "calculate_roi", Description: "roi", Parameters: json.RawMessage(`{}`)},
		}})
	})
	return mux
}

func newClient(t *testing.T, f *fakeService) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:      srv.URL,
		ClientID:     "host",
		ClientSecret: "host-secret",
	}, discard())
}

func TestConnectAndExecute(t *testing.T) {
	f := &fakeService{}
	c := newClient(t, f)
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	res := c.Execute(ctx, types.ToolCall{Seq: 1, Name: "calculate_roi", Arguments: json.RawMessage(`{}`)})
	if !res.Success {
		t.Fatalf("execute failed: %+v", res.Error)
	}
	if res.Seq != 1 {
		t.Errorf("seq = %d", res.Seq)
	}
	if f.authCalls.Load() != 1 {
		t.Errorf("auth calls = %d, want 1", f.authCalls.Load())
	}
}

func TestInvalidCredentialsFatal(t *testing.T) {
	f := &fakeService{rejectAuth: true}
	c := newClient(t, f)
	ctx := context.Background()

	if err := c.Connect(ctx); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("connect: expected ErrInvalidCredentials, got %v", err)
	}
	// A rejected pair is never re-sent: exactly one handshake attempt.
	if got := f.authCalls.Load(); got != 1 {
		t.Fatalf("auth calls = %d, want exactly 1 (no automatic retry of rejected credentials)", got)
	}

	// Rejected credentials stop further handshakes; failures surface as
	// provider_unavailable results.
	res := c.Execute(ctx, types.ToolCall{Name: "calculate_roi", Arguments: json.RawMessage(`{}`)})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error.Kind != types.ErrProviderUnavailable {
		t.Errorf("kind = %s", res.Error.Kind)
	}
	if f.authCalls.Load() != 1 {
		t.Errorf("client kept retrying the handshake after fatal rejection")
	}
}

func TestStaleTokenRetriedExactlyOnce(t *testing.T) {
	f := &fakeService{expireFirst: true}
	c := newClient(t, f)
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	// Invalidate the client's token server-side by issuing a newer one.
	f.issued.Add(1)

	res := c.Execute(ctx, types.ToolCall{Seq: 2, Name: "calculate_roi", Arguments: json.RawMessage(`{}`)})
	if !res.Success {
		t.Fatalf("execute after renewal failed: %+v", res.Error)
	}
	// First attempt 401s, renewal happens, second attempt succeeds.
	if got := f.toolCalls.Load(); got != 2 {
		t.Errorf("tool calls = %d, want 2 (one retry)", got)
	}
	if got := f.authCalls.Load(); got != 2 {
		t.Errorf("auth calls = %d, want 2 (initial + renewal)", got)
	}
}

func TestTransportFailureIsResult(t *testing.T) {
	c := New(Config{
		BaseURL:      "http://127.0.0.1:1", // nothing listens here
		ClientID:     "host",
		ClientSecret: "host-secret",
	}, discard())

	res := c.Execute(context.Background(), types.ToolCall{Name: "calculate_roi", Arguments: json.RawMessage(`{}`)})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error.Kind != types.ErrProviderUnavailable {
		t.Errorf("kind = %s, want provider_unavailable", res.Error.Kind)
	}
}

func TestDeclarationsCached(t *testing.T) {
	f := &fakeService{}
	c := newClient(t, f)
	ctx := context.Background()

	first, err := c.Declarations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Declarations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("declarations: %d / %d", len(first), len(second))
	}
	if f.listCalls.Load() != 1 {
		t.Errorf("list calls = %d, want 1 (successful fetch is cached)", f.listCalls.Load())
	}
}

func TestDeclarationsRecoverAfterFailure(t *testing.T) {
	f := &fakeService{listFailures: 1}
	c := newClient(t, f)
	ctx := context.Background()

	// First fetch hits the broken service and fails.
	if _, err := c.Declarations(ctx); err == nil {
		t.Fatal("expected error while service is broken")
	}

	// The failure is not cached; the next call fetches again and succeeds.
	decls, err := c.Declarations(ctx)
	if err != nil {
		t.Fatalf("declarations after recovery: %v", err)
	}
	if len(decls) != 1 || decls[0].Name != "calculate_roi" {
		t.Errorf("declarations: %+v", decls)
	}
}
