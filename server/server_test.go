package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/chatbot/command"
	"github.com/onnwee/chatbot/config"
	"github.com/onnwee/chatbot/db"
	"github.com/onnwee/chatbot/store"
	"github.com/onnwee/chatbot/testutil"
)

var march = time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)

func newTestMux(t *testing.T, st store.Store, checks ...Check) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewMux(ctx, Options{
		Store:       st,
		Auth:        config.AdminConfig{Token: "secret"},
		RateLimit:   config.RateLimitConfig{Enabled: false, RequestsPerIP: 10, Window: time.Minute},
		ReadyChecks: checks,
		Now:         func() time.Time { return march },
	})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("X-Admin-Token", "secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthzOK(t *testing.T) {
	h := newTestMux(t, store.NewMemory())
	rr := do(t, h, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Error("expected a correlation id header")
	}
}

func TestCorrelationIDIsReused(t *testing.T) {
	h := newTestMux(t, store.NewMemory())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Correlation-ID"); got != "corr-123" {
		t.Errorf("X-Correlation-ID = %q", got)
	}
}

func TestReadyz(t *testing.T) {
	h := newTestMux(t, store.NewMemory(), Check{Name: "twitch", Fn: func(context.Context) error { return nil }})
	rr := do(t, h, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz = %d %s", rr.Code, rr.Body.String())
	}

	h = newTestMux(t, store.NewMemory(), Check{Name: "discord", Fn: func(context.Context) error {
		return errors.New("gateway not connected")
	}})
	rr = do(t, h, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d, want 503", rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "not_ready" || resp["failed_check"] != "discord" {
		t.Errorf("resp = %v", resp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestMux(t, store.NewMemory())
	if rr := do(t, h, http.MethodGet, "/metrics", ""); rr.Code != http.StatusOK {
		t.Errorf("metrics = %d", rr.Code)
	}
}

func TestAdminRequiresToken(t *testing.T) {
	h := newTestMux(t, store.NewMemory())
	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestAdminCommandsAPI(t *testing.T) {
	h := newTestMux(t, store.NewMemory())

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"create", http.MethodPost, "/admin/commands", `{"source":"twitch","name":"Hello","content":"Hi!"}`, http.StatusCreated},
		{"duplicate", http.MethodPost, "/admin/commands", `{"source":"twitch","name":"hello","content":"again"}`, http.StatusConflict},
		{"reserved", http.MethodPost, "/admin/commands", `{"source":"twitch","name":"help","content":"x"}`, http.StatusConflict},
		{"invalid name", http.MethodPost, "/admin/commands", `{"source":"twitch","name":"9lives","content":"x"}`, http.StatusBadRequest},
		{"bad source", http.MethodPost, "/admin/commands", `{"source":"irc","name":"x","content":"x"}`, http.StatusBadRequest},
		{"missing content", http.MethodPost, "/admin/commands", `{"source":"twitch","name":"bye"}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/admin/commands", `{"source":"twitch","name":"bye","content":"x","extra":1}`, http.StatusBadRequest},
		{"update", http.MethodPut, "/admin/commands", `{"source":"twitch","name":"hello","content":"Hey"}`, http.StatusOK},
		{"update missing", http.MethodPut, "/admin/commands", `{"source":"discord","name":"hello","content":"Hey"}`, http.StatusNotFound},
		{"list", http.MethodGet, "/admin/commands?source=twitch", "", http.StatusOK},
		{"list without source", http.MethodGet, "/admin/commands", "", http.StatusBadRequest},
		{"delete", http.MethodDelete, "/admin/commands?source=twitch&name=hello", "", http.StatusNoContent},
		{"delete again", http.MethodDelete, "/admin/commands?source=twitch&name=hello", "", http.StatusNotFound},
		{"method", http.MethodPatch, "/admin/commands", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		rr := do(t, h, tt.method, tt.target, tt.body)
		if rr.Code != tt.status {
			t.Errorf("%s: status = %d, want %d (body %s)", tt.name, rr.Code, tt.status, rr.Body.String())
		}
	}
}

func TestAdminCommandsListBody(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	_ = st.CreateCommand(ctx, command.Discord, "b", "2")
	_ = st.CreateCommand(ctx, command.Discord, "a", "1")
	h := newTestMux(t, st)

	rr := do(t, h, http.MethodGet, "/admin/commands?source=DISCORD", "")
	var resp struct {
		Source   string            `json:"source"`
		Commands []commandResponse `json:"commands"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Source != "discord" || len(resp.Commands) != 2 || resp.Commands[0].Name != "a" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAdminAdminsAPI(t *testing.T) {
	st := store.NewMemory()
	h := newTestMux(t, st)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"add", http.MethodPost, "/admin/admins", `{"source":"discord","user_id":"175928847299117063"}`, http.StatusCreated},
		{"add again", http.MethodPost, "/admin/admins", `{"source":"discord","user_id":"175928847299117063"}`, http.StatusOK},
		{"bad id", http.MethodPost, "/admin/admins", `{"source":"twitch","user_id":"nick"}`, http.StatusBadRequest},
		{"list", http.MethodGet, "/admin/admins?source=discord", "", http.StatusOK},
		{"remove", http.MethodDelete, "/admin/admins?source=discord&user_id=175928847299117063", "", http.StatusNoContent},
		{"remove missing", http.MethodDelete, "/admin/admins?source=discord&user_id=175928847299117063", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		rr := do(t, h, tt.method, tt.target, tt.body)
		if rr.Code != tt.status {
			t.Errorf("%s: status = %d, want %d (body %s)", tt.name, rr.Code, tt.status, rr.Body.String())
		}
	}
	if ok, _ := st.IsAdmin(context.Background(), command.Discord, "175928847299117063"); ok {
		t.Error("admin should have been removed")
	}
}

func TestAdminStatsAPI(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	mar := command.Period{Year: 2024, Month: time.March}
	feb := command.Period{Year: 2024, Month: time.February}
	for i := 0; i < 3; i++ {
		_ = st.RecordUsage(ctx, mar, command.KindBuiltin, "help")
	}
	_ = st.RecordUsage(ctx, mar, command.KindCustom, "hello")
	_ = st.RecordUsage(ctx, feb, command.KindCustom, "hello")
	_ = st.RecordUsage(ctx, feb, command.KindCustom, "hello")
	h := newTestMux(t, st)

	type resp struct {
		Period string          `json:"period"`
		Usage  []usageResponse `json:"usage"`
	}
	get := func(target string) (int, resp) {
		rr := do(t, h, http.MethodGet, target, "")
		var r resp
		if rr.Code == http.StatusOK {
			if err := json.NewDecoder(rr.Body).Decode(&r); err != nil {
				t.Fatal(err)
			}
		}
		return rr.Code, r
	}

	code, cur := get("/admin/stats")
	if code != http.StatusOK || cur.Period != "2024-03" || len(cur.Usage) != 2 ||
		cur.Usage[0] != (usageResponse{Kind: command.KindBuiltin, Name: "help", Count: 3}) {
		t.Errorf("current = %d %+v", code, cur)
	}
	_, total := get("/admin/stats?period=total")
	if len(total.Usage) != 2 || total.Usage[0].Name != "hello" || total.Usage[0].Count != 3 {
		t.Errorf("total = %+v", total)
	}
	_, past := get("/admin/stats?period=2024-02")
	if len(past.Usage) != 1 || past.Usage[0].Count != 2 {
		t.Errorf("february = %+v", past)
	}
	if code, _ := get("/admin/stats?period=march"); code != http.StatusBadRequest {
		t.Errorf("bad period status = %d", code)
	}
}

func TestAdminAPIOverSQLite(t *testing.T) {
	database := testutil.SetupSQLite(t)
	h := newTestMux(t, store.NewSQL(database, db.SQLite))

	if rr := do(t, h, http.MethodPost, "/admin/commands", `{"source":"discord","name":"hello","content":"Hi"}`); rr.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rr.Code, rr.Body.String())
	}
	if rr := do(t, h, http.MethodPost, "/admin/commands", `{"source":"discord","name":"hello","content":"Hi"}`); rr.Code != http.StatusConflict {
		t.Errorf("duplicate = %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/readyz", ""); rr.Code != http.StatusOK {
		t.Errorf("readyz = %d", rr.Code)
	}
}

func TestStartAndShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := newTestMux(t, store.NewMemory())
	done := make(chan error, 1)
	go func() { done <- Start(ctx, "127.0.0.1:0", handler) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
