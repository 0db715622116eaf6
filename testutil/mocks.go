package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// MockTwitchServer mocks the Twitch OAuth token endpoint at /oauth2/token.
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc

	mu       sync.Mutex
	requests []url.Values
}

// NewMockTwitchServer creates a new mock Twitch server.
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err == nil {
			m.mu.Lock()
			m.requests = append(m.requests, r.PostForm)
			m.mu.Unlock()
		}
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// TokenURL is the mocked token endpoint.
func (m *MockTwitchServer) TokenURL() string { return m.URL + "/oauth2/token" }

// Requests returns the form bodies received so far.
func (m *MockTwitchServer) Requests() []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]url.Values(nil), m.requests...)
}

// MockRefreshResponse answers refresh grants with accessToken and a rotated
// refresh token.
func (m *MockTwitchServer) MockRefreshResponse(accessToken, refreshToken string, expiresIn int) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		if r.PostForm.Get("grant_type") != "refresh_token" {
			http.Error(w, `{"status":400,"message":"invalid grant"}`, http.StatusBadRequest)
			return
		}
		response := map[string]any{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"expires_in":    expiresIn,
			"token_type":    "bearer",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockRefreshFailure answers every token request with 400.
func (m *MockTwitchServer) MockRefreshFailure() {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":400,"message":"Invalid refresh token"}`))
	}
}

// HelixURL is the mocked Helix API base.
func (m *MockTwitchServer) HelixURL() string { return m.URL + "/helix" }

// MockAppToken answers client credential grants with accessToken.
func (m *MockTwitchServer) MockAppToken(accessToken string) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		if r.PostForm.Get("grant_type") != "client_credentials" {
			http.Error(w, `{"status":400,"message":"invalid grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // test mock response
			"access_token": accessToken,
			"expires_in":   3600,
			"token_type":   "bearer",
		})
	}
}

// MockUsers serves /helix/users?login=... from logins (login -> user id).
// Requests must carry clientID and the bearer token accessToken.
func (m *MockTwitchServer) MockUsers(clientID, accessToken string, logins map[string]string) {
	m.Handlers["/helix/users"] = func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Client-Id") != clientID || r.Header.Get("Authorization") != "Bearer "+accessToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized","status":401,"message":"Invalid OAuth token"}`))
			return
		}
		data := []map[string]string{}
		login := r.URL.Query().Get("login")
		if id, ok := logins[login]; ok {
			data = append(data, map[string]string{"id": id, "login": login})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data}) //nolint:errcheck // test mock response
	}
}
