package server

import (
	"context"
	"time"

	"github.com/onnwee/chatbot/store"
)

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	store  store.Store
	checks []Check
	now    func() time.Time
}

// NewHandlers creates a Handlers instance. now defaults to time.Now.
func NewHandlers(st store.Store, checks []Check, now func() time.Time) *Handlers {
	if now == nil {
		now = time.Now
	}
	return &Handlers{store: st, checks: checks, now: now}
}
