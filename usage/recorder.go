// Package usage applies the accounting failure policy on top of a usage
// counter store.
//
// In drop mode a failed increment is logged, counted in
// chatbot_usage_dropped_total and lost. In retry mode it is parked in an
// in-memory pending set and re-applied by a jittered background flusher, with
// a final flush on shutdown. A flush whose statement commits but whose
// acknowledgement is lost (for example a connection reset after commit) stays
// pending and is applied again, so retry mode trades a possible double count
// for not losing increments. Pending increments do not survive a crash.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/chatbot/command"
	"github.com/onnwee/chatbot/telemetry"
)

// Counter is the persistence the Recorder writes through.
type Counter interface {
	RecordUsage(ctx context.Context, period command.Period, kind command.Kind, name string) error
	AddUsage(ctx context.Context, period command.Period, kind command.Kind, name string, delta int64) error
}

// Mode is the accounting failure policy.
type Mode int

const (
	ModeDrop Mode = iota
	ModeRetry
)

func (m Mode) String() string {
	if m == ModeRetry {
		return "retry"
	}
	return "drop"
}

// ParseMode accepts "drop" or "retry".
func ParseMode(v string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "drop":
		return ModeDrop, nil
	case "retry":
		return ModeRetry, nil
	default:
		return ModeDrop, fmt.Errorf("unknown accounting failure mode %q", v)
	}
}

type key struct {
	period command.Period
	kind   command.Kind
	name   string
}

// Recorder records successful invocations.
type Recorder struct {
	counter Counter
	mode    Mode

	mu      sync.Mutex
	pending map[key]int64
}

// NewRecorder wraps counter with the given failure mode.
func NewRecorder(counter Counter, mode Mode) *Recorder {
	return &Recorder{counter: counter, mode: mode, pending: make(map[key]int64)}
}

// Mode reports the configured policy.
func (r *Recorder) Mode() Mode { return r.mode }

// Record increments (period, kind, name) by one. The storage error is
// returned after the policy has been applied, for logging only.
func (r *Recorder) Record(ctx context.Context, period command.Period, kind command.Kind, name string) error {
	err := r.counter.RecordUsage(ctx, period, kind, name)
	if err == nil {
		return nil
	}
	log := telemetry.LoggerWithCorr(ctx).With(
		slog.String("component", "usage"),
		slog.String("period", period.String()),
		slog.String("kind", string(kind)),
		slog.String("name", name))

	if r.mode == ModeDrop {
		telemetry.IncUsageDropped()
		log.Warn("usage increment dropped", slog.Any("err", err))
		return err
	}
	r.mu.Lock()
	r.pending[key{period, kind, name}]++
	n := r.pendingLocked()
	r.mu.Unlock()
	telemetry.SetUsagePending(n)
	log.Warn("usage increment queued for retry", slog.Int64("pending", n), slog.Any("err", err))
	return err
}

// Pending returns the number of increments waiting to be re-applied.
func (r *Recorder) Pending() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pendingLocked()
}

func (r *Recorder) pendingLocked() int64 {
	var n int64
	for _, d := range r.pending {
		n += d
	}
	return n
}

// Flush re-applies pending increments, one upsert per key. Keys that fail
// stay pending; the first failure is returned.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	batch := r.pending
	r.pending = make(map[key]int64)
	r.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	var firstErr error
	failed := make(map[key]int64)
	for k, delta := range batch {
		if err := r.counter.AddUsage(ctx, k.period, k.kind, k.name, delta); err != nil {
			failed[k] = delta
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	r.mu.Lock()
	for k, d := range failed {
		r.pending[k] += d
	}
	n := r.pendingLocked()
	r.mu.Unlock()
	telemetry.SetUsagePending(n)

	if firstErr != nil {
		telemetry.IncUsageFlushFailure()
		slog.Warn("usage flush incomplete", slog.Int("failed_keys", len(failed)), slog.Int64("pending", n),
			slog.Any("err", firstErr), slog.String("component", "usage"))
		return firstErr
	}
	slog.Info("pending usage flushed", slog.Int("keys", len(batch)), slog.String("component", "usage"))
	return nil
}

// Run flushes pending increments every interval (with jitter) until ctx is
// done, then makes one final flush bounded by a short timeout. It is a no-op
// loop in drop mode.
func (r *Recorder) Run(ctx context.Context, interval time.Duration) {
	if r.mode != ModeRetry {
		<-ctx.Done()
		return
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	for {
		// ±20% jitter per iteration.
		jitterRange := int64(interval / 5)
		//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
		jitter := time.Duration(rand.Int63n(jitterRange*2+1) - jitterRange)
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if err := r.Flush(final); err != nil {
				slog.Error("final usage flush failed; pending increments lost",
					slog.Int64("pending", r.Pending()), slog.Any("err", err), slog.String("component", "usage"))
			}
			cancel()
			return
		case <-time.After(interval + jitter):
		}
		_ = r.Flush(ctx)
	}
}
