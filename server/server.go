// Package server exposes the HTTP surface of the bot: liveness and readiness
// probes, Prometheus metrics, and an authenticated, rate limited admin API for
// admins, custom commands and usage reports. Every request gets a correlation
// id (reused from X-Correlation-ID when present) and a tracing span.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/chatbot/config"
	"github.com/onnwee/chatbot/store"
	"github.com/onnwee/chatbot/telemetry"
)

// Options configures NewMux.
type Options struct {
	Store       store.Store
	Auth        config.AdminConfig
	RateLimit   config.RateLimitConfig
	CORSOrigins []string
	// ReadyChecks run after the store ping on /readyz.
	ReadyChecks []Check
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewMux returns the HTTP handler with all routes. ctx bounds the rate
// limiter's cleanup goroutine.
func NewMux(ctx context.Context, opts Options) http.Handler {
	limiter := newIPRateLimiter(ctx, opts.RateLimit)
	h := NewHandlers(opts.Store, opts.ReadyChecks, opts.Now)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", h.HandleHealthz)
	mux.HandleFunc("/readyz", h.HandleReadyz)

	admin := http.NewServeMux()
	admin.HandleFunc("/admin/admins", h.HandleAdmins)
	admin.HandleFunc("/admin/commands", h.HandleCommands)
	admin.HandleFunc("/admin/stats", h.HandleStats)
	mux.Handle("/admin/", adminAuth(rateLimitMiddleware(admin, limiter), opts.Auth))

	return withCORS(withCorrelation(mux), opts.CORSOrigins)
}

// withCorrelation injects the correlation id and a server span.
func withCorrelation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.NewString()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path,
			telemetry.HTTPMethodAttr(r.Method),
			telemetry.HTTPRouteAttr(r.URL.Path),
			telemetry.HTTPURLAttr(r.URL.String()),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		telemetry.SetSpanHTTPStatus(span, rec.statusCode)
		if rec.statusCode >= 400 {
			code, msg := telemetry.ErrorStatus(fmt.Sprintf("HTTP %d", rec.statusCode))
			span.SetStatus(code, msg)
		}
		if !strings.HasPrefix(r.URL.Path, "/metrics") {
			telemetry.LoggerWithCorr(ctx).Debug("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("component", "http"))
		}
	})
}

// Start serves handler on addr and shuts down gracefully when ctx is done.
func Start(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err), slog.String("component", "http"))
		}
	}()

	slog.Info("http server listening", slog.String("addr", addr), slog.String("component", "http"))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server error", slog.Any("err", err), slog.String("component", "http"))
		return err
	}
	return nil
}
