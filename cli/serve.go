package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/chatbot/chat"
	"github.com/onnwee/chatbot/command"
	"github.com/onnwee/chatbot/config"
	"github.com/onnwee/chatbot/crates"
	"github.com/onnwee/chatbot/dispatch"
	"github.com/onnwee/chatbot/server"
	"github.com/onnwee/chatbot/telemetry"
	"github.com/onnwee/chatbot/usage"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to the configured chats and serve the HTTP API",
		Long: `Connects to Discord and Twitch (each only when its credentials are set),
dispatches commands, and serves /healthz, /readyz, /metrics and the /admin API.
Shutdown is graceful on SIGINT/SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("chatbot", Version)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, release, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	mode, err := usage.ParseMode(cfg.AccountingFailureMode)
	if err != nil {
		return err
	}
	rec := usage.NewRecorder(st, mode)
	var lookups dispatch.CrateLookup
	if cfg.Crates.Enabled {
		lookups = crates.NewClient(crates.Config{
			APIURL:    cfg.Crates.APIURL,
			UserAgent: cfg.Crates.UserAgent,
			Interval:  cfg.Crates.Interval,
			Timeout:   cfg.Crates.Timeout,
		})
	}
	d := dispatch.New(st, rec, dispatch.Options{
		Owners: map[command.Source][]string{
			command.Discord: cfg.Owners(command.Discord),
			command.Twitch:  cfg.Owners(command.Twitch),
		},
		Prefixes: cfg.Prefixes(),
		Links:    cfg.AllLinks(),
		Crates:   lookups,
	})

	// The recorder outlives the adapters so the final flush sees every
	// increment.
	recCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
	recDone := make(chan struct{})
	go func() {
		defer close(recDone)
		rec.Run(recCtx, cfg.AccountingRetryInterval)
	}()
	defer func() {
		stopRecorder()
		<-recDone
	}()

	var (
		wg     sync.WaitGroup
		checks []server.Check
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				slog.Error("chat adapter exited with error", slog.String("source", name), slog.Any("err", err))
			}
		}()
	}

	if err := cfg.ValidateDiscordReady(); err == nil {
		dc, err := chat.NewDiscord(cfg.Discord.Token, d, cfg.MaxInFlight)
		if err != nil {
			return err
		}
		checks = append(checks, server.Check{Name: "discord", Fn: dc.Ready})
		run("discord", dc.Run)
	} else {
		slog.Info("discord adapter disabled", slog.Any("reason", err))
	}

	if err := cfg.ValidateTwitchReady(); err == nil {
		tokens, err := chat.NewTwitchTokenSource(ctx, chat.TwitchTokenConfig{
			AccessToken:  cfg.Twitch.OAuthToken,
			RefreshToken: cfg.Twitch.RefreshToken,
			ClientID:     cfg.Twitch.ClientID,
			ClientSecret: cfg.Twitch.ClientSecret,
			TokenURL:     cfg.Twitch.TokenURL,
		})
		if err != nil {
			return err
		}
		tw := chat.NewTwitch(d, chat.TwitchOptions{
			Channel:        cfg.Twitch.Channel,
			Username:       cfg.Twitch.BotUsername,
			Tokens:         tokens,
			MessagesPer30s: cfg.Twitch.MessagesPer30s,
			MaxInFlight:    cfg.MaxInFlight,
		})
		checks = append(checks, server.Check{Name: "twitch", Fn: tw.Ready})
		run("twitch", tw.Run)
	} else {
		slog.Info("twitch adapter disabled", slog.Any("reason", err))
	}

	if len(checks) == 0 {
		slog.Warn("no chat adapter configured; serving the HTTP API only")
	}
	if !cfg.Admin.Enabled() {
		slog.Warn("admin API is unauthenticated; set ADMIN_TOKEN or ADMIN_USERNAME/ADMIN_PASSWORD")
	}

	startPprof()

	handler := server.NewMux(ctx, server.Options{
		Store:       st,
		Auth:        cfg.Admin,
		RateLimit:   cfg.RateLimit,
		CORSOrigins: cfg.CORSAllowedOrigins,
		ReadyChecks: checks,
	})
	slog.Info("chatbot started", slog.String("version", Version), slog.String("addr", cfg.HTTPAddr),
		slog.String("accounting", mode.String()), slog.Bool("tracing", telemetry.IsTracingEnabled()),
		slog.Bool("crate_lookups", cfg.Crates.Enabled))
	err = server.Start(ctx, cfg.HTTPAddr, handler)
	if err != nil {
		slog.Error("http server exited with error", slog.Any("err", err))
	}

	// A failed listener stops the adapters too.
	stop()
	wg.Wait()
	slog.Info("shutting down")
	return err
}

// startPprof serves the default mux's /debug/pprof when ENABLE_PPROF=1.
func startPprof() {
	if os.Getenv("ENABLE_PPROF") != "1" {
		return
	}
	addr := os.Getenv("PPROF_ADDR")
	if addr == "" {
		addr = "localhost:6060"
	}
	go func() {
		slog.Info("pprof profiling enabled", slog.String("addr", addr))
		srv := &http.Server{
			Addr:              addr,
			Handler:           nil, // default mux exposes /debug/pprof
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("pprof server error", slog.Any("err", err))
		}
	}()
}
