// studychat: a chat UI that relays student questions to an AI provider.
//
// Usage:
//
//	studychat serve
//	studychat serve --port 3000 --store redis://localhost:6379
//	studychat settings show
//	studychat settings set --api-key sk-... --level good
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/hartyporpoise/studychat/internal/api"
	"github.com/hartyporpoise/studychat/internal/chat"
	"github.com/hartyporpoise/studychat/internal/config"
	"github.com/hartyporpoise/studychat/internal/logging"
	"github.com/hartyporpoise/studychat/internal/metrics"
	"github.com/hartyporpoise/studychat/internal/provider"
	"github.com/hartyporpoise/studychat/internal/settings"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	// .env first so its values become flag defaults. Real env vars win.
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	cfg, envErr := config.FromEnv()

	root := &cobra.Command{
		Use:           "studychat",
		Short:         "Chat UI and relay for an AI tutoring API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return envErr
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfg.StoreURL, "store", cfg.StoreURL,
		"Settings store address (redis://, rediss://, sqlite://path, memory://)")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the studychat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals()...)
			defer stop()
			return runServe(ctx, &cfg)
		},
	}
	f := serve.Flags()
	f.IntVarP(&cfg.Port, "port", "p", cfg.Port, "HTTP port")
	f.StringVar(&cfg.Host, "host", cfg.Host, "Bind address")
	f.StringVar(&cfg.ProviderURL, "provider-url", cfg.ProviderURL, "AI chat endpoint")
	f.DurationVar(&cfg.ProviderTimeout, "provider-timeout", cfg.ProviderTimeout,
		"Timeout for one outbound chat call")
	f.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Also write rotated logs to this directory")

	root.AddCommand(serve, newSettingsCmd(&cfg, os.Stdout))
	return root
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closer, err := logging.New(logging.Options{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
		Dir:    cfg.LogDir,
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(log)

	// ── 1. Settings store ─────────────────────────────────────────────────
	store, err := settings.Open(cfg.StoreURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	// Non-fatal: Redis may come up after us (docker-compose startup ordering).
	if err := store.Ping(ctx); err != nil {
		log.Warn("settings store not reachable yet", "store", settings.Backend(cfg.StoreURL), "err", err)
	} else {
		log.Info("settings store ready", "store", settings.Backend(cfg.StoreURL))
	}

	// ── 2. Provider ───────────────────────────────────────────────────────
	log.Info("chat provider", "url", cfg.ProviderURL, "timeout", cfg.ProviderTimeout)
	pc := provider.NewClient(cfg.ProviderURL, cfg.ProviderTimeout)

	// ── 3. Start HTTP server ──────────────────────────────────────────────
	mc := metrics.NewCollector()
	fwd := chat.NewForwarder(store, pc, mc, log)
	srv := api.NewServer(cfg, store, fwd, mc, log)
	return srv.Run(ctx, cfg.Addr())
}

// openStore is shared by the settings subcommands.
func openStore(cfg *config.Config) (settings.Store, error) {
	store, err := settings.Open(cfg.StoreURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}
