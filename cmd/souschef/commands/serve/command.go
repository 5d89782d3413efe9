package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

var (
	flagAddr        string
	flagAPIKey      string
	flagAPISecret   string
	flagDataDir     string
	flagSnapshotDir string
	flagPublicURL   string
)

// Command returns the 'serve' command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the kitchen signaling/session server",
		Long: `Run the kitchen server.

Endpoints:
  POST /api/token             mint a room access token
  POST /api/rtc/offer?room=   WebRTC offer/answer exchange
  GET  /api/ws?room=          websocket client connection
  POST /api/control?room=     inject a control event (token-gated)
  GET  /api/state?room=       session state (SSE stream, ?once=1 for a single read)

Configuration comes from SOUSCHEF_* environment variables; flags override.
With --data-dir set, room sessions persist across restarts and running
timers keep their deadlines.

Examples:
  SOUSCHEF_API_KEY=key SOUSCHEF_API_SECRET=secret souschef serve
  souschef serve --api-key key --api-secret secret --data-dir /var/lib/souschef`,
		RunE: runServe,
	}

	f := cmd.Flags()
	f.StringVar(&flagAddr, "addr", "", "listen address (default :8090)")
	f.StringVar(&flagAPIKey, "api-key", "", "API key for token minting")
	f.StringVar(&flagAPISecret, "api-secret", "", "API secret for token minting")
	f.StringVar(&flagDataDir, "data-dir", "", "session persistence directory (empty: in-memory)")
	f.StringVar(&flagSnapshotDir, "snapshot-dir", "", "camera snapshot archive directory")
	f.StringVar(&flagPublicURL, "public-url", "", "public base URL advertised in token responses")

	return cmd
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if flagAddr != "" {
		cfg.Addr = flagAddr
	}
	if flagAPIKey != "" {
		cfg.APIKey = flagAPIKey
	}
	if flagAPISecret != "" {
		cfg.APISecret = flagAPISecret
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagSnapshotDir != "" {
		cfg.SnapshotDir = flagSnapshotDir
	}
	if flagPublicURL != "" {
		cfg.PublicURL = flagPublicURL
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Server logs are structured JSON for log shippers.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	srv, err := New(cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Addr, "persistent", cfg.DataDir != "")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
