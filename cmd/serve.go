package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/claralabs/clara/db"
	"github.com/claralabs/clara/internal/agent"
	"github.com/claralabs/clara/internal/api"
	"github.com/claralabs/clara/internal/classify"
	"github.com/claralabs/clara/internal/config"
	"github.com/claralabs/clara/internal/contextual"
	"github.com/claralabs/clara/internal/identity"
	"github.com/claralabs/clara/internal/llm"
	"github.com/claralabs/clara/internal/memory"
	"github.com/claralabs/clara/internal/message"
	"github.com/claralabs/clara/internal/postgres"
	"github.com/claralabs/clara/internal/session"
	"github.com/claralabs/clara/internal/tools"
	"github.com/claralabs/clara/internal/weather"
)

// Server timeout configuration. WriteTimeout is generous because phase 2
// streams token by token.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

// trustProxy reads CLARA_TRUST_PROXY from the environment.
func trustProxy() bool {
	v, err := strconv.ParseBool(os.Getenv("CLARA_TRUST_PROXY"))
	return err == nil && v
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	addr := cfg.Addr
	if flagAddr != "" {
		addr = flagAddr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	logger.Info("starting clara", "version", Version)

	if err := db.Migrate(cfg.ConnString()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := postgres.Connect(ctx, cfg.ConnString())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	identities, err := identity.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating identity store: %w", err)
	}
	sessions, err := session.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}
	messages, err := message.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating message store: %w", err)
	}
	memories, err := memory.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating memory store: %w", err)
	}

	client, err := llm.NewClient(cfg.OpenAIAPIKey)
	if err != nil {
		return fmt.Errorf("creating completion client: %w", err)
	}

	dispatcher := tools.NewDispatcher(
		identities,
		sessions,
		memories,
		weather.New(cfg.OpenWeatherKey),
		logger,
	)

	runner := agent.New(
		client,
		classify.New(client, cfg.Model, logger),
		contextual.New(messages, memories, client, cfg.Model, cfg.HistoryLimit, logger),
		dispatcher,
		messages,
		cfg.Model,
		cfg.HistoryLimit,
		logger,
	)

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:     logger,
		Runner:     runner,
		Sessions:   sessions,
		Pool:       pool,
		IsDev:      cfg.IsDev(),
		TrustProxy: trustProxy(),
		RateBurst:  cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", addr,
		"api", "/api/agent",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
