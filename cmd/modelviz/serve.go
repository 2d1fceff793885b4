package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/modelviz/modelviz/internal/config"
	"github.com/modelviz/modelviz/internal/inspect"
	"github.com/modelviz/modelviz/internal/inspect/adapter"
	"github.com/modelviz/modelviz/internal/inspect/schema"
	"github.com/modelviz/modelviz/internal/observability"
	"github.com/modelviz/modelviz/internal/web"
)

var (
	servePort int
	serveDev  bool
)

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override the configured listen port")
	serveCmd.Flags().BoolVar(&serveDev, "dev", false, "Use the human-readable console log encoder")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the introspection API server",
	Long:  "Detect the mapping layer, load the model definitions, and serve the introspection API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		logger, err := observability.NewLogger(cfg.LogLevel, serveDev)
		if err != nil {
			return err
		}
		defer logger.Sync()

		inspector, err := buildInspector(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		assistant := web.NewAssistant(cfg.Assistant.Command)
		handler := web.NewHandler(inspector, assistant, logger)

		server, err := web.NewServer(web.DefaultServerConfig(cfg.Server.Addr(), handler.Router()))
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		color.Green("modelviz listening on http://%s", cfg.Server.Addr())

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return fmt.Errorf("server stopped: %w", err)
		case sig := <-sigCh:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		}
	},
}

// buildInspector loads the model definitions, detects the mapping layer,
// and wires the engine. Detection failure is fatal here, at startup.
func buildInspector(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*inspect.Inspector, error) {
	registry, err := schema.LoadFile(cfg.SchemaFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load model definitions: %w", err)
	}
	logger.Info("model definitions loaded",
		zap.String("file", cfg.SchemaFile),
		zap.Int("models", registry.Len()))

	mapped, err := adapter.Detect(ctx, adapter.Config{
		DatabaseURL:   cfg.Database.URL,
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	}, registry, logger)
	if err != nil {
		return nil, err
	}

	return inspect.New(mapped, registry, inspect.Options{
		RelationLimit:      cfg.RelationLimit,
		ExcludedModels:     cfg.ExcludedModels,
		ExcludedAttributes: cfg.ExcludedAttributes,
	}, logger), nil
}
