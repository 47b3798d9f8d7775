package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/autodev/internal/config"
	perrors "github.com/p-blackswan/autodev/internal/errors"
	"github.com/p-blackswan/autodev/internal/health"
	"github.com/p-blackswan/autodev/internal/manager"
	"github.com/p-blackswan/autodev/internal/metrics"
	"github.com/p-blackswan/autodev/internal/tool"
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Run the agents for a project request and print the fact sheet",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProject(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runProject(ctx context.Context, request string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	progress := health.NewProgress()

	st, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	if st != nil {
		defer st.Close()
	}

	if cfg.MetricsAddr != "" {
		checker := health.NewChecker(logger)
		checker.Register("template", health.FileCheck(cfg.TemplatePath))
		if st != nil {
			checker.Register("store", health.PingCheck(st.Ping))
		}
		srv := serveMetrics(cfg.MetricsAddr, m, checker, progress, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("metrics server shutdown")
			}
		}()
	}

	ws := newWorkspace(cfg, logger)
	deps := manager.Deps{
		Requester:   newRequester(cfg, m, logger),
		Files:       ws,
		Checker:     tool.NewURLChecker(cfg.URLCheckTimeout, logger),
		MaxBugFixes: cfg.MaxBugFixes,
		Store:       st,
		Metrics:     m,
		Observer:    progress,
		Logger:      logger,
	}
	if cfg.VerifyEnabled() {
		deps.Verifier = tool.NewCommandVerifier(cfg.VerifyCommand, ws.OutputDir(), cfg.VerifyTimeout, logger)
	}

	logConfig(logger, cfg)

	mgr, err := manager.New(ctx, request, deps)
	if err != nil {
		return explainFailure(err)
	}
	fs, err := mgr.ExecuteProject(ctx)
	if err != nil {
		return explainFailure(err)
	}

	fmt.Fprintln(os.Stdout, fs.JSON())
	return nil
}

// explainFailure adds an operator hint to errors with a known remedy.
func explainFailure(err error) error {
	if errors.Is(err, perrors.ErrAuthFailure) {
		return fmt.Errorf("%w (check OPEN_AI_KEY and OPEN_AI_ORG)", err)
	}
	return err
}

func serveMetrics(addr string, m *metrics.Metrics, checker *health.Checker, progress *health.Progress, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/health", health.LivenessHandler())
	mux.Handle("/ready", checker.ReadinessHandler())
	mux.Handle("/progress", progress.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	return srv
}

func logConfig(logger zerolog.Logger, cfg *config.Config) {
	logger.Info().
		Str("environment", cfg.Environment).
		Str("model", cfg.OpenAIModel).
		Str("output", cfg.OutputPath).
		Bool("store_enabled", cfg.StoreEnabled()).
		Bool("verify_enabled", cfg.VerifyEnabled()).
		Msg("starting project run")
}
