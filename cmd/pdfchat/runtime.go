package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/pdfchat/internal/app"
	"github.com/fyrsmithlabs/pdfchat/internal/config"
	httpserver "github.com/fyrsmithlabs/pdfchat/internal/http"
	"github.com/fyrsmithlabs/pdfchat/internal/logging"
	"github.com/fyrsmithlabs/pdfchat/internal/telemetry"
)

// appOptions are appended to every app.Build and app.Load call. Tests use
// it to replace the extractor, embedder and chat model.
var appOptions []app.Option

// runtime holds the ambient services of one command invocation.
type runtime struct {
	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry
}

type setupOptions struct {
	// quiet discards console logs, for full-screen output.
	quiet bool
}

// setup loads configuration and starts logging and telemetry.
func setup(cmd *cobra.Command, so setupOptions) (*runtime, error) {
	ctx := cmd.Context()

	cfg, err := config.Load(flags.configPath, overrides(cmd))
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, err
	}

	logCfg, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	logCfg.Output.Sink = zapcore.AddSync(cmd.ErrOrStderr())
	if so.quiet {
		logCfg.Output.Sink = zapcore.AddSync(io.Discard)
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	logger.Debug(ctx, "configuration loaded",
		zap.String("pdf_document", cfg.PDFDocument),
		zap.String("model", cfg.Model),
		zap.String("search_type", cfg.SearchType),
		zap.Int("k_documents", cfg.KDocuments),
		logging.Secret("generation.api_key", cfg.Generation.APIKey))

	return &runtime{cfg: cfg, logger: logger, tel: tel}, nil
}

func (r *runtime) buildOptions() []app.Option {
	return append([]app.Option{app.WithLogger(r.logger)}, appOptions...)
}

func (r *runtime) build(ctx context.Context) (*app.App, error) {
	return app.Build(ctx, r.cfg, r.buildOptions()...)
}

// close flushes telemetry with a fresh deadline so it still runs after the
// command context was cancelled.
func (r *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Telemetry.Shutdown.Duration())
	defer cancel()
	if err := r.tel.Shutdown(ctx); err != nil {
		r.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	_ = r.logger.Sync()
}

// serve starts the health and metrics endpoint when enabled. The returned
// function stops it.
func (r *runtime) serve(ctx context.Context, a *app.App) (func(), error) {
	if !r.cfg.Server.Enabled {
		return func() {}, nil
	}

	zl := r.logger.Underlying().Named("http")
	srv, err := httpserver.NewServer(zl, &httpserver.Config{
		Host:    r.cfg.Server.Host,
		Port:    r.cfg.Server.Port,
		Version: version,
	}, httpserver.Deps{
		Chain:       a.Chain,
		Index:       a.Index,
		Telemetry:   r.tel,
		HTTPMetrics: httpserver.NewHTTPMetrics(r.tel.Meter("pdfchat.http"), zl),
	})
	if err != nil {
		return nil, err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	// Surface bind failures before the command starts its own output.
	select {
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
		return nil, errors.New("http server stopped unexpectedly")
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn(shutdownCtx, "http shutdown failed", zap.Error(err))
		}
	}, nil
}
