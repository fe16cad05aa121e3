package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/qbank/internal/core"
	"github.com/JonMunkholm/qbank/internal/notify"
	"github.com/JonMunkholm/qbank/internal/source"
	"github.com/JonMunkholm/qbank/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server that triggers imports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx)
		},
	}
}

func (a *app) runServe(ctx context.Context) error {
	src, err := source.Open(ctx, a.cfg.Import.Source)
	if err != nil {
		return withExitCode(exitSource, err)
	}
	defer src.Close()

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	mapper, err := a.newMapper()
	if err != nil {
		return err
	}

	notifier := notify.New(a.cfg.Notify)
	defer notifier.Close()

	im := core.NewImporter(src, st, mapper,
		core.NewBatchWriter(st, a.cfg.Import.BatchSize, core.WithFailedDir(a.cfg.Import.FailedDir)),
		core.WithMaxFileSize(a.cfg.Import.MaxFileSize),
		core.WithNotifier(notifier),
	)
	server := web.NewServer(a.cfg.Server, im, st, a.cfg.Import.MaxFileSize)

	slog.Info("configuration loaded",
		"addr", a.cfg.Server.Addr(),
		"backend", a.cfg.Store.Backend,
		"source", src.Location(),
		"api_keys", len(a.cfg.Server.APIKeys),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("runs did not complete in time", "error", err)
			return err
		}
		slog.Info("server stopped")
		return nil
	})

	return g.Wait()
}
