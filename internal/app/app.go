package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jb-platform/fileserver/internal/transport"
)

type app struct {
	di  *dependencyInjector
	srv *http.Server
}

func New(ctx context.Context) *app {
	di := newDI()
	di.Logger()
	mux := http.NewServeMux()
	return &app{
		di: di,
		srv: &http.Server{
			Addr: di.Config().Addr,
			Handler: transport.WithRecover(
				transport.LogMiddleware(
					di.Router(ctx).MountRoutes(mux),
				),
			),
		},
	}
}

func (a *app) Run(ctx context.Context) error {
	// Workers run on their own context so a shutdown signal does not abort
	// in-flight jobs; Stop below bounds the drain instead.
	a.di.Scheduler().Start(context.Background())
	a.di.Registry().StartCleanup(ctx)

	errCh := make(chan error)
	go func() {
		slog.Info("starting server", slog.String("addr", a.srv.Addr))
		if e := a.srv.ListenAndServe(); e != nil && !errors.Is(e, http.ErrServerClosed) {
			slog.Error("server error", slog.String("error", e.Error()))
			errCh <- e
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		a.di.Config().ShutdownTimeout,
	)
	defer cancel()

	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
		return err
	}

	// In-flight thumbnail and analysis jobs get the rest of the shutdown
	// window to finish.
	if err := a.di.Scheduler().Stop(shutdownCtx); err != nil {
		slog.Warn("scheduler drain incomplete", slog.String("error", err.Error()))
	}

	if nc := a.di.natsConn; nc != nil {
		nc.Close()
	}
	if rdb := a.di.redis; rdb != nil {
		if err := rdb.Close(); err != nil {
			slog.Warn("redis close error", slog.String("error", err.Error()))
		}
	}

	slog.Info("server gracefully stopped")
	return nil
}
