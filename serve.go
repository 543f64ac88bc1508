package minetchat

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds how long in-flight streams get to finish on shutdown.
const ShutdownTimeout = 30 * time.Second

// Serve runs the HTTP server and the retention job until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if a.Retention != nil {
		if err := a.Retention.Start(); err != nil {
			return err
		}
		defer a.Retention.Stop()
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		<-egCtx.Done()
		a.Logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "server shutdown failed")
		}
		a.Logger.Info().Msg("server shutdown complete")
		return nil
	})

	eg.Go(func() error {
		a.Logger.Info().Str("addr", a.Config.Addr).Str("relay_path", a.Config.RelayPath).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server listen failed")
		}
		return nil
	})

	return eg.Wait()
}
