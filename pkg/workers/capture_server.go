package workers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// captureServer is the backend HTTP worker: it owns the listener
// lifecycle and shuts down gracefully with the group context.
type captureServer struct {
	srv *http.Server
}

func NewCaptureServer(addr string, handler http.Handler) (*captureServer, error) {
	return &captureServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func (c *captureServer) Name() string { return "capture_server" }

func (c *captureServer) Start(ctx context.Context) error {
	slog.Info("Starting worker", "name", c.Name(), "addr", c.srv.Addr)
	defer slog.Info("Worker stopped", "name", c.Name())

	errCh := make(chan error, 1)
	go func() {
		if err := c.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return c.srv.Shutdown(shutdownCtx)
	}
}
