package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "draw_queue/docs"
	"draw_queue/internal/auth"
	"draw_queue/internal/handlers"
	"draw_queue/internal/queue"
	"draw_queue/internal/tasks"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the presence streams and the reaper",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	c, err := loadConfig()
	if err != nil {
		return fmt.Errorf("cannot load a config: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, c)
	if err != nil {
		return err
	}
	defer a.close()

	runErr := make(chan error, 1)
	go func() { runErr <- a.run(ctx) }()

	if c.Queue.ReaperEnabled {
		sched, err := tasks.NewScheduler(queue.NewReaper(a.engine), c.Queue.ReapEvery())
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), c.HTTP.ShutdownTimeout)
			defer cancel()
			sched.Stop(sctx)
		}()
	}

	authn := auth.NewAuthenticator(c.Auth.AccessSecret)
	h := handlers.NewQueueHandler(a.engine, a.hub, authn, c.Presence)
	srv := &http.Server{
		Addr:              c.HTTP.Addr(),
		Handler:           handlers.NewRouter(h, authn),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Default().Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		slog.Default().Warn("signal received, shutting down")
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	case err := <-runErr:
		if err != nil {
			return err
		}
	}
	stop()

	sctx, cancel := context.WithTimeout(context.Background(), c.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	slog.Default().Info("http server stopped")
	return nil
}
