package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"draw_queue/internal/queue"
	"draw_queue/internal/tasks"

	"github.com/spf13/cobra"
)

var reapOnce bool

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Expire abandoned queue entries",
	Long: `Runs the reaper outside of serve. With --once a single sweep is made and its
summary printed; otherwise sweeps repeat on the configured interval until interrupted.
Run serve with queue.reaper_enabled=false when the reaper lives in its own process.`,
	RunE: runReap,
}

func init() {
	reapCmd.Flags().BoolVar(&reapOnce, "once", false, "run a single sweep and exit")
}

func runReap(cmd *cobra.Command, _ []string) error {
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
	go a.run(ctx)

	reaper := queue.NewReaper(a.engine)
	if reapOnce {
		res, err := reaper.Sweep(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "products=%d expired_active=%d expired_waiting=%d promoted=%d\n",
			res.Products, res.ExpiredActive, res.ExpiredWaiting, res.Promoted)
		return err
	}

	sched, err := tasks.NewScheduler(reaper, c.Queue.ReapEvery())
	if err != nil {
		return err
	}
	sched.Start()
	<-ctx.Done()
	slog.Default().Warn("signal received, stopping reaper")

	sctx, cancel := context.WithTimeout(context.Background(), c.HTTP.ShutdownTimeout)
	defer cancel()
	sched.Stop(sctx)
	return nil
}
