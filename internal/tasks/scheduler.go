package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"draw_queue/internal/queue"

	"github.com/robfig/cron/v3"
)

// Sweeper is the work run on every tick.
type Sweeper interface {
	Sweep(ctx context.Context) (queue.SweepResult, error)
}

// Scheduler запускает уборку очередей с фиксированным интервалом. Тик, пришедший пока
// предыдущая уборка ещё идёт, пропускается.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	every   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(sweeper Sweeper, every time.Duration) (*Scheduler, error) {
	if every <= 0 {
		return nil, fmt.Errorf("reap interval must be positive, got %s", every)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		sweeper: sweeper,
		every:   every,
		ctx:     ctx,
		cancel:  cancel,
	}
	if _, err := s.cron.AddFunc("@every "+every.String(), s.tick); err != nil {
		cancel()
		return nil, fmt.Errorf("can't schedule reaper: %w", err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	if _, err := s.sweeper.Sweep(s.ctx); err != nil && s.ctx.Err() == nil {
		slog.Default().ErrorContext(s.ctx, "reaper sweep failed",
			slog.String("err", err.Error()),
		)
	}
}

// Start запускает планировщик в отдельной горутине.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Default().Info("reaper scheduler started",
		slog.Duration("every", s.every),
	)
}

// Stop cancels a running sweep and waits for it to return, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	slog.Default().Info("reaper scheduler stopped")
}
