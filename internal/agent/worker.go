package agent

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"vargasjr/internal/action"
	"vargasjr/internal/metrics"

	"github.com/google/uuid"
)

const defaultPollInterval = 5 * time.Second

// Runner is what the worker drives each iteration.
type Runner interface {
	Run(ctx context.Context, req Request) RunOutput
}

// WorkerConfig configures the poll loop.
type WorkerConfig struct {
	Runner   Runner
	Interval time.Duration
	Variant  action.Variant
	Logger   *slog.Logger
	// OnRun, when set, receives every run's output.
	OnRun func(RunOutput)
}

// Worker polls the inbox: run, sleep, repeat.
type Worker struct {
	runner   Runner
	interval time.Duration
	variant  action.Variant
	logger   *slog.Logger
	onRun    func(RunOutput)
}

func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Worker{
		runner:   cfg.Runner,
		interval: cfg.Interval,
		variant:  cfg.Variant,
		logger:   cfg.Logger,
		onRun:    cfg.OnRun,
	}
}

// Run loops until ctx is done. Cancellation is observed only between
// iterations: a run that has started always completes.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "interval", w.interval, "variant", w.variant)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return nil
		case <-timer.C:
		}
		w.runOnce(context.WithoutCancel(ctx))
		timer.Reset(w.interval)
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	execID := uuid.NewString()
	defer func() {
		if p := recover(); p != nil {
			metrics.RunPanics.Inc()
			w.logger.Error("run panicked", "execution_id", execID, "panic", p, "stack", string(debug.Stack()))
		}
	}()
	out := w.runner.Run(ctx, Request{ExecutionID: execID, Variant: w.variant})
	if w.onRun != nil {
		w.onRun(out)
	}
}
