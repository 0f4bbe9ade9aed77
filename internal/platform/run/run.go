package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Runner drives a service until it fails or a signal arrives, then gives
// OnDone hooks up to ShutdownTimeout to finish.
type Runner struct {
	Logger          *zap.Logger
	ShutdownTimeout time.Duration

	mu    sync.Mutex
	hooks []chan struct{}
}

func New(log *zap.Logger) *Runner {
	return &Runner{Logger: log, ShutdownTimeout: 10 * time.Second}
}

func (r *Runner) WithSignals(start func(ctx context.Context) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return r.run(ctx, start)
}

func (r *Runner) run(ctx context.Context, start func(ctx context.Context) error) int {
	errCh := make(chan error, 1)
	go func() {
		errCh <- start(ctx)
	}()

	select {
	case <-ctx.Done():
		r.Logger.Info("shutdown signal received", zap.Duration("timeout", r.ShutdownTimeout))
		r.waitHooks()
		return 0
	case err := <-errCh:
		// ListenAndServe returns as soon as Shutdown begins.
		if ctx.Err() != nil {
			r.waitHooks()
		}
		if err == nil {
			return 0
		}
		if errors.Is(err, http.ErrServerClosed) {
			return 0
		}
		r.Logger.Error("service exited with error", zap.Error(err))
		return 1
	}
}

// waitHooks blocks until every registered hook returned or the shutdown
// budget is spent.
func (r *Runner) waitHooks() {
	r.mu.Lock()
	hooks := append([]chan struct{}(nil), r.hooks...)
	r.mu.Unlock()

	deadline := time.NewTimer(r.ShutdownTimeout)
	defer deadline.Stop()
	for _, done := range hooks {
		select {
		case <-done:
		case <-deadline.C:
			r.Logger.Warn("shutdown hooks still running after timeout")
			return
		}
	}
}

// OnDone runs shutdown with a bounded context once ctx is cancelled.
func (r *Runner) OnDone(ctx context.Context, shutdown func(context.Context) error) {
	done := make(chan struct{})
	r.mu.Lock()
	r.hooks = append(r.hooks, done)
	r.mu.Unlock()

	go func() {
		defer close(done)
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), r.ShutdownTimeout)
		defer cancel()
		if err := shutdown(c); err != nil {
			r.Logger.Warn("graceful shutdown failed", zap.Error(err))
		}
	}()
}

func Exit(code int) {
	os.Exit(code)
}
