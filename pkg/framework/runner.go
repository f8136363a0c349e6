package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"
)

// ErrForcedExit is returned by Wait when a second stop signal arrives
// before the Runnables stopped.
var ErrForcedExit = errors.New("forced exit")

// Runner runs Runnables in the background and owns the resources they
// use: once every Runnable stopped, the closers registered with OnStop
// are closed in reverse order. A failing Runnable doesn't stop the
// others, all failures are reported by Wait.
type Runner struct {
	Context context.Context

	group   errgroup.Group
	count   int
	closers []io.Closer

	lock sync.Mutex
	errs AggregatedError

	exitCh chan struct{}
}

// NewRunner creates a runner with a default background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner with a specified context.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{Context: ctx, exitCh: make(chan struct{})}
}

// HandleSignals cancels the context on CtrlC or SIGTERM. A second signal
// makes Wait return without waiting for the Runnables.
func (r *Runner) HandleSignals() *Runner {
	ctx, cancel := context.WithCancel(r.Context)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	r.Context = ctx
	go func() {
		<-sigCh
		glog.Info("stop requested, shutting down")
		cancel()
		<-sigCh
		glog.Error("stop requested again, forcing exit")
		close(r.exitCh)
	}()
	return r
}

// OnStop registers resources released after all Runnables stopped.
func (r *Runner) OnStop(closers ...io.Closer) *Runner {
	r.closers = append(r.closers, closers...)
	return r
}

// Go spawns Runnables with the runner's context.
func (r *Runner) Go(runners ...Runnable) *Runner {
	return r.GoWith(r.Context, runners...)
}

// GoWith spawns Runnables with a specified context.
func (r *Runner) GoWith(ctx context.Context, runners ...Runnable) *Runner {
	for _, runner := range runners {
		runner, name := runner, r.nameOf(runner)
		r.count++
		r.group.Go(func() error {
			glog.V(4).Infof("Runner[%s] started", name)
			err := runner.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				glog.Warningf("Runner[%s] failed: %v", name, err)
				r.fail(err)
				return err
			}
			glog.V(4).Infof("Runner[%s] stopped", name)
			return nil
		})
	}
	return r
}

func (r *Runner) nameOf(runner Runnable) string {
	if named, ok := runner.(Named); ok {
		return named.Name()
	}
	return fmt.Sprintf("%d:%T", r.count, runner)
}

func (r *Runner) fail(err error) {
	r.lock.Lock()
	r.errs.Add(err)
	r.lock.Unlock()
}

// Wait waits until all Runnables stop, closes the registered resources
// and aggregates the errors of both. context.Canceled is not an error.
func (r *Runner) Wait() error {
	doneCh := make(chan struct{})
	go func() {
		r.group.Wait()
		close(doneCh)
	}()
	select {
	case <-r.exitCh:
		return ErrForcedExit
	case <-doneCh:
	}

	closers := r.closers
	r.closers = nil
	for n := len(closers) - 1; n >= 0; n-- {
		if err := closers[n].Close(); err != nil {
			glog.Warningf("close: %v", err)
			r.fail(err)
		}
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	return r.errs.Aggregate()
}

// RunWithContextCancel runs a func which doesn't accept a context.
// onCancel is called only when the context is canceled, and should make
// fn return.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		if onCancel != nil {
			onCancel()
		}
		<-errCh
		return context.Canceled
	case err := <-errCh:
		return err
	}
}
