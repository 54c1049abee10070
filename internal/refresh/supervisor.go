// Package refresh owns the on-demand refresh lifecycle: one tracking
// run at a time, a status object read under its lock, and status
// fan-out for dashboard subscribers.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/pkg/logger"
)

// ErrRefreshRunning is returned by Trigger while a refresh is already
// in flight.
var ErrRefreshRunning = errors.New("refresh already running")

const (
	defaultTimeout   = 10 * time.Minute
	subscriberBuffer = 16
)

// ProgressFunc receives progress updates from a running refresh.
type ProgressFunc func(progress contracts.RefreshProgress)

// Runner executes one tracking run, reporting progress through the
// callback.
type Runner interface {
	Run(ctx context.Context, report ProgressFunc) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, report ProgressFunc) error

func (f RunnerFunc) Run(ctx context.Context, report ProgressFunc) error {
	return f(ctx, report)
}

// Supervisor serializes refresh runs and publishes their status.
type Supervisor struct {
	runner  Runner
	timeout time.Duration
	logger  *logger.Logger
	now     func() time.Time

	mu          sync.Mutex
	status      contracts.RefreshStatus
	subscribers map[chan contracts.RefreshStatus]struct{}
}

// New creates a supervisor. A non-positive timeout falls back to the
// 10 minute default.
func New(runner Runner, timeout time.Duration, log *logger.Logger) *Supervisor {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Supervisor{
		runner:      runner,
		timeout:     timeout,
		logger:      log,
		now:         time.Now,
		status:      contracts.RefreshStatus{LastStatus: contracts.RefreshIdle},
		subscribers: make(map[chan contracts.RefreshStatus]struct{}),
	}
}

// Trigger starts a refresh in the background. While one is in flight,
// further triggers return ErrRefreshRunning.
func (s *Supervisor) Trigger() error {
	s.mu.Lock()
	if s.status.Running {
		s.mu.Unlock()
		return ErrRefreshRunning
	}
	started := s.now()
	s.status = contracts.RefreshStatus{
		Running:    true,
		StartedAt:  &started,
		LastStatus: contracts.RefreshRunning,
		Progress:   contracts.RefreshProgress{Stage: "starting"},
	}
	s.broadcastLocked()
	s.mu.Unlock()

	s.logger.Info("Refresh started")
	go s.run()
	return nil
}

// TriggerAndWait runs a refresh and blocks until it reaches a terminal
// state. The scheduler job uses this; the API trigger endpoint uses
// Trigger.
func (s *Supervisor) TriggerAndWait(ctx context.Context) error {
	updates := s.Subscribe()
	defer s.Unsubscribe(updates)

	if err := s.Trigger(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case status, ok := <-updates:
			if !ok {
				return errors.New("refresh status stream closed")
			}
			if !status.LastStatus.Terminal() {
				continue
			}
			if status.LastStatus == contracts.RefreshSuccess {
				return nil
			}
			if status.LastError != "" {
				return fmt.Errorf("refresh %s: %s", status.LastStatus, status.LastError)
			}
			return fmt.Errorf("refresh %s", status.LastStatus)
		}
	}
}

// Status returns a copy of the current refresh status.
func (s *Supervisor) Status() contracts.RefreshStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Subscribe registers a status listener. The channel is buffered and
// sends never block; a subscriber that stops draining misses updates
// instead of stalling the refresh.
func (s *Supervisor) Subscribe() chan contracts.RefreshStatus {
	ch := make(chan contracts.RefreshStatus, subscriberBuffer)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes the listener and closes its channel.
func (s *Supervisor) Unsubscribe(ch chan contracts.RefreshStatus) {
	s.mu.Lock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()
}

func (s *Supervisor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.runner.Run(ctx, s.reportProgress)

	var state contracts.RefreshState
	var message string
	switch {
	case err == nil:
		state = contracts.RefreshSuccess
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		state = contracts.RefreshTimeout
		message = fmt.Sprintf("refresh timed out after %s", s.timeout)
	default:
		state = contracts.RefreshError
		message = err.Error()
	}

	s.mu.Lock()
	finished := s.now()
	s.status.Running = false
	s.status.FinishedAt = &finished
	s.status.LastStatus = state
	s.status.LastError = message
	if state == contracts.RefreshSuccess {
		s.status.Progress.Stage = "done"
	}
	s.broadcastLocked()
	s.mu.Unlock()

	switch state {
	case contracts.RefreshSuccess:
		s.logger.Info("Refresh completed")
	case contracts.RefreshTimeout:
		s.logger.WithField("timeout", s.timeout.String()).Error("Refresh timed out")
	default:
		s.logger.WithField("error", message).Error("Refresh failed")
	}
}

// reportProgress is handed to the runner; each call replaces the
// progress block and fans the updated status out.
func (s *Supervisor) reportProgress(progress contracts.RefreshProgress) {
	s.mu.Lock()
	s.status.Progress = progress
	s.broadcastLocked()
	s.mu.Unlock()
}

// broadcastLocked sends the current status to every subscriber without
// blocking. A slow subscriber may miss progress updates, but never a
// terminal state: those evict the oldest buffered update to make room.
// Callers hold mu, so no other send can refill the freed slot.
func (s *Supervisor) broadcastLocked() {
	terminal := !s.status.Running && s.status.LastStatus.Terminal()
	for ch := range s.subscribers {
		select {
		case ch <- s.status:
			continue
		default:
		}
		if !terminal {
			continue
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.status:
		default:
		}
	}
}
