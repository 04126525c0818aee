package auth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/skybridge-labs/skybridge/internal/logging"
	"github.com/skybridge-labs/skybridge/internal/monitoring"
)

// Notifier receives auth-status broadcasts for external collaborators.
type Notifier interface {
	AuthStatusChanged(authenticated bool, handle string)
}

// Monitor periodically validates the session and drives recovery
// independently of any post attempt. It runs on its own goroutine and
// never blocks, or is blocked by, the posting pipeline.
type Monitor struct {
	auth     *Manager
	interval time.Duration
	notify   Notifier
	log      *logging.Logger
	metrics  *monitoring.Metrics

	once    sync.Once
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// NewMonitor creates a health monitor. notify and metrics may be nil.
func NewMonitor(auth *Manager, interval time.Duration, notify Notifier, log *logging.Logger, metrics *monitoring.Metrics) *Monitor {
	return &Monitor{
		auth:     auth,
		interval: interval,
		notify:   notify,
		log:      log,
		metrics:  metrics,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the periodic check loop.
func (m *Monitor) Start(ctx context.Context) {
	m.started = true
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.log.Info("session health monitor started", zap.Duration("interval", m.interval))
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}

// Stop shuts the loop down and waits for it to exit. Safe to call even
// when the loop was never started.
func (m *Monitor) Stop() {
	m.once.Do(func() { close(m.stop) })
	if m.started {
		<-m.done
	}
}

// Check runs one health tick. With no session it attempts recovery only
// when credentials are remembered; with a session it validates and
// recovers on failure. A status broadcast goes out whenever recovery
// succeeds or the session ends up cleared.
func (m *Monitor) Check(ctx context.Context) {
	m.metrics.RecordHealthCheck()

	session := m.auth.ActiveSession(ctx)
	if session == nil {
		if !m.auth.HasStoredCredentials(ctx) {
			return
		}
		m.log.Info("no session, attempting reconnect with stored credentials")
		m.recoverAndBroadcast(ctx)
		return
	}

	if m.auth.Validate(ctx) {
		m.log.Debug("session healthy", zap.String("handle", session.Handle))
		return
	}

	m.log.Info("session failed validation, attempting recovery")
	m.recoverAndBroadcast(ctx)
}

func (m *Monitor) recoverAndBroadcast(ctx context.Context) {
	if m.auth.Recover(ctx) {
		session := m.auth.Session()
		handle := ""
		if session != nil {
			handle = session.Handle
		}
		m.log.Info("session recovered", zap.String("handle", handle))
		m.broadcast(true, handle)
		return
	}

	m.broadcast(false, "")
}

func (m *Monitor) broadcast(authenticated bool, handle string) {
	if m.notify == nil {
		return
	}
	m.notify.AuthStatusChanged(authenticated, handle)
}
