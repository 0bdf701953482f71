package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownFunc describes a graceful shutdown callback.
type ShutdownFunc func(ctx context.Context) error

type hook struct {
	name string
	fn   ShutdownFunc
}

// Manager owns the process lifetime: background components started through
// Go, shutdown hooks run in reverse registration order, and OS signals.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	hooks  []hook
	cancel context.CancelFunc

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a lifecycle manager with the desired timeout.
func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a shutdown hook. Hooks are executed in reverse order.
func (m *Manager) Register(name string, fn ShutdownFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// Go runs a long-lived component. If it returns an error the application
// context passed to Listen is cancelled.
func (m *Manager) Go(name string, run func() error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("component panicked", zap.String("component", name), zap.Any("panic", r))
				m.stop()
			}
		}()
		if err := run(); err != nil {
			m.logger.Error("component failed", zap.String("component", name), zap.Error(err))
			m.stop()
		}
	}()
}

// Shutdown executes all registered hooks, respecting the configured timeout.
// Later calls return the result of the first one.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.shutdownErr = m.runHooks(ctx)
	})
	return m.shutdownErr
}

func (m *Manager) runHooks(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.Lock()
	hooks := make([]hook, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	var result error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.fn(ctx); err != nil {
			m.logger.Error("shutdown hook failed", zap.String("component", h.name), zap.Error(err))
			result = errors.Join(result, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		m.logger.Debug("component stopped", zap.String("component", h.name))
	}
	if err := ctx.Err(); err != nil && result == nil {
		result = fmt.Errorf("lifecycle: shutdown exceeded %s: %w", m.timeout, err)
	}
	return result
}

// Listen cancels the application context on SIGTERM or SIGINT, or when a
// component started with Go fails.
func (m *Manager) Listen(cancel context.CancelFunc) {
	if cancel == nil {
		return
	}
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigCh)
		sig := <-sigCh
		m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()
}

func (m *Manager) stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
