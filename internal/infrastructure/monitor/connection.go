package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lexdesk/officeauth/internal/infrastructure/buffer"
	pgclient "github.com/lexdesk/officeauth/internal/infrastructure/postgres"
	redisclient "github.com/lexdesk/officeauth/internal/infrastructure/redis"
)

// Probe checks one dependency.
type Probe func(ctx context.Context) error

// Probes groups the checks the monitor runs on every tick. Nil probes report unhealthy.
type Probes struct {
	Postgres Probe
	Redis    Probe
	Buffer   func() (int, error)
}

// ProbesFor builds probes from live clients; nil clients yield nil probes.
func ProbesFor(pg *pgxpool.Pool, redis *redislib.Client, buf *buffer.Store) Probes {
	var p Probes
	if pg != nil {
		p.Postgres = func(ctx context.Context) error { return pgclient.Ping(ctx, pg) }
	}
	if redis != nil {
		p.Redis = func(ctx context.Context) error { return redisclient.Ping(ctx, redis) }
	}
	if buf != nil {
		p.Buffer = buf.Size
	}
	return p
}

// Monitor tracks whether the profile store and session store are reachable.
type Monitor struct {
	probes Probes

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(probes Probes, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		probes:   probes,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether Postgres and Redis answered the last probe.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.PostgreSQL && m.status.Redis
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every probe once and publishes the result.
func (m *Monitor) Refresh(ctx context.Context) Status {
	bufferOK, bufferSize := m.checkBuffer()
	status := Status{
		PostgreSQL: m.check(ctx, "postgres", m.probes.Postgres, 3*time.Second),
		Redis:      m.check(ctx, "redis", m.probes.Redis, 2*time.Second),
		Buffer:     bufferOK,
		BufferSize: bufferSize,
		LastCheck:  time.Now(),
	}

	m.mu.Lock()
	previous := m.status
	m.status = status
	m.mu.Unlock()

	if !previous.LastCheck.IsZero() && previous.Online() != status.Online() {
		m.logger.Warn("datastore connectivity changed", zap.Bool("online", status.Online()))
	}
	return status
}

func (m *Monitor) check(ctx context.Context, name string, probe Probe, timeout time.Duration) bool {
	if probe == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := probe(ctx); err != nil {
		m.logger.Debug("probe failed", zap.String("dependency", name), zap.Error(err))
		return false
	}
	return true
}

func (m *Monitor) checkBuffer() (bool, int) {
	if m.probes.Buffer == nil {
		return false, 0
	}
	size, err := m.probes.Buffer()
	if err != nil {
		m.logger.Warn("buffer size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}
