package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/lexdesk/officeauth/domain"
	"github.com/lexdesk/officeauth/internal/infrastructure/buffer"
	"github.com/lexdesk/officeauth/repository"
)

// ConnectionHealth reports whether the primary datastores are reachable.
type ConnectionHealth interface {
	IsOnline() bool
}

// ReplayObserver is told about every replay outcome.
type ReplayObserver interface {
	ObserveReplay(entity string, ok bool)
}

// ProcessorConfig controls how often pending profile writes are replayed.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// BufferProcessor replays buffered profile writes against Postgres.
type BufferProcessor struct {
	store    *buffer.Store
	monitor  ConnectionHealth
	profiles repository.ProfileRepository
	observer ReplayObserver
	logger   *zap.Logger
	cron     *cron.Cron
	cfg      ProcessorConfig
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	profiles repository.ProfileRepository,
	observer ReplayObserver,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:    store,
		monitor:  monitor,
		profiles: profiles,
		observer: observer,
		logger:   logger,
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = bp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := bp.Drain(ctx); err != nil {
			bp.logger.Error("profile write replay failed", zap.Error(err))
		}
	})
	_, _ = bp.cron.AddFunc("@hourly", func() {
		dropped, err := bp.store.Cleanup(time.Now().Add(-cfg.Retention))
		if err != nil {
			bp.logger.Warn("buffer cleanup failed", zap.Error(err))
			return
		}
		if dropped > 0 {
			bp.logger.Warn("expired buffered profile writes dropped", zap.Int("count", dropped))
		}
	})

	return bp
}

func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started", zap.Duration("interval", bp.cfg.Interval))
}

// Stop waits for a running replay or for ctx, whichever ends first.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	bp.logger.Info("buffer processor stopped")
}

// Drain replays one batch synchronously.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil {
		return nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping replay, datastores offline")
		return nil
	}

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		err := bp.apply(ctx, item)
		bp.observe(item.Entity, err == nil)
		if err == nil {
			if err := bp.store.Remove(item); err != nil {
				bp.logger.Warn("failed to purge replayed item", zap.String("item_id", item.ID), zap.Error(err))
			}
			continue
		}

		bp.logger.Error("failed to replay profile write",
			zap.String("item_id", item.ID),
			zap.String("user_id", item.UserID),
			zap.String("entity", item.Entity),
			zap.Error(err))

		item.Retries++
		if item.Retries >= bp.cfg.MaxRetries {
			bp.logger.Warn("dropping profile write (max retries reached)",
				zap.String("item_id", item.ID),
				zap.String("user_id", item.UserID))
			_ = bp.store.Remove(item)
			continue
		}
		if err := bp.store.Requeue(item); err != nil {
			bp.logger.Error("failed to requeue profile write", zap.Error(err))
		}
	}
	return nil
}

// BufferOperation retries the write once when online and persists it otherwise.
func (bp *BufferProcessor) BufferOperation(ctx context.Context, item buffer.Item) error {
	if bp == nil || bp.store == nil {
		return fmt.Errorf("buffer processor not configured")
	}

	if bp.monitor == nil || bp.monitor.IsOnline() {
		err := bp.apply(ctx, item)
		if err == nil {
			bp.observe(item.Entity, true)
			return nil
		}
		bp.logger.Warn("immediate replay failed, buffering", zap.String("user_id", item.UserID), zap.Error(err))
	}
	return bp.store.Enqueue(item)
}

func (bp *BufferProcessor) Size() int {
	if bp == nil || bp.store == nil {
		return 0
	}
	size, err := bp.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (bp *BufferProcessor) apply(ctx context.Context, item buffer.Item) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch item.Entity {
	case buffer.EntityProfile:
		var input repository.EnsureProfileInput
		if err := json.Unmarshal(item.Data, &input); err != nil {
			return err
		}
		_, err := bp.profiles.Ensure(ctx, input)
		return err

	case buffer.EntityProfileRole:
		var rc buffer.RoleCorrection
		if err := json.Unmarshal(item.Data, &rc); err != nil {
			return err
		}
		return bp.profiles.UpdateRole(ctx, rc.UserID, domain.ParseRole(rc.Role))

	default:
		return fmt.Errorf("unsupported entity %s", item.Entity)
	}
}

func (bp *BufferProcessor) observe(entity string, ok bool) {
	if bp.observer != nil {
		bp.observer.ObserveReplay(entity, ok)
	}
}
