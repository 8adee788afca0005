package worker

import (
	"context"
	"errors"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/config"
	"github.com/YouHyuksoo/HANES-sub002/internal/logger"
	"github.com/YouHyuksoo/HANES-sub002/internal/queue"
	"github.com/YouHyuksoo/HANES-sub002/internal/service"

	"github.com/hibiken/asynq"
)

const (
	pendingSweepInterval = time.Minute
	pendingSweepGrace    = 2 * time.Minute
	pendingSweepBatch    = 100
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.QueueClient.Enabled() {
		go s.runPendingSweepLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

func (s *Service) runPendingSweepLoop(ctx context.Context) {
	runOnce := func() {
		if _, err := s.consumer.RequeuePending(ctx, s.consumer.QueueClient, time.Now()); err != nil {
			logger.Warnw("worker_pending_sweep_failed", "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(pendingSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// RequeuePending 重新投递提交后入队失败、迟迟未通知的事件
func (c *Consumer) RequeuePending(ctx context.Context, publisher service.ShipmentEventPublisher, now time.Time) (int, error) {
	if c == nil || publisher == nil {
		return 0, nil
	}
	events, err := c.ShipmentEventRepo.WithTx(c.DB.WithContext(ctx)).ListPending(pendingSweepBatch)
	if err != nil {
		return 0, err
	}
	cutoff := now.Add(-pendingSweepGrace)
	requeued := 0
	for _, event := range events {
		if event.CreatedAt.After(cutoff) {
			continue
		}
		payload := queue.ShipmentEventPayload{
			EventID:    event.ID,
			ShipmentID: event.ShipmentID,
			ShipNo:     event.ShipNo,
			FromStatus: event.FromStatus,
			ToStatus:   event.ToStatus,
			Kind:       event.Kind,
		}
		if err := publisher.EnqueueShipmentEvent(payload); err != nil {
			logger.Warnw("worker_pending_requeue_failed", "event_id", event.ID, "error", err)
			continue
		}
		requeued++
	}
	if requeued > 0 {
		logger.Infow("worker_pending_requeued", "count", requeued)
	}
	return requeued, nil
}
