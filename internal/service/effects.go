package service

import (
	"context"
	"errors"

	"github.com/YouHyuksoo/HANES-sub002/internal/cache"
	"github.com/YouHyuksoo/HANES-sub002/internal/logger"
	"github.com/YouHyuksoo/HANES-sub002/internal/metrics"
	"github.com/YouHyuksoo/HANES-sub002/internal/models"
	"github.com/YouHyuksoo/HANES-sub002/internal/queue"

	"github.com/hibiken/asynq"
)

// ShipmentEventPublisher 出货事件发布接口
type ShipmentEventPublisher interface {
	EnqueueShipmentEvent(payload queue.ShipmentEventPayload, opts ...asynq.Option) error
}

// commitEffects 事务提交后才执行的副作用
type commitEffects struct {
	palletIDs   []uint
	shipmentIDs []uint
	events      []queue.ShipmentEventPayload
}

func (e *commitEffects) touchPallet(ids ...uint) {
	e.palletIDs = append(e.palletIDs, ids...)
}

func (e *commitEffects) touchShipment(ids ...uint) {
	e.shipmentIDs = append(e.shipmentIDs, ids...)
}

func (e *commitEffects) emit(event *models.ShipmentEvent, partIDs []uint) {
	if event == nil {
		return
	}
	e.events = append(e.events, queue.ShipmentEventPayload{
		EventID:    event.ID,
		ShipmentID: event.ShipmentID,
		ShipNo:     event.ShipNo,
		FromStatus: event.FromStatus,
		ToStatus:   event.ToStatus,
		Kind:       event.Kind,
		PartIDs:    partIDs,
	})
}

// effectRunner 执行提交后副作用，失败只记录日志，不影响已提交结果
type effectRunner struct {
	publisher ShipmentEventPublisher
	metrics   *metrics.ShippingMetrics
}

func (r *effectRunner) flush(ctx context.Context, eff *commitEffects) {
	if eff == nil {
		return
	}
	log := logger.FromContext(ctx)
	if err := cache.InvalidateSummaries(ctx, eff.palletIDs, eff.shipmentIDs); err != nil {
		log.Warnw("shipping_summary_cache_invalidate_failed",
			"pallet_ids", eff.palletIDs,
			"shipment_ids", eff.shipmentIDs,
			"error", err,
		)
	}
	if r == nil || r.publisher == nil {
		return
	}
	for _, payload := range eff.events {
		if err := r.publisher.EnqueueShipmentEvent(payload); err != nil {
			log.Warnw("shipment_event_enqueue_failed",
				"event_id", payload.EventID,
				"shipment_id", payload.ShipmentID,
				"to_status", payload.ToStatus,
				"error", err,
			)
		}
	}
}

// outcomeOf 将错误归类为指标标签
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "error"
	}
}
