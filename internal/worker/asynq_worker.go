package worker

import (
	"context"

	"github.com/YouHyuksoo/HANES-sub002/internal/logger"
	"github.com/YouHyuksoo/HANES-sub002/internal/provider"
	"github.com/YouHyuksoo/HANES-sub002/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskShipmentEvent, c.HandleShipmentEvent)
}

// HandleShipmentEvent 转发出货单状态事件；已出货的单据保证处于待 ERP 同步状态
func (c *Consumer) HandleShipmentEvent(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_shipment_event_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	err := c.relayShipmentEvent(ctx, task)
	result := "success"
	if err != nil {
		result = "error"
	}
	c.Metrics.IncTaskResult(queue.TaskShipmentEvent, result)
	return err
}

func (c *Consumer) relayShipmentEvent(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseShipmentEventPayload(task)
	if err != nil {
		logger.Warnw("worker_shipment_event_unmarshal_failed", "error", err)
		return err
	}
	if payload.EventID == 0 || payload.ShipmentID == 0 {
		logger.Debugw("worker_shipment_event_skip_invalid_payload", "event_id", payload.EventID, "shipment_id", payload.ShipmentID)
		return nil
	}
	log := logger.SW("event_id", payload.EventID, "shipment_id", payload.ShipmentID)

	ack, err := c.ShipmentService.AcknowledgeEvent(ctx, payload.EventID)
	if err != nil {
		log.Warnw("worker_shipment_event_ack_failed", "error", err)
		return err
	}
	if ack.Skipped {
		log.Debugw("worker_shipment_event_skip", "found", ack.Event != nil)
		return nil
	}
	event := ack.Event
	if ack.Shipment == nil {
		log.Infow("worker_shipment_event_shipment_gone", "ship_no", event.ShipNo)
		return nil
	}
	log.Infow("worker_shipment_event_relayed",
		"ship_no", event.ShipNo,
		"from_status", event.FromStatus,
		"to_status", event.ToStatus,
		"kind", event.Kind,
		"current_status", ack.Shipment.Status,
		"erp_flag_reset", ack.ErpFlagReset,
		"part_ids", payload.PartIDs,
	)
	return nil
}
