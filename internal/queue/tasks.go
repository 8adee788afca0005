package queue

import (
	"encoding/json"
	"errors"

	"github.com/YouHyuksoo/HANES-sub002/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskShipmentEvent 出货单状态事件通知任务
	TaskShipmentEvent = constants.TaskShipmentEvent
)

// ShipmentEventPayload 出货单事件任务载荷
type ShipmentEventPayload struct {
	EventID    uint   `json:"event_id"`
	ShipmentID uint   `json:"shipment_id"`
	ShipNo     string `json:"ship_no"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Kind       string `json:"kind"`
	PartIDs    []uint `json:"part_ids,omitempty"`
}

// NewShipmentEventTask 创建出货单事件任务
func NewShipmentEventTask(payload ShipmentEventPayload) (*asynq.Task, error) {
	if payload.EventID == 0 || payload.ShipmentID == 0 {
		return nil, errors.New("shipment event payload missing ids")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskShipmentEvent, body), nil
}

// ParseShipmentEventPayload 解析出货单事件载荷
func ParseShipmentEventPayload(task *asynq.Task) (ShipmentEventPayload, error) {
	var payload ShipmentEventPayload
	if task == nil {
		return payload, errors.New("task is nil")
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}
