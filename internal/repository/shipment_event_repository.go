package repository

import (
	"errors"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/models"

	"gorm.io/gorm"
)

// ShipmentEventRepository 出货事件数据访问接口
type ShipmentEventRepository interface {
	Create(event *models.ShipmentEvent) error
	GetByID(id uint) (*models.ShipmentEvent, error)
	ListByShipment(shipmentID uint) ([]models.ShipmentEvent, error)
	ListPending(limit int) ([]models.ShipmentEvent, error)
	MarkNotified(id uint, at time.Time) error
	WithTx(tx *gorm.DB) *GormShipmentEventRepository
}

// GormShipmentEventRepository GORM 实现
type GormShipmentEventRepository struct {
	db *gorm.DB
}

// NewShipmentEventRepository 创建出货事件仓库
func NewShipmentEventRepository(db *gorm.DB) *GormShipmentEventRepository {
	return &GormShipmentEventRepository{db: db}
}

// WithTx 绑定事务
func (r *GormShipmentEventRepository) WithTx(tx *gorm.DB) *GormShipmentEventRepository {
	if tx == nil {
		return r
	}
	return &GormShipmentEventRepository{db: tx}
}

// Create 写入事件
func (r *GormShipmentEventRepository) Create(event *models.ShipmentEvent) error {
	return r.db.Create(event).Error
}

// GetByID 根据 ID 获取事件
func (r *GormShipmentEventRepository) GetByID(id uint) (*models.ShipmentEvent, error) {
	var event models.ShipmentEvent
	if err := r.db.First(&event, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// ListByShipment 获取出货单的事件历史
func (r *GormShipmentEventRepository) ListByShipment(shipmentID uint) ([]models.ShipmentEvent, error) {
	var events []models.ShipmentEvent
	if err := r.db.Where("shipment_id = ?", shipmentID).Order("id asc").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListPending 获取尚未通知的事件
func (r *GormShipmentEventRepository) ListPending(limit int) ([]models.ShipmentEvent, error) {
	query := r.db.Where("notified_at IS NULL").Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var events []models.ShipmentEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// MarkNotified 标记事件已通知
func (r *GormShipmentEventRepository) MarkNotified(id uint, at time.Time) error {
	return r.db.Model(&models.ShipmentEvent{}).
		Where("id = ? AND notified_at IS NULL", id).
		Update("notified_at", at).Error
}
