package models

import "time"

// ShipmentEvent 出货单状态变更审计记录（只追加）
type ShipmentEvent struct {
	ID         uint       `gorm:"primarykey" json:"id"`
	ShipmentID uint       `gorm:"not null;index" json:"shipment_id"`
	ShipNo     string     `gorm:"type:varchar(50);not null" json:"ship_no"`
	FromStatus string     `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus   string     `gorm:"type:varchar(20);not null" json:"to_status"`
	Kind       string     `gorm:"type:varchar(20);not null;index" json:"kind"`
	Remark     string     `gorm:"type:varchar(500)" json:"remark"`
	NotifiedAt *time.Time `gorm:"index" json:"notified_at"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (ShipmentEvent) TableName() string {
	return "shipment_events"
}
