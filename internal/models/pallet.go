package models

import (
	"time"

	"gorm.io/gorm"
)

// Pallet 托盘：箱子的容器，BoxCount/TotalQty 为子箱实时汇总缓存
type Pallet struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	PalletNo   string         `gorm:"type:varchar(50);not null;uniqueIndex:idx_pallets_pallet_no_live,where:deleted_at IS NULL" json:"pallet_no"`
	BoxCount   int            `gorm:"not null;default:0" json:"box_count"`
	TotalQty   int            `gorm:"not null;default:0" json:"total_qty"`
	Status     string         `gorm:"type:varchar(20);not null;index" json:"status"`
	ShipmentID *uint          `gorm:"index" json:"shipment_id"`
	ClosedAt   *time.Time     `json:"closed_at"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	Boxes []Box `gorm:"foreignKey:PalletID;constraint:false" json:"boxes,omitempty"`
}

// TableName 指定表名
func (Pallet) TableName() string {
	return "pallets"
}

// IsAssigned 是否已装入出货单
func (p *Pallet) IsAssigned() bool {
	return p.ShipmentID != nil && *p.ShipmentID != 0
}
