package models

import (
	"time"

	"gorm.io/gorm"
)

// Shipment 出货单：托盘的容器，三项计数为子托盘实时汇总缓存
type Shipment struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	ShipNo      string         `gorm:"type:varchar(50);not null;uniqueIndex:idx_shipments_ship_no_live,where:deleted_at IS NULL" json:"ship_no"`
	ShipDate    *time.Time     `gorm:"index" json:"ship_date"`
	VehicleNo   string         `gorm:"type:varchar(50)" json:"vehicle_no"`
	DriverName  string         `gorm:"type:varchar(100)" json:"driver_name"`
	Destination string         `gorm:"type:varchar(255)" json:"destination"`
	Customer    string         `gorm:"type:varchar(100);index" json:"customer"`
	Remark      string         `gorm:"type:varchar(500)" json:"remark"`
	PalletCount int            `gorm:"not null;default:0" json:"pallet_count"`
	BoxCount    int            `gorm:"not null;default:0" json:"box_count"`
	TotalQty    int            `gorm:"not null;default:0" json:"total_qty"`
	Status      string         `gorm:"type:varchar(20);not null;index" json:"status"`
	ErpSyncYn   string         `gorm:"type:varchar(1);not null;default:'N';index" json:"erp_sync_yn"`
	ShipAt      *time.Time     `gorm:"index" json:"ship_at"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Pallets []Pallet `gorm:"foreignKey:ShipmentID;constraint:false" json:"pallets,omitempty"`
}

// TableName 指定表名
func (Shipment) TableName() string {
	return "shipments"
}
