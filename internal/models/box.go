package models

import (
	"time"

	"gorm.io/gorm"
)

// Box 箱子：产品序列号的最小包装单位
type Box struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	BoxNo      string         `gorm:"type:varchar(50);not null;uniqueIndex:idx_boxes_box_no_live,where:deleted_at IS NULL" json:"box_no"`
	PartID     uint           `gorm:"not null;index" json:"part_id"`
	Qty        int            `gorm:"not null;default:0" json:"qty"`
	SerialList StringArray    `gorm:"type:text" json:"serial_list"`
	Status     string         `gorm:"type:varchar(20);not null;index" json:"status"`
	PalletID   *uint          `gorm:"index" json:"pallet_id"`
	ClosedAt   *time.Time     `json:"closed_at"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	Part *Part `gorm:"foreignKey:PartID;constraint:false" json:"part,omitempty"`
}

// TableName 指定表名
func (Box) TableName() string {
	return "boxes"
}

// IsAssigned 是否已装入托盘
func (b *Box) IsAssigned() bool {
	return b.PalletID != nil && *b.PalletID != 0
}
