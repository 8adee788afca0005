package models

import (
	"time"

	"gorm.io/gorm"
)

// Part 品目主数据（只读依赖，仅用于存在性校验与汇总展示）
type Part struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	PartCode  string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"part_code"`
	PartName  string         `gorm:"type:varchar(200);not null" json:"part_name"`
	PartType  string         `gorm:"type:varchar(20)" json:"part_type"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName 指定表名
func (Part) TableName() string {
	return "parts"
}
