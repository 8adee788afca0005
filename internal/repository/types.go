package repository

import "time"

// BoxListFilter 箱子列表过滤条件
type BoxListFilter struct {
	Page       int
	PageSize   int
	BoxNo      string
	PartID     uint
	PalletID   uint
	Status     string
	Unassigned bool
}

// PalletListFilter 托盘列表过滤条件
type PalletListFilter struct {
	Page       int
	PageSize   int
	PalletNo   string
	ShipmentID uint
	Status     string
	Unassigned bool
}

// ShipmentListFilter 出货单列表过滤条件
type ShipmentListFilter struct {
	Page         int
	PageSize     int
	ShipNo       string
	Customer     string
	Status       string
	ErpSyncYn    string
	ShipDateFrom *time.Time
	ShipDateTo   *time.Time
}

// ContentAggregate 子项实时汇总结果
type ContentAggregate struct {
	PalletCount int64
	BoxCount    int64
	TotalQty    int64
}

// PartQtySummary 按品目汇总的数量
type PartQtySummary struct {
	PartID   uint   `json:"part_id"`
	PartCode string `json:"part_code"`
	PartName string `json:"part_name"`
	BoxCount int64  `json:"box_count"`
	TotalQty int64  `json:"total_qty"`
}
