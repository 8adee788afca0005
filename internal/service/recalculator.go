package service

import (
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/repository"

	"gorm.io/gorm"
)

// Recalculator 汇总缓存重算：始终以子项实时查询结果覆盖父级缓存，从不做增减
type Recalculator struct {
	boxRepo      repository.BoxRepository
	palletRepo   repository.PalletRepository
	shipmentRepo repository.ShipmentRepository
}

// NewRecalculator 创建汇总重算器
func NewRecalculator(boxRepo repository.BoxRepository, palletRepo repository.PalletRepository, shipmentRepo repository.ShipmentRepository) *Recalculator {
	return &Recalculator{
		boxRepo:      boxRepo,
		palletRepo:   palletRepo,
		shipmentRepo: shipmentRepo,
	}
}

// Pallet 重算托盘的箱数与数量，必须在修改成员关系的同一事务中调用
func (r *Recalculator) Pallet(tx *gorm.DB, palletID uint, now time.Time) (repository.ContentAggregate, error) {
	agg, err := r.boxRepo.WithTx(tx).AggregateByPallet(palletID)
	if err != nil {
		return agg, err
	}
	if err := r.palletRepo.WithTx(tx).UpdateCounts(palletID, agg, now); err != nil {
		return agg, err
	}
	return agg, nil
}

// Shipment 重算出货单的托盘数、箱数与数量（箱数与数量为各托盘自身缓存之和）
func (r *Recalculator) Shipment(tx *gorm.DB, shipmentID uint, now time.Time) (repository.ContentAggregate, error) {
	agg, err := r.palletRepo.WithTx(tx).AggregateByShipment(shipmentID)
	if err != nil {
		return agg, err
	}
	if err := r.shipmentRepo.WithTx(tx).UpdateCounts(shipmentID, agg, now); err != nil {
		return agg, err
	}
	return agg, nil
}
