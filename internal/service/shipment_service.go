package service

import (
	"context"
	"strings"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/constants"
	"github.com/YouHyuksoo/HANES-sub002/internal/logger"
	"github.com/YouHyuksoo/HANES-sub002/internal/metrics"
	"github.com/YouHyuksoo/HANES-sub002/internal/models"
	"github.com/YouHyuksoo/HANES-sub002/internal/repository"

	"gorm.io/gorm"
)

// ShipmentService 出货单生命周期：托盘成员、汇总重算、出货流转及向下级联
type ShipmentService struct {
	tx           *TxManager
	boxRepo      repository.BoxRepository
	palletRepo   repository.PalletRepository
	shipmentRepo repository.ShipmentRepository
	eventRepo    repository.ShipmentEventRepository
	recalc       *Recalculator
	effects      *effectRunner
	metrics      *metrics.ShippingMetrics
	maxBatchSize int
	cacheTTL     time.Duration
}

// ShipmentServiceOptions 出货单服务可选参数
type ShipmentServiceOptions struct {
	Publisher    ShipmentEventPublisher
	MaxBatchSize int
	CacheTTL     time.Duration
}

// CreateShipmentInput 创建出货单参数
type CreateShipmentInput struct {
	ShipNo      string
	ShipDate    *time.Time
	VehicleNo   string
	DriverName  string
	Destination string
	Customer    string
	Remark      string
}

// UpdateShipmentInput 更新出货单抬头，nil 字段保持不变
type UpdateShipmentInput struct {
	ShipDate    *time.Time
	VehicleNo   *string
	DriverName  *string
	Destination *string
	Customer    *string
	Remark      *string
}

// NewShipmentService 创建出货单服务
func NewShipmentService(
	tx *TxManager,
	boxRepo repository.BoxRepository,
	palletRepo repository.PalletRepository,
	shipmentRepo repository.ShipmentRepository,
	eventRepo repository.ShipmentEventRepository,
	recalc *Recalculator,
	m *metrics.ShippingMetrics,
	opts ShipmentServiceOptions,
) *ShipmentService {
	return &ShipmentService{
		tx:           tx,
		boxRepo:      boxRepo,
		palletRepo:   palletRepo,
		shipmentRepo: shipmentRepo,
		eventRepo:    eventRepo,
		recalc:       recalc,
		effects:      &effectRunner{publisher: opts.Publisher, metrics: m},
		metrics:      m,
		maxBatchSize: opts.MaxBatchSize,
		cacheTTL:     opts.CacheTTL,
	}
}

// Create 创建出货单
func (s *ShipmentService) Create(ctx context.Context, input CreateShipmentInput) (*models.Shipment, error) {
	shipNo := normalizeNumber(input.ShipNo)
	if shipNo == "" {
		return nil, validation("ship_no is required")
	}
	var shipment *models.Shipment
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		shipmentRepo := s.shipmentRepo.WithTx(tx)
		existing, err := shipmentRepo.GetByShipNo(shipNo)
		if err != nil {
			return err
		}
		if existing != nil {
			return conflict("Shipment %s already exists", shipNo)
		}
		shipment = &models.Shipment{
			ShipNo:      shipNo,
			ShipDate:    input.ShipDate,
			VehicleNo:   strings.TrimSpace(input.VehicleNo),
			DriverName:  strings.TrimSpace(input.DriverName),
			Destination: strings.TrimSpace(input.Destination),
			Customer:    strings.TrimSpace(input.Customer),
			Remark:      strings.TrimSpace(input.Remark),
			Status:      constants.ShipmentStatusPreparing,
			ErpSyncYn:   constants.ErpSyncNo,
		}
		if err := shipmentRepo.Create(shipment); err != nil {
			if isUniqueViolation(err) {
				return conflict("Shipment %s already exists", shipNo)
			}
			return err
		}
		return nil
	})
	s.metrics.IncOperation("shipment_create", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Infow("shipment_created", "shipment_id", shipment.ID, "ship_no", shipment.ShipNo)
	return shipment, nil
}

// Update 修改出货单抬头信息，出货后不可修改
func (s *ShipmentService) Update(ctx context.Context, id uint, input UpdateShipmentInput) (*models.Shipment, error) {
	var shipment *models.Shipment
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		shipmentRepo := s.shipmentRepo.WithTx(tx)
		var err error
		shipment, err = loadShipment(shipmentRepo, id)
		if err != nil {
			return err
		}
		if !isShipmentHeaderEditable(shipment.Status) {
			return invalidState("Shipment %s is %s; header can no longer be edited", shipment.ShipNo, shipment.Status)
		}
		if input.ShipDate != nil {
			shipment.ShipDate = input.ShipDate
		}
		if input.VehicleNo != nil {
			shipment.VehicleNo = strings.TrimSpace(*input.VehicleNo)
		}
		if input.DriverName != nil {
			shipment.DriverName = strings.TrimSpace(*input.DriverName)
		}
		if input.Destination != nil {
			shipment.Destination = strings.TrimSpace(*input.Destination)
		}
		if input.Customer != nil {
			shipment.Customer = strings.TrimSpace(*input.Customer)
		}
		if input.Remark != nil {
			shipment.Remark = strings.TrimSpace(*input.Remark)
		}
		return shipmentRepo.Update(shipment)
	})
	s.metrics.IncOperation("shipment_update", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	s.effects.flush(ctx, &commitEffects{shipmentIDs: []uint{shipment.ID}})
	return shipment, nil
}

// Delete 软删除出货单，仅 PREPARING 且无托盘时允许
func (s *ShipmentService) Delete(ctx context.Context, id uint) error {
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		shipmentRepo := s.shipmentRepo.WithTx(tx)
		shipment, err := loadShipment(shipmentRepo, id)
		if err != nil {
			return err
		}
		if shipment.Status != constants.ShipmentStatusPreparing {
			return invalidState("Shipment %s is %s; only PREPARING shipments can be deleted", shipment.ShipNo, shipment.Status)
		}
		agg, err := s.palletRepo.WithTx(tx).AggregateByShipment(shipment.ID)
		if err != nil {
			return err
		}
		if agg.PalletCount > 0 {
			return invalidState("Shipment %s still holds %d pallets and cannot be deleted", shipment.ShipNo, agg.PalletCount)
		}
		return shipmentRepo.Delete(shipment.ID)
	})
	s.metrics.IncOperation("shipment_delete", outcomeOf(err))
	if err == nil {
		s.effects.flush(ctx, &commitEffects{shipmentIDs: []uint{id}})
	}
	return err
}

// LoadPallets 批量装车：托盘须已封托且未装车，全部写入与汇总重算在同一事务
func (s *ShipmentService) LoadPallets(ctx context.Context, id uint, palletIDs []uint) (*models.Shipment, error) {
	ids, err := normalizeIDs(palletIDs, "pallet_ids", s.maxBatchSize)
	if err != nil {
		return nil, err
	}
	var shipment *models.Shipment
	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		shipmentRepo := s.shipmentRepo.WithTx(tx)
		palletRepo := s.palletRepo.WithTx(tx)
		var err error
		shipment, err = loadShipment(shipmentRepo, id)
		if err != nil {
			return err
		}
		if shipment.Status != constants.ShipmentStatusPreparing {
			return invalidState("Shipment %s is %s; pallets can only be loaded while PREPARING", shipment.ShipNo, shipment.Status)
		}
		pallets, err := palletRepo.ListByIDs(ids)
		if err != nil {
			return err
		}
		found := make(map[uint]struct{}, len(pallets))
		for _, pallet := range pallets {
			found[pallet.ID] = struct{}{}
		}
		if missing := missingIDs(ids, found); len(missing) > 0 {
			return notFound("Pallets %v not found", missing)
		}
		candidates := make([]uint, 0, len(pallets))
		for _, pallet := range pallets {
			if pallet.IsAssigned() && *pallet.ShipmentID == shipment.ID {
				continue
			}
			if pallet.IsAssigned() {
				return conflict("Pallet %s is already assigned to a different shipment (%d)", pallet.PalletNo, *pallet.ShipmentID)
			}
			if pallet.Status != constants.PalletStatusClosed {
				return invalidState("Pallet %s is %s; only CLOSED pallets can be loaded", pallet.PalletNo, pallet.Status)
			}
			candidates = append(candidates, pallet.ID)
		}
		now := time.Now()
		if _, err := palletRepo.SetShipment(candidates, &shipment.ID, constants.PalletStatusLoaded, now); err != nil {
			return err
		}
		agg, err := s.recalc.Shipment(tx, shipment.ID, now)
		if err != nil {
			return err
		}
		applyShipmentAggregate(shipment, agg, now)
		return nil
	})
	s.metrics.IncOperation("shipment_load_pallets", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	s.effects.flush(ctx, &commitEffects{palletIDs: ids, shipmentIDs: []uint{shipment.ID}})
	logger.FromContext(ctx).Infow("shipment_pallets_loaded",
		"shipment_id", shipment.ID,
		"ship_no", shipment.ShipNo,
		"pallet_ids", ids,
		"pallet_count", shipment.PalletCount,
		"total_qty", shipment.TotalQty,
	)
	return shipment, nil
}

// UnloadPallets 批量卸车：托盘须当前在此出货单上，卸下后回到 CLOSED
func (s *ShipmentService) UnloadPallets(ctx context.Context, id uint, palletIDs []uint) (*models.Shipment, error) {
	ids, err := normalizeIDs(palletIDs, "pallet_ids", s.maxBatchSize)
	if err != nil {
		return nil, err
	}
	var shipment *models.Shipment
	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		shipmentRepo := s.shipmentRepo.WithTx(tx)
		palletRepo := s.palletRepo.WithTx(tx)
		var err error
		shipment, err = loadShipment(shipmentRepo, id)
		if err != nil {
			return err
		}
		if shipment.Status != constants.ShipmentStatusPreparing {
			return invalidState("Shipment %s is %s; pallets can only be unloaded while PREPARING", shipment.ShipNo, shipment.Status)
		}
		pallets, err := palletRepo.ListByIDs(ids)
		if err != nil {
			return err
		}
		onShipment := make(map[uint]struct{}, len(pallets))
		for _, pallet := range pallets {
			if pallet.IsAssigned() && *pallet.ShipmentID == shipment.ID {
				onShipment[pallet.ID] = struct{}{}
			}
		}
		if missing := missingIDs(ids, onShipment); len(missing) > 0 {
			return notFound("Pallets %v are not on shipment %s", missing, shipment.ShipNo)
		}
		now := time.Now()
		if _, err := palletRepo.SetShipment(ids, nil, constants.PalletStatusClosed, now); err != nil {
			return err
		}
		agg, err := s.recalc.Shipment(tx, shipment.ID, now)
		if err != nil {
			return err
		}
		applyShipmentAggregate(shipment, agg, now)
		return nil
	})
	s.metrics.IncOperation("shipment_unload_pallets", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	s.effects.flush(ctx, &commitEffects{palletIDs: ids, shipmentIDs: []uint{shipment.ID}})
	logger.FromContext(ctx).Infow("shipment_pallets_unloaded", "shipment_id", shipment.ID, "ship_no", shipment.ShipNo, "pallet_ids", ids)
	return shipment, nil
}

// MarkAsLoaded 装车完成，至少需要一个托盘
func (s *ShipmentService) MarkAsLoaded(ctx context.Context, id uint) (*models.Shipment, error) {
	return s.transit(ctx, id, "shipment_mark_loaded", constants.ShipmentStatusLoaded, "", func(tx *gorm.DB, shipment *models.Shipment, now time.Time, _ *commitEffects) error {
		agg, err := s.palletRepo.WithTx(tx).AggregateByShipment(shipment.ID)
		if err != nil {
			return err
		}
		if agg.PalletCount == 0 {
			return invalidState("Shipment %s has no pallets and cannot be marked as loaded", shipment.ShipNo)
		}
		return nil
	})
}

// MarkAsShipped 出货：同一事务内将所有托盘及其箱子级联为 SHIPPED，并记录出货时间
func (s *ShipmentService) MarkAsShipped(ctx context.Context, id uint) (*models.Shipment, error) {
	return s.transit(ctx, id, "shipment_mark_shipped", constants.ShipmentStatusShipped, "", func(tx *gorm.DB, shipment *models.Shipment, now time.Time, eff *commitEffects) error {
		palletRepo := s.palletRepo.WithTx(tx)
		boxRepo := s.boxRepo.WithTx(tx)
		palletIDs, err := palletRepo.ListIDsByShipment(shipment.ID)
		if err != nil {
			return err
		}
		palletRows, err := palletRepo.UpdateStatusByShipment(shipment.ID, constants.PalletStatusShipped, now)
		if err != nil {
			return err
		}
		boxRows, err := boxRepo.UpdateStatusByPalletIDs(palletIDs, constants.BoxStatusShipped, now)
		if err != nil {
			return err
		}
		s.metrics.AddCascadeRows("pallets", palletRows)
		s.metrics.AddCascadeRows("boxes", boxRows)
		shipment.ShipAt = &now
		if shipment.ShipDate == nil {
			shipDate := now
			shipment.ShipDate = &shipDate
		}
		eff.touchPallet(palletIDs...)
		return nil
	})
}

// MarkAsDelivered 送达，终态
func (s *ShipmentService) MarkAsDelivered(ctx context.Context, id uint) (*models.Shipment, error) {
	return s.transit(ctx, id, "shipment_mark_delivered", constants.ShipmentStatusDelivered, "", nil)
}

// Cancel 取消出货：解除全部托盘并回到 CLOSED，汇总归零；箱子保持不变
func (s *ShipmentService) Cancel(ctx context.Context, id uint, remark string) (*models.Shipment, error) {
	remark = strings.TrimSpace(remark)
	return s.transit(ctx, id, "shipment_cancel", constants.ShipmentStatusCanceled, remark, func(tx *gorm.DB, shipment *models.Shipment, now time.Time, eff *commitEffects) error {
		palletRepo := s.palletRepo.WithTx(tx)
		palletIDs, err := palletRepo.ListIDsByShipment(shipment.ID)
		if err != nil {
			return err
		}
		rows, err := palletRepo.DetachByShipment(shipment.ID, constants.PalletStatusClosed, now)
		if err != nil {
			return err
		}
		s.metrics.AddCascadeRows("pallets", rows)
		if remark != "" {
			shipment.Remark = remark
		}
		eff.touchPallet(palletIDs...)
		return nil
	})
}

// ChangeStatus 管理员强制变更状态：跳过流转图且不做任何级联；无论状态是否变化都在事务内重算汇总，状态变化时写入审计事件
func (s *ShipmentService) ChangeStatus(ctx context.Context, id uint, status, remark string) (*models.Shipment, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if !constants.IsShipmentStatus(status) {
		return nil, validation("unknown shipment status %s", status)
	}
	remark = strings.TrimSpace(remark)
	var shipment *models.Shipment
	var fromStatus string
	eff := &commitEffects{}
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		*eff = commitEffects{}
		shipmentRepo := s.shipmentRepo.WithTx(tx)
		var err error
		shipment, err = loadShipment(shipmentRepo, id)
		if err != nil {
			return err
		}
		fromStatus = shipment.Status
		now := time.Now()
		if fromStatus != status {
			shipment.Status = status
			if status == constants.ShipmentStatusShipped && shipment.ShipAt == nil {
				shipment.ShipAt = &now
			}
			if err := shipmentRepo.Update(shipment); err != nil {
				return err
			}
		}
		// 状态不变时同样重算汇总，但不写审计事件
		agg, err := s.recalc.Shipment(tx, shipment.ID, now)
		if err != nil {
			return err
		}
		applyShipmentAggregate(shipment, agg, now)
		eff.touchShipment(shipment.ID)
		if fromStatus == status {
			return nil
		}
		event, err := s.recordEvent(tx, shipment, fromStatus, constants.ShipmentEventOverride, remark)
		if err != nil {
			return err
		}
		eff.emit(event, nil)
		return nil
	})
	s.metrics.IncOperation("shipment_change_status", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	s.effects.flush(ctx, eff)
	if fromStatus != status {
		logger.FromContext(ctx).Warnw("shipment_status_overridden",
			"shipment_id", shipment.ID,
			"ship_no", shipment.ShipNo,
			"from_status", fromStatus,
			"to_status", status,
			"remark", remark,
		)
	}
	return shipment, nil
}

type transitionHook func(tx *gorm.DB, shipment *models.Shipment, now time.Time, eff *commitEffects) error

// transit 执行命名流转：校验流转图、执行级联、写状态、重算汇总、写审计事件
func (s *ShipmentService) transit(ctx context.Context, id uint, operation, target, remark string, hook transitionHook) (*models.Shipment, error) {
	var shipment *models.Shipment
	var fromStatus string
	eff := &commitEffects{}
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		*eff = commitEffects{}
		shipmentRepo := s.shipmentRepo.WithTx(tx)
		var err error
		shipment, err = loadShipment(shipmentRepo, id)
		if err != nil {
			return err
		}
		fromStatus = shipment.Status
		if !canTransitShipment(fromStatus, target) {
			return invalidState("Shipment %s is %s and cannot move to %s", shipment.ShipNo, fromStatus, target)
		}
		now := time.Now()
		partIDs, err := s.partIDsOnShipment(tx, shipment.ID)
		if err != nil {
			return err
		}
		if hook != nil {
			if err := hook(tx, shipment, now, eff); err != nil {
				return err
			}
		}
		shipment.Status = target
		if err := shipmentRepo.Update(shipment); err != nil {
			return err
		}
		agg, err := s.recalc.Shipment(tx, shipment.ID, now)
		if err != nil {
			return err
		}
		applyShipmentAggregate(shipment, agg, now)
		event, err := s.recordEvent(tx, shipment, fromStatus, constants.ShipmentEventTransition, remark)
		if err != nil {
			return err
		}
		eff.touchShipment(shipment.ID)
		eff.emit(event, partIDs)
		return nil
	})
	s.metrics.IncOperation(operation, outcomeOf(err))
	if err != nil {
		return nil, err
	}
	s.effects.flush(ctx, eff)
	logger.FromContext(ctx).Infow("shipment_status_changed",
		"shipment_id", shipment.ID,
		"ship_no", shipment.ShipNo,
		"from_status", fromStatus,
		"to_status", target,
	)
	return shipment, nil
}

func (s *ShipmentService) recordEvent(tx *gorm.DB, shipment *models.Shipment, fromStatus, kind, remark string) (*models.ShipmentEvent, error) {
	event := &models.ShipmentEvent{
		ShipmentID: shipment.ID,
		ShipNo:     shipment.ShipNo,
		FromStatus: fromStatus,
		ToStatus:   shipment.Status,
		Kind:       kind,
		Remark:     remark,
	}
	if err := s.eventRepo.WithTx(tx).Create(event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *ShipmentService) partIDsOnShipment(tx *gorm.DB, shipmentID uint) ([]uint, error) {
	palletIDs, err := s.palletRepo.WithTx(tx).ListIDsByShipment(shipmentID)
	if err != nil {
		return nil, err
	}
	rows, err := s.boxRepo.WithTx(tx).SummarizeByPart(palletIDs)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.PartID)
	}
	return ids, nil
}

func loadShipment(repo *repository.GormShipmentRepository, id uint) (*models.Shipment, error) {
	shipment, err := repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if shipment == nil {
		return nil, notFound("Shipment %d not found", id)
	}
	return shipment, nil
}

func applyShipmentAggregate(shipment *models.Shipment, agg repository.ContentAggregate, now time.Time) {
	shipment.PalletCount = int(agg.PalletCount)
	shipment.BoxCount = int(agg.BoxCount)
	shipment.TotalQty = int(agg.TotalQty)
	shipment.UpdatedAt = now
}
