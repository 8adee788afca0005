package service

import (
	"context"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/cache"
	"github.com/YouHyuksoo/HANES-sub002/internal/constants"
	"github.com/YouHyuksoo/HANES-sub002/internal/logger"
	"github.com/YouHyuksoo/HANES-sub002/internal/metrics"
	"github.com/YouHyuksoo/HANES-sub002/internal/models"
	"github.com/YouHyuksoo/HANES-sub002/internal/repository"

	"gorm.io/gorm"
)

// PalletService 托盘生命周期：箱子成员、汇总重算、封托、装车
type PalletService struct {
	tx           *TxManager
	boxRepo      repository.BoxRepository
	palletRepo   repository.PalletRepository
	shipmentRepo repository.ShipmentRepository
	recalc       *Recalculator
	effects      *effectRunner
	metrics      *metrics.ShippingMetrics
	maxBatchSize int
	cacheTTL     time.Duration
}

// PalletSummary 托盘按品目的汇总
type PalletSummary struct {
	PalletID uint                        `json:"pallet_id"`
	PalletNo string                      `json:"pallet_no"`
	Status   string                      `json:"status"`
	BoxCount int                         `json:"box_count"`
	TotalQty int                         `json:"total_qty"`
	Parts    []repository.PartQtySummary `json:"parts"`
	Version  int64                       `json:"version"`
}

// PalletServiceOptions 托盘服务可选参数
type PalletServiceOptions struct {
	MaxBatchSize int
	CacheTTL     time.Duration
}

// NewPalletService 创建托盘服务
func NewPalletService(
	tx *TxManager,
	boxRepo repository.BoxRepository,
	palletRepo repository.PalletRepository,
	shipmentRepo repository.ShipmentRepository,
	recalc *Recalculator,
	m *metrics.ShippingMetrics,
	opts PalletServiceOptions,
) *PalletService {
	return &PalletService{
		tx:           tx,
		boxRepo:      boxRepo,
		palletRepo:   palletRepo,
		shipmentRepo: shipmentRepo,
		recalc:       recalc,
		effects:      &effectRunner{metrics: m},
		metrics:      m,
		maxBatchSize: opts.MaxBatchSize,
		cacheTTL:     opts.CacheTTL,
	}
}

// Get 获取托盘及其箱子
func (s *PalletService) Get(ctx context.Context, id uint) (*models.Pallet, error) {
	pallet, err := s.palletRepo.WithTx(s.tx.DB(ctx)).GetByIDWithBoxes(id)
	if err != nil {
		return nil, err
	}
	if pallet == nil {
		return nil, notFound("Pallet %d not found", id)
	}
	return pallet, nil
}

// GetByPalletNo 按托盘号获取
func (s *PalletService) GetByPalletNo(ctx context.Context, palletNo string) (*models.Pallet, error) {
	palletNo = normalizeNumber(palletNo)
	if palletNo == "" {
		return nil, validation("pallet_no is required")
	}
	pallet, err := s.palletRepo.WithTx(s.tx.DB(ctx)).GetByPalletNo(palletNo)
	if err != nil {
		return nil, err
	}
	if pallet == nil {
		return nil, notFound("Pallet %s not found", palletNo)
	}
	return pallet, nil
}

// List 分页查询托盘
func (s *PalletService) List(ctx context.Context, filter repository.PalletListFilter) ([]models.Pallet, int64, error) {
	if filter.Status != "" && !constants.IsPalletStatus(filter.Status) {
		return nil, 0, validation("unknown pallet status %s", filter.Status)
	}
	return s.palletRepo.WithTx(s.tx.DB(ctx)).List(filter)
}

// ListByShipment 获取出货单内托盘
func (s *PalletService) ListByShipment(ctx context.Context, shipmentID uint) ([]models.Pallet, error) {
	return s.palletRepo.WithTx(s.tx.DB(ctx)).ListByShipment(shipmentID, false)
}

// ListUnassigned 获取可装车托盘（已封托且未装车）
func (s *PalletService) ListUnassigned(ctx context.Context) ([]models.Pallet, error) {
	return s.palletRepo.WithTx(s.tx.DB(ctx)).ListUnassigned(constants.PalletStatusClosed)
}

// Summary 托盘按品目汇总；缓存以托盘 updated_at 为版本，版本不符视为未命中
func (s *PalletService) Summary(ctx context.Context, id uint) (*PalletSummary, error) {
	db := s.tx.DB(ctx)
	pallet, err := loadPallet(s.palletRepo.WithTx(db), id)
	if err != nil {
		return nil, err
	}
	version := summaryVersion(pallet.UpdatedAt)

	key := cache.PalletSummaryKey(id)
	var cached PalletSummary
	hit, err := cache.GetJSON(ctx, key, &cached)
	if err != nil {
		logger.FromContext(ctx).Warnw("pallet_summary_cache_read_failed", "pallet_id", id, "error", err)
	}
	hit = hit && cached.Version == version
	if cache.Enabled() {
		s.metrics.IncCacheLookup(hit)
	}
	if hit {
		return &cached, nil
	}

	parts, err := s.boxRepo.WithTx(db).SummarizeByPart([]uint{pallet.ID})
	if err != nil {
		return nil, err
	}
	summary := &PalletSummary{
		PalletID: pallet.ID,
		PalletNo: pallet.PalletNo,
		Status:   pallet.Status,
		BoxCount: pallet.BoxCount,
		TotalQty: pallet.TotalQty,
		Parts:    parts,
		Version:  version,
	}
	if err := cache.SetJSON(ctx, key, summary, s.cacheTTL); err != nil {
		logger.FromContext(ctx).Warnw("pallet_summary_cache_write_failed", "pallet_id", id, "error", err)
	}
	return summary, nil
}

// Create 创建托盘
func (s *PalletService) Create(ctx context.Context, palletNo string) (*models.Pallet, error) {
	palletNo = normalizeNumber(palletNo)
	if palletNo == "" {
		return nil, validation("pallet_no is required")
	}
	var pallet *models.Pallet
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		palletRepo := s.palletRepo.WithTx(tx)
		existing, err := palletRepo.GetByPalletNo(palletNo)
		if err != nil {
			return err
		}
		if existing != nil {
			return conflict("Pallet %s already exists", palletNo)
		}
		pallet = &models.Pallet{
			PalletNo: palletNo,
			Status:   constants.PalletStatusOpen,
		}
		if err := palletRepo.Create(pallet); err != nil {
			if isUniqueViolation(err) {
				return conflict("Pallet %s already exists", palletNo)
			}
			return err
		}
		return nil
	})
	s.metrics.IncOperation("pallet_create", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Infow("pallet_created", "pallet_id", pallet.ID, "pallet_no", pallet.PalletNo)
	return pallet, nil
}

// AddBoxes 批量装箱：全部校验通过后一次写入并重算汇总
func (s *PalletService) AddBoxes(ctx context.Context, id uint, boxIDs []uint) (*models.Pallet, error) {
	ids, err := normalizeIDs(boxIDs, "box_ids", s.maxBatchSize)
	if err != nil {
		return nil, err
	}
	var pallet *models.Pallet
	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		palletRepo := s.palletRepo.WithTx(tx)
		boxRepo := s.boxRepo.WithTx(tx)
		var err error
		pallet, err = loadPallet(palletRepo, id)
		if err != nil {
			return err
		}
		if pallet.Status != constants.PalletStatusOpen {
			return invalidState("Pallet %s is %s; boxes can only be added while OPEN", pallet.PalletNo, pallet.Status)
		}
		boxes, err := boxRepo.ListByIDs(ids)
		if err != nil {
			return err
		}
		found := make(map[uint]struct{}, len(boxes))
		for _, box := range boxes {
			found[box.ID] = struct{}{}
		}
		if missing := missingIDs(ids, found); len(missing) > 0 {
			return notFound("Boxes %v not found", missing)
		}
		candidates := make([]uint, 0, len(boxes))
		for _, box := range boxes {
			if box.IsAssigned() && *box.PalletID == pallet.ID {
				continue
			}
			if box.IsAssigned() {
				return conflict("Box %s is already assigned to a different pallet (%d)", box.BoxNo, *box.PalletID)
			}
			if box.Status != constants.BoxStatusClosed {
				return invalidState("Box %s is %s; only CLOSED boxes can be added to a pallet", box.BoxNo, box.Status)
			}
			candidates = append(candidates, box.ID)
		}
		now := time.Now()
		if _, err := boxRepo.SetPallet(candidates, &pallet.ID, now); err != nil {
			return err
		}
		agg, err := s.recalc.Pallet(tx, pallet.ID, now)
		if err != nil {
			return err
		}
		applyPalletAggregate(pallet, agg, now)
		return nil
	})
	s.metrics.IncOperation("pallet_add_boxes", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	s.effects.flush(ctx, &commitEffects{palletIDs: []uint{pallet.ID}})
	logger.FromContext(ctx).Infow("pallet_boxes_added",
		"pallet_id", pallet.ID,
		"pallet_no", pallet.PalletNo,
		"box_ids", ids,
		"box_count", pallet.BoxCount,
		"total_qty", pallet.TotalQty,
	)
	return pallet, nil
}

// RemoveBoxes 批量卸箱，箱子必须当前在此托盘上
func (s *PalletService) RemoveBoxes(ctx context.Context, id uint, boxIDs []uint) (*models.Pallet, error) {
	ids, err := normalizeIDs(boxIDs, "box_ids", s.maxBatchSize)
	if err != nil {
		return nil, err
	}
	var pallet *models.Pallet
	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		palletRepo := s.palletRepo.WithTx(tx)
		boxRepo := s.boxRepo.WithTx(tx)
		var err error
		pallet, err = loadPallet(palletRepo, id)
		if err != nil {
			return err
		}
		if pallet.Status != constants.PalletStatusOpen {
			return invalidState("Pallet %s is %s; boxes can only be removed while OPEN", pallet.PalletNo, pallet.Status)
		}
		boxes, err := boxRepo.ListByIDs(ids)
		if err != nil {
			return err
		}
		onPallet := make(map[uint]struct{}, len(boxes))
		for _, box := range boxes {
			if box.IsAssigned() && *box.PalletID == pallet.ID {
				onPallet[box.ID] = struct{}{}
			}
		}
		if missing := missingIDs(ids, onPallet); len(missing) > 0 {
			return notFound("Boxes %v are not on pallet %s", missing, pallet.PalletNo)
		}
		now := time.Now()
		if _, err := boxRepo.SetPallet(ids, nil, now); err != nil {
			return err
		}
		agg, err := s.recalc.Pallet(tx, pallet.ID, now)
		if err != nil {
			return err
		}
		applyPalletAggregate(pallet, agg, now)
		return nil
	})
	s.metrics.IncOperation("pallet_remove_boxes", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	s.effects.flush(ctx, &commitEffects{palletIDs: []uint{pallet.ID}})
	logger.FromContext(ctx).Infow("pallet_boxes_removed", "pallet_id", pallet.ID, "pallet_no", pallet.PalletNo, "box_ids", ids)
	return pallet, nil
}

// Close 封托，空托盘不可封
func (s *PalletService) Close(ctx context.Context, id uint) (*models.Pallet, error) {
	var pallet *models.Pallet
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		palletRepo := s.palletRepo.WithTx(tx)
		var err error
		pallet, err = loadPallet(palletRepo, id)
		if err != nil {
			return err
		}
		if pallet.Status != constants.PalletStatusOpen {
			return invalidState("Pallet %s is %s; only OPEN pallets can be closed", pallet.PalletNo, pallet.Status)
		}
		agg, err := s.boxRepo.WithTx(tx).AggregateByPallet(pallet.ID)
		if err != nil {
			return err
		}
		if agg.BoxCount == 0 {
			return invalidState("Pallet %s is empty and cannot be closed", pallet.PalletNo)
		}
		now := time.Now()
		pallet.BoxCount = int(agg.BoxCount)
		pallet.TotalQty = int(agg.TotalQty)
		pallet.Status = constants.PalletStatusClosed
		pallet.ClosedAt = &now
		return palletRepo.Update(pallet)
	})
	s.metrics.IncOperation("pallet_close", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	s.effects.flush(ctx, &commitEffects{palletIDs: []uint{pallet.ID}})
	logger.FromContext(ctx).Infow("pallet_closed", "pallet_id", pallet.ID, "pallet_no", pallet.PalletNo, "box_count", pallet.BoxCount)
	return pallet, nil
}

// Reopen 重新开托，已装车托盘不可开托
func (s *PalletService) Reopen(ctx context.Context, id uint) (*models.Pallet, error) {
	var pallet *models.Pallet
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		palletRepo := s.palletRepo.WithTx(tx)
		var err error
		pallet, err = loadPallet(palletRepo, id)
		if err != nil {
			return err
		}
		if pallet.Status != constants.PalletStatusClosed {
			return invalidState("Pallet %s is %s; only CLOSED pallets can be reopened", pallet.PalletNo, pallet.Status)
		}
		if pallet.IsAssigned() {
			return invalidState("Pallet %s is assigned to shipment %d; remove it from the shipment first", pallet.PalletNo, *pallet.ShipmentID)
		}
		pallet.Status = constants.PalletStatusOpen
		pallet.ClosedAt = nil
		return palletRepo.Update(pallet)
	})
	s.metrics.IncOperation("pallet_reopen", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	s.effects.flush(ctx, &commitEffects{palletIDs: []uint{pallet.ID}})
	return pallet, nil
}

// AssignToShipment 装车：托盘转为 LOADED，返回重算后的出货单；重复装入同一出货单视为成功
func (s *PalletService) AssignToShipment(ctx context.Context, id, shipmentID uint) (*models.Shipment, error) {
	if shipmentID == 0 {
		return nil, validation("shipment_id is required")
	}
	var pallet *models.Pallet
	var shipment *models.Shipment
	noop := false
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		noop = false
		palletRepo := s.palletRepo.WithTx(tx)
		shipmentRepo := s.shipmentRepo.WithTx(tx)
		var err error
		pallet, err = loadPallet(palletRepo, id)
		if err != nil {
			return err
		}
		if pallet.IsAssigned() && *pallet.ShipmentID == shipmentID {
			noop = true
			shipment, err = loadShipment(shipmentRepo, shipmentID)
			return err
		}
		if pallet.IsAssigned() {
			return conflict("Pallet %s is already assigned to a different shipment (%d)", pallet.PalletNo, *pallet.ShipmentID)
		}
		if pallet.Status != constants.PalletStatusClosed {
			return invalidState("Pallet %s is %s; only CLOSED pallets can be loaded", pallet.PalletNo, pallet.Status)
		}
		shipment, err = loadShipment(shipmentRepo, shipmentID)
		if err != nil {
			return err
		}
		if shipment.Status != constants.ShipmentStatusPreparing {
			return invalidState("Shipment %s is %s; pallets can only be loaded while PREPARING", shipment.ShipNo, shipment.Status)
		}
		now := time.Now()
		if _, err := palletRepo.SetShipment([]uint{pallet.ID}, &shipment.ID, constants.PalletStatusLoaded, now); err != nil {
			return err
		}
		agg, err := s.recalc.Shipment(tx, shipment.ID, now)
		if err != nil {
			return err
		}
		applyShipmentAggregate(shipment, agg, now)
		return nil
	})
	s.metrics.IncOperation("pallet_assign_shipment", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	if !noop {
		s.effects.flush(ctx, &commitEffects{palletIDs: []uint{pallet.ID}, shipmentIDs: []uint{shipment.ID}})
		logger.FromContext(ctx).Infow("pallet_assigned_to_shipment", "pallet_id", pallet.ID, "pallet_no", pallet.PalletNo, "shipment_id", shipment.ID)
	}
	return shipment, nil
}

// RemoveFromShipment 卸车：托盘回到 CLOSED，返回重算后的原出货单
func (s *PalletService) RemoveFromShipment(ctx context.Context, id uint) (*models.Shipment, error) {
	var pallet *models.Pallet
	var shipment *models.Shipment
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		palletRepo := s.palletRepo.WithTx(tx)
		var err error
		pallet, err = loadPallet(palletRepo, id)
		if err != nil {
			return err
		}
		if !pallet.IsAssigned() {
			return invalidState("Pallet %s is not assigned to any shipment", pallet.PalletNo)
		}
		// 出货单仅在无托盘时可删除，原出货单必然存在
		shipment, err = loadShipment(s.shipmentRepo.WithTx(tx), *pallet.ShipmentID)
		if err != nil {
			return err
		}
		if shipment.Status != constants.ShipmentStatusPreparing {
			return invalidState("Shipment %s is %s; pallets can only be unloaded while PREPARING", shipment.ShipNo, shipment.Status)
		}
		now := time.Now()
		if _, err := palletRepo.SetShipment([]uint{pallet.ID}, nil, constants.PalletStatusClosed, now); err != nil {
			return err
		}
		agg, err := s.recalc.Shipment(tx, shipment.ID, now)
		if err != nil {
			return err
		}
		applyShipmentAggregate(shipment, agg, now)
		return nil
	})
	s.metrics.IncOperation("pallet_remove_shipment", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	s.effects.flush(ctx, &commitEffects{palletIDs: []uint{pallet.ID}, shipmentIDs: []uint{shipment.ID}})
	logger.FromContext(ctx).Infow("pallet_removed_from_shipment", "pallet_id", pallet.ID, "pallet_no", pallet.PalletNo, "shipment_id", shipment.ID)
	return shipment, nil
}

// Delete 软删除托盘，仅 OPEN、空且未装车时允许
func (s *PalletService) Delete(ctx context.Context, id uint) error {
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		palletRepo := s.palletRepo.WithTx(tx)
		pallet, err := loadPallet(palletRepo, id)
		if err != nil {
			return err
		}
		if pallet.Status != constants.PalletStatusOpen {
			return invalidState("Pallet %s is %s; only OPEN pallets can be deleted", pallet.PalletNo, pallet.Status)
		}
		if pallet.IsAssigned() {
			return invalidState("Pallet %s is assigned to shipment %d and cannot be deleted", pallet.PalletNo, *pallet.ShipmentID)
		}
		agg, err := s.boxRepo.WithTx(tx).AggregateByPallet(pallet.ID)
		if err != nil {
			return err
		}
		if agg.BoxCount > 0 {
			return invalidState("Pallet %s still holds %d boxes and cannot be deleted", pallet.PalletNo, agg.BoxCount)
		}
		return palletRepo.Delete(pallet.ID)
	})
	s.metrics.IncOperation("pallet_delete", outcomeOf(err))
	if err == nil {
		s.effects.flush(ctx, &commitEffects{palletIDs: []uint{id}})
	}
	return err
}

func loadPallet(repo *repository.GormPalletRepository, id uint) (*models.Pallet, error) {
	pallet, err := repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if pallet == nil {
		return nil, notFound("Pallet %d not found", id)
	}
	return pallet, nil
}

func applyPalletAggregate(pallet *models.Pallet, agg repository.ContentAggregate, now time.Time) {
	pallet.BoxCount = int(agg.BoxCount)
	pallet.TotalQty = int(agg.TotalQty)
	pallet.UpdatedAt = now
}

// summaryVersion 汇总缓存版本：父级每次成员或状态变更都会刷新 updated_at
func summaryVersion(updatedAt time.Time) int64 {
	return updatedAt.UnixNano()
}
