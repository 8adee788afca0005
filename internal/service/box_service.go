package service

import (
	"context"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/constants"
	"github.com/YouHyuksoo/HANES-sub002/internal/logger"
	"github.com/YouHyuksoo/HANES-sub002/internal/metrics"
	"github.com/YouHyuksoo/HANES-sub002/internal/models"
	"github.com/YouHyuksoo/HANES-sub002/internal/repository"

	"gorm.io/gorm"
)

// BoxService 箱子生命周期：创建、序列号、开箱/封箱、装托
type BoxService struct {
	tx         *TxManager
	boxRepo    repository.BoxRepository
	palletRepo repository.PalletRepository
	partRepo   repository.PartRepository
	recalc     *Recalculator
	effects    *effectRunner
	metrics    *metrics.ShippingMetrics
}

// CreateBoxInput 创建箱子参数
type CreateBoxInput struct {
	BoxNo   string
	PartID  uint
	Qty     int
	Serials []string
}

// NewBoxService 创建箱子服务
func NewBoxService(
	tx *TxManager,
	boxRepo repository.BoxRepository,
	palletRepo repository.PalletRepository,
	partRepo repository.PartRepository,
	recalc *Recalculator,
	m *metrics.ShippingMetrics,
) *BoxService {
	return &BoxService{
		tx:         tx,
		boxRepo:    boxRepo,
		palletRepo: palletRepo,
		partRepo:   partRepo,
		recalc:     recalc,
		effects:    &effectRunner{metrics: m},
		metrics:    m,
	}
}

// Get 获取箱子
func (s *BoxService) Get(ctx context.Context, id uint) (*models.Box, error) {
	box, err := s.boxRepo.WithTx(s.tx.DB(ctx)).GetByID(id)
	if err != nil {
		return nil, err
	}
	if box == nil {
		return nil, notFound("Box %d not found", id)
	}
	return box, nil
}

// GetByBoxNo 按箱号获取
func (s *BoxService) GetByBoxNo(ctx context.Context, boxNo string) (*models.Box, error) {
	boxNo = normalizeNumber(boxNo)
	if boxNo == "" {
		return nil, validation("box_no is required")
	}
	box, err := s.boxRepo.WithTx(s.tx.DB(ctx)).GetByBoxNo(boxNo)
	if err != nil {
		return nil, err
	}
	if box == nil {
		return nil, notFound("Box %s not found", boxNo)
	}
	return box, nil
}

// List 分页查询箱子
func (s *BoxService) List(ctx context.Context, filter repository.BoxListFilter) ([]models.Box, int64, error) {
	if filter.Status != "" && !constants.IsBoxStatus(filter.Status) {
		return nil, 0, validation("unknown box status %s", filter.Status)
	}
	return s.boxRepo.WithTx(s.tx.DB(ctx)).List(filter)
}

// ListByPallet 获取托盘上的箱子
func (s *BoxService) ListByPallet(ctx context.Context, palletID uint) ([]models.Box, error) {
	return s.boxRepo.WithTx(s.tx.DB(ctx)).ListByPallet(palletID)
}

// ListUnassigned 获取可装托的箱子（已封箱且未装托）
func (s *BoxService) ListUnassigned(ctx context.Context) ([]models.Box, error) {
	return s.boxRepo.WithTx(s.tx.DB(ctx)).ListUnassigned(constants.BoxStatusClosed)
}

// Create 创建箱子，提供序列号时数量取序列号个数
func (s *BoxService) Create(ctx context.Context, input CreateBoxInput) (*models.Box, error) {
	boxNo := normalizeNumber(input.BoxNo)
	if boxNo == "" {
		return nil, validation("box_no is required")
	}
	if input.PartID == 0 {
		return nil, validation("part_id is required")
	}
	serials, err := normalizeSerials(input.Serials)
	if err != nil {
		return nil, err
	}
	qty := input.Qty
	if len(serials) > 0 {
		qty = len(serials)
	}
	if qty < 0 {
		return nil, validation("qty must not be negative")
	}

	var box *models.Box
	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		boxRepo := s.boxRepo.WithTx(tx)
		existing, err := boxRepo.GetByBoxNo(boxNo)
		if err != nil {
			return err
		}
		if existing != nil {
			return conflict("Box %s already exists", boxNo)
		}
		part, err := s.partRepo.WithTx(tx).GetByID(input.PartID)
		if err != nil {
			return err
		}
		if part == nil {
			return notFound("Part %d not found", input.PartID)
		}
		box = &models.Box{
			BoxNo:      boxNo,
			PartID:     part.ID,
			Qty:        qty,
			SerialList: models.StringArray(serials),
			Status:     constants.BoxStatusOpen,
		}
		if err := boxRepo.Create(box); err != nil {
			if isUniqueViolation(err) {
				return conflict("Box %s already exists", boxNo)
			}
			return err
		}
		box.Part = part
		return nil
	})
	s.metrics.IncOperation("box_create", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Infow("box_created", "box_id", box.ID, "box_no", box.BoxNo, "part_id", box.PartID, "qty", box.Qty)
	return box, nil
}

// AddSerials 追加序列号，仅 OPEN 状态允许
func (s *BoxService) AddSerials(ctx context.Context, id uint, serials []string) (*models.Box, error) {
	normalized, err := normalizeSerials(serials)
	if err != nil {
		return nil, err
	}
	if len(normalized) == 0 {
		return nil, validation("serials must not be empty")
	}

	var box *models.Box
	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		boxRepo := s.boxRepo.WithTx(tx)
		var err error
		box, err = s.loadBox(boxRepo, id)
		if err != nil {
			return err
		}
		if box.Status != constants.BoxStatusOpen {
			return invalidState("Box %s is %s; serials can only be added while OPEN", box.BoxNo, box.Status)
		}
		duplicates := make([]string, 0)
		for _, serial := range normalized {
			if box.SerialList.Contains(serial) {
				duplicates = append(duplicates, serial)
			}
		}
		if len(duplicates) > 0 {
			return conflict("Box %s already contains serials %v", box.BoxNo, duplicates)
		}
		list := make(models.StringArray, 0, len(box.SerialList)+len(normalized))
		list = append(list, box.SerialList...)
		list = append(list, normalized...)
		box.SerialList = list
		box.Qty = len(list)
		return boxRepo.Update(box)
	})
	s.metrics.IncOperation("box_add_serials", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	return box, nil
}

// RemoveSerials 移除序列号，仅 OPEN 状态允许
func (s *BoxService) RemoveSerials(ctx context.Context, id uint, serials []string) (*models.Box, error) {
	normalized, err := normalizeSerials(serials)
	if err != nil {
		return nil, err
	}
	if len(normalized) == 0 {
		return nil, validation("serials must not be empty")
	}

	var box *models.Box
	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		boxRepo := s.boxRepo.WithTx(tx)
		var err error
		box, err = s.loadBox(boxRepo, id)
		if err != nil {
			return err
		}
		if box.Status != constants.BoxStatusOpen {
			return invalidState("Box %s is %s; serials can only be removed while OPEN", box.BoxNo, box.Status)
		}
		removing := make(map[string]struct{}, len(normalized))
		absent := make([]string, 0)
		for _, serial := range normalized {
			if !box.SerialList.Contains(serial) {
				absent = append(absent, serial)
			}
			removing[serial] = struct{}{}
		}
		if len(absent) > 0 {
			return notFound("Box %s does not contain serials %v", box.BoxNo, absent)
		}
		list := make(models.StringArray, 0, len(box.SerialList))
		for _, serial := range box.SerialList {
			if _, ok := removing[serial]; !ok {
				list = append(list, serial)
			}
		}
		box.SerialList = list
		box.Qty = len(list)
		return boxRepo.Update(box)
	})
	s.metrics.IncOperation("box_remove_serials", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	return box, nil
}

// Close 封箱
func (s *BoxService) Close(ctx context.Context, id uint) (*models.Box, error) {
	var box *models.Box
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		boxRepo := s.boxRepo.WithTx(tx)
		var err error
		box, err = s.loadBox(boxRepo, id)
		if err != nil {
			return err
		}
		if box.Status != constants.BoxStatusOpen {
			return invalidState("Box %s is %s; only OPEN boxes can be closed", box.BoxNo, box.Status)
		}
		if box.Qty <= 0 {
			return invalidState("Box %s is empty and cannot be closed", box.BoxNo)
		}
		now := time.Now()
		box.Status = constants.BoxStatusClosed
		box.ClosedAt = &now
		return boxRepo.Update(box)
	})
	s.metrics.IncOperation("box_close", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Infow("box_closed", "box_id", box.ID, "box_no", box.BoxNo, "qty", box.Qty)
	return box, nil
}

// Reopen 重新开箱，已装托的箱子不可开箱
func (s *BoxService) Reopen(ctx context.Context, id uint) (*models.Box, error) {
	var box *models.Box
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		boxRepo := s.boxRepo.WithTx(tx)
		var err error
		box, err = s.loadBox(boxRepo, id)
		if err != nil {
			return err
		}
		if box.Status != constants.BoxStatusClosed {
			return invalidState("Box %s is %s; only CLOSED boxes can be reopened", box.BoxNo, box.Status)
		}
		if box.IsAssigned() {
			return invalidState("Box %s is assigned to pallet %d; remove it from the pallet first", box.BoxNo, *box.PalletID)
		}
		box.Status = constants.BoxStatusOpen
		box.ClosedAt = nil
		return boxRepo.Update(box)
	})
	s.metrics.IncOperation("box_reopen", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	return box, nil
}

// AssignToPallet 装托并重算托盘汇总，返回重算后的托盘；重复装入同一托盘视为成功
func (s *BoxService) AssignToPallet(ctx context.Context, id, palletID uint) (*models.Pallet, error) {
	if palletID == 0 {
		return nil, validation("pallet_id is required")
	}
	var box *models.Box
	var pallet *models.Pallet
	noop := false
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		noop = false
		boxRepo := s.boxRepo.WithTx(tx)
		palletRepo := s.palletRepo.WithTx(tx)
		var err error
		box, err = s.loadBox(boxRepo, id)
		if err != nil {
			return err
		}
		if box.IsAssigned() && *box.PalletID == palletID {
			noop = true
			pallet, err = loadPallet(palletRepo, palletID)
			return err
		}
		if box.Status != constants.BoxStatusClosed {
			return invalidState("Box %s is %s; only CLOSED boxes can be assigned", box.BoxNo, box.Status)
		}
		if box.IsAssigned() {
			return conflict("Box %s is already assigned to a different pallet (%d)", box.BoxNo, *box.PalletID)
		}
		pallet, err = loadPallet(palletRepo, palletID)
		if err != nil {
			return err
		}
		if pallet.Status != constants.PalletStatusOpen {
			return invalidState("Pallet %s is %s; boxes can only be added while OPEN", pallet.PalletNo, pallet.Status)
		}
		now := time.Now()
		if _, err := boxRepo.SetPallet([]uint{box.ID}, &pallet.ID, now); err != nil {
			return err
		}
		agg, err := s.recalc.Pallet(tx, pallet.ID, now)
		if err != nil {
			return err
		}
		applyPalletAggregate(pallet, agg, now)
		return nil
	})
	s.metrics.IncOperation("box_assign_pallet", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	if !noop {
		s.effects.flush(ctx, &commitEffects{palletIDs: []uint{pallet.ID}})
		logger.FromContext(ctx).Infow("box_assigned_to_pallet", "box_id", box.ID, "box_no", box.BoxNo, "pallet_id", pallet.ID)
	}
	return pallet, nil
}

// RemoveFromPallet 从托盘移出，返回重算后的原托盘
func (s *BoxService) RemoveFromPallet(ctx context.Context, id uint) (*models.Pallet, error) {
	var box *models.Box
	var pallet *models.Pallet
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		boxRepo := s.boxRepo.WithTx(tx)
		var err error
		box, err = s.loadBox(boxRepo, id)
		if err != nil {
			return err
		}
		if !box.IsAssigned() {
			return invalidState("Box %s is not assigned to any pallet", box.BoxNo)
		}
		// 托盘非空时不可删除，原托盘必然存在
		pallet, err = loadPallet(s.palletRepo.WithTx(tx), *box.PalletID)
		if err != nil {
			return err
		}
		if pallet.Status != constants.PalletStatusOpen {
			return invalidState("Pallet %s is %s; boxes can only be removed while OPEN", pallet.PalletNo, pallet.Status)
		}
		now := time.Now()
		if _, err := boxRepo.SetPallet([]uint{box.ID}, nil, now); err != nil {
			return err
		}
		agg, err := s.recalc.Pallet(tx, pallet.ID, now)
		if err != nil {
			return err
		}
		applyPalletAggregate(pallet, agg, now)
		return nil
	})
	s.metrics.IncOperation("box_remove_pallet", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	s.effects.flush(ctx, &commitEffects{palletIDs: []uint{pallet.ID}})
	logger.FromContext(ctx).Infow("box_removed_from_pallet", "box_id", box.ID, "box_no", box.BoxNo, "pallet_id", pallet.ID)
	return pallet, nil
}

// Delete 软删除箱子，仅 OPEN 且未装托时允许
func (s *BoxService) Delete(ctx context.Context, id uint) error {
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		boxRepo := s.boxRepo.WithTx(tx)
		box, err := s.loadBox(boxRepo, id)
		if err != nil {
			return err
		}
		if box.Status != constants.BoxStatusOpen {
			return invalidState("Box %s is %s; only OPEN boxes can be deleted", box.BoxNo, box.Status)
		}
		if box.IsAssigned() {
			return invalidState("Box %s is assigned to pallet %d and cannot be deleted", box.BoxNo, *box.PalletID)
		}
		return boxRepo.Delete(box.ID)
	})
	s.metrics.IncOperation("box_delete", outcomeOf(err))
	return err
}

func (s *BoxService) loadBox(repo *repository.GormBoxRepository, id uint) (*models.Box, error) {
	box, err := repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if box == nil {
		return nil, notFound("Box %d not found", id)
	}
	return box, nil
}
