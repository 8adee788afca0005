package repository

import (
	"errors"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/models"

	"gorm.io/gorm"
)

// PalletRepository 托盘数据访问接口
type PalletRepository interface {
	Create(pallet *models.Pallet) error
	GetByID(id uint) (*models.Pallet, error)
	GetByIDWithBoxes(id uint) (*models.Pallet, error)
	GetByPalletNo(palletNo string) (*models.Pallet, error)
	ListByIDs(ids []uint) ([]models.Pallet, error)
	List(filter PalletListFilter) ([]models.Pallet, int64, error)
	ListByShipment(shipmentID uint, withBoxes bool) ([]models.Pallet, error)
	ListUnassigned(status string) ([]models.Pallet, error)
	Update(pallet *models.Pallet) error
	UpdateCounts(id uint, agg ContentAggregate, updatedAt time.Time) error
	Delete(id uint) error
	SetShipment(ids []uint, shipmentID *uint, status string, updatedAt time.Time) (int64, error)
	UpdateStatusByShipment(shipmentID uint, status string, updatedAt time.Time) (int64, error)
	DetachByShipment(shipmentID uint, status string, updatedAt time.Time) (int64, error)
	ListIDsByShipment(shipmentID uint) ([]uint, error)
	AggregateByShipment(shipmentID uint) (ContentAggregate, error)
	WithTx(tx *gorm.DB) *GormPalletRepository
}

// GormPalletRepository GORM 实现
type GormPalletRepository struct {
	db *gorm.DB
}

// NewPalletRepository 创建托盘仓库
func NewPalletRepository(db *gorm.DB) *GormPalletRepository {
	return &GormPalletRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPalletRepository) WithTx(tx *gorm.DB) *GormPalletRepository {
	if tx == nil {
		return r
	}
	return &GormPalletRepository{db: tx}
}

// Create 创建托盘
func (r *GormPalletRepository) Create(pallet *models.Pallet) error {
	return r.db.Omit("Boxes").Create(pallet).Error
}

// GetByID 根据 ID 获取托盘
func (r *GormPalletRepository) GetByID(id uint) (*models.Pallet, error) {
	var pallet models.Pallet
	if err := r.db.First(&pallet, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pallet, nil
}

// GetByIDWithBoxes 获取托盘及其箱子
func (r *GormPalletRepository) GetByIDWithBoxes(id uint) (*models.Pallet, error) {
	var pallet models.Pallet
	if err := r.db.Preload("Boxes", func(db *gorm.DB) *gorm.DB {
		return db.Order("boxes.box_no asc")
	}).Preload("Boxes.Part").First(&pallet, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pallet, nil
}

// GetByPalletNo 根据托盘号获取托盘及其箱子
func (r *GormPalletRepository) GetByPalletNo(palletNo string) (*models.Pallet, error) {
	var pallet models.Pallet
	if err := r.db.Preload("Boxes").Where("pallet_no = ?", palletNo).First(&pallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pallet, nil
}

// ListByIDs 批量获取托盘
func (r *GormPalletRepository) ListByIDs(ids []uint) ([]models.Pallet, error) {
	if len(ids) == 0 {
		return []models.Pallet{}, nil
	}
	var pallets []models.Pallet
	if err := r.db.Where("id IN ?", ids).Order("id asc").Find(&pallets).Error; err != nil {
		return nil, err
	}
	return pallets, nil
}

// List 分页查询托盘
func (r *GormPalletRepository) List(filter PalletListFilter) ([]models.Pallet, int64, error) {
	query := r.db.Model(&models.Pallet{})
	query = whereContains(query, "pallet_no", filter.PalletNo)
	if filter.ShipmentID > 0 {
		query = query.Where("shipment_id = ?", filter.ShipmentID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Unassigned {
		query = query.Where("shipment_id IS NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	var pallets []models.Pallet
	if err := query.Order("id desc").Find(&pallets).Error; err != nil {
		return nil, 0, err
	}
	return pallets, total, nil
}

// ListByShipment 获取出货单内的托盘
func (r *GormPalletRepository) ListByShipment(shipmentID uint, withBoxes bool) ([]models.Pallet, error) {
	query := r.db.Where("shipment_id = ?", shipmentID)
	if withBoxes {
		query = query.Preload("Boxes", func(db *gorm.DB) *gorm.DB {
			return db.Order("boxes.box_no asc")
		})
	}
	var pallets []models.Pallet
	if err := query.Order("pallet_no asc").Find(&pallets).Error; err != nil {
		return nil, err
	}
	return pallets, nil
}

// ListUnassigned 获取未装车的托盘
func (r *GormPalletRepository) ListUnassigned(status string) ([]models.Pallet, error) {
	query := r.db.Where("shipment_id IS NULL")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var pallets []models.Pallet
	if err := query.Order("created_at asc").Find(&pallets).Error; err != nil {
		return nil, err
	}
	return pallets, nil
}

// Update 更新托盘
func (r *GormPalletRepository) Update(pallet *models.Pallet) error {
	return r.db.Omit("Boxes").Save(pallet).Error
}

// UpdateCounts 写回托盘汇总缓存
func (r *GormPalletRepository) UpdateCounts(id uint, agg ContentAggregate, updatedAt time.Time) error {
	return r.db.Model(&models.Pallet{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"box_count":  agg.BoxCount,
			"total_qty":  agg.TotalQty,
			"updated_at": updatedAt,
		}).Error
}

// Delete 软删除托盘
func (r *GormPalletRepository) Delete(id uint) error {
	return r.db.Delete(&models.Pallet{}, id).Error
}

// SetShipment 批量设置托盘所属出货单及状态，shipmentID 为 nil 时解除关联
func (r *GormPalletRepository) SetShipment(ids []uint, shipmentID *uint, status string, updatedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Pallet{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"shipment_id": shipmentID,
			"status":      status,
			"updated_at":  updatedAt,
		})
	return result.RowsAffected, result.Error
}

// UpdateStatusByShipment 批量更新出货单内托盘状态
func (r *GormPalletRepository) UpdateStatusByShipment(shipmentID uint, status string, updatedAt time.Time) (int64, error) {
	result := r.db.Model(&models.Pallet{}).
		Where("shipment_id = ?", shipmentID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": updatedAt,
		})
	return result.RowsAffected, result.Error
}

// DetachByShipment 将出货单内全部托盘解除关联并重置状态
func (r *GormPalletRepository) DetachByShipment(shipmentID uint, status string, updatedAt time.Time) (int64, error) {
	result := r.db.Model(&models.Pallet{}).
		Where("shipment_id = ?", shipmentID).
		Updates(map[string]interface{}{
			"shipment_id": nil,
			"status":      status,
			"updated_at":  updatedAt,
		})
	return result.RowsAffected, result.Error
}

// ListIDsByShipment 获取出货单内托盘 ID
func (r *GormPalletRepository) ListIDsByShipment(shipmentID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.Model(&models.Pallet{}).
		Where("shipment_id = ?", shipmentID).
		Order("id asc").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// AggregateByShipment 实时统计出货单内托盘数、箱数与数量
func (r *GormPalletRepository) AggregateByShipment(shipmentID uint) (ContentAggregate, error) {
	var agg ContentAggregate
	err := r.db.Model(&models.Pallet{}).
		Select("COUNT(*) AS pallet_count, COALESCE(SUM(box_count), 0) AS box_count, COALESCE(SUM(total_qty), 0) AS total_qty").
		Where("shipment_id = ?", shipmentID).
		Scan(&agg).Error
	return agg, err
}
