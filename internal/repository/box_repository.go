package repository

import (
	"errors"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/models"

	"gorm.io/gorm"
)

// BoxRepository 箱子数据访问接口
type BoxRepository interface {
	Create(box *models.Box) error
	GetByID(id uint) (*models.Box, error)
	GetByBoxNo(boxNo string) (*models.Box, error)
	ListByIDs(ids []uint) ([]models.Box, error)
	List(filter BoxListFilter) ([]models.Box, int64, error)
	ListByPallet(palletID uint) ([]models.Box, error)
	ListByPalletIDs(palletIDs []uint) ([]models.Box, error)
	ListUnassigned(status string) ([]models.Box, error)
	Update(box *models.Box) error
	Delete(id uint) error
	SetPallet(ids []uint, palletID *uint, updatedAt time.Time) (int64, error)
	UpdateStatusByPalletIDs(palletIDs []uint, status string, updatedAt time.Time) (int64, error)
	AggregateByPallet(palletID uint) (ContentAggregate, error)
	SummarizeByPart(palletIDs []uint) ([]PartQtySummary, error)
	WithTx(tx *gorm.DB) *GormBoxRepository
}

// GormBoxRepository GORM 实现
type GormBoxRepository struct {
	db *gorm.DB
}

// NewBoxRepository 创建箱子仓库
func NewBoxRepository(db *gorm.DB) *GormBoxRepository {
	return &GormBoxRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBoxRepository) WithTx(tx *gorm.DB) *GormBoxRepository {
	if tx == nil {
		return r
	}
	return &GormBoxRepository{db: tx}
}

// Create 创建箱子
func (r *GormBoxRepository) Create(box *models.Box) error {
	return r.db.Create(box).Error
}

// GetByID 根据 ID 获取箱子
func (r *GormBoxRepository) GetByID(id uint) (*models.Box, error) {
	var box models.Box
	if err := r.db.Preload("Part").First(&box, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &box, nil
}

// GetByBoxNo 根据箱号获取箱子
func (r *GormBoxRepository) GetByBoxNo(boxNo string) (*models.Box, error) {
	var box models.Box
	if err := r.db.Preload("Part").Where("box_no = ?", boxNo).First(&box).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &box, nil
}

// ListByIDs 批量获取箱子
func (r *GormBoxRepository) ListByIDs(ids []uint) ([]models.Box, error) {
	if len(ids) == 0 {
		return []models.Box{}, nil
	}
	var boxes []models.Box
	if err := r.db.Where("id IN ?", ids).Order("id asc").Find(&boxes).Error; err != nil {
		return nil, err
	}
	return boxes, nil
}

// List 分页查询箱子
func (r *GormBoxRepository) List(filter BoxListFilter) ([]models.Box, int64, error) {
	query := r.db.Model(&models.Box{})
	query = whereContains(query, "box_no", filter.BoxNo)
	if filter.PartID > 0 {
		query = query.Where("part_id = ?", filter.PartID)
	}
	if filter.PalletID > 0 {
		query = query.Where("pallet_id = ?", filter.PalletID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Unassigned {
		query = query.Where("pallet_id IS NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	var boxes []models.Box
	if err := query.Preload("Part").Order("id desc").Find(&boxes).Error; err != nil {
		return nil, 0, err
	}
	return boxes, total, nil
}

// ListByPallet 获取托盘上的箱子
func (r *GormBoxRepository) ListByPallet(palletID uint) ([]models.Box, error) {
	var boxes []models.Box
	if err := r.db.Preload("Part").Where("pallet_id = ?", palletID).Order("box_no asc").Find(&boxes).Error; err != nil {
		return nil, err
	}
	return boxes, nil
}

// ListByPalletIDs 获取多个托盘上的箱子
func (r *GormBoxRepository) ListByPalletIDs(palletIDs []uint) ([]models.Box, error) {
	if len(palletIDs) == 0 {
		return []models.Box{}, nil
	}
	var boxes []models.Box
	if err := r.db.Where("pallet_id IN ?", palletIDs).Order("id asc").Find(&boxes).Error; err != nil {
		return nil, err
	}
	return boxes, nil
}

// ListUnassigned 获取未装托的箱子
func (r *GormBoxRepository) ListUnassigned(status string) ([]models.Box, error) {
	query := r.db.Preload("Part").Where("pallet_id IS NULL")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var boxes []models.Box
	if err := query.Order("created_at asc").Find(&boxes).Error; err != nil {
		return nil, err
	}
	return boxes, nil
}

// Update 更新箱子
func (r *GormBoxRepository) Update(box *models.Box) error {
	return r.db.Omit("Part").Save(box).Error
}

// Delete 软删除箱子
func (r *GormBoxRepository) Delete(id uint) error {
	return r.db.Delete(&models.Box{}, id).Error
}

// SetPallet 批量设置箱子所属托盘，palletID 为 nil 时解除关联
func (r *GormBoxRepository) SetPallet(ids []uint, palletID *uint, updatedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Box{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"pallet_id":  palletID,
			"updated_at": updatedAt,
		})
	return result.RowsAffected, result.Error
}

// UpdateStatusByPalletIDs 批量更新托盘内箱子状态
func (r *GormBoxRepository) UpdateStatusByPalletIDs(palletIDs []uint, status string, updatedAt time.Time) (int64, error) {
	if len(palletIDs) == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Box{}).
		Where("pallet_id IN ?", palletIDs).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": updatedAt,
		})
	return result.RowsAffected, result.Error
}

// AggregateByPallet 实时统计托盘内箱数与数量
func (r *GormBoxRepository) AggregateByPallet(palletID uint) (ContentAggregate, error) {
	var agg ContentAggregate
	err := r.db.Model(&models.Box{}).
		Select("COUNT(*) AS box_count, COALESCE(SUM(qty), 0) AS total_qty").
		Where("pallet_id = ?", palletID).
		Scan(&agg).Error
	return agg, err
}

// SummarizeByPart 按品目汇总托盘内的箱数与数量
func (r *GormBoxRepository) SummarizeByPart(palletIDs []uint) ([]PartQtySummary, error) {
	if len(palletIDs) == 0 {
		return []PartQtySummary{}, nil
	}
	var rows []PartQtySummary
	if err := r.db.Model(&models.Box{}).
		Select("boxes.part_id AS part_id, COALESCE(parts.part_code, '') AS part_code, COALESCE(parts.part_name, '') AS part_name, COUNT(*) AS box_count, COALESCE(SUM(boxes.qty), 0) AS total_qty").
		Joins("LEFT JOIN parts ON parts.id = boxes.part_id").
		Where("boxes.pallet_id IN ?", palletIDs).
		Group("boxes.part_id, parts.part_code, parts.part_name").
		Order("boxes.part_id asc").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
