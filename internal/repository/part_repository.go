package repository

import (
	"errors"

	"github.com/YouHyuksoo/HANES-sub002/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PartRepository 品目主数据访问接口
type PartRepository interface {
	GetByID(id uint) (*models.Part, error)
	GetByCode(code string) (*models.Part, error)
	ListByIDs(ids []uint) ([]models.Part, error)
	UpsertByCode(part *models.Part) error
	WithTx(tx *gorm.DB) *GormPartRepository
}

// GormPartRepository GORM 实现
type GormPartRepository struct {
	db *gorm.DB
}

// NewPartRepository 创建品目仓库
func NewPartRepository(db *gorm.DB) *GormPartRepository {
	return &GormPartRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPartRepository) WithTx(tx *gorm.DB) *GormPartRepository {
	if tx == nil {
		return r
	}
	return &GormPartRepository{db: tx}
}

// GetByID 根据 ID 获取品目
func (r *GormPartRepository) GetByID(id uint) (*models.Part, error) {
	var part models.Part
	if err := r.db.First(&part, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &part, nil
}

// GetByCode 根据品目编码获取
func (r *GormPartRepository) GetByCode(code string) (*models.Part, error) {
	var part models.Part
	if err := r.db.Where("part_code = ?", code).First(&part).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &part, nil
}

// ListByIDs 批量获取品目
func (r *GormPartRepository) ListByIDs(ids []uint) ([]models.Part, error) {
	if len(ids) == 0 {
		return []models.Part{}, nil
	}
	var parts []models.Part
	if err := r.db.Where("id IN ?", ids).Order("id asc").Find(&parts).Error; err != nil {
		return nil, err
	}
	return parts, nil
}

// UpsertByCode 按品目编码写入或更新名称
func (r *GormPartRepository) UpsertByCode(part *models.Part) error {
	if part == nil {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "part_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"part_name", "part_type", "updated_at"}),
	}).Create(part).Error
}
