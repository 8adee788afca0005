package repository

import (
	"errors"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/models"

	"gorm.io/gorm"
)

// ShipmentRepository 出货单数据访问接口
type ShipmentRepository interface {
	Create(shipment *models.Shipment) error
	GetByID(id uint) (*models.Shipment, error)
	GetByShipNo(shipNo string) (*models.Shipment, error)
	List(filter ShipmentListFilter) ([]models.Shipment, int64, error)
	ListShippedBetween(from, to time.Time, customer string) ([]models.Shipment, error)
	ListUnsynced(statuses []string) ([]models.Shipment, error)
	Update(shipment *models.Shipment) error
	UpdateCounts(id uint, agg ContentAggregate, updatedAt time.Time) error
	UpdateErpSync(ids []uint, flag string, updatedAt time.Time) (int64, error)
	ResetErpSyncIfUnchanged(id uint, status, flag string, notAfter, updatedAt time.Time) (int64, error)
	Delete(id uint) error
	WithTx(tx *gorm.DB) *GormShipmentRepository
}

// GormShipmentRepository GORM 实现
type GormShipmentRepository struct {
	db *gorm.DB
}

// NewShipmentRepository 创建出货单仓库
func NewShipmentRepository(db *gorm.DB) *GormShipmentRepository {
	return &GormShipmentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormShipmentRepository) WithTx(tx *gorm.DB) *GormShipmentRepository {
	if tx == nil {
		return r
	}
	return &GormShipmentRepository{db: tx}
}

// Create 创建出货单
func (r *GormShipmentRepository) Create(shipment *models.Shipment) error {
	return r.db.Omit("Pallets").Create(shipment).Error
}

// GetByID 根据 ID 获取出货单
func (r *GormShipmentRepository) GetByID(id uint) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := r.db.First(&shipment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shipment, nil
}

// GetByShipNo 根据出货单号获取
func (r *GormShipmentRepository) GetByShipNo(shipNo string) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := r.db.Where("ship_no = ?", shipNo).First(&shipment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shipment, nil
}

// List 分页查询出货单
func (r *GormShipmentRepository) List(filter ShipmentListFilter) ([]models.Shipment, int64, error) {
	query := r.db.Model(&models.Shipment{})
	query = whereContains(query, "ship_no", filter.ShipNo)
	query = whereContains(query, "customer", filter.Customer)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ErpSyncYn != "" {
		query = query.Where("erp_sync_yn = ?", filter.ErpSyncYn)
	}
	if filter.ShipDateFrom != nil {
		query = query.Where("ship_date >= ?", *filter.ShipDateFrom)
	}
	if filter.ShipDateTo != nil {
		query = query.Where("ship_date <= ?", *filter.ShipDateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	var shipments []models.Shipment
	if err := query.Order("id desc").Find(&shipments).Error; err != nil {
		return nil, 0, err
	}
	return shipments, total, nil
}

// ListShippedBetween 获取区间内已出货/已送达的出货单
func (r *GormShipmentRepository) ListShippedBetween(from, to time.Time, customer string) ([]models.Shipment, error) {
	query := r.db.Model(&models.Shipment{}).
		Where("ship_date >= ? AND ship_date <= ?", from, to).
		Where("status IN ?", []string{"SHIPPED", "DELIVERED"})
	query = whereContains(query, "customer", customer)
	var shipments []models.Shipment
	if err := query.Order("ship_date asc, id asc").Find(&shipments).Error; err != nil {
		return nil, err
	}
	return shipments, nil
}

// ListUnsynced 获取尚未同步 ERP 的出货单
func (r *GormShipmentRepository) ListUnsynced(statuses []string) ([]models.Shipment, error) {
	query := r.db.Where("erp_sync_yn = ?", "N")
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var shipments []models.Shipment
	if err := query.Order("ship_at asc, id asc").Find(&shipments).Error; err != nil {
		return nil, err
	}
	return shipments, nil
}

// Update 更新出货单
func (r *GormShipmentRepository) Update(shipment *models.Shipment) error {
	return r.db.Omit("Pallets").Save(shipment).Error
}

// UpdateCounts 写回出货单汇总缓存
func (r *GormShipmentRepository) UpdateCounts(id uint, agg ContentAggregate, updatedAt time.Time) error {
	return r.db.Model(&models.Shipment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"pallet_count": agg.PalletCount,
			"box_count":    agg.BoxCount,
			"total_qty":    agg.TotalQty,
			"updated_at":   updatedAt,
		}).Error
}

// UpdateErpSync 批量设置 ERP 同步标记
func (r *GormShipmentRepository) UpdateErpSync(ids []uint, flag string, updatedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Shipment{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"erp_sync_yn": flag,
			"updated_at":  updatedAt,
		})
	return result.RowsAffected, result.Error
}

// ResetErpSyncIfUnchanged 单条条件更新：出货单仍为 status 且 notAfter 之后未被修改时才把 ERP 标记改为 flag
func (r *GormShipmentRepository) ResetErpSyncIfUnchanged(id uint, status, flag string, notAfter, updatedAt time.Time) (int64, error) {
	result := r.db.Model(&models.Shipment{}).
		Where("id = ? AND status = ? AND erp_sync_yn <> ? AND updated_at <= ?", id, status, flag, notAfter).
		Updates(map[string]interface{}{
			"erp_sync_yn": flag,
			"updated_at":  updatedAt,
		})
	return result.RowsAffected, result.Error
}

// Delete 软删除出货单
func (r *GormShipmentRepository) Delete(id uint) error {
	return r.db.Delete(&models.Shipment{}, id).Error
}
