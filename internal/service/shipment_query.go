package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/YouHyuksoo/HANES-sub002/internal/cache"
	"github.com/YouHyuksoo/HANES-sub002/internal/constants"
	"github.com/YouHyuksoo/HANES-sub002/internal/logger"
	"github.com/YouHyuksoo/HANES-sub002/internal/models"
	"github.com/YouHyuksoo/HANES-sub002/internal/repository"

	"gorm.io/gorm"
)

const statsDateLayout = "2006-01-02"

// ShipmentSummary 出货单抬头、汇总缓存及按品目明细
type ShipmentSummary struct {
	ShipmentID  uint                        `json:"shipment_id"`
	ShipNo      string                      `json:"ship_no"`
	Status      string                      `json:"status"`
	Customer    string                      `json:"customer"`
	ShipDate    *time.Time                  `json:"ship_date"`
	PalletCount int                         `json:"pallet_count"`
	BoxCount    int                         `json:"box_count"`
	TotalQty    int                         `json:"total_qty"`
	Parts       []repository.PartQtySummary `json:"parts"`
	Version     int64                       `json:"version"`
}

// PalletVerifyResult 托盘条码核对结果
type PalletVerifyResult struct {
	Result     string `json:"result"`
	ShipmentID uint   `json:"shipment_id"`
	PalletNo   string `json:"pallet_no"`
	PalletID   uint   `json:"pallet_id,omitempty"`
	BoxCount   int    `json:"box_count,omitempty"`
	TotalQty   int    `json:"total_qty,omitempty"`
	Message    string `json:"message"`
}

// ShipmentTotals 出货统计合计
type ShipmentTotals struct {
	ShipmentCount int `json:"shipment_count"`
	PalletCount   int `json:"pallet_count"`
	BoxCount      int `json:"box_count"`
	TotalQty      int `json:"total_qty"`
}

// DailyShipmentStat 按出货日期的统计
type DailyShipmentStat struct {
	Date string `json:"date"`
	ShipmentTotals
}

// CustomerShipmentStat 按客户的统计
type CustomerShipmentStat struct {
	Customer string `json:"customer"`
	ShipmentTotals
}

// DailyStatsResult 日统计结果
type DailyStatsResult struct {
	From     string              `json:"from"`
	To       string              `json:"to"`
	Customer string              `json:"customer,omitempty"`
	Days     []DailyShipmentStat `json:"days"`
	Totals   ShipmentTotals      `json:"totals"`
}

// Get 获取出货单
func (s *ShipmentService) Get(ctx context.Context, id uint) (*models.Shipment, error) {
	return loadShipment(s.shipmentRepo.WithTx(s.tx.DB(ctx)), id)
}

// GetByShipNo 按出货单号获取
func (s *ShipmentService) GetByShipNo(ctx context.Context, shipNo string) (*models.Shipment, error) {
	shipNo = normalizeNumber(shipNo)
	if shipNo == "" {
		return nil, validation("ship_no is required")
	}
	shipment, err := s.shipmentRepo.WithTx(s.tx.DB(ctx)).GetByShipNo(shipNo)
	if err != nil {
		return nil, err
	}
	if shipment == nil {
		return nil, notFound("Shipment %s not found", shipNo)
	}
	return shipment, nil
}

// List 分页查询出货单
func (s *ShipmentService) List(ctx context.Context, filter repository.ShipmentListFilter) ([]models.Shipment, int64, error) {
	if filter.Status != "" && !constants.IsShipmentStatus(filter.Status) {
		return nil, 0, validation("unknown shipment status %s", filter.Status)
	}
	if filter.ErpSyncYn != "" && filter.ErpSyncYn != constants.ErpSyncYes && filter.ErpSyncYn != constants.ErpSyncNo {
		return nil, 0, validation("erp_sync_yn must be Y or N")
	}
	return s.shipmentRepo.WithTx(s.tx.DB(ctx)).List(filter)
}

// Pallets 出货单内托盘及其箱子
func (s *ShipmentService) Pallets(ctx context.Context, id uint) ([]models.Pallet, error) {
	db := s.tx.DB(ctx)
	if _, err := loadShipment(s.shipmentRepo.WithTx(db), id); err != nil {
		return nil, err
	}
	return s.palletRepo.WithTx(db).ListByShipment(id, true)
}

// Events 出货单状态审计记录
func (s *ShipmentService) Events(ctx context.Context, id uint) ([]models.ShipmentEvent, error) {
	db := s.tx.DB(ctx)
	if _, err := loadShipment(s.shipmentRepo.WithTx(db), id); err != nil {
		return nil, err
	}
	return s.eventRepo.WithTx(db).ListByShipment(id)
}

// VerifyPalletBarcode 装车扫码核对托盘是否属于该出货单
func (s *ShipmentService) VerifyPalletBarcode(ctx context.Context, id uint, palletNo string) (*PalletVerifyResult, error) {
	palletNo = normalizeNumber(palletNo)
	if palletNo == "" {
		return nil, validation("pallet_no is required")
	}
	db := s.tx.DB(ctx)
	shipment, err := loadShipment(s.shipmentRepo.WithTx(db), id)
	if err != nil {
		return nil, err
	}
	result := &PalletVerifyResult{ShipmentID: shipment.ID, PalletNo: palletNo}
	pallet, err := s.palletRepo.WithTx(db).GetByPalletNo(palletNo)
	if err != nil {
		return nil, err
	}
	switch {
	case pallet == nil:
		result.Result = constants.PalletVerifyNotFound
		result.Message = "pallet not found"
	case pallet.ShipmentID == nil || *pallet.ShipmentID != shipment.ID:
		result.Result = constants.PalletVerifyWrongShipment
		result.PalletID = pallet.ID
		result.Message = "pallet does not belong to shipment " + shipment.ShipNo
	default:
		result.Result = constants.PalletVerifyOK
		result.PalletID = pallet.ID
		result.BoxCount = pallet.BoxCount
		result.TotalQty = pallet.TotalQty
		result.Message = "verified"
	}
	return result, nil
}

// Summary 出货单汇总；缓存以出货单 updated_at 为版本，提交前读出的旧汇总不会被当作命中
func (s *ShipmentService) Summary(ctx context.Context, id uint) (*ShipmentSummary, error) {
	db := s.tx.DB(ctx)
	shipment, err := loadShipment(s.shipmentRepo.WithTx(db), id)
	if err != nil {
		return nil, err
	}
	version := summaryVersion(shipment.UpdatedAt)

	key := cache.ShipmentSummaryKey(id)
	var cached ShipmentSummary
	hit, err := cache.GetJSON(ctx, key, &cached)
	if err != nil {
		logger.FromContext(ctx).Warnw("shipment_summary_cache_read_failed", "shipment_id", id, "error", err)
	}
	hit = hit && cached.Version == version
	if cache.Enabled() {
		s.metrics.IncCacheLookup(hit)
	}
	if hit {
		return &cached, nil
	}

	palletIDs, err := s.palletRepo.WithTx(db).ListIDsByShipment(shipment.ID)
	if err != nil {
		return nil, err
	}
	parts, err := s.boxRepo.WithTx(db).SummarizeByPart(palletIDs)
	if err != nil {
		return nil, err
	}
	summary := &ShipmentSummary{
		ShipmentID:  shipment.ID,
		ShipNo:      shipment.ShipNo,
		Status:      shipment.Status,
		Customer:    shipment.Customer,
		ShipDate:    shipment.ShipDate,
		PalletCount: shipment.PalletCount,
		BoxCount:    shipment.BoxCount,
		TotalQty:    shipment.TotalQty,
		Parts:       parts,
		Version:     version,
	}
	if err := cache.SetJSON(ctx, key, summary, s.cacheTTL); err != nil {
		logger.FromContext(ctx).Warnw("shipment_summary_cache_write_failed", "shipment_id", id, "error", err)
	}
	return summary, nil
}

// UpdateErpSync 设置 ERP 同步标记
func (s *ShipmentService) UpdateErpSync(ctx context.Context, id uint, flag string) (*models.Shipment, error) {
	flag = strings.ToUpper(strings.TrimSpace(flag))
	if flag != constants.ErpSyncYes && flag != constants.ErpSyncNo {
		return nil, validation("erp_sync_yn must be Y or N")
	}
	var shipment *models.Shipment
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		shipmentRepo := s.shipmentRepo.WithTx(tx)
		var err error
		shipment, err = loadShipment(shipmentRepo, id)
		if err != nil {
			return err
		}
		now := time.Now()
		if _, err := shipmentRepo.UpdateErpSync([]uint{shipment.ID}, flag, now); err != nil {
			return err
		}
		shipment.ErpSyncYn = flag
		shipment.UpdatedAt = now
		return nil
	})
	s.metrics.IncOperation("shipment_update_erp_sync", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Infow("shipment_erp_sync_updated", "shipment_id", shipment.ID, "erp_sync_yn", flag)
	return shipment, nil
}

// ListUnsyncedForErp 已出货但尚未同步 ERP 的出货单，按出货时间排序
func (s *ShipmentService) ListUnsyncedForErp(ctx context.Context) ([]models.Shipment, error) {
	return s.shipmentRepo.WithTx(s.tx.DB(ctx)).ListUnsynced([]string{
		constants.ShipmentStatusShipped,
		constants.ShipmentStatusDelivered,
	})
}

// MarkSynced ERP 回执：批量标记已同步，返回实际更新行数
func (s *ShipmentService) MarkSynced(ctx context.Context, ids []uint) (int64, error) {
	normalized, err := normalizeIDs(ids, "shipment_ids", s.maxBatchSize)
	if err != nil {
		return 0, err
	}
	var affected int64
	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		var err error
		affected, err = s.shipmentRepo.WithTx(tx).UpdateErpSync(normalized, constants.ErpSyncYes, time.Now())
		return err
	})
	s.metrics.IncOperation("shipment_mark_synced", outcomeOf(err))
	if err != nil {
		return 0, err
	}
	logger.FromContext(ctx).Infow("shipment_erp_marked_synced", "shipment_ids", normalized, "affected", affected)
	return affected, nil
}

// ShipmentEventAck 出货事件确认结果
type ShipmentEventAck struct {
	Event        *models.ShipmentEvent
	Shipment     *models.Shipment
	Skipped      bool
	ErpFlagReset bool
}

// AcknowledgeEvent 确认出货事件已转发：同一事务内复位上一轮遗留的 ERP 同步标记并标记事件已通知。
// 复位是单条条件更新，事件产生后出货单若被再次修改（例如 ERP 回执写入 Y）则保持不动。
func (s *ShipmentService) AcknowledgeEvent(ctx context.Context, eventID uint) (*ShipmentEventAck, error) {
	if eventID == 0 {
		return nil, validation("event_id is required")
	}
	ack := &ShipmentEventAck{}
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		*ack = ShipmentEventAck{}
		eventRepo := s.eventRepo.WithTx(tx)
		shipmentRepo := s.shipmentRepo.WithTx(tx)
		event, err := eventRepo.GetByID(eventID)
		if err != nil {
			return err
		}
		ack.Event = event
		if event == nil || event.NotifiedAt != nil {
			ack.Skipped = true
			return nil
		}
		now := time.Now()
		if event.ToStatus == constants.ShipmentStatusShipped {
			affected, err := shipmentRepo.ResetErpSyncIfUnchanged(event.ShipmentID,
				constants.ShipmentStatusShipped, constants.ErpSyncNo, event.CreatedAt, now)
			if err != nil {
				return err
			}
			ack.ErpFlagReset = affected > 0
		}
		ack.Shipment, err = shipmentRepo.GetByID(event.ShipmentID)
		if err != nil {
			return err
		}
		return eventRepo.MarkNotified(event.ID, now)
	})
	s.metrics.IncOperation("shipment_event_ack", outcomeOf(err))
	if err != nil {
		return nil, err
	}
	if ack.ErpFlagReset {
		logger.FromContext(ctx).Infow("shipment_erp_flag_reset", "shipment_id", ack.Event.ShipmentID, "event_id", eventID)
	}
	return ack, nil
}

// DailyStats 按出货日期统计区间内已出货/已送达的出货单，to 为包含当天
func (s *ShipmentService) DailyStats(ctx context.Context, from, to time.Time, customer string) (*DailyStatsResult, error) {
	start, end, err := statsRange(from, to)
	if err != nil {
		return nil, err
	}
	customer = strings.TrimSpace(customer)
	shipments, err := s.shipmentRepo.WithTx(s.tx.DB(ctx)).ListShippedBetween(start, end, customer)
	if err != nil {
		return nil, err
	}
	result := &DailyStatsResult{
		From:     start.Format(statsDateLayout),
		To:       to.Format(statsDateLayout),
		Customer: customer,
		Days:     make([]DailyShipmentStat, 0),
	}
	index := make(map[string]int)
	for i := range shipments {
		shipment := &shipments[i]
		if shipment.ShipDate == nil {
			continue
		}
		day := shipment.ShipDate.In(start.Location()).Format(statsDateLayout)
		pos, ok := index[day]
		if !ok {
			pos = len(result.Days)
			index[day] = pos
			result.Days = append(result.Days, DailyShipmentStat{Date: day})
		}
		result.Days[pos].add(shipment)
		result.Totals.add(shipment)
	}
	sort.Slice(result.Days, func(i, j int) bool { return result.Days[i].Date < result.Days[j].Date })
	return result, nil
}

// CustomerStats 按客户统计区间内已出货/已送达的出货单，数量降序
func (s *ShipmentService) CustomerStats(ctx context.Context, from, to time.Time) ([]CustomerShipmentStat, error) {
	start, end, err := statsRange(from, to)
	if err != nil {
		return nil, err
	}
	shipments, err := s.shipmentRepo.WithTx(s.tx.DB(ctx)).ListShippedBetween(start, end, "")
	if err != nil {
		return nil, err
	}
	stats := make([]CustomerShipmentStat, 0)
	index := make(map[string]int)
	for i := range shipments {
		shipment := &shipments[i]
		pos, ok := index[shipment.Customer]
		if !ok {
			pos = len(stats)
			index[shipment.Customer] = pos
			stats = append(stats, CustomerShipmentStat{Customer: shipment.Customer})
		}
		stats[pos].add(shipment)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].TotalQty != stats[j].TotalQty {
			return stats[i].TotalQty > stats[j].TotalQty
		}
		return stats[i].Customer < stats[j].Customer
	})
	return stats, nil
}

func (t *ShipmentTotals) add(shipment *models.Shipment) {
	t.ShipmentCount++
	t.PalletCount += shipment.PalletCount
	t.BoxCount += shipment.BoxCount
	t.TotalQty += shipment.TotalQty
}

// statsRange 将 [from, to] 日期区间转换为查询边界，to 覆盖整天
func statsRange(from, to time.Time) (time.Time, time.Time, error) {
	if from.IsZero() || to.IsZero() {
		return time.Time{}, time.Time{}, validation("from and to are required")
	}
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	endDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location())
	if endDay.Before(start) {
		return time.Time{}, time.Time{}, validation("from must not be after to")
	}
	return start, endDay.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}
