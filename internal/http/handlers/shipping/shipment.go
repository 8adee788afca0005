package shipping

import (
	"context"
	"strings"

	"github.com/YouHyuksoo/HANES-sub002/internal/http/handlers/shared"
	"github.com/YouHyuksoo/HANES-sub002/internal/http/response"
	"github.com/YouHyuksoo/HANES-sub002/internal/models"
	"github.com/YouHyuksoo/HANES-sub002/internal/repository"
	"github.com/YouHyuksoo/HANES-sub002/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateShipmentRequest 创建出货单请求
type CreateShipmentRequest struct {
	ShipNo      string `json:"ship_no" binding:"required,notblank,max=50"`
	ShipDate    string `json:"ship_date"`
	VehicleNo   string `json:"vehicle_no" binding:"max=50"`
	DriverName  string `json:"driver_name" binding:"max=100"`
	Destination string `json:"destination" binding:"max=200"`
	Customer    string `json:"customer" binding:"max=100"`
	Remark      string `json:"remark" binding:"max=500"`
}

// UpdateShipmentRequest 更新出货单抬头请求，缺省字段保持不变
type UpdateShipmentRequest struct {
	ShipDate    *string `json:"ship_date"`
	VehicleNo   *string `json:"vehicle_no" binding:"omitempty,max=50"`
	DriverName  *string `json:"driver_name" binding:"omitempty,max=100"`
	Destination *string `json:"destination" binding:"omitempty,max=200"`
	Customer    *string `json:"customer" binding:"omitempty,max=100"`
	Remark      *string `json:"remark" binding:"omitempty,max=500"`
}

// ShipmentPalletsRequest 批量装车/卸车请求
type ShipmentPalletsRequest struct {
	PalletIDs []uint `json:"pallet_ids" binding:"required,min=1"`
}

// CancelShipmentRequest 取消出货单请求
type CancelShipmentRequest struct {
	Remark string `json:"remark" binding:"max=500"`
}

// ChangeStatusRequest 管理员强制变更状态请求
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required,shipment_status"`
	Remark string `json:"remark" binding:"max=500"`
}

// ErpSyncRequest 设置 ERP 同步标记请求
type ErpSyncRequest struct {
	ErpSyncYn string `json:"erp_sync_yn" binding:"required,notblank"`
}

// MarkSyncedRequest ERP 回执请求
type MarkSyncedRequest struct {
	ShipmentIDs []uint `json:"shipment_ids" binding:"required,min=1"`
}

// ListShipments 分页查询出货单
func (h *Handler) ListShipments(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)
	from, err := parseOptionalDate(c.Query("ship_date_from"))
	if err != nil {
		response.BadRequest(c, "invalid ship_date_from")
		return
	}
	to, err := parseOptionalDate(c.Query("ship_date_to"))
	if err != nil {
		response.BadRequest(c, "invalid ship_date_to")
		return
	}
	filter := repository.ShipmentListFilter{
		Page:         page,
		PageSize:     pageSize,
		ShipNo:       strings.TrimSpace(c.Query("ship_no")),
		Customer:     strings.TrimSpace(c.Query("customer")),
		Status:       strings.ToUpper(strings.TrimSpace(c.Query("status"))),
		ErpSyncYn:    strings.ToUpper(strings.TrimSpace(c.Query("erp_sync_yn"))),
		ShipDateFrom: from,
		ShipDateTo:   to,
	}
	shipments, total, err := h.ShipmentService.List(c.Request.Context(), filter)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, shipments, response.BuildPagination(page, pageSize, total))
}

// GetShipmentByNo 按出货单号查询
func (h *Handler) GetShipmentByNo(c *gin.Context) {
	shipment, err := h.ShipmentService.GetByShipNo(c.Request.Context(), c.Param("shipNo"))
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, shipment)
}

// GetShipment 获取出货单
func (h *Handler) GetShipment(c *gin.Context) {
	h.shipmentAction(c, h.ShipmentService.Get)
}

// GetShipmentSummary 出货单按品目汇总
func (h *Handler) GetShipmentSummary(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	summary, err := h.ShipmentService.Summary(c.Request.Context(), id)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, summary)
}

// ListShipmentPallets 出货单内托盘及箱子
func (h *Handler) ListShipmentPallets(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	pallets, err := h.ShipmentService.Pallets(c.Request.Context(), id)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, pallets)
}

// ListShipmentEvents 出货单状态变更记录
func (h *Handler) ListShipmentEvents(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	events, err := h.ShipmentService.Events(c.Request.Context(), id)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, events)
}

// VerifyShipmentPallet 装车扫码校验
func (h *Handler) VerifyShipmentPallet(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	result, err := h.ShipmentService.VerifyPalletBarcode(c.Request.Context(), id, c.Query("pallet_no"))
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// GetDailyStats 按日出货统计
func (h *Handler) GetDailyStats(c *gin.Context) {
	from, to, ok := parseStatsRange(c)
	if !ok {
		return
	}
	result, err := h.ShipmentService.DailyStats(c.Request.Context(), from, to, c.Query("customer"))
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// GetCustomerStats 按客户出货统计
func (h *Handler) GetCustomerStats(c *gin.Context) {
	from, to, ok := parseStatsRange(c)
	if !ok {
		return
	}
	result, err := h.ShipmentService.CustomerStats(c.Request.Context(), from, to)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// ListErpUnsynced 待同步 ERP 的出货单
func (h *Handler) ListErpUnsynced(c *gin.Context) {
	shipments, err := h.ShipmentService.ListUnsyncedForErp(c.Request.Context())
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, shipments)
}

// MarkErpSynced ERP 同步回执
func (h *Handler) MarkErpSynced(c *gin.Context) {
	var req MarkSyncedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondBindError(c, err)
		return
	}
	affected, err := h.ShipmentService.MarkSynced(c.Request.Context(), req.ShipmentIDs)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"affected": affected})
}

// CreateShipment 创建出货单
func (h *Handler) CreateShipment(c *gin.Context) {
	var req CreateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondBindError(c, err)
		return
	}
	shipDate, err := parseOptionalDate(req.ShipDate)
	if err != nil {
		response.BadRequest(c, "invalid ship_date")
		return
	}
	shipment, err := h.ShipmentService.Create(c.Request.Context(), service.CreateShipmentInput{
		ShipNo:      req.ShipNo,
		ShipDate:    shipDate,
		VehicleNo:   req.VehicleNo,
		DriverName:  req.DriverName,
		Destination: req.Destination,
		Customer:    req.Customer,
		Remark:      req.Remark,
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Created(c, shipment)
}

// UpdateShipment 更新出货单抬头
func (h *Handler) UpdateShipment(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req UpdateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondBindError(c, err)
		return
	}
	input := service.UpdateShipmentInput{
		VehicleNo:   req.VehicleNo,
		DriverName:  req.DriverName,
		Destination: req.Destination,
		Customer:    req.Customer,
		Remark:      req.Remark,
	}
	if req.ShipDate != nil {
		shipDate, err := parseOptionalDate(*req.ShipDate)
		if err != nil || shipDate == nil {
			response.BadRequest(c, "invalid ship_date")
			return
		}
		input.ShipDate = shipDate
	}
	shipment, err := h.ShipmentService.Update(c.Request.Context(), id, input)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, shipment)
}

// DeleteShipment 删除出货单
func (h *Handler) DeleteShipment(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	if err := h.ShipmentService.Delete(c.Request.Context(), id); err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, nil)
}

// LoadShipmentPallets 批量装车
func (h *Handler) LoadShipmentPallets(c *gin.Context) {
	h.changeShipmentPallets(c, h.ShipmentService.LoadPallets)
}

// UnloadShipmentPallets 批量卸车
func (h *Handler) UnloadShipmentPallets(c *gin.Context) {
	h.changeShipmentPallets(c, h.ShipmentService.UnloadPallets)
}

// MarkShipmentLoaded 装车完成
func (h *Handler) MarkShipmentLoaded(c *gin.Context) {
	h.shipmentAction(c, h.ShipmentService.MarkAsLoaded)
}

// MarkShipmentShipped 出货
func (h *Handler) MarkShipmentShipped(c *gin.Context) {
	h.shipmentAction(c, h.ShipmentService.MarkAsShipped)
}

// MarkShipmentDelivered 送达
func (h *Handler) MarkShipmentDelivered(c *gin.Context) {
	h.shipmentAction(c, h.ShipmentService.MarkAsDelivered)
}

// CancelShipment 取消出货单
func (h *Handler) CancelShipment(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req CancelShipmentRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		shared.RespondBindError(c, err)
		return
	}
	shipment, err := h.ShipmentService.Cancel(c.Request.Context(), id, req.Remark)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, shipment)
}

// ChangeShipmentStatus 管理员强制变更状态
func (h *Handler) ChangeShipmentStatus(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondBindError(c, err)
		return
	}
	shipment, err := h.ShipmentService.ChangeStatus(c.Request.Context(), id, req.Status, req.Remark)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, shipment)
}

// UpdateShipmentErpSync 设置 ERP 同步标记
func (h *Handler) UpdateShipmentErpSync(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req ErpSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondBindError(c, err)
		return
	}
	shipment, err := h.ShipmentService.UpdateErpSync(c.Request.Context(), id, req.ErpSyncYn)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, shipment)
}

func (h *Handler) changeShipmentPallets(c *gin.Context, fn func(ctx context.Context, id uint, palletIDs []uint) (*models.Shipment, error)) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req ShipmentPalletsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondBindError(c, err)
		return
	}
	shipment, err := fn(c.Request.Context(), id, req.PalletIDs)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, shipment)
}

func (h *Handler) shipmentAction(c *gin.Context, fn func(ctx context.Context, id uint) (*models.Shipment, error)) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	shipment, err := fn(c.Request.Context(), id)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, shipment)
}
