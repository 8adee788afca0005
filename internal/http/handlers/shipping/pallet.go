package shipping

import (
	"context"
	"strings"

	"github.com/YouHyuksoo/HANES-sub002/internal/http/handlers/shared"
	"github.com/YouHyuksoo/HANES-sub002/internal/http/response"
	"github.com/YouHyuksoo/HANES-sub002/internal/models"
	"github.com/YouHyuksoo/HANES-sub002/internal/repository"

	"github.com/gin-gonic/gin"
)

// CreatePalletRequest 创建托盘请求
type CreatePalletRequest struct {
	PalletNo string `json:"pallet_no" binding:"required,notblank,max=50"`
}

// PalletBoxesRequest 托盘批量增删箱子请求
type PalletBoxesRequest struct {
	BoxIDs []uint `json:"box_ids" binding:"required,min=1"`
}

// AssignShipmentRequest 托盘装车请求
type AssignShipmentRequest struct {
	ShipmentID uint `json:"shipment_id" binding:"required"`
}

// ListPallets 分页查询托盘
func (h *Handler) ListPallets(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)
	shipmentID, ok := shared.QueryUint(c, "shipment_id")
	if !ok {
		return
	}
	filter := repository.PalletListFilter{
		Page:       page,
		PageSize:   pageSize,
		PalletNo:   strings.TrimSpace(c.Query("pallet_no")),
		ShipmentID: shipmentID,
		Status:     strings.ToUpper(strings.TrimSpace(c.Query("status"))),
		Unassigned: shared.QueryBool(c, "unassigned"),
	}
	pallets, total, err := h.PalletService.List(c.Request.Context(), filter)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, pallets, response.BuildPagination(page, pageSize, total))
}

// ListUnassignedPallets 可装车的托盘
func (h *Handler) ListUnassignedPallets(c *gin.Context) {
	pallets, err := h.PalletService.ListUnassigned(c.Request.Context())
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, pallets)
}

// GetPalletByNo 按托盘号查询
func (h *Handler) GetPalletByNo(c *gin.Context) {
	pallet, err := h.PalletService.GetByPalletNo(c.Request.Context(), c.Param("palletNo"))
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, pallet)
}

// ListPalletsByShipment 出货单内的托盘
func (h *Handler) ListPalletsByShipment(c *gin.Context) {
	shipmentID, ok := shared.ParamUint(c, "shipmentId")
	if !ok {
		return
	}
	pallets, err := h.PalletService.ListByShipment(c.Request.Context(), shipmentID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, pallets)
}

// GetPallet 获取托盘
func (h *Handler) GetPallet(c *gin.Context) {
	h.palletAction(c, h.PalletService.Get)
}

// GetPalletSummary 托盘按品目汇总
func (h *Handler) GetPalletSummary(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	summary, err := h.PalletService.Summary(c.Request.Context(), id)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, summary)
}

// CreatePallet 创建托盘
func (h *Handler) CreatePallet(c *gin.Context) {
	var req CreatePalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondBindError(c, err)
		return
	}
	pallet, err := h.PalletService.Create(c.Request.Context(), req.PalletNo)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Created(c, pallet)
}

// DeletePallet 删除托盘
func (h *Handler) DeletePallet(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	if err := h.PalletService.Delete(c.Request.Context(), id); err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, nil)
}

// AddPalletBoxes 批量装箱
func (h *Handler) AddPalletBoxes(c *gin.Context) {
	h.changePalletBoxes(c, h.PalletService.AddBoxes)
}

// RemovePalletBoxes 批量卸箱
func (h *Handler) RemovePalletBoxes(c *gin.Context) {
	h.changePalletBoxes(c, h.PalletService.RemoveBoxes)
}

// ClosePallet 封托
func (h *Handler) ClosePallet(c *gin.Context) {
	h.palletAction(c, h.PalletService.Close)
}

// ReopenPallet 重新开托
func (h *Handler) ReopenPallet(c *gin.Context) {
	h.palletAction(c, h.PalletService.Reopen)
}

// AssignPalletToShipment 托盘装车，返回重算后的出货单
func (h *Handler) AssignPalletToShipment(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req AssignShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondBindError(c, err)
		return
	}
	shipment, err := h.PalletService.AssignToShipment(c.Request.Context(), id, req.ShipmentID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, shipment)
}

// RemovePalletFromShipment 托盘卸车，返回重算后的原出货单
func (h *Handler) RemovePalletFromShipment(c *gin.Context) {
	h.shipmentAction(c, h.PalletService.RemoveFromShipment)
}

func (h *Handler) changePalletBoxes(c *gin.Context, fn func(ctx context.Context, id uint, boxIDs []uint) (*models.Pallet, error)) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req PalletBoxesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondBindError(c, err)
		return
	}
	pallet, err := fn(c.Request.Context(), id, req.BoxIDs)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, pallet)
}

func (h *Handler) palletAction(c *gin.Context, fn func(ctx context.Context, id uint) (*models.Pallet, error)) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	pallet, err := fn(c.Request.Context(), id)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, pallet)
}
