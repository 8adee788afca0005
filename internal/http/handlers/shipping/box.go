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

// CreateBoxRequest 创建箱子请求
type CreateBoxRequest struct {
	BoxNo   string   `json:"box_no" binding:"required,notblank,max=50"`
	PartID  uint     `json:"part_id" binding:"required"`
	Qty     int      `json:"qty" binding:"min=0"`
	Serials []string `json:"serials"`
}

// SerialsRequest 序列号增删请求
type SerialsRequest struct {
	Serials []string `json:"serials" binding:"required,min=1"`
}

// AssignPalletRequest 箱子装托请求
type AssignPalletRequest struct {
	PalletID uint `json:"pallet_id" binding:"required"`
}

// ListBoxes 分页查询箱子
func (h *Handler) ListBoxes(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)
	partID, ok := shared.QueryUint(c, "part_id")
	if !ok {
		return
	}
	palletID, ok := shared.QueryUint(c, "pallet_id")
	if !ok {
		return
	}
	filter := repository.BoxListFilter{
		Page:       page,
		PageSize:   pageSize,
		BoxNo:      strings.TrimSpace(c.Query("box_no")),
		PartID:     partID,
		PalletID:   palletID,
		Status:     strings.ToUpper(strings.TrimSpace(c.Query("status"))),
		Unassigned: shared.QueryBool(c, "unassigned"),
	}
	boxes, total, err := h.BoxService.List(c.Request.Context(), filter)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, boxes, response.BuildPagination(page, pageSize, total))
}

// ListUnassignedBoxes 可装托的箱子
func (h *Handler) ListUnassignedBoxes(c *gin.Context) {
	boxes, err := h.BoxService.ListUnassigned(c.Request.Context())
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, boxes)
}

// GetBoxByNo 按箱号查询
func (h *Handler) GetBoxByNo(c *gin.Context) {
	box, err := h.BoxService.GetByBoxNo(c.Request.Context(), c.Param("boxNo"))
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, box)
}

// ListBoxesByPallet 托盘上的箱子
func (h *Handler) ListBoxesByPallet(c *gin.Context) {
	palletID, ok := shared.ParamUint(c, "palletId")
	if !ok {
		return
	}
	boxes, err := h.BoxService.ListByPallet(c.Request.Context(), palletID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, boxes)
}

// GetBox 获取箱子
func (h *Handler) GetBox(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	box, err := h.BoxService.Get(c.Request.Context(), id)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, box)
}

// CreateBox 创建箱子
func (h *Handler) CreateBox(c *gin.Context) {
	var req CreateBoxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondBindError(c, err)
		return
	}
	box, err := h.BoxService.Create(c.Request.Context(), service.CreateBoxInput{
		BoxNo:   req.BoxNo,
		PartID:  req.PartID,
		Qty:     req.Qty,
		Serials: req.Serials,
	})
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Created(c, box)
}

// DeleteBox 删除箱子
func (h *Handler) DeleteBox(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	if err := h.BoxService.Delete(c.Request.Context(), id); err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, nil)
}

// AddBoxSerials 追加序列号
func (h *Handler) AddBoxSerials(c *gin.Context) {
	h.changeSerials(c, h.BoxService.AddSerials)
}

// RemoveBoxSerials 移除序列号
func (h *Handler) RemoveBoxSerials(c *gin.Context) {
	h.changeSerials(c, h.BoxService.RemoveSerials)
}

// CloseBox 封箱
func (h *Handler) CloseBox(c *gin.Context) {
	h.boxAction(c, h.BoxService.Close)
}

// ReopenBox 重新开箱
func (h *Handler) ReopenBox(c *gin.Context) {
	h.boxAction(c, h.BoxService.Reopen)
}

// AssignBoxToPallet 箱子装托，返回重算后的托盘
func (h *Handler) AssignBoxToPallet(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req AssignPalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondBindError(c, err)
		return
	}
	pallet, err := h.BoxService.AssignToPallet(c.Request.Context(), id, req.PalletID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, pallet)
}

// RemoveBoxFromPallet 箱子卸托，返回重算后的原托盘
func (h *Handler) RemoveBoxFromPallet(c *gin.Context) {
	h.palletAction(c, h.BoxService.RemoveFromPallet)
}

func (h *Handler) changeSerials(c *gin.Context, fn func(ctx context.Context, id uint, serials []string) (*models.Box, error)) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req SerialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondBindError(c, err)
		return
	}
	box, err := fn(c.Request.Context(), id, req.Serials)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, box)
}

func (h *Handler) boxAction(c *gin.Context, fn func(ctx context.Context, id uint) (*models.Box, error)) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	box, err := fn(c.Request.Context(), id)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, box)
}
