package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mercaldo/pos-api/internal/application/dto"
	"github.com/mercaldo/pos-api/internal/application/ledger"
	"github.com/mercaldo/pos-api/internal/domain/entity"
	"github.com/mercaldo/pos-api/internal/domain/repository"
)

// StockHandler maneja las peticiones HTTP del libro de stock (protegido).
type StockHandler struct {
	ledger    *ledger.StockLedger
	stockRepo repository.StockRepository
}

// NewStockHandler construye el handler.
func NewStockHandler(l *ledger.StockLedger, stockRepo repository.StockRepository) *StockHandler {
	return &StockHandler{ledger: l, stockRepo: stockRepo}
}

// ListByBranch godoc
// @Summary      Stock de una sucursal
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        branch_id  path  string  true  "Branch ID"
// @Success      200  {array}  dto.StockResponse
// @Router       /api/stock/branch/{branch_id} [get]
func (h *StockHandler) ListByBranch(c *fiber.Ctx) error {
	records, err := h.stockRepo.ListByBranch(c.Params("branch_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toStockResponses(records))
}

// ListLowStock godoc
// @Summary      Productos en o por debajo de su umbral de stock bajo
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        branch_id  path  string  true  "Branch ID"
// @Success      200  {array}  dto.StockResponse
// @Router       /api/stock/branch/{branch_id}/low [get]
func (h *StockHandler) ListLowStock(c *fiber.Ctx) error {
	records, err := h.stockRepo.ListLowStock(c.Params("branch_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toStockResponses(records))
}

// ManualAdjust godoc
// @Summary      Ajuste manual de stock (conteo físico, merma, daño)
// @Description  Requiere rol admin o gerente. El motivo es obligatorio y queda en auditoría.
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ManualAdjustRequest  true  "product_id, branch_id, delta, reason"
// @Success      200   {object}  dto.AdjustResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/adjust [post]
func (h *StockHandler) ManualAdjust(c *fiber.Ctx) error {
	var in dto.ManualAdjustRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	adj, err := h.ledger.ManualAdjust(c.Context(), ledger.ManualAdjustInput{
		ActorID:   GetUserID(c),
		ProductID: in.ProductID,
		BranchID:  in.BranchID,
		Delta:     in.Delta,
		Reason:    in.Reason,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.AdjustResponse{
		ProductID:   in.ProductID,
		BranchID:    in.BranchID,
		NewQuantity: adj.NewQuantity,
		NewVersion:  adj.NewVersion,
	})
}

func toStockResponses(records []*entity.StockRecord) []dto.StockResponse {
	out := make([]dto.StockResponse, 0, len(records))
	for _, r := range records {
		out = append(out, dto.StockResponse{
			ProductID:         r.ProductID,
			BranchID:          r.BranchID,
			Quantity:          r.Quantity,
			Version:           r.Version,
			LowStockThreshold: r.LowStockThreshold,
			UpdatedAt:         r.UpdatedAt,
		})
	}
	return out
}
