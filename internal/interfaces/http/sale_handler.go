package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mercaldo/pos-api/internal/application/dto"
	"github.com/mercaldo/pos-api/internal/application/sales"
	"github.com/mercaldo/pos-api/internal/domain/entity"
)

// SaleHandler maneja las peticiones HTTP de ventas (protegido).
type SaleHandler struct {
	engine  *sales.Engine
	receipt sales.ReceiptGenerator
}

// NewSaleHandler construye el handler.
func NewSaleHandler(engine *sales.Engine, receipt sales.ReceiptGenerator) *SaleHandler {
	return &SaleHandler{engine: engine, receipt: receipt}
}

// Create godoc
// @Summary      Crear venta
// @Description  Descuenta stock todo-o-nada y valida piso de precio por línea.
//
//	La sucursal se toma del token.
//
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateSaleRequest  true  "items, payment_method, discount, price_override"
// @Success      201   {object}  dto.SaleResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/sales [post]
func (h *SaleHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateSaleRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	items := make([]sales.SaleItemInput, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, sales.SaleItemInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	sale, err := h.engine.CreateSale(c.Context(), sales.CreateSaleInput{
		BranchID:       GetBranchID(c),
		ActorID:        GetUserID(c),
		Items:          items,
		PaymentMethod:  in.PaymentMethod,
		Discount:       in.Discount,
		PriceOverride:  in.PriceOverride,
		OverrideReason: in.OverrideReason,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toSaleResponse(sale))
}

// GetByID godoc
// @Summary      Obtener venta por ID
// @Tags         sales
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Sale ID"
// @Success      200  {object}  dto.SaleResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/sales/{id} [get]
func (h *SaleHandler) GetByID(c *fiber.Ctx) error {
	sale, err := h.engine.GetSale(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toSaleResponse(sale))
}

// List godoc
// @Summary      Listar ventas de la sucursal del token
// @Tags         sales
// @Security     Bearer
// @Produce      json
// @Param        limit   query  int  false  "máximo de resultados (default 20)"
// @Param        offset  query  int  false  "desplazamiento"
// @Success      200  {array}  dto.SaleResponse
// @Router       /api/sales [get]
func (h *SaleHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"})
	}
	page.DefaultPage()
	list, err := h.engine.ListSales(c.Context(), GetBranchID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.SaleResponse, 0, len(list))
	for _, sale := range list {
		out = append(out, toSaleResponse(sale))
	}
	return c.JSON(out)
}

// Reverse godoc
// @Summary      Anular venta
// @Description  Restaura el stock de cada línea. Una venta se anula exactamente una vez.
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true  "Sale ID"
// @Param        body  body  dto.ReverseSaleRequest  true  "reason"
// @Success      200   {object}  dto.SaleResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/sales/{id}/reverse [post]
func (h *SaleHandler) Reverse(c *fiber.Ctx) error {
	var in dto.ReverseSaleRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	sale, err := h.engine.ReverseSale(c.Context(), c.Params("id"), GetUserID(c), in.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toSaleResponse(sale))
}

// RecordPayment godoc
// @Summary      Registrar abono a venta a crédito
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                    true  "Sale ID"
// @Param        body  body  dto.RecordPaymentRequest  true  "amount, method"
// @Success      200   {object}  dto.SaleResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/sales/{id}/payments [post]
func (h *SaleHandler) RecordPayment(c *fiber.Ctx) error {
	var in dto.RecordPaymentRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	sale, err := h.engine.RecordPayment(c.Context(), sales.RecordPaymentInput{
		SaleID:  c.Params("id"),
		ActorID: GetUserID(c),
		Amount:  in.Amount,
		Method:  in.Method,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toSaleResponse(sale))
}

// Receipt godoc
// @Summary      Descargar recibo de venta en PDF
// @Tags         sales
// @Security     Bearer
// @Produce      application/pdf
// @Param        id  path  string  true  "Sale ID"
// @Success      200  {file}  binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/sales/{id}/receipt [get]
func (h *SaleHandler) Receipt(c *fiber.Ctx) error {
	pdfBytes, err := h.engine.ReceiptPDF(c.Context(), c.Params("id"), h.receipt)
	if err != nil {
		return respondError(c, err)
	}
	c.Set("Content-Type", "application/pdf")
	c.Set("Content-Disposition", `attachment; filename="recibo.pdf"`)
	return c.Send(pdfBytes)
}

func toSaleResponse(s *entity.SaleTransaction) dto.SaleResponse {
	items := make([]dto.SaleItemResponse, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, dto.SaleItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal(),
		})
	}
	payments := make([]dto.CreditPaymentResponse, 0, len(s.Payments))
	for _, p := range s.Payments {
		payments = append(payments, dto.CreditPaymentResponse{
			ID:        p.ID,
			Amount:    p.Amount,
			Method:    p.Method,
			CreatedAt: p.CreatedAt,
		})
	}
	return dto.SaleResponse{
		ID:             s.ID,
		ReceiptNumber:  s.ReceiptNumber,
		BranchID:       s.BranchID,
		Items:          items,
		Subtotal:       s.Subtotal,
		Discount:       s.Discount,
		Total:          s.Total,
		PaymentMethod:  s.PaymentMethod,
		CreditStatus:   s.CreditStatus,
		PaidAmount:     s.PaidAmount(),
		Payments:       payments,
		Reversed:       s.Reversed,
		ReversalReason: s.ReversalReason,
		CreatedAt:      s.CreatedAt,
	}
}
