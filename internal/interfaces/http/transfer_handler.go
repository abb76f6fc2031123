package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mercaldo/pos-api/internal/application/dto"
	"github.com/mercaldo/pos-api/internal/application/transfers"
	"github.com/mercaldo/pos-api/internal/domain/entity"
)

// TransferHandler maneja las peticiones HTTP de traslados entre sucursales (protegido).
type TransferHandler struct {
	workflow *transfers.Workflow
}

// NewTransferHandler construye el handler.
func NewTransferHandler(workflow *transfers.Workflow) *TransferHandler {
	return &TransferHandler{workflow: workflow}
}

// Create godoc
// @Summary      Solicitar traslado entre sucursales
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateTransferRequest  true  "from_branch_id, to_branch_id, items"
// @Success      201   {object}  dto.TransferResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/transfers [post]
func (h *TransferHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateTransferRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	items := make([]transfers.TransferItemInput, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, transfers.TransferItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	transfer, err := h.workflow.Request(c.Context(), transfers.RequestInput{
		FromBranchID: in.FromBranchID,
		ToBranchID:   in.ToBranchID,
		ActorID:      GetUserID(c),
		Notes:        in.Notes,
		Items:        items,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toTransferResponse(transfer))
}

// Approve godoc
// @Summary      Aprobar traslado (REQUESTED -> APPROVED)
// @Description  Requiere rol admin o gerente. Las cantidades aprobadas no pueden
//
//	exceder lo solicitado; items omitidos se aprueban por lo solicitado.
//
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                      true  "Transfer ID"
// @Param        body  body  dto.ApproveTransferRequest  true  "items opcionales con cantidades aprobadas"
// @Success      200   {object}  dto.TransferResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/approve [post]
func (h *TransferHandler) Approve(c *fiber.Ctx) error {
	var in dto.ApproveTransferRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	approvals := make([]transfers.ItemApproval, 0, len(in.Items))
	for _, it := range in.Items {
		approvals = append(approvals, transfers.ItemApproval{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	transfer, err := h.workflow.Approve(c.Context(), c.Params("id"), GetUserID(c), approvals)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toTransferResponse(transfer))
}

// Pack godoc
// @Summary      Marcar traslado empacado (APPROVED -> PACKED)
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Transfer ID"
// @Success      200  {object}  dto.TransferResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/pack [post]
func (h *TransferHandler) Pack(c *fiber.Ctx) error {
	transfer, err := h.workflow.Pack(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toTransferResponse(transfer))
}

// Dispatch godoc
// @Summary      Despachar traslado ({APPROVED, PACKED} -> DISPATCHED)
// @Description  Requiere rol admin o gerente. Descuenta lo aprobado en la sucursal
//
//	origen; stock insuficiente en cualquier línea aborta el despacho completo.
//
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Transfer ID"
// @Success      200  {object}  dto.TransferResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/dispatch [post]
func (h *TransferHandler) Dispatch(c *fiber.Ctx) error {
	transfer, err := h.workflow.Dispatch(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toTransferResponse(transfer))
}

// Receive godoc
// @Summary      Recibir traslado (DISPATCHED -> RECEIVED | RECEIVED_WITH_DISCREPANCY)
// @Description  Suma lo recibido en destino. Si lo recibido difiere de lo
//
//	despachado, discrepancy_notes es obligatorio.
//
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                      true  "Transfer ID"
// @Param        body  body  dto.ReceiveTransferRequest  true  "items opcionales con cantidades recibidas, discrepancy_notes"
// @Success      200   {object}  dto.TransferResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/receive [post]
func (h *TransferHandler) Receive(c *fiber.Ctx) error {
	var in dto.ReceiveTransferRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	receipts := make([]transfers.ItemReceipt, 0, len(in.Items))
	for _, it := range in.Items {
		receipts = append(receipts, transfers.ItemReceipt{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	transfer, err := h.workflow.Receive(c.Context(), c.Params("id"), GetUserID(c), receipts, in.DiscrepancyNotes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toTransferResponse(transfer))
}

// Cancel godoc
// @Summary      Cancelar traslado ({REQUESTED, APPROVED, PACKED} -> CANCELLED)
// @Description  Requiere rol admin o gerente. Nunca después del despacho.
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                     true  "Transfer ID"
// @Param        body  body  dto.CancelTransferRequest  true  "reason opcional"
// @Success      200   {object}  dto.TransferResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/cancel [post]
func (h *TransferHandler) Cancel(c *fiber.Ctx) error {
	var in dto.CancelTransferRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	transfer, err := h.workflow.Cancel(c.Context(), c.Params("id"), GetUserID(c), in.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toTransferResponse(transfer))
}

// GetByID godoc
// @Summary      Obtener traslado por ID
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Transfer ID"
// @Success      200  {object}  dto.TransferResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id} [get]
func (h *TransferHandler) GetByID(c *fiber.Ctx) error {
	transfer, err := h.workflow.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toTransferResponse(transfer))
}

// List godoc
// @Summary      Listar traslados donde participa la sucursal del token
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        limit   query  int  false  "máximo de resultados (default 20)"
// @Param        offset  query  int  false  "desplazamiento"
// @Success      200  {array}  dto.TransferResponse
// @Router       /api/transfers [get]
func (h *TransferHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"})
	}
	page.DefaultPage()
	list, err := h.workflow.ListByBranch(c.Context(), GetBranchID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.TransferResponse, 0, len(list))
	for _, t := range list {
		out = append(out, toTransferResponse(t))
	}
	return c.JSON(out)
}

func toTransferResponse(t *entity.Transfer) dto.TransferResponse {
	items := make([]dto.TransferItemResponse, 0, len(t.Items))
	for _, it := range t.Items {
		items = append(items, dto.TransferItemResponse{
			ProductID:          it.ProductID,
			QuantityRequested:  it.QuantityRequested,
			QuantityApproved:   it.QuantityApproved,
			QuantityDispatched: it.QuantityDispatched,
			QuantityReceived:   it.QuantityReceived,
		})
	}
	return dto.TransferResponse{
		ID:               t.ID,
		FromBranchID:     t.FromBranchID,
		ToBranchID:       t.ToBranchID,
		Status:           string(t.Status),
		Items:            items,
		Notes:            t.Notes,
		DiscrepancyNotes: t.DiscrepancyNotes,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}
