package http

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/mercaldo/pos-api/internal/application/dto"
	"github.com/mercaldo/pos-api/internal/domain/entity"
	"github.com/mercaldo/pos-api/internal/domain/repository"
)

// AuditHandler maneja las consultas al registro de auditoría (protegido).
type AuditHandler struct {
	repo repository.AuditRepository
}

// NewAuditHandler construye el handler.
func NewAuditHandler(repo repository.AuditRepository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

// ListByEntity godoc
// @Summary      Historial de auditoría de una entidad
// @Tags         audit
// @Security     Bearer
// @Produce      json
// @Param        entity_type  path   string  true   "stock_record | sale | transfer"
// @Param        entity_id    path   string  true   "Entity ID"
// @Param        limit        query  int     false  "máximo de resultados (default 20)"
// @Param        offset       query  int     false  "desplazamiento"
// @Success      200  {array}  dto.AuditEntryResponse
// @Router       /api/audit/{entity_type}/{entity_id} [get]
func (h *AuditHandler) ListByEntity(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"})
	}
	page.DefaultPage()
	entries, err := h.repo.ListByEntity(c.Params("entity_type"), c.Params("entity_id"), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toAuditResponses(entries))
}

// ListByActor godoc
// @Summary      Historial de auditoría de un actor
// @Tags         audit
// @Security     Bearer
// @Produce      json
// @Param        actor_id  path   string  true   "Actor (user) ID"
// @Param        limit     query  int     false  "máximo de resultados (default 20)"
// @Param        offset    query  int     false  "desplazamiento"
// @Success      200  {array}  dto.AuditEntryResponse
// @Router       /api/audit/actor/{actor_id} [get]
func (h *AuditHandler) ListByActor(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"})
	}
	page.DefaultPage()
	entries, err := h.repo.ListByActor(c.Params("actor_id"), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toAuditResponses(entries))
}

func toAuditResponses(entries []*entity.AuditEntry) []dto.AuditEntryResponse {
	out := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.AuditEntryResponse{
			ID:         e.ID,
			ActorID:    e.ActorID,
			Action:     string(e.Action),
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Before:     json.RawMessage(e.BeforeData),
			After:      json.RawMessage(e.AfterData),
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}
