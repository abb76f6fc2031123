// Package audit arma las entradas del registro de auditoría con fotos
// antes/después en JSON. El Append lo hace el repositorio dentro de la misma
// transacción que la mutación primaria: si la auditoría no se puede escribir,
// la mutación tampoco se confirma (un cambio de stock sin rastro se trata como
// peor que una operación rechazada).
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mercaldo/pos-api/internal/domain/entity"
)

// Snapshot serializa un valor a JSON para BeforeData/AfterData.
// Ante nil o error de serialización degrada a "null" (JSON válido para jsonb).
func Snapshot(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// Entry construye una entrada de auditoría lista para Append.
func Entry(actorID string, action entity.AuditAction, entityType, entityID string, before, after any) *entity.AuditEntry {
	return &entity.AuditEntry{
		ID:         uuid.New().String(),
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		BeforeData: Snapshot(before),
		AfterData:  Snapshot(after),
		CreatedAt:  time.Now(),
	}
}
