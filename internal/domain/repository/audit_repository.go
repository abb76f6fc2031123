package repository

import "github.com/mercaldo/pos-api/internal/domain/entity"

// AuditRepository puerto del registro de auditoría. Solo agrega: no hay
// Update ni Delete. La escritura de auditoría participa de la transacción de
// la mutación que la origina (audit-before-commit).
type AuditRepository interface {
	Append(e *entity.AuditEntry) error
	ListByEntity(entityType, entityID string, limit, offset int) ([]*entity.AuditEntry, error)
	ListByActor(actorID string, limit, offset int) ([]*entity.AuditEntry, error)
}
