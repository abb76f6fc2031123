package postgres

import (
	"context"
	"fmt"

	"github.com/mercaldo/pos-api/internal/domain/entity"
	"github.com/mercaldo/pos-api/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

// AuditRepo implementación de AuditRepository sobre PostgreSQL. Solo inserta:
// la tabla no tiene UPDATE ni DELETE en ningún camino de código.
type AuditRepo struct {
	q Querier
}

// NewAuditRepository construye el adaptador de auditoría. Pasar pool o tx (Querier).
func NewAuditRepository(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

// Append agrega una entrada de auditoría.
func (r *AuditRepo) Append(e *entity.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (id, actor_id, action, entity_type, entity_id, before_data, after_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(context.Background(), query,
		e.ID, e.ActorID, string(e.Action), e.EntityType, e.EntityID, e.BeforeData, e.AfterData, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListByEntity entradas de una entidad, más recientes primero.
func (r *AuditRepo) ListByEntity(entityType, entityID string, limit, offset int) ([]*entity.AuditEntry, error) {
	query := `
		SELECT id, actor_id, action, entity_type, entity_id, before_data, after_data, created_at
		FROM audit_entries
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	return r.list(query, entityType, entityID, limit, offset)
}

// ListByActor entradas generadas por un actor, más recientes primero.
func (r *AuditRepo) ListByActor(actorID string, limit, offset int) ([]*entity.AuditEntry, error) {
	query := `
		SELECT id, actor_id, action, entity_type, entity_id, before_data, after_data, created_at
		FROM audit_entries
		WHERE actor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	return r.list(query, actorID, limit, offset)
}

func (r *AuditRepo) list(query string, args ...any) ([]*entity.AuditEntry, error) {
	rows, err := r.q.Query(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []*entity.AuditEntry
	for rows.Next() {
		var e entity.AuditEntry
		var action string
		if err := rows.Scan(&e.ID, &e.ActorID, &action, &e.EntityType, &e.EntityID, &e.BeforeData, &e.AfterData, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = entity.AuditAction(action)
		out = append(out, &e)
	}
	return out, rows.Err()
}
