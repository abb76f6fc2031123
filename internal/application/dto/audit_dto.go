package dto

import (
	"encoding/json"
	"time"
)

// AuditEntryResponse entrada de auditoría en respuestas. Before/After son los
// snapshots JSON tal como se guardaron.
type AuditEntryResponse struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actor_id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Before     json.RawMessage `json:"before"`
	After      json.RawMessage `json:"after"`
	CreatedAt  time.Time       `json:"created_at"`
}
