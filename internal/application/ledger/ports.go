package ledger

import (
	"context"

	"github.com/mercaldo/pos-api/internal/domain/repository"
)

// TxRunner ejecuta la mutación de stock y su entrada de auditoría dentro de la
// misma transacción de BD, pasando repositorios atados a esa transacción.
// Si la auditoría falla, la mutación se revierte (audit-before-commit).
type TxRunner interface {
	RunLedger(ctx context.Context, fn func(
		stockRepo repository.StockRepository,
		auditRepo repository.AuditRepository,
	) error) error
}
