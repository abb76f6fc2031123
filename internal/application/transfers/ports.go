package transfers

import (
	"context"

	"github.com/mercaldo/pos-api/internal/application/ledger"
	"github.com/mercaldo/pos-api/internal/domain/repository"
)

// TxRunner persiste el traslado y su entrada de auditoría en la misma transacción.
type TxRunner interface {
	RunTransfer(ctx context.Context, fn func(
		transferRepo repository.TransferRepository,
		auditRepo repository.AuditRepository,
	) error) error
}

// StockAdjuster puerto hacia la primitiva de mutación de stock.
type StockAdjuster interface {
	AdjustWithRetry(ctx context.Context, in ledger.AdjustInput) (*ledger.Adjustment, error)
}
