package sales

import (
	"context"

	"github.com/mercaldo/pos-api/internal/application/ledger"
	"github.com/mercaldo/pos-api/internal/domain/repository"
)

// TxRunner persiste la venta (cabecera + líneas + abonos) y su entrada de
// auditoría en la misma transacción.
type TxRunner interface {
	RunSale(ctx context.Context, fn func(
		saleRepo repository.SaleRepository,
		auditRepo repository.AuditRepository,
	) error) error
}

// StockAdjuster puerto hacia la primitiva de mutación de stock.
// Lo implementa ledger.StockLedger; cada línea de la venta es un ajuste
// independiente con reintentos, nunca una transacción que abarque varias filas.
type StockAdjuster interface {
	AdjustWithRetry(ctx context.Context, in ledger.AdjustInput) (*ledger.Adjustment, error)
}
