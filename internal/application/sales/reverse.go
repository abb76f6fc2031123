package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mercaldo/pos-api/internal/application/audit"
	"github.com/mercaldo/pos-api/internal/application/ledger"
	"github.com/mercaldo/pos-api/internal/domain"
	"github.com/mercaldo/pos-api/internal/domain/entity"
	"github.com/mercaldo/pos-api/internal/domain/event"
	"github.com/mercaldo/pos-api/internal/domain/repository"
)

// ReverseSale anula una venta exactamente una vez y restaura el stock de cada
// línea. La restauración ignora el piso de precio (no es una venta).
//
// Orden deliberado: primero se marca la venta como anulada con un update
// condicionado a reversed = false (guardia de idempotencia a nivel de fila:
// dos anulaciones concurrentes no restauran doble), y después se restaura el
// stock. Si la restauración falla de forma permanente, se compensa lo ya
// restaurado y se desmarca la venta, de modo que no sobreviva una anulación a
// medias.
func (e *Engine) ReverseSale(ctx context.Context, saleID, actorID, reason string) (*entity.SaleTransaction, error) {
	if saleID == "" || strings.TrimSpace(reason) == "" {
		return nil, domain.ErrInvalidInput
	}
	sale, err := e.saleRepo.GetByID(saleID)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, domain.ErrNotFound
	}
	if sale.Reversed {
		return nil, &domain.AlreadyReversedError{SaleID: saleID}
	}

	before := *sale

	// Marca + auditoría en una transacción. MarkReversed devuelve false si otro
	// caller anuló primero: ahí no se restaura nada.
	err = e.txRunner.RunSale(ctx, func(saleRepo repository.SaleRepository, auditRepo repository.AuditRepository) error {
		ok, err := saleRepo.MarkReversed(saleID, reason)
		if err != nil {
			return fmt.Errorf("marcar venta anulada: %w", err)
		}
		if !ok {
			return &domain.AlreadyReversedError{SaleID: saleID}
		}
		sale.Reversed = true
		sale.ReversalReason = reason
		entry := audit.Entry(actorID, entity.AuditSaleReverse, EntityTypeSale, saleID, before, sale)
		return auditRepo.Append(entry)
	})
	if err != nil {
		return nil, err
	}

	// Restauración de stock línea por línea (delta positivo, con reintentos).
	restored := make([]entity.SaleItem, 0, len(sale.Items))
	for _, item := range sale.Items {
		_, err := e.stock.AdjustWithRetry(ctx, ledger.AdjustInput{
			ActorID:   actorID,
			Action:    entity.AuditStockSaleRestore,
			Reference: saleID,
			ProductID: item.ProductID,
			BranchID:  sale.BranchID,
			Delta:     item.Quantity,
		})
		if err != nil {
			e.undoReversal(ctx, actorID, sale, restored)
			return nil, err
		}
		restored = append(restored, item)
	}

	if e.publisher != nil {
		e.publisher.Publish(event.Event{
			Type:      event.TypeSaleReversed,
			BranchID:  sale.BranchID,
			EntityID:  saleID,
			Timestamp: time.Now(),
		})
	}
	return sale, nil
}

// undoReversal compensa una anulación que no pudo restaurar todo el stock:
// vuelve a descontar lo restaurado y desmarca la venta.
func (e *Engine) undoReversal(ctx context.Context, actorID string, sale *entity.SaleTransaction, restored []entity.SaleItem) {
	bg := context.WithoutCancel(ctx)
	for _, item := range restored {
		_, err := e.stock.AdjustWithRetry(bg, ledger.AdjustInput{
			ActorID:   actorID,
			Action:    entity.AuditStockCompensation,
			Reference: sale.ID,
			ProductID: item.ProductID,
			BranchID:  sale.BranchID,
			Delta:     -item.Quantity,
		})
		if err != nil && e.log != nil {
			e.log.Error().Err(err).
				Str("sale_id", sale.ID).
				Str("product_id", item.ProductID).
				Msg("compensación de anulación fallida: se requiere ajuste manual")
		}
	}
	err := e.txRunner.RunSale(bg, func(saleRepo repository.SaleRepository, auditRepo repository.AuditRepository) error {
		if err := saleRepo.UnmarkReversed(sale.ID); err != nil {
			return err
		}
		entry := audit.Entry(actorID, entity.AuditSaleReverseUndo, EntityTypeSale, sale.ID, sale, nil)
		return auditRepo.Append(entry)
	})
	if err != nil && e.log != nil {
		e.log.Error().Err(err).Str("sale_id", sale.ID).Msg("desmarcar anulación fallida")
	}
	sale.Reversed = false
	sale.ReversalReason = ""
}
