package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/mercaldo/pos-api/internal/application/audit"
	"github.com/mercaldo/pos-api/internal/domain"
	"github.com/mercaldo/pos-api/internal/domain/entity"
	"github.com/mercaldo/pos-api/internal/domain/event"
	"github.com/mercaldo/pos-api/internal/domain/repository"
)

// RecordPaymentInput abono a una venta a crédito.
type RecordPaymentInput struct {
	SaleID  string
	ActorID string
	Amount  decimal.Decimal
	Method  string // CASH o MOBILE_MONEY
}

// RecordPayment registra un abono: rechaza si el monto más los abonos previos
// excede el total (OverpaymentError) y recalcula el estado de crédito como
// función pura de pagado vs total. El stock no se toca: ya salió al vender.
func (e *Engine) RecordPayment(ctx context.Context, in RecordPaymentInput) (*entity.SaleTransaction, error) {
	if in.SaleID == "" || !in.Amount.IsPositive() {
		return nil, domain.ErrInvalidInput
	}
	if in.Method != entity.PaymentCash && in.Method != entity.PaymentMobileMoney {
		return nil, domain.ErrInvalidInput
	}

	sale, err := e.saleRepo.GetByID(in.SaleID)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, domain.ErrNotFound
	}
	if sale.PaymentMethod != entity.PaymentCredit || sale.Reversed {
		return nil, domain.ErrInvalidInput
	}

	paid := sale.PaidAmount()
	if paid.Add(in.Amount).GreaterThan(sale.Total) {
		return nil, &domain.OverpaymentError{
			SaleID:    in.SaleID,
			Attempted: in.Amount,
			Remaining: sale.Total.Sub(paid),
		}
	}

	now := time.Now()
	payment := &entity.CreditPayment{
		ID:        uuid.New().String(),
		SaleID:    in.SaleID,
		Amount:    in.Amount,
		Method:    in.Method,
		CreatedAt: now,
		CreatedBy: in.ActorID,
	}
	newStatus := entity.CreditStatusFor(paid.Add(in.Amount), sale.Total)

	before := *sale
	err = e.txRunner.RunSale(ctx, func(saleRepo repository.SaleRepository, auditRepo repository.AuditRepository) error {
		if err := saleRepo.AddPayment(payment); err != nil {
			return fmt.Errorf("registrar abono: %w", err)
		}
		if err := saleRepo.UpdateCreditStatus(in.SaleID, newStatus); err != nil {
			return fmt.Errorf("actualizar estado de crédito: %w", err)
		}
		sale.Payments = append(sale.Payments, *payment)
		sale.CreditStatus = newStatus
		entry := audit.Entry(in.ActorID, entity.AuditPaymentRecord, EntityTypeSale, in.SaleID, before, sale)
		return auditRepo.Append(entry)
	})
	if err != nil {
		return nil, err
	}

	if e.publisher != nil {
		e.publisher.Publish(event.Event{
			Type:      event.TypePaymentRecorded,
			BranchID:  sale.BranchID,
			EntityID:  in.SaleID,
			Timestamp: now,
		})
	}
	return sale, nil
}

// GetSale devuelve una venta con líneas y abonos.
func (e *Engine) GetSale(_ context.Context, saleID string) (*entity.SaleTransaction, error) {
	sale, err := e.saleRepo.GetByID(saleID)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, domain.ErrNotFound
	}
	return sale, nil
}

// ListSales ventas de una sucursal, más recientes primero.
func (e *Engine) ListSales(_ context.Context, branchID string, limit, offset int) ([]*entity.SaleTransaction, error) {
	return e.saleRepo.ListByBranch(branchID, limit, offset)
}
