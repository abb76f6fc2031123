// Package sales implementa el motor de transacciones de venta: creación con
// validación de piso de precio y descuento de stock todo-o-nada, anulación
// idempotente y abonos de ventas a crédito.
package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/mercaldo/pos-api/internal/application/audit"
	"github.com/mercaldo/pos-api/internal/application/ledger"
	"github.com/mercaldo/pos-api/internal/domain"
	"github.com/mercaldo/pos-api/internal/domain/entity"
	"github.com/mercaldo/pos-api/internal/domain/event"
	"github.com/mercaldo/pos-api/internal/domain/repository"
	"github.com/mercaldo/pos-api/pkg/logger"
)

// EntityTypeSale tipo de entidad usado en auditoría para ventas.
const EntityTypeSale = "sale"

// Engine motor de transacciones de venta.
type Engine struct {
	txRunner    TxRunner
	stock       StockAdjuster
	saleRepo    repository.SaleRepository // lecturas fuera de transacción
	productRepo repository.ProductRepository
	branchRepo  repository.BranchRepository
	publisher   event.Publisher
	log         *logger.Logger
}

// NewEngine construye el motor de ventas.
func NewEngine(
	txRunner TxRunner,
	stock StockAdjuster,
	saleRepo repository.SaleRepository,
	productRepo repository.ProductRepository,
	branchRepo repository.BranchRepository,
	publisher event.Publisher,
	log *logger.Logger,
) *Engine {
	return &Engine{
		txRunner:    txRunner,
		stock:       stock,
		saleRepo:    saleRepo,
		productRepo: productRepo,
		branchRepo:  branchRepo,
		publisher:   publisher,
		log:         log,
	}
}

// SaleItemInput línea solicitada. UnitPrice en cero toma el precio de catálogo.
type SaleItemInput struct {
	ProductID string
	Quantity  int64
	UnitPrice decimal.Decimal
}

// CreateSaleInput entrada de CreateSale.
type CreateSaleInput struct {
	BranchID      string
	ActorID       string
	Items         []SaleItemInput
	PaymentMethod string
	Discount      decimal.Decimal
	// PriceOverride autoriza precios por debajo del piso; exige justificación.
	PriceOverride  bool
	OverrideReason string
}

// CreateSale crea la venta de forma todo-o-nada:
//
//  1. valida piso de precio de cada línea (sin override, violar el piso falla
//     la operación completa sin tocar stock ni crear registro);
//  2. descuenta stock línea por línea vía la primitiva única con reintentos,
//     también en ventas a crédito: la mercancía sale del estante al vender,
//     llegue o no el efectivo después;
//  3. si una línea falla de forma permanente, revierte las ya descontadas
//     (ajustes compensatorios +cantidad) antes de propagar el error;
//  4. persiste venta + líneas + auditoría en una transacción y publica
//     sale.created.
func (e *Engine) CreateSale(ctx context.Context, in CreateSaleInput) (*entity.SaleTransaction, error) {
	products, err := e.validateCreate(in)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	saleID := uuid.New().String()

	subtotal := decimal.Zero
	items := make([]entity.SaleItem, 0, len(in.Items))
	for _, it := range in.Items {
		price := it.UnitPrice
		if price.IsZero() {
			price = products[it.ProductID].Price
		}
		item := entity.SaleItem{
			ID:        uuid.New().String(),
			SaleID:    saleID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: price,
		}
		subtotal = subtotal.Add(item.Subtotal())
		items = append(items, item)
	}
	total := subtotal.Sub(in.Discount)
	if total.IsNegative() {
		return nil, domain.ErrInvalidInput
	}

	// Descuento de stock línea por línea; compensación si alguna falla.
	applied, err := e.deductItems(ctx, in.ActorID, in.BranchID, saleID, items)
	if err != nil {
		e.compensate(ctx, in.ActorID, in.BranchID, saleID, applied)
		return nil, err
	}

	creditStatus := ""
	if in.PaymentMethod == entity.PaymentCredit {
		creditStatus = entity.CreditPending
	}
	sale := &entity.SaleTransaction{
		ID:             saleID,
		ReceiptNumber:  e.receiptNumber(in.BranchID, now),
		BranchID:       in.BranchID,
		Items:          items,
		Subtotal:       subtotal,
		Discount:       in.Discount,
		Total:          total,
		PaymentMethod:  in.PaymentMethod,
		CreditStatus:   creditStatus,
		PriceOverride:  in.PriceOverride,
		OverrideReason: in.OverrideReason,
		CreatedAt:      now,
		CreatedBy:      in.ActorID,
	}

	err = e.txRunner.RunSale(ctx, func(saleRepo repository.SaleRepository, auditRepo repository.AuditRepository) error {
		if err := saleRepo.Create(sale); err != nil {
			return fmt.Errorf("persistir venta: %w", err)
		}
		entry := audit.Entry(in.ActorID, entity.AuditSaleCreate, EntityTypeSale, saleID, nil, sale)
		return auditRepo.Append(entry)
	})
	if err != nil {
		// La venta no existe: devolver el stock descontado.
		e.compensate(ctx, in.ActorID, in.BranchID, saleID, applied)
		return nil, err
	}

	if e.publisher != nil {
		e.publisher.Publish(event.Event{
			Type:      event.TypeSaleCreated,
			BranchID:  in.BranchID,
			EntityID:  saleID,
			Timestamp: now,
		})
	}
	return sale, nil
}

// validateCreate valida entrada y piso de precios; devuelve los productos por ID.
// Falla completa sin efectos parciales: aquí no se ha tocado stock todavía.
func (e *Engine) validateCreate(in CreateSaleInput) (map[string]*entity.Product, error) {
	if in.BranchID == "" || len(in.Items) == 0 || !entity.ValidPaymentMethod(in.PaymentMethod) {
		return nil, domain.ErrInvalidInput
	}
	if in.Discount.IsNegative() {
		return nil, domain.ErrInvalidInput
	}
	if in.PriceOverride && strings.TrimSpace(in.OverrideReason) == "" {
		return nil, domain.ErrInvalidInput
	}
	branch, err := e.branchRepo.GetByID(in.BranchID)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, domain.ErrNotFound
	}

	products := make(map[string]*entity.Product, len(in.Items))
	for _, it := range in.Items {
		if it.ProductID == "" || it.Quantity <= 0 || it.UnitPrice.IsNegative() {
			return nil, domain.ErrInvalidInput
		}
		product, err := e.productRepo.GetByID(it.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, domain.ErrNotFound
		}
		products[it.ProductID] = product

		price := it.UnitPrice
		if price.IsZero() {
			price = product.Price
		}
		if !in.PriceOverride && price.LessThan(product.MinPrice) {
			return nil, &domain.PriceViolationError{
				ProductID: it.ProductID,
				UnitPrice: price,
				MinPrice:  product.MinPrice,
			}
		}
	}
	return products, nil
}

// deductItems descuenta cada línea; devuelve las líneas ya aplicadas para
// poder compensarlas si una posterior falla.
func (e *Engine) deductItems(ctx context.Context, actorID, branchID, saleID string, items []entity.SaleItem) ([]entity.SaleItem, error) {
	applied := make([]entity.SaleItem, 0, len(items))
	for _, item := range items {
		_, err := e.stock.AdjustWithRetry(ctx, ledger.AdjustInput{
			ActorID:   actorID,
			Action:    entity.AuditStockSaleOut,
			Reference: saleID,
			ProductID: item.ProductID,
			BranchID:  branchID,
			Delta:     -item.Quantity,
		})
		if err != nil {
			return applied, err
		}
		applied = append(applied, item)
	}
	return applied, nil
}

// compensate revierte los descuentos ya aplicados de una venta fallida.
// Usa un contexto sin cancelación: la compensación debe completarse aunque el
// deadline del caller ya haya vencido. Un fallo aquí se registra con severidad
// alta porque deja stock descontado sin venta (requiere ajuste manual).
func (e *Engine) compensate(ctx context.Context, actorID, branchID, saleID string, applied []entity.SaleItem) {
	if len(applied) == 0 {
		return
	}
	bg := context.WithoutCancel(ctx)
	for _, item := range applied {
		_, err := e.stock.AdjustWithRetry(bg, ledger.AdjustInput{
			ActorID:   actorID,
			Action:    entity.AuditStockCompensation,
			Reference: saleID,
			ProductID: item.ProductID,
			BranchID:  branchID,
			Delta:     item.Quantity,
		})
		if err != nil && e.log != nil {
			e.log.Error().Err(err).
				Str("sale_id", saleID).
				Str("product_id", item.ProductID).
				Str("branch_id", branchID).
				Int64("quantity", item.Quantity).
				Msg("compensación de stock fallida: se requiere ajuste manual")
		}
	}
}

// receiptNumber numera el recibo con el código de sucursal y el instante.
func (e *Engine) receiptNumber(branchID string, now time.Time) string {
	code := branchID
	if branch, err := e.branchRepo.GetByID(branchID); err == nil && branch != nil && branch.Code != "" {
		code = branch.Code
	}
	return fmt.Sprintf("%s-%d", code, now.UnixNano())
}
