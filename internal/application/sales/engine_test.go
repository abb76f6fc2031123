package sales_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mercaldo/pos-api/internal/application/ledger"
	"github.com/mercaldo/pos-api/internal/application/sales"
	"github.com/mercaldo/pos-api/internal/domain"
	"github.com/mercaldo/pos-api/internal/domain/entity"
	"github.com/mercaldo/pos-api/internal/domain/event"
	"github.com/mercaldo/pos-api/internal/infrastructure/memory"
	"github.com/mercaldo/pos-api/pkg/logger"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *capturePublisher) Publish(evt event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *capturePublisher) ofType(eventType string) []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []event.Event
	for _, evt := range p.events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}

// fixture arma el motor de ventas sobre el almacén en memoria con una sucursal
// y dos productos de catálogo.
type fixture struct {
	engine *sales.Engine
	store  *memory.Store
	pub    *capturePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	pub := &capturePublisher{}
	stockLedger := ledger.NewStockLedger(store, store.Stock(), store.Products(), pub, logger.Nop(), ledger.DefaultRetryConfig())
	engine := sales.NewEngine(store, stockLedger, store.Sales(), store.Products(), store.Branches(), pub, logger.Nop())

	require.NoError(t, store.Branches().Create(&entity.Branch{ID: "suc-1", Code: "SUC01", Name: "Sucursal Centro"}))
	require.NoError(t, store.Products().Create(&entity.Product{
		ID: "prod-a", SKU: "SKU-A", Name: "Aceite 1L",
		Price: decimal.NewFromInt(100), MinPrice: decimal.NewFromInt(80),
	}))
	require.NoError(t, store.Products().Create(&entity.Product{
		ID: "prod-b", SKU: "SKU-B", Name: "Arroz 5kg",
		Price: decimal.NewFromInt(200), MinPrice: decimal.NewFromInt(150),
	}))
	return &fixture{engine: engine, store: store, pub: pub}
}

func (f *fixture) seedStock(t *testing.T, productID string, qty int64) {
	t.Helper()
	require.NoError(t, f.store.Stock().CreateIfAbsent(&entity.StockRecord{
		ProductID: productID, BranchID: "suc-1", Quantity: qty, UpdatedAt: time.Now(),
	}))
}

func (f *fixture) stockQty(t *testing.T, productID string) int64 {
	t.Helper()
	rec, err := f.store.Stock().Get(productID, "suc-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec.Quantity
}

func TestCreateSale_DescuentaStockYPersiste(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "prod-a", 10)

	sale, err := f.engine.CreateSale(context.Background(), sales.CreateSaleInput{
		BranchID: "suc-1", ActorID: "cajero-1",
		Items:         []sales.SaleItemInput{{ProductID: "prod-a", Quantity: 4}},
		PaymentMethod: entity.PaymentCash,
	})
	require.NoError(t, err)

	assert.True(t, sale.Total.Equal(decimal.NewFromInt(400)), "precio de catálogo cuando la línea no trae precio")
	assert.True(t, strings.HasPrefix(sale.ReceiptNumber, "SUC01-"), "el recibo se numera con el código de sucursal")
	assert.Empty(t, sale.CreditStatus, "venta de contado no lleva estado de crédito")
	assert.Equal(t, int64(6), f.stockQty(t, "prod-a"))

	persisted, err := f.store.Sales().GetByID(sale.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted, "la venta debe quedar persistida")
	require.Len(t, persisted.Items, 1)
	assert.Equal(t, int64(4), persisted.Items[0].Quantity)

	require.Len(t, f.pub.ofType(event.TypeSaleCreated), 1)

	entries, err := f.store.Audit().ListByEntity(sales.EntityTypeSale, sale.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.AuditSaleCreate, entries[0].Action)
}

func TestCreateSale_StockInsuficienteSinEfectos(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "prod-a", 5)

	_, err := f.engine.CreateSale(context.Background(), sales.CreateSaleInput{
		BranchID: "suc-1", ActorID: "cajero-1",
		Items:         []sales.SaleItemInput{{ProductID: "prod-a", Quantity: 6}},
		PaymentMethod: entity.PaymentCash,
	})
	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(6), insufficient.Requested)
	assert.Equal(t, int64(5), insufficient.Available)

	assert.Equal(t, int64(5), f.stockQty(t, "prod-a"), "la venta fallida no toca stock")
	list, err := f.store.Sales().ListByBranch("suc-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list, "la venta fallida no se persiste")
	assert.Empty(t, f.pub.ofType(event.TypeSaleCreated))
}

func TestCreateSale_PisoDePrecio(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "prod-a", 10)

	// Por debajo del piso sin override: falla completa sin tocar stock.
	_, err := f.engine.CreateSale(context.Background(), sales.CreateSaleInput{
		BranchID: "suc-1", ActorID: "cajero-1",
		Items:         []sales.SaleItemInput{{ProductID: "prod-a", Quantity: 1, UnitPrice: decimal.NewFromInt(50)}},
		PaymentMethod: entity.PaymentCash,
	})
	var violation *domain.PriceViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "prod-a", violation.ProductID)
	assert.Equal(t, int64(10), f.stockQty(t, "prod-a"))

	// Override sin justificación se rechaza.
	_, err = f.engine.CreateSale(context.Background(), sales.CreateSaleInput{
		BranchID: "suc-1", ActorID: "gerente-1",
		Items:         []sales.SaleItemInput{{ProductID: "prod-a", Quantity: 1, UnitPrice: decimal.NewFromInt(50)}},
		PaymentMethod: entity.PaymentCash,
		PriceOverride: true,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "el override exige justificación")

	// Override justificado permite vender bajo el piso.
	sale, err := f.engine.CreateSale(context.Background(), sales.CreateSaleInput{
		BranchID: "suc-1", ActorID: "gerente-1",
		Items:          []sales.SaleItemInput{{ProductID: "prod-a", Quantity: 1, UnitPrice: decimal.NewFromInt(50)}},
		PaymentMethod:  entity.PaymentCash,
		PriceOverride:  true,
		OverrideReason: "liquidación por vencimiento",
	})
	require.NoError(t, err)
	assert.True(t, sale.Total.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, int64(9), f.stockQty(t, "prod-a"))
}

func TestCreateSale_CompensaLineasAplicadas(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "prod-a", 5)
	f.seedStock(t, "prod-b", 2)

	// La segunda línea no alcanza: la primera ya descontada debe restaurarse.
	_, err := f.engine.CreateSale(context.Background(), sales.CreateSaleInput{
		BranchID: "suc-1", ActorID: "cajero-1",
		Items: []sales.SaleItemInput{
			{ProductID: "prod-a", Quantity: 2},
			{ProductID: "prod-b", Quantity: 3},
		},
		PaymentMethod: entity.PaymentCash,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, int64(5), f.stockQty(t, "prod-a"), "la línea descontada se compensa")
	assert.Equal(t, int64(2), f.stockQty(t, "prod-b"))

	entries, err := f.store.Audit().ListByEntity("stock_record", "prod-a@suc-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2, "descuento más compensación")
	assert.Equal(t, entity.AuditStockCompensation, entries[0].Action, "la compensación queda auditada")
}

func TestCreateSale_Descuento(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "prod-a", 10)

	sale, err := f.engine.CreateSale(context.Background(), sales.CreateSaleInput{
		BranchID: "suc-1", ActorID: "cajero-1",
		Items:         []sales.SaleItemInput{{ProductID: "prod-a", Quantity: 4}},
		PaymentMethod: entity.PaymentCash,
		Discount:      decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	assert.True(t, sale.Subtotal.Equal(decimal.NewFromInt(400)))
	assert.True(t, sale.Total.Equal(decimal.NewFromInt(300)), "Total = Subtotal - Discount")

	_, err = f.engine.CreateSale(context.Background(), sales.CreateSaleInput{
		BranchID: "suc-1", ActorID: "cajero-1",
		Items:         []sales.SaleItemInput{{ProductID: "prod-a", Quantity: 1}},
		PaymentMethod: entity.PaymentCash,
		Discount:      decimal.NewFromInt(500),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "el descuento no puede dejar el total negativo")
}

func TestCreateSale_CreditoDescuentaStockAlVender(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "prod-a", 10)

	sale, err := f.engine.CreateSale(context.Background(), sales.CreateSaleInput{
		BranchID: "suc-1", ActorID: "cajero-1",
		Items:         []sales.SaleItemInput{{ProductID: "prod-a", Quantity: 10}},
		PaymentMethod: entity.PaymentCredit,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.CreditPending, sale.CreditStatus)
	assert.Equal(t, int64(0), f.stockQty(t, "prod-a"), "en crédito la mercancía sale del estante al vender")
}

func TestRecordPayment_FlujoDeAbonos(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "prod-a", 10)

	sale, err := f.engine.CreateSale(context.Background(), sales.CreateSaleInput{
		BranchID: "suc-1", ActorID: "cajero-1",
		Items:         []sales.SaleItemInput{{ProductID: "prod-a", Quantity: 10}},
		PaymentMethod: entity.PaymentCredit,
	})
	require.NoError(t, err)
	require.True(t, sale.Total.Equal(decimal.NewFromInt(1000)))

	ctx := context.Background()

	// Abono parcial de 400: PENDING -> PARTIAL.
	updated, err := f.engine.RecordPayment(ctx, sales.RecordPaymentInput{
		SaleID: sale.ID, ActorID: "cajero-1", Amount: decimal.NewFromInt(400), Method: entity.PaymentCash,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.CreditPartial, updated.CreditStatus)
	assert.True(t, updated.PaidAmount().Equal(decimal.NewFromInt(400)))

	// 700 excede el saldo de 600: se rechaza sin registrar nada.
	_, err = f.engine.RecordPayment(ctx, sales.RecordPaymentInput{
		SaleID: sale.ID, ActorID: "cajero-1", Amount: decimal.NewFromInt(700), Method: entity.PaymentCash,
	})
	var overpay *domain.OverpaymentError
	require.ErrorAs(t, err, &overpay)
	assert.True(t, overpay.Remaining.Equal(decimal.NewFromInt(600)), "el error informa el saldo pendiente")

	// 600 exacto: PARTIAL -> PAID.
	updated, err = f.engine.RecordPayment(ctx, sales.RecordPaymentInput{
		SaleID: sale.ID, ActorID: "cajero-1", Amount: decimal.NewFromInt(600), Method: entity.PaymentMobileMoney,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.CreditPaid, updated.CreditStatus)
	assert.True(t, updated.PaidAmount().Equal(updated.Total))

	assert.Len(t, f.pub.ofType(event.TypePaymentRecorded), 2)
}

func TestRecordPayment_Validaciones(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "prod-a", 10)

	cash, err := f.engine.CreateSale(context.Background(), sales.CreateSaleInput{
		BranchID: "suc-1", ActorID: "cajero-1",
		Items:         []sales.SaleItemInput{{ProductID: "prod-a", Quantity: 1}},
		PaymentMethod: entity.PaymentCash,
	})
	require.NoError(t, err)

	_, err = f.engine.RecordPayment(context.Background(), sales.RecordPaymentInput{
		SaleID: cash.ID, ActorID: "cajero-1", Amount: decimal.NewFromInt(50), Method: entity.PaymentCash,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "solo las ventas a crédito reciben abonos")

	_, err = f.engine.RecordPayment(context.Background(), sales.RecordPaymentInput{
		SaleID: cash.ID, ActorID: "cajero-1", Amount: decimal.NewFromInt(-10), Method: entity.PaymentCash,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "el monto debe ser positivo")

	_, err = f.engine.RecordPayment(context.Background(), sales.RecordPaymentInput{
		SaleID: "no-existe", ActorID: "cajero-1", Amount: decimal.NewFromInt(10), Method: entity.PaymentCash,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReverseSale_RestauraStockUnaSolaVez(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "prod-a", 10)

	sale, err := f.engine.CreateSale(context.Background(), sales.CreateSaleInput{
		BranchID: "suc-1", ActorID: "cajero-1",
		Items:         []sales.SaleItemInput{{ProductID: "prod-a", Quantity: 4}},
		PaymentMethod: entity.PaymentCash,
	})
	require.NoError(t, err)
	require.Equal(t, int64(6), f.stockQty(t, "prod-a"))

	reversed, err := f.engine.ReverseSale(context.Background(), sale.ID, "gerente-1", "cliente devolvió el producto")
	require.NoError(t, err)
	assert.True(t, reversed.Reversed)
	assert.Equal(t, "cliente devolvió el producto", reversed.ReversalReason)
	assert.Equal(t, int64(10), f.stockQty(t, "prod-a"), "la anulación restaura cada línea")

	// Segunda anulación: guardia de idempotencia.
	_, err = f.engine.ReverseSale(context.Background(), sale.ID, "gerente-1", "otra vez")
	var already *domain.AlreadyReversedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, sale.ID, already.SaleID)
	assert.Equal(t, int64(10), f.stockQty(t, "prod-a"), "la doble anulación no restaura doble")

	require.Len(t, f.pub.ofType(event.TypeSaleReversed), 1)
}

func TestReverseSale_ExigeRazon(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.ReverseSale(context.Background(), "venta-x", "gerente-1", "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
