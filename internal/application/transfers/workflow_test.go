package transfers_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mercaldo/pos-api/internal/application/ledger"
	"github.com/mercaldo/pos-api/internal/application/transfers"
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

// fixture arma el flujo de traslados entre dos sucursales sobre el almacén en
// memoria, con el libro de stock real como ajustador.
type fixture struct {
	workflow *transfers.Workflow
	store    *memory.Store
	pub      *capturePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	pub := &capturePublisher{}
	stockLedger := ledger.NewStockLedger(store, store.Stock(), store.Products(), pub, logger.Nop(), ledger.DefaultRetryConfig())
	workflow := transfers.NewWorkflow(store, stockLedger, store.Transfers(), store.Branches(), pub, logger.Nop())

	require.NoError(t, store.Branches().Create(&entity.Branch{ID: "suc-1", Code: "SUC01", Name: "Centro"}))
	require.NoError(t, store.Branches().Create(&entity.Branch{ID: "suc-2", Code: "SUC02", Name: "Norte"}))
	require.NoError(t, store.Products().Create(&entity.Product{ID: "prod-a", SKU: "SKU-A", Name: "Aceite 1L"}))
	require.NoError(t, store.Products().Create(&entity.Product{ID: "prod-b", SKU: "SKU-B", Name: "Arroz 5kg"}))
	return &fixture{workflow: workflow, store: store, pub: pub}
}

func (f *fixture) seedStock(t *testing.T, productID, branchID string, qty int64) {
	t.Helper()
	require.NoError(t, f.store.Stock().CreateIfAbsent(&entity.StockRecord{
		ProductID: productID, BranchID: branchID, Quantity: qty, UpdatedAt: time.Now(),
	}))
}

func (f *fixture) stockQty(t *testing.T, productID, branchID string) int64 {
	t.Helper()
	rec, err := f.store.Stock().Get(productID, branchID)
	require.NoError(t, err)
	if rec == nil {
		return 0
	}
	return rec.Quantity
}

func (f *fixture) request(t *testing.T, items ...transfers.TransferItemInput) *entity.Transfer {
	t.Helper()
	transfer, err := f.workflow.Request(context.Background(), transfers.RequestInput{
		FromBranchID: "suc-1", ToBranchID: "suc-2", ActorID: "gerente-1", Items: items,
	})
	require.NoError(t, err)
	return transfer
}

func TestWorkflow_FlujoCompletoConservaStock(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "prod-a", "suc-1", 10)
	ctx := context.Background()

	transfer := f.request(t, transfers.TransferItemInput{ProductID: "prod-a", Quantity: 10})
	assert.Equal(t, entity.TransferRequested, transfer.Status)
	assert.Equal(t, int64(10), f.stockQty(t, "prod-a", "suc-1"), "solicitar no toca stock")

	transfer, err := f.workflow.Approve(ctx, transfer.ID, "gerente-1", nil)
	require.NoError(t, err)
	assert.Equal(t, entity.TransferApproved, transfer.Status)
	assert.Equal(t, int64(10), transfer.Items[0].QuantityApproved, "sin aprobación explícita se aprueba lo solicitado")

	transfer, err = f.workflow.Pack(ctx, transfer.ID, "bodeguero-1")
	require.NoError(t, err)
	assert.Equal(t, entity.TransferPacked, transfer.Status)

	transfer, err = f.workflow.Dispatch(ctx, transfer.ID, "gerente-1")
	require.NoError(t, err)
	assert.Equal(t, entity.TransferDispatched, transfer.Status)
	assert.Equal(t, int64(0), f.stockQty(t, "prod-a", "suc-1"), "el despacho descuenta lo aprobado en origen")
	assert.Equal(t, int64(0), f.stockQty(t, "prod-a", "suc-2"), "en tránsito el stock no figura en ningún libro")

	transfer, err = f.workflow.Receive(ctx, transfer.ID, "bodeguero-2", nil, "")
	require.NoError(t, err)
	assert.Equal(t, entity.TransferReceived, transfer.Status)
	assert.Equal(t, int64(10), transfer.Items[0].QuantityReceived)
	assert.Equal(t, int64(10), f.stockQty(t, "prod-a", "suc-2"), "la recepción suma en destino creando el registro")

	total := f.stockQty(t, "prod-a", "suc-1") + f.stockQty(t, "prod-a", "suc-2")
	assert.Equal(t, int64(10), total, "el traslado conserva el stock total")

	assert.Len(t, f.pub.ofType(event.TypeTransferStatusChanged), 5, "un evento por transición")

	entries, err := f.store.Audit().ListByEntity(transfers.EntityTypeTransfer, transfer.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 5, "cada transición queda auditada")
}

func TestWorkflow_AprobacionParcialYDiscrepancia(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "prod-a", "suc-1", 10)
	ctx := context.Background()

	transfer := f.request(t, transfers.TransferItemInput{ProductID: "prod-a", Quantity: 10})

	transfer, err := f.workflow.Approve(ctx, transfer.ID, "gerente-1",
		[]transfers.ItemApproval{{ProductID: "prod-a", Quantity: 8}})
	require.NoError(t, err)
	assert.Equal(t, int64(8), transfer.Items[0].QuantityApproved)

	transfer, err = f.workflow.Dispatch(ctx, transfer.ID, "gerente-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.stockQty(t, "prod-a", "suc-1"), "solo se despacha lo aprobado")
	assert.Equal(t, int64(8), transfer.Items[0].QuantityDispatched)

	transfer, err = f.workflow.Receive(ctx, transfer.ID, "bodeguero-2",
		[]transfers.ItemReceipt{{ProductID: "prod-a", Quantity: 7}}, "una caja llegó rota")
	require.NoError(t, err)
	assert.Equal(t, entity.TransferReceivedWithDiscrepancy, transfer.Status)
	assert.Equal(t, "una caja llegó rota", transfer.DiscrepancyNotes)
	assert.Equal(t, int64(7), transfer.Items[0].QuantityReceived)
	assert.Equal(t, int64(7), f.stockQty(t, "prod-a", "suc-2"), "en destino entra solo lo recibido")
}

func TestWorkflow_DiscrepanciaSinNotasSeRechaza(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "prod-a", "suc-1", 10)
	ctx := context.Background()

	transfer := f.request(t, transfers.TransferItemInput{ProductID: "prod-a", Quantity: 8})
	_, err := f.workflow.Approve(ctx, transfer.ID, "gerente-1", nil)
	require.NoError(t, err)
	_, err = f.workflow.Dispatch(ctx, transfer.ID, "gerente-1")
	require.NoError(t, err)

	_, err = f.workflow.Receive(ctx, transfer.ID, "bodeguero-2",
		[]transfers.ItemReceipt{{ProductID: "prod-a", Quantity: 7}}, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "la diferencia debe quedar documentada")

	current, err := f.store.Transfers().GetByID(transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TransferDispatched, current.Status, "el rechazo no avanza el estado")
	assert.Equal(t, int64(0), f.stockQty(t, "prod-a", "suc-2"), "el rechazo no toca stock en destino")

	// Recibir más de lo despachado tampoco es válido.
	_, err = f.workflow.Receive(ctx, transfer.ID, "bodeguero-2",
		[]transfers.ItemReceipt{{ProductID: "prod-a", Quantity: 9}}, "sobró una caja")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWorkflow_AprobarMasDeLoSolicitado(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	transfer := f.request(t, transfers.TransferItemInput{ProductID: "prod-a", Quantity: 5})
	_, err := f.workflow.Approve(ctx, transfer.ID, "gerente-1",
		[]transfers.ItemApproval{{ProductID: "prod-a", Quantity: 6}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	current, err := f.store.Transfers().GetByID(transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TransferRequested, current.Status)
}

func TestWorkflow_DespachoTodoONada(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "prod-a", "suc-1", 10)
	f.seedStock(t, "prod-b", "suc-1", 1)
	ctx := context.Background()

	transfer := f.request(t,
		transfers.TransferItemInput{ProductID: "prod-a", Quantity: 5},
		transfers.TransferItemInput{ProductID: "prod-b", Quantity: 3},
	)
	_, err := f.workflow.Approve(ctx, transfer.ID, "gerente-1", nil)
	require.NoError(t, err)

	_, err = f.workflow.Dispatch(ctx, transfer.ID, "gerente-1")
	require.ErrorIs(t, err, domain.ErrInsufficientStock, "una línea sin stock aborta el despacho completo")

	assert.Equal(t, int64(10), f.stockQty(t, "prod-a", "suc-1"), "la línea ya descontada se compensa")
	assert.Equal(t, int64(1), f.stockQty(t, "prod-b", "suc-1"))

	current, err := f.store.Transfers().GetByID(transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TransferApproved, current.Status, "el estado regresa al previo al despacho fallido")
}

func TestWorkflow_CancelacionSoloAntesDelDespacho(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, "prod-a", "suc-1", 10)
	ctx := context.Background()

	// Cancelar en REQUESTED funciona y nunca toca stock.
	transfer := f.request(t, transfers.TransferItemInput{ProductID: "prod-a", Quantity: 5})
	cancelled, err := f.workflow.Cancel(ctx, transfer.ID, "gerente-1", "ya no se necesita")
	require.NoError(t, err)
	assert.Equal(t, entity.TransferCancelled, cancelled.Status)
	assert.Contains(t, cancelled.Notes, "cancelado: ya no se necesita")
	assert.Equal(t, int64(10), f.stockQty(t, "prod-a", "suc-1"))

	// Después del despacho la cancelación se rechaza.
	transfer = f.request(t, transfers.TransferItemInput{ProductID: "prod-a", Quantity: 5})
	_, err = f.workflow.Approve(ctx, transfer.ID, "gerente-1", nil)
	require.NoError(t, err)
	_, err = f.workflow.Dispatch(ctx, transfer.ID, "gerente-1")
	require.NoError(t, err)

	_, err = f.workflow.Cancel(ctx, transfer.ID, "gerente-1", "me arrepentí")
	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid, "con la mercancía en tránsito no se cancela")
	assert.Equal(t, string(entity.TransferDispatched), invalid.From)
	assert.Equal(t, string(entity.TransferCancelled), invalid.To)
}

func TestWorkflow_TransicionesInvalidas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	transfer := f.request(t, transfers.TransferItemInput{ProductID: "prod-a", Quantity: 5})

	// Empacar sin aprobar.
	_, err := f.workflow.Pack(ctx, transfer.ID, "bodeguero-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// Despachar sin aprobar.
	_, err = f.workflow.Dispatch(ctx, transfer.ID, "gerente-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// Recibir sin despachar.
	_, err = f.workflow.Receive(ctx, transfer.ID, "bodeguero-2", nil, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// Aprobar dos veces.
	_, err = f.workflow.Approve(ctx, transfer.ID, "gerente-1", nil)
	require.NoError(t, err)
	_, err = f.workflow.Approve(ctx, transfer.ID, "gerente-1", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestWorkflow_ValidacionesDeSolicitud(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Misma sucursal origen y destino.
	_, err := f.workflow.Request(ctx, transfers.RequestInput{
		FromBranchID: "suc-1", ToBranchID: "suc-1", ActorID: "g",
		Items: []transfers.TransferItemInput{{ProductID: "prod-a", Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Sin líneas.
	_, err = f.workflow.Request(ctx, transfers.RequestInput{
		FromBranchID: "suc-1", ToBranchID: "suc-2", ActorID: "g",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Cantidad no positiva.
	_, err = f.workflow.Request(ctx, transfers.RequestInput{
		FromBranchID: "suc-1", ToBranchID: "suc-2", ActorID: "g",
		Items: []transfers.TransferItemInput{{ProductID: "prod-a", Quantity: 0}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Sucursal inexistente.
	_, err = f.workflow.Request(ctx, transfers.RequestInput{
		FromBranchID: "suc-1", ToBranchID: "suc-9", ActorID: "g",
		Items: []transfers.TransferItemInput{{ProductID: "prod-a", Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
