package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mercaldo/pos-api/internal/application/ledger"
	"github.com/mercaldo/pos-api/internal/domain"
	"github.com/mercaldo/pos-api/internal/domain/entity"
	"github.com/mercaldo/pos-api/internal/domain/event"
	"github.com/mercaldo/pos-api/internal/infrastructure/memory"
	"github.com/mercaldo/pos-api/pkg/logger"
)

// capturePublisher recolecta eventos de forma síncrona para los tests.
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

func newLedger(retry ledger.RetryConfig) (*ledger.StockLedger, *memory.Store, *capturePublisher) {
	store := memory.NewStore()
	pub := &capturePublisher{}
	l := ledger.NewStockLedger(store, store.Stock(), store.Products(), pub, logger.Nop(), retry)
	return l, store, pub
}

func seedProduct(t *testing.T, store *memory.Store, id string, threshold int64) {
	t.Helper()
	err := store.Products().Create(&entity.Product{
		ID: id, SKU: "SKU-" + id, Name: "Producto " + id, LowStockThreshold: threshold,
	})
	require.NoError(t, err, "sembrar producto %s", id)
}

func seedStock(t *testing.T, store *memory.Store, productID, branchID string, qty, version, threshold int64) {
	t.Helper()
	err := store.Stock().CreateIfAbsent(&entity.StockRecord{
		ProductID:         productID,
		BranchID:          branchID,
		Quantity:          qty,
		Version:           version,
		LowStockThreshold: threshold,
		UpdatedAt:         time.Now(),
	})
	require.NoError(t, err, "sembrar stock %s@%s", productID, branchID)
}

func getStock(t *testing.T, store *memory.Store, productID, branchID string) *entity.StockRecord {
	t.Helper()
	rec, err := store.Stock().Get(productID, branchID)
	require.NoError(t, err)
	require.NotNil(t, rec, "debe existir registro de stock %s@%s", productID, branchID)
	return rec
}

func TestAdjust_DescuentoYRestauracion(t *testing.T) {
	l, store, _ := newLedger(ledger.DefaultRetryConfig())
	seedProduct(t, store, "prod-1", 0)
	seedStock(t, store, "prod-1", "suc-1", 10, 3, 0)

	// Venta de 4 unidades sobre la versión observada 3.
	adj, err := l.Adjust(context.Background(), ledger.AdjustInput{
		ActorID: "user-1", Action: entity.AuditStockSaleOut, Reference: "venta-1",
		ProductID: "prod-1", BranchID: "suc-1", Delta: -4, ExpectedVersion: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), adj.NewQuantity)
	assert.Equal(t, int64(4), adj.NewVersion, "toda mutación incrementa la versión en 1")

	// Anulación: se restauran las 4 unidades.
	adj, err = l.Adjust(context.Background(), ledger.AdjustInput{
		ActorID: "user-1", Action: entity.AuditStockSaleRestore, Reference: "venta-1",
		ProductID: "prod-1", BranchID: "suc-1", Delta: 4, ExpectedVersion: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), adj.NewQuantity, "la anulación restaura la cantidad original")
	assert.Equal(t, int64(5), adj.NewVersion, "la restauración también incrementa la versión")

	rec := getStock(t, store, "prod-1", "suc-1")
	assert.Equal(t, int64(10), rec.Quantity)
	assert.Equal(t, int64(5), rec.Version)
}

func TestAdjust_DeltaCeroEsInvalido(t *testing.T) {
	l, _, _ := newLedger(ledger.DefaultRetryConfig())
	_, err := l.Adjust(context.Background(), ledger.AdjustInput{
		ProductID: "prod-1", BranchID: "suc-1", Delta: 0,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAdjust_VersionObsoletaNoEscribe(t *testing.T) {
	l, store, pub := newLedger(ledger.DefaultRetryConfig())
	seedProduct(t, store, "prod-1", 0)
	seedStock(t, store, "prod-1", "suc-1", 10, 7, 0)

	_, err := l.Adjust(context.Background(), ledger.AdjustInput{
		ActorID: "user-1", Action: entity.AuditStockSaleOut,
		ProductID: "prod-1", BranchID: "suc-1", Delta: -1, ExpectedVersion: 5,
	})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict, "versión obsoleta produce ConflictError")
	assert.Equal(t, int64(5), conflict.ExpectedVersion)
	assert.Equal(t, int64(7), conflict.ActualVersion)
	assert.ErrorIs(t, err, domain.ErrConflict, "ConflictError envuelve el centinela")

	rec := getStock(t, store, "prod-1", "suc-1")
	assert.Equal(t, int64(10), rec.Quantity, "el conflicto no debe escribir nada")
	assert.Equal(t, int64(7), rec.Version)
	assert.Empty(t, pub.ofType(event.TypeStockChanged), "el conflicto no publica eventos")
}

func TestAdjust_StockInsuficienteNoEscribe(t *testing.T) {
	l, store, pub := newLedger(ledger.DefaultRetryConfig())
	seedProduct(t, store, "prod-1", 0)
	seedStock(t, store, "prod-1", "suc-1", 5, 0, 0)

	_, err := l.Adjust(context.Background(), ledger.AdjustInput{
		ActorID: "user-1", Action: entity.AuditStockSaleOut,
		ProductID: "prod-1", BranchID: "suc-1", Delta: -6, ExpectedVersion: 0,
	})
	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(6), insufficient.Requested)
	assert.Equal(t, int64(5), insufficient.Available)
	assert.Equal(t, int64(1), insufficient.Shortfall())

	rec := getStock(t, store, "prod-1", "suc-1")
	assert.Equal(t, int64(5), rec.Quantity, "la cantidad nunca baja de cero ni se escribe parcial")
	assert.Equal(t, int64(0), rec.Version)
	assert.Empty(t, pub.ofType(event.TypeStockChanged))
}

func TestAdjust_CreacionPerezosaCopiaUmbral(t *testing.T) {
	l, store, _ := newLedger(ledger.DefaultRetryConfig())
	seedProduct(t, store, "prod-nuevo", 5)

	adj, err := l.Adjust(context.Background(), ledger.AdjustInput{
		ActorID: "user-1", Action: entity.AuditStockTransferIn, Reference: "traslado-1",
		ProductID: "prod-nuevo", BranchID: "suc-2", Delta: 7, ExpectedVersion: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), adj.NewQuantity)
	assert.Equal(t, int64(1), adj.NewVersion)

	rec := getStock(t, store, "prod-nuevo", "suc-2")
	assert.Equal(t, int64(5), rec.LowStockThreshold, "el umbral se copia del catálogo al crear el registro")
}

func TestAdjust_ProductoInexistenteFalla(t *testing.T) {
	l, _, _ := newLedger(ledger.DefaultRetryConfig())
	_, err := l.Adjust(context.Background(), ledger.AdjustInput{
		ActorID: "user-1", Action: entity.AuditStockManualAdjust,
		ProductID: "fantasma", BranchID: "suc-1", Delta: 1, ExpectedVersion: 0,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound, "sin producto de catálogo no hay creación perezosa")
}

func TestAdjust_EventoDeUmbralSoloAlCruzarHaciaAbajo(t *testing.T) {
	l, store, pub := newLedger(ledger.DefaultRetryConfig())
	seedProduct(t, store, "prod-1", 5)
	seedStock(t, store, "prod-1", "suc-1", 10, 0, 5)

	ctx := context.Background()

	// 10 -> 6: todavía por encima del umbral.
	_, err := l.Adjust(ctx, ledger.AdjustInput{
		ActorID: "u", Action: entity.AuditStockSaleOut,
		ProductID: "prod-1", BranchID: "suc-1", Delta: -4, ExpectedVersion: 0,
	})
	require.NoError(t, err)
	assert.Empty(t, pub.ofType(event.TypeLowStockCrossed))

	// 6 -> 5: cruza el umbral, un único evento.
	_, err = l.Adjust(ctx, ledger.AdjustInput{
		ActorID: "u", Action: entity.AuditStockSaleOut,
		ProductID: "prod-1", BranchID: "suc-1", Delta: -1, ExpectedVersion: 1,
	})
	require.NoError(t, err)
	require.Len(t, pub.ofType(event.TypeLowStockCrossed), 1)
	assert.Equal(t, "prod-1", pub.ofType(event.TypeLowStockCrossed)[0].ProductID)

	// 5 -> 4: ya estaba bajo el umbral, no se repite la alerta.
	_, err = l.Adjust(ctx, ledger.AdjustInput{
		ActorID: "u", Action: entity.AuditStockSaleOut,
		ProductID: "prod-1", BranchID: "suc-1", Delta: -1, ExpectedVersion: 2,
	})
	require.NoError(t, err)
	assert.Len(t, pub.ofType(event.TypeLowStockCrossed), 1, "el cruce se notifica una sola vez")

	assert.Len(t, pub.ofType(event.TypeStockChanged), 3, "cada mutación exitosa publica stock.changed")
}

func TestAdjust_AuditoriaEnCadaMutacion(t *testing.T) {
	l, store, _ := newLedger(ledger.DefaultRetryConfig())
	seedProduct(t, store, "prod-1", 0)
	seedStock(t, store, "prod-1", "suc-1", 10, 0, 0)

	_, err := l.Adjust(context.Background(), ledger.AdjustInput{
		ActorID: "user-1", Action: entity.AuditStockSaleOut, Reference: "venta-1",
		ProductID: "prod-1", BranchID: "suc-1", Delta: -2, ExpectedVersion: 0,
	})
	require.NoError(t, err)

	entries, err := store.Audit().ListByEntity(ledger.EntityTypeStock, "prod-1@suc-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.AuditStockSaleOut, entries[0].Action)
	assert.Equal(t, "user-1", entries[0].ActorID)
	assert.Contains(t, entries[0].BeforeData, `"quantity":10`)
	assert.Contains(t, entries[0].AfterData, `"quantity":8`)
	assert.Contains(t, entries[0].AfterData, `"reference":"venta-1"`)
}

func TestAdjust_ConcurrenciaMismaVersion(t *testing.T) {
	l, store, _ := newLedger(ledger.DefaultRetryConfig())
	seedProduct(t, store, "prod-1", 0)
	seedStock(t, store, "prod-1", "suc-1", 10, 0, 0)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Adjust(context.Background(), ledger.AdjustInput{
				ActorID: "u", Action: entity.AuditStockSaleOut,
				ProductID: "prod-1", BranchID: "suc-1", Delta: -1, ExpectedVersion: 0,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var okCount, conflictCount int
	for err := range errs {
		switch {
		case err == nil:
			okCount++
		default:
			assert.ErrorIs(t, err, domain.ErrConflict, "el perdedor de la carrera recibe conflicto")
			conflictCount++
		}
	}
	assert.Equal(t, 1, okCount, "exactamente un caller gana el CAS")
	assert.Equal(t, 1, conflictCount)

	rec := getStock(t, store, "prod-1", "suc-1")
	assert.Equal(t, int64(9), rec.Quantity, "solo se descuenta una unidad")
	assert.Equal(t, int64(1), rec.Version)
}

func TestAdjustWithRetry_ConvergeBajoConcurrencia(t *testing.T) {
	l, store, _ := newLedger(ledger.RetryConfig{Attempts: 20, BackoffMin: time.Millisecond, BackoffMax: 3 * time.Millisecond})
	seedProduct(t, store, "prod-1", 0)
	seedStock(t, store, "prod-1", "suc-1", 50, 0, 0)

	const callers = 10
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.AdjustWithRetry(context.Background(), ledger.AdjustInput{
				ActorID: "u", Action: entity.AuditStockSaleOut,
				ProductID: "prod-1", BranchID: "suc-1", Delta: -1,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err, "con reintentos todos los callers deben converger")
	}
	rec := getStock(t, store, "prod-1", "suc-1")
	assert.Equal(t, int64(50-callers), rec.Quantity)
	assert.Equal(t, int64(callers), rec.Version, "una versión por mutación exitosa")
}

func TestAdjustWithRetry_ErrorPermanenteNoSeReintenta(t *testing.T) {
	l, store, _ := newLedger(ledger.DefaultRetryConfig())
	seedProduct(t, store, "prod-1", 0)
	seedStock(t, store, "prod-1", "suc-1", 2, 0, 0)

	_, err := l.AdjustWithRetry(context.Background(), ledger.AdjustInput{
		ActorID: "u", Action: entity.AuditStockSaleOut,
		ProductID: "prod-1", BranchID: "suc-1", Delta: -3,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	rec := getStock(t, store, "prod-1", "suc-1")
	assert.Equal(t, int64(0), rec.Version, "el error permanente no consume versiones")
}

func TestManualAdjust_ExigeJustificacion(t *testing.T) {
	l, store, _ := newLedger(ledger.DefaultRetryConfig())
	seedProduct(t, store, "prod-1", 0)
	seedStock(t, store, "prod-1", "suc-1", 10, 0, 0)

	_, err := l.ManualAdjust(context.Background(), ledger.ManualAdjustInput{
		ActorID: "gerente-1", ProductID: "prod-1", BranchID: "suc-1", Delta: -2, Reason: "   ",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "la razón en blanco se rechaza")

	adj, err := l.ManualAdjust(context.Background(), ledger.ManualAdjustInput{
		ActorID: "gerente-1", ProductID: "prod-1", BranchID: "suc-1", Delta: -2, Reason: "merma por rotura",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), adj.NewQuantity)

	entries, err := store.Audit().ListByEntity(ledger.EntityTypeStock, "prod-1@suc-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.AuditStockManualAdjust, entries[0].Action)
	assert.Contains(t, entries[0].AfterData, "merma por rotura", "la razón viaja como referencia en la auditoría")
}
