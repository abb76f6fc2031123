// Package ledger implementa la primitiva única de mutación de stock.
// Toda variación de cantidad (venta, anulación, despacho, recepción, ajuste
// manual) pasa por StockLedger.Adjust: compare-and-swap sobre la columna
// version, guardia de cantidad no negativa, auditoría en la misma transacción
// y publicación de eventos como canal lateral.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/mercaldo/pos-api/internal/application/audit"
	"github.com/mercaldo/pos-api/internal/domain"
	"github.com/mercaldo/pos-api/internal/domain/entity"
	"github.com/mercaldo/pos-api/internal/domain/event"
	"github.com/mercaldo/pos-api/internal/domain/repository"
	"github.com/mercaldo/pos-api/pkg/logger"
)

// EntityTypeStock tipo de entidad usado en auditoría para registros de stock.
const EntityTypeStock = "stock_record"

// RetryConfig presupuesto de reintentos ante conflicto de versión.
// El backoff es aleatorio en [BackoffMin, BackoffMax) para desincronizar
// a dos callers que chocan repetidamente sobre la misma fila.
type RetryConfig struct {
	Attempts   int
	BackoffMin time.Duration
	BackoffMax time.Duration
}

// DefaultRetryConfig presupuesto por defecto: 3 intentos, 10-30 ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 3, BackoffMin: 10 * time.Millisecond, BackoffMax: 30 * time.Millisecond}
}

// AdjustInput entrada de una mutación de stock.
type AdjustInput struct {
	ActorID   string
	Action    entity.AuditAction // causa: venta, anulación, despacho, recepción, ajuste
	Reference string             // ID de la venta/traslado que origina el movimiento
	ProductID string
	BranchID  string
	Delta     int64 // positivo entrada, negativo salida
	// ExpectedVersion versión observada por el caller. AdjustWithRetry la relee
	// en cada intento, por lo que allí se ignora.
	ExpectedVersion int64
}

// Adjustment resultado de una mutación exitosa.
type Adjustment struct {
	NewQuantity int64
	NewVersion  int64
}

// StockLedger primitiva de mutación del libro de stock.
type StockLedger struct {
	txRunner    TxRunner
	stockRepo   repository.StockRepository // lecturas fuera de transacción
	productRepo repository.ProductRepository
	publisher   event.Publisher
	log         *logger.Logger
	retry       RetryConfig
}

// NewStockLedger construye la primitiva.
func NewStockLedger(
	txRunner TxRunner,
	stockRepo repository.StockRepository,
	productRepo repository.ProductRepository,
	publisher event.Publisher,
	log *logger.Logger,
	retry RetryConfig,
) *StockLedger {
	if retry.Attempts <= 0 {
		retry = DefaultRetryConfig()
	}
	return &StockLedger{
		txRunner:    txRunner,
		stockRepo:   stockRepo,
		productRepo: productRepo,
		publisher:   publisher,
		log:         log,
		retry:       retry,
	}
}

// stockSnapshot foto antes/después para auditoría.
type stockSnapshot struct {
	ProductID string `json:"product_id"`
	BranchID  string `json:"branch_id"`
	Quantity  int64  `json:"quantity"`
	Version   int64  `json:"version"`
	Delta     int64  `json:"delta,omitempty"`
	Reference string `json:"reference,omitempty"`
}

func recordKey(productID, branchID string) string {
	return productID + "@" + branchID
}

// Adjust aplica un único intento de mutación:
//  1. lee el registro (creándolo perezosamente con el umbral del catálogo);
//  2. si ExpectedVersion no coincide, falla con ConflictError sin escribir;
//  3. si la cantidad resultante sería negativa, falla con InsufficientStockError
//     sin escribir;
//  4. escribe {cantidad+delta, version+1} condicionado a la versión (CAS) junto
//     con la entrada de auditoría, en una sola transacción; cero filas
//     afectadas se trata igual que ConflictError.
//
// En éxito publica stock.changed y, si la cantidad cruzó el umbral de stock
// bajo hacia abajo, stock.low_threshold_crossed.
func (l *StockLedger) Adjust(ctx context.Context, in AdjustInput) (*Adjustment, error) {
	if in.Delta == 0 {
		return nil, domain.ErrInvalidInput
	}

	rec, err := l.stockRepo.Get(in.ProductID, in.BranchID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec, err = l.createLazily(in.ProductID, in.BranchID)
		if err != nil {
			return nil, err
		}
	}

	if rec.Version != in.ExpectedVersion {
		return nil, &domain.ConflictError{
			ProductID:       in.ProductID,
			BranchID:        in.BranchID,
			ExpectedVersion: in.ExpectedVersion,
			ActualVersion:   rec.Version,
		}
	}

	newQty := rec.Quantity + in.Delta
	if newQty < 0 {
		return nil, &domain.InsufficientStockError{
			ProductID: in.ProductID,
			BranchID:  in.BranchID,
			Requested: -in.Delta,
			Available: rec.Quantity,
		}
	}

	before := stockSnapshot{
		ProductID: in.ProductID, BranchID: in.BranchID,
		Quantity: rec.Quantity, Version: rec.Version,
	}
	after := stockSnapshot{
		ProductID: in.ProductID, BranchID: in.BranchID,
		Quantity: newQty, Version: rec.Version + 1,
		Delta: in.Delta, Reference: in.Reference,
	}

	err = l.txRunner.RunLedger(ctx, func(stockRepo repository.StockRepository, auditRepo repository.AuditRepository) error {
		ok, err := stockRepo.UpdateQuantityCAS(in.ProductID, in.BranchID, newQty, in.ExpectedVersion)
		if err != nil {
			return fmt.Errorf("actualizar stock: %w", err)
		}
		if !ok {
			// Otro caller ganó la carrera entre nuestra lectura y el CAS.
			return &domain.ConflictError{
				ProductID:       in.ProductID,
				BranchID:        in.BranchID,
				ExpectedVersion: in.ExpectedVersion,
				ActualVersion:   in.ExpectedVersion + 1,
			}
		}
		entry := audit.Entry(in.ActorID, in.Action, EntityTypeStock, recordKey(in.ProductID, in.BranchID), before, after)
		return auditRepo.Append(entry)
	})
	if err != nil {
		return nil, err
	}

	l.publishAdjust(rec, newQty, in)
	return &Adjustment{NewQuantity: newQty, NewVersion: rec.Version + 1}, nil
}

// AdjustWithRetry envuelve Adjust con el presupuesto de reintentos: relee la
// versión en cada intento y solo reintenta ConflictError, con una pequeña
// espera aleatoria. El vencimiento del deadline se detecta únicamente entre
// intentos, nunca interrumpiendo una mutación en vuelo. Agotado el
// presupuesto, el último ConflictError se propaga al caller (reintentable).
func (l *StockLedger) AdjustWithRetry(ctx context.Context, in AdjustInput) (*Adjustment, error) {
	var lastErr error
	for attempt := 0; attempt < l.retry.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(l.backoff()):
			}
		}

		rec, err := l.stockRepo.Get(in.ProductID, in.BranchID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			in.ExpectedVersion = rec.Version
		} else {
			in.ExpectedVersion = 0
		}

		adj, err := l.Adjust(ctx, in)
		if err == nil {
			return adj, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		lastErr = err
		if l.log != nil {
			l.log.Debug().
				Str("product_id", in.ProductID).
				Str("branch_id", in.BranchID).
				Int("attempt", attempt+1).
				Msg("conflicto de versión en stock, reintentando")
		}
	}
	return nil, lastErr
}

// backoff espera aleatoria en [BackoffMin, BackoffMax).
func (l *StockLedger) backoff() time.Duration {
	if l.retry.BackoffMax <= l.retry.BackoffMin {
		return l.retry.BackoffMin
	}
	return l.retry.BackoffMin + time.Duration(rand.Int63n(int64(l.retry.BackoffMax-l.retry.BackoffMin)))
}

// createLazily crea el registro en cero copiando el umbral del catálogo.
// Si dos callers lo crean a la vez, CreateIfAbsent es idempotente y la
// relectura devuelve el registro ganador.
func (l *StockLedger) createLazily(productID, branchID string) (*entity.StockRecord, error) {
	product, err := l.productRepo.GetByID(productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}
	rec := &entity.StockRecord{
		ProductID:         productID,
		BranchID:          branchID,
		Quantity:          0,
		Version:           0,
		LowStockThreshold: product.LowStockThreshold,
		UpdatedAt:         time.Now(),
	}
	if err := l.stockRepo.CreateIfAbsent(rec); err != nil {
		return nil, err
	}
	created, err := l.stockRepo.Get(productID, branchID)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("registro de stock %s no visible tras crearlo", recordKey(productID, branchID))
	}
	return created, nil
}

func (l *StockLedger) publishAdjust(before *entity.StockRecord, newQty int64, in AdjustInput) {
	if l.publisher == nil {
		return
	}
	now := time.Now()
	l.publisher.Publish(event.Event{
		Type:      event.TypeStockChanged,
		BranchID:  in.BranchID,
		ProductID: in.ProductID,
		EntityID:  recordKey(in.ProductID, in.BranchID),
		Timestamp: now,
	})
	// Evento de cruce de umbral: solo al pasar de arriba hacia abajo.
	if before.LowStockThreshold > 0 &&
		before.Quantity > before.LowStockThreshold &&
		newQty <= before.LowStockThreshold {
		l.publisher.Publish(event.Event{
			Type:      event.TypeLowStockCrossed,
			BranchID:  in.BranchID,
			ProductID: in.ProductID,
			EntityID:  recordKey(in.ProductID, in.BranchID),
			Timestamp: now,
		})
	}
}
