// Package transfers implementa la máquina de estados de traslados de stock
// entre sucursales: REQUESTED -> APPROVED -> PACKED -> DISPATCHED ->
// RECEIVED | RECEIVED_WITH_DISCREPANCY, con CANCELLED alcanzable solo antes
// del despacho. Entre despacho y recepción el stock está en tránsito: no
// figura en el libro de ninguna de las dos sucursales.
package transfers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mercaldo/pos-api/internal/application/audit"
	"github.com/mercaldo/pos-api/internal/application/ledger"
	"github.com/mercaldo/pos-api/internal/domain"
	"github.com/mercaldo/pos-api/internal/domain/entity"
	"github.com/mercaldo/pos-api/internal/domain/event"
	"github.com/mercaldo/pos-api/internal/domain/repository"
	"github.com/mercaldo/pos-api/pkg/logger"
)

// EntityTypeTransfer tipo de entidad usado en auditoría para traslados.
const EntityTypeTransfer = "transfer"

// Workflow máquina de estados de traslados.
type Workflow struct {
	txRunner     TxRunner
	stock        StockAdjuster
	transferRepo repository.TransferRepository // lecturas fuera de transacción
	branchRepo   repository.BranchRepository
	publisher    event.Publisher
	log          *logger.Logger
}

// NewWorkflow construye el flujo de traslados.
func NewWorkflow(
	txRunner TxRunner,
	stock StockAdjuster,
	transferRepo repository.TransferRepository,
	branchRepo repository.BranchRepository,
	publisher event.Publisher,
	log *logger.Logger,
) *Workflow {
	return &Workflow{
		txRunner:     txRunner,
		stock:        stock,
		transferRepo: transferRepo,
		branchRepo:   branchRepo,
		publisher:    publisher,
		log:          log,
	}
}

// TransferItemInput línea solicitada en un traslado.
type TransferItemInput struct {
	ProductID string
	Quantity  int64
}

// RequestInput creación de un traslado.
type RequestInput struct {
	FromBranchID string
	ToBranchID   string
	ActorID      string
	Notes        string
	Items        []TransferItemInput
}

// Request crea el traslado en REQUESTED. No toca stock.
func (w *Workflow) Request(ctx context.Context, in RequestInput) (*entity.Transfer, error) {
	if in.FromBranchID == "" || in.ToBranchID == "" || in.FromBranchID == in.ToBranchID {
		return nil, domain.ErrInvalidInput
	}
	if len(in.Items) == 0 {
		return nil, domain.ErrInvalidInput
	}
	for _, it := range in.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return nil, domain.ErrInvalidInput
		}
	}
	for _, branchID := range []string{in.FromBranchID, in.ToBranchID} {
		branch, err := w.branchRepo.GetByID(branchID)
		if err != nil {
			return nil, err
		}
		if branch == nil {
			return nil, domain.ErrNotFound
		}
	}

	now := time.Now()
	transferID := uuid.New().String()
	items := make([]entity.TransferItem, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, entity.TransferItem{
			ID:                uuid.New().String(),
			TransferID:        transferID,
			ProductID:         it.ProductID,
			QuantityRequested: it.Quantity,
		})
	}
	transfer := &entity.Transfer{
		ID:           transferID,
		FromBranchID: in.FromBranchID,
		ToBranchID:   in.ToBranchID,
		Status:       entity.TransferRequested,
		Items:        items,
		Notes:        in.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
		CreatedBy:    in.ActorID,
	}

	err := w.txRunner.RunTransfer(ctx, func(transferRepo repository.TransferRepository, auditRepo repository.AuditRepository) error {
		if err := transferRepo.Create(transfer); err != nil {
			return fmt.Errorf("persistir traslado: %w", err)
		}
		entry := audit.Entry(in.ActorID, entity.AuditTransferRequest, EntityTypeTransfer, transferID, nil, transfer)
		return auditRepo.Append(entry)
	})
	if err != nil {
		return nil, err
	}

	w.publishStatus(transfer, transfer.FromBranchID)
	return transfer, nil
}

// ItemApproval cantidad aprobada por producto. Productos sin aprobación
// explícita quedan aprobados por lo solicitado.
type ItemApproval struct {
	ProductID string
	Quantity  int64
}

// Approve pasa REQUESTED -> APPROVED fijando quantityApproved por línea
// (<= solicitado). No toca stock.
func (w *Workflow) Approve(ctx context.Context, transferID, actorID string, approvals []ItemApproval) (*entity.Transfer, error) {
	transfer, err := w.load(transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != entity.TransferRequested {
		return nil, w.invalidTransition(transfer, entity.TransferApproved)
	}

	byProduct := make(map[string]int64, len(approvals))
	for _, a := range approvals {
		byProduct[a.ProductID] = a.Quantity
	}
	before := *transfer
	for i := range transfer.Items {
		item := &transfer.Items[i]
		approved, ok := byProduct[item.ProductID]
		if !ok {
			approved = item.QuantityRequested
		}
		if approved < 0 || approved > item.QuantityRequested {
			return nil, domain.ErrInvalidInput
		}
		item.QuantityApproved = approved
	}

	err = w.transition(ctx, transfer, entity.TransferRequested, entity.TransferApproved,
		actorID, entity.AuditTransferApprove, before, true)
	if err != nil {
		return nil, err
	}
	w.publishStatus(transfer, transfer.FromBranchID)
	return transfer, nil
}

// Pack pasa APPROVED -> PACKED. Punto de control organizativo, sin efectos.
func (w *Workflow) Pack(ctx context.Context, transferID, actorID string) (*entity.Transfer, error) {
	transfer, err := w.load(transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != entity.TransferApproved {
		return nil, w.invalidTransition(transfer, entity.TransferPacked)
	}
	before := *transfer
	err = w.transition(ctx, transfer, entity.TransferApproved, entity.TransferPacked,
		actorID, entity.AuditTransferPack, before, false)
	if err != nil {
		return nil, err
	}
	w.publishStatus(transfer, transfer.FromBranchID)
	return transfer, nil
}

// Dispatch pasa {APPROVED, PACKED} -> DISPATCHED descontando
// -quantityApproved en la sucursal origen, línea por línea con reintentos.
// Stock insuficiente en cualquier línea aborta el despacho completo sin
// descuento parcial (compensación de las líneas ya aplicadas) y revierte el
// estado. El CAS de estado va primero para que dos despachos concurrentes no
// desconten doble.
func (w *Workflow) Dispatch(ctx context.Context, transferID, actorID string) (*entity.Transfer, error) {
	transfer, err := w.load(transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != entity.TransferApproved && transfer.Status != entity.TransferPacked {
		return nil, w.invalidTransition(transfer, entity.TransferDispatched)
	}
	prev := transfer.Status
	before := *transfer

	ok, err := w.transferRepo.UpdateStatusCAS(transferID, prev, entity.TransferDispatched)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, w.reloadInvalidTransition(transferID, entity.TransferDispatched)
	}
	transfer.Status = entity.TransferDispatched

	// Descuento en origen; las líneas aprobadas en cero no generan movimiento.
	applied := make([]entity.TransferItem, 0, len(transfer.Items))
	for _, item := range transfer.Items {
		if item.QuantityApproved == 0 {
			continue
		}
		_, err := w.stock.AdjustWithRetry(ctx, ledger.AdjustInput{
			ActorID:   actorID,
			Action:    entity.AuditStockTransferOut,
			Reference: transferID,
			ProductID: item.ProductID,
			BranchID:  transfer.FromBranchID,
			Delta:     -item.QuantityApproved,
		})
		if err != nil {
			w.undoDispatch(ctx, actorID, transfer, prev, applied)
			return nil, err
		}
		applied = append(applied, item)
	}

	for i := range transfer.Items {
		transfer.Items[i].QuantityDispatched = transfer.Items[i].QuantityApproved
	}
	err = w.txRunner.RunTransfer(ctx, func(transferRepo repository.TransferRepository, auditRepo repository.AuditRepository) error {
		if err := transferRepo.UpdateItems(transferID, transfer.Items); err != nil {
			return fmt.Errorf("actualizar líneas despachadas: %w", err)
		}
		entry := audit.Entry(actorID, entity.AuditTransferDispatch, EntityTypeTransfer, transferID, before, transfer)
		return auditRepo.Append(entry)
	})
	if err != nil {
		w.undoDispatch(ctx, actorID, transfer, prev, applied)
		return nil, err
	}

	w.publishStatus(transfer, transfer.FromBranchID)
	return transfer, nil
}

// ItemReceipt cantidad recibida por producto. Productos sin recepción
// explícita quedan recibidos por lo despachado.
type ItemReceipt struct {
	ProductID string
	Quantity  int64
}

// Receive pasa DISPATCHED -> RECEIVED si lo recibido iguala lo despachado en
// todas las líneas, o RECEIVED_WITH_DISCREPANCY en caso contrario (con notas
// de discrepancia obligatorias). Suma +quantityReceived en destino, creando el
// registro de stock si no existe.
func (w *Workflow) Receive(ctx context.Context, transferID, actorID string, receipts []ItemReceipt, discrepancyNotes string) (*entity.Transfer, error) {
	transfer, err := w.load(transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != entity.TransferDispatched {
		return nil, w.invalidTransition(transfer, entity.TransferReceived)
	}

	byProduct := make(map[string]int64, len(receipts))
	for _, r := range receipts {
		byProduct[r.ProductID] = r.Quantity
	}
	before := *transfer
	discrepancy := false
	for i := range transfer.Items {
		item := &transfer.Items[i]
		received, ok := byProduct[item.ProductID]
		if !ok {
			received = item.QuantityDispatched
		}
		if received < 0 || received > item.QuantityDispatched {
			return nil, domain.ErrInvalidInput
		}
		if received != item.QuantityDispatched {
			discrepancy = true
		}
		item.QuantityReceived = received
	}
	// La diferencia entre lo despachado y lo recibido debe quedar documentada.
	if discrepancy && strings.TrimSpace(discrepancyNotes) == "" {
		return nil, domain.ErrInvalidInput
	}

	target := entity.TransferReceived
	if discrepancy {
		target = entity.TransferReceivedWithDiscrepancy
	}

	ok, err := w.transferRepo.UpdateStatusCAS(transferID, entity.TransferDispatched, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, w.reloadInvalidTransition(transferID, target)
	}
	transfer.Status = target
	transfer.DiscrepancyNotes = discrepancyNotes

	// Entrada en destino; el libro crea el registro de forma perezosa.
	applied := make([]entity.TransferItem, 0, len(transfer.Items))
	for _, item := range transfer.Items {
		if item.QuantityReceived == 0 {
			continue
		}
		_, err := w.stock.AdjustWithRetry(ctx, ledger.AdjustInput{
			ActorID:   actorID,
			Action:    entity.AuditStockTransferIn,
			Reference: transferID,
			ProductID: item.ProductID,
			BranchID:  transfer.ToBranchID,
			Delta:     item.QuantityReceived,
		})
		if err != nil {
			w.undoReceive(ctx, actorID, transfer, target, applied)
			return nil, err
		}
		applied = append(applied, item)
	}

	err = w.txRunner.RunTransfer(ctx, func(transferRepo repository.TransferRepository, auditRepo repository.AuditRepository) error {
		if err := transferRepo.UpdateItems(transferID, transfer.Items); err != nil {
			return fmt.Errorf("actualizar líneas recibidas: %w", err)
		}
		if discrepancyNotes != "" {
			if err := transferRepo.SetDiscrepancyNotes(transferID, discrepancyNotes); err != nil {
				return fmt.Errorf("registrar notas de discrepancia: %w", err)
			}
		}
		entry := audit.Entry(actorID, entity.AuditTransferReceive, EntityTypeTransfer, transferID, before, transfer)
		return auditRepo.Append(entry)
	})
	if err != nil {
		w.undoReceive(ctx, actorID, transfer, target, applied)
		return nil, err
	}

	w.publishStatus(transfer, transfer.ToBranchID)
	return transfer, nil
}

// Cancel pasa {REQUESTED, APPROVED, PACKED} -> CANCELLED. Nunca después del
// despacho: con la mercancía en tránsito solo cabe recibir con discrepancia.
func (w *Workflow) Cancel(ctx context.Context, transferID, actorID, reason string) (*entity.Transfer, error) {
	transfer, err := w.load(transferID)
	if err != nil {
		return nil, err
	}
	if !transfer.Status.CanTransitionTo(entity.TransferCancelled) {
		return nil, w.invalidTransition(transfer, entity.TransferCancelled)
	}
	before := *transfer
	prev := transfer.Status
	if reason != "" {
		transfer.Notes = strings.TrimSpace(transfer.Notes + "\ncancelado: " + reason)
	}

	ok, err := w.transferRepo.UpdateStatusCAS(transferID, prev, entity.TransferCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, w.reloadInvalidTransition(transferID, entity.TransferCancelled)
	}
	transfer.Status = entity.TransferCancelled

	err = w.txRunner.RunTransfer(ctx, func(_ repository.TransferRepository, auditRepo repository.AuditRepository) error {
		entry := audit.Entry(actorID, entity.AuditTransferCancel, EntityTypeTransfer, transferID, before, transfer)
		return auditRepo.Append(entry)
	})
	if err != nil {
		return nil, err
	}

	w.publishStatus(transfer, transfer.FromBranchID)
	return transfer, nil
}

// Get devuelve un traslado con líneas.
func (w *Workflow) Get(_ context.Context, transferID string) (*entity.Transfer, error) {
	return w.load(transferID)
}

// ListByBranch traslados donde la sucursal participa como origen o destino.
func (w *Workflow) ListByBranch(_ context.Context, branchID string, limit, offset int) ([]*entity.Transfer, error) {
	return w.transferRepo.ListByBranch(branchID, limit, offset)
}

// ── Internos ──────────────────────────────────────────────────────────────────

func (w *Workflow) load(transferID string) (*entity.Transfer, error) {
	if transferID == "" {
		return nil, domain.ErrInvalidInput
	}
	transfer, err := w.transferRepo.GetByID(transferID)
	if err != nil {
		return nil, err
	}
	if transfer == nil {
		return nil, domain.ErrNotFound
	}
	return transfer, nil
}

// transition aplica un cambio de estado simple: CAS de estado + (opcional)
// actualización de líneas + auditoría en una transacción.
func (w *Workflow) transition(
	ctx context.Context,
	transfer *entity.Transfer,
	from, to entity.TransferStatus,
	actorID string,
	action entity.AuditAction,
	before entity.Transfer,
	updateItems bool,
) error {
	ok, err := w.transferRepo.UpdateStatusCAS(transfer.ID, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return w.reloadInvalidTransition(transfer.ID, to)
	}
	transfer.Status = to

	return w.txRunner.RunTransfer(ctx, func(transferRepo repository.TransferRepository, auditRepo repository.AuditRepository) error {
		if updateItems {
			if err := transferRepo.UpdateItems(transfer.ID, transfer.Items); err != nil {
				return fmt.Errorf("actualizar líneas: %w", err)
			}
		}
		entry := audit.Entry(actorID, action, EntityTypeTransfer, transfer.ID, before, transfer)
		return auditRepo.Append(entry)
	})
}

func (w *Workflow) invalidTransition(transfer *entity.Transfer, to entity.TransferStatus) error {
	return &domain.InvalidTransitionError{
		TransferID: transfer.ID,
		From:       string(transfer.Status),
		To:         string(to),
	}
}

// reloadInvalidTransition relee el estado actual tras perder un CAS para
// informar la transición rechazada con datos frescos.
func (w *Workflow) reloadInvalidTransition(transferID string, to entity.TransferStatus) error {
	current, err := w.transferRepo.GetByID(transferID)
	if err != nil || current == nil {
		return &domain.InvalidTransitionError{TransferID: transferID, From: "?", To: string(to)}
	}
	return w.invalidTransition(current, to)
}

// undoDispatch compensa un despacho fallido: devuelve el stock descontado al
// origen y regresa el estado al previo.
func (w *Workflow) undoDispatch(ctx context.Context, actorID string, transfer *entity.Transfer, prev entity.TransferStatus, applied []entity.TransferItem) {
	bg := context.WithoutCancel(ctx)
	for _, item := range applied {
		_, err := w.stock.AdjustWithRetry(bg, ledger.AdjustInput{
			ActorID:   actorID,
			Action:    entity.AuditStockCompensation,
			Reference: transfer.ID,
			ProductID: item.ProductID,
			BranchID:  transfer.FromBranchID,
			Delta:     item.QuantityApproved,
		})
		if err != nil && w.log != nil {
			w.log.Error().Err(err).
				Str("transfer_id", transfer.ID).
				Str("product_id", item.ProductID).
				Msg("compensación de despacho fallida: se requiere ajuste manual")
		}
	}
	if _, err := w.transferRepo.UpdateStatusCAS(transfer.ID, entity.TransferDispatched, prev); err != nil && w.log != nil {
		w.log.Error().Err(err).Str("transfer_id", transfer.ID).Msg("revertir estado de despacho fallido")
	}
	transfer.Status = prev
}

// undoReceive compensa una recepción fallida: retira lo ya sumado en destino
// y regresa el estado a DISPATCHED.
func (w *Workflow) undoReceive(ctx context.Context, actorID string, transfer *entity.Transfer, target entity.TransferStatus, applied []entity.TransferItem) {
	bg := context.WithoutCancel(ctx)
	for _, item := range applied {
		_, err := w.stock.AdjustWithRetry(bg, ledger.AdjustInput{
			ActorID:   actorID,
			Action:    entity.AuditStockCompensation,
			Reference: transfer.ID,
			ProductID: item.ProductID,
			BranchID:  transfer.ToBranchID,
			Delta:     -item.QuantityReceived,
		})
		if err != nil && w.log != nil {
			w.log.Error().Err(err).
				Str("transfer_id", transfer.ID).
				Str("product_id", item.ProductID).
				Msg("compensación de recepción fallida: se requiere ajuste manual")
		}
	}
	if _, err := w.transferRepo.UpdateStatusCAS(transfer.ID, target, entity.TransferDispatched); err != nil && w.log != nil {
		w.log.Error().Err(err).Str("transfer_id", transfer.ID).Msg("revertir estado de recepción fallida")
	}
	transfer.Status = entity.TransferDispatched
}

func (w *Workflow) publishStatus(transfer *entity.Transfer, branchID string) {
	if w.publisher == nil {
		return
	}
	w.publisher.Publish(event.Event{
		Type:      event.TypeTransferStatusChanged,
		BranchID:  branchID,
		EntityID:  transfer.ID,
		Timestamp: time.Now(),
	})
}
