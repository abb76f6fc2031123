package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mercaldo/pos-api/internal/domain/entity"
	"github.com/mercaldo/pos-api/internal/domain/repository"
)

var _ repository.TransferRepository = (*TransferRepo)(nil)

// TransferRepo implementación de TransferRepository sobre PostgreSQL (usable con pool o tx).
type TransferRepo struct {
	q Querier
}

// NewTransferRepository construye el adaptador de traslados. Pasar pool o tx (Querier).
func NewTransferRepository(q Querier) *TransferRepo {
	return &TransferRepo{q: q}
}

// Create persiste el traslado con sus líneas.
func (r *TransferRepo) Create(t *entity.Transfer) error {
	ctx := context.Background()
	query := `
		INSERT INTO transfers (id, from_branch_id, to_branch_id, status, notes,
			discrepancy_notes, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		t.ID, t.FromBranchID, t.ToBranchID, string(t.Status), t.Notes,
		t.DiscrepancyNotes, t.CreatedAt, t.UpdatedAt, t.CreatedBy)
	if err != nil {
		return fmt.Errorf("create transfer: %w", err)
	}

	itemQuery := `
		INSERT INTO transfer_items (id, transfer_id, product_id,
			quantity_requested, quantity_approved, quantity_dispatched, quantity_received)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, item := range t.Items {
		_, err := r.q.Exec(ctx, itemQuery,
			item.ID, item.TransferID, item.ProductID,
			item.QuantityRequested, item.QuantityApproved, item.QuantityDispatched, item.QuantityReceived)
		if err != nil {
			return fmt.Errorf("create transfer item: %w", err)
		}
	}
	return nil
}

// GetByID devuelve el traslado con líneas, o nil si no existe.
func (r *TransferRepo) GetByID(id string) (*entity.Transfer, error) {
	ctx := context.Background()
	query := `
		SELECT id, from_branch_id, to_branch_id, status, notes,
			discrepancy_notes, created_at, updated_at, created_by
		FROM transfers WHERE id = $1`
	var t entity.Transfer
	var status string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.FromBranchID, &t.ToBranchID, &status, &t.Notes,
		&t.DiscrepancyNotes, &t.CreatedAt, &t.UpdatedAt, &t.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	t.Status = entity.TransferStatus(status)

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Items = items
	return &t, nil
}

// UpdateStatusCAS cambia el estado solo si el actual es from. El predicado
// status = $from serializa transiciones concurrentes sobre el mismo traslado.
func (r *TransferRepo) UpdateStatusCAS(id string, from, to entity.TransferStatus) (bool, error) {
	query := `
		UPDATE transfers SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`
	tag, err := r.q.Exec(context.Background(), query, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("update transfer status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateItems actualiza las cantidades de las líneas del traslado.
func (r *TransferRepo) UpdateItems(id string, items []entity.TransferItem) error {
	ctx := context.Background()
	query := `
		UPDATE transfer_items
		SET quantity_approved = $3, quantity_dispatched = $4, quantity_received = $5
		WHERE transfer_id = $1 AND id = $2`
	for _, item := range items {
		_, err := r.q.Exec(ctx, query, id, item.ID,
			item.QuantityApproved, item.QuantityDispatched, item.QuantityReceived)
		if err != nil {
			return fmt.Errorf("update transfer item: %w", err)
		}
	}
	return nil
}

// SetDiscrepancyNotes registra las notas de discrepancia de la recepción.
func (r *TransferRepo) SetDiscrepancyNotes(id, notes string) error {
	query := `UPDATE transfers SET discrepancy_notes = $2, updated_at = now() WHERE id = $1`
	if _, err := r.q.Exec(context.Background(), query, id, notes); err != nil {
		return fmt.Errorf("set discrepancy notes: %w", err)
	}
	return nil
}

// ListByBranch traslados donde la sucursal es origen o destino, más recientes primero.
func (r *TransferRepo) ListByBranch(branchID string, limit, offset int) ([]*entity.Transfer, error) {
	ctx := context.Background()
	query := `
		SELECT id, from_branch_id, to_branch_id, status, notes,
			discrepancy_notes, created_at, updated_at, created_by
		FROM transfers
		WHERE from_branch_id = $1 OR to_branch_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, branchID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []*entity.Transfer
	for rows.Next() {
		var t entity.Transfer
		var status string
		if err := rows.Scan(
			&t.ID, &t.FromBranchID, &t.ToBranchID, &status, &t.Notes,
			&t.DiscrepancyNotes, &t.CreatedAt, &t.UpdatedAt, &t.CreatedBy,
		); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		t.Status = entity.TransferStatus(status)
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, t := range out {
		items, err := r.loadItems(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		t.Items = items
	}
	return out, nil
}

func (r *TransferRepo) loadItems(ctx context.Context, transferID string) ([]entity.TransferItem, error) {
	query := `
		SELECT id, transfer_id, product_id,
			quantity_requested, quantity_approved, quantity_dispatched, quantity_received
		FROM transfer_items WHERE transfer_id = $1`
	rows, err := r.q.Query(ctx, query, transferID)
	if err != nil {
		return nil, fmt.Errorf("load transfer items: %w", err)
	}
	defer rows.Close()

	var items []entity.TransferItem
	for rows.Next() {
		var it entity.TransferItem
		if err := rows.Scan(&it.ID, &it.TransferID, &it.ProductID,
			&it.QuantityRequested, &it.QuantityApproved, &it.QuantityDispatched, &it.QuantityReceived); err != nil {
			return nil, fmt.Errorf("scan transfer item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
