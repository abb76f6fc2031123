package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mercaldo/pos-api/internal/domain/entity"
	"github.com/mercaldo/pos-api/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre PostgreSQL (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

const stockColumns = `product_id, branch_id, quantity, version, low_stock_threshold, updated_at`

// Get obtiene el registro de stock, o nil si no existe.
func (r *StockRepo) Get(productID, branchID string) (*entity.StockRecord, error) {
	query := `
		SELECT ` + stockColumns + `
		FROM stock_records WHERE product_id = $1 AND branch_id = $2`
	var s entity.StockRecord
	err := r.q.QueryRow(context.Background(), query, productID, branchID).Scan(
		&s.ProductID, &s.BranchID, &s.Quantity, &s.Version, &s.LowStockThreshold, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock record: %w", err)
	}
	return &s, nil
}

// CreateIfAbsent inserta el registro si no existe. Una inserción concurrente
// no es error: el caller relee y continúa sobre la versión vigente.
func (r *StockRepo) CreateIfAbsent(rec *entity.StockRecord) error {
	query := `
		INSERT INTO stock_records (` + stockColumns + `)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (product_id, branch_id) DO NOTHING`
	_, err := r.q.Exec(context.Background(), query,
		rec.ProductID, rec.BranchID, rec.Quantity, rec.Version, rec.LowStockThreshold)
	if err != nil {
		return fmt.Errorf("create stock record: %w", err)
	}
	return nil
}

// UpdateQuantityCAS escribe cantidad y versión+1 condicionado a la versión
// esperada. Cero filas afectadas significa que otro writer ganó la carrera.
func (r *StockRepo) UpdateQuantityCAS(productID, branchID string, newQuantity, expectedVersion int64) (bool, error) {
	query := `
		UPDATE stock_records
		SET quantity = $3, version = version + 1, updated_at = now()
		WHERE product_id = $1 AND branch_id = $2 AND version = $4`
	tag, err := r.q.Exec(context.Background(), query, productID, branchID, newQuantity, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("update stock record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByBranch lista los registros de stock de una sucursal.
func (r *StockRepo) ListByBranch(branchID string) ([]*entity.StockRecord, error) {
	query := `
		SELECT ` + stockColumns + `
		FROM stock_records WHERE branch_id = $1
		ORDER BY product_id`
	return r.list(query, branchID)
}

// ListLowStock registros en o por debajo de su umbral (solo umbral > 0).
func (r *StockRepo) ListLowStock(branchID string) ([]*entity.StockRecord, error) {
	query := `
		SELECT ` + stockColumns + `
		FROM stock_records
		WHERE branch_id = $1 AND low_stock_threshold > 0 AND quantity <= low_stock_threshold
		ORDER BY product_id`
	return r.list(query, branchID)
}

func (r *StockRepo) list(query string, args ...any) ([]*entity.StockRecord, error) {
	rows, err := r.q.Query(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock records: %w", err)
	}
	defer rows.Close()

	var out []*entity.StockRecord
	for rows.Next() {
		var s entity.StockRecord
		if err := rows.Scan(&s.ProductID, &s.BranchID, &s.Quantity, &s.Version, &s.LowStockThreshold, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock record: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
