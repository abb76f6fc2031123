package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mercaldo/pos-api/internal/domain/entity"
	"github.com/mercaldo/pos-api/internal/domain/repository"
)

var _ repository.SaleRepository = (*SaleRepo)(nil)

// SaleRepo implementación de SaleRepository sobre PostgreSQL (usable con pool o tx).
type SaleRepo struct {
	q Querier
}

// NewSaleRepository construye el adaptador de ventas. Pasar pool o tx (Querier).
func NewSaleRepository(q Querier) *SaleRepo {
	return &SaleRepo{q: q}
}

// Create persiste la venta con sus líneas. Se espera que el caller lo invoque
// dentro de una transacción (RunSale): cabecera y líneas o entran juntas o no entran.
func (r *SaleRepo) Create(sale *entity.SaleTransaction) error {
	ctx := context.Background()
	query := `
		INSERT INTO sales (id, receipt_number, branch_id, subtotal, discount, total,
			payment_method, credit_status, reversed, reversal_reason,
			price_override, override_reason, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.q.Exec(ctx, query,
		sale.ID, sale.ReceiptNumber, sale.BranchID, sale.Subtotal, sale.Discount, sale.Total,
		sale.PaymentMethod, sale.CreditStatus, sale.Reversed, sale.ReversalReason,
		sale.PriceOverride, sale.OverrideReason, sale.CreatedAt, sale.CreatedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create sale: recibo duplicado: %w", err)
		}
		return fmt.Errorf("create sale: %w", err)
	}

	itemQuery := `
		INSERT INTO sale_items (id, sale_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)`
	for _, item := range sale.Items {
		_, err := r.q.Exec(ctx, itemQuery, item.ID, item.SaleID, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			return fmt.Errorf("create sale item: %w", err)
		}
	}
	return nil
}

// GetByID devuelve la venta con líneas y abonos, o nil si no existe.
func (r *SaleRepo) GetByID(id string) (*entity.SaleTransaction, error) {
	ctx := context.Background()
	query := `
		SELECT id, receipt_number, branch_id, subtotal, discount, total,
			payment_method, credit_status, reversed, reversal_reason,
			price_override, override_reason, created_at, created_by
		FROM sales WHERE id = $1`
	var s entity.SaleTransaction
	err := r.q.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.ReceiptNumber, &s.BranchID, &s.Subtotal, &s.Discount, &s.Total,
		&s.PaymentMethod, &s.CreditStatus, &s.Reversed, &s.ReversalReason,
		&s.PriceOverride, &s.OverrideReason, &s.CreatedAt, &s.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Items = items

	payments, err := r.loadPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Payments = payments

	return &s, nil
}

// MarkReversed marca la venta como anulada solo si no lo estaba. El predicado
// reversed = false en el WHERE es la guardia contra doble anulación.
func (r *SaleRepo) MarkReversed(id, reason string) (bool, error) {
	query := `
		UPDATE sales SET reversed = true, reversal_reason = $2
		WHERE id = $1 AND reversed = false`
	tag, err := r.q.Exec(context.Background(), query, id, reason)
	if err != nil {
		return false, fmt.Errorf("mark sale reversed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UnmarkReversed deshace la marca de anulación (compensación de saga).
func (r *SaleRepo) UnmarkReversed(id string) error {
	query := `UPDATE sales SET reversed = false, reversal_reason = '' WHERE id = $1`
	if _, err := r.q.Exec(context.Background(), query, id); err != nil {
		return fmt.Errorf("unmark sale reversed: %w", err)
	}
	return nil
}

// AddPayment agrega un abono a una venta a crédito.
func (r *SaleRepo) AddPayment(payment *entity.CreditPayment) error {
	query := `
		INSERT INTO credit_payments (id, sale_id, amount, method, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(context.Background(), query,
		payment.ID, payment.SaleID, payment.Amount, payment.Method, payment.CreatedAt, payment.CreatedBy)
	if err != nil {
		return fmt.Errorf("add credit payment: %w", err)
	}
	return nil
}

// UpdateCreditStatus actualiza el estado de crédito de la venta.
func (r *SaleRepo) UpdateCreditStatus(id, status string) error {
	query := `UPDATE sales SET credit_status = $2 WHERE id = $1`
	if _, err := r.q.Exec(context.Background(), query, id, status); err != nil {
		return fmt.Errorf("update credit status: %w", err)
	}
	return nil
}

// ListByBranch ventas de una sucursal, más recientes primero, con líneas y abonos.
func (r *SaleRepo) ListByBranch(branchID string, limit, offset int) ([]*entity.SaleTransaction, error) {
	ctx := context.Background()
	query := `
		SELECT id, receipt_number, branch_id, subtotal, discount, total,
			payment_method, credit_status, reversed, reversal_reason,
			price_override, override_reason, created_at, created_by
		FROM sales WHERE branch_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, branchID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var out []*entity.SaleTransaction
	for rows.Next() {
		var s entity.SaleTransaction
		if err := rows.Scan(
			&s.ID, &s.ReceiptNumber, &s.BranchID, &s.Subtotal, &s.Discount, &s.Total,
			&s.PaymentMethod, &s.CreditStatus, &s.Reversed, &s.ReversalReason,
			&s.PriceOverride, &s.OverrideReason, &s.CreatedAt, &s.CreatedBy,
		); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, s := range out {
		items, err := r.loadItems(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		s.Items = items
		payments, err := r.loadPayments(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		s.Payments = payments
	}
	return out, nil
}

func (r *SaleRepo) loadItems(ctx context.Context, saleID string) ([]entity.SaleItem, error) {
	query := `
		SELECT id, sale_id, product_id, quantity, unit_price
		FROM sale_items WHERE sale_id = $1`
	rows, err := r.q.Query(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("load sale items: %w", err)
	}
	defer rows.Close()

	var items []entity.SaleItem
	for rows.Next() {
		var it entity.SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *SaleRepo) loadPayments(ctx context.Context, saleID string) ([]entity.CreditPayment, error) {
	query := `
		SELECT id, sale_id, amount, method, created_at, created_by
		FROM credit_payments WHERE sale_id = $1
		ORDER BY created_at`
	rows, err := r.q.Query(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("load credit payments: %w", err)
	}
	defer rows.Close()

	var payments []entity.CreditPayment
	for rows.Next() {
		var p entity.CreditPayment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Amount, &p.Method, &p.CreatedAt, &p.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan credit payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
