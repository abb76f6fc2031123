package repository

import "github.com/mercaldo/pos-api/internal/domain/entity"

// SaleRepository puerto de persistencia de ventas, líneas y abonos.
type SaleRepository interface {
	// Create persiste la venta con sus líneas (una operación lógica).
	Create(sale *entity.SaleTransaction) error
	// GetByID devuelve la venta con líneas y abonos, o nil si no existe.
	GetByID(id string) (*entity.SaleTransaction, error)
	// MarkReversed marca la venta como anulada solo si no lo estaba.
	// Devuelve false si ya estaba anulada (guardia de idempotencia a nivel fila).
	MarkReversed(id, reason string) (bool, error)
	// UnmarkReversed deshace la marca de anulación (compensación de saga).
	UnmarkReversed(id string) error
	AddPayment(payment *entity.CreditPayment) error
	UpdateCreditStatus(id, status string) error
	ListByBranch(branchID string, limit, offset int) ([]*entity.SaleTransaction, error)
}
