package repository

import "github.com/mercaldo/pos-api/internal/domain/entity"

// TransferRepository puerto de persistencia de traslados entre sucursales.
type TransferRepository interface {
	// Create persiste el traslado con sus líneas.
	Create(t *entity.Transfer) error
	// GetByID devuelve el traslado con líneas, o nil si no existe.
	GetByID(id string) (*entity.Transfer, error)
	// UpdateStatusCAS cambia el estado solo si el actual es from. Devuelve false
	// si ninguna fila cambió (otro actor movió el flujo primero).
	UpdateStatusCAS(id string, from, to entity.TransferStatus) (bool, error)
	// UpdateItems actualiza las cantidades aprobadas/despachadas/recibidas de las líneas.
	UpdateItems(id string, items []entity.TransferItem) error
	SetDiscrepancyNotes(id, notes string) error
	// ListByBranch traslados donde la sucursal es origen o destino.
	ListByBranch(branchID string, limit, offset int) ([]*entity.Transfer, error)
}
