package entity

import "time"

// TransferStatus estado del flujo de traslado entre sucursales.
type TransferStatus string

// Estados del traslado. El flujo avanza de forma monotónica:
// REQUESTED -> APPROVED -> PACKED -> DISPATCHED -> RECEIVED | RECEIVED_WITH_DISCREPANCY.
// CANCELLED solo es alcanzable antes del despacho: una vez la mercancía salió
// de la sucursal origen el traslado no se cancela, se recibe con discrepancia.
const (
	TransferRequested               TransferStatus = "REQUESTED"
	TransferApproved                TransferStatus = "APPROVED"
	TransferPacked                  TransferStatus = "PACKED"
	TransferDispatched              TransferStatus = "DISPATCHED"
	TransferReceived                TransferStatus = "RECEIVED"
	TransferReceivedWithDiscrepancy TransferStatus = "RECEIVED_WITH_DISCREPANCY"
	TransferCancelled               TransferStatus = "CANCELLED"
)

// transferTransitions tabla de transiciones permitidas.
var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferRequested:  {TransferApproved, TransferCancelled},
	TransferApproved:   {TransferPacked, TransferDispatched, TransferCancelled},
	TransferPacked:     {TransferDispatched, TransferCancelled},
	TransferDispatched: {TransferReceived, TransferReceivedWithDiscrepancy},
}

// CanTransitionTo indica si la transición de estado está permitida.
func (s TransferStatus) CanTransitionTo(to TransferStatus) bool {
	for _, next := range transferTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal indica si el estado no admite más transiciones.
func (s TransferStatus) Terminal() bool {
	return len(transferTransitions[s]) == 0
}

// TransferItem línea de un traslado.
// Invariantes: QuantityApproved <= QuantityRequested;
// QuantityDispatched = QuantityApproved una vez despachado;
// QuantityReceived <= QuantityDispatched.
type TransferItem struct {
	ID                 string
	TransferID         string
	ProductID          string
	QuantityRequested  int64
	QuantityApproved   int64
	QuantityDispatched int64
	QuantityReceived   int64
}

// Transfer traslado de stock entre dos sucursales distintas.
// Entre despacho y recepción el stock no figura en ninguno de los dos libros:
// está en tránsito y no se cuenta doble.
type Transfer struct {
	ID               string
	FromBranchID     string
	ToBranchID       string
	Status           TransferStatus
	Items            []TransferItem
	Notes            string
	DiscrepancyNotes string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CreatedBy        string
}
