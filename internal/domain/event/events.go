package event

import "time"

// Tipos de eventos de dominio publicados por el motor.
const (
	TypeStockChanged          = "stock.changed"
	TypeLowStockCrossed       = "stock.low_threshold_crossed"
	TypeSaleCreated           = "sale.created"
	TypeSaleReversed          = "sale.reversed"
	TypePaymentRecorded       = "sale.payment_recorded"
	TypeTransferStatusChanged = "transfer.status_changed"
)

// Event carga útil publicada a los suscriptores (UI en tiempo real,
// invalidación de caché). Canal lateral: entrega best-effort, a lo sumo una
// vez, fuera de la frontera de consistencia.
type Event struct {
	Type      string
	BranchID  string
	ProductID string // vacío en eventos no ligados a un producto
	EntityID  string
	Timestamp time.Time
}

// Publisher puerto de publicación de eventos de dominio.
// La publicación nunca falla la operación que la origina.
type Publisher interface {
	Publish(evt Event)
}
