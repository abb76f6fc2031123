package entity

import "time"

// AuditAction etiqueta enumerada de la operación auditada.
type AuditAction string

const (
	// Mutaciones de stock (toda mutación pasa por el libro de stock).
	AuditStockSaleOut      AuditAction = "STOCK_SALE_OUT"
	AuditStockSaleRestore  AuditAction = "STOCK_SALE_RESTORE"
	AuditStockTransferOut  AuditAction = "STOCK_TRANSFER_OUT"
	AuditStockTransferIn   AuditAction = "STOCK_TRANSFER_IN"
	AuditStockManualAdjust AuditAction = "STOCK_MANUAL_ADJUST"
	AuditStockCompensation AuditAction = "STOCK_COMPENSATION"

	// Operaciones de negocio.
	AuditSaleCreate       AuditAction = "SALE_CREATE"
	AuditSaleReverse      AuditAction = "SALE_REVERSE"
	AuditSaleReverseUndo  AuditAction = "SALE_REVERSE_UNDO"
	AuditPaymentRecord    AuditAction = "PAYMENT_RECORD"
	AuditTransferRequest  AuditAction = "TRANSFER_REQUEST"
	AuditTransferApprove  AuditAction = "TRANSFER_APPROVE"
	AuditTransferPack     AuditAction = "TRANSFER_PACK"
	AuditTransferDispatch AuditAction = "TRANSFER_DISPATCH"
	AuditTransferReceive  AuditAction = "TRANSFER_RECEIVE"
	AuditTransferCancel   AuditAction = "TRANSFER_CANCEL"
)

// AuditEntry registro inmutable de una operación mutante, con fotos del antes
// y el después en JSON. Solo se agrega, nunca se modifica ni se borra.
// Referencia a la entidad por id (referencia débil, no ownership).
type AuditEntry struct {
	ID         string
	ActorID    string
	Action     AuditAction
	EntityType string // stock_record, sale, transfer
	EntityID   string
	BeforeData string // JSON; "null" si no aplica
	AfterData  string // JSON; "null" si no aplica
	CreatedAt  time.Time
}
