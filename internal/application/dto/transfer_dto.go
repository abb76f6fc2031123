package dto

import "time"

// TransferItemRequest línea solicitada en un traslado.
type TransferItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,min=1"`
}

// CreateTransferRequest body para POST /api/transfers.
type CreateTransferRequest struct {
	FromBranchID string                `json:"from_branch_id" validate:"required"`
	ToBranchID   string                `json:"to_branch_id" validate:"required"`
	Notes        string                `json:"notes"`
	Items        []TransferItemRequest `json:"items" validate:"required,min=1"`
}

// ApproveTransferRequest body para POST /api/transfers/:id/approve.
// Items omitidos quedan aprobados por lo solicitado.
type ApproveTransferRequest struct {
	Items []TransferItemRequest `json:"items"`
}

// ReceiveTransferRequest body para POST /api/transfers/:id/receive.
// Items omitidos quedan recibidos por lo despachado.
type ReceiveTransferRequest struct {
	Items            []TransferItemRequest `json:"items"`
	DiscrepancyNotes string                `json:"discrepancy_notes"`
}

// CancelTransferRequest body para POST /api/transfers/:id/cancel.
type CancelTransferRequest struct {
	Reason string `json:"reason"`
}

// TransferItemResponse línea de traslado en respuestas.
type TransferItemResponse struct {
	ProductID          string `json:"product_id"`
	QuantityRequested  int64  `json:"quantity_requested"`
	QuantityApproved   int64  `json:"quantity_approved"`
	QuantityDispatched int64  `json:"quantity_dispatched"`
	QuantityReceived   int64  `json:"quantity_received"`
}

// TransferResponse salida de un traslado.
type TransferResponse struct {
	ID               string                 `json:"id"`
	FromBranchID     string                 `json:"from_branch_id"`
	ToBranchID       string                 `json:"to_branch_id"`
	Status           string                 `json:"status"`
	Items            []TransferItemResponse `json:"items"`
	Notes            string                 `json:"notes,omitempty"`
	DiscrepancyNotes string                 `json:"discrepancy_notes,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}
