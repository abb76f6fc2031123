package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleItemRequest línea de venta. UnitPrice omitido o cero toma el precio de catálogo.
type SaleItemRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int64           `json:"quantity" validate:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateSaleRequest body para POST /api/sales.
type CreateSaleRequest struct {
	Items          []SaleItemRequest `json:"items" validate:"required,min=1"`
	PaymentMethod  string            `json:"payment_method" validate:"required,oneof=CASH MOBILE_MONEY CREDIT"`
	Discount       decimal.Decimal   `json:"discount"`
	PriceOverride  bool              `json:"price_override"`
	OverrideReason string            `json:"override_reason"`
}

// ReverseSaleRequest body para POST /api/sales/:id/reverse.
type ReverseSaleRequest struct {
	Reason string `json:"reason" validate:"required,min=1"`
}

// RecordPaymentRequest body para POST /api/sales/:id/payments.
type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Method string          `json:"method" validate:"required,oneof=CASH MOBILE_MONEY"`
}

// SaleItemResponse línea de venta en respuestas.
type SaleItemResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CreditPaymentResponse abono registrado sobre una venta a crédito.
type CreditPaymentResponse struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaleResponse salida de una venta.
type SaleResponse struct {
	ID             string                  `json:"id"`
	ReceiptNumber  string                  `json:"receipt_number"`
	BranchID       string                  `json:"branch_id"`
	Items          []SaleItemResponse      `json:"items"`
	Subtotal       decimal.Decimal         `json:"subtotal"`
	Discount       decimal.Decimal         `json:"discount"`
	Total          decimal.Decimal         `json:"total"`
	PaymentMethod  string                  `json:"payment_method"`
	CreditStatus   string                  `json:"credit_status,omitempty"`
	PaidAmount     decimal.Decimal         `json:"paid_amount"`
	Payments       []CreditPaymentResponse `json:"payments,omitempty"`
	Reversed       bool                    `json:"reversed"`
	ReversalReason string                  `json:"reversal_reason,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
}
