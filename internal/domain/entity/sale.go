package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Métodos de pago aceptados en punto de venta.
const (
	PaymentCash        = "CASH"
	PaymentMobileMoney = "MOBILE_MONEY"
	PaymentCredit      = "CREDIT"
)

// Estados de crédito de una venta (solo ventas CREDIT; vacío en contado).
const (
	CreditPending = "PENDING"
	CreditPartial = "PARTIAL"
	CreditPaid    = "PAID"
)

// ValidPaymentMethod indica si el método de pago es uno de los aceptados.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentMobileMoney, PaymentCredit:
		return true
	}
	return false
}

// SaleItem línea de una venta.
type SaleItem struct {
	ID        string
	SaleID    string
	ProductID string
	Quantity  int64
	UnitPrice decimal.Decimal
}

// Subtotal de la línea (cantidad * precio unitario).
func (i SaleItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

// CreditPayment abono a una venta a crédito.
// Invariante: la suma de abonos de una venta nunca excede su total.
type CreditPayment struct {
	ID        string
	SaleID    string
	Amount    decimal.Decimal
	Method    string // CASH o MOBILE_MONEY
	CreatedAt time.Time
	CreatedBy string
}

// SaleTransaction venta de punto de venta con sus líneas y abonos.
// Invariantes: Total = Subtotal - Discount; el stock se descuenta al crear la
// venta sin importar el método de pago (en crédito la mercancía sale del
// estante al momento de la venta, política de negocio deliberada); la venta
// puede anularse exactamente una vez.
type SaleTransaction struct {
	ID             string
	ReceiptNumber  string // identificador de recibo único
	BranchID       string
	Items          []SaleItem
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	PaymentMethod  string
	CreditStatus   string // PENDING | PARTIAL | PAID; vacío si no es crédito
	Payments       []CreditPayment
	Reversed       bool
	ReversalReason string
	PriceOverride  bool   // venta con precios por debajo del piso, autorizada
	OverrideReason string // justificación obligatoria del override
	CreatedAt      time.Time
	CreatedBy      string
}

// PaidAmount suma de los abonos registrados.
func (s *SaleTransaction) PaidAmount() decimal.Decimal {
	paid := decimal.Zero
	for _, p := range s.Payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

// CreditStatusFor es la función pura que determina el estado de crédito:
// 0 -> PENDING, 0 < pagado < total -> PARTIAL, pagado >= total -> PAID.
func CreditStatusFor(paid, total decimal.Decimal) string {
	switch {
	case paid.LessThanOrEqual(decimal.Zero):
		return CreditPending
	case paid.LessThan(total):
		return CreditPartial
	default:
		return CreditPaid
	}
}
