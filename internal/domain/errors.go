package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias de infraestructura).
// Los errores con detalle (producto, faltante, piso de precio) se modelan como
// structs que envuelven estos centinelas vía Unwrap, para que la capa de
// transporte pueda armar mensajes accionables con errors.As sin perder errors.Is.
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
	ErrUserNotFound       = errors.New("usuario no encontrado")

	// ErrConflict: la versión observada ya no es la actual. Transitorio;
	// el caller debe releer y reintentar.
	ErrConflict = errors.New("conflicto de versión en stock")
	// ErrInsufficientStock: la mutación dejaría la cantidad en negativo. Permanente
	// para el estado actual; no se reintenta sin stock nuevo.
	ErrInsufficientStock = errors.New("stock insuficiente")
	// ErrPriceViolation: precio unitario por debajo del piso configurado del producto.
	ErrPriceViolation = errors.New("precio por debajo del mínimo permitido")
	// ErrOverpayment: el abono excede el saldo pendiente de la venta a crédito.
	ErrOverpayment = errors.New("el pago excede el total de la venta")
	// ErrAlreadyReversed: guardia de idempotencia de anulación de ventas.
	ErrAlreadyReversed = errors.New("la venta ya fue anulada")
	// ErrInvalidTransition: uso indebido del flujo de traslados.
	ErrInvalidTransition = errors.New("transición de estado inválida")
)

// ConflictError detalla un choque de versiones sobre un registro de stock.
type ConflictError struct {
	ProductID       string
	BranchID        string
	ExpectedVersion int64
	ActualVersion   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicto de versión en stock %s@%s: esperada %d, actual %d",
		e.ProductID, e.BranchID, e.ExpectedVersion, e.ActualVersion)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InsufficientStockError detalla producto, sucursal y faltante.
type InsufficientStockError struct {
	ProductID string
	BranchID  string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente de %s en sucursal %s: solicitado %d, disponible %d",
		e.ProductID, e.BranchID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Shortfall devuelve cuántas unidades faltan para cubrir la solicitud.
func (e *InsufficientStockError) Shortfall() int64 { return e.Requested - e.Available }

// PriceViolationError detalla el producto y el piso de precio violado.
type PriceViolationError struct {
	ProductID string
	UnitPrice decimal.Decimal
	MinPrice  decimal.Decimal
}

func (e *PriceViolationError) Error() string {
	return fmt.Sprintf("precio %s del producto %s por debajo del mínimo %s",
		e.UnitPrice.StringFixed(2), e.ProductID, e.MinPrice.StringFixed(2))
}

func (e *PriceViolationError) Unwrap() error { return ErrPriceViolation }

// OverpaymentError detalla el abono rechazado y el saldo restante.
type OverpaymentError struct {
	SaleID    string
	Attempted decimal.Decimal
	Remaining decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("abono de %s a la venta %s excede el saldo pendiente de %s",
		e.Attempted.StringFixed(2), e.SaleID, e.Remaining.StringFixed(2))
}

func (e *OverpaymentError) Unwrap() error { return ErrOverpayment }

// AlreadyReversedError identifica la venta ya anulada.
type AlreadyReversedError struct {
	SaleID string
}

func (e *AlreadyReversedError) Error() string {
	return fmt.Sprintf("la venta %s ya fue anulada", e.SaleID)
}

func (e *AlreadyReversedError) Unwrap() error { return ErrAlreadyReversed }

// InvalidTransitionError detalla la transición rechazada del flujo de traslados.
type InvalidTransitionError struct {
	TransferID string
	From       string
	To         string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("traslado %s: transición inválida %s -> %s", e.TransferID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }
