package http

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/mercaldo/pos-api/internal/application/dto"
	"github.com/mercaldo/pos-api/internal/domain"
)

// respondError traduce errores de dominio a respuestas HTTP. Los errores con
// detalle (conflicto, stock insuficiente, sobrepago, transición inválida)
// producen mensajes accionables; el resto cae en los sentinelas.
func respondError(c *fiber.Ctx, err error) error {
	var (
		conflictErr   *domain.ConflictError
		stockErr      *domain.InsufficientStockError
		priceErr      *domain.PriceViolationError
		overpayErr    *domain.OverpaymentError
		reversedErr   *domain.AlreadyReversedError
		transitionErr *domain.InvalidTransitionError
	)

	switch {
	case errors.As(err, &stockErr):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code: "INSUFFICIENT_STOCK",
			Message: fmt.Sprintf("stock insuficiente para el producto %s: solicitado %d, disponible %d",
				stockErr.ProductID, stockErr.Requested, stockErr.Available),
		})
	case errors.As(err, &conflictErr):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code:    "VERSION_CONFLICT",
			Message: "el registro fue modificado por otra operación, reintente",
		})
	case errors.As(err, &priceErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Code: "PRICE_BELOW_MINIMUM",
			Message: fmt.Sprintf("precio %s por debajo del piso %s para el producto %s (requiere override autorizado)",
				priceErr.UnitPrice.StringFixed(2), priceErr.MinPrice.StringFixed(2), priceErr.ProductID),
		})
	case errors.As(err, &overpayErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Code: "OVERPAYMENT",
			Message: fmt.Sprintf("el abono de %s excede el saldo pendiente de %s",
				overpayErr.Attempted.StringFixed(2), overpayErr.Remaining.StringFixed(2)),
		})
	case errors.As(err, &reversedErr):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code:    "ALREADY_REVERSED",
			Message: "la venta ya fue anulada",
		})
	case errors.As(err, &transitionErr):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code: "INVALID_TRANSITION",
			Message: fmt.Sprintf("transición de estado no permitida: %s -> %s",
				transitionErr.From, transitionErr.To),
		})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "recurso no encontrado"})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: "el recurso ya existe"})
	case errors.Is(err, domain.ErrEmailAlreadyExists):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "EMAIL_EXISTS", Message: "el email ya está registrado"})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "credenciales inválidas"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado al recurso"})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: "conflicto de concurrencia, reintente"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
