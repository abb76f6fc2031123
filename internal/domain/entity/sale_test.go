package entity_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/mercaldo/pos-api/internal/domain/entity"
)

func TestCreditStatusFor(t *testing.T) {
	total := decimal.NewFromInt(1000)

	tests := []struct {
		name string
		paid decimal.Decimal
		want string
	}{
		{"sin abonos", decimal.Zero, entity.CreditPending},
		{"abono parcial", decimal.NewFromInt(400), entity.CreditPartial},
		{"un peso antes del total", decimal.NewFromInt(999), entity.CreditPartial},
		{"pagado exacto", decimal.NewFromInt(1000), entity.CreditPaid},
		{"pagado de más", decimal.NewFromInt(1001), entity.CreditPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := entity.CreditStatusFor(tt.paid, total)
			assert.Equal(t, tt.want, got, "estado de crédito para pagado=%s total=%s", tt.paid, total)
		})
	}
}

func TestSaleItem_Subtotal(t *testing.T) {
	item := entity.SaleItem{
		Quantity:  3,
		UnitPrice: decimal.NewFromFloat(2500.50),
	}
	assert.True(t, item.Subtotal().Equal(decimal.NewFromFloat(7501.50)),
		"el subtotal debe ser cantidad por precio unitario, obtenido %s", item.Subtotal())
}

func TestSaleTransaction_PaidAmount(t *testing.T) {
	sale := entity.SaleTransaction{
		Payments: []entity.CreditPayment{
			{Amount: decimal.NewFromInt(400)},
			{Amount: decimal.NewFromInt(250)},
		},
	}
	assert.True(t, sale.PaidAmount().Equal(decimal.NewFromInt(650)),
		"PaidAmount debe sumar todos los abonos")

	var empty entity.SaleTransaction
	assert.True(t, empty.PaidAmount().IsZero(), "sin abonos el pagado es cero")
}

func TestValidPaymentMethod(t *testing.T) {
	assert.True(t, entity.ValidPaymentMethod(entity.PaymentCash))
	assert.True(t, entity.ValidPaymentMethod(entity.PaymentMobileMoney))
	assert.True(t, entity.ValidPaymentMethod(entity.PaymentCredit))
	assert.False(t, entity.ValidPaymentMethod("CHEQUE"), "método no listado debe rechazarse")
	assert.False(t, entity.ValidPaymentMethod(""), "método vacío debe rechazarse")
}
