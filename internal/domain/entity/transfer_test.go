package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/mercaldo/pos-api/internal/domain/entity"
)

func TestTransferStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from entity.TransferStatus
		to   entity.TransferStatus
		want bool
	}{
		// Flujo feliz.
		{entity.TransferRequested, entity.TransferApproved, true},
		{entity.TransferApproved, entity.TransferPacked, true},
		{entity.TransferApproved, entity.TransferDispatched, true},
		{entity.TransferPacked, entity.TransferDispatched, true},
		{entity.TransferDispatched, entity.TransferReceived, true},
		{entity.TransferDispatched, entity.TransferReceivedWithDiscrepancy, true},

		// Cancelación solo antes del despacho.
		{entity.TransferRequested, entity.TransferCancelled, true},
		{entity.TransferApproved, entity.TransferCancelled, true},
		{entity.TransferPacked, entity.TransferCancelled, true},
		{entity.TransferDispatched, entity.TransferCancelled, false},
		{entity.TransferReceived, entity.TransferCancelled, false},

		// Sin saltos ni retrocesos.
		{entity.TransferRequested, entity.TransferDispatched, false},
		{entity.TransferRequested, entity.TransferPacked, false},
		{entity.TransferApproved, entity.TransferRequested, false},
		{entity.TransferPacked, entity.TransferReceived, false},
		{entity.TransferReceived, entity.TransferDispatched, false},
		{entity.TransferCancelled, entity.TransferRequested, false},
	}
	for _, tt := range tests {
		got := tt.from.CanTransitionTo(tt.to)
		assert.Equal(t, tt.want, got, "transición %s -> %s", tt.from, tt.to)
	}
}

func TestTransferStatus_Terminal(t *testing.T) {
	assert.False(t, entity.TransferRequested.Terminal())
	assert.False(t, entity.TransferApproved.Terminal())
	assert.False(t, entity.TransferPacked.Terminal())
	assert.False(t, entity.TransferDispatched.Terminal())

	assert.True(t, entity.TransferReceived.Terminal(), "RECEIVED es estado final")
	assert.True(t, entity.TransferReceivedWithDiscrepancy.Terminal(), "RECEIVED_WITH_DISCREPANCY es estado final")
	assert.True(t, entity.TransferCancelled.Terminal(), "CANCELLED es estado final")
}

func TestStockRecord_BelowThreshold(t *testing.T) {
	rec := entity.StockRecord{Quantity: 5, LowStockThreshold: 5}
	assert.True(t, rec.BelowThreshold(), "cantidad igual al umbral cuenta como stock bajo")

	rec.Quantity = 6
	assert.False(t, rec.BelowThreshold())

	rec = entity.StockRecord{Quantity: 0, LowStockThreshold: 0}
	assert.False(t, rec.BelowThreshold(), "umbral 0 desactiva la alerta")
}
