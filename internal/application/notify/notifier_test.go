package notify_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mercaldo/pos-api/internal/application/notify"
	"github.com/mercaldo/pos-api/internal/domain/event"
	"github.com/mercaldo/pos-api/pkg/logger"
)

func waitEvent(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("el suscriptor no recibió el evento a tiempo")
		return event.Event{}
	}
}

func assertNoEvent(t *testing.T, ch <-chan event.Event) {
	t.Helper()
	select {
	case evt := <-ch:
		t.Fatalf("el suscriptor no debía recibir eventos, recibió %q", evt.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotifier_EntregaPorTipo(t *testing.T) {
	n := notify.New(logger.Nop())

	stockCh := make(chan event.Event, 1)
	saleCh := make(chan event.Event, 1)
	n.Subscribe(event.TypeStockChanged, func(evt event.Event) { stockCh <- evt })
	n.Subscribe(event.TypeSaleCreated, func(evt event.Event) { saleCh <- evt })

	n.Publish(event.Event{Type: event.TypeStockChanged, BranchID: "suc-1", EntityID: "p1@suc-1"})

	got := waitEvent(t, stockCh)
	assert.Equal(t, event.TypeStockChanged, got.Type)
	assert.Equal(t, "suc-1", got.BranchID)
	assertNoEvent(t, saleCh)
}

func TestNotifier_SubscribeAll(t *testing.T) {
	n := notify.New(logger.Nop())

	allCh := make(chan event.Event, 2)
	n.SubscribeAll(func(evt event.Event) { allCh <- evt })

	n.Publish(event.Event{Type: event.TypeSaleCreated, EntityID: "v1"})
	n.Publish(event.Event{Type: event.TypeTransferStatusChanged, EntityID: "t1"})

	seen := map[string]bool{}
	seen[waitEvent(t, allCh).Type] = true
	seen[waitEvent(t, allCh).Type] = true
	assert.True(t, seen[event.TypeSaleCreated], "el suscriptor global recibe todos los tipos")
	assert.True(t, seen[event.TypeTransferStatusChanged], "el suscriptor global recibe todos los tipos")
}

func TestNotifier_PanicDeSuscriptorNoAfectaAlResto(t *testing.T) {
	n := notify.New(logger.Nop())

	okCh := make(chan event.Event, 1)
	n.Subscribe(event.TypeStockChanged, func(event.Event) { panic("suscriptor roto") })
	n.Subscribe(event.TypeStockChanged, func(evt event.Event) { okCh <- evt })

	require.NotPanics(t, func() {
		n.Publish(event.Event{Type: event.TypeStockChanged, EntityID: "p1@suc-1"})
	}, "Publish nunca propaga el pánico de un suscriptor")

	got := waitEvent(t, okCh)
	assert.Equal(t, "p1@suc-1", got.EntityID, "los demás suscriptores siguen recibiendo")
}

func TestNotifier_SinSuscriptoresNoBloquea(t *testing.T) {
	n := notify.New(logger.Nop())
	assert.NotPanics(t, func() {
		n.Publish(event.Event{Type: event.TypeSaleReversed, EntityID: "v9"})
	})
}
