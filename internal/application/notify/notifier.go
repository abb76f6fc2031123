// Package notify implementa el publicador de eventos de dominio en proceso.
// Entrega fire-and-forget, a lo sumo una vez: un suscriptor lento o caído
// jamás bloquea ni revierte la mutación de stock que originó el evento.
package notify

import (
	"sync"

	"github.com/mercaldo/pos-api/internal/domain/event"
	"github.com/mercaldo/pos-api/pkg/logger"
)

// Subscriber función invocada por cada evento entregado.
type Subscriber func(evt event.Event)

// Notifier registro de suscriptores por tipo de evento.
type Notifier struct {
	mu   sync.RWMutex
	subs map[string][]Subscriber
	all  []Subscriber
	log  *logger.Logger
}

var _ event.Publisher = (*Notifier)(nil)

// New construye el notificador.
func New(log *logger.Logger) *Notifier {
	return &Notifier{
		subs: make(map[string][]Subscriber),
		log:  log,
	}
}

// Subscribe registra un suscriptor para un tipo de evento concreto.
func (n *Notifier) Subscribe(eventType string, fn Subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs[eventType] = append(n.subs[eventType], fn)
}

// SubscribeAll registra un suscriptor para todos los eventos.
func (n *Notifier) SubscribeAll(fn Subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.all = append(n.all, fn)
}

// Publish entrega el evento a los suscriptores registrados, cada uno en su
// goroutine. Un pánico del suscriptor se registra y se descarta; no hay
// reintentos ni garantía de entrega.
func (n *Notifier) Publish(evt event.Event) {
	n.mu.RLock()
	targets := make([]Subscriber, 0, len(n.all)+len(n.subs[evt.Type]))
	targets = append(targets, n.all...)
	targets = append(targets, n.subs[evt.Type]...)
	n.mu.RUnlock()

	for _, fn := range targets {
		go n.deliver(fn, evt)
	}
}

func (n *Notifier) deliver(fn Subscriber, evt event.Event) {
	defer func() {
		if r := recover(); r != nil && n.log != nil {
			n.log.Warn().
				Str("event_type", evt.Type).
				Str("entity_id", evt.EntityID).
				Interface("panic", r).
				Msg("suscriptor de eventos en pánico, evento descartado")
		}
	}()
	fn(evt)
}
