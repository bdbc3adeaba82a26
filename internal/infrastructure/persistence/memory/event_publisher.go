package memory

import (
	"context"
	"sync"

	"github.com/Haleralex/marketbridge/internal/application/ports"
	"github.com/Haleralex/marketbridge/internal/domain/events"
)

var _ ports.EventPublisher = (*EventPublisher)(nil)

// EventPublisher пишет события в outbox хранилища; при откате транзакции
// они исчезают вместе с остальными изменениями.
type EventPublisher struct {
	store *Store
}

func (p *EventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.store.write(func(st *state) { st.outbox = append(st.outbox, event) })
	return nil
}

func (p *EventPublisher) PublishBatch(ctx context.Context, list []events.DomainEvent) error {
	p.store.write(func(st *state) { st.outbox = append(st.outbox, list...) })
	return nil
}

// Events возвращает все события в порядке публикации.
func (p *EventPublisher) Events() []events.DomainEvent {
	var out []events.DomainEvent
	p.store.read(func(st *state) { out = append(out, st.outbox...) })
	return out
}

// EventsOfType возвращает события указанного типа.
func (p *EventPublisher) EventsOfType(eventType string) []events.DomainEvent {
	var out []events.DomainEvent
	for _, e := range p.Events() {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// DeliveryGuard - in-memory ports.DeliveryGuard для dev-режима без Redis.
type DeliveryGuard struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

var _ ports.DeliveryGuard = (*DeliveryGuard)(nil)

// NewDeliveryGuard создаёт пустой guard.
func NewDeliveryGuard() *DeliveryGuard {
	return &DeliveryGuard{seen: make(map[string]struct{})}
}

func (g *DeliveryGuard) CheckAndMark(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[key]; ok {
		return true, nil
	}
	g.seen[key] = struct{}{}
	return false, nil
}

func (g *DeliveryGuard) Delete(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, key)
	return nil
}
