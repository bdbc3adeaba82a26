// Package memory - in-memory реализация всех repository портов.
//
// Используется в тестах use case'ов и в dev-режиме без PostgreSQL.
// Сущности хранятся копиями: изменения загруженного объекта не видны,
// пока не вызван Save. UnitOfWork делает snapshot состояния и
// восстанавливает его при ошибке, поэтому откат ведёт себя как в БД.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/domain/entities"
	"github.com/Haleralex/marketbridge/internal/domain/events"
)

type state struct {
	users        map[uuid.UUID]entities.User
	customers    map[uuid.UUID]entities.Customer
	factories    map[uuid.UUID]entities.Factory
	matches      map[uuid.UUID]entities.Match
	orders       map[uuid.UUID]entities.Order
	transactions map[uuid.UUID]entities.Transaction
	txOrder      []uuid.UUID // порядок вставки записей ledger'а
	outbox       []events.DomainEvent
}

func newState() state {
	return state{
		users:        make(map[uuid.UUID]entities.User),
		customers:    make(map[uuid.UUID]entities.Customer),
		factories:    make(map[uuid.UUID]entities.Factory),
		matches:      make(map[uuid.UUID]entities.Match),
		orders:       make(map[uuid.UUID]entities.Order),
		transactions: make(map[uuid.UUID]entities.Transaction),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.factories {
		c.factories[k] = v
	}
	for k, v := range s.matches {
		c.matches[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	c.txOrder = append([]uuid.UUID(nil), s.txOrder...)
	c.outbox = append([]events.DomainEvent(nil), s.outbox...)
	return c
}

// Store - общее хранилище для всех in-memory репозиториев.
type Store struct {
	mu    sync.RWMutex
	txMu  sync.Mutex // транзакции выполняются последовательно
	state state
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{state: newState()}
}

func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.state)
}

func (s *Store) write(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

func (s *Store) snapshot() state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Store) restore(st state) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// Users возвращает репозиторий пользователей.
func (s *Store) Users() *UserRepository { return &UserRepository{store: s} }

// Customers возвращает репозиторий покупателей.
func (s *Store) Customers() *CustomerRepository { return &CustomerRepository{store: s} }

// Factories возвращает репозиторий продавцов.
func (s *Store) Factories() *FactoryRepository { return &FactoryRepository{store: s} }

// Matches возвращает репозиторий товаров.
func (s *Store) Matches() *MatchRepository { return &MatchRepository{store: s} }

// Orders возвращает репозиторий заказов.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{store: s} }

// Transactions возвращает репозиторий записей ledger'а.
func (s *Store) Transactions() *TransactionRepository { return &TransactionRepository{store: s} }

// Publisher возвращает EventPublisher, который пишет в outbox хранилища.
func (s *Store) Publisher() *EventPublisher { return &EventPublisher{store: s} }

// UnitOfWork возвращает UnitOfWork поверх хранилища.
func (s *Store) UnitOfWork() *UnitOfWork { return &UnitOfWork{store: s} }
