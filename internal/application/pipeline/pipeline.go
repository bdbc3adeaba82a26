// Package pipeline содержит декораторы для command handlers.
//
// Каждый command use case оборачивается в контейнере:
//
//	Traced → Logged → Validated → Transactional → use case
//
// Transactional - явная граница транзакции (withTransaction): открывает
// транзакцию хранилища, выполняет handler, делает COMMIT или ROLLBACK.
// Query use cases не оборачиваются.
package pipeline

import (
	"context"
	"reflect"
)

// Handler - use case с одной командой и одним результатом.
// Одному типу команды соответствует ровно один handler.
type Handler[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

// HandlerFunc позволяет использовать функцию как Handler.
type HandlerFunc[C any, R any] func(ctx context.Context, cmd C) (R, error)

// Execute вызывает f(ctx, cmd).
func (f HandlerFunc[C, R]) Execute(ctx context.Context, cmd C) (R, error) {
	return f(ctx, cmd)
}

// CommandName возвращает имя типа команды, например "CreateOrderCommand".
func CommandName[C any]() string {
	t := reflect.TypeOf((*C)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}
