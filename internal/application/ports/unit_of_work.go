// Package ports - UnitOfWork паттерн для управления транзакциями.
//
// Pattern: Unit of Work
// - Обеспечивает атомарность операций
// - Один UnitOfWork = одна БД-транзакция
// - Автоматический rollback при ошибке
package ports

import "context"

// UnitOfWork определяет контракт для управления транзакциями.
//
// Пример использования:
//
//	err := uow.Execute(ctx, func(txCtx context.Context) error {
//	    order, err := orderRepo.FindByIDForUpdate(txCtx, orderID)
//	    if err != nil {
//	        return err // Автоматический rollback
//	    }
//	    order.Cancel(reason)
//	    return orderRepo.Save(txCtx, order)
//	})
type UnitOfWork interface {
	// Execute выполняет функцию внутри транзакции.
	//
	// - Если fn возвращает error: ROLLBACK
	// - Если fn возвращает nil: COMMIT
	// - Если в ctx уже есть транзакция, fn выполняется в ней (nested call)
	//
	// Все операции внутри fn должны использовать переданный context!
	Execute(ctx context.Context, fn func(context.Context) error) error

	// ExecuteWithRetry повторяет всю транзакцию при transient ошибках
	// хранилища (serialization failure, deadlock, обрыв соединения).
	// maxRetries: максимальное количество повторов (0 = без retry).
	ExecuteWithRetry(ctx context.Context, maxRetries int, fn func(context.Context) error) error
}
