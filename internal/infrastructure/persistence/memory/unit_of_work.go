package memory

import (
	"context"

	"github.com/Haleralex/marketbridge/internal/application/ports"
)

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

type txKey struct{}

// UnitOfWork сериализует транзакции и откатывает состояние при ошибке или panic.
type UnitOfWork struct {
	store *Store
}

// Execute выполняет fn внутри транзакции. Вложенный вызов переиспользует внешнюю.
func (u *UnitOfWork) Execute(ctx context.Context, fn func(context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	u.store.txMu.Lock()
	defer u.store.txMu.Unlock()

	snap := u.store.snapshot()
	defer func() {
		if r := recover(); r != nil {
			u.store.restore(snap)
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		u.store.restore(snap)
		return err
	}
	return nil
}

// ExecuteWithRetry - в памяти нет transient ошибок, выполняется один раз.
func (u *UnitOfWork) ExecuteWithRetry(ctx context.Context, _ int, fn func(context.Context) error) error {
	return u.Execute(ctx, fn)
}
