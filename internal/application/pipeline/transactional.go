package pipeline

import (
	"context"

	"github.com/Haleralex/marketbridge/internal/application/ports"
)

type txOptions struct {
	maxRetries int
}

// TxOption настраивает Transactional.
type TxOption func(*txOptions)

// RetryTransient повторяет handler целиком в новой транзакции при
// serialization failure / deadlock, максимум n раз.
func RetryTransient(n int) TxOption {
	return func(o *txOptions) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

// Transactional выполняет handler внутри транзакции UnitOfWork.
// Ошибка handler'а откатывает все изменения, включая записи outbox.
func Transactional[C any, R any](uow ports.UnitOfWork, next Handler[C, R], opts ...TxOption) Handler[C, R] {
	o := txOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	return HandlerFunc[C, R](func(ctx context.Context, cmd C) (R, error) {
		var result R
		run := func(txCtx context.Context) error {
			r, err := next.Execute(txCtx, cmd)
			if err != nil {
				return err
			}
			result = r
			return nil
		}

		var err error
		if o.maxRetries > 0 {
			err = uow.ExecuteWithRetry(ctx, o.maxRetries, run)
		} else {
			err = uow.Execute(ctx, run)
		}
		if err != nil {
			var zero R
			return zero, err
		}
		return result, nil
	})
}
