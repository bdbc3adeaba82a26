package ports

import "context"

// DeliveryGuard отсекает повторные доставки внешних уведомлений
// (webhook платёжного шлюза доставляется at-least-once).
type DeliveryGuard interface {
	// CheckAndMark атомарно помечает ключ как обработанный.
	// Возвращает true, если ключ уже был помечен ранее.
	CheckAndMark(ctx context.Context, key string) (alreadyProcessed bool, err error)

	// Delete снимает отметку, чтобы повторная доставка могла быть обработана
	// (используется, когда обработка завершилась ошибкой).
	Delete(ctx context.Context, key string) error
}
