// Package ports определяет интерфейсы (порты) для внешних зависимостей.
// Эти интерфейсы реализуются в Infrastructure Layer.
//
// Pattern: Repository Pattern + Ports & Adapters (Hexagonal Architecture)
//
// Все Find* методы исключают soft-deleted записи и возвращают
// errors.ErrNotFound (через DomainError), если запись не найдена.
package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/domain/entities"
)

// UserRepository хранит держателей кошельков.
// Баланс меняет только ledger (Transaction Service).
type UserRepository interface {
	// Save сохраняет пользователя (create or update, upsert по ID).
	Save(ctx context.Context, user *entities.User) error

	// FindByID загружает пользователя по ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entities.User, error)

	// FindByIDForUpdate загружает пользователя и блокирует строку до конца
	// текущей транзакции (SELECT ... FOR UPDATE). Вне транзакции ведёт себя как FindByID.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.User, error)
}

// CustomerRepository хранит профили покупателей.
type CustomerRepository interface {
	Save(ctx context.Context, customer *entities.Customer) error
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Customer, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entities.Customer, error)
}

// FactoryRepository хранит профили продавцов.
type FactoryRepository interface {
	Save(ctx context.Context, factory *entities.Factory) error
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Factory, error)
}

// MatchRepository хранит каталог товаров.
type MatchRepository interface {
	Save(ctx context.Context, match *entities.Match) error
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Match, error)

	// FindByIDForUpdate блокирует строку товара для изменения остатка.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Match, error)

	// SoftDelete убирает товар из каталога. Заказы со ссылкой на него сохраняются.
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// OrderRepository хранит заказы вместе с позициями (Aggregate Root).
type OrderRepository interface {
	// Save сохраняет заказ. Позиции вставляются один раз при создании
	// и дальше не меняются.
	Save(ctx context.Context, order *entities.Order) error

	FindByID(ctx context.Context, id uuid.UUID) (*entities.Order, error)

	// FindByIDForUpdate блокирует строку заказа, сериализуя конкурентные
	// отмены и обработку webhook'ов по одному заказу.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Order, error)

	// ListByCustomer возвращает заказы покупателя (новые первыми) и общее количество.
	ListByCustomer(ctx context.Context, customerID uuid.UUID, offset, limit int) ([]*entities.Order, int, error)

	// SoftDelete выставляет is_deleted = true и обновляет modified_at.
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// TransactionRepository хранит записи ledger'а.
type TransactionRepository interface {
	// Save сохраняет запись (insert или обновление статуса/суммы для Pending).
	Save(ctx context.Context, tx *entities.Transaction) error

	FindByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error)

	// FindByUser возвращает записи, где пользователь отправитель или получатель.
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Transaction, error)

	// FindByOrder возвращает все записи с указанным order id.
	// Пустой результат не является ошибкой.
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*entities.Transaction, error)
}
