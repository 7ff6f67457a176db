package repository

import (
	"context"

	"github.com/wandermap/subscription-service/internal/domain"
)

// SubscriptionStore определяет методы для работы с хранилищем подписок.
// Хранилище отображает идентификатор пользователя в ровно одну запись
// подписки; Put всегда заменяет запись целиком. Запросов сложнее
// точечного поиска по ключу не требуется.
type SubscriptionStore interface {
	// Get возвращает подписку пользователя или ErrNotFound, если записи нет.
	// Ошибка чтения носителя возвращается как StorageError, а не как
	// отсутствие записи.
	Get(ctx context.Context, userID string) (*domain.Subscription, error)

	// Put сохраняет подписку пользователя, полностью заменяя предыдущую запись.
	Put(ctx context.Context, userID string, sub *domain.Subscription) error
}
