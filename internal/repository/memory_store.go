package repository

import (
	"context"
	"sync"

	"github.com/wandermap/subscription-service/internal/domain"
	"github.com/wandermap/subscription-service/pkg/logger"
)

// InMemorySubscriptionStore реализация хранилища подписок в памяти
type InMemorySubscriptionStore struct {
	subscriptions map[string]*domain.Subscription
	mutex         sync.RWMutex
	log           *logger.Logger
}

// NewInMemorySubscriptionStore создает новое хранилище подписок в памяти
func NewInMemorySubscriptionStore(log *logger.Logger) *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		subscriptions: make(map[string]*domain.Subscription),
		log:           log,
	}
}

// Get возвращает подписку пользователя
func (s *InMemorySubscriptionStore) Get(ctx context.Context, userID string) (*domain.Subscription, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	sub, exists := s.subscriptions[userID]
	if !exists {
		return nil, ErrNotFound
	}

	// Отдаем копию, чтобы вызывающий не мутировал хранилище напрямую
	return sub.Clone(), nil
}

// Put сохраняет подписку пользователя
func (s *InMemorySubscriptionStore) Put(ctx context.Context, userID string, sub *domain.Subscription) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.subscriptions[userID] = sub.Clone()

	return nil
}
