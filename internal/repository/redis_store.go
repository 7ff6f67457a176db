package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wandermap/subscription-service/internal/domain"
	"github.com/wandermap/subscription-service/pkg/logger"
)

const (
	// Префикс ключей подписок в Redis
	subscriptionKeyPrefix = "subscription:"

	// TTL для кэша
	defaultCacheTTL = 15 * time.Minute
)

// CachedSubscriptionStore декоратор хранилища подписок с кэшированием в Redis.
// Redis не является носителем записи: промах или ошибка кэша приводят к
// чтению из основного хранилища, запись всегда идет сначала в него.
type CachedSubscriptionStore struct {
	store  SubscriptionStore
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewCachedSubscriptionStore создает кэширующий декоратор над хранилищем подписок
func NewCachedSubscriptionStore(store SubscriptionStore, redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*CachedSubscriptionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	// Проверяем соединение с Redis
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &CachedSubscriptionStore{
		store:  store,
		client: client,
		ttl:    defaultCacheTTL,
		log:    log,
	}, nil
}

// Close закрывает соединение с Redis
func (s *CachedSubscriptionStore) Close() error {
	return s.client.Close()
}

// Get возвращает подписку пользователя, сначала проверяя кэш
func (s *CachedSubscriptionStore) Get(ctx context.Context, userID string) (*domain.Subscription, error) {
	key := subscriptionKeyPrefix + userID

	data, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		var sub domain.Subscription
		if err := json.Unmarshal(data, &sub); err == nil {
			return &sub, nil
		}
		// Поврежденная запись кэша не считается ошибкой хранилища, идем в основное
		s.log.Warnw("Corrupt cache entry, falling back to primary store", "user_id", userID)
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warnw("Redis read failed, falling back to primary store", "user_id", userID, "error", err)
	}

	sub, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.cache(ctx, key, sub)
	return sub, nil
}

// Put сохраняет подписку в основное хранилище и обновляет кэш
func (s *CachedSubscriptionStore) Put(ctx context.Context, userID string, sub *domain.Subscription) error {
	if err := s.store.Put(ctx, userID, sub); err != nil {
		return err
	}

	s.cache(ctx, subscriptionKeyPrefix+userID, sub)
	return nil
}

// cache пишет запись в Redis; ошибка кэширования не фатальна
func (s *CachedSubscriptionStore) cache(ctx context.Context, key string, sub *domain.Subscription) {
	data, err := json.Marshal(sub)
	if err != nil {
		s.log.Warnw("Failed to marshal subscription for cache", "key", key, "error", err)
		return
	}

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.log.Warnw("Failed to cache subscription", "key", key, "error", err)
		// Сносим возможно устаревшую запись, чтобы кэш не расходился с хранилищем
		s.client.Del(ctx, key)
	}
}
