package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wandermap/subscription-service/internal/domain"
	"github.com/wandermap/subscription-service/pkg/logger"
)

// PostgresSubscriptionStore реализация хранилища подписок через PostgreSQL.
// Запись хранится одной JSONB-строкой на пользователя: хранилищу не нужен
// язык запросов сложнее точечного поиска по ключу.
type PostgresSubscriptionStore struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresSubscriptionStore создает новое хранилище подписок через PostgreSQL
func NewPostgresSubscriptionStore(db *pgxpool.Pool, log *logger.Logger) *PostgresSubscriptionStore {
	return &PostgresSubscriptionStore{
		db:  db,
		log: log,
	}
}

// EnsureSchema создает таблицу подписок, если она еще не существует
func (s *PostgresSubscriptionStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS subscriptions (
			user_id    TEXT PRIMARY KEY,
			record     JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`

	if _, err := s.db.Exec(ctx, query); err != nil {
		return domain.NewStorageError("ensure_schema", "", err)
	}

	return nil
}

// Get возвращает подписку пользователя из базы данных
func (s *PostgresSubscriptionStore) Get(ctx context.Context, userID string) (*domain.Subscription, error) {
	query := `SELECT record FROM subscriptions WHERE user_id = $1`

	var data []byte
	err := s.db.QueryRow(ctx, query, userID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, domain.NewStorageError("get", userID, err)
	}

	var sub domain.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		// Поврежденная запись считается ошибкой хранилища, а не отсутствием записи
		return nil, domain.NewStorageError("get", userID, fmt.Errorf("corrupt subscription record: %w", err))
	}

	return &sub, nil
}

// Put сохраняет подписку пользователя, полностью заменяя предыдущую запись
func (s *PostgresSubscriptionStore) Put(ctx context.Context, userID string, sub *domain.Subscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return domain.NewStorageError("put", userID, fmt.Errorf("failed to marshal subscription: %w", err))
	}

	query := `
		INSERT INTO subscriptions (user_id, record, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET record = EXCLUDED.record, updated_at = now()
	`

	if _, err := s.db.Exec(ctx, query, userID, data); err != nil {
		return domain.NewStorageError("put", userID, err)
	}

	return nil
}
