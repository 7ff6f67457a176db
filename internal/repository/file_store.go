package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wandermap/subscription-service/internal/domain"
	"github.com/wandermap/subscription-service/pkg/logger"
)

// FileSubscriptionStore хранилище подписок в JSON-файле.
// Файл содержит отображение userID -> запись подписки и переживает
// перезапуск процесса. Запись выполняется через временный файл и rename.
type FileSubscriptionStore struct {
	path          string
	subscriptions map[string]*domain.Subscription
	mutex         sync.RWMutex
	log           *logger.Logger
}

// NewFileSubscriptionStore создает файловое хранилище и загружает записи.
// Поврежденный файл является жесткой ошибкой: молчаливый откат к пустому
// хранилищу означал бы потерю данных.
func NewFileSubscriptionStore(path string, log *logger.Logger) (*FileSubscriptionStore, error) {
	store := &FileSubscriptionStore{
		path:          path,
		subscriptions: make(map[string]*domain.Subscription),
		log:           log,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Infow("Subscription file does not exist yet, starting empty", "path", path)
			return store, nil
		}
		return nil, domain.NewStorageError("load", "", err)
	}

	if err := json.Unmarshal(data, &store.subscriptions); err != nil {
		return nil, domain.NewStorageError("load", "", fmt.Errorf("corrupt subscription file %s: %w", path, err))
	}

	log.Infow("Loaded subscriptions from file", "path", path, "count", len(store.subscriptions))
	return store, nil
}

// Get возвращает подписку пользователя
func (s *FileSubscriptionStore) Get(ctx context.Context, userID string) (*domain.Subscription, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	sub, exists := s.subscriptions[userID]
	if !exists {
		return nil, ErrNotFound
	}

	return sub.Clone(), nil
}

// Put сохраняет подписку пользователя и переписывает файл
func (s *FileSubscriptionStore) Put(ctx context.Context, userID string, sub *domain.Subscription) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	previous, hadPrevious := s.subscriptions[userID]
	s.subscriptions[userID] = sub.Clone()

	if err := s.persist(); err != nil {
		// Откатываем мутацию в памяти: результат операции не должен
		// наблюдаться раньше, чем завершилась запись
		if hadPrevious {
			s.subscriptions[userID] = previous
		} else {
			delete(s.subscriptions, userID)
		}
		return domain.NewStorageError("put", userID, err)
	}

	return nil
}

// persist записывает все подписки в файл; вызывается под мьютексом
func (s *FileSubscriptionStore) persist() error {
	data, err := json.MarshalIndent(s.subscriptions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal subscriptions: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write subscription file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace subscription file: %w", err)
	}

	return nil
}
