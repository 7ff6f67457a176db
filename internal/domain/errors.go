package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrInvalidTier тариф вне четырех известных значений
	ErrInvalidTier = errors.New("invalid subscription tier")

	// ErrUnknownAction действие вне закрытого набора измеряемых действий
	ErrUnknownAction = errors.New("unknown metered action")

	// ErrStorageFailure хранилище не смогло прочитать или записать запись
	ErrStorageFailure = errors.New("subscription storage failure")
)

// InvalidTierError представляет ошибку неизвестного тарифа
type InvalidTierError struct {
	Tier string
}

// Error реализует интерфейс error
func (e *InvalidTierError) Error() string {
	return fmt.Sprintf("invalid subscription tier: %q", e.Tier)
}

// Is проверяет, является ли ошибка ошибкой неизвестного тарифа
func (e *InvalidTierError) Is(target error) bool {
	return target == ErrInvalidTier
}

// NewInvalidTierError создает новую ошибку неизвестного тарифа
func NewInvalidTierError(tier string) *InvalidTierError {
	return &InvalidTierError{Tier: tier}
}

// UnknownActionError представляет ошибку неизвестного измеряемого действия
type UnknownActionError struct {
	Action string
}

// Error реализует интерфейс error
func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown metered action: %q", e.Action)
}

// Is проверяет, является ли ошибка ошибкой неизвестного действия
func (e *UnknownActionError) Is(target error) bool {
	return target == ErrUnknownAction
}

// NewUnknownActionError создает новую ошибку неизвестного действия
func NewUnknownActionError(action string) *UnknownActionError {
	return &UnknownActionError{Action: action}
}

// StorageError представляет ошибку слоя хранения.
// Ошибка чтения никогда не интерпретируется как "хранилище пусто".
type StorageError struct {
	Op          string
	UserID      string
	OriginalErr error
}

// Error реализует интерфейс error
func (e *StorageError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("storage error [%s]: %v (user_id: %s)", e.Op, e.OriginalErr, e.UserID)
	}
	return fmt.Sprintf("storage error [%s] (user_id: %s)", e.Op, e.UserID)
}

// Unwrap возвращает оригинальную ошибку
func (e *StorageError) Unwrap() error {
	return e.OriginalErr
}

// Is проверяет, является ли ошибка ошибкой хранилища
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

// NewStorageError создает новую ошибку хранилища
func NewStorageError(op, userID string, err error) *StorageError {
	return &StorageError{
		Op:          op,
		UserID:      userID,
		OriginalErr: err,
	}
}
