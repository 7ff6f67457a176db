package domain

import (
	"time"
)

// Subscription представляет собой запись подписки пользователя.
// На одного пользователя существует ровно одна запись; при покупке
// запись заменяется целиком, а не сливается с предыдущей.
type Subscription struct {
	UserID      string           `json:"user_id"`
	Tier        Tier             `json:"tier"`
	Status      Status           `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"` // nil означает, что подписка не истекает (гарантировано для Free)
	Usage       map[string]int64 `json:"usage"`
	PaymentInfo *PaymentInfo     `json:"payment_info,omitempty"` // Присутствует только после покупки
}

// PaymentInfo метаданные платежа, предоставленные вызывающей стороной.
// Движок не выполняет авторизацию платежа: это граница доверия.
type PaymentInfo struct {
	LastPayment time.Time `json:"last_payment"`
	Amount      float64   `json:"amount"`
	Method      string    `json:"method"`
	NextBilling time.Time `json:"next_billing"`
}

// NewFreeSubscription создает подписку Free/Active без срока истечения
// и с нулевыми счетчиками использования
func NewFreeSubscription(userID string, now time.Time) *Subscription {
	return &Subscription{
		UserID:    userID,
		Tier:      TierFree,
		Status:    StatusActive,
		StartedAt: now,
		Usage:     make(map[string]int64),
	}
}

// Clone возвращает глубокую копию подписки
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}

	clone := *s

	clone.Usage = make(map[string]int64, len(s.Usage))
	for key, count := range s.Usage {
		clone.Usage[key] = count
	}

	if s.ExpiresAt != nil {
		expiresAt := *s.ExpiresAt
		clone.ExpiresAt = &expiresAt
	}

	if s.PaymentInfo != nil {
		paymentInfo := *s.PaymentInfo
		clone.PaymentInfo = &paymentInfo
	}

	return &clone
}
