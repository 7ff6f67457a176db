package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wandermap/subscription-service/internal/catalog"
	"github.com/wandermap/subscription-service/internal/domain"
	"github.com/wandermap/subscription-service/internal/events"
	"github.com/wandermap/subscription-service/internal/metrics"
	"github.com/wandermap/subscription-service/internal/repository"
	"github.com/wandermap/subscription-service/pkg/logger"
)

// EntitlementService интерфейс движка подписок и разрешений
type EntitlementService interface {
	// Методы жизненного цикла подписки
	GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
	PurchaseSubscription(ctx context.Context, userID string, tier domain.Tier, payment *PaymentMetadata) (*domain.Subscription, error)
	CancelSubscription(ctx context.Context, userID string) (*domain.Subscription, error)

	// Методы проверки разрешений
	HasActiveSubscription(ctx context.Context, userID string) (bool, error)
	HasPaidSubscription(ctx context.Context, userID string) (bool, error)
	IsFeatureAvailable(ctx context.Context, userID, featureQuery string) (bool, error)
	CanPerformAction(ctx context.Context, userID string, action domain.MeteredAction) (bool, error)

	// Методы учета использования
	TrackUsage(ctx context.Context, userID string, action domain.MeteredAction) error
	CheckAndTrack(ctx context.Context, userID string, action domain.MeteredAction) (bool, error)
	GetRemainingQuota(ctx context.Context, userID string, action domain.MeteredAction) (domain.Quota, error)

	// Методы для страницы цен
	GetAllPlans() map[domain.Tier]domain.Plan
}

// PaymentMetadata непрозрачные метаданные платежа от вызывающей стороны.
// Движок не выполняет авторизацию платежа: это граница доверия, проверка
// принадлежит платежному коллаборатору снаружи.
type PaymentMetadata struct {
	Method string `json:"method" validate:"required"`
}

type entitlementService struct {
	store    repository.SubscriptionStore
	producer events.SubscriptionProducer
	metrics  metrics.EntitlementMetrics
	log      *logger.Logger
	now      func() time.Time
}

// NewEntitlementService создает новый движок подписок
func NewEntitlementService(
	store repository.SubscriptionStore,
	producer events.SubscriptionProducer,
	entMetrics metrics.EntitlementMetrics,
	log *logger.Logger,
) EntitlementService {
	return NewEntitlementServiceWithClock(store, producer, entMetrics, log, time.Now)
}

// NewEntitlementServiceWithClock создает движок подписок с внешними часами.
// Ленивое истечение сравнивает "сейчас" с сохраненной датой, поэтому часы
// подменяемы для тестов.
func NewEntitlementServiceWithClock(
	store repository.SubscriptionStore,
	producer events.SubscriptionProducer,
	entMetrics metrics.EntitlementMetrics,
	log *logger.Logger,
	now func() time.Time,
) EntitlementService {
	return &entitlementService{
		store:    store,
		producer: producer,
		metrics:  entMetrics,
		log:      log,
		now:      now,
	}
}

// Reconcile применяет ленивое истечение к записи подписки.
// Активная или пробная подписка платного тарифа, чей срок прошел,
// переводится в статус Expired. Возвращает true, если статус изменился.
// Фонового таймера не существует: это единственное место, где истечение
// обнаруживается.
func Reconcile(sub *domain.Subscription, now time.Time) bool {
	if sub.Status != domain.StatusActive && sub.Status != domain.StatusTrial {
		return false
	}
	if sub.Tier == domain.TierFree {
		return false
	}
	if sub.ExpiresAt == nil {
		return false
	}
	if !now.After(*sub.ExpiresAt) {
		return false
	}

	sub.Status = domain.StatusExpired
	return true
}

// GetSubscription возвращает подписку пользователя, создавая Free/Active
// запись при первом обращении. Перед возвратом выполняется ленивое
// истечение, и переход статуса сохраняется в хранилище.
func (s *entitlementService) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub, err := s.store.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error("Failed to read subscription: %v", err)
			return nil, err
		}

		// Отсутствие записи не является ошибкой: создаем бесплатную подписку
		sub = domain.NewFreeSubscription(userID, s.now())
		if err := s.store.Put(ctx, userID, sub); err != nil {
			s.log.Error("Failed to persist new free subscription: %v", err)
			return nil, err
		}

		s.log.Debug("Created free subscription for user: %s", userID)
		return sub, nil
	}

	if Reconcile(sub, s.now()) {
		if err := s.store.Put(ctx, userID, sub); err != nil {
			s.log.Error("Failed to persist expired subscription: %v", err)
			return nil, err
		}

		s.log.Info("Subscription expired for user: %s (tier: %s)", userID, sub.Tier)
		if s.metrics != nil {
			s.metrics.IncExpiration(string(sub.Tier))
		}
		s.publishEvent(ctx, sub, func(ctx context.Context, sub *domain.Subscription) error {
			return s.producer.PublishExpired(ctx, sub)
		})
	}

	return sub, nil
}

// PurchaseSubscription полностью заменяет запись подписки пользователя.
// Счетчики использования сбрасываются, срок действия вычисляется как
// начало плюс ровно один платежный интервал тарифа.
func (s *entitlementService) PurchaseSubscription(ctx context.Context, userID string, tier domain.Tier, payment *PaymentMetadata) (*domain.Subscription, error) {
	s.log.Debug("Processing purchase for user: %s, tier: %s", userID, tier)

	plan, err := catalog.PlanFor(tier)
	if err != nil {
		s.log.Warn("Purchase with invalid tier: %s", tier)
		return nil, err
	}

	now := s.now()
	sub := &domain.Subscription{
		UserID:    userID,
		Tier:      tier,
		Status:    domain.StatusActive,
		StartedAt: now,
		ExpiresAt: expiresAfter(now, plan.Interval),
		Usage:     make(map[string]int64),
	}

	method := ""
	if payment != nil {
		method = payment.Method
	}

	paymentInfo := &domain.PaymentInfo{
		LastPayment: now,
		Amount:      plan.Price,
		Method:      method,
	}
	if sub.ExpiresAt != nil {
		paymentInfo.NextBilling = *sub.ExpiresAt
	}
	sub.PaymentInfo = paymentInfo

	if err := s.store.Put(ctx, userID, sub); err != nil {
		s.log.Error("Failed to persist purchased subscription: %v", err)
		return nil, err
	}

	s.log.Info("User %s purchased %s subscription", userID, tier)
	if s.metrics != nil {
		s.metrics.IncPurchase(string(tier))
		s.metrics.ObservePurchaseAmount(plan.Price, string(tier))
	}
	s.publishEvent(ctx, sub, func(ctx context.Context, sub *domain.Subscription) error {
		return s.producer.PublishPurchased(ctx, sub)
	})

	return sub, nil
}

// CancelSubscription переводит подписку в статус Cancelled на месте.
// Тариф, квоты и счетчики использования не изменяются. Если записи нет,
// возвращается (nil, nil): это намеренный no-op, а не ошибка.
func (s *entitlementService) CancelSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Debug("Cancel for unknown user %s is a no-op", userID)
			return nil, nil
		}
		s.log.Error("Failed to read subscription: %v", err)
		return nil, err
	}

	sub.Status = domain.StatusCancelled

	if err := s.store.Put(ctx, userID, sub); err != nil {
		s.log.Error("Failed to persist cancelled subscription: %v", err)
		return nil, err
	}

	s.log.Info("User %s cancelled %s subscription", userID, sub.Tier)
	if s.metrics != nil {
		s.metrics.IncCancellation(string(sub.Tier))
	}
	s.publishEvent(ctx, sub, func(ctx context.Context, sub *domain.Subscription) error {
		return s.producer.PublishCancelled(ctx, sub)
	})

	return sub, nil
}

// HasActiveSubscription возвращает true для статусов Active и Trial
// после ленивого истечения
func (s *entitlementService) HasActiveSubscription(ctx context.Context, userID string) (bool, error) {
	sub, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return false, err
	}

	return sub.Status == domain.StatusActive || sub.Status == domain.StatusTrial, nil
}

// HasPaidSubscription возвращает true для активной подписки платного тарифа
func (s *entitlementService) HasPaidSubscription(ctx context.Context, userID string) (bool, error) {
	sub, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return false, err
	}

	active := sub.Status == domain.StatusActive || sub.Status == domain.StatusTrial
	return active && sub.Tier.IsPaid(), nil
}

// IsFeatureAvailable возвращает false, если какая-либо заблокированная
// фича тарифа содержит запрос как подстроку (без учета регистра).
// Односторонний тест подстроки сохранен намеренно: запрос "AI" совпадет
// с заблокированной фичей "AI Guide".
func (s *entitlementService) IsFeatureAvailable(ctx context.Context, userID, featureQuery string) (bool, error) {
	sub, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return false, err
	}

	plan, err := catalog.PlanFor(sub.Tier)
	if err != nil {
		return false, err
	}

	query := strings.ToLower(featureQuery)
	for _, locked := range plan.LockedFeatures {
		if strings.Contains(strings.ToLower(locked), query) {
			return false, nil
		}
	}

	return true, nil
}

// CanPerformAction проверяет, разрешено ли измеряемое действие при
// текущем использовании. Действие вне закрытого набора является
// ошибкой, а не разрешением.
func (s *entitlementService) CanPerformAction(ctx context.Context, userID string, action domain.MeteredAction) (bool, error) {
	key, err := action.QuotaKey()
	if err != nil {
		s.log.Warn("Entitlement check for unknown action: %s", action)
		return false, err
	}

	sub, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return false, err
	}

	plan, err := catalog.PlanFor(sub.Tier)
	if err != nil {
		return false, err
	}

	allowed := plan.Quotas[key].Allows(sub.Usage[key])
	if s.metrics != nil {
		s.metrics.IncEntitlementCheck(string(action), allowed)
	}

	return allowed, nil
}

// TrackUsage увеличивает счетчик использования действия ровно на единицу
// и сохраняет запись. Проверка лимита не выполняется: учет намеренно
// отделен от CanPerformAction, и эти два вызова не атомарны друг
// относительно друга.
func (s *entitlementService) TrackUsage(ctx context.Context, userID string, action domain.MeteredAction) error {
	key, err := action.QuotaKey()
	if err != nil {
		s.log.Warn("Usage tracking for unknown action: %s", action)
		return err
	}

	sub, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return err
	}

	if sub.Usage == nil {
		sub.Usage = make(map[string]int64)
	}
	sub.Usage[key]++

	if err := s.store.Put(ctx, userID, sub); err != nil {
		s.log.Error("Failed to persist usage for user %s: %v", userID, err)
		return err
	}

	if s.metrics != nil {
		s.metrics.IncUsageTracked(string(action))
	}
	s.publishUsage(ctx, sub, action)

	return nil
}

// CheckAndTrack проверяет разрешение и при успехе учитывает использование.
// Это удобная обертка над двумя независимыми примитивами; она не делает
// пару проверка-учет атомарной.
func (s *entitlementService) CheckAndTrack(ctx context.Context, userID string, action domain.MeteredAction) (bool, error) {
	allowed, err := s.CanPerformAction(ctx, userID, action)
	if err != nil {
		return false, err
	}
	if !allowed {
		return false, nil
	}

	if err := s.TrackUsage(ctx, userID, action); err != nil {
		return false, err
	}

	return true, nil
}

// GetRemainingQuota возвращает остаток квоты действия; остаток не бывает
// отрицательным, безлимитная квота возвращается без изменений
func (s *entitlementService) GetRemainingQuota(ctx context.Context, userID string, action domain.MeteredAction) (domain.Quota, error) {
	key, err := action.QuotaKey()
	if err != nil {
		return domain.Quota{}, err
	}

	sub, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return domain.Quota{}, err
	}

	plan, err := catalog.PlanFor(sub.Tier)
	if err != nil {
		return domain.Quota{}, err
	}

	return plan.Quotas[key].Remaining(sub.Usage[key]), nil
}

// GetAllPlans возвращает все тарифные планы для страницы цен
func (s *entitlementService) GetAllPlans() map[domain.Tier]domain.Plan {
	return catalog.All()
}

// publishEvent публикует событие жизненного цикла. События не влияют на
// результат операции: ошибка публикации логируется и не возвращается
// вызывающему.
func (s *entitlementService) publishEvent(ctx context.Context, sub *domain.Subscription, publish func(context.Context, *domain.Subscription) error) {
	if s.producer == nil {
		return
	}
	if err := publish(ctx, sub); err != nil {
		s.log.Warnw("Failed to publish subscription event", "user_id", sub.UserID, "error", err)
	}
}

// publishUsage публикует событие учета использования
func (s *entitlementService) publishUsage(ctx context.Context, sub *domain.Subscription, action domain.MeteredAction) {
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishUsageTracked(ctx, sub, action); err != nil {
		s.log.Warnw("Failed to publish usage event", "user_id", sub.UserID, "action", action, "error", err)
	}
}

// expiresAfter вычисляет срок действия: начало плюс ровно один платежный
// интервал. Для месячных тарифов используется календарная арифметика.
func expiresAfter(start time.Time, interval domain.BillingInterval) *time.Time {
	switch interval {
	case domain.BillingIntervalMonth:
		expires := start.AddDate(0, 1, 0)
		return &expires
	default:
		// При "forever" подписка не истекает
		return nil
	}
}
