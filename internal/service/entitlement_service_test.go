package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wandermap/subscription-service/internal/catalog"
	"github.com/wandermap/subscription-service/internal/domain"
	"github.com/wandermap/subscription-service/internal/repository"
	"github.com/wandermap/subscription-service/pkg/logger"
)

// fakeClock подменяемые часы для проверки ленивого истечения
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T) (EntitlementService, *repository.InMemorySubscriptionStore, *fakeClock) {
	t.Helper()

	log := logger.New(logger.ERROR)
	store := repository.NewInMemorySubscriptionStore(log)
	clock := &fakeClock{now: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)}
	svc := NewEntitlementServiceWithClock(store, nil, nil, log, clock.Now)

	return svc, store, clock
}

func TestGetSubscriptionCreatesFreeRecord(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()

	sub, err := svc.GetSubscription(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, "user-1", sub.UserID)
	assert.Equal(t, domain.TierFree, sub.Tier)
	assert.Equal(t, domain.StatusActive, sub.Status)
	assert.Equal(t, clock.Now(), sub.StartedAt)
	assert.Nil(t, sub.ExpiresAt)
	assert.Empty(t, sub.Usage)
	assert.Nil(t, sub.PaymentInfo)

	// Запись сохранена, а не только возвращена
	persisted, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierFree, persisted.Tier)
}

func TestPurchaseSubscription(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	sub, err := svc.PurchaseSubscription(ctx, "user-1", domain.TierPremium, &PaymentMetadata{Method: "card"})
	require.NoError(t, err)

	assert.Equal(t, domain.TierPremium, sub.Tier)
	assert.Equal(t, domain.StatusActive, sub.Status)
	assert.Equal(t, clock.Now(), sub.StartedAt)

	// Срок действия равен ровно одному календарному месяцу от начала
	require.NotNil(t, sub.ExpiresAt)
	assert.Equal(t, clock.Now().AddDate(0, 1, 0), *sub.ExpiresAt)

	assert.Empty(t, sub.Usage)

	require.NotNil(t, sub.PaymentInfo)
	assert.Equal(t, "card", sub.PaymentInfo.Method)
	assert.Equal(t, 9.99, sub.PaymentInfo.Amount)
	assert.Equal(t, clock.Now(), sub.PaymentInfo.LastPayment)
	assert.Equal(t, *sub.ExpiresAt, sub.PaymentInfo.NextBilling)

	// Повторное чтение возвращает ту же запись
	read, err := svc.GetSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, sub, read)
}

func TestPurchaseReplacesRecordWholesale(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.TrackUsage(ctx, "user-1", domain.ActionAiRequest))
	require.NoError(t, svc.TrackUsage(ctx, "user-1", domain.ActionAiRequest))

	sub, err := svc.PurchaseSubscription(ctx, "user-1", domain.TierBasic, nil)
	require.NoError(t, err)

	// Покупка сбрасывает счетчики использования
	assert.Empty(t, sub.Usage)
	assert.Equal(t, domain.TierBasic, sub.Tier)
}

func TestPurchaseInvalidTier(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.PurchaseSubscription(context.Background(), "user-1", domain.Tier("platinum"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidTier)
}

func TestPurchaseFreeTierNeverExpires(t *testing.T) {
	svc, _, _ := newTestService(t)

	sub, err := svc.PurchaseSubscription(context.Background(), "user-1", domain.TierFree, nil)
	require.NoError(t, err)
	assert.Nil(t, sub.ExpiresAt)
}

func TestCancelSubscription(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.PurchaseSubscription(ctx, "user-1", domain.TierPremium, nil)
	require.NoError(t, err)

	sub, err := svc.CancelSubscription(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, sub)

	// Меняется только статус: тариф и счетчики не затронуты
	assert.Equal(t, domain.StatusCancelled, sub.Status)
	assert.Equal(t, domain.TierPremium, sub.Tier)

	read, err := svc.GetSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, read.Status)
}

func TestCancelUnknownUserIsNoOp(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	sub, err := svc.CancelSubscription(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, sub)

	// Запись не создана
	_, err = store.Get(ctx, "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLazyExpiration(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.PurchaseSubscription(ctx, "user-1", domain.TierPremium, nil)
	require.NoError(t, err)

	// Срок прошел
	clock.Advance(32 * 24 * time.Hour)

	sub, err := svc.GetSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, sub.Status)

	// Переход сохранен: повторное чтение не выводит статус заново из часов
	persisted, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, persisted.Status)
}

func TestLazyExpirationNotBeforeDeadline(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.PurchaseSubscription(ctx, "user-1", domain.TierPremium, nil)
	require.NoError(t, err)

	clock.Advance(15 * 24 * time.Hour)

	sub, err := svc.GetSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, sub.Status)
}

func TestFreeSubscriptionNeverExpires(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetSubscription(ctx, "user-1")
	require.NoError(t, err)

	clock.Advance(365 * 24 * time.Hour)

	sub, err := svc.GetSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, sub.Status)
}

func TestCancelledIsTerminal(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.PurchaseSubscription(ctx, "user-1", domain.TierPremium, nil)
	require.NoError(t, err)
	_, err = svc.CancelSubscription(ctx, "user-1")
	require.NoError(t, err)

	// Истечение срока не переводит отмененную подписку в Expired
	clock.Advance(60 * 24 * time.Hour)

	sub, err := svc.GetSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, sub.Status)

	// Новая покупка возвращает подписку к жизни
	renewed, err := svc.PurchaseSubscription(ctx, "user-1", domain.TierBasic, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, renewed.Status)
	assert.Equal(t, domain.TierBasic, renewed.Tier)
}

func TestHasActiveSubscription(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	// Бесплатная подписка активна
	active, err := svc.HasActiveSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, active)

	_, err = svc.PurchaseSubscription(ctx, "user-1", domain.TierPremium, nil)
	require.NoError(t, err)

	active, err = svc.HasActiveSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, active)

	clock.Advance(32 * 24 * time.Hour)

	active, err = svc.HasActiveSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestHasPaidSubscription(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// Активная бесплатная подписка не считается платной
	paid, err := svc.HasPaidSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, paid)

	_, err = svc.PurchaseSubscription(ctx, "user-1", domain.TierBasic, nil)
	require.NoError(t, err)

	paid, err = svc.HasPaidSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, paid)

	_, err = svc.CancelSubscription(ctx, "user-1")
	require.NoError(t, err)

	paid, err = svc.HasPaidSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, paid)
}

func TestIsFeatureAvailable(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// Free: "AI Guide" в списке заблокированных
	available, err := svc.IsFeatureAvailable(ctx, "free-user", "AI Guide")
	require.NoError(t, err)
	assert.False(t, available)

	_, err = svc.PurchaseSubscription(ctx, "premium-user", domain.TierPremium, nil)
	require.NoError(t, err)

	available, err = svc.IsFeatureAvailable(ctx, "premium-user", "AI Guide")
	require.NoError(t, err)
	assert.True(t, available)
}

func TestIsFeatureAvailableSubstringMatch(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// Тест подстроки односторонний: заблокированная фича "AI Guide"
	// содержит запрос "AI", значит фича недоступна
	available, err := svc.IsFeatureAvailable(ctx, "free-user", "AI")
	require.NoError(t, err)
	assert.False(t, available)

	// Регистр не учитывается
	available, err = svc.IsFeatureAvailable(ctx, "free-user", "ai guide")
	require.NoError(t, err)
	assert.False(t, available)

	// Запрос шире заблокированной метки не совпадает
	available, err = svc.IsFeatureAvailable(ctx, "free-user", "AI Guide Premium Edition")
	require.NoError(t, err)
	assert.True(t, available)
}

func TestCanPerformActionQuotaExhaustion(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// Basic: квота aiRequests = 10
	_, err := svc.PurchaseSubscription(ctx, "user-1", domain.TierBasic, nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		allowed, err := svc.CanPerformAction(ctx, "user-1", domain.ActionAiRequest)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)

		require.NoError(t, svc.TrackUsage(ctx, "user-1", domain.ActionAiRequest))
	}

	allowed, err := svc.CanPerformAction(ctx, "user-1", domain.ActionAiRequest)
	require.NoError(t, err)
	assert.False(t, allowed)

	remaining, err := svc.GetRemainingQuota(ctx, "user-1", domain.ActionAiRequest)
	require.NoError(t, err)
	assert.Equal(t, domain.QuotaOf(0), remaining)
}

func TestCanPerformActionUnknown(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CanPerformAction(context.Background(), "user-1", domain.MeteredAction("teleport"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
}

func TestTrackUsageUnknownAction(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	err := svc.TrackUsage(ctx, "user-1", domain.MeteredAction("teleport"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownAction)

	// Неизвестное действие не создает запись
	_, err = store.Get(ctx, "user-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTrackUsageDoesNotCheckBounds(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// Free: квота exports = 0, но учет намеренно не проверяет лимит
	for i := 0; i < 5; i++ {
		require.NoError(t, svc.TrackUsage(ctx, "user-1", domain.ActionExport))
	}

	sub, err := svc.GetSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), sub.Usage[catalog.QuotaExports])
}

func TestGetRemainingQuotaUnlimited(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.PurchaseSubscription(ctx, "user-1", domain.TierPremium, nil)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		require.NoError(t, svc.TrackUsage(ctx, "user-1", domain.ActionExport))
	}

	// Безлимитная квота возвращается без изменений независимо от учета
	remaining, err := svc.GetRemainingQuota(ctx, "user-1", domain.ActionExport)
	require.NoError(t, err)
	assert.True(t, remaining.Unlimited)
}

func TestCheckAndTrack(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// Free: квота aiRequests = 3
	for i := 0; i < 3; i++ {
		allowed, err := svc.CheckAndTrack(ctx, "user-1", domain.ActionAiRequest)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := svc.CheckAndTrack(ctx, "user-1", domain.ActionAiRequest)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Отказ не увеличивает счетчик
	sub, err := svc.GetSubscription(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), sub.Usage[catalog.QuotaAiRequests])
}

func TestGetAllPlans(t *testing.T) {
	svc, _, _ := newTestService(t)

	plans := svc.GetAllPlans()
	require.Len(t, plans, 4)
	assert.Contains(t, plans, domain.TierFree)
	assert.Contains(t, plans, domain.TierPro)
}

func TestReconcile(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name       string
		sub        domain.Subscription
		changed    bool
		wantStatus domain.Status
	}{
		{
			name: "active paid past deadline expires",
			sub: domain.Subscription{
				Tier: domain.TierPremium, Status: domain.StatusActive, ExpiresAt: &past,
			},
			changed:    true,
			wantStatus: domain.StatusExpired,
		},
		{
			name: "trial paid past deadline expires",
			sub: domain.Subscription{
				Tier: domain.TierBasic, Status: domain.StatusTrial, ExpiresAt: &past,
			},
			changed:    true,
			wantStatus: domain.StatusExpired,
		},
		{
			name: "active paid before deadline keeps status",
			sub: domain.Subscription{
				Tier: domain.TierPremium, Status: domain.StatusActive, ExpiresAt: &future,
			},
			changed:    false,
			wantStatus: domain.StatusActive,
		},
		{
			name: "free tier never expires",
			sub: domain.Subscription{
				Tier: domain.TierFree, Status: domain.StatusActive,
			},
			changed:    false,
			wantStatus: domain.StatusActive,
		},
		{
			name: "cancelled is terminal",
			sub: domain.Subscription{
				Tier: domain.TierPremium, Status: domain.StatusCancelled, ExpiresAt: &past,
			},
			changed:    false,
			wantStatus: domain.StatusCancelled,
		},
		{
			name: "paid without deadline keeps status",
			sub: domain.Subscription{
				Tier: domain.TierPremium, Status: domain.StatusActive,
			},
			changed:    false,
			wantStatus: domain.StatusActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := tt.sub
			changed := Reconcile(&sub, now)
			assert.Equal(t, tt.changed, changed)
			assert.Equal(t, tt.wantStatus, sub.Status)
		})
	}
}

// brokenStore имитирует отказ носителя
type brokenStore struct {
	err error
}

func (s *brokenStore) Get(ctx context.Context, userID string) (*domain.Subscription, error) {
	return nil, s.err
}

func (s *brokenStore) Put(ctx context.Context, userID string, sub *domain.Subscription) error {
	return s.err
}

func TestStorageFailurePropagates(t *testing.T) {
	log := logger.New(logger.ERROR)
	store := &brokenStore{err: domain.NewStorageError("get", "user-1", assert.AnError)}
	svc := NewEntitlementService(store, nil, nil, log)
	ctx := context.Background()

	// Отказ хранилища не интерпретируется как отсутствие записи
	_, err := svc.GetSubscription(ctx, "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageFailure)

	_, err = svc.HasPaidSubscription(ctx, "user-1")
	assert.ErrorIs(t, err, domain.ErrStorageFailure)

	err = svc.TrackUsage(ctx, "user-1", domain.ActionExport)
	assert.ErrorIs(t, err, domain.ErrStorageFailure)
}
