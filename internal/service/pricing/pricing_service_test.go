package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/Domenick1991/skybook/internal/kafka"
	"github.com/Domenick1991/skybook/internal/repository/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) InvalidateSearch(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value any) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setup(t *testing.T, opts ...PricingServiceOption) (*PricingService, *repotest.Store, *clock) {
	t.Helper()
	store := repotest.NewStore()
	store.AddFlight(domain.Flight{ID: 7, FlightNumber: "SB007", Origin: "JFK", Destination: "LAX", BasePrice: 2000})
	clk := &clock{now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
	opts = append([]PricingServiceOption{WithClock(clk.Now)}, opts...)
	return NewPricingService(store.Flights(), store.Attempts(), store, opts...), store, clk
}

func TestRecordAttempt_SurgeOnThirdAttempt(t *testing.T) {
	cache := &MockCache{}
	producer := &MockProducer{}
	svc, store, clk := setup(t, WithCache(cache), WithProducer(producer, "booking-events"))
	ctx := context.Background()

	cache.On("InvalidateSearch", mock.Anything).Return(nil).Once()
	producer.On("Publish", mock.Anything, "booking-events", "flight-7", mock.MatchedBy(func(e kafka.Event) bool {
		return e.Type == kafka.EventPriceChanged && e.Price == 2200
	})).Return(nil).Once()

	first, err := svc.RecordAttempt(ctx, 7, "42")
	require.NoError(t, err)
	assert.False(t, first.SurgeApplied)
	assert.Equal(t, 1, first.Attempts)
	assert.Equal(t, int64(2000), first.CurrentPrice)
	assert.Equal(t, "Normal pricing", first.Message)

	clk.Advance(time.Minute)
	_, err = svc.RecordAttempt(ctx, 7, "42")
	require.NoError(t, err)

	clk.Advance(time.Minute)
	third, err := svc.RecordAttempt(ctx, 7, "42")
	require.NoError(t, err)
	assert.True(t, third.SurgeApplied)
	assert.Equal(t, 3, third.Attempts)
	assert.Equal(t, int64(2000), third.BasePrice)
	assert.Equal(t, int64(2200), third.CurrentPrice)
	assert.Contains(t, third.Message, "3 booking attempts")

	flight := store.Flight(7)
	require.NotNil(t, flight.CurrentPrice)
	assert.Equal(t, int64(2200), *flight.CurrentPrice)
	assert.Equal(t, int64(1), flight.PriceVersion)

	cache.AssertExpectations(t)
	producer.AssertExpectations(t)
}

func TestRecordAttempt_SurgeDoesNotRewriteSamePrice(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.RecordAttempt(ctx, 7, "42")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), store.Flight(7).PriceVersion)
}

func TestRecordAttempt_CountsPerUser(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	for _, user := range []string{"1", "2", "3"} {
		q, err := svc.RecordAttempt(ctx, 7, user)
		require.NoError(t, err)
		assert.False(t, q.SurgeApplied)
		assert.Equal(t, 1, q.Attempts)
	}
}

func TestRecordAttempt_OtherUserQuotedBasePrice(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.RecordAttempt(ctx, 7, "42")
		require.NoError(t, err)
	}
	require.Equal(t, int64(2200), effectivePrice(store.Flight(7)))

	q, err := svc.RecordAttempt(ctx, 7, "43")

	require.NoError(t, err)
	assert.False(t, q.SurgeApplied)
	assert.Equal(t, 1, q.Attempts)
	assert.Equal(t, int64(2000), q.CurrentPrice)
	assert.Equal(t, q.BasePrice, q.CurrentPrice)
	assert.Equal(t, int64(2200), effectivePrice(store.Flight(7)))
}

func TestRecordAttempt_DecaysAfterIdle(t *testing.T) {
	svc, store, clk := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.RecordAttempt(ctx, 7, "42")
		require.NoError(t, err)
	}
	require.Equal(t, int64(2200), effectivePrice(store.Flight(7)))

	clk.Advance(11 * time.Minute)
	q, err := svc.RecordAttempt(ctx, 7, "42")

	require.NoError(t, err)
	assert.False(t, q.SurgeApplied)
	assert.Equal(t, 1, q.Attempts)
	assert.Equal(t, int64(2000), q.CurrentPrice)
	assert.Equal(t, int64(2000), effectivePrice(store.Flight(7)))
	assert.Equal(t, int64(2), store.Flight(7).PriceVersion)
}

func TestRecordAttempt_Errors(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	_, err := svc.RecordAttempt(ctx, 0, "42")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.RecordAttempt(ctx, 7, "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.RecordAttempt(ctx, 99, "42")
	assert.ErrorIs(t, err, domain.ErrFlightNotFound)
}

func TestGetCurrentPrice(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()

	q, err := svc.GetCurrentPrice(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), q.CurrentPrice)
	assert.False(t, q.SurgeApplied)

	_, err = store.Flights().SetCurrentPrice(ctx, 7, 2200)
	require.NoError(t, err)
	q, err = svc.GetCurrentPrice(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2200), q.CurrentPrice)
	assert.Equal(t, int64(2000), q.BasePrice)

	_, err = svc.GetCurrentPrice(ctx, 99)
	assert.True(t, domain.IsNotFound(err))
	_, err = svc.GetCurrentPrice(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDecayIdle(t *testing.T) {
	cache := &MockCache{}
	svc, store, clk := setup(t, WithCache(cache))
	ctx := context.Background()
	cache.On("InvalidateSearch", mock.Anything).Return(nil)

	for i := 0; i < 3; i++ {
		_, err := svc.RecordAttempt(ctx, 7, "42")
		require.NoError(t, err)
	}

	clk.Advance(6 * time.Minute)
	ids, err := svc.DecayIdle(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, int64(2200), effectivePrice(store.Flight(7)))

	clk.Advance(5 * time.Minute)
	ids, err = svc.DecayIdle(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids)
	assert.Equal(t, int64(2000), effectivePrice(store.Flight(7)))
	cache.AssertNumberOfCalls(t, "InvalidateSearch", 2)
}

func TestRecordAttempt_CacheFailureIsNotFatal(t *testing.T) {
	cache := &MockCache{}
	svc, _, _ := setup(t, WithCache(cache))
	cache.On("InvalidateSearch", mock.Anything).Return(errors.New("redis down"))

	var q *domain.PriceQuote
	var err error
	for i := 0; i < 3; i++ {
		q, err = svc.RecordAttempt(context.Background(), 7, "42")
		require.NoError(t, err)
	}
	assert.True(t, q.SurgeApplied)
}

// effectivePrice calls the pointer-receiver EffectivePrice on a Flight value.
func effectivePrice(f domain.Flight) int64 { return f.EffectivePrice() }
