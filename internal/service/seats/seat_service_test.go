package seats

import (
	"context"
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

func newTestService(t *testing.T, opts ...SeatServiceOption) (*SeatService, *repotest.Store, *clock) {
	t.Helper()
	store := repotest.NewStore()
	clk := &clock{now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
	opts = append([]SeatServiceOption{WithClock(clk.Now)}, opts...)
	return NewSeatService(store.Seats(), store.HoldRepo(), store, opts...), store, clk
}

func TestCreateHold_Success(t *testing.T) {
	producer := &MockProducer{}
	svc, store, clk := newTestService(t, WithProducer(producer, "booking-events"))
	seat := store.AddSeat(domain.Seat{FlightID: 7, Label: "1A"})

	producer.On("Publish", mock.Anything, "booking-events", "seat-"+itoa(seat.ID), mock.MatchedBy(func(e kafka.Event) bool {
		return e.Type == kafka.EventHoldCreated && e.SeatID == seat.ID && e.FlightID == 7
	})).Return(nil).Once()

	hold, err := svc.CreateHold(context.Background(), seat.ID, 0)

	require.NoError(t, err)
	assert.True(t, hold.Active)
	assert.Equal(t, clk.Now().Add(10*time.Minute), hold.ExpiresAt)
	assert.Equal(t, domain.SeatStatusHeld, store.Seat(seat.ID).Status)
	producer.AssertExpectations(t)
}

func TestCreateHold_Validation(t *testing.T) {
	svc, store, _ := newTestService(t)
	seat := store.AddSeat(domain.Seat{FlightID: 7, Label: "1A"})

	for _, minutes := range []int{-1, 61, 120} {
		_, err := svc.CreateHold(context.Background(), seat.ID, minutes)
		assert.ErrorIs(t, err, domain.ErrValidation, "minutes=%d", minutes)
	}
	_, err := svc.CreateHold(context.Background(), 0, 5)
	assert.ErrorIs(t, err, domain.ErrValidation)

	for _, minutes := range []int{1, 60} {
		require.NoError(t, svc.ReleaseHold(context.Background(), seat.ID))
		_, err := svc.CreateHold(context.Background(), seat.ID, minutes)
		assert.NoError(t, err, "minutes=%d", minutes)
	}
}

func TestCreateHold_Unavailable(t *testing.T) {
	svc, store, _ := newTestService(t)
	booked := store.AddSeat(domain.Seat{FlightID: 7, Label: "1A", Status: domain.SeatStatusBooked})
	free := store.AddSeat(domain.Seat{FlightID: 7, Label: "1B"})
	ctx := context.Background()

	_, err := svc.CreateHold(ctx, booked.ID, 5)
	assert.ErrorIs(t, err, domain.ErrSeatUnavailable)

	_, err = svc.CreateHold(ctx, 999999, 5)
	assert.ErrorIs(t, err, domain.ErrSeatUnavailable)

	_, err = svc.CreateHold(ctx, free.ID, 5)
	require.NoError(t, err)
	_, err = svc.CreateHold(ctx, free.ID, 5)
	assert.ErrorIs(t, err, domain.ErrSeatUnavailable)
	assert.Len(t, store.Holds(free.ID), 1)
}

func TestCreateHold_ReplacesExpiredHold(t *testing.T) {
	svc, store, clk := newTestService(t)
	seat := store.AddSeat(domain.Seat{FlightID: 7, Label: "1A"})
	ctx := context.Background()

	_, err := svc.CreateHold(ctx, seat.ID, 1)
	require.NoError(t, err)
	clk.Advance(time.Minute)

	_, err = svc.CreateHold(ctx, seat.ID, 5)
	require.NoError(t, err)

	holds := store.Holds(seat.ID)
	require.Len(t, holds, 2)
	assert.False(t, holds[0].Active)
	assert.True(t, holds[1].Active)
	assert.Equal(t, domain.SeatStatusHeld, store.Seat(seat.ID).Status)
}

func TestReleaseHold(t *testing.T) {
	svc, store, _ := newTestService(t)
	held := store.AddSeat(domain.Seat{FlightID: 7, Label: "1A"})
	booked := store.AddSeat(domain.Seat{FlightID: 7, Label: "1B", Status: domain.SeatStatusBooked})
	ctx := context.Background()

	_, err := svc.CreateHold(ctx, held.ID, 5)
	require.NoError(t, err)

	require.NoError(t, svc.ReleaseHold(ctx, held.ID))
	require.NoError(t, svc.ReleaseHold(ctx, held.ID))
	assert.Equal(t, domain.SeatStatusFree, store.Seat(held.ID).Status)
	assert.False(t, store.Holds(held.ID)[0].Active)

	require.NoError(t, svc.ReleaseHold(ctx, booked.ID))
	assert.Equal(t, domain.SeatStatusBooked, store.Seat(booked.ID).Status)

	assert.ErrorIs(t, svc.ReleaseHold(ctx, 0), domain.ErrValidation)
}

func TestTransitions(t *testing.T) {
	svc, store, _ := newTestService(t)
	seat := store.AddSeat(domain.Seat{FlightID: 7, Label: "1A"})
	ctx := context.Background()

	require.NoError(t, svc.TryMarkHeld(ctx, seat.ID))
	assert.ErrorIs(t, svc.TryMarkHeld(ctx, seat.ID), domain.ErrSeatUnavailable)

	require.NoError(t, svc.TryMarkBooked(ctx, seat.ID))
	assert.ErrorIs(t, svc.TryMarkBooked(ctx, seat.ID), domain.ErrSeatUnavailable)
	assert.ErrorIs(t, svc.TryMarkHeld(ctx, seat.ID), domain.ErrSeatUnavailable)

	require.NoError(t, svc.Release(ctx, seat.ID))
	require.NoError(t, svc.Release(ctx, seat.ID))
	assert.Equal(t, domain.SeatStatusFree, store.Seat(seat.ID).Status)

	assert.ErrorIs(t, svc.TryMarkHeld(ctx, 424242), domain.ErrSeatNotFound)
}

func TestTryMarkBooked_ClearsHold(t *testing.T) {
	svc, store, _ := newTestService(t)
	seat := store.AddSeat(domain.Seat{FlightID: 7, Label: "1A"})
	ctx := context.Background()

	_, err := svc.CreateHold(ctx, seat.ID, 5)
	require.NoError(t, err)
	require.NoError(t, svc.TryMarkBooked(ctx, seat.ID))

	assert.Equal(t, domain.SeatStatusBooked, store.Seat(seat.ID).Status)
	assert.False(t, store.Holds(seat.ID)[0].Active)
}

func TestListSeats_OrderedAndLazilyExpired(t *testing.T) {
	svc, store, clk := newTestService(t)
	ctx := context.Background()
	b := store.AddSeat(domain.Seat{FlightID: 7, Label: "2B"})
	a := store.AddSeat(domain.Seat{FlightID: 7, Label: "1A"})
	store.AddSeat(domain.Seat{FlightID: 8, Label: "1C"})

	_, err := svc.CreateHold(ctx, b.ID, 1)
	require.NoError(t, err)
	_, err = svc.CreateHold(ctx, a.ID, 30)
	require.NoError(t, err)

	seats, err := svc.ListSeats(ctx, 7)
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, "1A", seats[0].Label)
	assert.Equal(t, domain.SeatStatusHeld, seats[1].Status)

	clk.Advance(2 * time.Minute)
	seats, err = svc.ListSeats(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.SeatStatusHeld, seats[0].Status)
	assert.Equal(t, domain.SeatStatusFree, seats[1].Status)

	_, err = svc.ListSeats(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReapExpiredHolds(t *testing.T) {
	producer := &MockProducer{}
	svc, store, clk := newTestService(t, WithProducer(producer, "booking-events"))
	ctx := context.Background()
	producer.On("Publish", mock.Anything, "booking-events", mock.Anything, mock.Anything).Return(nil)

	short := store.AddSeat(domain.Seat{FlightID: 7, Label: "1A"})
	long := store.AddSeat(domain.Seat{FlightID: 7, Label: "1B"})
	_, err := svc.CreateHold(ctx, short.ID, 1)
	require.NoError(t, err)
	_, err = svc.CreateHold(ctx, long.ID, 30)
	require.NoError(t, err)

	clk.Advance(5 * time.Minute)
	freed, err := svc.ReapExpiredHolds(ctx, 100)

	require.NoError(t, err)
	assert.Equal(t, 1, freed)
	assert.Equal(t, domain.SeatStatusFree, store.Seat(short.ID).Status)
	assert.Equal(t, domain.SeatStatusHeld, store.Seat(long.ID).Status)
	producer.AssertCalled(t, "Publish", mock.Anything, "booking-events", "seat-"+itoa(short.ID), mock.MatchedBy(func(e kafka.Event) bool {
		return e.Type == kafka.EventHoldExpired
	}))

	freed, err = svc.ReapExpiredHolds(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, freed)
}

func TestConcurrentHolds_OneWinner(t *testing.T) {
	svc, store, _ := newTestService(t)
	seat := store.AddSeat(domain.Seat{FlightID: 7, Label: "1A"})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CreateHold(context.Background(), seat.ID, 5); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Len(t, store.Holds(seat.ID), 1)
}
