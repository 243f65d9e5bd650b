// Package repotest provides an in-memory implementation of the repository interfaces
// for service tests. Transactions are serialized and roll back by restoring a snapshot.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/Domenick1991/skybook/internal/repository"
)

type state struct {
	flights    map[int64]domain.Flight
	seats      map[int64]domain.Seat
	holds      map[int64]domain.Hold
	passengers map[int64]domain.Passenger
	wallets    map[int64]domain.Wallet
	txs        []domain.Transaction
	bookings   map[int64]domain.Booking
	attempts   []domain.BookingAttempt
	payments   []domain.Payment
	nextID     int64
}

func (s *state) clone() *state {
	c := &state{
		flights:    make(map[int64]domain.Flight, len(s.flights)),
		seats:      make(map[int64]domain.Seat, len(s.seats)),
		holds:      make(map[int64]domain.Hold, len(s.holds)),
		passengers: make(map[int64]domain.Passenger, len(s.passengers)),
		wallets:    make(map[int64]domain.Wallet, len(s.wallets)),
		txs:        append([]domain.Transaction(nil), s.txs...),
		bookings:   make(map[int64]domain.Booking, len(s.bookings)),
		attempts:   append([]domain.BookingAttempt(nil), s.attempts...),
		payments:   append([]domain.Payment(nil), s.payments...),
		nextID:     s.nextID,
	}
	for k, v := range s.flights {
		c.flights[k] = v
	}
	for k, v := range s.seats {
		c.seats[k] = v
	}
	for k, v := range s.holds {
		c.holds[k] = v
	}
	for k, v := range s.passengers {
		c.passengers[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	return c
}

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data *state

	// Commits counts successful top-level transactions.
	Commits int
}

func NewStore() *Store {
	return &Store{data: &state{
		flights:    map[int64]domain.Flight{},
		seats:      map[int64]domain.Seat{},
		holds:      map[int64]domain.Hold{},
		passengers: map[int64]domain.Passenger{},
		wallets:    map[int64]domain.Wallet{},
		bookings:   map[int64]domain.Booking{},
		nextID:     1000,
	}}
}

func (s *Store) id() int64 {
	s.data.nextID++
	return s.data.nextID
}

func (s *Store) with(fn func(d *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

type txKey struct{}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	s.Commits++
	s.mu.Unlock()
	return nil
}

// Seeding and inspection helpers.

func (s *Store) AddFlight(f domain.Flight) domain.Flight {
	s.with(func(d *state) {
		if f.ID == 0 {
			f.ID = s.id()
		}
		if f.Status == "" {
			f.Status = domain.FlightStatusScheduled
		}
		d.flights[f.ID] = f
	})
	return f
}

func (s *Store) AddSeat(st domain.Seat) domain.Seat {
	s.with(func(d *state) {
		if st.ID == 0 {
			st.ID = s.id()
		}
		if st.Status == "" {
			st.Status = domain.SeatStatusFree
		}
		if st.Class == "" {
			st.Class = domain.CabinEconomy
		}
		d.seats[st.ID] = st
	})
	return st
}

func (s *Store) AddHold(h domain.Hold) domain.Hold {
	s.with(func(d *state) {
		h.ID = s.id()
		d.holds[h.ID] = h
	})
	return h
}

func (s *Store) AddAttempt(a domain.BookingAttempt) {
	s.with(func(d *state) {
		a.ID = s.id()
		d.attempts = append(d.attempts, a)
	})
}

func (s *Store) Seat(id int64) domain.Seat {
	var st domain.Seat
	s.with(func(d *state) { st = d.seats[id] })
	return st
}

func (s *Store) Flight(id int64) domain.Flight {
	var f domain.Flight
	s.with(func(d *state) { f = d.flights[id] })
	return f
}

func (s *Store) Holds(seatID int64) []domain.Hold {
	var out []domain.Hold
	s.with(func(d *state) {
		for _, h := range d.holds {
			if h.SeatID == seatID {
				out = append(out, h)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Bookings() []domain.Booking {
	var out []domain.Booking
	s.with(func(d *state) {
		for _, b := range d.bookings {
			out = append(out, b)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Transactions(walletID int64) []domain.Transaction {
	var out []domain.Transaction
	s.with(func(d *state) {
		for _, t := range d.txs {
			if t.WalletID == walletID {
				out = append(out, t)
			}
		}
	})
	return out
}

func (s *Store) Flights() repository.FlightRepository       { return &flightRepo{s} }
func (s *Store) Seats() repository.SeatRepository           { return &seatRepo{s} }
func (s *Store) HoldRepo() repository.HoldRepository        { return &holdRepo{s} }
func (s *Store) Passengers() repository.PassengerRepository { return &passengerRepo{s} }
func (s *Store) Wallets() repository.WalletRepository       { return &walletRepo{s} }
func (s *Store) BookingRepo() repository.BookingRepository  { return &bookingRepo{s} }
func (s *Store) Attempts() repository.AttemptRepository     { return &attemptRepo{s} }
func (s *Store) Payments() repository.PaymentRepository     { return &paymentRepo{s} }

var _ repository.TxManager = (*Store)(nil)

type flightRepo struct{ s *Store }

func sortFlights(flights []domain.Flight) {
	sort.Slice(flights, func(i, j int) bool {
		if !flights[i].DepartureAt.Equal(flights[j].DepartureAt) {
			return flights[i].DepartureAt.Before(flights[j].DepartureAt)
		}
		return flights[i].ID < flights[j].ID
	})
}

func (r *flightRepo) Search(_ context.Context, q domain.FlightQuery) ([]domain.Flight, error) {
	out := make([]domain.Flight, 0)
	r.s.with(func(d *state) {
		for _, f := range d.flights {
			if f.Status != domain.FlightStatusScheduled {
				continue
			}
			if q.Origin != "" && f.Origin != q.Origin || q.Destination != "" && f.Destination != q.Destination {
				continue
			}
			if q.Date != nil {
				start := time.Date(q.Date.Year(), q.Date.Month(), q.Date.Day(), 0, 0, 0, 0, q.Date.Location())
				if f.DepartureAt.Before(start) || !f.DepartureAt.Before(start.Add(24*time.Hour)) {
					continue
				}
			}
			out = append(out, f)
		}
	})
	sortFlights(out)
	return out, nil
}

func (r *flightRepo) ListScheduled(_ context.Context, limit int) ([]domain.Flight, error) {
	out := make([]domain.Flight, 0)
	r.s.with(func(d *state) {
		for _, f := range d.flights {
			if f.Status == domain.FlightStatusScheduled {
				out = append(out, f)
			}
		}
	})
	sortFlights(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *flightRepo) GetByID(_ context.Context, id int64) (*domain.Flight, error) {
	var (
		f  domain.Flight
		ok bool
	)
	r.s.with(func(d *state) { f, ok = d.flights[id] })
	if !ok {
		return nil, domain.ErrFlightNotFound
	}
	return &f, nil
}

func (r *flightRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Flight, error) {
	return r.GetByID(ctx, id)
}

func (r *flightRepo) SetCurrentPrice(_ context.Context, id int64, price int64) (*domain.Flight, error) {
	var (
		f  domain.Flight
		ok bool
	)
	r.s.with(func(d *state) {
		f, ok = d.flights[id]
		if ok {
			f.CurrentPrice = &price
			f.PriceVersion++
			d.flights[id] = f
		}
	})
	if !ok {
		return nil, domain.ErrFlightNotFound
	}
	return &f, nil
}

func (r *flightRepo) ResetIdleSurges(_ context.Context, recentSince, staleBefore time.Time) ([]int64, error) {
	var ids []int64
	r.s.with(func(d *state) {
		for id, f := range d.flights {
			if f.CurrentPrice == nil || *f.CurrentPrice == f.BasePrice {
				continue
			}
			recent, old := false, false
			for _, a := range d.attempts {
				if a.FlightID != id {
					continue
				}
				if !a.AttemptedAt.Before(recentSince) {
					recent = true
				}
				if a.AttemptedAt.Before(staleBefore) {
					old = true
				}
			}
			if recent || !old {
				continue
			}
			base := f.BasePrice
			f.CurrentPrice = &base
			f.PriceVersion++
			d.flights[id] = f
			ids = append(ids, id)
		}
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type seatRepo struct{ s *Store }

func (r *seatRepo) GetByID(_ context.Context, id int64) (*domain.Seat, error) {
	var (
		st domain.Seat
		ok bool
	)
	r.s.with(func(d *state) { st, ok = d.seats[id] })
	if !ok {
		return nil, domain.ErrSeatNotFound
	}
	return &st, nil
}

func (r *seatRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Seat, error) {
	return r.GetByID(ctx, id)
}

func (r *seatRepo) ListByFlight(_ context.Context, flightID int64) ([]domain.Seat, error) {
	out := make([]domain.Seat, 0)
	r.s.with(func(d *state) {
		for _, st := range d.seats {
			if st.FlightID == flightID {
				out = append(out, st)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (r *seatRepo) transition(id int64, to domain.SeatStatus, allowed func(domain.SeatStatus) bool) bool {
	changed := false
	r.s.with(func(d *state) {
		st, ok := d.seats[id]
		if ok && allowed(st.Status) {
			st.Status = to
			d.seats[id] = st
			changed = true
		}
	})
	return changed
}

func (r *seatRepo) MarkHeld(_ context.Context, id int64) (bool, error) {
	return r.transition(id, domain.SeatStatusHeld, func(s domain.SeatStatus) bool { return s == domain.SeatStatusFree }), nil
}

func (r *seatRepo) MarkBooked(_ context.Context, id int64) (bool, error) {
	return r.transition(id, domain.SeatStatusBooked, func(s domain.SeatStatus) bool { return s != domain.SeatStatusBooked }), nil
}

func (r *seatRepo) ClearHeld(_ context.Context, id int64) error {
	r.transition(id, domain.SeatStatusFree, func(s domain.SeatStatus) bool { return s == domain.SeatStatusHeld })
	return nil
}

func (r *seatRepo) MarkFree(_ context.Context, id int64) error {
	r.transition(id, domain.SeatStatusFree, func(domain.SeatStatus) bool { return true })
	return nil
}

type holdRepo struct{ s *Store }

func (r *holdRepo) Create(_ context.Context, h *domain.Hold) error {
	var err error
	r.s.with(func(d *state) {
		for _, existing := range d.holds {
			if existing.SeatID == h.SeatID && existing.Active {
				err = domain.ErrSeatUnavailable
				return
			}
		}
		h.ID = r.s.id()
		h.Active = true
		h.CreatedAt = time.Now()
		d.holds[h.ID] = *h
	})
	return err
}

func (r *holdRepo) HasLive(_ context.Context, seatID int64, now time.Time) (bool, error) {
	live := false
	r.s.with(func(d *state) {
		for _, h := range d.holds {
			if h.SeatID == seatID && h.Active && h.ExpiresAt.After(now) {
				live = true
			}
		}
	})
	return live, nil
}

func (r *holdRepo) deactivate(match func(domain.Hold) bool) int64 {
	var n int64
	r.s.with(func(d *state) {
		for id, h := range d.holds {
			if h.Active && match(h) {
				h.Active = false
				d.holds[id] = h
				n++
			}
		}
	})
	return n
}

func (r *holdRepo) DeactivateBySeat(_ context.Context, seatID int64) (int64, error) {
	return r.deactivate(func(h domain.Hold) bool { return h.SeatID == seatID }), nil
}

func (r *holdRepo) DeactivateExpired(_ context.Context, seatID int64, now time.Time) (int64, error) {
	return r.deactivate(func(h domain.Hold) bool { return h.SeatID == seatID && !h.ExpiresAt.After(now) }), nil
}

func (r *holdRepo) ExpireForFlight(_ context.Context, flightID int64, now time.Time) (int64, error) {
	var freed int64
	r.s.with(func(d *state) {
		touched := map[int64]bool{}
		for id, h := range d.holds {
			if h.Active && !h.ExpiresAt.After(now) && d.seats[h.SeatID].FlightID == flightID {
				h.Active = false
				d.holds[id] = h
				touched[h.SeatID] = true
			}
		}
		for seatID := range touched {
			live := false
			for _, h := range d.holds {
				if h.SeatID == seatID && h.Active && h.ExpiresAt.After(now) {
					live = true
				}
			}
			st := d.seats[seatID]
			if !live && st.Status == domain.SeatStatusHeld {
				st.Status = domain.SeatStatusFree
				d.seats[seatID] = st
				freed++
			}
		}
	})
	return freed, nil
}

func (r *holdRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	var out []domain.Hold
	r.s.with(func(d *state) {
		for _, h := range d.holds {
			if h.Active && !h.ExpiresAt.After(now) {
				out = append(out, h)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type passengerRepo struct{ s *Store }

func (r *passengerRepo) Upsert(_ context.Context, p *domain.Passenger) error {
	r.s.with(func(d *state) {
		for id, existing := range d.passengers {
			if existing.Email == p.Email {
				existing.FirstName, existing.LastName = p.FirstName, p.LastName
				d.passengers[id] = existing
				p.ID, p.CreatedAt = existing.ID, existing.CreatedAt
				return
			}
		}
		p.ID = r.s.id()
		p.CreatedAt = time.Now()
		d.passengers[p.ID] = *p
	})
	return nil
}

func (r *passengerRepo) GetByEmail(_ context.Context, email string) (*domain.Passenger, error) {
	var found *domain.Passenger
	r.s.with(func(d *state) {
		for _, p := range d.passengers {
			if p.Email == email {
				p := p
				found = &p
			}
		}
	})
	if found == nil {
		return nil, domain.ErrPassengerNotFound
	}
	return found, nil
}

func (r *passengerRepo) GetByID(_ context.Context, id int64) (*domain.Passenger, error) {
	var (
		p  domain.Passenger
		ok bool
	)
	r.s.with(func(d *state) { p, ok = d.passengers[id] })
	if !ok {
		return nil, domain.ErrPassengerNotFound
	}
	return &p, nil
}

type walletRepo struct{ s *Store }

func (r *walletRepo) GetByPassenger(_ context.Context, passengerID int64) (*domain.Wallet, error) {
	var found *domain.Wallet
	r.s.with(func(d *state) {
		for _, w := range d.wallets {
			if w.PassengerID == passengerID {
				w := w
				found = &w
			}
		}
	})
	if found == nil {
		return nil, domain.ErrWalletNotFound
	}
	return found, nil
}

func (r *walletRepo) CreateIfMissing(ctx context.Context, passengerID int64, openingBalance int64) (*domain.Wallet, error) {
	if w, err := r.GetByPassenger(ctx, passengerID); err == nil {
		return w, nil
	}
	w := domain.Wallet{PassengerID: passengerID, Balance: openingBalance, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	r.s.with(func(d *state) {
		w.ID = r.s.id()
		d.wallets[w.ID] = w
	})
	return &w, nil
}

func (r *walletRepo) Debit(_ context.Context, walletID int64, amount int64) (int64, error) {
	var (
		balance int64
		err     error
	)
	r.s.with(func(d *state) {
		w, ok := d.wallets[walletID]
		switch {
		case !ok:
			err = domain.ErrWalletNotFound
		case w.Balance < amount:
			err = &domain.InsufficientFundsError{Required: amount, Available: w.Balance}
		default:
			w.Balance -= amount
			d.wallets[walletID] = w
			balance = w.Balance
		}
	})
	return balance, err
}

func (r *walletRepo) Credit(_ context.Context, walletID int64, amount int64) (int64, error) {
	var (
		balance int64
		err     error
	)
	r.s.with(func(d *state) {
		w, ok := d.wallets[walletID]
		if !ok {
			err = domain.ErrWalletNotFound
			return
		}
		w.Balance += amount
		d.wallets[walletID] = w
		balance = w.Balance
	})
	return balance, err
}

func (r *walletRepo) AppendTransaction(_ context.Context, t *domain.Transaction) error {
	r.s.with(func(d *state) {
		t.ID = r.s.id()
		t.CreatedAt = time.Now()
		d.txs = append(d.txs, *t)
	})
	return nil
}

func (r *walletRepo) ListTransactions(_ context.Context, walletID int64, limit int) ([]domain.Transaction, error) {
	out := make([]domain.Transaction, 0)
	r.s.with(func(d *state) {
		for i := len(d.txs) - 1; i >= 0 && len(out) < limit; i-- {
			if d.txs[i].WalletID == walletID {
				out = append(out, d.txs[i])
			}
		}
	})
	return out, nil
}

type bookingRepo struct{ s *Store }

func (r *bookingRepo) Insert(_ context.Context, b *domain.Booking) (bool, error) {
	inserted := false
	var err error
	r.s.with(func(d *state) {
		for _, existing := range d.bookings {
			if existing.PNR == b.PNR {
				return
			}
			if existing.SeatID == b.SeatID && existing.Status == domain.BookingStatusConfirmed {
				err = domain.ErrSeatUnavailable
				return
			}
		}
		b.ID = r.s.id()
		b.Status = domain.BookingStatusConfirmed
		b.CreatedAt = time.Now()
		d.bookings[b.ID] = *b
		inserted = true
	})
	return inserted, err
}

func (r *bookingRepo) GetByID(_ context.Context, id int64) (*domain.Booking, error) {
	var (
		b  domain.Booking
		ok bool
	)
	r.s.with(func(d *state) { b, ok = d.bookings[id] })
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return &b, nil
}

func (r *bookingRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r *bookingRepo) MarkCanceled(_ context.Context, id int64, at time.Time) (bool, error) {
	changed := false
	r.s.with(func(d *state) {
		b, ok := d.bookings[id]
		if ok && b.Status == domain.BookingStatusConfirmed {
			b.Status = domain.BookingStatusCanceled
			b.CanceledAt = &at
			d.bookings[id] = b
			changed = true
		}
	})
	return changed, nil
}

func (r *bookingRepo) AttachPayment(_ context.Context, id int64, paymentID int64) error {
	var err error
	r.s.with(func(d *state) {
		b, ok := d.bookings[id]
		if !ok {
			err = domain.ErrBookingNotFound
			return
		}
		b.PaymentID = &paymentID
		d.bookings[id] = b
	})
	return err
}

func (r *bookingRepo) List(_ context.Context) ([]domain.BookingDetails, error) {
	out := make([]domain.BookingDetails, 0)
	r.s.with(func(d *state) {
		for _, b := range d.bookings {
			p := d.passengers[b.PassengerID]
			f := d.flights[b.FlightID]
			out = append(out, domain.BookingDetails{
				Booking:        b,
				SeatLabel:      d.seats[b.SeatID].Label,
				PassengerName:  p.FirstName + " " + p.LastName,
				PassengerEmail: p.Email,
				FlightNumber:   f.FlightNumber,
				Origin:         f.Origin,
				Destination:    f.Destination,
				DepartureAt:    f.DepartureAt,
			})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type attemptRepo struct{ s *Store }

func (r *attemptRepo) Insert(_ context.Context, a *domain.BookingAttempt) error {
	r.s.with(func(d *state) {
		a.ID = r.s.id()
		d.attempts = append(d.attempts, *a)
	})
	return nil
}

func (r *attemptRepo) count(flightID int64, userID string, match func(time.Time) bool) int {
	n := 0
	r.s.with(func(d *state) {
		for _, a := range d.attempts {
			if a.FlightID == flightID && a.UserID == userID && match(a.AttemptedAt) {
				n++
			}
		}
	})
	return n
}

func (r *attemptRepo) CountSince(_ context.Context, flightID int64, userID string, since time.Time) (int, error) {
	return r.count(flightID, userID, func(t time.Time) bool { return !t.Before(since) }), nil
}

func (r *attemptRepo) CountBefore(_ context.Context, flightID int64, userID string, before time.Time) (int, error) {
	return r.count(flightID, userID, func(t time.Time) bool { return t.Before(before) }), nil
}

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Create(_ context.Context, p *domain.Payment) error {
	r.s.with(func(d *state) {
		p.ID = r.s.id()
		p.CreatedAt = time.Now()
		d.payments = append(d.payments, *p)
	})
	return nil
}

func (r *paymentRepo) List(_ context.Context) ([]domain.Payment, error) {
	out := make([]domain.Payment, 0)
	r.s.with(func(d *state) {
		for i := len(d.payments) - 1; i >= 0; i-- {
			out = append(out, d.payments[i])
		}
	})
	return out, nil
}
