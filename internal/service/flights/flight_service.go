package flights

import (
	"context"
	"fmt"

	"github.com/Domenick1991/skybook/internal/domain"
	"github.com/Domenick1991/skybook/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultPageSize = 10

type FlightUseCase interface {
	Search(ctx context.Context, q domain.FlightQuery) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
}

type Cache interface {
	GetSearch(ctx context.Context, q domain.FlightQuery) ([]domain.Flight, bool, error)
	SetSearch(ctx context.Context, q domain.FlightQuery, flights []domain.Flight) error
}

type FlightService struct {
	repo     repository.FlightRepository
	cache    Cache
	pageSize int
	group    singleflight.Group
	log      *zap.Logger
}

type FlightServiceOption func(*FlightService)

func WithCache(c Cache) FlightServiceOption {
	return func(s *FlightService) {
		s.cache = c
	}
}

func WithPageSize(n int) FlightServiceOption {
	return func(s *FlightService) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func WithLogger(log *zap.Logger) FlightServiceOption {
	return func(s *FlightService) {
		s.log = log
	}
}

func NewFlightService(repo repository.FlightRepository, opts ...FlightServiceOption) *FlightService {
	s := &FlightService{repo: repo, pageSize: DefaultPageSize, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns scheduled flights matching q first, then pads the page with other scheduled flights.
// Concurrent misses for the same query share one database round trip.
func (s *FlightService) Search(ctx context.Context, q domain.FlightQuery) ([]domain.Flight, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.GetSearch(ctx, q)
		if err != nil {
			s.log.Warn("search cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	v, err, _ := s.group.Do(queryKey(q), func() (any, error) {
		return s.search(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	flights := v.([]domain.Flight)

	if s.cache != nil {
		if err := s.cache.SetSearch(ctx, q, flights); err != nil {
			s.log.Warn("search cache write failed", zap.Error(err))
		}
	}
	return flights, nil
}

func (s *FlightService) search(ctx context.Context, q domain.FlightQuery) ([]domain.Flight, error) {
	matched, err := s.repo.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(matched) >= s.pageSize {
		return matched, nil
	}

	extra, err := s.repo.ListScheduled(ctx, s.pageSize+len(matched))
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(matched))
	for _, f := range matched {
		seen[f.ID] = true
	}
	for _, f := range extra {
		if len(matched) >= s.pageSize {
			break
		}
		if !seen[f.ID] {
			matched = append(matched, f)
		}
	}
	return matched, nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	if id <= 0 {
		return nil, domain.ValidationError("invalid flight id")
	}
	return s.repo.GetByID(ctx, id)
}

func queryKey(q domain.FlightQuery) string {
	date := ""
	if q.Date != nil {
		date = q.Date.Format("2006-01-02")
	}
	return fmt.Sprintf("%s|%s|%s", q.Origin, q.Destination, date)
}

var _ FlightUseCase = (*FlightService)(nil)
