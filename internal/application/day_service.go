package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/event-planner/internal/persistence"
	"github.com/example/event-planner/internal/timeline"
)

// DayService lazily materializes per-owner day buckets. Buckets are cheap,
// reusable anchors: they are created the first time any event touches a
// (date, owner) key and are never deleted here.
type DayService struct {
	days        persistence.DayRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewDayService wires dependencies for day bucket management.
func NewDayService(days persistence.DayRepository, idGenerator func() string, now func() time.Time) *DayService {
	return NewDayServiceWithLogger(days, idGenerator, now, nil)
}

// NewDayServiceWithLogger is NewDayService with an explicit base logger.
func NewDayServiceWithLogger(days persistence.DayRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *DayService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &DayService{days: days, idGenerator: idGenerator, now: now, logger: logger}
}

// GetOrCreateDay returns the bucket for (date, ownerID), creating it when
// missing. Concurrent callers converge on one bucket identity: the
// repository absorbs the unique-key race by returning the winning row.
func (s *DayService) GetOrCreateDay(ctx context.Context, date timeline.Date, ownerID string) (persistence.Day, error) {
	if s == nil || s.days == nil {
		return persistence.Day{}, fmt.Errorf("day repository not configured")
	}

	existing, err := s.days.FindDayByDateAndOwner(ctx, date, ownerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return persistence.Day{}, err
	}

	created, err := s.days.SaveDay(ctx, persistence.Day{
		ID:        s.idGenerator(),
		Date:      date,
		OwnerID:   ownerID,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return persistence.Day{}, err
	}

	serviceLogger(ctx, s.logger, "day", "get_or_create", "owner_id", ownerID).
		Debug("materialized day bucket", "date", date.String(), "day_id", created.ID)
	return created, nil
}

// GetOrCreateRange materializes buckets for every requested date in one
// round trip for the existing rows plus one save per missing date: fetch
// the existing buckets, compute the complement, create only the missing
// ones. The result is ordered by date.
func (s *DayService) GetOrCreateRange(ctx context.Context, dates []timeline.Date, ownerID string) ([]persistence.Day, error) {
	if s == nil || s.days == nil {
		return nil, fmt.Errorf("day repository not configured")
	}
	if len(dates) == 0 {
		return nil, nil
	}

	existing, err := s.days.FindDaysByDatesAndOwner(ctx, dates, ownerID)
	if err != nil {
		return nil, err
	}

	found := make(map[timeline.Date]struct{}, len(existing))
	for _, day := range existing {
		found[day.Date] = struct{}{}
	}

	var missing []persistence.Day
	createdAt := s.now().UTC()
	for _, date := range dates {
		if _, ok := found[date]; ok {
			continue
		}
		missing = append(missing, persistence.Day{
			ID:        s.idGenerator(),
			Date:      date,
			OwnerID:   ownerID,
			CreatedAt: createdAt,
		})
	}

	result := append([]persistence.Day{}, existing...)
	if len(missing) > 0 {
		created, err := s.days.SaveDays(ctx, missing)
		if err != nil {
			return nil, err
		}
		result = append(result, created...)
		serviceLogger(ctx, s.logger, "day", "get_or_create_range", "owner_id", ownerID).
			Debug("materialized day buckets", "created", len(created), "existing", len(existing))
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// SaveAllDays persists mutated buckets. Re-saving unchanged buckets is
// idempotent and harmless.
func (s *DayService) SaveAllDays(ctx context.Context, days []persistence.Day) ([]persistence.Day, error) {
	if s == nil || s.days == nil {
		return nil, fmt.Errorf("day repository not configured")
	}
	if len(days) == 0 {
		return nil, nil
	}
	return s.days.SaveDays(ctx, days)
}
