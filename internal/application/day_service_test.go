package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/event-planner/internal/persistence"
	"github.com/example/event-planner/internal/testfixtures"
	"github.com/example/event-planner/internal/timeline"
)

func newDayServiceUnderTest(store *testfixtures.MemoryStore) *DayService {
	clock := testfixtures.NewClock(time.Time{})
	generator := testfixtures.NewIDGenerator("day")
	return NewDayService(store, generator.NextFunc(), clock.NowFunc())
}

func TestDayService_GetOrCreateDay(t *testing.T) {
	t.Parallel()

	t.Run("creates a missing bucket", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewMemoryStore()
		service := newDayServiceUnderTest(store)
		date := timeline.Date{Year: 2026, Month: time.April, Day: 10}

		day, err := service.GetOrCreateDay(context.Background(), date, "owner-1")
		if err != nil {
			t.Fatalf("GetOrCreateDay returned error: %v", err)
		}
		if day.ID != "day-1" {
			t.Fatalf("expected generated id day-1, got %q", day.ID)
		}
		if day.Date != date || day.OwnerID != "owner-1" {
			t.Fatalf("unexpected bucket contents: %+v", day)
		}
		if day.Archived {
			t.Fatal("new bucket must not be archived")
		}
	})

	t.Run("returns the existing bucket unchanged", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewMemoryStore()
		service := newDayServiceUnderTest(store)
		date := timeline.Date{Year: 2026, Month: time.April, Day: 10}

		first, err := service.GetOrCreateDay(context.Background(), date, "owner-1")
		if err != nil {
			t.Fatalf("first call returned error: %v", err)
		}
		second, err := service.GetOrCreateDay(context.Background(), date, "owner-1")
		if err != nil {
			t.Fatalf("second call returned error: %v", err)
		}
		if second.ID != first.ID {
			t.Fatalf("expected stable bucket identity, got %q then %q", first.ID, second.ID)
		}
		if store.DayCount() != 1 {
			t.Fatalf("expected a single stored bucket, got %d", store.DayCount())
		}
	})

	t.Run("distinct owners get distinct buckets for the same date", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewMemoryStore()
		service := newDayServiceUnderTest(store)
		date := timeline.Date{Year: 2026, Month: time.April, Day: 10}

		a, err := service.GetOrCreateDay(context.Background(), date, "owner-a")
		if err != nil {
			t.Fatalf("owner-a call returned error: %v", err)
		}
		b, err := service.GetOrCreateDay(context.Background(), date, "owner-b")
		if err != nil {
			t.Fatalf("owner-b call returned error: %v", err)
		}
		if a.ID == b.ID {
			t.Fatalf("expected distinct buckets, both got %q", a.ID)
		}
	})

	t.Run("converges on the winner when a concurrent writer races the create", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewMemoryStore()
		service := newDayServiceUnderTest(store)
		date := timeline.Date{Year: 2026, Month: time.April, Day: 10}

		// Simulate another process inserting the same (date, owner) key
		// between our find and save.
		raced := false
		store.BeforeSaveDay = func(day persistence.Day) error {
			if !raced {
				raced = true
				if _, err := store.SaveDays(context.Background(), []persistence.Day{{
					ID:      "winner",
					Date:    date,
					OwnerID: "owner-1",
				}}); err != nil {
					return err
				}
			}
			return nil
		}

		day, err := service.GetOrCreateDay(context.Background(), date, "owner-1")
		if err != nil {
			t.Fatalf("GetOrCreateDay returned error: %v", err)
		}
		if day.ID != "winner" {
			t.Fatalf("expected the winning row to be returned, got %q", day.ID)
		}
		if store.DayCount() != 1 {
			t.Fatalf("expected one bucket after the race, got %d", store.DayCount())
		}
	})

	t.Run("propagates repository failures", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("disk gone")
		service := NewDayService(failingDayRepo{err: boom}, nil, nil)

		_, err := service.GetOrCreateDay(context.Background(), timeline.Date{Year: 2026, Month: time.April, Day: 10}, "owner-1")
		if !errors.Is(err, boom) {
			t.Fatalf("expected wrapped repository error, got %v", err)
		}
	})
}

func TestDayService_GetOrCreateRange(t *testing.T) {
	t.Parallel()

	t.Run("creates only the missing dates and sorts the result", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewMemoryStore()
		service := newDayServiceUnderTest(store)

		dates := []timeline.Date{
			{Year: 2026, Month: time.April, Day: 12},
			{Year: 2026, Month: time.April, Day: 10},
			{Year: 2026, Month: time.April, Day: 11},
		}

		// Pre-materialize the middle date.
		existing, err := service.GetOrCreateDay(context.Background(), dates[2], "owner-1")
		if err != nil {
			t.Fatalf("seed call returned error: %v", err)
		}

		days, err := service.GetOrCreateRange(context.Background(), dates, "owner-1")
		if err != nil {
			t.Fatalf("GetOrCreateRange returned error: %v", err)
		}
		if len(days) != 3 {
			t.Fatalf("expected 3 buckets, got %d", len(days))
		}
		for i := 1; i < len(days); i++ {
			if !days[i-1].Date.Before(days[i].Date) {
				t.Fatalf("buckets out of order: %v before %v", days[i-1].Date, days[i].Date)
			}
		}
		if days[1].ID != existing.ID {
			t.Fatalf("expected pre-existing bucket to be reused, got %q", days[1].ID)
		}
		if store.DayCount() != 3 {
			t.Fatalf("expected 3 stored buckets, got %d", store.DayCount())
		}
	})

	t.Run("is idempotent across repeated calls", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewMemoryStore()
		service := newDayServiceUnderTest(store)

		dates := []timeline.Date{
			{Year: 2026, Month: time.April, Day: 10},
			{Year: 2026, Month: time.April, Day: 11},
		}

		first, err := service.GetOrCreateRange(context.Background(), dates, "owner-1")
		if err != nil {
			t.Fatalf("first call returned error: %v", err)
		}
		second, err := service.GetOrCreateRange(context.Background(), dates, "owner-1")
		if err != nil {
			t.Fatalf("second call returned error: %v", err)
		}
		if len(first) != len(second) {
			t.Fatalf("expected stable result size, got %d then %d", len(first), len(second))
		}
		for i := range first {
			if first[i].ID != second[i].ID {
				t.Fatalf("bucket %d changed identity: %q then %q", i, first[i].ID, second[i].ID)
			}
		}
		if store.DayCount() != 2 {
			t.Fatalf("expected 2 stored buckets, got %d", store.DayCount())
		}
	})

	t.Run("empty date set yields no buckets and no calls", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewMemoryStore()
		service := newDayServiceUnderTest(store)

		days, err := service.GetOrCreateRange(context.Background(), nil, "owner-1")
		if err != nil {
			t.Fatalf("GetOrCreateRange returned error: %v", err)
		}
		if len(days) != 0 {
			t.Fatalf("expected no buckets, got %d", len(days))
		}
		if store.SaveDaysCalls != 0 || store.SaveDayCalls != 0 {
			t.Fatal("expected no persistence calls for an empty range")
		}
	})
}

// failingDayRepo returns a fixed error from every operation.
type failingDayRepo struct {
	err error
}

func (r failingDayRepo) FindDayByDateAndOwner(ctx context.Context, date timeline.Date, ownerID string) (persistence.Day, error) {
	return persistence.Day{}, r.err
}

func (r failingDayRepo) FindDaysByDatesAndOwner(ctx context.Context, dates []timeline.Date, ownerID string) ([]persistence.Day, error) {
	return nil, r.err
}

func (r failingDayRepo) SaveDay(ctx context.Context, day persistence.Day) (persistence.Day, error) {
	return persistence.Day{}, r.err
}

func (r failingDayRepo) SaveDays(ctx context.Context, days []persistence.Day) ([]persistence.Day, error) {
	return nil, r.err
}
