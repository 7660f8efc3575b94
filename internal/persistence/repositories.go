package persistence

import (
	"context"
	"time"

	"github.com/example/event-planner/internal/timeline"
)

// DayRepository stores per-owner calendar-day buckets.
//
// SaveDay semantics for new records (empty ID is assigned by the store):
// inserting a date/owner pair that already exists must not create a second
// bucket. Implementations absorb the unique-constraint race by refetching
// and returning the winning row, so concurrent callers always converge on
// one bucket identity.
type DayRepository interface {
	FindDayByDateAndOwner(ctx context.Context, date timeline.Date, ownerID string) (Day, error)
	FindDaysByDatesAndOwner(ctx context.Context, dates []timeline.Date, ownerID string) ([]Day, error)
	SaveDay(ctx context.Context, day Day) (Day, error)
	SaveDays(ctx context.Context, days []Day) ([]Day, error)
}

// EventRepository stores events and owns the event-day join relation:
// SaveEvent reconciles the join rows against the event's DayIDs set, and
// DeleteEvent detaches the event from every bucket it belonged to.
type EventRepository interface {
	FindEventByID(ctx context.Context, id string) (Event, error)
	FindEventsByOwner(ctx context.Context, ownerID string) ([]Event, error)
	FindEventsByOwnerInRange(ctx context.Context, ownerID string, startUTC, endUTC time.Time) ([]Event, error)
	SaveEvent(ctx context.Context, event Event) (Event, error)
	DeleteEvent(ctx context.Context, id string) error
}
