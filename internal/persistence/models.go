package persistence

import (
	"time"

	"github.com/example/event-planner/internal/timeline"
)

// Event represents a scheduled event stored in persistence. Start and End
// are UTC instants forming the half-open interval [Start, End); DisplayZone
// records the zone the event was authored in and never influences conflict
// semantics.
type Event struct {
	ID          string
	Name        string
	OwnerID     string
	Start       time.Time
	End         time.Time
	DisplayZone string
	Description string
	DayIDs      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Day represents a per-owner calendar-day bucket. At most one Day exists per
// (Date, OwnerID) pair; buckets are created on demand and never deleted by
// the scheduling engine.
//
// Events is the back-reference side of the event-day join relation. It is a
// read-time projection populated by the Find* repository methods; membership
// itself is owned by the join rows written through SaveEvent.
type Day struct {
	ID        string
	Date      timeline.Date
	OwnerID   string
	Archived  bool
	Events    []Event
	CreatedAt time.Time
}
