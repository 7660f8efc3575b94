// Package testfixtures provides deterministic builders, clocks and stores
// shared by tests across the module.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/event-planner/internal/persistence"
	"github.com/example/event-planner/internal/timeline"
)

var (
	eventCounter uint64
	dayCounter   uint64
)

var referenceTime = time.Date(2026, time.March, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// EventOption configures a generated event fixture.
type EventOption func(*persistence.Event)

// NewEventFixture returns a deterministic one-hour event starting at the
// reference time, offset per invocation so fixtures never collide.
func NewEventFixture(opts ...EventOption) persistence.Event {
	idx := atomic.AddUint64(&eventCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * 2 * time.Hour)
	event := persistence.Event{
		ID:          fmt.Sprintf("event-%03d", idx),
		Name:        fmt.Sprintf("Event %03d", idx),
		OwnerID:     "owner-001",
		Start:       start,
		End:         start.Add(time.Hour),
		DisplayZone: "UTC",
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&event)
	}
	return event
}

// WithEventID overrides the generated event identifier.
func WithEventID(id string) EventOption {
	return func(e *persistence.Event) { e.ID = id }
}

// WithEventOwner overrides the owner identifier.
func WithEventOwner(ownerID string) EventOption {
	return func(e *persistence.Event) { e.OwnerID = ownerID }
}

// WithEventName overrides the event name.
func WithEventName(name string) EventOption {
	return func(e *persistence.Event) { e.Name = name }
}

// WithEventInterval overrides the start and end instants.
func WithEventInterval(start, end time.Time) EventOption {
	return func(e *persistence.Event) {
		e.Start = start
		e.End = end
	}
}

// WithEventDayIDs overrides the linked bucket identifiers.
func WithEventDayIDs(ids ...string) EventOption {
	return func(e *persistence.Event) { e.DayIDs = ids }
}

// DayOption configures a generated day fixture.
type DayOption func(*persistence.Day)

// NewDayFixture returns a deterministic day bucket advancing one calendar
// date per invocation.
func NewDayFixture(opts ...DayOption) persistence.Day {
	idx := atomic.AddUint64(&dayCounter, 1)
	date := timeline.DateOf(referenceTime.AddDate(0, 0, int(idx)))
	day := persistence.Day{
		ID:        fmt.Sprintf("day-%03d", idx),
		Date:      date,
		OwnerID:   "owner-001",
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&day)
	}
	return day
}

// WithDayID overrides the generated day identifier.
func WithDayID(id string) DayOption {
	return func(d *persistence.Day) { d.ID = id }
}

// WithDayDate overrides the calendar date.
func WithDayDate(date timeline.Date) DayOption {
	return func(d *persistence.Day) { d.Date = date }
}

// WithDayOwner overrides the owner identifier.
func WithDayOwner(ownerID string) DayOption {
	return func(d *persistence.Day) { d.OwnerID = ownerID }
}

// WithDayEvents sets the read-time event projection.
func WithDayEvents(events ...persistence.Event) DayOption {
	return func(d *persistence.Day) { d.Events = events }
}

// StringPtr returns a pointer to s, for building sparse patches.
func StringPtr(s string) *string { return &s }

// TimePtr returns a pointer to t, for building sparse patches.
func TimePtr(t time.Time) *time.Time { return &t }
