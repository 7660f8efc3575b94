package testfixtures

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/event-planner/internal/persistence"
	"github.com/example/event-planner/internal/timeline"
)

// MemoryStore is an in-memory implementation of the persistence
// repositories for service-level tests. It maintains the event-day join the
// same way the SQL backends do and counts mutation calls so tests can assert
// that no-op operations touch nothing.
type MemoryStore struct {
	mu     sync.Mutex
	days   map[string]persistence.Day
	events map[string]persistence.Event

	// Mutation call counters.
	SaveDayCalls    int
	SaveDaysCalls   int
	SaveEventCalls  int
	DeleteEventCall int

	// BeforeSaveDay runs before SaveDay outside the store lock; tests use
	// it to inject failures or interleave a competing write.
	BeforeSaveDay func(day persistence.Day) error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		days:   make(map[string]persistence.Day),
		events: make(map[string]persistence.Event),
	}
}

var _ persistence.DayRepository = (*MemoryStore)(nil)
var _ persistence.EventRepository = (*MemoryStore)(nil)

// FindDayByDateAndOwner returns the bucket for the date/owner pair.
func (s *MemoryStore) FindDayByDateAndOwner(ctx context.Context, date timeline.Date, ownerID string) (persistence.Day, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, day := range s.days {
		if day.OwnerID == ownerID && day.Date == date {
			return s.projectDay(day), nil
		}
	}
	return persistence.Day{}, persistence.ErrNotFound
}

// FindDaysByDatesAndOwner returns existing buckets for the dates, ordered by
// date. Missing dates are simply absent from the result.
func (s *MemoryStore) FindDaysByDatesAndOwner(ctx context.Context, dates []timeline.Date, ownerID string) ([]persistence.Day, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[timeline.Date]struct{}, len(dates))
	for _, date := range dates {
		wanted[date] = struct{}{}
	}

	found := make([]persistence.Day, 0, len(dates))
	for _, day := range s.days {
		if day.OwnerID != ownerID {
			continue
		}
		if _, ok := wanted[day.Date]; ok {
			found = append(found, s.projectDay(day))
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Date.Before(found[j].Date) })
	return found, nil
}

// SaveDay upserts a bucket. A new day whose date/owner pair already exists
// returns the existing bucket, mirroring the unique-constraint behaviour of
// the SQL backends.
func (s *MemoryStore) SaveDay(ctx context.Context, day persistence.Day) (persistence.Day, error) {
	if s.BeforeSaveDay != nil {
		if err := s.BeforeSaveDay(day); err != nil {
			return persistence.Day{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveDayCalls++
	return s.saveDayLocked(day)
}

// SaveDays upserts every bucket in order.
func (s *MemoryStore) SaveDays(ctx context.Context, days []persistence.Day) ([]persistence.Day, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveDaysCalls++

	saved := make([]persistence.Day, 0, len(days))
	for _, day := range days {
		stored, err := s.saveDayLocked(day)
		if err != nil {
			return nil, err
		}
		saved = append(saved, stored)
	}
	return saved, nil
}

func (s *MemoryStore) saveDayLocked(day persistence.Day) (persistence.Day, error) {
	if existing, ok := s.days[day.ID]; ok {
		existing.Archived = day.Archived
		s.days[day.ID] = existing
		return s.projectDay(existing), nil
	}
	for _, existing := range s.days {
		if existing.OwnerID == day.OwnerID && existing.Date == day.Date {
			return s.projectDay(existing), nil
		}
	}
	day.Events = nil
	s.days[day.ID] = day
	return s.projectDay(day), nil
}

// FindEventByID returns the stored event.
func (s *MemoryStore) FindEventByID(ctx context.Context, id string) (persistence.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return persistence.Event{}, persistence.ErrNotFound
	}
	return cloneEvent(event), nil
}

// FindEventsByOwner returns the owner's events ordered by start instant.
func (s *MemoryStore) FindEventsByOwner(ctx context.Context, ownerID string) ([]persistence.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]persistence.Event, 0)
	for _, event := range s.events {
		if event.OwnerID == ownerID {
			events = append(events, cloneEvent(event))
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}

// FindEventsByOwnerInRange returns events overlapping [startUTC, endUTC).
func (s *MemoryStore) FindEventsByOwnerInRange(ctx context.Context, ownerID string, startUTC, endUTC time.Time) ([]persistence.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]persistence.Event, 0)
	for _, event := range s.events {
		if event.OwnerID != ownerID {
			continue
		}
		if event.Start.Before(endUTC) && startUTC.Before(event.End) {
			events = append(events, cloneEvent(event))
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}

// SaveEvent upserts the event and reconciles its bucket membership.
func (s *MemoryStore) SaveEvent(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveEventCalls++

	s.events[event.ID] = cloneEvent(event)
	return cloneEvent(event), nil
}

// DeleteEvent removes the event; buckets outlive it.
func (s *MemoryStore) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeleteEventCall++

	if _, ok := s.events[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.events, id)
	return nil
}

// DayCount reports the number of stored buckets.
func (s *MemoryStore) DayCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.days)
}

// EventCount reports the number of stored events.
func (s *MemoryStore) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// ResetCounters clears the mutation counters without touching stored data.
func (s *MemoryStore) ResetCounters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveDayCalls = 0
	s.SaveDaysCalls = 0
	s.SaveEventCalls = 0
	s.DeleteEventCall = 0
}

// projectDay attaches the events linked to the day, derived from each
// event's DayIDs set, mirroring the join projection of the SQL backends.
func (s *MemoryStore) projectDay(day persistence.Day) persistence.Day {
	projected := day
	projected.Events = nil
	for _, event := range s.events {
		for _, dayID := range event.DayIDs {
			if dayID == day.ID {
				projected.Events = append(projected.Events, cloneEvent(event))
				break
			}
		}
	}
	sort.Slice(projected.Events, func(i, j int) bool {
		return projected.Events[i].Start.Before(projected.Events[j].Start)
	})
	return projected
}

func cloneEvent(event persistence.Event) persistence.Event {
	clone := event
	clone.DayIDs = append([]string(nil), event.DayIDs...)
	return clone
}
