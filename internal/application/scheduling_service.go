package application

import (
	"context"
	"fmt"
	"time"

	"github.com/example/event-planner/internal/persistence"
	"github.com/example/event-planner/internal/schedule"
	"github.com/example/event-planner/internal/timeline"
)

// SchedulingService combines time normalization, bucket materialization and
// conflict checking behind a single entry point. It only reads and creates
// buckets; it never mutates event state, so a failed validation leaves no
// partial effects beyond freshly created (and harmlessly empty) buckets.
type SchedulingService struct {
	days *DayService
}

// NewSchedulingService wires the scheduling validator.
func NewSchedulingService(days *DayService) *SchedulingService {
	return &SchedulingService{days: days}
}

// ValidateAndBucket asserts that [startUTC, endUTC) is a valid interval,
// materializes the bucket for every UTC date it touches, and checks each
// bucket for conflicts, excluding excludeEventID (empty on creation) so an
// event never conflicts with itself during its own update.
//
// It fails fast: the first invalid interval or conflict aborts the whole
// operation. On success the touched buckets are returned ordered by date;
// callers are responsible for linking and persisting.
func (s *SchedulingService) ValidateAndBucket(ctx context.Context, ownerID string, startUTC, endUTC time.Time, excludeEventID string) ([]persistence.Day, error) {
	if s == nil || s.days == nil {
		return nil, fmt.Errorf("day service not configured")
	}

	if !startUTC.Before(endUTC) {
		return nil, &InvalidIntervalError{Start: startUTC, End: endUTC}
	}

	dates := timeline.DatesTouched(startUTC, endUTC)
	days, err := s.days.GetOrCreateRange(ctx, dates, ownerID)
	if err != nil {
		return nil, err
	}

	for _, day := range days {
		if conflict, found := schedule.FindConflict(toScheduleEvents(day.Events), startUTC, endUTC, excludeEventID); found {
			return nil, &ConflictError{
				EventID: conflict.EventID,
				Name:    conflict.Name,
				Start:   conflict.Start,
				End:     conflict.End,
			}
		}
	}

	return days, nil
}

func toScheduleEvents(events []persistence.Event) []schedule.Event {
	if len(events) == 0 {
		return nil
	}
	out := make([]schedule.Event, len(events))
	for i, e := range events {
		out[i] = schedule.Event{ID: e.ID, Name: e.Name, Start: e.Start, End: e.End}
	}
	return out
}
