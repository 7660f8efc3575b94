package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/event-planner/internal/ics"
	"github.com/example/event-planner/internal/persistence"
	"github.com/example/event-planner/internal/timeline"
)

const (
	maxEventNameLength        = 50
	maxEventDescriptionLength = 255
)

// ScheduleValidator captures the validation entry point the event service
// depends on.
type ScheduleValidator interface {
	ValidateAndBucket(ctx context.Context, ownerID string, startUTC, endUTC time.Time, excludeEventID string) ([]persistence.Day, error)
}

// CreateEventInput carries the fields for a new event. Start and End keep
// the zone they were authored in; the service normalizes them to UTC and
// records the start zone for display.
type CreateEventInput struct {
	OwnerID     string
	Name        string
	Start       time.Time
	End         time.Time
	Description string
}

// EventPatch is a sparse update request. Nil fields leave the
// corresponding event field unchanged; no field is clearable.
type EventPatch struct {
	Name        *string
	Start       *time.Time
	End         *time.Time
	Description *string
}

// EventService drives the event lifecycle: creation, partial update,
// deletion and queries. All mutation of the event-day relation goes through
// here so both sides change as one logical step.
type EventService struct {
	events      persistence.EventRepository
	days        *DayService
	validator   ScheduleValidator
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventService wires dependencies for event operations.
func NewEventService(events persistence.EventRepository, days *DayService, validator ScheduleValidator, idGenerator func() string, now func() time.Time) *EventService {
	return NewEventServiceWithLogger(events, days, validator, idGenerator, now, nil)
}

// NewEventServiceWithLogger is NewEventService with an explicit base logger.
func NewEventServiceWithLogger(events persistence.EventRepository, days *DayService, validator ScheduleValidator, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EventService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &EventService{
		events:      events,
		days:        days,
		validator:   validator,
		idGenerator: idGenerator,
		now:         now,
		logger:      logger,
	}
}

// CreateEvent validates the request, materializes and checks every touched
// day bucket, then persists the event and its bucket links. Any failure
// before the persist step leaves no new event behind.
func (s *EventService) CreateEvent(ctx context.Context, input CreateEventInput) (persistence.Event, error) {
	if s == nil || s.events == nil {
		return persistence.Event{}, fmt.Errorf("event repository not configured")
	}

	vErr := &ValidationError{}
	name := strings.TrimSpace(input.Name)
	validateEventName(name, vErr)
	validateEventDescription(input.Description, vErr)
	if input.OwnerID == "" {
		vErr.add("owner_id", "owner is required")
	}
	if vErr.HasErrors() {
		return persistence.Event{}, vErr
	}

	startUTC := timeline.NormalizeUTC(input.Start)
	endUTC := timeline.NormalizeUTC(input.End)

	logger := serviceLogger(ctx, s.logger, "event", "create", "owner_id", input.OwnerID)
	logger.Info("creating event", "name", name, "start", startUTC, "end", endUTC)

	days, err := s.validator.ValidateAndBucket(ctx, input.OwnerID, startUTC, endUTC, "")
	if err != nil {
		logger.Info("event creation rejected", "kind", ErrorKind(err), "error", err)
		return persistence.Event{}, err
	}

	now := s.now().UTC()
	event := persistence.Event{
		ID:          s.idGenerator(),
		Name:        name,
		OwnerID:     input.OwnerID,
		Start:       startUTC,
		End:         endUTC,
		DisplayZone: displayZone(input.Start),
		Description: input.Description,
		DayIDs:      dayIDs(days),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	saved, err := s.events.SaveEvent(ctx, event)
	if err != nil {
		return persistence.Event{}, err
	}
	if _, err := s.days.SaveAllDays(ctx, days); err != nil {
		return persistence.Event{}, err
	}

	logger.Info("event created", "event_id", saved.ID, "buckets", len(days))
	return saved, nil
}

// GetEvent returns the event with the given id.
func (s *EventService) GetEvent(ctx context.Context, eventID string) (persistence.Event, error) {
	event, err := s.events.FindEventByID(ctx, eventID)
	if err != nil {
		return persistence.Event{}, mapEventRepoError(err)
	}
	return event, nil
}

// ListOwnerEvents returns every event owned by ownerID ordered by start
// instant.
func (s *EventService) ListOwnerEvents(ctx context.Context, ownerID string) ([]persistence.Event, error) {
	return s.events.FindEventsByOwner(ctx, ownerID)
}

// ListEventsOnDate returns the owner's events intersecting the given
// calendar date as observed in zone. The zoned day is converted to a UTC
// range, so an event authored elsewhere still appears on the local day it
// overlaps.
func (s *EventService) ListEventsOnDate(ctx context.Context, ownerID string, date timeline.Date, zone *time.Location) ([]persistence.Event, error) {
	if zone == nil {
		zone = time.UTC
	}
	startOfDay := time.Date(date.Year, date.Month, date.Day, 0, 0, 0, 0, zone)
	endOfDay := startOfDay.AddDate(0, 0, 1)
	return s.events.FindEventsByOwnerInRange(ctx, ownerID, startOfDay.UTC(), endOfDay.UTC())
}

// UpdateEvent applies a sparse patch. Non-time fields are assigned when
// present and different; a changed time range is re-validated excluding the
// event's own id and the bucket membership delta is reconciled on both
// sides. A patch that changes nothing performs no persistence calls and
// returns the stored event unchanged.
func (s *EventService) UpdateEvent(ctx context.Context, eventID string, patch EventPatch) (persistence.Event, error) {
	if s == nil || s.events == nil {
		return persistence.Event{}, fmt.Errorf("event repository not configured")
	}

	event, err := s.events.FindEventByID(ctx, eventID)
	if err != nil {
		return persistence.Event{}, mapEventRepoError(err)
	}

	logger := serviceLogger(ctx, s.logger, "event", "update", "event_id", eventID)

	outcome, err := applyEventPatch(ctx, &event, patch, s.validator)
	if err != nil {
		logger.Info("event update rejected", "kind", ErrorKind(err), "error", err)
		return persistence.Event{}, err
	}

	if !outcome.updated {
		logger.Info("no changes detected; skipping persistence")
		return event, nil
	}

	if outcome.newDays != nil {
		event.DayIDs = dayIDs(outcome.newDays)
		if _, err := s.days.SaveAllDays(ctx, outcome.newDays); err != nil {
			return persistence.Event{}, err
		}
	}

	event.UpdatedAt = s.now().UTC()
	saved, err := s.events.SaveEvent(ctx, event)
	if err != nil {
		return persistence.Event{}, err
	}

	logger.Info("event updated", "time_changed", outcome.newDays != nil)
	return saved, nil
}

// DeleteEvent removes the event and detaches it from every bucket it
// belonged to. The buckets themselves outlive the event.
func (s *EventService) DeleteEvent(ctx context.Context, eventID string) error {
	if err := s.events.DeleteEvent(ctx, eventID); err != nil {
		return mapEventRepoError(err)
	}
	serviceLogger(ctx, s.logger, "event", "delete", "event_id", eventID).Info("event deleted")
	return nil
}

// ExportCalendar serializes the owner's events to an iCalendar document.
func (s *EventService) ExportCalendar(ctx context.Context, ownerID, calendarName string) (string, error) {
	events, err := s.events.FindEventsByOwner(ctx, ownerID)
	if err != nil {
		return "", err
	}
	return ics.Export(calendarName, events)
}

// Field limits count characters, not bytes, so multibyte names get the
// same headroom as ASCII ones.
func validateEventName(name string, vErr *ValidationError) {
	if name == "" {
		vErr.add("name", "name is required")
	} else if utf8.RuneCountInString(name) > maxEventNameLength {
		vErr.add("name", fmt.Sprintf("name must be at most %d characters", maxEventNameLength))
	}
}

func validateEventDescription(description string, vErr *ValidationError) {
	if utf8.RuneCountInString(description) > maxEventDescriptionLength {
		vErr.add("description", fmt.Sprintf("description must be at most %d characters", maxEventDescriptionLength))
	}
}

// displayZone records the zone an event was authored in, for display only.
func displayZone(t time.Time) string {
	if loc := t.Location(); loc != nil {
		return loc.String()
	}
	return time.UTC.String()
}

func dayIDs(days []persistence.Day) []string {
	ids := make([]string, len(days))
	for i, day := range days {
		ids[i] = day.ID
	}
	sort.Strings(ids)
	return ids
}

func mapEventRepoError(err error) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrEventNotFound
	}
	return err
}
