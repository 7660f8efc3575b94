package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/event-planner/internal/testfixtures"
	"github.com/example/event-planner/internal/timeline"
)

func newEventServiceUnderTest(store *testfixtures.MemoryStore) *EventService {
	dayService := newDayServiceUnderTest(store)
	validator := NewSchedulingService(dayService)
	clock := testfixtures.NewClock(time.Time{})
	generator := testfixtures.NewIDGenerator("event")
	return NewEventService(store, dayService, validator, generator.NextFunc(), clock.NowFunc())
}

func TestEventService_CreateEvent(t *testing.T) {
	t.Parallel()

	t.Run("normalizes zoned input and links every touched bucket", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewMemoryStore()
		service := newEventServiceUnderTest(store)
		ctx := context.Background()

		jst := time.FixedZone("JST", 9*60*60)
		// 23:00-25:00 JST is 14:00-16:00 UTC, a single UTC date.
		start := time.Date(2026, time.April, 10, 23, 0, 0, 0, jst)

		created, err := service.CreateEvent(ctx, CreateEventInput{
			OwnerID:     "owner-1",
			Name:        "Release party",
			Start:       start,
			End:         start.Add(2 * time.Hour),
			Description: "Snacks provided",
		})
		if err != nil {
			t.Fatalf("CreateEvent returned error: %v", err)
		}

		if created.ID == "" {
			t.Fatal("expected a generated event id")
		}
		wantStart := time.Date(2026, time.April, 10, 14, 0, 0, 0, time.UTC)
		if !created.Start.Equal(wantStart) || created.Start.Location() != time.UTC {
			t.Fatalf("expected normalized start %v, got %v", wantStart, created.Start)
		}
		if created.DisplayZone != "JST" {
			t.Fatalf("expected display zone JST, got %q", created.DisplayZone)
		}
		if len(created.DayIDs) != 1 {
			t.Fatalf("expected 1 linked bucket, got %d", len(created.DayIDs))
		}

		day, err := store.FindDayByDateAndOwner(ctx, timeline.Date{Year: 2026, Month: time.April, Day: 10}, "owner-1")
		if err != nil {
			t.Fatalf("expected the bucket to exist: %v", err)
		}
		if len(day.Events) != 1 || day.Events[0].ID != created.ID {
			t.Fatalf("expected bucket to project the event, got %+v", day.Events)
		}
	})

	t.Run("a multi-day event is linked on both sides of midnight", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewMemoryStore()
		service := newEventServiceUnderTest(store)
		ctx := context.Background()

		created, err := service.CreateEvent(ctx, CreateEventInput{
			OwnerID: "owner-1",
			Name:    "Overnight maintenance",
			Start:   time.Date(2026, time.April, 10, 23, 0, 0, 0, time.UTC),
			End:     time.Date(2026, time.April, 11, 1, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("CreateEvent returned error: %v", err)
		}
		if len(created.DayIDs) != 2 {
			t.Fatalf("expected 2 linked buckets, got %d", len(created.DayIDs))
		}
		for _, date := range []timeline.Date{
			{Year: 2026, Month: time.April, Day: 10},
			{Year: 2026, Month: time.April, Day: 11},
		} {
			day, err := store.FindDayByDateAndOwner(ctx, date, "owner-1")
			if err != nil {
				t.Fatalf("missing bucket for %v: %v", date, err)
			}
			if len(day.Events) != 1 || day.Events[0].ID != created.ID {
				t.Fatalf("bucket %v does not project the event: %+v", date, day.Events)
			}
		}
	})

	t.Run("sub-second inputs are truncated to whole seconds", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewMemoryStore()
		service := newEventServiceUnderTest(store)
		ctx := context.Background()

		created, err := service.CreateEvent(ctx, CreateEventInput{
			OwnerID: "owner-1",
			Name:    "Precise",
			Start:   time.Date(2026, time.April, 10, 9, 0, 0, 500_000_000, time.UTC),
			End:     time.Date(2026, time.April, 10, 10, 0, 0, 700_000_000, time.UTC),
		})
		if err != nil {
			t.Fatalf("CreateEvent returned error: %v", err)
		}
		if created.Start.Nanosecond() != 0 || created.End.Nanosecond() != 0 {
			t.Fatalf("expected whole-second instants, got %v - %v", created.Start, created.End)
		}

		// A later event starting inside the truncated end's second sees a
		// plain touching boundary, on every backend alike.
		if _, err := service.CreateEvent(ctx, CreateEventInput{
			OwnerID: "owner-1",
			Name:    "Next",
			Start:   time.Date(2026, time.April, 10, 10, 0, 0, 900_000_000, time.UTC),
			End:     time.Date(2026, time.April, 10, 11, 0, 0, 0, time.UTC),
		}); err != nil {
			t.Fatalf("touching interval after truncation should validate, got %v", err)
		}
	})

	t.Run("rejects invalid fields without persisting anything", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewMemoryStore()
		service := newEventServiceUnderTest(store)
		start := time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC)

		cases := []struct {
			name  string
			input CreateEventInput
			field string
		}{
			{
				name:  "empty name",
				input: CreateEventInput{OwnerID: "owner-1", Name: "   ", Start: start, End: start.Add(time.Hour)},
				field: "name",
			},
			{
				name:  "name too long",
				input: CreateEventInput{OwnerID: "owner-1", Name: strings.Repeat("x", 51), Start: start, End: start.Add(time.Hour)},
				field: "name",
			},
			{
				name:  "description too long",
				input: CreateEventInput{OwnerID: "owner-1", Name: "ok", Description: strings.Repeat("d", 256), Start: start, End: start.Add(time.Hour)},
				field: "description",
			},
			{
				name:  "missing owner",
				input: CreateEventInput{Name: "ok", Start: start, End: start.Add(time.Hour)},
				field: "owner_id",
			},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := service.CreateEvent(context.Background(), tc.input)
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if _, ok := vErr.FieldErrors[tc.field]; !ok {
					t.Fatalf("expected error on field %q, got %v", tc.field, vErr.FieldErrors)
				}
			})
		}

		if store.EventCount() != 0 || store.DayCount() != 0 {
			t.Fatal("rejected creations must not persist events or buckets")
		}
	})

	t.Run("accepts boundary lengths", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewMemoryStore()
		service := newEventServiceUnderTest(store)
		start := time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC)

		_, err := service.CreateEvent(context.Background(), CreateEventInput{
			OwnerID:     "owner-1",
			Name:        strings.Repeat("n", 50),
			Description: strings.Repeat("d", 255),
			Start:       start,
			End:         start.Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("boundary-length fields should validate, got %v", err)
		}
	})

	t.Run("field limits count characters, not bytes", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewMemoryStore()
		service := newEventServiceUnderTest(store)
		start := time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC)

		// 50 three-byte runes exceed the limit in bytes but not in
		// characters, so the event is accepted.
		_, err := service.CreateEvent(context.Background(), CreateEventInput{
			OwnerID:     "owner-1",
			Name:        strings.Repeat("予", 50),
			Description: strings.Repeat("定", 255),
			Start:       start,
			End:         start.Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("multibyte boundary-length fields should validate, got %v", err)
		}

		_, err = service.CreateEvent(context.Background(), CreateEventInput{
			OwnerID: "owner-1",
			Name:    strings.Repeat("予", 51),
			Start:   start.Add(2 * time.Hour),
			End:     start.Add(3 * time.Hour),
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error for 51-character name, got %v", err)
		}
		if _, ok := vErr.FieldErrors["name"]; !ok {
			t.Fatalf("expected name field error, got %+v", vErr.FieldErrors)
		}
	})

	t.Run("a conflicting interval leaves no new event behind", func(t *testing.T) {
		t.Parallel()
		store := testfixtures.NewMemoryStore()
		service := newEventServiceUnderTest(store)
		ctx := context.Background()
		start := time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC)

		if _, err := service.CreateEvent(ctx, CreateEventInput{
			OwnerID: "owner-1", Name: "First", Start: start, End: start.Add(time.Hour),
		}); err != nil {
			t.Fatalf("seed creation failed: %v", err)
		}

		_, err := service.CreateEvent(ctx, CreateEventInput{
			OwnerID: "owner-1", Name: "Second", Start: start.Add(30 * time.Minute), End: start.Add(90 * time.Minute),
		})
		var conflictErr *ConflictError
		if !errors.As(err, &conflictErr) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
		if conflictErr.Name != "First" {
			t.Fatalf("expected conflict with First, got %+v", conflictErr)
		}
		if store.EventCount() != 1 {
			t.Fatalf("expected only the seed event to remain, got %d", store.EventCount())
		}
	})
}

func TestEventService_UpdateEvent(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T) (*testfixtures.MemoryStore, *EventService, string) {
		t.Helper()
		store := testfixtures.NewMemoryStore()
		service := newEventServiceUnderTest(store)

		created, err := service.CreateEvent(context.Background(), CreateEventInput{
			OwnerID:     "owner-1",
			Name:        "Planning",
			Description: "Quarterly",
			Start:       time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC),
			End:         time.Date(2026, time.April, 10, 10, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("seed creation failed: %v", err)
		}
		store.ResetCounters()
		return store, service, created.ID
	}

	t.Run("updates name and description without touching buckets", func(t *testing.T) {
		t.Parallel()
		store, service, id := seed(t)

		updated, err := service.UpdateEvent(context.Background(), id, EventPatch{
			Name:        testfixtures.StringPtr("Planning v2"),
			Description: testfixtures.StringPtr("Rescoped"),
		})
		if err != nil {
			t.Fatalf("UpdateEvent returned error: %v", err)
		}
		if updated.Name != "Planning v2" || updated.Description != "Rescoped" {
			t.Fatalf("patch not applied: %+v", updated)
		}
		if store.SaveEventCalls != 1 {
			t.Fatalf("expected exactly one event save, got %d", store.SaveEventCalls)
		}
		if store.SaveDaysCalls != 0 || store.SaveDayCalls != 0 {
			t.Fatal("a non-time patch must not persist buckets")
		}
	})

	t.Run("a semantically empty patch performs no persistence calls", func(t *testing.T) {
		t.Parallel()
		store, service, id := seed(t)

		same := time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC)
		updated, err := service.UpdateEvent(context.Background(), id, EventPatch{
			Name:  testfixtures.StringPtr("Planning"),
			Start: testfixtures.TimePtr(same),
		})
		if err != nil {
			t.Fatalf("UpdateEvent returned error: %v", err)
		}
		if updated.Name != "Planning" {
			t.Fatalf("unexpected event state: %+v", updated)
		}
		if store.SaveEventCalls != 0 || store.SaveDaysCalls != 0 || store.SaveDayCalls != 0 {
			t.Fatalf("empty patch must not persist: events=%d days=%d day=%d",
				store.SaveEventCalls, store.SaveDaysCalls, store.SaveDayCalls)
		}
	})

	t.Run("an equal instant in another zone is still a no-op", func(t *testing.T) {
		t.Parallel()
		store, service, id := seed(t)

		jst := time.FixedZone("JST", 9*60*60)
		sameInstant := time.Date(2026, time.April, 10, 18, 0, 0, 0, jst)
		_, err := service.UpdateEvent(context.Background(), id, EventPatch{
			Start: testfixtures.TimePtr(sameInstant),
		})
		if err != nil {
			t.Fatalf("UpdateEvent returned error: %v", err)
		}
		if store.SaveEventCalls != 0 {
			t.Fatal("re-expressing the same instant must not persist")
		}
	})

	t.Run("moving the interval reconciles bucket membership", func(t *testing.T) {
		t.Parallel()
		store, service, id := seed(t)
		ctx := context.Background()

		newStart := time.Date(2026, time.April, 11, 9, 0, 0, 0, time.UTC)
		updated, err := service.UpdateEvent(ctx, id, EventPatch{
			Start: testfixtures.TimePtr(newStart),
			End:   testfixtures.TimePtr(newStart.Add(time.Hour)),
		})
		if err != nil {
			t.Fatalf("UpdateEvent returned error: %v", err)
		}
		if len(updated.DayIDs) != 1 {
			t.Fatalf("expected 1 linked bucket, got %d", len(updated.DayIDs))
		}

		oldDay, err := store.FindDayByDateAndOwner(ctx, timeline.Date{Year: 2026, Month: time.April, Day: 10}, "owner-1")
		if err != nil {
			t.Fatalf("old bucket should survive the move: %v", err)
		}
		if len(oldDay.Events) != 0 {
			t.Fatalf("old bucket must no longer project the event, got %+v", oldDay.Events)
		}

		newDay, err := store.FindDayByDateAndOwner(ctx, timeline.Date{Year: 2026, Month: time.April, Day: 11}, "owner-1")
		if err != nil {
			t.Fatalf("new bucket should exist: %v", err)
		}
		if len(newDay.Events) != 1 || newDay.Events[0].ID != id {
			t.Fatalf("new bucket must project the event, got %+v", newDay.Events)
		}
	})

	t.Run("an update overlapping only itself succeeds", func(t *testing.T) {
		t.Parallel()
		_, service, id := seed(t)

		// Shift by 30 minutes; the new interval overlaps the stored one.
		newStart := time.Date(2026, time.April, 10, 9, 30, 0, 0, time.UTC)
		updated, err := service.UpdateEvent(context.Background(), id, EventPatch{
			Start: testfixtures.TimePtr(newStart),
			End:   testfixtures.TimePtr(newStart.Add(time.Hour)),
		})
		if err != nil {
			t.Fatalf("self-overlapping update should succeed, got %v", err)
		}
		if !updated.Start.Equal(newStart) {
			t.Fatalf("expected start %v, got %v", newStart, updated.Start)
		}
	})

	t.Run("a conflicting move leaves the stored event unchanged", func(t *testing.T) {
		t.Parallel()
		store, service, id := seed(t)
		ctx := context.Background()

		other, err := service.CreateEvent(ctx, CreateEventInput{
			OwnerID: "owner-1",
			Name:    "Blocker",
			Start:   time.Date(2026, time.April, 10, 14, 0, 0, 0, time.UTC),
			End:     time.Date(2026, time.April, 10, 15, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("failed to create blocking event: %v", err)
		}

		_, err = service.UpdateEvent(ctx, id, EventPatch{
			Start: testfixtures.TimePtr(other.Start.Add(-30 * time.Minute)),
			End:   testfixtures.TimePtr(other.Start.Add(30 * time.Minute)),
		})
		var conflictErr *ConflictError
		if !errors.As(err, &conflictErr) {
			t.Fatalf("expected ConflictError, got %v", err)
		}

		stored, err := store.FindEventByID(ctx, id)
		if err != nil {
			t.Fatalf("stored event should remain: %v", err)
		}
		if !stored.Start.Equal(time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC)) {
			t.Fatalf("stored event must keep its original interval, got %v", stored.Start)
		}
	})

	t.Run("rejects invalid patch fields", func(t *testing.T) {
		t.Parallel()
		_, service, id := seed(t)

		_, err := service.UpdateEvent(context.Background(), id, EventPatch{
			Name: testfixtures.StringPtr("  "),
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("unknown event id maps to ErrEventNotFound", func(t *testing.T) {
		t.Parallel()
		_, service, _ := seed(t)

		_, err := service.UpdateEvent(context.Background(), "missing", EventPatch{})
		if !errors.Is(err, ErrEventNotFound) {
			t.Fatalf("expected ErrEventNotFound, got %v", err)
		}
	})
}

func TestEventService_DeleteEvent(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewMemoryStore()
	service := newEventServiceUnderTest(store)
	ctx := context.Background()

	created, err := service.CreateEvent(ctx, CreateEventInput{
		OwnerID: "owner-1",
		Name:    "Doomed",
		Start:   time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC),
		End:     time.Date(2026, time.April, 10, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed creation failed: %v", err)
	}

	if err := service.DeleteEvent(ctx, created.ID); err != nil {
		t.Fatalf("DeleteEvent returned error: %v", err)
	}

	if _, err := service.GetEvent(ctx, created.ID); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound after delete, got %v", err)
	}

	// The bucket outlives its events.
	day, err := store.FindDayByDateAndOwner(ctx, timeline.Date{Year: 2026, Month: time.April, Day: 10}, "owner-1")
	if err != nil {
		t.Fatalf("bucket should survive event deletion: %v", err)
	}
	if len(day.Events) != 0 {
		t.Fatalf("bucket must no longer project the deleted event: %+v", day.Events)
	}

	if err := service.DeleteEvent(ctx, created.ID); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound on second delete, got %v", err)
	}
}

func TestEventService_Listing(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewMemoryStore()
	service := newEventServiceUnderTest(store)
	ctx := context.Background()

	// 22:00-23:00 UTC on April 10 is the morning of April 11 in JST.
	lateNight, err := service.CreateEvent(ctx, CreateEventInput{
		OwnerID: "owner-1",
		Name:    "Late sync",
		Start:   time.Date(2026, time.April, 10, 22, 0, 0, 0, time.UTC),
		End:     time.Date(2026, time.April, 10, 23, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("failed to create event: %v", err)
	}
	if _, err := service.CreateEvent(ctx, CreateEventInput{
		OwnerID: "owner-1",
		Name:    "Morning sync",
		Start:   time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC),
		End:     time.Date(2026, time.April, 10, 10, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("failed to create event: %v", err)
	}

	t.Run("owner listing is ordered by start", func(t *testing.T) {
		events, err := service.ListOwnerEvents(ctx, "owner-1")
		if err != nil {
			t.Fatalf("ListOwnerEvents returned error: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
		if events[0].Name != "Morning sync" || events[1].Name != "Late sync" {
			t.Fatalf("unexpected order: %s then %s", events[0].Name, events[1].Name)
		}
	})

	t.Run("date listing follows the observer's zone", func(t *testing.T) {
		jst := time.FixedZone("JST", 9*60*60)
		april11 := timeline.Date{Year: 2026, Month: time.April, Day: 11}

		inJST, err := service.ListEventsOnDate(ctx, "owner-1", april11, jst)
		if err != nil {
			t.Fatalf("ListEventsOnDate returned error: %v", err)
		}
		if len(inJST) != 1 || inJST[0].ID != lateNight.ID {
			t.Fatalf("expected the late event on April 11 JST, got %+v", inJST)
		}

		inUTC, err := service.ListEventsOnDate(ctx, "owner-1", april11, time.UTC)
		if err != nil {
			t.Fatalf("ListEventsOnDate returned error: %v", err)
		}
		if len(inUTC) != 0 {
			t.Fatalf("expected no events on April 11 UTC, got %+v", inUTC)
		}
	})

	t.Run("nil zone defaults to UTC", func(t *testing.T) {
		april10 := timeline.Date{Year: 2026, Month: time.April, Day: 10}
		events, err := service.ListEventsOnDate(ctx, "owner-1", april10, nil)
		if err != nil {
			t.Fatalf("ListEventsOnDate returned error: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("expected both events on April 10 UTC, got %d", len(events))
		}
	})
}

func TestEventService_ExportCalendar(t *testing.T) {
	t.Parallel()

	store := testfixtures.NewMemoryStore()
	service := newEventServiceUnderTest(store)
	ctx := context.Background()

	if _, err := service.CreateEvent(ctx, CreateEventInput{
		OwnerID: "owner-1",
		Name:    "Demo day",
		Start:   time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC),
		End:     time.Date(2026, time.April, 10, 10, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("failed to create event: %v", err)
	}

	doc, err := service.ExportCalendar(ctx, "owner-1", "Team Calendar")
	if err != nil {
		t.Fatalf("ExportCalendar returned error: %v", err)
	}
	for _, want := range []string{"BEGIN:VCALENDAR", "SUMMARY:Demo day", "DTSTART:20260410T090000Z"} {
		if !strings.Contains(doc, want) {
			t.Fatalf("calendar missing %q:\n%s", want, doc)
		}
	}
}
