package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/example/event-planner/internal/persistence"
)

// EventRepository implements persistence.EventRepository on PostgreSQL. It
// owns the event_days join relation the same way the SQLite backend does:
// SaveEvent reconciles join rows against the event's DayIDs and deletion
// cascades the rows away.
type EventRepository struct {
	q Querier
}

// NewEventRepository creates a PostgreSQL-backed event repository over q,
// which may be the store's pool or a transaction from Store.WithTransaction.
func NewEventRepository(q Querier) *EventRepository {
	return &EventRepository{q: q}
}

// FindEventByID returns the event with its linked day ids, or
// persistence.ErrNotFound.
func (r *EventRepository) FindEventByID(ctx context.Context, id string) (persistence.Event, error) {
	row := r.q.QueryRow(ctx,
		`SELECT id, name, owner_id, start_utc, end_utc, display_zone, description, created_at, updated_at
		 FROM events WHERE id = $1`, id)

	event, err := scanEvent(row)
	if err != nil {
		return persistence.Event{}, err
	}

	dayIDs, err := r.dayIDsFor(ctx, event.ID)
	if err != nil {
		return persistence.Event{}, err
	}
	event.DayIDs = dayIDs
	return event, nil
}

// FindEventsByOwner returns every event owned by ownerID, ordered by start
// instant, each with its linked day ids.
func (r *EventRepository) FindEventsByOwner(ctx context.Context, ownerID string) ([]persistence.Event, error) {
	return r.findEvents(ctx,
		`SELECT id, name, owner_id, start_utc, end_utc, display_zone, description, created_at, updated_at
		 FROM events WHERE owner_id = $1 ORDER BY start_utc, id`, ownerID)
}

// FindEventsByOwnerInRange returns the owner's events whose [start, end)
// interval overlaps [startUTC, endUTC), ordered by start instant.
func (r *EventRepository) FindEventsByOwnerInRange(ctx context.Context, ownerID string, startUTC, endUTC time.Time) ([]persistence.Event, error) {
	return r.findEvents(ctx,
		`SELECT id, name, owner_id, start_utc, end_utc, display_zone, description, created_at, updated_at
		 FROM events WHERE owner_id = $1 AND start_utc < $2 AND end_utc > $3 ORDER BY start_utc, id`,
		ownerID, endUTC.UTC(), startUTC.UTC())
}

// SaveEvent upserts the event row and reconciles the event_days join
// relation against event.DayIDs.
func (r *EventRepository) SaveEvent(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	if event.ID == "" {
		return persistence.Event{}, fmt.Errorf("postgres: %w: event id must be assigned before save", persistence.ErrConstraintViolation)
	}

	var description *string
	if event.Description != "" {
		description = &event.Description
	}

	_, err := r.q.Exec(ctx,
		`INSERT INTO events (id, name, owner_id, start_utc, end_utc, display_zone, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			start_utc = EXCLUDED.start_utc,
			end_utc = EXCLUDED.end_utc,
			display_zone = EXCLUDED.display_zone,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at`,
		event.ID, event.Name, event.OwnerID,
		event.Start.UTC(), event.End.UTC(), event.DisplayZone,
		description, event.CreatedAt.UTC(), event.UpdatedAt.UTC())
	if err != nil {
		return persistence.Event{}, mapError(err)
	}

	if len(event.DayIDs) == 0 {
		if _, err := r.q.Exec(ctx, `DELETE FROM event_days WHERE event_id = $1`, event.ID); err != nil {
			return persistence.Event{}, mapError(err)
		}
		return event, nil
	}

	if _, err := r.q.Exec(ctx,
		`DELETE FROM event_days WHERE event_id = $1 AND day_id <> ALL($2)`,
		event.ID, event.DayIDs); err != nil {
		return persistence.Event{}, mapError(err)
	}
	for _, dayID := range event.DayIDs {
		if _, err := r.q.Exec(ctx,
			`INSERT INTO event_days (event_id, day_id) VALUES ($1, $2)
			 ON CONFLICT (event_id, day_id) DO NOTHING`,
			event.ID, dayID); err != nil {
			return persistence.Event{}, mapError(err)
		}
	}
	return event, nil
}

// DeleteEvent removes the event; the schema cascades the deletion to its
// join rows so every bucket back-reference is detached with it.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *EventRepository) findEvents(ctx context.Context, query string, args ...any) ([]persistence.Event, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var events []persistence.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	for i := range events {
		dayIDs, err := r.dayIDsFor(ctx, events[i].ID)
		if err != nil {
			return nil, err
		}
		events[i].DayIDs = dayIDs
	}
	return events, nil
}

func (r *EventRepository) dayIDsFor(ctx context.Context, eventID string) ([]string, error) {
	rows, err := r.q.Query(ctx,
		`SELECT day_id FROM event_days WHERE event_id = $1 ORDER BY day_id`, eventID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapError(err)
		}
		ids = append(ids, id)
	}
	return ids, mapError(rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event       persistence.Event
		description *string
	)
	if err := row.Scan(&event.ID, &event.Name, &event.OwnerID,
		&event.Start, &event.End, &event.DisplayZone,
		&description, &event.CreatedAt, &event.UpdatedAt); err != nil {
		return persistence.Event{}, mapError(err)
	}
	if description != nil {
		event.Description = *description
	}
	event.Start = event.Start.UTC()
	event.End = event.End.UTC()
	return event, nil
}
