package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/event-planner/internal/persistence"
)

// EventRepository implements persistence.EventRepository on SQLite. It owns
// the event_days join relation: SaveEvent reconciles the join rows against
// the event's DayIDs, and deleting an event cascades its join rows away.
type EventRepository struct {
	pool *ConnectionPool
}

// NewEventRepository creates a SQLite-backed event repository.
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{pool: pool}
}

// FindEventByID returns the event with its linked day ids, or
// persistence.ErrNotFound.
func (r *EventRepository) FindEventByID(ctx context.Context, id string) (persistence.Event, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, start_utc, end_utc, display_zone, description, created_at, updated_at
		 FROM events WHERE id = ?`, id)

	event, err := scanEvent(row)
	if err != nil {
		return persistence.Event{}, err
	}
	if err := r.loadDayIDs(ctx, []persistence.Event{event}, func(i int, ids []string) {
		event.DayIDs = ids
	}); err != nil {
		return persistence.Event{}, err
	}
	return event, nil
}

// FindEventsByOwner returns every event owned by ownerID, ordered by start
// instant, each with its linked day ids.
func (r *EventRepository) FindEventsByOwner(ctx context.Context, ownerID string) ([]persistence.Event, error) {
	return r.findEvents(ctx,
		`SELECT id, name, owner_id, start_utc, end_utc, display_zone, description, created_at, updated_at
		 FROM events WHERE owner_id = ? ORDER BY start_utc, id`, ownerID)
}

// FindEventsByOwnerInRange returns the owner's events whose [start, end)
// interval overlaps [startUTC, endUTC), ordered by start instant.
func (r *EventRepository) FindEventsByOwnerInRange(ctx context.Context, ownerID string, startUTC, endUTC time.Time) ([]persistence.Event, error) {
	return r.findEvents(ctx,
		`SELECT id, name, owner_id, start_utc, end_utc, display_zone, description, created_at, updated_at
		 FROM events WHERE owner_id = ? AND start_utc < ? AND end_utc > ? ORDER BY start_utc, id`,
		ownerID, endUTC.UTC().Format(timeFormat), startUTC.UTC().Format(timeFormat))
}

// SaveEvent inserts or updates the event row and reconciles the event_days
// join relation against event.DayIDs within one transaction, so membership
// can never be recorded on only one side.
func (r *EventRepository) SaveEvent(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	if event.ID == "" {
		return persistence.Event{}, fmt.Errorf("sqlite: %w: event id must be assigned before save", persistence.ErrConstraintViolation)
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var description sql.NullString
		if event.Description != "" {
			description = sql.NullString{String: event.Description, Valid: true}
		}

		_, err := tx.Exec(
			`INSERT INTO events (id, name, owner_id, start_utc, end_utc, display_zone, description, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				start_utc = excluded.start_utc,
				end_utc = excluded.end_utc,
				display_zone = excluded.display_zone,
				description = excluded.description,
				updated_at = excluded.updated_at`,
			event.ID,
			event.Name,
			event.OwnerID,
			event.Start.UTC().Format(timeFormat),
			event.End.UTC().Format(timeFormat),
			event.DisplayZone,
			description,
			event.CreatedAt.UTC().Format(timeFormat),
			event.UpdatedAt.UTC().Format(timeFormat),
		)
		if err != nil {
			return mapError(err)
		}

		return r.reconcileDayLinks(tx, event.ID, event.DayIDs)
	})
	if err != nil {
		return persistence.Event{}, err
	}
	return event, nil
}

// DeleteEvent removes the event; the schema cascades the deletion to its
// join rows so every bucket back-reference is detached with it.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	res, err := r.pool.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *EventRepository) reconcileDayLinks(tx *sql.Tx, eventID string, dayIDs []string) error {
	if len(dayIDs) == 0 {
		_, err := tx.Exec(`DELETE FROM event_days WHERE event_id = ?`, eventID)
		return mapError(err)
	}

	placeholders := make([]string, len(dayIDs))
	args := make([]any, 0, len(dayIDs)+1)
	args = append(args, eventID)
	for i, id := range dayIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	_, err := tx.Exec(
		fmt.Sprintf(`DELETE FROM event_days WHERE event_id = ? AND day_id NOT IN (%s)`, strings.Join(placeholders, ", ")),
		args...,
	)
	if err != nil {
		return mapError(err)
	}

	for _, dayID := range dayIDs {
		if _, err := tx.Exec(
			`INSERT INTO event_days (event_id, day_id) VALUES (?, ?) ON CONFLICT (event_id, day_id) DO NOTHING`,
			eventID, dayID,
		); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (r *EventRepository) findEvents(ctx context.Context, query string, args ...any) ([]persistence.Event, error) {
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
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

	if err := r.loadDayIDs(ctx, events, func(i int, ids []string) {
		events[i].DayIDs = ids
	}); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *EventRepository) loadDayIDs(ctx context.Context, events []persistence.Event, assign func(i int, ids []string)) error {
	if len(events) == 0 {
		return nil
	}

	placeholders := make([]string, len(events))
	args := make([]any, len(events))
	index := make(map[string]int, len(events))
	for i := range events {
		placeholders[i] = "?"
		args[i] = events[i].ID
		index[events[i].ID] = i
	}

	rows, err := r.pool.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT event_id, day_id FROM event_days WHERE event_id IN (%s) ORDER BY day_id`, strings.Join(placeholders, ", ")),
		args...,
	)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	ids := make(map[string][]string, len(events))
	for rows.Next() {
		var eventID, dayID string
		if err := rows.Scan(&eventID, &dayID); err != nil {
			return mapError(err)
		}
		ids[eventID] = append(ids[eventID], dayID)
	}
	if err := rows.Err(); err != nil {
		return mapError(err)
	}

	for eventID, dayIDs := range ids {
		if i, ok := index[eventID]; ok {
			assign(i, dayIDs)
		}
	}
	return nil
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	return scanEventAfter(row)
}

// scanEventAfter scans an event row, optionally preceded by extra leading
// columns (used by the day repository's join query).
func scanEventAfter(row rowScanner, leading ...any) (persistence.Event, error) {
	var (
		event       persistence.Event
		startUTC    string
		endUTC      string
		description sql.NullString
		createdAt   string
		updatedAt   string
	)

	dest := append([]any{}, leading...)
	dest = append(dest,
		&event.ID, &event.Name, &event.OwnerID,
		&startUTC, &endUTC, &event.DisplayZone,
		&description, &createdAt, &updatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return persistence.Event{}, mapError(err)
	}

	var err error
	if event.Start, err = parseStoredTime(startUTC); err != nil {
		return persistence.Event{}, err
	}
	if event.End, err = parseStoredTime(endUTC); err != nil {
		return persistence.Event{}, err
	}
	if event.CreatedAt, err = parseStoredTime(createdAt); err != nil {
		return persistence.Event{}, err
	}
	if event.UpdatedAt, err = parseStoredTime(updatedAt); err != nil {
		return persistence.Event{}, err
	}
	event.Description = description.String
	return event, nil
}
