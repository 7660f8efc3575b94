package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/event-planner/internal/persistence"
	"github.com/example/event-planner/internal/timeline"
)

// Timestamps are stored as RFC3339 UTC text. The uniform "Z" suffix keeps
// the strings lexicographically comparable, which the schema's interval
// CHECK and the range queries rely on. Precision is whole seconds, the
// granularity timeline.NormalizeUTC guarantees on every instant the
// services hand down.
const timeFormat = time.RFC3339

// DayRepository implements persistence.DayRepository on SQLite.
type DayRepository struct {
	pool *ConnectionPool
}

// NewDayRepository creates a SQLite-backed day repository.
func NewDayRepository(pool *ConnectionPool) *DayRepository {
	return &DayRepository{pool: pool}
}

// FindDayByDateAndOwner returns the bucket for the given key, with its
// events loaded, or persistence.ErrNotFound.
func (r *DayRepository) FindDayByDateAndOwner(ctx context.Context, date timeline.Date, ownerID string) (persistence.Day, error) {
	days, err := r.FindDaysByDatesAndOwner(ctx, []timeline.Date{date}, ownerID)
	if err != nil {
		return persistence.Day{}, err
	}
	if len(days) == 0 {
		return persistence.Day{}, persistence.ErrNotFound
	}
	return days[0], nil
}

// FindDaysByDatesAndOwner returns the existing buckets among the requested
// dates for one owner, ordered by date, each with its events loaded. Dates
// with no bucket are simply absent from the result.
func (r *DayRepository) FindDaysByDatesAndOwner(ctx context.Context, dates []timeline.Date, ownerID string) ([]persistence.Day, error) {
	if len(dates) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(dates))
	args := make([]any, 0, len(dates)+1)
	args = append(args, ownerID)
	for i, d := range dates {
		placeholders[i] = "?"
		args = append(args, d.String())
	}

	query := fmt.Sprintf(
		`SELECT id, date, owner_id, archived, created_at FROM days
		 WHERE owner_id = ? AND date IN (%s) ORDER BY date`,
		strings.Join(placeholders, ", "),
	)

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var days []persistence.Day
	for rows.Next() {
		day, err := scanDay(rows)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	if err := r.loadEvents(ctx, days); err != nil {
		return nil, err
	}
	return days, nil
}

// SaveDay persists a bucket. A bucket whose id is already stored has its
// archived flag updated; otherwise the row is inserted, and a concurrent
// insert losing the (date, owner_id) unique race is absorbed by returning
// the winning row instead of an error.
func (r *DayRepository) SaveDay(ctx context.Context, day persistence.Day) (persistence.Day, error) {
	if day.ID == "" {
		return persistence.Day{}, fmt.Errorf("sqlite: %w: day id must be assigned before save", persistence.ErrConstraintViolation)
	}

	var saved persistence.Day
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE days SET archived = ? WHERE id = ?`, boolToInt(day.Archived), day.ID)
		if err != nil {
			return mapError(err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return mapError(err)
		} else if n == 1 {
			saved = day
			return nil
		}

		createdAt := day.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err = tx.Exec(
			`INSERT INTO days (id, date, owner_id, archived, created_at) VALUES (?, ?, ?, ?, ?)`,
			day.ID, day.Date.String(), day.OwnerID, boolToInt(day.Archived), createdAt.Format(timeFormat),
		)
		if err == nil {
			saved = day
			saved.CreatedAt = createdAt
			return nil
		}

		mapped := mapError(err)
		if !errors.Is(mapped, persistence.ErrDuplicate) {
			return mapped
		}

		// Lost the creation race; the bucket already exists for this key.
		row := tx.QueryRow(
			`SELECT id, date, owner_id, archived, created_at FROM days WHERE date = ? AND owner_id = ?`,
			day.Date.String(), day.OwnerID,
		)
		existing, err := scanDay(row)
		if err != nil {
			return err
		}
		saved = existing
		return nil
	})
	if err != nil {
		return persistence.Day{}, err
	}
	return saved, nil
}

// SaveDays persists each bucket in order, preserving the race-absorbing
// semantics of SaveDay.
func (r *DayRepository) SaveDays(ctx context.Context, days []persistence.Day) ([]persistence.Day, error) {
	saved := make([]persistence.Day, 0, len(days))
	for _, day := range days {
		s, err := r.SaveDay(ctx, day)
		if err != nil {
			return nil, err
		}
		saved = append(saved, s)
	}
	return saved, nil
}

// loadEvents populates the Events projection of each day. The nested events
// carry no DayIDs; membership is read from the join table per event via the
// event repository.
func (r *DayRepository) loadEvents(ctx context.Context, days []persistence.Day) error {
	if len(days) == 0 {
		return nil
	}

	placeholders := make([]string, len(days))
	args := make([]any, len(days))
	index := make(map[string]int, len(days))
	for i := range days {
		placeholders[i] = "?"
		args[i] = days[i].ID
		index[days[i].ID] = i
	}

	query := fmt.Sprintf(
		`SELECT ed.day_id, e.id, e.name, e.owner_id, e.start_utc, e.end_utc, e.display_zone, e.description, e.created_at, e.updated_at
		 FROM event_days ed JOIN events e ON e.id = ed.event_id
		 WHERE ed.day_id IN (%s) ORDER BY e.start_utc, e.id`,
		strings.Join(placeholders, ", "),
	)

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var dayID string
		event, err := scanEventAfter(rows, &dayID)
		if err != nil {
			return err
		}
		i, ok := index[dayID]
		if !ok {
			continue
		}
		days[i].Events = append(days[i].Events, event)
	}
	return mapError(rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDay(row rowScanner) (persistence.Day, error) {
	var (
		day       persistence.Day
		date      string
		archived  int
		createdAt string
	)
	if err := row.Scan(&day.ID, &date, &day.OwnerID, &archived, &createdAt); err != nil {
		return persistence.Day{}, mapError(err)
	}

	parsedDate, err := timeline.ParseDate(date)
	if err != nil {
		return persistence.Day{}, err
	}
	created, err := parseStoredTime(createdAt)
	if err != nil {
		return persistence.Day{}, err
	}

	day.Date = parsedDate
	day.Archived = archived != 0
	day.CreatedAt = created
	return day, nil
}

func parseStoredTime(value string) (time.Time, error) {
	t, err := time.Parse(timeFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: malformed stored timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
