package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/example/event-planner/internal/persistence"
	"github.com/example/event-planner/internal/timeline"
)

// DayRepository implements persistence.DayRepository on PostgreSQL.
type DayRepository struct {
	q Querier
}

// NewDayRepository creates a PostgreSQL-backed day repository over q, which
// may be the store's pool or a transaction from Store.WithTransaction.
func NewDayRepository(q Querier) *DayRepository {
	return &DayRepository{q: q}
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
// dates for one owner, ordered by date, each with its events loaded. The
// day rows are locked FOR UPDATE so a conflict check against their events
// holds until the enclosing transaction ends.
func (r *DayRepository) FindDaysByDatesAndOwner(ctx context.Context, dates []timeline.Date, ownerID string) ([]persistence.Day, error) {
	if len(dates) == 0 {
		return nil, nil
	}

	dateStrings := make([]string, len(dates))
	for i, d := range dates {
		dateStrings[i] = d.String()
	}

	rows, err := r.q.Query(ctx,
		`SELECT id, date, owner_id, archived, created_at FROM days
		 WHERE owner_id = $1 AND date = ANY($2::date[])
		 ORDER BY date
		 FOR UPDATE`,
		ownerID, dateStrings)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var days []persistence.Day
	for rows.Next() {
		var (
			day  persistence.Day
			date time.Time
		)
		if err := rows.Scan(&day.ID, &date, &day.OwnerID, &day.Archived, &day.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		day.Date = timeline.DateOf(date.UTC())
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

// SaveDay persists a bucket. Creation races on the (date, owner_id) unique
// key are absorbed with ON CONFLICT DO NOTHING followed by a refetch of the
// winning row.
func (r *DayRepository) SaveDay(ctx context.Context, day persistence.Day) (persistence.Day, error) {
	if day.ID == "" {
		return persistence.Day{}, fmt.Errorf("postgres: %w: day id must be assigned before save", persistence.ErrConstraintViolation)
	}

	tag, err := r.q.Exec(ctx,
		`UPDATE days SET archived = $1 WHERE id = $2`, day.Archived, day.ID)
	if err != nil {
		return persistence.Day{}, mapError(err)
	}
	if tag.RowsAffected() == 1 {
		return day, nil
	}

	createdAt := day.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tag, err = r.q.Exec(ctx,
		`INSERT INTO days (id, date, owner_id, archived, created_at)
		 VALUES ($1, $2::date, $3, $4, $5)
		 ON CONFLICT (date, owner_id) DO NOTHING`,
		day.ID, day.Date.String(), day.OwnerID, day.Archived, createdAt)
	if err != nil {
		return persistence.Day{}, mapError(err)
	}
	if tag.RowsAffected() == 1 {
		day.CreatedAt = createdAt
		return day, nil
	}

	// Lost the creation race; return the winning row for this key.
	row := r.q.QueryRow(ctx,
		`SELECT id, date, owner_id, archived, created_at FROM days WHERE date = $1::date AND owner_id = $2`,
		day.Date.String(), day.OwnerID)

	var (
		winner persistence.Day
		date   time.Time
	)
	if err := row.Scan(&winner.ID, &date, &winner.OwnerID, &winner.Archived, &winner.CreatedAt); err != nil {
		return persistence.Day{}, mapError(err)
	}
	winner.Date = timeline.DateOf(date.UTC())
	return winner, nil
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

func (r *DayRepository) loadEvents(ctx context.Context, days []persistence.Day) error {
	if len(days) == 0 {
		return nil
	}

	ids := make([]string, len(days))
	index := make(map[string]int, len(days))
	for i := range days {
		ids[i] = days[i].ID
		index[days[i].ID] = i
	}

	rows, err := r.q.Query(ctx,
		`SELECT ed.day_id, e.id, e.name, e.owner_id, e.start_utc, e.end_utc, e.display_zone, e.description, e.created_at, e.updated_at
		 FROM event_days ed JOIN events e ON e.id = ed.event_id
		 WHERE ed.day_id = ANY($1)
		 ORDER BY e.start_utc, e.id`,
		ids)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			dayID       string
			event       persistence.Event
			description *string
		)
		if err := rows.Scan(&dayID, &event.ID, &event.Name, &event.OwnerID,
			&event.Start, &event.End, &event.DisplayZone, &description,
			&event.CreatedAt, &event.UpdatedAt); err != nil {
			return mapError(err)
		}
		if description != nil {
			event.Description = *description
		}
		event.Start = event.Start.UTC()
		event.End = event.End.UTC()
		if i, ok := index[dayID]; ok {
			days[i].Events = append(days[i].Events, event)
		}
	}
	return mapError(rows.Err())
}
