// Package schedule implements overlap detection between events sharing a
// day bucket.
package schedule

import "time"

// Event is the minimal view of a scheduled event needed for conflict
// detection. Start and End are UTC instants forming the half-open interval
// [Start, End).
type Event struct {
	ID    string
	Name  string
	Start time.Time
	End   time.Time
}

// Conflict details an overlapping event relation that callers can surface
// to users.
type Conflict struct {
	EventID string
	Name    string
	Start   time.Time
	End     time.Time
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share any instant. Touching boundaries do not overlap: an
// event ending exactly when another starts is not a conflict.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// FindConflict scans a bucket's events for the first one whose interval
// overlaps [start, end). The event identified by excludeEventID is skipped,
// so an event never conflicts with itself during its own update. Pass an
// empty excludeEventID on creation.
func FindConflict(events []Event, start, end time.Time, excludeEventID string) (Conflict, bool) {
	for _, existing := range events {
		if excludeEventID != "" && existing.ID == excludeEventID {
			continue
		}
		if Overlaps(existing.Start, existing.End, start, end) {
			return Conflict{
				EventID: existing.ID,
				Name:    existing.Name,
				Start:   existing.Start,
				End:     existing.End,
			}, true
		}
	}
	return Conflict{}, false
}

// CollectConflicts returns every event in the bucket whose interval overlaps
// [start, end), in bucket order. Useful for diagnostics; the validator
// itself fails on the first conflict found.
func CollectConflicts(events []Event, start, end time.Time, excludeEventID string) []Conflict {
	var conflicts []Conflict
	for _, existing := range events {
		if excludeEventID != "" && existing.ID == excludeEventID {
			continue
		}
		if Overlaps(existing.Start, existing.End, start, end) {
			conflicts = append(conflicts, Conflict{
				EventID: existing.ID,
				Name:    existing.Name,
				Start:   existing.Start,
				End:     existing.End,
			})
		}
	}
	return conflicts
}
