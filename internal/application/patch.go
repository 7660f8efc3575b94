package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/event-planner/internal/persistence"
	"github.com/example/event-planner/internal/timeline"
)

// patchOutcome reports what applyEventPatch changed. newDays is nil when
// the time range was untouched; updated is false when the whole patch was
// a no-op.
type patchOutcome struct {
	updated bool
	newDays []persistence.Day
}

// applyEventPatch mutates event in place according to patch. Validation
// failures leave the event half-assigned, so callers must discard it on
// error. Time changes run through the validator with the event's own id
// excluded, so an event never conflicts with itself.
func applyEventPatch(ctx context.Context, event *persistence.Event, patch EventPatch, validator ScheduleValidator) (patchOutcome, error) {
	var outcome patchOutcome

	vErr := &ValidationError{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		validateEventName(name, vErr)
		if !vErr.HasErrors() && name != event.Name {
			event.Name = name
			outcome.updated = true
		}
	}
	if patch.Description != nil {
		validateEventDescription(*patch.Description, vErr)
		if !vErr.HasErrors() && *patch.Description != event.Description {
			event.Description = *patch.Description
			outcome.updated = true
		}
	}
	if vErr.HasErrors() {
		return patchOutcome{}, vErr
	}

	newStart := event.Start
	newEnd := event.End
	timeChanged := false
	if patch.Start != nil {
		normalized := timeline.NormalizeUTC(*patch.Start)
		if !normalized.Equal(event.Start) {
			newStart = normalized
			timeChanged = true
		}
	}
	if patch.End != nil {
		normalized := timeline.NormalizeUTC(*patch.End)
		if !normalized.Equal(event.End) {
			newEnd = normalized
			timeChanged = true
		}
	}

	if timeChanged {
		if validator == nil {
			return patchOutcome{}, fmt.Errorf("schedule validator not configured")
		}
		days, err := validator.ValidateAndBucket(ctx, event.OwnerID, newStart, newEnd, event.ID)
		if err != nil {
			return patchOutcome{}, err
		}
		event.Start = newStart
		event.End = newEnd
		if patch.Start != nil {
			event.DisplayZone = displayZone(*patch.Start)
		}
		outcome.updated = true
		outcome.newDays = days
	}

	return outcome, nil
}
