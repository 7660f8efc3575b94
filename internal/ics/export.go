// Package ics renders stored events as an iCalendar document so owners can
// pull their agenda into external calendar clients.
package ics

import (
	"fmt"

	ical "github.com/arran4/golang-ical"

	"github.com/example/event-planner/internal/persistence"
)

// Export serializes events into a VCALENDAR document. Event instants are
// stored in UTC and emitted as UTC; clients localize on display.
func Export(calendarName string, events []persistence.Event) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	if calendarName != "" {
		cal.SetXWRCalName(calendarName)
	}

	for _, event := range events {
		if event.ID == "" {
			return "", fmt.Errorf("event %q has no id", event.Name)
		}
		entry := cal.AddEvent(event.ID)
		entry.SetDtStampTime(event.UpdatedAt)
		entry.SetCreatedTime(event.CreatedAt)
		entry.SetModifiedAt(event.UpdatedAt)
		entry.SetStartAt(event.Start)
		entry.SetEndAt(event.End)
		entry.SetSummary(event.Name)
		if event.Description != "" {
			entry.SetDescription(event.Description)
		}
	}

	return cal.Serialize(), nil
}
