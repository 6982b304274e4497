package calendar

import (
	"time"

	ics "github.com/arran4/golang-ical"
)

const (
	productID = "-//timeplan//calendar export//EN"
	// ContentType is the MIME type of a rendered feed.
	ContentType = "text/calendar; charset=utf-8"
)

// Render serializes events as an iCalendar document. stamp is written as
// every event's DTSTAMP.
func Render(events []Event, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ics.MethodPublish)
	cal.SetCalscale("GREGORIAN")

	for _, e := range events {
		event := cal.AddEvent(e.UID)
		event.SetDtStampTime(stamp)
		event.SetSummary(e.Summary)
		event.SetStartAt(e.Start)
		event.SetEndAt(e.End)
		if e.Location != "" {
			event.SetLocation(e.Location)
		}
		event.SetDescription(e.Description)
	}

	return cal.Serialize()
}
