// Package calendar turns cached activities into iCalendar feeds and encodes
// the calendar queries that address those feeds.
package calendar

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"timeplan/scraper"
)

// Event is one calendar event projected from an activity.
type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string // empty when the activity has no rooms
	Start       time.Time
	End         time.Time
}

// ActivityToEvent maps an activity to an event. A non-empty customName
// replaces "<course code> <title>" as the summary.
func ActivityToEvent(activity scraper.Activity, customName *string) Event {
	summary := fmt.Sprintf("%s %s", activity.CourseCode, activity.Title)
	if customName != nil && strings.TrimSpace(*customName) != "" {
		summary = *customName
	}

	event := Event{
		UID:     activity.ID,
		Summary: summary,
		Start:   activity.Start,
		End:     activity.End,
	}
	if event.UID == "" {
		event.UID = generateUID(activity)
	}
	if len(activity.Rooms) > 0 {
		event.Location = formatRoomName(activity.Rooms[0])
	}

	staff := make([]string, 0, len(activity.StaffMembers))
	for _, m := range activity.StaffMembers {
		staff = append(staff, fmt.Sprintf("%s %s", m.FirstName, m.LastName))
	}
	rooms := make([]string, 0, len(activity.Rooms))
	for _, r := range activity.Rooms {
		rooms = append(rooms, fmt.Sprintf("%s: %s", formatRoomName(r), r.URL))
	}
	event.Description = summary + "\n\n" + strings.Join(staff, ", ") + "\n\n" + strings.Join(rooms, "\n")

	return event
}

// generateUID derives a stable UID for activities the timetable published
// without an event id.
func generateUID(activity scraper.Activity) string {
	hash := md5.New()
	hash.Write([]byte(activity.CourseCode + activity.Title + activity.Start.UTC().Format(time.RFC3339) + activity.End.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(hash.Sum(nil))
}

// formatRoomName formats a room as "<name> (<building>)".
func formatRoomName(room scraper.Room) string {
	return fmt.Sprintf("%s (%s)", room.Name, room.BuildingName)
}
