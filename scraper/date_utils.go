package scraper

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are the offset styles seen in dtstart/dtend.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05-07",
}

// parseTimestamp parses an activity timestamp such as "2023-01-09T08:15:00+01:00".
func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("error parsing timestamp %q", value)
}
