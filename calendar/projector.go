package calendar

import (
	"context"

	"golang.org/x/sync/errgroup"

	"timeplan/scraper"
)

// Resolved is a calendar query whose activities have been looked up.
type Resolved struct {
	Activities    []scraper.Activity
	StudentGroups []string
	CustomName    *string
}

// LookupFunc returns the activities of one course offering.
type LookupFunc func(ctx context.Context, id scraper.CourseIdentifier) ([]scraper.Activity, error)

// Project filters each resolved query's activities by student group and maps
// the survivors to events, in query order. An empty StudentGroups matches
// nothing. Events are not deduplicated across queries.
func Project(resolved []Resolved) []Event {
	var events []Event
	for _, r := range resolved {
		for _, activity := range r.Activities {
			if !includesTargetGroup(activity, r.StudentGroups) {
				continue
			}
			events = append(events, ActivityToEvent(activity, r.CustomName))
		}
	}
	return events
}

func includesTargetGroup(activity scraper.Activity, targets []string) bool {
	for _, target := range targets {
		if activity.HasStudentGroup(target) {
			return true
		}
	}
	return false
}

// Resolve looks up the activities of every query concurrently. It fails as a
// whole if any lookup fails.
func Resolve(ctx context.Context, queries []scraper.CalendarQuery, lookup LookupFunc) ([]Resolved, error) {
	resolved := make([]Resolved, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			activities, err := lookup(ctx, q.Identifier)
			if err != nil {
				return err
			}
			resolved[i] = Resolved{
				Activities:    activities,
				StudentGroups: q.StudentGroups,
				CustomName:    q.CustomName,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}

// Build resolves queries and projects them to events.
func Build(ctx context.Context, queries []scraper.CalendarQuery, lookup LookupFunc) ([]Event, error) {
	resolved, err := Resolve(ctx, queries, lookup)
	if err != nil {
		return nil, err
	}
	return Project(resolved), nil
}
