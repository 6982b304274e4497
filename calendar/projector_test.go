package calendar

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"

	"timeplan/apperr"
	"timeplan/scraper"
)

var prog1004 = scraper.CourseIdentifier{CourseCode: "PROG1004", CourseTerm: 1, Semester: "23v"}

func testActivity(id string, groups ...string) scraper.Activity {
	start := time.Date(2023, 1, 9, 8, 15, 0, 0, time.UTC)
	return scraper.Activity{
		ID:            id,
		CourseCode:    "PROG1004",
		Week:          2,
		Start:         start,
		End:           start.Add(105 * time.Minute),
		Title:         "Forelesning",
		Summary:       "Software development",
		StaffMembers:  []scraper.StaffMember{{FirstName: "Ola", LastName: "Nordmann"}, {FirstName: "Kari", LastName: "Hansen"}},
		StudentGroups: groups,
		Rooms: []scraper.Room{
			{Name: "A001", BuildingName: "Ametyst", URL: "https://use.mazemap.com/a001"},
			{Name: "S206", BuildingName: "Smaragd", URL: "https://use.mazemap.com/s206"},
		},
	}
}

func TestProject_StudentGroupFilter(t *testing.T) {
	activity := testActivity("a1", "A", "B")
	tests := []struct {
		name    string
		targets []string
		want    int
	}{
		{"overlapping groups", []string{"B", "C"}, 1},
		{"disjoint groups", []string{"C"}, 0},
		{"no target groups", []string{}, 0},
		{"nil target groups", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := Project([]Resolved{{Activities: []scraper.Activity{activity}, StudentGroups: tt.targets}})
			if len(events) != tt.want {
				t.Fatalf("got %d events, want %d", len(events), tt.want)
			}
		})
	}
}

func TestActivityToEvent_Formatting(t *testing.T) {
	activity := testActivity("a1", "BPROG_2")
	event := ActivityToEvent(activity, nil)

	if event.UID != "a1" {
		t.Errorf("UID = %q", event.UID)
	}
	if event.Summary != "PROG1004 Forelesning" {
		t.Errorf("Summary = %q", event.Summary)
	}
	if !event.Start.Equal(activity.Start) || !event.End.Equal(activity.End) {
		t.Errorf("times = %v..%v, want %v..%v", event.Start, event.End, activity.Start, activity.End)
	}
	if event.Location != "A001 (Ametyst)" {
		t.Errorf("Location = %q", event.Location)
	}
	wantDescription := "PROG1004 Forelesning\n\n" +
		"Ola Nordmann, Kari Hansen\n\n" +
		"A001 (Ametyst): https://use.mazemap.com/a001\n" +
		"S206 (Smaragd): https://use.mazemap.com/s206"
	if event.Description != wantDescription {
		t.Errorf("Description = %q, want %q", event.Description, wantDescription)
	}
}

func TestActivityToEvent_CustomName(t *testing.T) {
	activity := testActivity("a1", "BPROG_2")

	event := ActivityToEvent(activity, strPtr("My class"))
	if event.Summary != "My class" {
		t.Errorf("Summary = %q, want custom name", event.Summary)
	}
	if !strings.HasPrefix(event.Description, "My class\n\n") {
		t.Errorf("Description = %q, want custom name as first line", event.Description)
	}

	event = ActivityToEvent(activity, strPtr("  "))
	if event.Summary != "PROG1004 Forelesning" {
		t.Errorf("blank custom name: Summary = %q", event.Summary)
	}
}

func TestActivityToEvent_NoRooms(t *testing.T) {
	activity := testActivity("a1", "BPROG_2")
	activity.Rooms = []scraper.Room{}
	activity.StaffMembers = []scraper.StaffMember{}

	event := ActivityToEvent(activity, nil)
	if event.Location != "" {
		t.Errorf("Location = %q, want empty", event.Location)
	}
	if event.Description != "PROG1004 Forelesning\n\n\n\n" {
		t.Errorf("Description = %q", event.Description)
	}
}

// Overlapping queries yield duplicate events; nothing deduplicates by UID.
func TestProject_KeepsDuplicatesAcrossQueries(t *testing.T) {
	activities := []scraper.Activity{testActivity("a1", "A", "B"), testActivity("a2", "B")}
	events := Project([]Resolved{
		{Activities: activities, StudentGroups: []string{"A"}},
		{Activities: activities, StudentGroups: []string{"B"}},
	})

	var uids []string
	for _, e := range events {
		uids = append(uids, e.UID)
	}
	if got := strings.Join(uids, ","); got != "a1,a1,a2" {
		t.Fatalf("event UIDs = %s, want a1,a1,a2", got)
	}
}

func TestBuild_LooksUpEveryQuery(t *testing.T) {
	other := scraper.CourseIdentifier{CourseCode: "MA1301", CourseTerm: 1, Semester: "23v"}
	var lookups atomic.Int32
	lookup := func(_ context.Context, id scraper.CourseIdentifier) ([]scraper.Activity, error) {
		lookups.Add(1)
		if id == other {
			a := testActivity("m1", "BPROG_2")
			a.CourseCode = "MA1301"
			return []scraper.Activity{a}, nil
		}
		return []scraper.Activity{testActivity("p1", "BPROG_2"), testActivity("p2", "BDIGSEC_2")}, nil
	}

	events, err := Build(context.Background(), []scraper.CalendarQuery{
		{Identifier: prog1004, StudentGroups: []string{"BPROG_2"}, CustomName: strPtr("My class")},
		{Identifier: other, StudentGroups: []string{"BPROG_2"}},
	}, lookup)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if n := lookups.Load(); n != 2 {
		t.Fatalf("lookups = %d, want 2", n)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].UID != "p1" || events[0].Summary != "My class" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].UID != "m1" || events[1].Summary != "MA1301 Forelesning" {
		t.Errorf("second event = %+v", events[1])
	}
}

func TestBuild_FailsWhenAnyLookupFails(t *testing.T) {
	errDown := apperr.Network("fetch activities", errors.New("connection refused"))
	lookup := func(_ context.Context, id scraper.CourseIdentifier) ([]scraper.Activity, error) {
		if id.CourseCode == "BROKEN" {
			return nil, errDown
		}
		return []scraper.Activity{testActivity("p1", "BPROG_2")}, nil
	}

	_, err := Build(context.Background(), []scraper.CalendarQuery{
		{Identifier: prog1004, StudentGroups: []string{"BPROG_2"}},
		{Identifier: scraper.CourseIdentifier{CourseCode: "BROKEN", CourseTerm: 1, Semester: "23v"}, StudentGroups: []string{"BPROG_2"}},
	}, lookup)
	if !errors.Is(err, apperr.ErrNetwork) {
		t.Fatalf("Build error = %v, want network error", err)
	}
}

func TestRender_OneEventPerActivity(t *testing.T) {
	events := Project([]Resolved{{
		Activities:    []scraper.Activity{testActivity("p1", "BPROG_2"), testActivity("p2", "BDIGSEC_2")},
		StudentGroups: []string{"BPROG_2"},
		CustomName:    strPtr("My class"),
	}})

	out := Render(events, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))

	if n := strings.Count(out, "BEGIN:VEVENT"); n != 1 {
		t.Fatalf("got %d VEVENTs, want 1:\n%s", n, out)
	}
	for _, want := range []string{"BEGIN:VCALENDAR", "SUMMARY:My class", "UID:p1", "DTSTART:20230109T081500Z", "END:VCALENDAR"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRender_EmptyCalendar(t *testing.T) {
	out := Render(nil, time.Now())
	if strings.Contains(out, "BEGIN:VEVENT") {
		t.Fatalf("expected no events:\n%s", out)
	}
	if !strings.Contains(out, "BEGIN:VCALENDAR") {
		t.Fatalf("expected a calendar:\n%s", out)
	}
}

func TestActivityToEvent_MissingIDGetsStableUID(t *testing.T) {
	activity := testActivity("", "BPROG_2")

	first := ActivityToEvent(activity, nil)
	if len(first.UID) != 32 {
		t.Fatalf("UID = %q, want an md5 hex digest", first.UID)
	}
	if again := ActivityToEvent(activity, strPtr("My class")); again.UID != first.UID {
		t.Errorf("UID changed with the custom name: %q vs %q", again.UID, first.UID)
	}

	later := activity
	later.Start = later.Start.Add(7 * 24 * time.Hour)
	later.End = later.End.Add(7 * 24 * time.Hour)
	if other := ActivityToEvent(later, nil); other.UID == first.UID {
		t.Error("different sessions share a UID")
	}
}

func TestRender_ParsesBack(t *testing.T) {
	events := Project([]Resolved{{
		Activities:    []scraper.Activity{testActivity("p1", "BPROG_2"), testActivity("p2", "BPROG_2")},
		StudentGroups: []string{"BPROG_2"},
	}})

	cal, err := ics.ParseCalendar(strings.NewReader(Render(events, time.Now())))
	if err != nil {
		t.Fatalf("ParseCalendar: %v", err)
	}
	parsed := cal.Events()
	if len(parsed) != 2 {
		t.Fatalf("parsed %d events, want 2", len(parsed))
	}
	for i, e := range parsed {
		if e.Id() != events[i].UID {
			t.Errorf("event %d UID = %q, want %q", i, e.Id(), events[i].UID)
		}
		start, err := e.GetStartAt()
		if err != nil || !start.Equal(events[i].Start) {
			t.Errorf("event %d start = %v, %v; want %v", i, start, err, events[i].Start)
		}
		if loc := e.GetProperty(ics.ComponentPropertyLocation); loc == nil || loc.Value != "A001 (Ametyst)" {
			t.Errorf("event %d location = %+v", i, loc)
		}
	}
}
