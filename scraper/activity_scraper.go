package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"timeplan/apperr"
)

const opFetchActivities = "fetch activities"

type parsedRoom struct {
	Name         string `json:"roomname"`
	BuildingName string `json:"buildingname"`
	URL          string `json:"roomurl"`
}

type parsedStaffMember struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

// parsedActivity is the shape of one activity in script#data-js.
type parsedActivity struct {
	ID            string              `json:"eventid"`
	CourseCode    string              `json:"courseid"`
	Week          int                 `json:"weeknr"`
	Start         string              `json:"dtstart"`
	End           string              `json:"dtend"`
	Title         string              `json:"teaching-title"`
	Summary       string              `json:"summary"`
	StaffMembers  []parsedStaffMember `json:"staffs"`
	StudentGroups []string            `json:"studentgroups"`
	Rooms         []parsedRoom        `json:"room"`
}

// FetchActivities scrapes every activity of one course offering.
func (s *Source) FetchActivities(ctx context.Context, id CourseIdentifier) ([]Activity, error) {
	query := url.Values{
		"type": {"course"},
		"sem":  {id.Semester},
		"id[]": {fmt.Sprintf("%s,%d", id.CourseCode, id.CourseTerm)},
	}
	doc, err := s.fetchDocument(ctx, opFetchActivities, "index.php", query)
	if err != nil {
		return nil, err
	}

	activities, err := extractActivities(doc)
	if err != nil {
		return nil, err
	}

	s.logger.Info("scraped activities",
		zap.String("course_code", id.CourseCode),
		zap.Int("course_term", id.CourseTerm),
		zap.String("semester", id.Semester),
		zap.Int("count", len(activities)),
	)
	return activities, nil
}

// extractActivities decodes the JSON embedded in script#data-js. A page
// without the script has no activities.
func extractActivities(doc *goquery.Document) ([]Activity, error) {
	script := doc.Find("script#data-js").First()
	if script.Length() == 0 {
		return []Activity{}, nil
	}

	data := strings.TrimSpace(script.Text())
	var parsed []parsedActivity
	if err := json.Unmarshal([]byte(data), &parsed); err != nil {
		return nil, apperr.Parsing(opFetchActivities, err)
	}

	activities := make([]Activity, 0, len(parsed))
	for _, p := range parsed {
		activity, err := convertActivity(p)
		if err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	return activities, nil
}

func convertActivity(p parsedActivity) (Activity, error) {
	start, err := parseTimestamp(p.Start)
	if err != nil {
		return Activity{}, apperr.Parsing(opFetchActivities, fmt.Errorf("activity %s start: %w", p.ID, err))
	}
	end, err := parseTimestamp(p.End)
	if err != nil {
		return Activity{}, apperr.Parsing(opFetchActivities, fmt.Errorf("activity %s end: %w", p.ID, err))
	}
	if end.Before(start) {
		return Activity{}, apperr.Parsingf(opFetchActivities, "activity %s ends before it starts", p.ID)
	}

	staff := make([]StaffMember, 0, len(p.StaffMembers))
	for _, m := range p.StaffMembers {
		staff = append(staff, StaffMember{FirstName: m.FirstName, LastName: m.LastName})
	}
	rooms := make([]Room, 0, len(p.Rooms))
	for _, r := range p.Rooms {
		rooms = append(rooms, Room{Name: r.Name, BuildingName: r.BuildingName, URL: r.URL})
	}

	return Activity{
		ID:            p.ID,
		CourseCode:    p.CourseCode,
		Week:          p.Week,
		Start:         start,
		End:           end,
		Title:         p.Title,
		Summary:       p.Summary,
		StaffMembers:  staff,
		StudentGroups: uniqueGroups(p.StudentGroups),
		Rooms:         rooms,
	}, nil
}

// uniqueGroups drops repeated student groups, keeping first occurrences in order.
func uniqueGroups(groups []string) []string {
	seen := make(map[string]struct{}, len(groups))
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}
