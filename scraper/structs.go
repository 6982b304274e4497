package scraper

import "time"

// CourseIdentifier addresses one offering of a course. It is comparable and
// used directly as a cache key.
type CourseIdentifier struct {
	CourseCode string `json:"courseCode" query:"courseCode" msgpack:"courseCode" validate:"required"`
	CourseTerm int    `json:"courseTerm" query:"courseTerm" msgpack:"courseTerm" validate:"gte=1"`
	Semester   string `json:"semester" query:"semester" msgpack:"semester" validate:"required"`

	_msgpack struct{} `msgpack:",as_array"`
}

// Semester represents one entry of the semester selector (e.g. "23v", "Vår 2023").
type Semester struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SemestersWithCurrent is every known semester plus the one the timetable
// site preselects. CurrentSemester is always a key of Semesters.
type SemestersWithCurrent struct {
	Semesters       map[string]Semester `json:"semesters"`
	CurrentSemester string              `json:"currentSemester"`
}

// Course represents a course in the catalog, keyed by its code.
type Course struct {
	Name          string `json:"name"`
	AmountOfTerms int    `json:"amountOfTerms"`
}

// StaffMember represents a lecturer attached to an activity.
type StaffMember struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Room represents a room an activity takes place in.
type Room struct {
	Name         string `json:"name"`
	BuildingName string `json:"buildingName"`
	URL          string `json:"url"`
}

// Activity represents one scheduled teaching session. Values handed out by
// the cache are shared and must not be mutated.
type Activity struct {
	ID            string        `json:"id"`
	CourseCode    string        `json:"courseCode"`
	Week          int           `json:"week"`
	Start         time.Time     `json:"start"`
	End           time.Time     `json:"end"`
	Title         string        `json:"title"`
	Summary       string        `json:"summary"`
	StaffMembers  []StaffMember `json:"staffMembers"`
	StudentGroups []string      `json:"studentGroups"`
	Rooms         []Room        `json:"rooms"`
}

// HasStudentGroup reports whether group is one of the activity's student groups.
func (a Activity) HasStudentGroup(group string) bool {
	for _, g := range a.StudentGroups {
		if g == group {
			return true
		}
	}
	return false
}

// CalendarQuery selects the activities of one course offering that belong to
// any of StudentGroups. CustomName, when set, replaces the event titles.
type CalendarQuery struct {
	Identifier    CourseIdentifier `json:"identifier" msgpack:"identifier"`
	StudentGroups []string         `json:"studentGroups" msgpack:"studentGroups"`
	CustomName    *string          `json:"customName,omitempty" msgpack:"customName"`

	_msgpack struct{} `msgpack:",as_array"`
}
