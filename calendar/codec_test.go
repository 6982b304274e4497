package calendar

import (
	"errors"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"timeplan/apperr"
	"timeplan/scraper"
)

func strPtr(s string) *string { return &s }

func equalQueries(t *testing.T, got, want []scraper.CalendarQuery) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d queries, want %d", len(got), len(want))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.Identifier != w.Identifier {
			t.Errorf("query %d identifier = %+v, want %+v", i, g.Identifier, w.Identifier)
		}
		if len(g.StudentGroups) != len(w.StudentGroups) {
			t.Errorf("query %d groups = %v, want %v", i, g.StudentGroups, w.StudentGroups)
		} else {
			for j := range w.StudentGroups {
				if g.StudentGroups[j] != w.StudentGroups[j] {
					t.Errorf("query %d group %d = %q, want %q", i, j, g.StudentGroups[j], w.StudentGroups[j])
				}
			}
		}
		switch {
		case w.CustomName == nil && g.CustomName != nil:
			t.Errorf("query %d customName = %q, want nil", i, *g.CustomName)
		case w.CustomName != nil && (g.CustomName == nil || *g.CustomName != *w.CustomName):
			t.Errorf("query %d customName = %v, want %q", i, g.CustomName, *w.CustomName)
		}
	}
}

func TestQueryCodec_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		queries []scraper.CalendarQuery
	}{
		{
			name:    "empty list",
			queries: []scraper.CalendarQuery{},
		},
		{
			name: "custom name present",
			queries: []scraper.CalendarQuery{{
				Identifier:    scraper.CourseIdentifier{CourseCode: "PROG1004", CourseTerm: 1, Semester: "23v"},
				StudentGroups: []string{"BPROG_2"},
				CustomName:    strPtr("My class"),
			}},
		},
		{
			name: "custom name absent and empty groups",
			queries: []scraper.CalendarQuery{{
				Identifier:    scraper.CourseIdentifier{CourseCode: "IDATG2204", CourseTerm: 1, Semester: "23v"},
				StudentGroups: []string{},
			}},
		},
		{
			name: "unicode and several queries",
			queries: []scraper.CalendarQuery{
				{
					Identifier:    scraper.CourseIdentifier{CourseCode: "FØRSTEÅR", CourseTerm: 2, Semester: "23h"},
					StudentGroups: []string{"Gruppe æøå", "BIDATA_1"},
					CustomName:    strPtr("Første år 📅"),
				},
				{
					Identifier:    scraper.CourseIdentifier{CourseCode: "MA1301", CourseTerm: 1, Semester: "23h"},
					StudentGroups: []string{"A", "B", "C"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := EncodeQueries(tt.queries)
			if err != nil {
				t.Fatalf("EncodeQueries: %v", err)
			}
			got, err := DecodeQueries(token)
			if err != nil {
				t.Fatalf("DecodeQueries(%q): %v", token, err)
			}
			equalQueries(t, got, tt.queries)
		})
	}
}

func TestEncodeQueries_TokenIsURLSafe(t *testing.T) {
	token, err := EncodeQueries([]scraper.CalendarQuery{{
		Identifier:    scraper.CourseIdentifier{CourseCode: "PROG1004", CourseTerm: 1, Semester: "23v"},
		StudentGroups: []string{"BPROG_2", "BPROG_3", "BDIGSEC_2"},
		CustomName:    strPtr("???>>>~~~"),
	}})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range token {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isAlnum && r != '-' && r != '_' {
			t.Fatalf("token %q contains %q", token, r)
		}
	}
}

func TestDecodeQueries_AcceptsLegacyShape(t *testing.T) {
	legacy := []legacyQuery{{
		Identifier:    scraper.CourseIdentifier{CourseCode: "PROG1004", CourseTerm: 1, Semester: "23v"},
		StudentGroups: []string{"BPROG_2"},
	}}
	b, err := msgpack.Marshal(legacy)
	if err != nil {
		t.Fatal(err)
	}

	got, err := DecodeQueries(tokenEncoding.EncodeToString(b))
	if err != nil {
		t.Fatalf("DecodeQueries: %v", err)
	}
	equalQueries(t, got, []scraper.CalendarQuery{{
		Identifier:    legacy[0].Identifier,
		StudentGroups: []string{"BPROG_2"},
	}})
}

func TestDecodeQueries_RejectsGarbage(t *testing.T) {
	notQueries, err := msgpack.Marshal("hello")
	if err != nil {
		t.Fatal(err)
	}
	tokens := map[string]string{
		"not base64":          "!!not*base64!!",
		"padded base64":       "aGVsbG8=",
		"not a query list":    tokenEncoding.EncodeToString(notQueries),
		"truncated msgpack":   tokenEncoding.EncodeToString([]byte{0x91, 0x93}),
		"unused msgpack code": tokenEncoding.EncodeToString([]byte{0xc1}),
	}
	for name, token := range tokens {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeQueries(token)
			if !errors.Is(err, apperr.ErrCodec) {
				t.Fatalf("DecodeQueries(%q) error = %v, want codec error", token, err)
			}
		})
	}
}
