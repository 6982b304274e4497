package scraper

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"timeplan/apperr"
)

const opFetchSemesters = "fetch semesters"

// FetchSemesters scrapes the semester selector of the course activity page.
func (s *Source) FetchSemesters(ctx context.Context) (SemestersWithCurrent, error) {
	doc, err := s.fetchDocument(ctx, opFetchSemesters, "timeplan.php", url.Values{"type": {"courseact"}})
	if err != nil {
		return SemestersWithCurrent{}, err
	}

	result, err := extractSemesters(doc)
	if err != nil {
		return SemestersWithCurrent{}, err
	}

	s.logger.Info("scraped semesters",
		zap.Int("count", len(result.Semesters)),
		zap.String("current", result.CurrentSemester),
	)
	return result, nil
}

// extractSemesters reads every option of select#semesterselect. The option
// carrying the selected attribute is the current semester.
func extractSemesters(doc *goquery.Document) (SemestersWithCurrent, error) {
	result := SemestersWithCurrent{Semesters: make(map[string]Semester)}

	var parseErr error
	doc.Find("select#semesterselect option").EachWithBreak(func(i int, s *goquery.Selection) bool {
		code, exists := s.Attr("value")
		code = strings.TrimSpace(code)
		if !exists || code == "" {
			parseErr = apperr.Parsingf(opFetchSemesters, "option %d has no value", i)
			return false
		}
		name := strings.TrimSpace(s.Text())
		if name == "" {
			parseErr = apperr.Parsingf(opFetchSemesters, "option %q has no name", code)
			return false
		}

		result.Semesters[code] = Semester{Code: code, Name: name}
		if _, selected := s.Attr("selected"); selected {
			result.CurrentSemester = code
		}
		return true
	})
	if parseErr != nil {
		return SemestersWithCurrent{}, parseErr
	}

	if len(result.Semesters) == 0 {
		return SemestersWithCurrent{}, apperr.Parsingf(opFetchSemesters, "no semester options found")
	}
	if _, ok := result.Semesters[result.CurrentSemester]; !ok {
		return SemestersWithCurrent{}, apperr.Parsingf(opFetchSemesters, "no selected semester")
	}
	return result, nil
}
