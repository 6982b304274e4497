package scraper

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"timeplan/apperr"
)

const (
	opFetchCourses = "fetch courses"

	coursesMarker = "var courses = "
)

// fetchedCourse is the shape of one entry in the inline courses array.
type fetchedCourse struct {
	Code          string `json:"id"`
	Name          string `json:"name"`
	AmountOfTerms int    `json:"nofterms"`
}

// FetchCourses scrapes the course catalog from the inline script of emner.php.
func (s *Source) FetchCourses(ctx context.Context) (map[string]Course, error) {
	body, err := s.fetchPage(ctx, opFetchCourses, "emner.php", nil)
	if err != nil {
		return nil, err
	}

	courses, err := extractCourses(body)
	if err != nil {
		return nil, err
	}

	s.logger.Info("scraped courses", zap.Int("count", len(courses)))
	return courses, nil
}

// extractCourses cuts the JSON array assigned to `var courses` out of the
// page and decodes it.
func extractCourses(page string) (map[string]Course, error) {
	_, rest, found := strings.Cut(page, coursesMarker)
	if !found {
		return nil, apperr.Parsingf(opFetchCourses, "%q not found", strings.TrimSpace(coursesMarker))
	}
	end := strings.Index(rest, "]")
	if end < 0 {
		return nil, apperr.Parsingf(opFetchCourses, "unterminated courses array")
	}

	var fetched []fetchedCourse
	if err := json.Unmarshal([]byte(rest[:end+1]), &fetched); err != nil {
		return nil, apperr.Parsing(opFetchCourses, err)
	}

	courses := make(map[string]Course, len(fetched))
	for _, c := range fetched {
		courses[c.Code] = Course{
			Name:          c.Name,
			AmountOfTerms: c.AmountOfTerms,
		}
	}
	return courses, nil
}
