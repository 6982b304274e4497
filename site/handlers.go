package site

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"timeplan/calendar"
	"timeplan/scraper"
)

func (s *Server) health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *Server) getSemesters(c echo.Context) error {
	semesters, err := s.caches.Semesters.GetOrFetch(c.Request().Context(), NoKey{})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, semesters)
}

func (s *Server) getCourses(c echo.Context) error {
	courses, err := s.caches.Courses.GetOrFetch(c.Request().Context(), NoKey{})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, courses)
}

func (s *Server) getActivities(c echo.Context) error {
	var id scraper.CourseIdentifier
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &id); err != nil {
		return err
	}
	if err := c.Validate(&id); err != nil {
		return err
	}

	activities, err := s.caches.Activities.GetOrFetch(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, activities)
}

func (s *Server) encodeCalendarQuery(c echo.Context) error {
	var queries []scraper.CalendarQuery
	if err := (&echo.DefaultBinder{}).BindBody(c, &queries); err != nil {
		return err
	}
	for i := range queries {
		if err := c.Validate(&queries[i]); err != nil {
			return err
		}
	}

	token, err := calendar.EncodeQueries(queries)
	if err != nil {
		return err
	}
	return c.String(http.StatusOK, token)
}

func (s *Server) getCalendar(c echo.Context) error {
	token := c.QueryParam("query")
	if token == "" {
		// links issued before the parameter was renamed
		token = c.QueryParam("queries")
	}
	queries, err := calendar.DecodeQueries(token)
	if err != nil {
		return err
	}

	events, err := calendar.Build(c.Request().Context(), queries, s.caches.Activities.GetOrFetch)
	if err != nil {
		return err
	}
	s.logger.Debug("built calendar", zap.Int("queries", len(queries)), zap.Int("events", len(events)))

	return c.Blob(http.StatusOK, calendar.ContentType, []byte(calendar.Render(events, s.now())))
}
