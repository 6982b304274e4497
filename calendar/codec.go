package calendar

import (
	"encoding/base64"

	"github.com/vmihailenco/msgpack/v5"

	"timeplan/apperr"
	"timeplan/scraper"
)

// legacyQuery is the query shape issued before custom names existed.
type legacyQuery struct {
	Identifier    scraper.CourseIdentifier `msgpack:"identifier"`
	StudentGroups []string                 `msgpack:"studentGroups"`

	_msgpack struct{} `msgpack:",as_array"`
}

var tokenEncoding = base64.RawURLEncoding

// EncodeQueries packs queries into a URL-safe token.
func EncodeQueries(queries []scraper.CalendarQuery) (string, error) {
	if queries == nil {
		queries = []scraper.CalendarQuery{}
	}
	b, err := msgpack.Marshal(queries)
	if err != nil {
		return "", apperr.Codec("encode query", err)
	}
	return tokenEncoding.EncodeToString(b), nil
}

// DecodeQueries reverses EncodeQueries. Tokens issued for the legacy query
// shape decode with a nil CustomName.
func DecodeQueries(token string) ([]scraper.CalendarQuery, error) {
	b, err := tokenEncoding.DecodeString(token)
	if err != nil {
		return nil, apperr.Codec("decode query", err)
	}

	var queries []scraper.CalendarQuery
	currentErr := msgpack.Unmarshal(b, &queries)
	if currentErr == nil {
		if queries == nil {
			queries = []scraper.CalendarQuery{}
		}
		return queries, nil
	}

	var legacy []legacyQuery
	if err := msgpack.Unmarshal(b, &legacy); err != nil {
		return nil, apperr.Codec("decode query", currentErr)
	}
	queries = make([]scraper.CalendarQuery, 0, len(legacy))
	for _, q := range legacy {
		queries = append(queries, scraper.CalendarQuery{
			Identifier:    q.Identifier,
			StudentGroups: q.StudentGroups,
		})
	}
	return queries, nil
}
