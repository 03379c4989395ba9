package model

import (
	"encoding/json"
	"time"
)

// localLayout is how the API writes a timestamp without a zone.
const localLayout = "2006-01-02T15:04:05"

// timeLayouts are tried in order when parsing API timestamps. The backend
// sends zone-less local date-times; RFC 3339 is accepted as well.
var timeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// LocalTime is an API timestamp. Zone-less values are read in the local
// zone, and a value that cannot be parsed decodes to the zero time instead
// of failing the whole response.
type LocalTime struct {
	time.Time
}

// NewLocalTime wraps t.
func NewLocalTime(t time.Time) LocalTime {
	return LocalTime{Time: t}
}

// ParseLocalTime parses an API timestamp. It reports false when no layout
// matches.
func ParseLocalTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// UnmarshalJSON accepts a string timestamp or null.
func (t *LocalTime) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil || s == nil {
		t.Time = time.Time{}
		return nil
	}
	t.Time, _ = ParseLocalTime(*s)
	return nil
}

// MarshalJSON writes the time as a zone-less local date-time, the form the
// API expects in request bodies.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Local().Format(localLayout))
}
