package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	isoLayout      = "2006-01-02T15:04:05"
	isoMicroLayout = "2006-01-02T15:04:05.000000"
	isoZoneLayout  = "2006-01-02T15:04:05.999999Z07:00"
)

// parseLayouts are tried in order for timestamps without a zone; they are
// interpreted in local time.
var parseLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Timestamp is an ISO-8601 time. Local times are written without an offset
// ("2024-01-01T09:30:00"), with microseconds when they are non-zero.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to microseconds, the precision the archive keeps.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.Truncate(time.Microsecond)}
}

// Now returns the current local time as a Timestamp.
func Now() Timestamp {
	return NewTimestamp(time.Now())
}

// ParseTimestamp parses the layouts the archive and the remote store produce.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	if strings.HasSuffix(s, "Z") || hasZoneOffset(s) {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err == nil {
			return NewTimestamp(t), nil
		}
	}
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return NewTimestamp(t), nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}

// hasZoneOffset reports whether s ends in a "+hh:mm" or "-hh:mm" offset after the time part.
func hasZoneOffset(s string) bool {
	i := strings.IndexByte(s, 'T')
	if i < 0 {
		return false
	}
	rest := s[i:]
	return strings.LastIndexAny(rest, "+-") > 0
}

// String formats t the way it is written to the archive.
func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	if t.Location() != time.Local {
		return t.Format(isoZoneLayout)
	}
	if t.Nanosecond() == 0 {
		return t.Format(isoLayout)
	}
	return t.Format(isoMicroLayout)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler. Null and "" leave t zero.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Before reports whether t is before u.
func (t Timestamp) Before(u Timestamp) bool {
	return t.Time.Before(u.Time)
}
