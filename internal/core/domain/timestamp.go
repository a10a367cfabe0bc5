package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Timestamp is a nullable point in time exchanged with the record store.
//
// It decodes epoch milliseconds (number or numeric string), RFC 3339 strings
// and plain dates. Date-times without an offset are read in the local zone
// (see SetLocalZone); plain dates are read as UTC midnight. A value that cannot be read does not fail decoding: Valid
// stays false and the original text is kept in Raw so callers can report it.
// It encodes as epoch milliseconds or null; an unreadable value is written
// back as its original text. Record validation rejects such values before
// anything is sent to the record store.
type Timestamp struct {
	Time  time.Time
	Valid bool
	Raw   string
}

// maxEpochMillis is 9999-12-31T23:59:59.999Z
const maxEpochMillis = 253402300799999

var zonelessLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var localZone atomic.Pointer[time.Location]

// SetLocalZone sets the zone used for date-times that carry no offset
func SetLocalZone(loc *time.Location) {
	if loc != nil {
		localZone.Store(loc)
	}
}

// LocalZone returns the zone set by SetLocalZone, UTC by default
func LocalZone() *time.Location {
	if loc := localZone.Load(); loc != nil {
		return loc
	}
	return time.UTC
}

// NewTimestamp wraps t as a valid timestamp
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t, Valid: true}
}

// FromMillis builds a timestamp from epoch milliseconds
func FromMillis(ms int64) Timestamp {
	return NewTimestamp(time.UnixMilli(ms).UTC())
}

// Malformed reports a value that was present but could not be parsed
func (t Timestamp) Malformed() bool {
	return !t.Valid && t.Raw != ""
}

// IsNull reports an absent value
func (t Timestamp) IsNull() bool {
	return !t.Valid && t.Raw == ""
}

func (t Timestamp) Millis() int64 {
	return t.Time.UnixMilli()
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Malformed() {
		return json.Marshal(t.Raw)
	}
	if !t.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(t.Millis(), 10)), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	*t = Timestamp{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			t.Raw = string(data)
			return nil
		}
		*t = ParseTimestamp(s)
		return nil
	}

	if f, err := strconv.ParseFloat(string(data), 64); err == nil {
		if ms, ok := epochMillis(f); ok {
			*t = FromMillis(ms)
			return nil
		}
	}

	t.Raw = string(data)
	return nil
}

// ParseTimestamp reads the textual forms accepted from the record store and from clients
func ParseTimestamp(s string) Timestamp {
	return ParseTimestampIn(s, LocalZone())
}

// ParseTimestampIn is ParseTimestamp with an explicit zone for offset-less date-times
func ParseTimestampIn(s string, loc *time.Location) Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms < -maxEpochMillis || ms > maxEpochMillis {
			return Timestamp{Raw: s}
		}
		return FromMillis(ms)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewTimestamp(parsed)
	}
	for _, layout := range zonelessLayouts {
		if parsed, err := time.ParseInLocation(layout, s, loc); err == nil {
			return NewTimestamp(parsed)
		}
	}
	if parsed, err := time.Parse("2006-01-02", s); err == nil {
		return NewTimestamp(parsed)
	}
	return Timestamp{Raw: s}
}

// epochMillis accepts whole millisecond counts no larger than maxEpochMillis
func epochMillis(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if math.Abs(f) > maxEpochMillis {
		return 0, false
	}
	return int64(f), true
}
