package report

import (
	"encoding/json"
	"time"

	"github.com/targodan/go-errors"
)

// TimeFormat is the layout of all timestamps in a report.
const TimeFormat = "2006-01-02T15:04:05.000000Z07:00"

// Time is a time.Time marshaled in TimeFormat.
type Time struct {
	time.Time
}

// Now returns the current time in UTC.
func Now() Time {
	return Time{time.Now().UTC()}
}

func (t Time) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, len(TimeFormat)+2)
	b = append(b, '"')
	b = t.AppendFormat(b, TimeFormat)
	b = append(b, '"')
	return b, nil
}

func (t *Time) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Newf("expected a JSON-string as Time, reason: %w", err)
	}
	parsed, err := time.Parse(TimeFormat, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
