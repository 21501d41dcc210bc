package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Timestamp decodes the platform's publish dates, which are either epoch
// milliseconds or ISO-8601 strings. It encodes back as epoch milliseconds.
type Timestamp time.Time

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}

	ms := time.Time(t).UnixNano() / int64(time.Millisecond)
	return []byte(fmt.Sprint(ms)), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	if b[0] != '"' {
		return t.parseEpoch(string(b))
	}

	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}

	if str == "" {
		*t = Timestamp{}
		return nil
	}

	if _, err := strconv.ParseInt(str, 10, 64); err == nil {
		return t.parseEpoch(str)
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, str); err == nil {
			*t = Timestamp(parsed)
			return nil
		}
	}

	return fmt.Errorf("unsupported timestamp %q", str)
}

func (t *Timestamp) parseEpoch(str string) error {
	value, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return err
	}

	// Values below 1e11 are seconds, anything larger is milliseconds
	if value < 1e11 {
		*t = Timestamp(time.Unix(int64(value), 0).UTC())
		return nil
	}

	*t = Timestamp(time.Unix(0, int64(value)*int64(time.Millisecond)).UTC())
	return nil
}
