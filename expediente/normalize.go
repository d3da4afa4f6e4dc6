package expediente

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayout is how the sheet stores date/time cells.
const timestampLayout = "02/01/2006 15:04:05"

// dateLayouts are tried in order; the first that parses wins.
var dateLayouts = []string{
	timestampLayout,
	"02/01/2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Text cells equal to any of these (case-insensitive, trimmed) mean "no
// value". The non-empty entries are artifacts of upstream exports.
var nullSentinels = map[string]bool{
	"":     true,
	"none": true,
	"nan":  true,
	"nat":  true,
}

// serialEpoch is day zero of the sheet's serial date numbers.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ParseError reports why a raw cell value could not be read as a timestamp.
// It stays internal to the load path; callers of Normalize only ever see nil.
type ParseError struct {
	Raw    any
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("expediente: parse timestamp %q: %s", fmt.Sprint(e.Raw), e.Reason)
}

// Normalize converts a stored cell value into a canonical timestamp. It
// accepts typed times, serial day numbers, text in the sheet's two layouts,
// ISO-8601 text, and null markers. It never panics; anything unreadable
// comes back nil.
func Normalize(raw any) *time.Time {
	t, err := parseTimestamp(raw)
	if err != nil {
		return nil
	}
	return &t
}

// parseTimestamp is the inspectable inner form of Normalize.
func parseTimestamp(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, &ParseError{Raw: raw, Reason: "null value"}
	case time.Time:
		if v.IsZero() {
			return time.Time{}, &ParseError{Raw: raw, Reason: "zero time"}
		}
		return v, nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, &ParseError{Raw: raw, Reason: "null value"}
		}
		return *v, nil
	case float64:
		return fromSerial(v)
	case int:
		return fromSerial(float64(v))
	case int64:
		return fromSerial(float64(v))
	case string:
		return parseText(v)
	default:
		return time.Time{}, &ParseError{Raw: raw, Reason: "unsupported cell type"}
	}
}

func fromSerial(days float64) (time.Time, error) {
	if days <= 0 {
		return time.Time{}, &ParseError{Raw: days, Reason: "serial day out of range"}
	}
	return serialEpoch.Add(time.Duration(days * 24 * float64(time.Hour))), nil
}

func parseText(s string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if nullSentinels[strings.ToLower(trimmed)] {
		return time.Time{}, &ParseError{Raw: s, Reason: "null sentinel"}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ParseError{Raw: s, Reason: "no layout matched"}
}

// FormatTimestamp renders a canonical timestamp the way the sheet stores it,
// or an empty string for nil.
func FormatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timestampLayout)
}
