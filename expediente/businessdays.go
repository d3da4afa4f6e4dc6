package expediente

import "time"

// dateOnly drops the time-of-day component, keeping the location.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// BusinessDaysBetween counts the Monday–Friday days in the inclusive
// calendar range [start, end] and subtracts the start day itself, so it
// returns the business days strictly elapsed since submission. A reversed
// range yields 0, never a negative count. Time of day is ignored; no
// holiday calendar is consulted.
func BusinessDaysBetween(start, end time.Time) int {
	from, to := dateOnly(start), dateOnly(end)
	if to.Before(from) {
		return 0
	}
	count := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return count - 1
}

// elapsedFor derives the aged business-day count for a record. A record
// without a submission date has no meaningful age. A transferred record ages
// up to its transfer date; a pending one ages up to ref (start of "today").
func elapsedFor(rec Record, ref time.Time) *int {
	if rec.SubmittedAt == nil {
		return nil
	}
	end := ref
	if rec.TransferredAt != nil {
		end = *rec.TransferredAt
	}
	n := BusinessDaysBetween(*rec.SubmittedAt, end)
	return &n
}
