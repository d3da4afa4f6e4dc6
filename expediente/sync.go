package expediente

import (
	"fmt"
	"strconv"
	"strings"
)

// decodeRow maps one loaded sheet row onto a Record. Unmodeled columns land
// in Extra verbatim so they survive the full-range rewrite. The stored
// elapsed-days cell is ignored on purpose.
func decodeRow(row Row) Record {
	rec := Record{Extra: make(map[string]string)}
	for name, raw := range row {
		switch strings.TrimSpace(name) {
		case ColCaseID:
			rec.CaseID = strings.TrimSpace(cellText(raw))
		case ColUnit:
			rec.Unit = strings.TrimSpace(cellText(raw))
		case ColSubmittedAt:
			rec.SubmittedAt = Normalize(raw)
		case ColTransferredAt:
			rec.TransferredAt = Normalize(raw)
		case ColStatus:
			rec.Status = strings.TrimSpace(cellText(raw))
		case ColElapsedDays:
			// derived, recomputed on every load
		default:
			rec.Extra[strings.TrimSpace(name)] = cellText(raw)
		}
	}
	return rec
}

// fields serializes the record into cell text keyed by column name,
// pass-through columns included.
func (r Record) fields() map[string]string {
	out := make(map[string]string, len(r.Extra)+6)
	for name, value := range r.Extra {
		out[name] = value
	}
	out[ColCaseID] = r.CaseID
	out[ColUnit] = r.Unit
	out[ColSubmittedAt] = FormatTimestamp(r.SubmittedAt)
	out[ColTransferredAt] = FormatTimestamp(r.TransferredAt)
	out[ColStatus] = r.Status
	out[ColElapsedDays] = formatElapsed(r.ElapsedDays)
	return out
}

func formatElapsed(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

// serializeRows builds the rectangular write block: the columns are the
// intersection of the live header with the record field universe, in the
// header's order; header columns nobody carries are dropped silently.
func serializeRows(header []string, records []Record) (rows [][]string, selected []string) {
	if len(records) == 0 {
		return nil, nil
	}
	universe := make(map[string]bool)
	for _, rec := range records {
		for name := range rec.fields() {
			universe[name] = true
		}
	}
	for _, col := range header {
		if universe[strings.TrimSpace(col)] {
			selected = append(selected, strings.TrimSpace(col))
		}
	}
	if len(selected) == 0 {
		return nil, nil
	}
	rows = make([][]string, 0, len(records))
	for _, rec := range records {
		fields := rec.fields()
		row := make([]string, 0, len(selected))
		for _, col := range selected {
			row = append(row, fields[col])
		}
		rows = append(rows, row)
	}
	return rows, selected
}

func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(t)
	}
}
