package sheetstore

import (
	"fmt"
	"strings"
)

// rowColToA1 converts 1-based row and column numbers into A1 notation,
// e.g. (2, 1) -> "A2", (1, 28) -> "AB1".
func rowColToA1(row, col int) string {
	letters := ""
	for col > 0 {
		col--
		letters = string(rune('A'+col%26)) + letters
		col /= 26
	}
	return fmt.Sprintf("%s%d", letters, row)
}

// rangeRef qualifies a cell reference with a worksheet title, quoting the
// title so names with spaces or apostrophes stay valid. An empty ref
// addresses the whole worksheet.
func rangeRef(title, ref string) string {
	quoted := "'" + strings.ReplaceAll(title, "'", "''") + "'"
	if ref == "" {
		return quoted
	}
	return quoted + "!" + ref
}
