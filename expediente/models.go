package expediente

import (
	"strings"
	"time"
)

// Column names as they appear in the sheet header.
const (
	ColCaseID        = "Número de Expediente"
	ColUnit          = "Dependencia"
	ColSubmittedAt   = "Fecha de Expediente"
	ColElapsedDays   = "Días restantes"
	ColStatus        = "Estado de Trámite"
	ColTransferredAt = "Fecha Pase DRCM"
)

// StatusPending marks a case that has not yet been handed off. Compared
// case-insensitively after trimming.
const StatusPending = "pendiente"

// Row 1 holds the header, data starts at row 2.
const dataStartRow = 2

// Row is one sheet row as loaded from the store, keyed by header column name.
// Cell values keep whatever type the store hands back; they are only ever
// interpreted through Normalize and cellText.
type Row map[string]any

// Record is one case file.
type Record struct {
	CaseID        string
	Unit          string
	SubmittedAt   *time.Time
	TransferredAt *time.Time
	Status        string
	// ElapsedDays is derived on every load and before every write; the
	// stored value is never trusted.
	ElapsedDays *int
	// Extra carries the sheet columns this service does not model, so a
	// full-range rewrite does not destroy columns owned by other writers.
	Extra map[string]string
}

// Pending reports whether the record is still waiting to be transferred.
func (r Record) Pending() bool {
	return equalsFold(r.Status, StatusPending)
}

// Tier is the urgency classification signaled through cell background color.
type Tier string

const (
	TierLow     Tier = "low"
	TierMedium  Tier = "medium"
	TierHigh    Tier = "high"
	TierNeutral Tier = "neutral"
)

// RGB is a background color in the store's 0..1 channel space.
type RGB struct {
	Red   float64
	Green float64
	Blue  float64
}

// CellFormat targets one cell for background recoloring. Row and Col are
// 1-based; row 1 is the header.
type CellFormat struct {
	Row        int
	Col        int
	Background RGB
}

var tierColors = map[Tier]RGB{
	TierHigh:    {Red: 1},
	TierMedium:  {Red: 1, Green: 1},
	TierLow:     {Green: 1},
	TierNeutral: {Red: 1, Green: 1, Blue: 1},
}

// TierColor returns the background color used to signal a tier.
func TierColor(t Tier) RGB {
	if c, ok := tierColors[t]; ok {
		return c
	}
	return tierColors[TierNeutral]
}

func equalsFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
