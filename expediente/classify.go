package expediente

// Aging thresholds in elapsed business days.
const (
	mediumThreshold = 4
	highThreshold   = 6
)

// ClassifyElapsed maps an elapsed business-day count to its urgency tier.
// A nil count (no submission date) is neutral.
func ClassifyElapsed(elapsed *int) Tier {
	switch {
	case elapsed == nil:
		return TierNeutral
	case *elapsed >= highThreshold:
		return TierHigh
	case *elapsed >= mediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}
