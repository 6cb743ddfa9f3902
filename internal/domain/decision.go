package domain

// Decision is the tracker verdict for one observation.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionEntered
	DecisionLeft
	DecisionUpdated
)

// String returns the string representation of Decision
func (d Decision) String() string {
	switch d {
	case DecisionNone:
		return "NONE"
	case DecisionEntered:
		return "ENTERED"
	case DecisionLeft:
		return "LEFT"
	case DecisionUpdated:
		return "UPDATED"
	default:
		return "UNKNOWN"
	}
}
