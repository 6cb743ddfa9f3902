package domain

import "github.com/shopspring/decimal"

// Observation is one perception result for a slot.
// Numeric probes fill Number, text probes fill Text. The zero value is the
// "no signal" sentinel and never overwrites slot history.
type Observation struct {
	Number decimal.Decimal `json:"number"`
	Text   string          `json:"text,omitempty"`
}

// NumberObservation wraps a numeric reading.
func NumberObservation(v decimal.Decimal) Observation {
	return Observation{Number: v}
}

// TextObservation wraps a text reading.
func TextObservation(s string) Observation {
	return Observation{Text: s}
}

// IsEmpty reports whether the observation carries no signal.
func (o Observation) IsEmpty() bool {
	return o.Number.IsZero() && o.Text == ""
}

// Equal compares two observations by value.
func (o Observation) Equal(other Observation) bool {
	return o.Number.Equal(other.Number) && o.Text == other.Text
}

// String renders the observation for messages and summaries.
// Empty observations render as "-".
func (o Observation) String() string {
	switch {
	case o.Text != "":
		return o.Text
	case !o.Number.IsZero():
		return o.Number.String()
	default:
		return "-"
	}
}
