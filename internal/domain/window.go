package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Window is the target range a numeric value must fall in to qualify.
// Both bounds are exclusive; a nil Max means there is no upper bound.
type Window struct {
	Min decimal.Decimal  `json:"min"`
	Max *decimal.Decimal `json:"max,omitempty"`
}

// NewWindow creates a bounded window.
func NewWindow(min, max decimal.Decimal) Window {
	return Window{Min: min, Max: &max}
}

// Contains checks Min < v < Max.
func (w Window) Contains(v decimal.Decimal) bool {
	if !v.GreaterThan(w.Min) {
		return false
	}
	if w.Max != nil && !v.LessThan(*w.Max) {
		return false
	}
	return true
}

// Validate checks Min < Max when both bounds are present.
func (w Window) Validate() error {
	if w.Max != nil && !w.Min.LessThan(*w.Max) {
		return fmt.Errorf("%w: min %s must be below max %s", ErrInvalidWindow, w.Min, w.Max)
	}
	return nil
}

// String renders the window as an open interval.
func (w Window) String() string {
	if w.Max == nil {
		return fmt.Sprintf("(%s, +inf)", w.Min)
	}
	return fmt.Sprintf("(%s, %s)", w.Min, w.Max)
}

// ContentRule matches text observations that repeat Needle more than MinCount times.
type ContentRule struct {
	Needle   string `json:"needle"`
	MinCount int    `json:"min_count"`
}

// Matches returns true when text contains Needle more than MinCount times.
func (r ContentRule) Matches(text string) bool {
	if r.Needle == "" {
		return false
	}
	return strings.Count(text, r.Needle) > r.MinCount
}
