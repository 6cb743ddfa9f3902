package domain

import (
	"fmt"
	"image"
	"strings"
)

// ProbeKind selects how a slot is read.
type ProbeKind int

const (
	ProbeNumber ProbeKind = iota
	ProbeText
)

// String returns the string representation of ProbeKind
func (k ProbeKind) String() string {
	switch k {
	case ProbeNumber:
		return "number"
	case ProbeText:
		return "text"
	default:
		return "unknown"
	}
}

// Probe holds the geometry needed to reach and read a slot.
type Probe struct {
	Kind   ProbeKind       `json:"kind"`
	Button image.Point     `json:"button"`
	Region image.Rectangle `json:"region"`
	Rules  []ContentRule   `json:"rules,omitempty"`
}

// Slot is one trackable position with its own target window.
// Only the tracking fields (LastValue, Found, LastNotified) change after construction.
type Slot struct {
	Index    int    `json:"index"`
	Label    string `json:"label"`
	Category string `json:"category"`
	Window   Window `json:"window"`
	Probe    Probe  `json:"probe"`

	LastValue    Observation `json:"last_value"`
	Found        bool        `json:"found"`
	LastNotified Observation `json:"last_notified"`
}

// Qualifies reports whether obs satisfies the slot's target condition:
// the window for numeric probes, any content rule for text probes.
func (s *Slot) Qualifies(obs Observation) bool {
	if obs.IsEmpty() {
		return false
	}
	if s.Probe.Kind == ProbeText {
		for _, rule := range s.Probe.Rules {
			if rule.Matches(obs.Text) {
				return true
			}
		}
		return false
	}
	return s.Window.Contains(obs.Number)
}

// Target renders the slot's condition, e.g. "(100, 200)" or ["+20%" > 2].
func (s *Slot) Target() string {
	if s.Probe.Kind != ProbeText {
		return s.Window.String()
	}
	rules := make([]string, 0, len(s.Probe.Rules))
	for _, r := range s.Probe.Rules {
		rules = append(rules, fmt.Sprintf("%q > %d", r.Needle, r.MinCount))
	}
	return "[" + strings.Join(rules, " | ") + "]"
}

// Validate checks the static parts of the slot.
func (s *Slot) Validate() error {
	if s.Label == "" {
		return &ConfigError{Field: fmt.Sprintf("slot[%d].label", s.Index), Err: ErrEmptyLabel}
	}
	if s.Probe.Region.Empty() {
		return &ConfigError{Field: s.Label + ".region", Err: ErrEmptyRegion}
	}
	if s.Probe.Kind == ProbeText {
		if len(s.Probe.Rules) == 0 {
			return &ConfigError{Field: s.Label + ".rules", Err: ErrNoContentRules}
		}
		for i, rule := range s.Probe.Rules {
			if rule.Needle == "" {
				return &ConfigError{Field: fmt.Sprintf("%s.rules[%d].needle", s.Label, i), Err: ErrEmptyNeedle}
			}
		}
		return nil
	}
	if err := s.Window.Validate(); err != nil {
		return &ConfigError{Field: s.Label + ".window", Err: err}
	}
	return nil
}
