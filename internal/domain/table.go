package domain

import (
	"fmt"
	"image"
)

// Category groups slots that share navigation clicks.
// Optional clicks are nil when the surface does not need them.
type Category struct {
	Name     string        `json:"name"`
	Select   *image.Point  `json:"select,omitempty"`    // entering the category
	Back     *image.Point  `json:"back,omitempty"`      // before every slot selection
	Filter   []image.Point `json:"filter,omitempty"`    // after the slot selection
	Close    *image.Point  `json:"close,omitempty"`     // after the probe
	NextPage *image.Point  `json:"next_page,omitempty"` // when the category wraps
	Images   bool          `json:"images"`
	Slots    []*Slot       `json:"slots"`
}

// Step describes what a cursor advance crossed.
type Step struct {
	Wrapped       bool // rolled past the last slot of the category
	PassCompleted bool // rolled past the last slot of the table
}

// SlotTable is the ordered, fixed set of slots plus the probe cursor.
// It is owned by the cycle controller and must not be shared.
type SlotTable struct {
	categories []*Category
	slots      []*Slot

	cat int // current category
	pos int // position inside the current category
}

// NewSlotTable assigns flat indices in category order and validates every slot.
func NewSlotTable(categories []*Category) (*SlotTable, error) {
	t := &SlotTable{categories: categories}
	for ci, c := range categories {
		if len(c.Slots) == 0 {
			return nil, &ConfigError{Field: fmt.Sprintf("categories[%d]", ci), Err: ErrEmptyTable}
		}
		for _, s := range c.Slots {
			s.Index = len(t.slots)
			s.Category = c.Name
			if err := s.Validate(); err != nil {
				return nil, err
			}
			t.slots = append(t.slots, s)
		}
	}
	if len(t.slots) == 0 {
		return nil, ErrEmptyTable
	}
	return t, nil
}

// Len returns the number of slots.
func (t *SlotTable) Len() int {
	return len(t.slots)
}

// Slots returns all slots in cursor order.
func (t *SlotTable) Slots() []*Slot {
	return t.slots
}

// Categories returns the categories in cursor order.
func (t *SlotTable) Categories() []*Category {
	return t.categories
}

// Current returns the slot to probe next.
func (t *SlotTable) Current() *Slot {
	return t.categories[t.cat].Slots[t.pos]
}

// CurrentCategory returns the category holding the current slot.
func (t *SlotTable) CurrentCategory() *Category {
	return t.categories[t.cat]
}

// Position returns the cursor position inside the current category.
func (t *SlotTable) Position() int {
	return t.pos
}

// Cursor returns the flat index of the current slot, always in [0, Len()).
func (t *SlotTable) Cursor() int {
	return t.Current().Index
}

// Advance moves the cursor inside the category first, then rolls over to the
// next category, wrapping to the first category after the last.
func (t *SlotTable) Advance() Step {
	var step Step
	t.pos++
	if t.pos < len(t.categories[t.cat].Slots) {
		return step
	}
	step.Wrapped = true
	t.pos = 0
	t.cat++
	if t.cat == len(t.categories) {
		t.cat = 0
		step.PassCompleted = true
	}
	return step
}
