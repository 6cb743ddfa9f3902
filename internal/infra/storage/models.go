package storage

import "time"

// SessionRecord is one Run of the cycle controller.
type SessionRecord struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	Name      string     `json:"name"`
	Slots     int        `json:"slots"`
	StartedAt time.Time  `gorm:"index" json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// ObservationRecord is one probe and its tracker decision.
type ObservationRecord struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	SessionID string    `gorm:"index:idx_obs_slot;size:36" json:"session_id"`
	SlotIndex int       `gorm:"index:idx_obs_slot" json:"slot_index"`
	Seq       uint64    `json:"seq"`
	Label     string    `json:"label"`
	Category  string    `json:"category"`
	Value     string    `json:"value"`
	Decision  string    `json:"decision"`
	Found     bool      `json:"found"`
	At        time.Time `json:"at"`
}

// TransitionRecord is one run state change.
type TransitionRecord struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	SessionID string    `gorm:"index;size:36" json:"session_id"`
	Seq       uint64    `json:"seq"`
	From      string    `gorm:"column:from_state" json:"from"`
	To        string    `gorm:"column:to_state" json:"to"`
	At        time.Time `json:"at"`
}

// NotificationRecord is one message handed to the notifier.
type NotificationRecord struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	SessionID string    `gorm:"index;size:36" json:"session_id"`
	Seq       uint64    `json:"seq"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	At        time.Time `json:"at"`
}
