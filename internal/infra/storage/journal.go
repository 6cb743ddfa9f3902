// Package storage keeps an audit journal of monitoring sessions in SQLite.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"slot_watch/internal/event"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNoSession is returned when journal writes happen outside Begin/End.
var ErrNoSession = errors.New("no open journal session")

// Journal records sessions, probes, transitions and notifications.
// It implements event.Sink; write failures are logged, never returned.
type Journal struct {
	db *gorm.DB

	mu      sync.Mutex
	session string
}

// Open creates (or reuses) the database at path.
func Open(path string) (*Journal, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&SessionRecord{}, &ObservationRecord{}, &TransitionRecord{}, &NotificationRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Begin opens a new session and returns its id.
func (j *Journal) Begin(name string, slots int) (string, error) {
	rec := &SessionRecord{
		ID:        uuid.NewString(),
		Name:      name,
		Slots:     slots,
		StartedAt: time.Now(),
	}
	if err := j.db.Create(rec).Error; err != nil {
		return "", err
	}

	j.mu.Lock()
	j.session = rec.ID
	j.mu.Unlock()
	return rec.ID, nil
}

// End closes the current session with a reason.
func (j *Journal) End(reason string) error {
	j.mu.Lock()
	id := j.session
	j.session = ""
	j.mu.Unlock()

	if id == "" {
		return ErrNoSession
	}
	now := time.Now()
	return j.db.Model(&SessionRecord{}).Where("id = ?", id).
		Updates(map[string]any{"ended_at": &now, "reason": reason}).Error
}

// SessionID returns the open session, or "".
func (j *Journal) SessionID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.session
}

// Publish implements event.Sink.
func (j *Journal) Publish(ev event.Event) {
	id := j.SessionID()
	if id == "" {
		return
	}

	var rec any
	switch e := ev.(type) {
	case *event.DecisionEvent:
		rec = &ObservationRecord{
			SessionID: id,
			Seq:       e.Seq,
			SlotIndex: e.SlotIndex,
			Label:     e.Label,
			Category:  e.Category,
			Value:     e.Value.String(),
			Decision:  e.Decision.String(),
			Found:     e.Found,
			At:        e.Ts,
		}
	case *event.TransitionEvent:
		rec = &TransitionRecord{
			SessionID: id,
			Seq:       e.Seq,
			From:      string(e.From),
			To:        string(e.To),
			At:        e.Ts,
		}
	case *event.NotificationEvent:
		rec = &NotificationRecord{
			SessionID: id,
			Seq:       e.Seq,
			Kind:      string(e.Kind),
			Text:      e.Text,
			At:        e.Ts,
		}
	default:
		return
	}

	if err := j.db.Create(rec).Error; err != nil {
		slog.Error("Journal write failed", slog.String("type", string(ev.GetType())), slog.Any("error", err))
	}
}

// ======================================================================================
// Queries
// ======================================================================================

// Sessions returns sessions, newest first.
func (j *Journal) Sessions(limit int) ([]SessionRecord, error) {
	var out []SessionRecord
	err := j.db.Order("started_at desc").Limit(limit).Find(&out).Error
	return out, err
}

// Session returns one session, or nil when it does not exist.
func (j *Journal) Session(id string) (*SessionRecord, error) {
	var rec SessionRecord
	err := j.db.First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &rec, err
}

// Observations returns the probes of one slot in a session, oldest first.
func (j *Journal) Observations(sessionID string, slotIndex int) ([]ObservationRecord, error) {
	var out []ObservationRecord
	err := j.db.Where("session_id = ? AND slot_index = ?", sessionID, slotIndex).
		Order("seq asc").Find(&out).Error
	return out, err
}

// Transitions returns the state changes of a session, oldest first.
func (j *Journal) Transitions(sessionID string) ([]TransitionRecord, error) {
	var out []TransitionRecord
	err := j.db.Where("session_id = ?", sessionID).Order("seq asc").Find(&out).Error
	return out, err
}

// Notifications returns what was sent during a session, oldest first.
func (j *Journal) Notifications(sessionID string) ([]NotificationRecord, error) {
	var out []NotificationRecord
	err := j.db.Where("session_id = ?", sessionID).Order("seq asc").Find(&out).Error
	return out, err
}
