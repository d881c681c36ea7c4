// Package session holds per-user submission wizard progress.
package session

import (
	"context"
	"sync"
	"time"
)

// Step is the wizard cursor.
type Step string

const (
	StepIdle        Step = "idle"
	StepTitle       Step = "title"
	StepYear        Step = "year"
	StepQuality     Step = "quality"
	StepLanguage    Step = "language"
	StepSize        Step = "size"
	StepLink        Step = "link"
	StepMediaChoice Step = "media_choice"
	StepMediaWait   Step = "media_wait"
	StepSummary     Step = "summary"
)

// Draft is a catalog entry under construction.
type Draft struct {
	Title    string `json:"title"`
	Year     string `json:"year"`
	Quality  string `json:"quality"`
	Language string `json:"language"`
	Size     string `json:"size"`
	Link     string `json:"link"`
}

type Session struct {
	UserID    int64     `json:"user_id"`
	Step      Step      `json:"step"`
	Draft     Draft     `json:"draft"`
	MediaRef  string    `json:"media_ref,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WizardActive reports whether the session is mid-wizard.
func (s Session) WizardActive() bool {
	return s.Step != "" && s.Step != StepIdle
}

// AwaitingMedia reports whether a photo is acceptable at the current step.
func (s Session) AwaitingMedia() bool {
	return s.Step == StepMediaChoice || s.Step == StepMediaWait
}

// Store keeps at most one session per user. Clear is idempotent.
type Store interface {
	Get(ctx context.Context, userID int64) (Session, bool, error)
	Set(ctx context.Context, userID int64, sess Session) error
	Clear(ctx context.Context, userID int64) error
}

type memoryEntry struct {
	sess      Session
	expiresAt time.Time
}

// MemoryStore is an in-process Store. A zero ttl disables expiry.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int64]memoryEntry
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[int64]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, userID int64) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[userID]
	if !ok {
		return Session{}, false, nil
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.entries, userID)
		return Session{}, false, nil
	}
	return entry.sess, true, nil
}

func (m *MemoryStore) Set(_ context.Context, userID int64, sess Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	sess.UserID = userID
	sess.UpdatedAt = now
	entry := memoryEntry{sess: sess}
	if m.ttl > 0 {
		entry.expiresAt = now.Add(m.ttl)
	}
	m.entries[userID] = entry
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
