// Package progress tracks the lifecycle of import sessions for polling
// clients. Sessions live in process memory and do not survive a restart.
package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/bankfeed-dev/bankfeed/internal/domain"
)

// Status is the lifecycle state of an import session.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Step is the pipeline stage a session is currently in.
type Step string

const (
	StepDeduplicating Step = "deduplicating"
	StepMatching      Step = "matching"
	StepCategorizing  Step = "categorizing"
	StepWriting       Step = "writing"
	StepDone          Step = "done"
)

// Session is the pollable state of one import run. Mutated only by the
// orchestrator task driving that session; read by polling clients.
type Session struct {
	SessionID         string                `json:"session_id"`
	Status            Status                `json:"status"`
	CurrentStep       Step                  `json:"current_step"`
	TotalTransactions int                   `json:"total_transactions"`
	ProcessedCount    int                   `json:"processed_count"`
	CurrentBatch      int                   `json:"current_batch"`
	Errors            []string              `json:"errors,omitempty"`
	Warnings          []string              `json:"warnings,omitempty"`
	StartedAt         time.Time             `json:"started_at"`
	CompletedAt       *time.Time            `json:"completed_at,omitempty"`
	Process           *domain.ProcessResult `json:"process,omitempty"`
	Execute           *domain.ExecuteResult `json:"execute,omitempty"`
}

// Terminal reports whether the session reached a final status.
func (s *Session) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// DefaultRetention is how long terminal sessions remain pollable before the
// janitor removes them.
const DefaultRetention = 30 * time.Minute

const janitorInterval = time.Minute

// Store is an in-memory session store safe for concurrent use. Updates to
// different keys never interfere; updates to the same key are serialized by
// the single driver task per session plus the store's lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	retention time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewStore creates a session store and starts its retention janitor.
// retention <= 0 selects DefaultRetention.
func NewStore(retention time.Duration) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	s := &Store{
		sessions:  make(map[string]*Session),
		retention: retention,
		stop:      make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Create registers a new session. The id must be unused.
func (s *Store) Create(sess *Session) error {
	if sess.SessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.SessionID]; exists {
		return fmt.Errorf("session already exists: %s", sess.SessionID)
	}

	cp := *sess
	s.sessions[sess.SessionID] = &cp
	return nil
}

// Update applies patch to the stored session under the store's lock.
func (s *Store) Update(sessionID string, patch func(*Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[sessionID]
	if !exists {
		return fmt.Errorf("session not found: %s", sessionID)
	}

	patch(sess)
	return nil
}

// Get returns a copy of the session, or nil for an unknown or expired id.
// Callers must treat nil as "session not found", distinct from "still
// processing".
func (s *Store) Get(sessionID string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[sessionID]
	if !exists {
		return nil
	}

	// Copy to avoid external modifications; slices are cloned because the
	// driver task may still be appending.
	cp := *sess
	cp.Errors = append([]string(nil), sess.Errors...)
	cp.Warnings = append([]string(nil), sess.Warnings...)
	return &cp
}

// Close stops the retention janitor.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

// sweep removes terminal sessions whose completion is older than the
// retention window, keeping the map from growing unbounded.
func (s *Store) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if !sess.Terminal() || sess.CompletedAt == nil {
			continue
		}
		if now.Sub(*sess.CompletedAt) > s.retention {
			delete(s.sessions, id)
		}
	}
}
