// Package session holds the in-memory mapping between Discord users and their
// Chatwoot contact and conversation. The mapping is volatile and lives for the
// process lifetime.
package session

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	// ErrIncomplete is returned when a session lacks the identifiers needed to relay messages.
	ErrIncomplete = errors.New("session is incomplete")
	// ErrExists is returned when a session is already stored for the user.
	ErrExists = errors.New("session already exists")
)

// Session links one Discord user to a Chatwoot contact and conversation.
type Session struct {
	UserID          string    `json:"user_id"`
	Username        string    `json:"username"`
	ContactSourceID string    `json:"contact_source_id"`
	ContactID       int64     `json:"contact_id"`
	ConversationID  int64     `json:"conversation_id"`
	PubsubToken     string    `json:"pubsub_token,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Complete reports whether the session carries both the contact source id and
// the conversation id.
func (s Session) Complete() bool {
	return strings.TrimSpace(s.ContactSourceID) != "" && s.ConversationID != 0
}

// Store maps user ids to sessions. Entries are never mutated or removed once stored.
type Store struct {
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]Session
	order   []string
}

// NewStore creates an empty Store.
func NewStore(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		logger:  log.With(slog.String("component", "session_store")),
		entries: map[string]Session{},
	}
}

// Get returns the session stored for userID.
func (s *Store) Get(userID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.entries[userID]
	return sess, ok
}

// Put stores sess under userID. Incomplete sessions are rejected, and so is a
// second session for a known user: the stored one is left untouched.
func (s *Store) Put(userID string, sess Session) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("user id is required")
	}
	if !sess.Complete() {
		return ErrIncomplete
	}
	if sess.UserID == "" {
		sess.UserID = userID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[userID]; exists {
		return ErrExists
	}
	s.order = append(s.order, userID)
	s.entries[userID] = sess
	return nil
}

// FindByConversationID returns the user whose session points at conversationID.
// The scan follows insertion order and the first match wins; further matches are
// logged because conversation ids are expected to be unique.
func (s *Store) FindByConversationID(conversationID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := ""
	for _, userID := range s.order {
		if s.entries[userID].ConversationID != conversationID {
			continue
		}
		if found == "" {
			found = userID
			continue
		}
		s.logger.Warn("conversation mapped to multiple users",
			slog.Int64("conversation_id", conversationID),
			slog.String("selected_user_id", found),
			slog.String("ignored_user_id", userID),
		)
	}
	return found, found != ""
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
