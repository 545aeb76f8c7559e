// Package auth owns server-side login sessions: the session store, the signed
// session token handed to browsers, and the gate that resolves a token back to
// a user.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultSessionTTL is how long a login stays valid without a logout.
const DefaultSessionTTL = 24 * time.Hour

// ErrSessionNotFound is returned when a session id is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// Session is one logged-in browser.
type Session struct {
	ID        string
	UserID    int64
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at t.
func (s Session) Expired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// Store keeps sessions in memory. Reads run concurrently; Create, Delete and
// Sweep take the write lock. Sessions are keyed by the hash of their id.
type Store struct {
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
	mutex    sync.RWMutex
}

// NewStore creates an empty store. A non-positive ttl selects DefaultSessionTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Store{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL returns the lifetime given to new sessions.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create starts a session for the user.
func (s *Store) Create(userID int64, username string) Session {
	now := s.now()
	session := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mutex.Lock()
	s.sessions[hashSessionID(session.ID)] = session
	s.mutex.Unlock()

	return session
}

// Get returns the live session with the given id.
func (s *Store) Get(id string) (Session, error) {
	s.mutex.RLock()
	session, ok := s.sessions[hashSessionID(id)]
	s.mutex.RUnlock()

	if !ok || session.Expired(s.now()) {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Delete ends the session. Deleting an unknown id is not an error.
func (s *Store) Delete(id string) {
	s.mutex.Lock()
	delete(s.sessions, hashSessionID(id))
	s.mutex.Unlock()
}

// Len returns the number of stored sessions, expired ones included.
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.sessions)
}

// Sweep removes expired sessions and returns how many were dropped.
func (s *Store) Sweep() int {
	now := s.now()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for key, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Debug().Int("removed", n).Msg("expired sessions swept")
			}
		}
	}
}

// hashSessionID hashes a session id using SHA-256.
func hashSessionID(id string) string {
	hash := sha256.Sum256([]byte(id))
	return "$sha256$" + base64.URLEncoding.EncodeToString(hash[:])
}
