package models

import (
	"encoding/json"
	"time"
)

// Session keys used by the auth flow.
const (
	SessionUserIDKey  = "user_id"
	SessionPreAuthKey = "pre_auth"
)

// Session is the decoded state behind one session cookie.
// A nil *Session stands for the absent state.
type Session struct {
	ID     string
	Expiry time.Time

	values     map[string]json.RawMessage
	changed    bool
	regenerate bool
	destroyed  bool
}

// NewSession returns an active session that has not been persisted yet.
func NewSession() *Session {
	return &Session{values: make(map[string]json.RawMessage)}
}

// RestoreSession rebuilds a session from its persisted payload.
func RestoreSession(id string, expiry time.Time, payload []byte) (*Session, error) {
	values := make(map[string]json.RawMessage)
	if err := json.Unmarshal(payload, &values); err != nil {
		return nil, err
	}
	if values == nil {
		values = make(map[string]json.RawMessage)
	}
	return &Session{ID: id, Expiry: expiry, values: values}, nil
}

// Payload encodes the session values for storage.
func (s *Session) Payload() ([]byte, error) {
	return json.Marshal(s.values)
}

// Get decodes the value under key into dst and reports whether it was present.
func (s *Session) Get(key string, dst any) bool {
	raw, ok := s.values[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func (s *Session) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.values[key] = raw
	s.changed = true
	return nil
}

func (s *Session) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

func (s *Session) Remove(key string) {
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.changed = true
	}
}

// UserID returns the logged-in account, if any.
func (s *Session) UserID() (int64, bool) {
	if s == nil {
		return 0, false
	}
	var id int64
	if !s.Get(SessionUserIDKey, &id) {
		return 0, false
	}
	return id, true
}

// MarkPendingRegeneration requests a fresh identifier on the next store.
func (s *Session) MarkPendingRegeneration() {
	s.regenerate = true
	s.changed = true
}

func (s *Session) PendingRegeneration() bool { return s.regenerate }

// Rotated is called by the store after persisting under a new identifier.
func (s *Session) Rotated(newID string, expiry time.Time) {
	s.ID = newID
	s.Expiry = expiry
	s.regenerate = false
	s.changed = false
}

// Stored is called by the store after an in-place save.
func (s *Session) Stored(expiry time.Time) {
	s.Expiry = expiry
	s.changed = false
}

func (s *Session) Changed() bool { return s.changed }

// Destroy marks the session for deletion at the end of the request.
func (s *Session) Destroy() { s.destroyed = true }

func (s *Session) Destroyed() bool { return s.destroyed }
