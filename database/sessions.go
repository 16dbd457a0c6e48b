package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"agora/models"
	"agora/utils"

	"github.com/google/uuid"
)

// ErrSessionRetired is returned by Store when the session's row was rotated away or deleted
// after it was loaded. The caller's identifier is dead and must not be handed back out.
var ErrSessionRetired = errors.New("session retired")

const defaultSweepInterval = 10 * time.Minute

// SessionStore persists sessions in the sessions table.
type SessionStore struct {
	ds  *DatabaseService
	ttl time.Duration

	sweepEvery time.Duration
	mu         sync.Mutex
	lastSweep  time.Time
}

func NewSessionStore(ds *DatabaseService, ttl time.Duration) *SessionStore {
	return &SessionStore{ds: ds, ttl: ttl, sweepEvery: defaultSweepInterval}
}

// newSessionID returns a random (version 4) UUID, drawn from crypto/rand.
func newSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Load returns the active session for id, or nil when it is missing, expired, rotated
// away, or undecodable. Lookup failures are logged and also treated as absent.
func (s *SessionStore) Load(ctx context.Context, id string) *models.Session {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}

	var expiry time.Time
	var data string
	err := s.ds.DB.QueryRowContext(ctx,
		"SELECT expiry, data FROM sessions WHERE id = ? AND rotated = 0 AND expiry > ?",
		id, utils.GetSQLTime()).Scan(&expiry, &data)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.ds.logger.Warn("Failed to load session", "error", err)
		}
		return nil
	}

	sess, err := models.RestoreSession(id, expiry, []byte(data))
	if err != nil {
		s.ds.logger.Warn("Discarding undecodable session", "error", err)
		return nil
	}
	return sess
}

// Store persists sess and returns the identifier the client must hold from now on.
// A session marked for regeneration moves to a fresh identifier and the old one is retired.
// Otherwise the live row under the current identifier is overwritten, and ErrSessionRetired
// is returned when there is none left.
func (s *SessionStore) Store(ctx context.Context, sess *models.Session) (string, error) {
	payload, err := sess.Payload()
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	expiry := utils.GetSQLTime().Add(s.ttl)

	if sess.PendingRegeneration() || sess.ID == "" {
		newID, err := newSessionID()
		if err != nil {
			return "", fmt.Errorf("generate session id: %w", err)
		}
		oldID := sess.ID
		err = s.ds.withTx(ctx, "StoreSession", func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO sessions (id, expiry, data) VALUES (?, ?, ?)",
				newID, expiry, string(payload)); err != nil {
				return fmt.Errorf("insert session: %w", err)
			}
			if oldID == "" {
				return nil
			}
			// The retired row stays as a tombstone so a late write under oldID cannot revive it.
			_, err := tx.ExecContext(ctx, `
				INSERT INTO sessions (id, expiry, data, rotated) VALUES (?, ?, '{}', 1)
				ON CONFLICT(id) DO UPDATE SET rotated = 1, data = '{}'`,
				oldID, expiry)
			if err != nil {
				return fmt.Errorf("retire session: %w", err)
			}
			return nil
		})
		if err != nil {
			return "", err
		}
		if oldID != "" {
			s.ds.logger.Info("Session identifier rotated")
		}
		sess.Rotated(newID, expiry)
		s.maybeSweep(ctx)
		return newID, nil
	}

	// Only a live row is overwritten. Tombstones and deleted rows stay dead.
	res, err := s.ds.DB.ExecContext(ctx,
		"UPDATE sessions SET expiry = ?, data = ? WHERE id = ? AND rotated = 0",
		expiry, string(payload), sess.ID)
	if err != nil {
		return "", fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return "", ErrSessionRetired
	}
	sess.Stored(expiry)
	s.maybeSweep(ctx)
	return sess.ID, nil
}

// Sweep deletes expired rows, tombstones included, and reports how many went.
func (s *SessionStore) Sweep(ctx context.Context) (int64, error) {
	res, err := s.ds.DB.ExecContext(ctx, "DELETE FROM sessions WHERE expiry <= ?", utils.GetSQLTime())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return res.RowsAffected()
}

// maybeSweep runs Sweep at most once per sweepEvery. Failures are logged, never returned.
func (s *SessionStore) maybeSweep(ctx context.Context) {
	s.mu.Lock()
	now := time.Now()
	due := now.Sub(s.lastSweep) >= s.sweepEvery
	if due {
		s.lastSweep = now
	}
	s.mu.Unlock()
	if !due {
		return
	}

	n, err := s.Sweep(ctx)
	if err != nil {
		s.ds.logger.Warn("Failed to sweep expired sessions", "error", err)
		return
	}
	if n > 0 {
		s.ds.logger.Debug("Swept expired sessions", "count", n)
	}
}

// Destroy deletes the session row. Later loads of its identifier return nil.
func (s *SessionStore) Destroy(ctx context.Context, sess *models.Session) error {
	if sess == nil || sess.ID == "" {
		return nil
	}
	if _, err := s.ds.DB.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Clear removes every session.
func (s *SessionStore) Clear(ctx context.Context) error {
	if _, err := s.ds.DB.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	return nil
}
