package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ananth-NQI/lycapay-backend/internal/logging"
	"github.com/Ananth-NQI/lycapay-backend/internal/models"
	"github.com/Ananth-NQI/lycapay-backend/internal/storage"
)

// DefaultSessionTTL is used when no expiry window is configured.
const DefaultSessionTTL = 30 * time.Minute

// ConversationSession is the decoded view of a user's session row.
type ConversationSession struct {
	UserID    uint
	State     models.SessionState
	Action    models.SessionAction
	Data      models.FlowData
	ExpiresAt time.Time
}

// SessionStore persists conversation progress per user with a sliding expiry.
type SessionStore struct {
	store storage.Store
	ttl   time.Duration
	now   func() time.Time
	log   *logrus.Entry
}

// NewSessionStore creates a session store backed by the given storage.
func NewSessionStore(store storage.Store, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		store: store,
		ttl:   ttl,
		now:   time.Now,
		log:   logging.WithComponent("sessions"),
	}
}

// SetClock overrides the time source.
func (s *SessionStore) SetClock(now func() time.Time) {
	s.now = now
}

// Get returns the user's session. Missing, expired and undecodable sessions
// come back as a fresh idle session, which is persisted before returning.
func (s *SessionStore) Get(ctx context.Context, userID uint) (*ConversationSession, error) {
	row, err := s.store.GetSession(ctx, userID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return s.reset(ctx, userID)
	case err != nil:
		return nil, fmt.Errorf("load session for user %d: %w", userID, err)
	}

	if row.IsExpired(s.now()) {
		s.log.WithField("user_id", userID).Debug("Session expired, resetting to idle")
		return s.reset(ctx, userID)
	}

	data, err := models.DecodeFlow(row.State, row.Data)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"state":   row.State,
		}).Warn("Undecodable session payload, resetting to idle")
		return s.reset(ctx, userID)
	}

	return &ConversationSession{
		UserID:    userID,
		State:     row.State,
		Action:    row.Action(),
		Data:      data,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

// Update overwrites state, action and data, and pushes the expiry forward.
func (s *SessionStore) Update(ctx context.Context, userID uint, state models.SessionState, action models.SessionAction, data models.FlowData) error {
	if data == nil {
		data = models.Empty{}
	}
	raw, err := models.EncodeFlow(data)
	if err != nil {
		return fmt.Errorf("encode session for user %d: %w", userID, err)
	}

	row := &models.Session{
		UserID:    userID,
		State:     state,
		Data:      raw,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if action != models.ActionNone {
		a := action
		row.CurrentAction = &a
	}

	if existing, err := s.store.GetSession(ctx, userID); err == nil {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load session for user %d: %w", userID, err)
	}

	if err := s.store.SaveSession(ctx, row); err != nil {
		return fmt.Errorf("save session for user %d: %w", userID, err)
	}
	return nil
}

// Clear resets the session to idle with no action and empty data. The row is
// kept and its expiry refreshed.
func (s *SessionStore) Clear(ctx context.Context, userID uint) error {
	return s.Update(ctx, userID, models.StateIdle, models.ActionNone, models.Empty{})
}

func (s *SessionStore) reset(ctx context.Context, userID uint) (*ConversationSession, error) {
	if err := s.Clear(ctx, userID); err != nil {
		return nil, err
	}
	return &ConversationSession{
		UserID:    userID,
		State:     models.StateIdle,
		Action:    models.ActionNone,
		Data:      models.Empty{},
		ExpiresAt: s.now().Add(s.ttl),
	}, nil
}
