package client

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-portal/internal/session"
)

type storedToken struct {
	Token string `json:"token"`
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// TokenStore persists the bearer token between CLI invocations and acts as
// the session stream: signing in or out publishes an event.
type TokenStore struct {
	path string
	now  func() time.Time

	mu    sync.Mutex
	token string
	hub   *session.Hub
}

// NewTokenStore loads the token at path. A missing, unreadable or expired
// token starts signed out.
func NewTokenStore(path string) *TokenStore {
	s := &TokenStore{path: path, now: time.Now}
	s.hub = session.NewHub(s.load())
	return s
}

func (s *TokenStore) load() session.Event {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).WithField("path", s.path).Warn("Failed to read session file")
		}
		return session.Event{}
	}
	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil || st.Token == "" || st.UID == "" {
		log.WithField("path", s.path).Warn("Ignoring malformed session file")
		return session.Event{}
	}
	if expired(st.Token, s.now()) {
		log.Debug("Stored session has expired")
		return session.Event{}
	}
	s.token = st.Token
	return session.Event{Session: &session.Session{UID: st.UID, Email: st.Email}}
}

// expired reads the exp claim without verifying the signature; the server
// remains the authority on validity.
func expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}

// Token returns the current bearer token, empty when signed out.
func (s *TokenStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Save stores token for sess and publishes the sign-in.
func (s *TokenStore) Save(token string, sess session.Session) error {
	data, err := json.Marshal(storedToken{Token: token, UID: sess.UID, Email: sess.Email})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	s.hub.Publish(session.Event{Session: &sess})
	return nil
}

// Clear removes the token and publishes the sign-out.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	s.hub.Publish(session.Event{})
	return err
}

// Current returns the signed-in session, nil when signed out.
func (s *TokenStore) Current() *session.Session {
	return s.hub.Current().Session
}

// Subscribe implements session.Stream.
func (s *TokenStore) Subscribe(fn func(session.Event)) session.Subscription {
	return s.hub.Subscribe(fn)
}

var _ session.Stream = (*TokenStore)(nil)
