// Package session keeps the per-viewer dashboard state behind signed tokens.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jengzang/scam-dashboard-go/internal/dashboard"
	"github.com/jengzang/scam-dashboard-go/internal/maplayer"
)

const issuer = "scam-dashboard"

var (
	ErrInvalidToken   = errors.New("invalid session token")
	ErrUnknownSession = errors.New("unknown or expired session")
)

// Session is one viewer's booted dashboard.
type Session struct {
	ID        string
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	View      *dashboard.View
}

// Map returns the viewer's map controller, nil when the boot had no map.
func (s *Session) Map() *maplayer.Controller {
	if s.View == nil {
		return nil
	}
	return s.View.Controller()
}

// Manager issues tokens and owns live sessions.
type Manager struct {
	secret []byte
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager signing with secret.
func NewManager(secret string, ttl time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Manager{
		secret:   []byte(secret),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create registers a booted view and returns its session.
func (m *Manager) Create(view *dashboard.View) (*Session, error) {
	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
		View:      view,
	}

	claims := jwt.RegisteredClaims{
		ID:        s.ID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	s.Token = token

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Debug("session created", zap.String("id", s.ID))
	return s, nil
}

// Lookup verifies token and returns its live session.
func (m *Manager) Lookup(token string) (*Session, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrUnknownSession
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	m.mu.RLock()
	s, ok := m.sessions[claims.ID]
	m.mu.RUnlock()
	if !ok || !m.now().Before(s.ExpiresAt) {
		return nil, ErrUnknownSession
	}
	return s, nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info("expired sessions swept", zap.Int("count", n))
			}
		}
	}
}
