package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jengzang/scam-dashboard-go/internal/dashboard"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newManager(ttl time.Duration) (*Manager, *clock) {
	c := &clock{t: time.Date(2025, 4, 18, 9, 0, 0, 0, time.UTC)}
	m := NewManager("secret", ttl, nil)
	m.now = c.now
	return m, c
}

func TestCreateAndLookup(t *testing.T) {
	m, _ := newManager(time.Minute)
	view := &dashboard.View{}

	s, err := m.Create(view)
	require.NoError(t, err)
	assert.Len(t, strings.Split(s.Token, "."), 3)

	got, err := m.Lookup(s.Token)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Same(t, view, got.View)
	assert.Nil(t, got.Map())
	assert.Equal(t, 1, m.Len())
}

func TestLookupRejects(t *testing.T) {
	m, c := newManager(time.Minute)
	s, err := m.Create(&dashboard.View{})
	require.NoError(t, err)

	_, err = m.Lookup("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewManager("other-secret", time.Minute, nil)
	other.now = c.now
	forged, err := other.Create(&dashboard.View{})
	require.NoError(t, err)
	_, err = m.Lookup(forged.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{ID: s.ID}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Lookup(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	c.t = c.t.Add(2 * time.Minute)
	_, err = m.Lookup(s.Token)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestSweep(t *testing.T) {
	m, c := newManager(time.Minute)
	_, err := m.Create(&dashboard.View{})
	require.NoError(t, err)

	c.t = c.t.Add(30 * time.Second)
	_, err = m.Create(&dashboard.View{})
	require.NoError(t, err)

	c.t = c.t.Add(40 * time.Second)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
}

func TestRunStopsWithContext(t *testing.T) {
	m := NewManager("secret", time.Millisecond, nil)
	_, err := m.Create(&dashboard.View{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, time.Millisecond)
	cancel()
	<-done
}
