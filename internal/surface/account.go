package surface

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ternarybob/mfaflow/internal/common"
)

// Account is the single identity the fixture accepts
type Account struct {
	Login            string
	Password         string
	DisplayName      string
	EnabledPositions []int
	// FieldCount is the number of masked inputs rendered; 0 means one per password character.
	// Counts beyond the password length declare positions that cannot be satisfied.
	FieldCount int
	// Markers overrides the position marker of each field; "-" renders no marker
	Markers []string
}

// DefaultAccount returns the reference account
func DefaultAccount() Account {
	return AccountFromConfig(common.NewDefaultConfig().Fixture)
}

// AccountFromConfig builds the account from fixture configuration
func AccountFromConfig(cfg common.FixtureConfig) Account {
	positions := make([]int, len(cfg.EnabledPositions))
	copy(positions, cfg.EnabledPositions)
	return Account{
		Login:            cfg.Login,
		Password:         cfg.Password,
		DisplayName:      cfg.DisplayName,
		EnabledPositions: positions,
		FieldCount:       cfg.FieldCount,
	}
}

// Welcome returns the post-login greeting
func (a Account) Welcome() string {
	return fmt.Sprintf("Welcome, %s!", a.DisplayName)
}

// Field is one masked input as rendered by the login page
type Field struct {
	Marker  *string `json:"marker,omitempty"`
	Enabled bool    `json:"enabled"`
}

// Fields returns the masked inputs in page order
func (a Account) Fields() []Field {
	count := a.FieldCount
	if count == 0 {
		count = len([]rune(a.Password))
	}
	if len(a.Markers) > count {
		count = len(a.Markers)
	}

	enabled := make(map[int]bool, len(a.EnabledPositions))
	for _, pos := range a.EnabledPositions {
		enabled[pos] = true
	}

	fields := make([]Field, count)
	for i := range fields {
		marker := strconv.Itoa(i + 1)
		if i < len(a.Markers) {
			marker = a.Markers[i]
		}
		if marker != "-" {
			m := marker
			fields[i].Marker = &m
		}
		fields[i].Enabled = enabled[i+1]
	}
	return fields
}

// Verify reports whether chars holds exactly the enabled positions with matching characters
func (a Account) Verify(chars map[int]string) bool {
	password := []rune(a.Password)
	if len(chars) != len(a.EnabledPositions) {
		return false
	}
	for _, pos := range a.EnabledPositions {
		if pos < 1 || pos > len(password) {
			return false
		}
		if chars[pos] != string(password[pos-1]) {
			return false
		}
	}
	return true
}

type stage string

const (
	stageCode     stage = "code"
	stagePassword stage = "password"
	stageDone     stage = "done"
)

type loginSession struct {
	id        string
	code      string
	stage     stage
	createdAt time.Time
}

// sessionStore tracks in-progress logins by uuid
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*loginSession
	ttl      time.Duration
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*loginSession),
		ttl:      ttl,
	}
}

func (s *sessionStore) create() (*loginSession, error) {
	code, err := newCode()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, sess := range s.sessions {
		if now.Sub(sess.createdAt) > s.ttl {
			delete(s.sessions, id)
		}
	}

	sess := &loginSession{
		id:        common.NewSessionID(),
		code:      code,
		stage:     stageCode,
		createdAt: now,
	}
	s.sessions[sess.id] = sess
	return sess, nil
}

// get returns a copy of the session so callers never race on its fields
func (s *sessionStore) get(id string) (loginSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || time.Since(sess.createdAt) > s.ttl {
		return loginSession{}, false
	}
	return *sess, true
}

// advance moves the session from one stage to the next; false if it was not in from
func (s *sessionStore) advance(id string, from, to stage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.stage != from {
		return false
	}
	sess.stage = to
	return true
}

func (s *sessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// newCode returns a six-digit one-time code
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
