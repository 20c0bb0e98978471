package scrape

import (
	"crypto/rand"
	"math/big"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Session is the reusable identity context for one domain: a cookie jar that
// accumulates across requests plus a client identity chosen when the session
// is created. Identities are never shared across domains.
type Session struct {
	Jar       http.CookieJar
	UserAgent string
	Headers   http.Header
}

// SessionStore owns one Session per domain and rotates identities when a
// response signals likely detection.
type SessionStore struct {
	mu          sync.Mutex
	sessions    map[string]*sessionState
	userAgents  []string
	rotateAfter int
	logger      *zap.Logger
}

type sessionState struct {
	session  Session
	requests int
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
}

// NewSessionStore creates a store. An empty userAgents slice falls back to a
// built-in pool. rotateAfter <= 0 disables request-count rotation.
func NewSessionStore(userAgents []string, rotateAfter int, logger *zap.Logger) *SessionStore {
	if len(userAgents) == 0 {
		userAgents = defaultUserAgents
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		sessions:    make(map[string]*sessionState),
		userAgents:  userAgents,
		rotateAfter: rotateAfter,
		logger:      logger,
	}
}

// Get returns the session for domain, creating one on first use. Each call
// counts as one request toward the rotation budget.
func (s *SessionStore) Get(domain string) Session {
	key := strings.ToLower(strings.TrimSpace(domain))
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[key]
	if !ok {
		st = &sessionState{session: s.newSession()}
		s.sessions[key] = st
		s.logger.Debug("created session", zap.String("domain", key))
	}
	st.requests++
	if s.rotateAfter > 0 && st.requests > s.rotateAfter {
		st.session.UserAgent = s.pickUserAgent()
		st.session.Headers = randomHeaders(st.session.UserAgent)
		st.requests = 1
		s.logger.Debug("rotated identity after request budget", zap.String("domain", key))
	}
	return st.session
}

// Rotate swaps the identity for domain so the next attempt presents a
// different user agent and header set. The cookie jar is replaced as well:
// cookies issued to a flagged identity are a liability, not an asset.
func (s *SessionStore) Rotate(domain string) {
	key := strings.ToLower(strings.TrimSpace(domain))
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[key]
	if !ok {
		return
	}
	st.session = s.newSession()
	st.requests = 0
	s.logger.Debug("rotated session identity", zap.String("domain", key))
}

func (s *SessionStore) newSession() Session {
	jar, err := cookiejar.New(nil)
	if err != nil {
		jar = nil
	}
	ua := s.pickUserAgent()
	return Session{
		Jar:       jar,
		UserAgent: ua,
		Headers:   randomHeaders(ua),
	}
}

func (s *SessionStore) pickUserAgent() string {
	return s.userAgents[randomIndex(len(s.userAgents))]
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.8",
	"en-US,en;q=0.9,de;q=0.5",
}

func randomHeaders(userAgent string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", acceptLanguages[randomIndex(len(acceptLanguages))])
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("DNT", "1")
	return h
}

func randomIndex(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}
