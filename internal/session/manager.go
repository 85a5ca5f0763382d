package session

import (
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/titannode/titannode/internal/model"
)

// NodeInfo is the static descriptor reported on registration.
type NodeInfo struct {
	ExtVersion        string
	UserScriptEnabled bool
}

// DefaultNodeInfo returns the descriptor the browser extension reports.
func DefaultNodeInfo() NodeInfo {
	return NodeInfo{
		ExtVersion:        "0.0.4",
		UserScriptEnabled: true,
	}
}

// Manager is the Session Manager for one identity.
//
// The client context and auth state are guarded by mu: the supervisor loop,
// the keepalive task and the poller of the same identity all go through the
// manager. Nothing here is shared with other identities.
type Manager struct {
	identity *model.Identity
	logger   *slog.Logger

	timeout      time.Duration
	maxRetries   int
	retryBackoff time.Duration
	node         NodeInfo
	locale       language.Tag
	agents       []string

	mu          sync.RWMutex
	httpClient  *http.Client
	header      http.Header
	accessToken string
	userID      string
	email       string
}

// Option configures a Manager.
type Option func(*Manager)

// NewManager creates a Session Manager for identity and builds its first
// client context.
func NewManager(identity *model.Identity, opts ...Option) *Manager {
	m := &Manager{
		identity:     identity,
		logger:       slog.Default(),
		timeout:      30 * time.Second,
		maxRetries:   2,
		retryBackoff: time.Second,
		node:         DefaultNodeInfo(),
		locale:       language.AmericanEnglish,
		agents:       defaultUserAgents,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.Reset()
	return m
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithRetries sets the retry configuration for retryable HTTP failures.
func WithRetries(max int, backoff time.Duration) Option {
	return func(m *Manager) {
		m.maxRetries = max
		m.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithNodeInfo sets the registration descriptor.
func WithNodeInfo(info NodeInfo) Option {
	return func(m *Manager) {
		m.node = info
	}
}

// WithLocale sets the locale used for Accept-Language and registration.
func WithLocale(tag language.Tag) Option {
	return func(m *Manager) {
		m.locale = tag
	}
}

// WithUserAgents replaces the pool user agents are drawn from.
func WithUserAgents(agents []string) Option {
	return func(m *Manager) {
		if len(agents) > 0 {
			m.agents = agents
		}
	}
}

// Reset rebuilds the client context: a new HTTP client on the same proxy and
// a fresh header set with a newly drawn user agent. The Authorization header
// is dropped until the next successful refresh.
func (m *Manager) Reset() {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	if m.identity.Proxy != nil {
		transport.Proxy = http.ProxyURL(m.identity.Proxy)
	}

	header := http.Header{}
	header.Set("Accept", "*/*")
	header.Set("Accept-Language", acceptLanguage(m.locale))
	header.Set("Content-Type", "application/json")
	header.Set("User-Agent", randomUserAgent(m.agents))

	m.mu.Lock()
	if m.httpClient != nil {
		m.httpClient.CloseIdleConnections()
	}
	m.httpClient = &http.Client{
		Timeout:   m.timeout,
		Transport: transport,
	}
	m.header = header
	m.mu.Unlock()
}

// Identity returns the identity this manager serves.
func (m *Manager) Identity() *model.Identity {
	return m.identity
}

// Proxy returns the proxy all requests go through, nil in direct mode.
func (m *Manager) Proxy() *url.URL {
	return m.identity.Proxy
}

// UserAgent returns the user agent of the current client context.
func (m *Manager) UserAgent() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.header.Get("User-Agent")
}

// StreamHeader returns the headers to send on the WebSocket handshake.
func (m *Manager) StreamHeader() http.Header {
	h := http.Header{}
	h.Set("User-Agent", m.UserAgent())
	return h
}

// AccessToken returns the current access token, empty before the first
// successful refresh.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}

// UserID returns the user id reported by the last refresh.
func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userID
}

// Email returns the account email reported by the last refresh.
func (m *Manager) Email() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.email
}

// snapshot returns the client and a copy of the headers for one request.
func (m *Manager) snapshot() (*http.Client, http.Header) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.httpClient, m.header.Clone()
}

// acceptLanguage renders a tag as an Accept-Language value, adding the bare
// language as a lower-priority fallback when the tag carries a region.
func acceptLanguage(tag language.Tag) string {
	base, _ := tag.Base()
	if tag.String() == base.String() {
		return base.String()
	}
	return tag.String() + "," + base.String() + ";q=0.9"
}

// registrationLanguage returns the bare language code sent on registration.
func registrationLanguage(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}
