package endpoint

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Errors
var (
	ErrEmptyPool = errors.New("endpoint pool is empty")
)

// StreamPath is the WebSocket path appended to an endpoint's stream URL.
const StreamPath = "/api/public/webnodes/ws"

// Endpoint is one service cluster.
type Endpoint struct {
	API    string `yaml:"api"` // REST base URL (e.g., https://task.titannet.info)
	Stream string `yaml:"ws"`  // WebSocket base URL (e.g., wss://task.titannet.info)
}

// StreamURL builds the WebSocket URL for the given access token and device id.
func (e Endpoint) StreamURL(token, deviceID string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("device_id", deviceID)
	return strings.TrimRight(e.Stream, "/") + StreamPath + "?" + q.Encode()
}

// APIURL joins the REST base URL with path.
func (e Endpoint) APIURL(path string) string {
	return strings.TrimRight(e.API, "/") + path
}

func (e Endpoint) validate() error {
	if err := checkURL(e.API, "http", "https"); err != nil {
		return fmt.Errorf("api url %q: %w", e.API, err)
	}
	if err := checkURL(e.Stream, "ws", "wss"); err != nil {
		return fmt.Errorf("ws url %q: %w", e.Stream, err)
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	if raw == "" {
		return errors.New("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme must be one of %v", schemes)
}

// DefaultEndpoints returns the production clusters in failover order.
func DefaultEndpoints() []Endpoint {
	return []Endpoint{
		{API: "https://task.titannet.info", Stream: "wss://task.titannet.info"},
		{API: "https://task.titanedge.cn", Stream: "wss://task.titanedge.cn"},
		{API: "https://task.titannet.io", Stream: "wss://task.titannet.io"},
		{API: "https://task.titandev.info", Stream: "wss://task.titandev.info"},
	}
}

// Pool is an immutable ordered list of endpoints.
type Pool struct {
	endpoints []Endpoint
}

// NewPool validates and copies endpoints into a new pool.
func NewPool(endpoints []Endpoint) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, ErrEmptyPool
	}
	for i, e := range endpoints {
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("endpoint %d: %w", i, err)
		}
	}

	eps := make([]Endpoint, len(endpoints))
	copy(eps, endpoints)
	return &Pool{endpoints: eps}, nil
}

// Len returns the number of endpoints.
func (p *Pool) Len() int {
	return len(p.endpoints)
}

// At returns the endpoint at index i modulo the pool size.
func (p *Pool) At(i int) Endpoint {
	n := len(p.endpoints)
	return p.endpoints[((i%n)+n)%n]
}

// Cursor returns a new cursor positioned at start (modulo the pool size).
func (p *Pool) Cursor(start int) *Cursor {
	n := len(p.endpoints)
	return &Cursor{pool: p, index: ((start % n) + n) % n}
}

// Cursor is an identity-owned position in a Pool. Not safe for concurrent use;
// only the owning supervisor moves it.
type Cursor struct {
	pool  *Pool
	index int
}

// Current returns the endpoint under the cursor.
func (c *Cursor) Current() Endpoint {
	return c.pool.endpoints[c.index]
}

// Index returns the cursor position.
func (c *Cursor) Index() int {
	return c.index
}

// Len returns the size of the underlying pool.
func (c *Cursor) Len() int {
	return len(c.pool.endpoints)
}

// Advance moves the cursor to the next endpoint, wrapping at the end, and
// returns it.
func (c *Cursor) Advance() Endpoint {
	c.index = (c.index + 1) % len(c.pool.endpoints)
	return c.pool.endpoints[c.index]
}
