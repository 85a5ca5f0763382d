package model

import (
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Identity
// -----------------------------------------------------------------------------

// Identity is one independently run node account.
//
// Everything except Bandwidth is fixed at construction. Auth state (access
// token, user id, email) lives in the identity's session, which is the only
// writer of it.
type Identity struct {
	Index        int       // 1-based sequence number used in logs
	RefreshToken string    // Long-lived credential exchanged for access tokens
	Proxy        *url.URL  // nil = direct mode
	ProxyIndex   int       // 1-based position in the proxy list, 0 in direct mode
	DeviceID     string    // Random UUID, stable for the process lifetime
	InstallTime  time.Time // Reported on registration
	MultiAccount bool      // True when more than one identity is configured

	Bandwidth Bandwidth
}

// NewIdentity creates an identity with a fresh device id.
func NewIdentity(index int, refreshToken string, proxy *url.URL, proxyIndex int) *Identity {
	return &Identity{
		Index:        index,
		RefreshToken: refreshToken,
		Proxy:        proxy,
		ProxyIndex:   proxyIndex,
		DeviceID:     uuid.NewString(),
		InstallTime:  time.Now().UTC(),
	}
}

// Direct reports whether the identity talks to the service without a proxy.
func (id *Identity) Direct() bool {
	return id.Proxy == nil
}

// Label returns the display label used to prefix log lines.
// Single-identity runs have no label.
func (id *Identity) Label() string {
	if !id.MultiAccount {
		return ""
	}
	return fmt.Sprintf("Account %d", id.Index)
}

// ProxyString returns the proxy URL with the password redacted.
func (id *Identity) ProxyString() string {
	if id.Proxy == nil {
		return ""
	}
	return id.Proxy.Redacted()
}

// -----------------------------------------------------------------------------
// Bandwidth
// -----------------------------------------------------------------------------

// Bandwidth counts payload bytes sent and received by one identity.
// Both counters only grow. Safe for concurrent use.
type Bandwidth struct {
	sent     atomic.Int64
	received atomic.Int64
}

// BandwidthSnapshot is a point-in-time copy of a Bandwidth counter.
type BandwidthSnapshot struct {
	Sent     int64
	Received int64
}

// AddSent records n outbound bytes. Non-positive values are ignored.
func (b *Bandwidth) AddSent(n int) {
	if n > 0 {
		b.sent.Add(int64(n))
	}
}

// AddReceived records n inbound bytes. Non-positive values are ignored.
func (b *Bandwidth) AddReceived(n int) {
	if n > 0 {
		b.received.Add(int64(n))
	}
}

// Snapshot returns the current totals.
func (b *Bandwidth) Snapshot() BandwidthSnapshot {
	return BandwidthSnapshot{
		Sent:     b.sent.Load(),
		Received: b.received.Load(),
	}
}

// -----------------------------------------------------------------------------
// Points
// -----------------------------------------------------------------------------

// UserDataUpdate is the status push the server sends over the stream.
type UserDataUpdate struct {
	TodayPoints float64 `json:"today_points"`
	TotalPoints float64 `json:"total_points"`
}
