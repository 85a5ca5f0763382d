package connection

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"
)

// Errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrAlreadyClosed      = errors.New("already closed")
	ErrAuthFailed         = errors.New("token refresh failed on every endpoint")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Stream commands.
const (
	CmdEcho      = 1 // Liveness frame, both directions
	CmdEchoReply = 2 // Client answer to a server liveness challenge
)

// KeepaliveEcho is the echo value the client sends in its own keepalive.
const KeepaliveEcho = "echo me"

// JobReport is the job summary attached to every client keepalive.
type JobReport struct {
	ConfigCount int `json:"cfgcnt"`
	JobCount    int `json:"jobcnt"`
}

// KeepaliveFrame is the periodic client → server liveness frame.
type KeepaliveFrame struct {
	Cmd       int       `json:"cmd"`
	Echo      string    `json:"echo"`
	JobReport JobReport `json:"jobReport"`
}

// NewKeepaliveFrame returns the fixed keepalive frame.
func NewKeepaliveFrame() KeepaliveFrame {
	return KeepaliveFrame{
		Cmd:       CmdEcho,
		Echo:      KeepaliveEcho,
		JobReport: JobReport{ConfigCount: 2, JobCount: 0},
	}
}

// EchoReply answers a server liveness challenge with the same echo value.
type EchoReply struct {
	Cmd  int             `json:"cmd"`
	Echo json.RawMessage `json:"echo"`
}

// InboundFrame is the subset of a server frame the supervisor acts on.
type InboundFrame struct {
	Cmd            int             `json:"cmd"`
	Echo           json.RawMessage `json:"echo"`
	UserDataUpdate json.RawMessage `json:"userDataUpdate"`
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Full stream URL including token and device_id
	Header           http.Header   // Handshake headers (User-Agent)
	Proxy            *url.URL      // nil = direct connection
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 15 * time.Second,
		WriteTimeout:     10 * time.Second,
		BufferSize:       256,
	}
}

// SupervisorConfig configures a Connection Supervisor.
type SupervisorConfig struct {
	KeepaliveInterval    time.Duration // Client keepalive period
	ReconnectBaseWait    time.Duration // Backoff base; delay = base * 2^attempt
	MaxReconnectAttempts int           // Consecutive failed connections before giving up
	HandshakeTimeout     time.Duration // Per-connection dial timeout
	WriteTimeout         time.Duration // Per-frame write deadline
	MessageBufferSize    int           // Inbound frame buffer per connection
	PollInterval         time.Duration // User info poll period, 0 disables polling
}

// DefaultSupervisorConfig returns sensible defaults.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		KeepaliveInterval:    30 * time.Second,
		ReconnectBaseWait:    5 * time.Minute,
		MaxReconnectAttempts: 5,
		HandshakeTimeout:     15 * time.Second,
		WriteTimeout:         10 * time.Second,
		MessageBufferSize:    256,
	}
}
