package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/titannode/titannode/internal/endpoint"
	"github.com/titannode/titannode/internal/logging"
	"github.com/titannode/titannode/internal/model"
	"github.com/titannode/titannode/internal/poller"
)

// Session is the identity's authenticated client context.
// *session.Manager is the production implementation.
type Session interface {
	RefreshToken(ctx context.Context, ep endpoint.Endpoint) error
	RegisterNode(ctx context.Context, ep endpoint.Endpoint) error
	UserInfo(ctx context.Context, ep endpoint.Endpoint) (json.RawMessage, error)

	// Reset rebuilds the client context and drops the access token.
	Reset()

	AccessToken() string
	StreamHeader() http.Header
	Proxy() *url.URL
	Identity() *model.Identity
}

// SupervisorStats is a point-in-time view of a supervisor.
type SupervisorStats struct {
	State    State
	Endpoint int   // Cursor position in the endpoint pool
	Attempts int   // Reconnect attempts consumed since the last open
	Connects int64 // Successful opens
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithDialer replaces the WebSocket client constructor.
func WithDialer(d Dialer) SupervisorOption {
	return func(s *Supervisor) {
		if d != nil {
			s.dial = d
		}
	}
}

// Supervisor drives one identity through
// Disconnected → Connecting → Open → Closing → Disconnected, re-authenticating
// on a new endpoint after every unexpected close until the reconnect budget
// is spent.
type Supervisor struct {
	cfg     SupervisorConfig
	session Session
	cursor  *endpoint.Cursor
	logger  *slog.Logger
	dial    Dialer

	// Owned by the Run goroutine.
	reconnect ReconnectState

	// Mirrors for Stats.
	state    atomic.Int32
	endpoint atomic.Int64
	attempts atomic.Int64
	connects atomic.Int64
}

// NewSupervisor creates a supervisor for the identity behind sess. The cursor
// is owned by the supervisor from here on.
func NewSupervisor(cfg SupervisorConfig, sess Session, cursor *endpoint.Cursor, logger *slog.Logger, opts ...SupervisorOption) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Supervisor{
		cfg:     cfg,
		session: sess,
		cursor:  cursor,
		logger:  logger,
		dial:    NewClient,
		reconnect: ReconnectState{
			MaxAttempts:  cfg.MaxReconnectAttempts,
			BaseInterval: cfg.ReconnectBaseWait,
		},
	}
	s.endpoint.Store(int64(cursor.Index()))

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Stats returns current supervisor statistics.
func (s *Supervisor) Stats() SupervisorStats {
	return SupervisorStats{
		State:    s.State(),
		Endpoint: int(s.endpoint.Load()),
		Attempts: int(s.attempts.Load()),
		Connects: s.connects.Load(),
	}
}

// Run authenticates, registers and keeps the stream open until ctx is done,
// authentication fails on every endpoint (ErrAuthFailed) or the reconnect
// budget is exhausted (ErrReconnectExhausted).
func (s *Supervisor) Run(ctx context.Context) error {
	id := s.session.Identity()
	if id.Direct() {
		s.logger.Info("starting identity", "device_id", id.DeviceID, "mode", "direct")
	} else {
		s.logger.Info("starting identity", "device_id", id.DeviceID, "proxy", id.ProxyString())
	}

	for {
		if err := s.authenticate(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Log(ctx, logging.LevelFatal, "authentication failed on every endpoint, identity stopped", "error", err)
			return err
		}

		ep := s.cursor.Current()
		if err := s.session.RegisterNode(ctx, ep); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("node registration failed", "endpoint", ep.API, "error", err)
		}

		err := s.serve(ctx, ep)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay, ok := s.reconnect.Next()
		if !ok {
			s.logger.Log(ctx, logging.LevelFatal, "max reconnect attempts reached, identity stopped",
				"attempts", s.reconnect.MaxAttempts,
				"error", err,
			)
			return fmt.Errorf("%w after %d attempts: %w", ErrReconnectExhausted, s.reconnect.MaxAttempts, err)
		}
		s.attempts.Store(int64(s.reconnect.Attempts))

		s.logger.Info("reconnecting",
			"attempt", s.reconnect.Attempts,
			"max_attempts", s.reconnect.MaxAttempts,
			"delay", delay,
		)

		if err := sleep(ctx, delay); err != nil {
			return err
		}

		s.failover()
	}
}

// authenticate refreshes the access token, moving to the next endpoint after
// each failure until every endpoint has been tried once.
func (s *Supervisor) authenticate(ctx context.Context) error {
	n := s.cursor.Len()

	var lastErr error
	for i := 0; i < n; i++ {
		if i > 0 {
			s.failover()
		}

		ep := s.cursor.Current()
		err := s.session.RefreshToken(ctx, ep)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		s.logger.Warn("token refresh failed",
			"endpoint", ep.API,
			"tried", i+1,
			"of", n,
			"error", err,
		)
	}

	return fmt.Errorf("%w: %w", ErrAuthFailed, lastErr)
}

// failover advances the cursor and rebuilds the client context.
func (s *Supervisor) failover() {
	from := s.cursor.Current()
	to := s.cursor.Advance()
	s.endpoint.Store(int64(s.cursor.Index()))
	s.session.Reset()

	s.logger.Info("switching endpoint", "from", from.API, "to", to.API)
}

// serve runs one connection from dial to close. The returned error is why the
// connection ended; a failed dial counts as an unexpected close.
func (s *Supervisor) serve(ctx context.Context, ep endpoint.Endpoint) error {
	s.setState(StateConnecting)

	cfg := ClientConfig{
		URL:              ep.StreamURL(s.session.AccessToken(), s.session.Identity().DeviceID),
		Header:           s.session.StreamHeader(),
		Proxy:            s.session.Proxy(),
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		WriteTimeout:     s.cfg.WriteTimeout,
		BufferSize:       s.cfg.MessageBufferSize,
	}

	client := s.dial(cfg, s.logger)
	if err := client.Connect(ctx); err != nil {
		s.setState(StateDisconnected)
		if ctx.Err() == nil {
			s.logger.Error("stream connection failed", "endpoint", ep.Stream, "error", err)
		}
		return err
	}

	stop := s.onOpen(ctx, client, ep)

	err := s.loop(ctx, client)

	s.setState(StateClosing)
	client.Close()
	s.onClose(stop)

	return err
}

// onOpen resets the reconnect budget and starts the keepalive and, when
// configured, the user info poller. The returned func stops both.
func (s *Supervisor) onOpen(ctx context.Context, client Client, ep endpoint.Endpoint) func() {
	s.setState(StateOpen)
	s.reconnect.Reset()
	s.attempts.Store(0)
	s.connects.Add(1)

	s.logger.Info("stream connected", "endpoint", ep.Stream)

	openCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.keepalive(openCtx, client)
	}()

	var p *poller.Poller
	if s.cfg.PollInterval > 0 {
		pcfg := poller.DefaultConfig()
		pcfg.Interval = s.cfg.PollInterval
		p = poller.New(pcfg, s.session, ep, nil, s.logger)
		if err := p.Start(openCtx); err != nil {
			s.logger.Warn("user info poller not started", "error", err)
			p = nil
		}
	}

	return func() {
		cancel()
		wg.Wait()
		if p != nil {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			if err := p.Stop(stopCtx); err != nil {
				s.logger.Warn("user info poller did not stop", "error", err)
			}
		}
	}
}

// onClose cancels everything started by onOpen.
func (s *Supervisor) onClose(stop func()) {
	stop()
	s.setState(StateDisconnected)
	s.logger.Info("stream disconnected")
}

// loop dispatches inbound frames in arrival order until the connection fails
// or ctx is done.
func (s *Supervisor) loop(ctx context.Context, client Client) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-client.Errors():
			s.drain(client)
			s.onError(err)
			return err

		case msg := <-client.Messages():
			s.onMessage(client, msg)
		}
	}
}

// drain handles frames the read loop delivered before it failed.
func (s *Supervisor) drain(client Client) {
	for {
		select {
		case msg := <-client.Messages():
			s.onMessage(client, msg)
		default:
			return
		}
	}
}

func (s *Supervisor) onError(err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		s.logger.Warn("stream closed by server",
			"code", closeErr.Code,
			"reason", closeErr.Text,
		)
		return
	}
	s.logger.Error("stream error", "error", err)
}

// onMessage handles one inbound frame. A liveness challenge is answered
// before it returns, so the reply precedes the next frame's handling.
func (s *Supervisor) onMessage(client Client, msg TimestampedMessage) {
	bw := &s.session.Identity().Bandwidth
	bw.AddReceived(len(msg.Data))

	var frame InboundFrame
	if err := json.Unmarshal(msg.Data, &frame); err != nil {
		s.logger.Warn("unparseable frame", "size", len(msg.Data), "error", err)
		return
	}

	if frame.Cmd == CmdEcho {
		if len(frame.Echo) == 0 {
			s.logger.Warn("liveness challenge without echo")
		} else if err := s.send(client, EchoReply{Cmd: CmdEchoReply, Echo: frame.Echo}); err != nil {
			s.logger.Warn("liveness reply failed", "error", err)
		}
	}

	if len(frame.UserDataUpdate) > 0 && string(frame.UserDataUpdate) != "null" {
		var update model.UserDataUpdate
		if err := json.Unmarshal(frame.UserDataUpdate, &update); err != nil {
			s.logger.Warn("malformed user data update", "error", err)
		} else {
			s.logger.Info("points update",
				"today_points", update.TodayPoints,
				"total_points", update.TotalPoints,
			)
		}
	}

	snap := bw.Snapshot()
	s.logger.Debug("bandwidth",
		"sent_bytes", snap.Sent,
		"received_bytes", snap.Received,
		"latency", time.Since(msg.ReceivedAt),
	)
}

// keepalive sends a liveness frame immediately and then every
// KeepaliveInterval until ctx is done. Send failures surface through the
// client's error path.
func (s *Supervisor) keepalive(ctx context.Context, client Client) {
	ticker := time.NewTicker(s.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		if err := s.send(client, NewKeepaliveFrame()); err != nil {
			s.logger.Debug("keepalive send failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// send marshals v and writes it, counting the bytes on success.
func (s *Supervisor) send(client Client, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if err := client.Send(data); err != nil {
		return err
	}
	s.session.Identity().Bandwidth.AddSent(len(data))
	return nil
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
