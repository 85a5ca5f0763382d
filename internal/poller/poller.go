package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/titannode/titannode/internal/endpoint"
	"github.com/titannode/titannode/internal/session"
)

// ErrInvalidInterval is returned by Start when the poll interval is not positive.
var ErrInvalidInterval = errors.New("poll interval must be positive")

// Source fetches account summaries and renews the access token.
type Source interface {
	UserInfo(ctx context.Context, ep endpoint.Endpoint) (json.RawMessage, error)
	RefreshToken(ctx context.Context, ep endpoint.Endpoint) error
}

// InfoHandler receives fetched account summaries.
type InfoHandler interface {
	HandleUserInfo(info json.RawMessage) error
}

// InfoHandlerFunc is a function adapter for InfoHandler.
type InfoHandlerFunc func(json.RawMessage) error

func (f InfoHandlerFunc) HandleUserInfo(info json.RawMessage) error {
	return f(info)
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Poll interval (default: 5m)
	Timeout  time.Duration // Per-poll timeout, including a token refresh (default: 30s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Minute,
		Timeout:  30 * time.Second,
	}
}

// Poller periodically fetches the account summary of one identity.
type Poller struct {
	cfg      Config
	source   Source
	endpoint endpoint.Endpoint
	handler  InfoHandler
	logger   *slog.Logger

	polls    atomic.Int64
	failures atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller against ep. A nil handler logs each summary.
func New(cfg Config, source Source, ep endpoint.Endpoint, handler InfoHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		cfg:      cfg,
		source:   source,
		endpoint: ep,
		handler:  handler,
		logger:   logger,
	}
	if p.handler == nil {
		p.handler = InfoHandlerFunc(p.logInfo)
	}
	return p
}

// Start begins the polling loop. The first poll happens one interval after
// Start.
func (p *Poller) Start(ctx context.Context) error {
	if p.cfg.Interval <= 0 {
		return ErrInvalidInterval
	}
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Debug("user info poller started", "interval", p.cfg.Interval)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Debug("user info poller stopped",
			"polls", p.polls.Load(),
			"failures", p.failures.Load(),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if err := p.poll(); err != nil {
				if p.ctx.Err() != nil {
					return
				}
				p.failures.Add(1)
				p.logger.Warn("failed to fetch user info", "error", err)
			}
		}
	}
}

// poll fetches one summary, refreshing the access token at most once.
func (p *Poller) poll() error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	p.polls.Add(1)

	info, err := p.source.UserInfo(ctx, p.endpoint)
	if errors.Is(err, session.ErrUnauthorized) {
		p.logger.Info("access token rejected, refreshing")
		if err := p.source.RefreshToken(ctx, p.endpoint); err != nil {
			return fmt.Errorf("refresh after 401: %w", err)
		}
		info, err = p.source.UserInfo(ctx, p.endpoint)
	}
	if err != nil {
		return err
	}

	return p.handler.HandleUserInfo(info)
}

func (p *Poller) logInfo(info json.RawMessage) error {
	p.logger.Info("user info", "data", string(info))
	return nil
}
