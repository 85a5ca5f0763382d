package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/titannode/titannode/internal/connection"
	"github.com/titannode/titannode/internal/endpoint"
	"github.com/titannode/titannode/internal/logging"
	"github.com/titannode/titannode/internal/model"
	"github.com/titannode/titannode/internal/session"
)

// Config holds orchestrator configuration.
type Config struct {
	Stagger    time.Duration               // Delay between identity launches (default: 15s)
	Supervisor connection.SupervisorConfig // Per-identity stream settings
	Session    []session.Option            // Shared session options; the logger is set per identity
	Files      logging.FileConfig          // Per-identity log files
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Stagger:    15 * time.Second,
		Supervisor: connection.DefaultSupervisorConfig(),
	}
}

// Result is the outcome of one identity.
type Result struct {
	Identity  *model.Identity
	Err       error // why the identity stopped; ctx.Err() on shutdown
	Stats     connection.SupervisorStats
	Bandwidth model.BandwidthSnapshot
}

// Orchestrator runs identities concurrently.
type Orchestrator struct {
	cfg    Config
	pool   *endpoint.Pool
	logger *slog.Logger
}

// New creates an Orchestrator over the shared endpoint pool.
func New(cfg Config, pool *endpoint.Pool, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:    cfg,
		pool:   pool,
		logger: logger,
	}
}

// Run launches identity i after i*Stagger and blocks until every identity
// has stopped. Results are in the order of identities.
func (o *Orchestrator) Run(ctx context.Context, identities []*model.Identity) []Result {
	results := make([]Result, len(identities))

	o.logger.Info("launching identities",
		"count", len(identities),
		"stagger", o.cfg.Stagger,
		"endpoints", o.pool.Len(),
	)

	// Identities never return errors to the group so that one failure does
	// not cancel the others.
	var g errgroup.Group
	for i, id := range identities {
		g.Go(func() error {
			if err := sleep(ctx, time.Duration(i)*o.cfg.Stagger); err != nil {
				results[i] = Result{Identity: id, Err: err}
				return nil
			}
			results[i] = o.runIdentity(ctx, id)
			return nil
		})
	}
	g.Wait()

	return results
}

func (o *Orchestrator) runIdentity(ctx context.Context, id *model.Identity) Result {
	logger, closer := logging.IdentityLogger(o.logger, id.Label(), id.Index, o.cfg.Files)
	defer closer.Close()

	opts := append([]session.Option{}, o.cfg.Session...)
	opts = append(opts, session.WithLogger(logger))
	sess := session.NewManager(id, opts...)

	sup := connection.NewSupervisor(o.cfg.Supervisor, sess, o.pool.Cursor(0), logger)
	err := sup.Run(ctx)

	res := Result{
		Identity:  id,
		Err:       err,
		Stats:     sup.Stats(),
		Bandwidth: id.Bandwidth.Snapshot(),
	}

	if !errors.Is(err, context.Canceled) {
		logger.Warn("identity stopped",
			"error", err,
			"connects", res.Stats.Connects,
			"sent_bytes", res.Bandwidth.Sent,
			"received_bytes", res.Bandwidth.Received,
		)
	}

	return res
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
