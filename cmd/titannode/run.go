package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/titannode/titannode/internal/config"
	"github.com/titannode/titannode/internal/connection"
	"github.com/titannode/titannode/internal/credentials"
	"github.com/titannode/titannode/internal/endpoint"
	"github.com/titannode/titannode/internal/logging"
	"github.com/titannode/titannode/internal/orchestrator"
	"github.com/titannode/titannode/internal/proxy"
	"github.com/titannode/titannode/internal/session"
	"github.com/titannode/titannode/internal/version"
)

// ErrAllStopped is returned when every identity stopped on its own.
var ErrAllStopped = errors.New("all identities stopped")

type runOptions struct {
	configPath  string
	envFile     string
	proxiesPath string
	logLevel    string
	noColor     bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a node session for every configured refresh token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNodes(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to YAML config file (defaults apply when empty)")
	cmd.Flags().StringVar(&opts.envFile, "env", ".env", "path to .env file with REFRESH_TOKEN_1..N")
	cmd.Flags().StringVar(&opts.proxiesPath, "proxies", "proxies.txt", "path to proxy list, one URL per line")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored console output")

	return cmd
}

func runNodes(cmd *cobra.Command, opts runOptions) error {
	// Load configuration
	cfg, err := config.LoadAndValidate(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return err
	}

	// Set up structured logging
	logger := slog.New(logging.NewConsoleHandler(cmd.OutOrStdout(), &logging.ConsoleOptions{
		Level:    level,
		NoColors: opts.noColor,
	}))
	slog.SetDefault(logger)

	logger.Info("starting titannode",
		"version", version.Version,
		"commit", version.Commit,
		"config", opts.configPath,
	)

	tokens, err := credentials.Load(opts.envFile)
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		return err
	}

	var proxies []*url.URL
	if opts.proxiesPath != "" {
		proxies, err = proxy.LoadFile(opts.proxiesPath, logger)
		if err != nil {
			logger.Error("failed to load proxies", "error", err)
			return err
		}
	}

	identities, err := orchestrator.Plan(tokens, proxies)
	if err != nil {
		logger.Error("refusing to start", "error", err)
		return err
	}

	pool, err := endpoint.NewPool(cfg.Servers)
	if err != nil {
		return fmt.Errorf("endpoint pool: %w", err)
	}

	logger.Info("configuration loaded",
		"accounts", len(identities),
		"proxies", len(proxies),
		"endpoints", pool.Len(),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	o := orchestrator.New(orchestratorConfig(cfg, level), pool, logger)
	results := o.Run(ctx, identities)

	stopped := 0
	for _, r := range results {
		if r.Err != nil && ctx.Err() == nil {
			stopped++
		}
	}

	logger.Info("titannode stopped", "accounts", len(results), "failed", stopped)

	if ctx.Err() == nil && stopped == len(results) {
		return ErrAllStopped
	}
	return nil
}

// orchestratorConfig maps the loaded config onto component settings.
func orchestratorConfig(cfg *config.Config, level slog.Level) orchestrator.Config {
	return orchestrator.Config{
		Stagger: cfg.Orchestrator.Stagger,
		Supervisor: connection.SupervisorConfig{
			KeepaliveInterval:    cfg.Connection.KeepaliveInterval,
			ReconnectBaseWait:    cfg.Connection.ReconnectBaseInterval,
			MaxReconnectAttempts: cfg.Connection.MaxReconnectAttempts,
			HandshakeTimeout:     cfg.Connection.HandshakeTimeout,
			WriteTimeout:         cfg.Connection.WriteTimeout,
			MessageBufferSize:    cfg.Connection.MessageBuffer,
			PollInterval:         cfg.API.PollInterval,
		},
		Session: []session.Option{
			session.WithTimeout(cfg.API.Timeout),
			session.WithRetries(cfg.API.MaxRetries, time.Second),
			session.WithNodeInfo(session.NodeInfo{
				ExtVersion:        cfg.Node.ExtVersion,
				UserScriptEnabled: cfg.Node.UserScript(),
			}),
			session.WithLocale(language.Make(cfg.Node.Locale)),
		},
		Files: logging.FileConfig{
			Dir:        cfg.Logging.Dir,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Level:      level,
		},
	}
}
