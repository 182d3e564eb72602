package main

import (
	"context"
	"fmt"
	"strings"

	"igrelay/pkg/config"
	"igrelay/pkg/instagram"
	"igrelay/pkg/logger"
	"igrelay/pkg/ratelimit"
	"igrelay/pkg/seenstore"
	"igrelay/pkg/session"
)

// loadConfig loads configuration and sets up the global logger
func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger.GetLogger(), nil
}

// openSeenStore opens the configured seen-items backend
func openSeenStore(ctx context.Context, cfg *config.Config) (seenstore.Store, error) {
	return seenstore.Open(ctx, seenstore.Options{
		Backend:       strings.ToLower(cfg.Storage.SeenBackend),
		DatabasePath:  cfg.Storage.DatabasePath(),
		RedisAddr:     cfg.Storage.Redis.Addr,
		RedisUsername: cfg.Storage.Redis.Username,
		RedisPassword: cfg.Storage.Redis.Password,
		RedisDB:       cfg.Storage.Redis.DB,
		KeyPrefix:     cfg.Storage.Redis.KeyPrefix,
	})
}

// newSessionStore opens the configured session persistence backend
func newSessionStore(cfg *config.Config) (session.Store, error) {
	switch strings.ToLower(cfg.Storage.SessionBackend) {
	case "keyring":
		return session.NewKeyringStore()
	case "file", "":
		return session.NewFileStore(cfg.Storage.SessionPath(), cfg.Storage.SessionPassphrase)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Storage.SessionBackend)
	}
}

// clientFactory builds Instagram clients that share one request pacer, so
// a re-authenticated client does not get a fresh burst allowance
func clientFactory(cfg *config.Config, log logger.Logger) session.ClientFactory {
	limiter := ratelimit.NewPerMinute(cfg.Instagram.RequestsPerMinute, cfg.Instagram.BurstSize)

	return func(s *instagram.Session) session.Client {
		opts := []instagram.Option{
			instagram.WithBaseURL(cfg.Instagram.BaseURL),
			instagram.WithUserAgent(cfg.Instagram.UserAgent),
			instagram.WithLimiter(limiter),
		}
		if s != nil {
			opts = append(opts, instagram.WithSession(s))
		}
		return instagram.NewClient(cfg.Instagram.RequestTimeout, log, opts...)
	}
}

// newSessionManager wires the session store and client factory together
func newSessionManager(cfg *config.Config, log logger.Logger) (*session.Manager, error) {
	store, err := newSessionStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	creds := session.Credentials{
		Username: cfg.Instagram.Username,
		Password: cfg.Instagram.Password,
	}
	return session.NewManager(store, clientFactory(cfg, log), creds, log), nil
}
