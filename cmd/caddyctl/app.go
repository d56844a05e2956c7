package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/valet-linux/caddyd/internal/caddy"
	"github.com/valet-linux/caddyd/internal/command"
	"github.com/valet-linux/caddyd/internal/config"
	"github.com/valet-linux/caddyd/internal/files"
	"github.com/valet-linux/caddyd/internal/logging"
	"github.com/valet-linux/caddyd/internal/setup"
	"github.com/valet-linux/caddyd/internal/systemd"
)

// app is everything a command needs, built once per invocation.
type app struct {
	cfg     *config.Config
	user    setup.Identity
	paths   setup.Paths
	logger  *zap.Logger
	manager *caddy.Manager
	closers []func()
}

// loadConfig resolves the invoking user and loads the layered configuration.
func loadConfig() (*config.Config, setup.Identity, error) {
	user, err := setup.ResolveInvokingUser(os.Getenv("SUDO_USER"))
	if err != nil {
		return nil, setup.Identity{}, err
	}

	path := rootOpts.configPath
	if path == "" {
		path = config.Locate(user.Home)
	}
	cli := config.CLIOverrides{LogLevel: rootOpts.logLevel, Backend: rootOpts.backend}
	cfg, err := config.LoadLayered(cli, embeddedConfig, path)
	if err != nil {
		return nil, setup.Identity{}, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, setup.Identity{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, user, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, user, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	install := cfg.Paths.Install
	if install == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locating executable: %w", err)
		}
		if install, err = setup.InstallRootFromExecutable(exe); err != nil {
			return nil, fmt.Errorf("resolving install root: %w", err)
		}
	}

	a := &app{
		cfg:    cfg,
		user:   user,
		paths:  setup.ResolvePaths(install, cfg.Paths.Stubs),
		logger: logger,
	}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	exec := command.New(logger)
	keys := systemd.Keys(cfg.Service.Keys)

	var registry caddy.ServiceRegistry
	switch cfg.Service.Backend {
	case config.BackendDBus:
		bus, err := systemd.NewBus(ctx, keys, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, bus.Close)
		registry = bus
	default:
		registry = systemd.NewSystemctl(exec, keys, logger)
	}

	a.manager, err = caddy.New(caddy.Options{
		ConfigRoot:   cfg.ConfigRoot(user),
		InstallPath:  a.paths.Install,
		StubsDir:     a.paths.Stubs,
		ServiceName:  cfg.Service.Name,
		UnitKey:      cfg.Service.UnitKey,
		FPMKey:       cfg.Service.FPMKey,
		ResolverConf: cfg.Paths.ResolverConf,
	}, exec, files.New(user, logger), registry, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	logger.Debug("caddyctl ready",
		zap.String("version", version),
		zap.String("user", user.Name),
		zap.String("backend", cfg.Service.Backend),
		zap.String("install", a.paths.Install),
		zap.String("stubs", a.paths.Stubs))
	return a, nil
}

// close releases resources in reverse acquisition order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// withLock runs fn while holding the exclusive caddyctl lock. A second
// caddyctl changing the daemon at the same time fails fast.
func withLock(path string, fn func() error) error {
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("another caddyctl is already running (lock %s)", path)
	}
	defer lock.Unlock()

	return fn()
}

// runMutating checks for root, builds the app and runs op under the lock.
func runMutating(ctx context.Context, operation string, op func(ctx context.Context, a *app) error) error {
	if err := setup.CheckElevation(operation); err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	return withLock(a.cfg.Paths.Lock, func() error {
		return op(ctx, a)
	})
}
