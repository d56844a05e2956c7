// Package caddy provisions the Caddy reverse proxy as a host service: it
// writes the Caddyfile and systemd unit from their stubs, registers the unit,
// and starts, stops, restarts or removes it.
package caddy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/valet-linux/caddyd/internal/files"
	"github.com/valet-linux/caddyd/internal/probe"
)

// Default names and lookup keys.
const (
	DefaultServiceName  = "caddy"
	DefaultUnitKey      = "systemd-caddy"
	DefaultFPMKey       = "systemd-caddy-fpm"
	DefaultResolverConf = "/etc/dnsmasq.conf"

	caddyfileName   = "Caddyfile"
	unitStubName    = "caddy.service"
	siteDirName     = "Caddy"
	keepFileName    = ".keep"
	dnsmasqConfName = "dnsmasq.conf"
)

// Executor runs host commands.
type Executor interface {
	Run(ctx context.Context, quiet bool, name string, args ...string) error
}

// FileStore is the host filesystem.
type FileStore interface {
	Read(path string) ([]byte, error)
	Write(path string, data []byte, owner files.Owner) error
	EnsureDir(path string, owner files.Owner) error
	Touch(path string, owner files.Owner) error
	Exists(path string) bool
	Delete(path string) error
	Files(dir string) ([]string, error)
	Realpath(path string) (string, error)
}

// ServiceRegistry is the host's service manager plus its lookup table.
type ServiceRegistry interface {
	Lookup(key string) (string, error)
	Enable(ctx context.Context, name string) error
	Disable(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
	Reload(ctx context.Context) error
	IsEnabled(ctx context.Context, name string) (bool, error)
	IsActive(ctx context.Context, name string) (bool, error)
}

// Options configures a Manager. ConfigRoot and InstallPath are required.
type Options struct {
	// ConfigRoot holds every generated file (VALET_HOME_PATH), normally the
	// invoking user's ~/.valet.
	ConfigRoot string
	// InstallPath is the root of the installation (VALET_PATH). The caddy
	// binary lives at <InstallPath>/bin/caddy.
	InstallPath string
	// StubsDir holds the Caddyfile and caddy.service templates.
	// Defaults to <InstallPath>/stubs.
	StubsDir string

	ServiceName  string
	UnitKey      string
	FPMKey       string
	ResolverConf string
}

func (o Options) withDefaults() Options {
	if o.StubsDir == "" {
		o.StubsDir = filepath.Join(o.InstallPath, "stubs")
	}
	if o.ServiceName == "" {
		o.ServiceName = DefaultServiceName
	}
	if o.UnitKey == "" {
		o.UnitKey = DefaultUnitKey
	}
	if o.FPMKey == "" {
		o.FPMKey = DefaultFPMKey
	}
	if o.ResolverConf == "" {
		o.ResolverConf = DefaultResolverConf
	}
	return o
}

// Manager drives the Caddy daemon's lifecycle. Operations are sequential and
// a Manager must not run two of them at once.
type Manager struct {
	opts     Options
	exec     Executor
	files    FileStore
	registry ServiceRegistry
	logger   *zap.Logger

	// unitPath is resolved once in New.
	unitPath string

	findProcesses func(ctx context.Context, binary string) ([]probe.Process, error)
}

// New returns a Manager. The unit file location is looked up in the registry
// here and reused by every later operation.
func New(opts Options, exec Executor, fs FileStore, registry ServiceRegistry, logger *zap.Logger) (*Manager, error) {
	if opts.ConfigRoot == "" {
		return nil, errors.New("config root is required")
	}
	if opts.InstallPath == "" {
		return nil, errors.New("install path is required")
	}
	opts = opts.withDefaults()

	unitPath, err := registry.Lookup(opts.UnitKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPathResolution, err)
	}

	return &Manager{
		opts:          opts,
		exec:          exec,
		files:         fs,
		registry:      registry,
		logger:        logger.Named("caddy"),
		unitPath:      unitPath,
		findProcesses: probe.Find,
	}, nil
}

// UnitPath returns where the systemd unit is written.
func (m *Manager) UnitPath() string { return m.unitPath }

// CaddyfilePath returns the generated Caddyfile location.
func (m *Manager) CaddyfilePath() string {
	return filepath.Join(m.opts.ConfigRoot, caddyfileName)
}

// SiteDirectory returns the directory holding per-site Caddy fragments.
func (m *Manager) SiteDirectory() string {
	return filepath.Join(m.opts.ConfigRoot, siteDirName)
}

// Restart reloads systemd's unit cache and restarts the service. A stopped
// service is started. No configuration is regenerated.
func (m *Manager) Restart(ctx context.Context) error {
	m.logger.Info("restarting service", zap.String("service", m.opts.ServiceName))
	if err := m.registry.Reload(ctx); err != nil {
		return err
	}
	return m.registry.Restart(ctx, m.opts.ServiceName)
}

// Stop stops the service. Stopping a stopped service succeeds.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping service", zap.String("service", m.opts.ServiceName))
	return m.registry.Stop(ctx, m.opts.ServiceName)
}

// caddyBinary returns the caddy binary under the resolved install path.
func (m *Manager) caddyBinary() (string, error) {
	root, err := m.files.Realpath(m.opts.InstallPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "bin", "caddy"), nil
}
