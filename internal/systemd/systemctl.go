package systemd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/valet-linux/caddyd/internal/command"
)

// exitUnitNotFound is systemctl's exit status for an unknown unit.
const exitUnitNotFound = 5

// Runner executes a host command. *command.Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, quiet bool, name string, args ...string) error
}

// Systemctl controls units through the systemctl binary.
type Systemctl struct {
	Keys
	run    Runner
	binary string
	logger *zap.Logger
}

// NewSystemctl returns a systemctl backend running commands through run.
func NewSystemctl(run Runner, keys Keys, logger *zap.Logger) *Systemctl {
	return &Systemctl{
		Keys:   keys,
		run:    run,
		binary: "systemctl",
		logger: logger.Named("systemctl"),
	}
}

// Reload makes systemd re-read unit files (daemon-reload).
func (s *Systemctl) Reload(ctx context.Context) error {
	return s.systemctl(ctx, "daemon-reload")
}

// Enable marks the unit for start at boot. Enabling twice is harmless.
func (s *Systemctl) Enable(ctx context.Context, name string) error {
	return s.systemctl(ctx, "enable", UnitName(name))
}

// Disable removes the unit from boot start.
func (s *Systemctl) Disable(ctx context.Context, name string) error {
	return s.systemctl(ctx, "disable", UnitName(name))
}

// Start starts the unit.
func (s *Systemctl) Start(ctx context.Context, name string) error {
	return s.systemctl(ctx, "start", UnitName(name))
}

// Stop stops the unit. Stopping a stopped or unknown unit succeeds.
func (s *Systemctl) Stop(ctx context.Context, name string) error {
	err := s.systemctl(ctx, "stop", UnitName(name))
	if errors.Is(err, ErrUnitNotFound) {
		s.logger.Debug("unit not loaded, nothing to stop", zap.String("unit", UnitName(name)))
		return nil
	}
	return err
}

// Restart restarts the unit, starting it if it was not running.
func (s *Systemctl) Restart(ctx context.Context, name string) error {
	return s.systemctl(ctx, "restart", UnitName(name))
}

// IsEnabled reports whether the unit is enabled for boot.
func (s *Systemctl) IsEnabled(ctx context.Context, name string) (bool, error) {
	return s.query(ctx, "is-enabled", UnitName(name))
}

// IsActive reports whether the unit is running.
func (s *Systemctl) IsActive(ctx context.Context, name string) (bool, error) {
	return s.query(ctx, "is-active", UnitName(name))
}

func (s *Systemctl) systemctl(ctx context.Context, args ...string) error {
	err := s.run.Run(ctx, true, s.binary, args...)
	if err == nil {
		return nil
	}
	var exitErr *command.ExitError
	if errors.As(err, &exitErr) && exitErr.Code == exitUnitNotFound {
		return fmt.Errorf("%w: %s", ErrUnitNotFound, exitErr.Command)
	}
	return err
}

// query runs a systemctl predicate; any non-zero exit means false.
func (s *Systemctl) query(ctx context.Context, verb, unit string) (bool, error) {
	err := s.run.Run(ctx, true, s.binary, verb, "--quiet", unit)
	if err == nil {
		return true, nil
	}
	var exitErr *command.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}
