package systemd

import (
	"context"
	"errors"
	"fmt"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
	godbus "github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	jobModeReplace = "replace"
	jobDone        = "done"
	errNoSuchUnit  = "org.freedesktop.systemd1.NoSuchUnit"
)

// busConn is the part of *sddbus.Conn the Bus backend uses.
type busConn interface {
	ReloadContext(ctx context.Context) error
	EnableUnitFilesContext(ctx context.Context, files []string, runtime, force bool) (bool, []sddbus.EnableUnitFileChange, error)
	DisableUnitFilesContext(ctx context.Context, files []string, runtime bool) ([]sddbus.DisableUnitFileChange, error)
	StartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	RestartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	GetUnitPropertyContext(ctx context.Context, unit, propertyName string) (*sddbus.Property, error)
	Close()
}

// Bus controls units through the systemd manager's D-Bus API.
type Bus struct {
	Keys
	conn   busConn
	logger *zap.Logger
}

// NewBus connects to the system bus.
func NewBus(ctx context.Context, keys Keys, logger *zap.Logger) (*Bus, error) {
	conn, err := sddbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to systemd: %w", err)
	}
	return newBus(conn, keys, logger), nil
}

func newBus(conn busConn, keys Keys, logger *zap.Logger) *Bus {
	return &Bus{
		Keys:   keys,
		conn:   conn,
		logger: logger.Named("dbus"),
	}
}

// Close releases the bus connection.
func (b *Bus) Close() {
	b.conn.Close()
}

// Reload makes systemd re-read unit files.
func (b *Bus) Reload(ctx context.Context) error {
	if err := b.conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("daemon reload: %w", err)
	}
	return nil
}

// Enable marks the unit for start at boot. Enabling twice is harmless.
func (b *Bus) Enable(ctx context.Context, name string) error {
	unit := UnitName(name)
	_, changes, err := b.conn.EnableUnitFilesContext(ctx, []string{unit}, false, true)
	if err != nil {
		return fmt.Errorf("enable %s: %w", unit, mapBusError(err))
	}
	b.logger.Debug("enabled unit", zap.String("unit", unit), zap.Int("changes", len(changes)))
	return nil
}

// Disable removes the unit from boot start.
func (b *Bus) Disable(ctx context.Context, name string) error {
	unit := UnitName(name)
	if _, err := b.conn.DisableUnitFilesContext(ctx, []string{unit}, false); err != nil {
		return fmt.Errorf("disable %s: %w", unit, mapBusError(err))
	}
	return nil
}

// Start starts the unit and waits for the job to finish.
func (b *Bus) Start(ctx context.Context, name string) error {
	return b.job(ctx, "start", name, b.conn.StartUnitContext)
}

// Stop stops the unit. Stopping a stopped or unknown unit succeeds.
func (b *Bus) Stop(ctx context.Context, name string) error {
	err := b.job(ctx, "stop", name, b.conn.StopUnitContext)
	if errors.Is(err, ErrUnitNotFound) {
		b.logger.Debug("unit not loaded, nothing to stop", zap.String("unit", UnitName(name)))
		return nil
	}
	return err
}

// Restart restarts the unit, starting it if it was not running.
func (b *Bus) Restart(ctx context.Context, name string) error {
	return b.job(ctx, "restart", name, b.conn.RestartUnitContext)
}

// IsEnabled reports whether the unit file state is enabled.
func (b *Bus) IsEnabled(ctx context.Context, name string) (bool, error) {
	state, err := b.property(ctx, name, "UnitFileState")
	if err != nil {
		return false, err
	}
	return state == "enabled" || state == "enabled-runtime", nil
}

// IsActive reports whether the unit is active.
func (b *Bus) IsActive(ctx context.Context, name string) (bool, error) {
	state, err := b.property(ctx, name, "ActiveState")
	if err != nil {
		return false, err
	}
	return state == "active" || state == "reloading", nil
}

type jobFunc func(ctx context.Context, name, mode string, ch chan<- string) (int, error)

func (b *Bus) job(ctx context.Context, verb, name string, fn jobFunc) error {
	unit := UnitName(name)
	ch := make(chan string, 1)
	if _, err := fn(ctx, unit, jobModeReplace, ch); err != nil {
		return fmt.Errorf("%s %s: %w", verb, unit, mapBusError(err))
	}

	select {
	case result := <-ch:
		if result != jobDone {
			return fmt.Errorf("%s %s: job %s", verb, unit, result)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s %s: %w", verb, unit, ctx.Err())
	}
}

func (b *Bus) property(ctx context.Context, name, prop string) (string, error) {
	unit := UnitName(name)
	p, err := b.conn.GetUnitPropertyContext(ctx, unit, prop)
	if err != nil {
		return "", fmt.Errorf("reading %s of %s: %w", prop, unit, mapBusError(err))
	}
	s, ok := p.Value.Value().(string)
	if !ok {
		return "", fmt.Errorf("reading %s of %s: unexpected type %T", prop, unit, p.Value.Value())
	}
	return s, nil
}

func mapBusError(err error) error {
	var e godbus.Error
	if errors.As(err, &e) && e.Name == errNoSuchUnit {
		return fmt.Errorf("%w: %v", ErrUnitNotFound, err)
	}
	var pe *godbus.Error
	if errors.As(err, &pe) && pe.Name == errNoSuchUnit {
		return fmt.Errorf("%w: %v", ErrUnitNotFound, err)
	}
	return err
}
