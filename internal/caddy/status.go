package caddy

import (
	"context"

	"go.uber.org/zap"

	"github.com/valet-linux/caddyd/internal/probe"
)

// Status is a point-in-time view of the daemon on this host.
type Status struct {
	Service       string
	UnitPath      string
	Installed     bool
	Enabled       bool
	Active        bool
	Caddyfile     bool
	SiteDirectory bool
	Processes     []probe.Process
}

// Status inspects the unit file, systemd's view of the service, the
// generated configuration and the running caddy processes. It changes
// nothing.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	st := Status{
		Service:       m.opts.ServiceName,
		UnitPath:      m.unitPath,
		Installed:     m.files.Exists(m.unitPath),
		Caddyfile:     m.files.Exists(m.CaddyfilePath()),
		SiteDirectory: m.files.Exists(m.SiteDirectory()),
	}

	var err error
	if st.Enabled, err = m.registry.IsEnabled(ctx, m.opts.ServiceName); err != nil {
		return st, err
	}
	if st.Active, err = m.registry.IsActive(ctx, m.opts.ServiceName); err != nil {
		return st, err
	}

	bin, err := m.caddyBinary()
	if err != nil {
		m.logger.Debug("caddy binary not resolvable, skipping process probe", zap.Error(err))
		return st, nil
	}
	procs, err := m.findProcesses(ctx, bin)
	if err != nil {
		m.logger.Warn("listing processes failed", zap.Error(err))
		return st, nil
	}
	st.Processes = procs
	return st, nil
}
