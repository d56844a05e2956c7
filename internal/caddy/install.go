package caddy

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/valet-linux/caddyd/internal/files"
	"github.com/valet-linux/caddyd/internal/stub"
)

type step struct {
	name string
	run  func(ctx context.Context) error
}

// Install provisions the daemon: grants the caddy binary the right to bind
// privileged ports, writes the Caddyfile, provisions the site directory, and
// writes, registers and enables the systemd unit. The first failing step
// aborts the rest and its error is returned as is. Every step is safe to
// repeat, so a failed Install can simply be run again.
func (m *Manager) Install(ctx context.Context) error {
	steps := []step{
		{"allow-root-ports", m.allowRootPorts},
		{"write-caddyfile", m.installCaddyfile},
		{"site-directory", m.installSiteDirectory},
		{"install-daemon", m.installDaemon},
	}

	for _, s := range steps {
		m.logger.Debug("install step", zap.String("step", s.name))
		if err := s.run(ctx); err != nil {
			m.logger.Error("install step failed", zap.String("step", s.name), zap.Error(err))
			return err
		}
	}

	m.logger.Info("caddy installed",
		zap.String("unit", m.unitPath),
		zap.String("caddyfile", m.CaddyfilePath()))
	return nil
}

func (m *Manager) allowRootPorts(ctx context.Context) error {
	bin, err := m.caddyBinary()
	if err != nil {
		return err
	}
	return m.exec.Run(ctx, true, "setcap", "cap_net_bind_service=+ep", bin)
}

func (m *Manager) installCaddyfile(_ context.Context) error {
	tmpl, err := m.readStub(caddyfileName)
	if err != nil {
		return err
	}
	fpm, err := m.registry.Lookup(m.opts.FPMKey)
	if err != nil {
		return err
	}

	contents, err := stub.Render(tmpl, map[string]string{
		stub.FPMAddress: fpm,
		stub.HomePath:   m.opts.ConfigRoot,
	})
	if err != nil {
		return err
	}

	if !m.files.Exists(m.opts.ConfigRoot) {
		if err := m.files.EnsureDir(m.opts.ConfigRoot, files.InvokingUser); err != nil {
			return err
		}
	}
	return m.files.Write(m.CaddyfilePath(), []byte(contents), files.InvokingUser)
}

func (m *Manager) installSiteDirectory(_ context.Context) error {
	dir := m.SiteDirectory()
	if !m.files.Exists(dir) {
		if err := m.files.EnsureDir(dir, files.InvokingUser); err != nil {
			return err
		}
	}
	return m.files.Touch(filepath.Join(dir, keepFileName), files.InvokingUser)
}

func (m *Manager) installDaemon(ctx context.Context) error {
	tmpl, err := m.readStub(unitStubName)
	if err != nil {
		return err
	}
	install, err := m.files.Realpath(m.opts.InstallPath)
	if err != nil {
		return err
	}

	contents, err := stub.Render(tmpl, map[string]string{
		stub.ValetPath: install,
		stub.HomePath:  m.opts.ConfigRoot,
	})
	if err != nil {
		return err
	}

	if err := m.files.Write(m.unitPath, []byte(contents), files.ProcessOwner); err != nil {
		return err
	}
	if err := m.registry.Reload(ctx); err != nil {
		return err
	}
	return m.registry.Enable(ctx, m.opts.ServiceName)
}

func (m *Manager) readStub(name string) (string, error) {
	path := filepath.Join(m.opts.StubsDir, name)
	data, err := m.files.Read(path)
	if err != nil {
		return "", &TemplateError{Path: path, Err: err}
	}
	return string(data), nil
}
