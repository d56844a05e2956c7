package caddy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/valet-linux/caddyd/internal/files"
)

// StepResult is the outcome of one teardown step. Err is nil on success.
type StepResult struct {
	Step string
	Err  error
}

// OK reports whether the step succeeded.
func (r StepResult) OK() bool { return r.Err == nil }

// TeardownReport lists every Uninstall step in execution order.
type TeardownReport struct {
	Steps []StepResult
}

// Failed returns the steps that did not succeed.
func (r *TeardownReport) Failed() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if !s.OK() {
			out = append(out, s)
		}
	}
	return out
}

// Err joins the failures, or returns nil if every step succeeded.
func (r *TeardownReport) Err() error {
	var errs []error
	for _, s := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", s.Step, s.Err))
	}
	return errors.Join(errs...)
}

// Uninstall stops and disables the service, deletes the unit file and the
// files directly under the config root, drops the resolver's reference to
// the config root's dnsmasq.conf, and reloads systemd.
//
// Every step runs even when an earlier one fails; the report records each
// outcome. The service is always asked to stop before its unit file or the
// config root is touched.
func (m *Manager) Uninstall(ctx context.Context) *TeardownReport {
	steps := []step{
		{"stop", m.Stop},
		{"disable", func(ctx context.Context) error { return m.registry.Disable(ctx, m.opts.ServiceName) }},
		{"remove-unit", func(context.Context) error { return m.files.Delete(m.unitPath) }},
		{"remove-config-files", m.removeConfigFiles},
		{"strip-resolver", m.stripResolverInclude},
		{"reload", m.registry.Reload},
	}

	report := &TeardownReport{}
	for _, s := range steps {
		err := s.run(ctx)
		report.Steps = append(report.Steps, StepResult{Step: s.name, Err: err})
		if err != nil {
			m.logger.Warn("uninstall step failed, continuing", zap.String("step", s.name), zap.Error(err))
		}
	}

	if failed := len(report.Failed()); failed > 0 {
		m.logger.Warn("caddy uninstalled with errors", zap.Int("failed_steps", failed))
	} else {
		m.logger.Info("caddy uninstalled")
	}
	return report
}

// removeConfigFiles deletes the regular files directly under the config
// root. Subdirectories stay.
func (m *Manager) removeConfigFiles(_ context.Context) error {
	paths, err := m.files.Files(m.opts.ConfigRoot)
	if err != nil {
		return err
	}

	var errs []error
	for _, p := range paths {
		if err := m.files.Delete(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// stripResolverInclude removes every resolver config line mentioning the
// config root's dnsmasq.conf. A missing resolver config is left alone.
func (m *Manager) stripResolverInclude(_ context.Context) error {
	conf := m.opts.ResolverConf
	if !m.files.Exists(conf) {
		return nil
	}
	data, err := m.files.Read(conf)
	if err != nil {
		return err
	}

	needle := filepath.Join(m.opts.ConfigRoot, dnsmasqConfName)
	lines := strings.Split(string(data), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if !strings.Contains(l, needle) {
			kept = append(kept, l)
		}
	}
	if len(kept) == len(lines) {
		return nil
	}

	m.logger.Debug("removing resolver include",
		zap.String("conf", conf),
		zap.Int("lines", len(lines)-len(kept)))
	return m.files.Write(conf, []byte(strings.Join(kept, "\n")), files.ProcessOwner)
}
