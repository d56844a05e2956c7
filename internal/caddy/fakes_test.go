package caddy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/valet-linux/caddyd/internal/files"
	"github.com/valet-linux/caddyd/internal/systemd"
)

// journal records collaborator calls across all fakes in order.
type journal struct {
	calls []string
}

func (j *journal) add(format string, args ...interface{}) {
	j.calls = append(j.calls, fmt.Sprintf(format, args...))
}

// index returns the position of the first call with the given prefix, or -1.
func (j *journal) index(prefix string) int {
	for i, c := range j.calls {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

func (j *journal) count(prefix string) int {
	n := 0
	for _, c := range j.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type fakeExec struct {
	j    *journal
	fail error
}

func (f *fakeExec) Run(_ context.Context, quiet bool, name string, args ...string) error {
	f.j.add("exec %s quiet=%v", strings.Join(append([]string{name}, args...), " "), quiet)
	return f.fail
}

// fakeFS is an in-memory FileStore.
type fakeFS struct {
	j      *journal
	data   map[string][]byte
	dirs   map[string]bool
	owners map[string]files.Owner
	fail   map[string]error // keyed by "<op> <path>"
}

func newFakeFS(j *journal) *fakeFS {
	return &fakeFS{
		j:      j,
		data:   map[string][]byte{},
		dirs:   map[string]bool{},
		owners: map[string]files.Owner{},
		fail:   map[string]error{},
	}
}

func (f *fakeFS) failure(op, path string) error {
	return f.fail[op+" "+path]
}

func (f *fakeFS) Read(path string) ([]byte, error) {
	f.j.add("fs read %s", path)
	if err := f.failure("read", path); err != nil {
		return nil, err
	}
	d, ok := f.data[path]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	return append([]byte(nil), d...), nil
}

func (f *fakeFS) Write(path string, data []byte, owner files.Owner) error {
	f.j.add("fs write %s owner=%s", path, owner)
	if err := f.failure("write", path); err != nil {
		return err
	}
	f.data[path] = append([]byte(nil), data...)
	f.owners[path] = owner
	return nil
}

func (f *fakeFS) EnsureDir(path string, owner files.Owner) error {
	f.j.add("fs mkdir %s owner=%s", path, owner)
	if err := f.failure("mkdir", path); err != nil {
		return err
	}
	f.dirs[path] = true
	f.owners[path] = owner
	return nil
}

func (f *fakeFS) Touch(path string, owner files.Owner) error {
	f.j.add("fs touch %s owner=%s", path, owner)
	if _, ok := f.data[path]; !ok {
		f.data[path] = nil
		f.owners[path] = owner
	}
	return nil
}

func (f *fakeFS) Exists(path string) bool {
	_, isFile := f.data[path]
	return isFile || f.dirs[path]
}

func (f *fakeFS) Delete(path string) error {
	f.j.add("fs delete %s", path)
	if err := f.failure("delete", path); err != nil {
		return err
	}
	delete(f.data, path)
	return nil
}

func (f *fakeFS) Files(dir string) ([]string, error) {
	f.j.add("fs list %s", dir)
	var out []string
	for p := range f.data {
		if filepath.Dir(p) == dir {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeFS) Realpath(path string) (string, error) {
	return path, nil
}

// fakeRegistry models a single systemd unit. It has no Start method since
// the Manager only ever restarts the unit.
var _ ServiceRegistry = (*fakeRegistry)(nil)

type fakeRegistry struct {
	j       *journal
	keys    systemd.Keys
	enabled bool
	active  bool
	fail    map[string]error // keyed by method name
}

func newFakeRegistry(j *journal) *fakeRegistry {
	return &fakeRegistry{
		j: j,
		keys: systemd.Keys{
			DefaultUnitKey: "/etc/systemd/system/caddy.service",
			DefaultFPMKey:  "unix:/run/php/php8.2-fpm.sock",
		},
		fail: map[string]error{},
	}
}

func (r *fakeRegistry) Lookup(key string) (string, error) {
	r.j.add("svc lookup %s", key)
	return r.keys.Lookup(key)
}

func (r *fakeRegistry) Enable(_ context.Context, name string) error {
	r.j.add("svc enable %s", name)
	if err := r.fail["enable"]; err != nil {
		return err
	}
	r.enabled = true
	return nil
}

func (r *fakeRegistry) Disable(_ context.Context, name string) error {
	r.j.add("svc disable %s", name)
	if err := r.fail["disable"]; err != nil {
		return err
	}
	r.enabled = false
	return nil
}

func (r *fakeRegistry) Stop(_ context.Context, name string) error {
	r.j.add("svc stop %s", name)
	if err := r.fail["stop"]; err != nil {
		return err
	}
	r.active = false
	return nil
}

func (r *fakeRegistry) Restart(_ context.Context, name string) error {
	r.j.add("svc restart %s", name)
	if err := r.fail["restart"]; err != nil {
		return err
	}
	r.active = true
	return nil
}

func (r *fakeRegistry) Reload(context.Context) error {
	r.j.add("svc reload")
	return r.fail["reload"]
}

func (r *fakeRegistry) IsEnabled(context.Context, string) (bool, error) {
	return r.enabled, r.fail["is-enabled"]
}

func (r *fakeRegistry) IsActive(context.Context, string) (bool, error) {
	return r.active, nil
}

var errBoom = errors.New("boom")
