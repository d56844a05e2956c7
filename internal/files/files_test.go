package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/valet-linux/caddyd/internal/setup"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	id, err := setup.ResolveInvokingUser("")
	require.NoError(t, err)
	return New(id, zap.NewNop())
}

func TestWriteAndRead(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(t.TempDir(), "Caddyfile")

	require.NoError(t, s.Write(path, []byte("first"), InvokingUser))
	require.NoError(t, s.Write(path, []byte("second"), ProcessOwner))

	data, err := s.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestRead_Missing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Read(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnsureDir(t *testing.T) {
	s := newTestStore(t)
	dir := filepath.Join(t.TempDir(), "a", "Caddy")

	require.NoError(t, s.EnsureDir(dir, InvokingUser))
	require.NoError(t, s.EnsureDir(dir, InvokingUser))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestTouch(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(t.TempDir(), ".keep")

	require.NoError(t, s.Touch(path, InvokingUser))
	assert.True(t, s.Exists(path))

	require.NoError(t, os.WriteFile(path, []byte("kept"), 0644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	require.NoError(t, s.Touch(path, InvokingUser))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().After(old))
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(t.TempDir(), "caddy.service")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	require.NoError(t, s.Delete(path))
	assert.False(t, s.Exists(path))
	assert.NoError(t, s.Delete(path), "deleting a missing file is a no-op")
}

func TestFiles_DirectRegularFilesOnly(t *testing.T) {
	s := newTestStore(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Caddyfile"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dnsmasq.conf"), nil, 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Caddy"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Caddy", ".keep"), nil, 0644))

	got, err := s.Files(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "Caddyfile"),
		filepath.Join(root, "dnsmasq.conf"),
	}, got)
}

func TestFiles_FollowsSymlinks(t *testing.T) {
	s := newTestStore(t)
	root := t.TempDir()
	elsewhere := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "plain"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(elsewhere, "real.conf"), nil, 0644))
	require.NoError(t, os.Symlink(filepath.Join(elsewhere, "real.conf"), filepath.Join(root, "linked.conf")))
	require.NoError(t, os.Symlink(elsewhere, filepath.Join(root, "linked-dir")))
	require.NoError(t, os.Symlink(filepath.Join(elsewhere, "gone"), filepath.Join(root, "dangling")))

	got, err := s.Files(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "plain"),
		filepath.Join(root, "linked.conf"),
	}, got)

	require.NoError(t, s.Delete(filepath.Join(root, "linked.conf")))
	assert.FileExists(t, filepath.Join(elsewhere, "real.conf"), "deleting the link keeps its target")
}

func TestFiles_MissingDir(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Files(filepath.Join(t.TempDir(), "gone"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRealpath(t *testing.T) {
	s := newTestStore(t)
	root := t.TempDir()
	target := filepath.Join(root, "install")
	require.NoError(t, os.MkdirAll(target, 0755))
	link := filepath.Join(root, "current")
	require.NoError(t, os.Symlink(target, link))

	got, err := s.Realpath(link)
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestOwnerString(t *testing.T) {
	assert.Equal(t, "process", ProcessOwner.String())
	assert.Equal(t, "user", InvokingUser.String())
	assert.Equal(t, "unknown", Owner(9).String())
}
