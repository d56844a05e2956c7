// Package files implements the filesystem operations caddyd performs on the
// host, routing ownership of each written path to either the process owner
// or the invoking user.
package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/valet-linux/caddyd/internal/setup"
)

// Owner selects who owns a path created by the Store.
type Owner int

const (
	ProcessOwner Owner = iota // whoever runs caddyd (root under sudo)
	InvokingUser              // the user behind sudo
)

func (o Owner) String() string {
	switch o {
	case ProcessOwner:
		return "process"
	case InvokingUser:
		return "user"
	default:
		return "unknown"
	}
}

const (
	fileMode = 0644
	dirMode  = 0755
)

// Store is the host filesystem as seen by caddyd.
type Store struct {
	user   setup.Identity
	logger *zap.Logger
}

// New returns a Store that hands InvokingUser paths over to user.
func New(user setup.Identity, logger *zap.Logger) *Store {
	return &Store{
		user:   user,
		logger: logger.Named("files"),
	}
}

// Read returns the contents of path.
func (s *Store) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Write creates or truncates path with data and applies owner.
func (s *Store) Write(path string, data []byte, owner Owner) error {
	if err := os.WriteFile(path, data, fileMode); err != nil {
		return err
	}
	return s.chown(path, owner)
}

// EnsureDir creates path and any missing parents. Only path itself is
// handed to owner.
func (s *Store) EnsureDir(path string, owner Owner) error {
	if err := os.MkdirAll(path, dirMode); err != nil {
		return err
	}
	return s.chown(path, owner)
}

// Touch creates an empty file at path, or bumps its timestamps if it exists.
func (s *Store) Touch(path string, owner Owner) error {
	now := time.Now()
	err := os.Chtimes(path, now, now)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, fileMode)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return s.chown(path, owner)
}

// Exists reports whether path exists.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Delete removes path. A missing path is not an error.
func (s *Store) Delete(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Files lists the regular files directly inside dir, including symlinks
// that resolve to a regular file. Subdirectories and their contents, and
// dangling links, are not included. A missing dir yields no files.
func (s *Store) Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []string
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		mode := e.Type()
		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			mode = info.Mode().Type()
		}
		if mode.IsRegular() {
			out = append(out, path)
		}
	}
	return out, nil
}

// Realpath returns the absolute, symlink-free form of path.
func (s *Store) Realpath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func (s *Store) chown(path string, owner Owner) error {
	if owner != InvokingUser {
		return nil
	}
	// Only root can give files away; an unprivileged run already creates
	// them as the invoking user.
	if unix.Geteuid() != 0 || s.user.UID == unix.Geteuid() {
		return nil
	}
	if err := unix.Chown(path, s.user.UID, s.user.GID); err != nil {
		return fmt.Errorf("chown %s to %s: %w", path, s.user.Name, err)
	}
	s.logger.Debug("changed owner", zap.String("path", path), zap.String("user", s.user.Name))
	return nil
}
