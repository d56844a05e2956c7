// Package setup resolves the host facts caddyd needs before it can act:
// who invoked it, whether it runs elevated, and where it is installed.
package setup

import (
	"fmt"
	"os/user"
	"strconv"
)

// Identity is the non-elevated user on whose behalf caddyd runs. Files under
// the config root are owned by this user even when the process is root.
type Identity struct {
	Name string
	UID  int
	GID  int
	Home string
}

// ResolveInvokingUser returns the identity of sudoUser, or of the current
// user when sudoUser is empty (caddyd was not started through sudo).
// Callers pass the SUDO_USER environment value; nothing below the CLI reads
// the environment.
func ResolveInvokingUser(sudoUser string) (Identity, error) {
	var (
		u   *user.User
		err error
	)
	if sudoUser != "" {
		u, err = user.Lookup(sudoUser)
	} else {
		u, err = user.Current()
	}
	if err != nil {
		return Identity{}, fmt.Errorf("looking up invoking user: %w", err)
	}
	return identityFromUser(u)
}

func identityFromUser(u *user.User) (Identity, error) {
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return Identity{}, fmt.Errorf("parsing uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return Identity{}, fmt.Errorf("parsing gid %q: %w", u.Gid, err)
	}
	return Identity{
		Name: u.Username,
		UID:  uid,
		GID:  gid,
		Home: u.HomeDir,
	}, nil
}
