//go:build linux || darwin

package setup

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// CheckElevation verifies the process has root privileges, which every
// lifecycle operation needs to write the unit file and talk to systemd.
func CheckElevation(operation string) error {
	if unix.Geteuid() != 0 {
		return fmt.Errorf("%s requires root privileges\n\nRun with sudo:\n  sudo %s %s", operation, os.Args[0], operation)
	}
	return nil
}
