// Package systemd registers and controls the Caddy daemon with systemd.
//
// Two backends implement the same surface: Systemctl shells out to the
// systemctl binary, Bus talks to the systemd manager over D-Bus. Both also
// answer host lookups (unit file locations, PHP-FPM address) from a Keys
// table filled from configuration.
package systemd

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownKey is returned by Lookup for a key absent from the table.
	ErrUnknownKey = errors.New("unknown systemd key")

	// ErrUnitNotFound means systemd has no unit by that name loaded or on disk.
	ErrUnitNotFound = errors.New("unit not found")
)

// Well-known lookup keys.
const (
	KeyCaddyUnit = "systemd-caddy"
	KeyCaddyFPM  = "systemd-caddy-fpm"
)

// DefaultKeys returns the lookup table used when configuration sets none.
func DefaultKeys() Keys {
	return Keys{
		KeyCaddyUnit: "/etc/systemd/system/caddy.service",
		KeyCaddyFPM:  "unix:/run/php/php-fpm.sock",
	}
}

// Keys maps lookup keys to host-specific values.
type Keys map[string]string

// Lookup returns the value stored under key.
func (k Keys) Lookup(key string) (string, error) {
	v, ok := k[key]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return v, nil
}

// UnitName returns name with the .service suffix systemd expects.
func UnitName(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + ".service"
}
