// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/netip"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// OverrideFile is the optional file with configuration overrides. See
// [Config.LoadOverrides].
const OverrideFile = "/etc/ttyinit.env"

// Keys recognized in the [OverrideFile].
const (
	// Comma separated list of console device paths.
	EnvConsoles = "TTYINIT_CONSOLES"

	// Comma separated list of "interface=address/prefix".
	EnvInterfaces = "TTYINIT_INTERFACES"

	// Comma separated list of "destination=gateway". Destination is either
	// "default" or a CIDR prefix.
	EnvRoutes = "TTYINIT_ROUTES"

	// Either "ip" or "netlink".
	EnvNetworkBackend = "TTYINIT_NETWORK_BACKEND"

	// One of "debug", "info", "warn", "error".
	EnvLogLevel = "TTYINIT_LOG_LEVEL"
)

// ErrInvalidOverride is returned for invalid values in the [OverrideFile].
var ErrInvalidOverride = errors.New("invalid override")

// Config defines the complete system configuration.
type Config struct {
	// Mounts are the file systems set up on boot.
	Mounts MountTable

	// Interfaces are configured in order once /sys is mounted.
	Interfaces []InterfaceConfig

	// Routes are added after the Interfaces are configured.
	Routes []RouteConfig

	// NetworkBackend selects how Interfaces and Routes are configured.
	NetworkBackend NetworkBackend

	// DeviceDaemon and DeviceTrigger are the device event programs.
	DeviceDaemon  string
	DeviceTrigger string

	// Consoles are the devices a login [Session] is run on.
	Consoles []string

	// Login is the identity of the interactive sessions.
	Login Login

	// Path is the PATH of all spawned programs.
	Path string

	// LogLevel is the minimum level of log messages.
	LogLevel slog.Level
}

// DefaultConfig creates a new default config.
func DefaultConfig() Config {
	return Config{
		Mounts: SystemMounts(),
		Interfaces: []InterfaceConfig{
			{Name: "lo", Address: "127.0.0.1/8"},
			{Name: "eth0", Address: "192.168.20.69/24"},
		},
		Routes: []RouteConfig{
			{Destination: DefaultRoute, Gateway: "192.168.20.1"},
		},
		NetworkBackend: NetworkBackendIP,
		DeviceDaemon:   "udevd",
		DeviceTrigger:  "udevadm",
		Consoles:       []string{"/dev/tty1", "/dev/tty2"},
		Login: Login{
			Name:   "saraph",
			Home:   "/saraph",
			Shell:  "zsh",
			UID:    1,
			GID:    1,
			Groups: []uint32{3, 4, 5},
		},
		Path:     "/bin:/sbin:/usr/local/bin:/usr/local/sbin",
		LogLevel: slog.LevelInfo,
	}
}

// Env returns the environment of all spawned programs.
func (c *Config) Env() EnvVars {
	return EnvVars{"PATH": c.Path}
}

// LoadOverrides reads the given env file and applies the values found. A
// missing file is not an error.
func (c *Config) LoadOverrides(path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("read %s: %w", path, err)
	}

	return c.ApplyOverrides(values)
}

// ApplyOverrides applies the given values by key. Unknown keys are ignored.
// Invalid values are skipped, so the current value stays, and returned as
// joined errors wrapping [ErrInvalidOverride].
func (c *Config) ApplyOverrides(values map[string]string) error {
	appliers := map[string]func(string) error{
		EnvConsoles:       c.overrideConsoles,
		EnvInterfaces:     c.overrideInterfaces,
		EnvRoutes:         c.overrideRoutes,
		EnvNetworkBackend: c.overrideNetworkBackend,
		EnvLogLevel:       c.overrideLogLevel,
	}

	var errs []error

	for key, apply := range sortedMap(appliers) {
		value, exists := values[key]
		if !exists {
			continue
		}

		if err := apply(value); err != nil {
			errs = append(errs, fmt.Errorf("%w %s: %w", ErrInvalidOverride, key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) overrideConsoles(value string) error {
	consoles := splitList(value)
	for _, console := range consoles {
		if !filepath.IsAbs(console) {
			return fmt.Errorf("not an absolute path: %s", console)
		}
	}

	c.Consoles = consoles

	return nil
}

func (c *Config) overrideInterfaces(value string) error {
	var interfaces []InterfaceConfig

	for _, item := range splitList(value) {
		name, address, found := strings.Cut(item, "=")
		if !found || name == "" {
			return fmt.Errorf("expected interface=address: %s", item)
		}

		if _, err := netip.ParsePrefix(address); err != nil {
			return fmt.Errorf("interface %s: %w", name, err)
		}

		interfaces = append(interfaces, InterfaceConfig{Name: name, Address: address})
	}

	c.Interfaces = interfaces

	return nil
}

func (c *Config) overrideRoutes(value string) error {
	var routes []RouteConfig

	for _, item := range splitList(value) {
		destination, gateway, found := strings.Cut(item, "=")
		if !found {
			return fmt.Errorf("expected destination=gateway: %s", item)
		}

		if destination != DefaultRoute {
			if _, err := netip.ParsePrefix(destination); err != nil {
				return fmt.Errorf("route destination: %w", err)
			}
		}

		if _, err := netip.ParseAddr(gateway); err != nil {
			return fmt.Errorf("route %s gateway: %w", destination, err)
		}

		routes = append(routes, RouteConfig{Destination: destination, Gateway: gateway})
	}

	c.Routes = routes

	return nil
}

func (c *Config) overrideNetworkBackend(value string) error {
	backend := NetworkBackend(strings.TrimSpace(value))

	switch backend {
	case NetworkBackendIP, NetworkBackendNetlink:
		c.NetworkBackend = backend
		return nil
	default:
		return fmt.Errorf("unknown network backend: %s", value)
	}
}

func (c *Config) overrideLogLevel(value string) error {
	var level slog.Level

	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return err
	}

	c.LogLevel = level

	return nil
}

func splitList(value string) []string {
	var list []string

	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			list = append(list, item)
		}
	}

	return list
}
