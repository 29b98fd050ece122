// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sysinit

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// DefaultRoute is the route destination for the default route.
const DefaultRoute = "default"

// InterfaceConfig is the address configuration of a network interface.
type InterfaceConfig struct {
	// Name of the interface, like "eth0".
	Name string

	// Address in CIDR notation, like "192.168.20.69/24".
	Address string
}

// RouteConfig is a static route.
type RouteConfig struct {
	// Destination in CIDR notation or [DefaultRoute].
	Destination string

	// Gateway is the IP address of the next hop.
	Gateway string
}

// NetworkConfigurator configures network interfaces and routes.
type NetworkConfigurator interface {
	// ConfigureAddress adds the address to the interface and brings it up.
	ConfigureAddress(ctx context.Context, iface InterfaceConfig) error

	// ConfigureRoute adds a route.
	ConfigureRoute(ctx context.Context, route RouteConfig) error
}

// NetworkBackend selects the [NetworkConfigurator] implementation.
type NetworkBackend string

// Available network backends.
const (
	NetworkBackendIP      NetworkBackend = "ip"
	NetworkBackendNetlink NetworkBackend = "netlink"
)

// IPCommand implements [NetworkConfigurator] with the ip(8) binary.
type IPCommand struct {
	Runner Runner

	// Binary is the name or path of the ip binary. Defaults to "ip".
	Binary string
}

var _ NetworkConfigurator = IPCommand{}

func (c IPCommand) binary() string {
	if c.Binary == "" {
		return "ip"
	}

	return c.Binary
}

// ConfigureAddress runs "ip addr add" followed by "ip link set up". The link
// is set up even if the address could not be added, for example because it
// exists already.
func (c IPCommand) ConfigureAddress(ctx context.Context, iface InterfaceConfig) error {
	var errs []error

	err := c.Runner.Run(ctx, c.binary(), "addr", "add", iface.Address, "dev", iface.Name)
	if err != nil {
		errs = append(errs, fmt.Errorf("addr add: %w", err))
	}

	err = c.Runner.Run(ctx, c.binary(), "link", "set", iface.Name, "up")
	if err != nil {
		errs = append(errs, fmt.Errorf("link set up: %w", err))
	}

	return errors.Join(errs...)
}

// ConfigureRoute runs "ip route add".
func (c IPCommand) ConfigureRoute(ctx context.Context, route RouteConfig) error {
	err := c.Runner.Run(ctx, c.binary(), "route", "add", route.Destination, "via", route.Gateway)
	if err != nil {
		return fmt.Errorf("route add: %w", err)
	}

	return nil
}

// Netlink implements [NetworkConfigurator] with rtnetlink requests. It does
// not depend on any external binary.
type Netlink struct{}

var _ NetworkConfigurator = Netlink{}

// ConfigureAddress adds the address and sets the link up. An address that is
// present already is not an error.
func (Netlink) ConfigureAddress(_ context.Context, iface InterfaceConfig) error {
	addr, err := netlink.ParseAddr(iface.Address)
	if err != nil {
		return fmt.Errorf("parse address: %w", err)
	}

	link, err := netlink.LinkByName(iface.Name)
	if err != nil {
		return fmt.Errorf("get link %s: %w", iface.Name, err)
	}

	err = netlink.AddrAdd(link, addr)
	if err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("addr add: %w", err)
	}

	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("link set up: %w", err)
	}

	return nil
}

// ConfigureRoute adds the route.
func (Netlink) ConfigureRoute(_ context.Context, route RouteConfig) error {
	nlRoute, err := netlinkRoute(route)
	if err != nil {
		return err
	}

	if err := netlink.RouteAdd(nlRoute); err != nil {
		return fmt.Errorf("route add: %w", err)
	}

	return nil
}

func netlinkRoute(route RouteConfig) (*netlink.Route, error) {
	gateway := net.ParseIP(route.Gateway)
	if gateway == nil {
		return nil, fmt.Errorf("parse gateway %q: %w", route.Gateway, unix.EINVAL)
	}

	nlRoute := &netlink.Route{Gw: gateway}

	if route.Destination != DefaultRoute {
		_, dst, err := net.ParseCIDR(route.Destination)
		if err != nil {
			return nil, fmt.Errorf("parse destination: %w", err)
		}

		nlRoute.Dst = dst
	}

	return nlRoute, nil
}
