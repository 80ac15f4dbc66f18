//go:build linux
// +build linux

package wlan_manager

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/vishvananda/netlink"
)

// NetlinkAddressSource reads addressing straight from the kernel.
type NetlinkAddressSource struct{}

// NewNetlinkAddressSource creates a netlink backed AddressSource.
func NewNetlinkAddressSource() AddressSource {
	return &NetlinkAddressSource{}
}

func (s *NetlinkAddressSource) Addresses(ctx context.Context, iface string) (*IPConfig, error) {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return nil, fmt.Errorf("error getting link %s: %w", iface, err)
	}

	var cfg IPConfig
	addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
	if err != nil {
		return nil, fmt.Errorf("error listing addresses of %s: %w", iface, err)
	}
	for _, addr := range addrs {
		ones, _ := addr.Mask.Size()
		if addr.IP.To4() != nil {
			if cfg.IPv4 == "" {
				cfg.IPv4, cfg.IPv4Mask = addr.IP.String(), strconv.Itoa(ones)
			}
		} else if cfg.IPv6 == "" {
			cfg.IPv6, cfg.IPv6Mask = addr.IP.String(), strconv.Itoa(ones)
		}
	}

	routes, err := netlink.RouteList(link, netlink.FAMILY_V4)
	if err != nil {
		logger.WithError(err).WithField("interface", iface).Warn("Could not list routes")
		return &cfg, nil
	}
	for _, route := range routes {
		if route.Gw != nil && isDefaultDestination(route.Dst) {
			cfg.Gateway = route.Gw.String()
			break
		}
	}
	return &cfg, nil
}

// isDefaultDestination matches both the nil and the 0.0.0.0/0 forms netlink
// uses for a default route.
func isDefaultDestination(dst *net.IPNet) bool {
	if dst == nil {
		return true
	}
	ones, _ := dst.Mask.Size()
	return ones == 0 && dst.IP.IsUnspecified()
}
