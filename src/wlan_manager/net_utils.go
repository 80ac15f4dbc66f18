// Package wlan_manager provides the address sources used by the link inspector.
package wlan_manager

import (
	"context"
	"fmt"

	"github.com/wlansensor/wlan-sensor-module-go/src/commander"
)

// NewAddressSource returns the source named by the tools.address_source setting.
func NewAddressSource(kind string, executor commander.Executor) (AddressSource, error) {
	switch kind {
	case "", "netlink":
		return NewNetlinkAddressSource(), nil
	case "ip":
		return &CommandAddressSource{executor: executor}, nil
	}
	return nil, fmt.Errorf("unknown address source %q", kind)
}

// CommandAddressSource reads addressing from `ip a show` and `ip route list`.
type CommandAddressSource struct {
	executor commander.Executor
}

func (s *CommandAddressSource) Addresses(ctx context.Context, iface string) (*IPConfig, error) {
	res, err := runOK(ctx, s.executor, "inspect", "ip", "a", "show", iface)
	if err != nil {
		return nil, err
	}
	cfg, err := IPAddrParser{}.Parse(res.Stdout)
	if err != nil {
		return nil, err
	}

	routes, err := runOK(ctx, s.executor, "inspect", "ip", "route", "list")
	if err != nil {
		logger.WithError(err).WithField("interface", iface).Warn("Could not read routing table")
		return &cfg, nil
	}
	cfg.Gateway, _ = IPRouteParser{Interface: iface}.Parse(routes.Stdout)
	return &cfg, nil
}
