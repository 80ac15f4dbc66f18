//go:build !linux
// +build !linux

package wlan_manager

import (
	"context"
	"errors"
)

// NetlinkAddressSource is unavailable off Linux.
type NetlinkAddressSource struct{}

// NewNetlinkAddressSource creates a stub that always fails.
func NewNetlinkAddressSource() AddressSource {
	logger.Warn("Using stub address source - netlink functionality only available on Linux")
	return &NetlinkAddressSource{}
}

func (s *NetlinkAddressSource) Addresses(ctx context.Context, iface string) (*IPConfig, error) {
	return nil, errors.New("netlink address source is only available on Linux")
}
