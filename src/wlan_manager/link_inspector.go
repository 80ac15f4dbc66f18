package wlan_manager

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/wlansensor/wlan-sensor-module-go/src/commander"
)

// NewLinkInspector creates a LinkInspector. addresses may be nil to skip IP configuration.
func NewLinkInspector(executor commander.Executor, addresses AddressSource) *LinkInspector {
	return &LinkInspector{executor: executor, addresses: addresses}
}

// Inspect builds a fresh snapshot of iface. It is safe to call with or without
// an association. Missing output lines leave fields unset.
func (p *LinkInspector) Inspect(ctx context.Context, iface string) (*AssociationSnapshot, error) {
	res, err := runOK(ctx, p.executor, "inspect", "iw", "dev", iface, "link")
	if err != nil {
		return nil, err
	}
	snap, err := LinkParser{}.Parse(res.Stdout)
	if err != nil {
		return nil, err
	}
	snap.Interface = iface
	if !snap.Connected {
		logger.WithField("interface", iface).Info("Interface is not associated")
		return &snap, nil
	}

	if info, err := runOK(ctx, p.executor, "inspect", "iw", "dev", iface, "info"); err != nil {
		logger.WithError(err).WithField("interface", iface).Warn("Could not read interface channel")
	} else {
		dev, _ := DevInfoParser{}.Parse(info.Stdout)
		if dev.Channel != 0 {
			snap.Channel = dev.Channel
			snap.Width = dev.Width
			snap.CenterFreq = dev.CenterFreq
		}
		if dev.Frequency != 0 {
			snap.Frequency = dev.Frequency
			snap.Band = dev.Band
		}
		snap.TxPower = dev.TxPower
	}

	if p.addresses != nil {
		if ipcfg, err := p.addresses.Addresses(ctx, iface); err != nil {
			logger.WithError(err).WithField("interface", iface).Warn("Could not read IP configuration")
		} else {
			snap.IPConfig = *ipcfg
		}
	}

	logger.WithFields(logrus.Fields{
		"interface": iface,
		"ssid":      snap.SSID,
		"bssid":     snap.BSSID,
		"band":      snap.Band,
		"channel":   snap.Channel,
		"signal":    snap.SignalDbm,
		"ipv4":      snap.IPv4,
	}).Info("Interface is associated")
	return &snap, nil
}
