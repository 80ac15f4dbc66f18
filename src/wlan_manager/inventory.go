package wlan_manager

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/wlansensor/wlan-sensor-module-go/src/commander"
)

// NewInventory creates an Inventory that runs lshw and iw through executor.
func NewInventory(executor commander.Executor) *Inventory {
	return &Inventory{executor: executor}
}

// Discover lists the Wi-Fi radios. Band support and regulatory domain are
// best effort: a failing iw call leaves them empty.
func (i *Inventory) Discover(ctx context.Context) ([]RadioInterface, error) {
	res, err := runOK(ctx, i.executor, "inventory", "lshw", "-C", "network")
	if err != nil {
		return nil, err
	}
	radios, err := LshwParser{}.Parse(res.Stdout)
	if err != nil {
		return nil, err
	}

	var regOutput []byte
	if reg, err := runOK(ctx, i.executor, "inventory", "iw", "reg", "get"); err != nil {
		logger.WithError(err).Warn("Could not read regulatory domain")
	} else {
		regOutput = reg.Stdout
	}

	for idx := range radios {
		r := &radios[idx]
		if phy, err := runOK(ctx, i.executor, "inventory", "iw", "phy", r.PhyHandle, "info"); err != nil {
			logger.WithError(err).WithField("phy", r.PhyHandle).Warn("Could not read phy capabilities")
		} else {
			r.BandsSupported, _ = PhyBandsParser{}.Parse(phy.Stdout)
		}

		if regOutput != nil {
			if rd, err := (RegDomainParser{PhysicalID: r.PhysicalID}).Parse(regOutput); err != nil {
				logger.WithError(err).WithField("phy", r.PhyHandle).Warn("No regulatory country for radio")
			} else {
				r.RegulatoryCountry = rd.Country
				r.DFSStatus = rd.DFS
			}
		}

		logger.WithFields(logrus.Fields{
			"interface":       r.LogicalName,
			"phy":             r.PhyHandle,
			"bands_supported": r.BandsSupported,
			"country":         r.RegulatoryCountry,
			"dfs":             r.DFSStatus,
		}).Info("Found wireless radio")
	}
	return radios, nil
}
