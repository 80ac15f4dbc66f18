// Package wlan_manager implements the Selector that connects to one access point.
package wlan_manager

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/wlansensor/wlan-sensor-module-go/src/commander"
	"github.com/wlansensor/wlan-sensor-module-go/src/config_manager"
)

// NewSelector creates a Selector. With sortBySignal the band sub-lists are
// stable-sorted by signal before index 0 is taken; otherwise the scan order is
// used as is.
func NewSelector(executor commander.Executor, scanner ScannerInterface, sortBySignal bool) *Selector {
	return &Selector{executor: executor, scanner: scanner, sortBySignal: sortBySignal}
}

// ConnectToBand connects to the first access point of ssid on band. It never
// falls back to the other band.
func (s *Selector) ConnectToBand(ctx context.Context, ssid string, band config_manager.Band) (*SelectorResult, error) {
	aps, err := s.scanner.ListAccessPoints(ctx)
	if err != nil {
		return nil, err
	}

	var aps2G, aps5G []VisibleAccessPoint
	for _, ap := range aps {
		if ap.SSID != ssid {
			continue
		}
		switch ap.Band() {
		case config_manager.Band2G:
			aps2G = append(aps2G, ap)
		case config_manager.Band5G:
			aps5G = append(aps5G, ap)
		}
	}

	result := &SelectorResult{Candidates2G: len(aps2G), Candidates5G: len(aps5G)}
	candidates := aps2G
	if band == config_manager.Band5G {
		candidates = aps5G
	}
	if len(candidates) == 0 {
		logger.WithFields(logrus.Fields{
			"ssid":          ssid,
			"band":          band,
			"candidates_2g": len(aps2G),
			"candidates_5g": len(aps5G),
		}).Error("No access point for requested band")
		return result, fmt.Errorf("%w: %s on %s", ErrNoAccessPoint, ssid, band)
	}
	if s.sortBySignal {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].SignalPercent > candidates[j].SignalPercent
		})
	}
	result.Selected = candidates[0]

	logger.WithFields(logrus.Fields{
		"ssid":    ssid,
		"band":    band,
		"bssid":   result.Selected.BSSID,
		"channel": result.Selected.Channel,
		"signal":  result.Selected.SignalPercent,
	}).Info("Connecting to access point")

	res, err := run(ctx, s.executor, "select", "nmcli", "connection", "up", ssid, "ap", result.Selected.BSSID)
	if err != nil {
		return result, err
	}
	result.Output = res.Combined()
	if !res.Success() {
		logger.WithFields(logrus.Fields{
			"ssid":      ssid,
			"bssid":     result.Selected.BSSID,
			"exit_code": res.ExitCode,
			"output":    result.Output,
		}).Error("Connection attempt failed")
		return result, fmt.Errorf("%w: %s", ErrConnectFailed, result.Output)
	}
	logger.WithFields(logrus.Fields{
		"ssid":  ssid,
		"bssid": result.Selected.BSSID,
	}).Info("Connected to access point")
	return result, nil
}
