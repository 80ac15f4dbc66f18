// Package wlan_manager implements the Scanner for Wi-Fi network scanning.
package wlan_manager

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wlansensor/wlan-sensor-module-go/src/commander"
)

// NewScanner creates a Scanner that runs nmcli through executor.
func NewScanner(executor commander.Executor) *Scanner {
	return &Scanner{executor: executor}
}

// IsVisible reports whether ssid appears in the scan table. An absent SSID is
// false, not an error; errors mean the table could not be read at all.
func (s *Scanner) IsVisible(ctx context.Context, ssid string, forceRescan bool) (bool, error) {
	if forceRescan {
		s.rescan(ctx)
	}

	res, err := runOK(ctx, s.executor, "scan", "nmcli", "-t", "-f", "SIGNAL,SSID,BSSID,CHAN,IN-USE", "device", "wifi", "list")
	if err != nil {
		return false, err
	}
	rows, err := VisibilityParser{}.Parse(res.Stdout)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if strings.Contains(row.SSID, ssid) {
			logger.WithFields(logrus.Fields{
				"ssid":    ssid,
				"bssid":   row.BSSID,
				"channel": row.Channel,
				"signal":  row.SignalPercent,
			}).Info("SSID is visible")
			return true, nil
		}
	}
	logger.WithFields(logrus.Fields{
		"ssid":      ssid,
		"rows":      len(rows),
		"rescanned": forceRescan,
	}).Warn("SSID is not visible")
	return false, nil
}

// rescan asks NetworkManager for a fresh scan. NetworkManager refuses scans
// that follow each other too closely; the cached table is used then.
func (s *Scanner) rescan(ctx context.Context) {
	res, err := s.executor.Execute(ctx, "nmcli", "device", "wifi", "rescan")
	if err != nil {
		logger.WithError(err).Warn("Could not request a Wi-Fi rescan")
		return
	}
	if !res.Success() {
		logger.WithField("output", res.Combined()).Info("Rescan rejected, using cached scan results")
	}
}

// ListAccessPoints returns every visible access point in the order nmcli lists
// them (strongest first).
func (s *Scanner) ListAccessPoints(ctx context.Context) ([]VisibleAccessPoint, error) {
	res, err := runOK(ctx, s.executor, "select", "nmcli", "-g", AccessPointFields, "device", "wifi", "list")
	if err != nil {
		return nil, err
	}
	aps, err := AccessPointListParser{}.Parse(res.Stdout)
	if err != nil {
		return nil, err
	}
	logger.WithField("access_points", len(aps)).Debug("Listed access points")
	return aps, nil
}
