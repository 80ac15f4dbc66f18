package wlan_manager

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/wlansensor/wlan-sensor-module-go/src/commander"
)

// NewConnectivityChecker creates a ConnectivityChecker that pings through executor.
func NewConnectivityChecker(executor commander.Executor) *ConnectivityChecker {
	return &ConnectivityChecker{executor: executor}
}

// CheckGateway pings gateway twice with a one second deadline. Any failure
// counts as unreachable.
func (c *ConnectivityChecker) CheckGateway(ctx context.Context, gateway string) bool {
	if gateway == "" {
		logger.Debug("No gateway to check")
		return false
	}
	res, err := c.executor.Execute(ctx, "ping", "-c", "2", "-w", "1", gateway)
	if err != nil {
		logger.WithError(err).Warn("Gateway reachability check could not run")
		return false
	}
	reachable := res.Success()
	logger.WithFields(logrus.Fields{
		"gateway":   gateway,
		"reachable": reachable,
	}).Info("Gateway reachability checked")
	return reachable
}
