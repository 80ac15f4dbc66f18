package wlan_manager

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wlansensor/wlan-sensor-module-go/src/config_manager"
	"github.com/wlansensor/wlan-sensor-module-go/src/utils"
)

// Provision replaces the stored profile for desired.SSID with one built from
// desired. Deleting the old profile is best effort.
func (pm *ProfileManager) Provision(ctx context.Context, desired *config_manager.DesiredWlanConfig, radios []RadioInterface) ProvisionResult {
	iface, band, err := selectInterface(radios, desired.Band)
	if err != nil {
		return ProvisionResult{Status: Rejected, Output: err.Error(), Err: err}
	}

	if res, err := pm.executor.Execute(ctx, "nmcli", "connection", "delete", "id", desired.SSID); err != nil {
		logger.WithError(err).WithField("ssid", desired.SSID).Warn("Could not run profile delete")
	} else if !res.Success() {
		logger.WithFields(logrus.Fields{
			"ssid":   desired.SSID,
			"output": res.Combined(),
		}).Debug("No existing profile deleted")
	}

	args, err := buildProfileArgs(desired, iface, band)
	if err != nil {
		return ProvisionResult{Status: Rejected, Interface: iface, Output: err.Error(), Err: err}
	}

	res, err := pm.executor.Execute(ctx, "nmcli", args...)
	if err != nil {
		return ProvisionResult{Status: ToolError, Interface: iface, Err: launchError("provision", err)}
	}
	if !res.Success() {
		logger.WithFields(logrus.Fields{
			"ssid":      desired.SSID,
			"interface": iface,
			"exit_code": res.ExitCode,
			"output":    res.Combined(),
		}).Error("Profile rejected by nmcli")
		return ProvisionResult{Status: Rejected, Interface: iface, Output: res.Combined(), Err: toolError("provision", res)}
	}

	logger.WithFields(logrus.Fields{
		"ssid":      desired.SSID,
		"interface": iface,
		"auth":      desired.AuthMethod,
		"ip_mode":   desired.IPMode,
	}).Info("Created connection profile")
	return ProvisionResult{Status: Created, Interface: iface, Output: res.Output()}
}

// selectInterface picks the radio for a new profile and the band the profile
// can be locked to. A 5G profile on a multi-radio host prefers the first
// dual-band radio; without one it falls back to the first radio and the band
// is left to the radio (BandAuto).
func selectInterface(radios []RadioInterface, band config_manager.Band) (string, config_manager.Band, error) {
	if len(radios) == 0 {
		return "", band, ErrNoRadio
	}
	if band == config_manager.Band5G && len(radios) > 1 {
		for _, r := range radios {
			if r.BandsSupported == 2 {
				return r.LogicalName, band, nil
			}
		}
		logger.WithField("interface", radios[0].LogicalName).Warn("No dual-band radio found, using the first radio without forcing 5G")
		return radios[0].LogicalName, config_manager.BandAuto, nil
	}
	return radios[0].LogicalName, band, nil
}

// effectiveDesired returns desired with the band the selected radio can
// actually be locked to. desired itself is not modified.
func effectiveDesired(desired *config_manager.DesiredWlanConfig, radios []RadioInterface) (*config_manager.DesiredWlanConfig, string) {
	iface, band, err := selectInterface(radios, desired.Band)
	if err != nil || band == desired.Band {
		return desired, iface
	}
	d := *desired
	d.Band = band
	return &d, iface
}

// buildProfileArgs renders the nmcli arguments for desired on iface. band is
// the band from selectInterface and replaces desired.Band.
func buildProfileArgs(desired *config_manager.DesiredWlanConfig, iface string, band config_manager.Band) ([]string, error) {
	args := []string{
		"connection", "add", "type", "wifi",
		"con-name", desired.SSID,
		"ifname", iface,
		"ssid", desired.SSID,
	}

	if b := nmcliBand(band); b != unsetValue {
		args = append(args, "802-11-wireless.band", b)
	}
	if !desired.BSSIDIsAuto() {
		bssid, err := utils.NormalizeMACAddress(desired.BSSID)
		if err != nil {
			return nil, err
		}
		args = append(args, "802-11-wireless.bssid", bssid)
	}

	creds := desired.Credentials
	switch desired.AuthMethod {
	case config_manager.AuthOpen:
	case config_manager.AuthPSK:
		args = append(args, "wifi-sec.key-mgmt", "wpa-psk", "wifi-sec.psk", creds.PSK)
	case config_manager.AuthPEAP, config_manager.AuthTTLS:
		args = append(args,
			"wifi-sec.key-mgmt", "wpa-eap",
			"802-1x.eap", desired.AuthMethod.EAPMethod(),
			"802-1x.identity", creds.Identity,
			"802-1x.password", creds.Password,
		)
		if creds.Phase2Auth != "" {
			attr := "802-1x.phase2-auth"
			if desired.AuthMethod == config_manager.AuthTTLS {
				attr = "802-1x.phase2-autheap"
			}
			args = append(args, attr, creds.Phase2Auth)
		}
	default:
		return nil, fmt.Errorf("unsupported auth method %q", desired.AuthMethod)
	}

	switch desired.IPMode {
	case config_manager.IPModeStatic:
		ipArgs, err := staticIPArgs(desired.StaticIP)
		if err != nil {
			return nil, err
		}
		args = append(args, ipArgs...)
	default:
		args = append(args, "ipv4.method", "auto")
	}
	return args, nil
}

func staticIPArgs(s *config_manager.StaticIP) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("static ip mode without static_ip")
	}
	prefix, err := utils.NetmaskToPrefixLength(s.Netmask)
	if err != nil {
		return nil, err
	}
	cidr := s.Address + "/" + strconv.Itoa(prefix)
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid static address %s: %w", cidr, err)
	}

	args := []string{"ipv4.method", "manual", "ipv4.addresses", cidr}
	if s.Gateway != "" {
		if gw := net.ParseIP(s.Gateway); gw == nil || !network.Contains(gw) {
			logger.WithFields(logrus.Fields{
				"gateway": s.Gateway,
				"network": network.String(),
			}).Warn("Gateway is outside the static network")
		}
		args = append(args, "ipv4.gateway", s.Gateway)
	}
	if len(s.DNS) > 0 {
		args = append(args, "ipv4.dns", strings.Join(s.DNS, ","))
	}
	return args, nil
}
