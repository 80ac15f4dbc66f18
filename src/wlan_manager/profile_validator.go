package wlan_manager

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wlansensor/wlan-sensor-module-go/src/commander"
	"github.com/wlansensor/wlan-sensor-module-go/src/config_manager"
	"github.com/wlansensor/wlan-sensor-module-go/src/utils"
)

// profileFields are the nmcli properties compared against the desired config.
const profileFields = "802-11-wireless.band,802-11-wireless.bssid,802-11-wireless-security.key-mgmt,802-1x.eap,802-1x.phase2-auth,802-1x.phase2-autheap"

// NewProfileManager creates a ProfileManager that runs nmcli through executor.
func NewProfileManager(executor commander.Executor) *ProfileManager {
	return &ProfileManager{executor: executor}
}

// CheckProfile classifies the stored profile named after desired.SSID. Only the
// first mismatch is reported, in the order band, bssid, auth, eap, phase 2.
func (pm *ProfileManager) CheckProfile(ctx context.Context, desired *config_manager.DesiredWlanConfig) (ValidationResult, error) {
	exists, err := pm.profileExists(ctx, desired.SSID)
	if err != nil {
		return ValidationResult{}, err
	}
	if !exists {
		logger.WithField("ssid", desired.SSID).Info("No stored profile for SSID")
		return ValidationResult{Kind: NotFound}, nil
	}
	if desired.AuthMethod == config_manager.AuthOpen {
		// Open networks are always reprovisioned.
		return ValidationResult{Kind: ForceRecreate}, nil
	}

	res, err := runOK(ctx, pm.executor, "validate", "nmcli", "-f", profileFields, "connection", "show", desired.SSID)
	if err != nil {
		return ValidationResult{}, err
	}
	stored, err := ProfileFactsParser{}.Parse(res.Stdout)
	if err != nil {
		return ValidationResult{}, err
	}

	result := compareProfile(stored, desiredFacts(desired))
	logger.WithFields(logrus.Fields{
		"ssid":    desired.SSID,
		"result":  result.Kind.String(),
		"field":   result.Field,
		"stored":  result.Stored,
		"desired": result.Desired,
	}).Info("Checked stored profile")
	return result, nil
}

func (pm *ProfileManager) profileExists(ctx context.Context, name string) (bool, error) {
	res, err := runOK(ctx, pm.executor, "validate", "nmcli", "-t", "-f", "NAME", "connection", "show")
	if err != nil {
		return false, err
	}
	names, err := ConnectionNamesParser{}.Parse(res.Stdout)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// desiredFacts renders desired in the form nmcli prints the stored profile.
func desiredFacts(desired *config_manager.DesiredWlanConfig) StoredProfileFacts {
	facts := StoredProfileFacts{
		Band:       nmcliBand(desired.Band),
		BSSID:      unsetValue,
		KeyMgmt:    keyMgmt(desired.AuthMethod),
		EAP:        unsetValue,
		Phase2Auth: unsetValue,
	}
	if !desired.BSSIDIsAuto() {
		facts.BSSID = strings.ToUpper(desired.BSSID)
		if mac, err := utils.NormalizeMACAddress(desired.BSSID); err == nil {
			facts.BSSID = mac
		}
	}
	if eap := desired.AuthMethod.EAPMethod(); eap != "" {
		facts.EAP = eap
		if desired.Credentials.Phase2Auth != "" {
			facts.Phase2Auth = desired.Credentials.Phase2Auth
		}
	}
	return facts
}

func nmcliBand(b config_manager.Band) string {
	switch b {
	case config_manager.Band2G:
		return "bg"
	case config_manager.Band5G:
		return "a"
	}
	return unsetValue
}

func keyMgmt(a config_manager.AuthMethod) string {
	switch a {
	case config_manager.AuthPSK:
		return "wpa-psk"
	case config_manager.AuthPEAP, config_manager.AuthTTLS:
		return "wpa-eap"
	}
	return "none"
}

func compareProfile(stored, desired StoredProfileFacts) ValidationResult {
	checks := []struct {
		kind            ValidationKind
		field           string
		stored, desired string
	}{
		{MismatchBand, "band", stored.Band, desired.Band},
		{MismatchBSSID, "bssid", stored.BSSID, desired.BSSID},
		{MismatchAuth, "key-mgmt", stored.KeyMgmt, desired.KeyMgmt},
		{MismatchEAP, "eap", stored.EAP, desired.EAP},
		{MismatchPhase2, "phase2-auth", stored.Phase2Auth, desired.Phase2Auth},
	}
	for _, c := range checks {
		if !strings.EqualFold(c.stored, c.desired) {
			return ValidationResult{Kind: c.kind, Field: c.field, Stored: c.stored, Desired: c.desired}
		}
	}
	return ValidationResult{Kind: Valid}
}
