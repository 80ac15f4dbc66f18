// Package wlan_manager keeps the sensor's Wi-Fi station associated with its
// target network by driving iw, ip and nmcli.
package wlan_manager

import (
	"strconv"

	"github.com/wlansensor/wlan-sensor-module-go/src/commander"
	"github.com/wlansensor/wlan-sensor-module-go/src/config_manager"
)

// RadioInterface is one physical Wi-Fi adapter found at startup.
type RadioInterface struct {
	PhysicalID        string `json:"physical_id"`
	LogicalName       string `json:"logical_name"`
	PhyHandle         string `json:"phy_handle"`
	Product           string `json:"product,omitempty"`
	Vendor            string `json:"vendor,omitempty"`
	Driver            string `json:"driver,omitempty"`
	MACAddress        string `json:"mac_address,omitempty"`
	BandsSupported    int    `json:"bands_supported"`
	RegulatoryCountry string `json:"regulatory_country,omitempty"`
	DFSStatus         string `json:"dfs_status,omitempty"`
}

// IPConfig is the addressing of one interface.
type IPConfig struct {
	IPv4     string `json:"ipv4,omitempty"`
	IPv4Mask string `json:"ipv4_mask,omitempty"`
	IPv6     string `json:"ipv6,omitempty"`
	IPv6Mask string `json:"ipv6_mask,omitempty"`
	Gateway  string `json:"gateway,omitempty"`
}

// AssociationSnapshot is the live link state of an interface. Fields whose
// source line was missing stay at their zero value.
type AssociationSnapshot struct {
	Interface        string              `json:"interface"`
	Connected        bool                `json:"connected"`
	SSID             string              `json:"ssid,omitempty"`
	BSSID            string              `json:"bssid,omitempty"`
	SignalDbm        int                 `json:"signal_dbm,omitempty"`
	Channel          int                 `json:"channel,omitempty"`
	Band             config_manager.Band `json:"band,omitempty"`
	Frequency        int                 `json:"frequency,omitempty"`
	Width            int                 `json:"width,omitempty"`
	CenterFreq       int                 `json:"center_freq,omitempty"`
	TxPower          float64             `json:"tx_power,omitempty"`
	TxBitrate        float64             `json:"tx_bitrate,omitempty"`
	MCS              int                 `json:"mcs,omitempty"`
	DTIM             int                 `json:"dtim,omitempty"`
	BeaconIntervalMs int                 `json:"beacon_interval_ms,omitempty"`
	IPConfig
}

// VisibleAccessPoint is one row of the scan table.
type VisibleAccessPoint struct {
	SSID          string `json:"ssid"`
	BSSID         string `json:"bssid"`
	Mode          string `json:"mode"`
	Channel       int    `json:"channel"`
	FreqMHz       int    `json:"freq_mhz"`
	RateMbps      int    `json:"rate_mbps"`
	// SignalPercent is nmcli's signal quality on a 0-100 scale, not dBm.
	SignalPercent int    `json:"signal_percent"`
	Security      string `json:"security"`
	WPAFlags      string `json:"wpa_flags"`
	RSNFlags      string `json:"rsn_flags"`
	Device        string `json:"device"`
	Active        bool   `json:"active"`
}

// Band is derived from the leading digit of the frequency.
func (ap VisibleAccessPoint) Band() config_manager.Band {
	return bandFromFrequency(ap.FreqMHz)
}

func bandFromFrequency(freq int) config_manager.Band {
	s := strconv.Itoa(freq)
	switch s[0] {
	case '2':
		return config_manager.Band2G
	case '5':
		return config_manager.Band5G
	}
	return ""
}

// StoredProfileFacts are the compared fields of a stored nmcli profile.
// Unset values are "--".
type StoredProfileFacts struct {
	Band       string
	BSSID      string
	KeyMgmt    string
	EAP        string
	Phase2Auth string
}

// ValidationKind is the outcome class of a profile check.
type ValidationKind int

const (
	Valid ValidationKind = iota
	NotFound
	ForceRecreate
	MismatchBand
	MismatchBSSID
	MismatchAuth
	MismatchEAP
	MismatchPhase2
)

func (k ValidationKind) String() string {
	switch k {
	case Valid:
		return "Valid"
	case NotFound:
		return "NotFound"
	case ForceRecreate:
		return "ForceRecreate"
	case MismatchBand:
		return "MismatchBand"
	case MismatchBSSID:
		return "MismatchBSSID"
	case MismatchAuth:
		return "MismatchAuth"
	case MismatchEAP:
		return "MismatchEAP"
	case MismatchPhase2:
		return "MismatchPhase2"
	}
	return "Unknown"
}

// ValidationResult reports the first mismatching field, if any.
type ValidationResult struct {
	Kind    ValidationKind
	Field   string
	Stored  string
	Desired string
}

// ProvisionStatus is the outcome of writing a profile.
type ProvisionStatus int

const (
	Created ProvisionStatus = iota
	Rejected
	ToolError
)

func (s ProvisionStatus) String() string {
	switch s {
	case Created:
		return "Created"
	case Rejected:
		return "Rejected"
	case ToolError:
		return "ToolError"
	}
	return "Unknown"
}

// ProvisionResult carries the tool output when provisioning did not succeed.
type ProvisionResult struct {
	Status    ProvisionStatus
	Interface string
	Output    string
	Err       error
}

// SelectorResult describes the access point a connect attempt used.
type SelectorResult struct {
	Selected     VisibleAccessPoint
	Candidates2G int
	Candidates5G int
	Output       string
}

// Inventory discovers the Wi-Fi radios.
type Inventory struct {
	executor commander.Executor
}

// LinkInspector reads the live association of an interface.
type LinkInspector struct {
	executor  commander.Executor
	addresses AddressSource
}

// ProfileManager checks and writes nmcli connection profiles.
type ProfileManager struct {
	executor commander.Executor
}

// Scanner handles Wi-Fi network scanning.
type Scanner struct {
	executor commander.Executor
}

// Selector picks an access point for a band and connects to it.
type Selector struct {
	executor     commander.Executor
	scanner      ScannerInterface
	sortBySignal bool
}

// ConnectivityChecker pings the gateway after a connect.
type ConnectivityChecker struct {
	executor commander.Executor
}
