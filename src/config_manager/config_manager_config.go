package config_manager

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/wlansensor/wlan-sensor-module-go/src/utils"
	"gopkg.in/yaml.v3"
)

// Band is a Wi-Fi frequency band.
type Band string

const (
	BandAuto Band = "auto"
	Band2G   Band = "2G"
	Band5G   Band = "5G"
)

// Opposite returns the other band. Auto has no opposite.
func (b Band) Opposite() Band {
	switch b {
	case Band2G:
		return Band5G
	case Band5G:
		return Band2G
	}
	return b
}

// AdminStatus switches a configured WLAN on or off.
type AdminStatus string

const (
	AdminEnable  AdminStatus = "enable"
	AdminDisable AdminStatus = "disable"
)

// AuthMethod is how the station authenticates to the network.
type AuthMethod string

const (
	AuthOpen AuthMethod = "open"
	AuthPSK  AuthMethod = "psk"
	AuthPEAP AuthMethod = "8021x-peap"
	AuthTTLS AuthMethod = "8021x-ttls"
)

// IsEnterprise reports whether the method uses 802.1X.
func (a AuthMethod) IsEnterprise() bool {
	return a == AuthPEAP || a == AuthTTLS
}

// EAPMethod returns the nmcli 802-1x.eap value, or "" for non 802.1X methods.
func (a AuthMethod) EAPMethod() string {
	switch a {
	case AuthPEAP:
		return "peap"
	case AuthTTLS:
		return "ttls"
	}
	return ""
}

// IPMode selects DHCP or a static IPv4 configuration.
type IPMode string

const (
	IPModeDHCP   IPMode = "dhcp"
	IPModeStatic IPMode = "static"
)

// BandPolicy decides which band each connection cycle asks for.
type BandPolicy string

const (
	PolicyFixed2G  BandPolicy = "Fixed2G"
	PolicyFixed5G  BandPolicy = "Fixed5G"
	PolicyRotating BandPolicy = "Rotating"
	PolicyRandom   BandPolicy = "Random"
)

// Credentials for PSK and 802.1X networks.
type Credentials struct {
	PSK        string `json:"psk,omitempty" yaml:"psk,omitempty"`
	Identity   string `json:"identity,omitempty" yaml:"identity,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	Phase2Auth string `json:"phase2_auth,omitempty" yaml:"phase2_auth,omitempty"`
}

// StaticIP is the IPv4 configuration used when IPMode is static.
type StaticIP struct {
	Address string   `json:"address" yaml:"address"`
	Netmask string   `json:"netmask" yaml:"netmask"`
	Gateway string   `json:"gateway,omitempty" yaml:"gateway,omitempty"`
	DNS     []string `json:"dns,omitempty" yaml:"dns,omitempty"`
}

// DesiredWlanConfig is the network the sensor should be associated to.
type DesiredWlanConfig struct {
	SSID        string      `json:"ssid" yaml:"ssid"`
	AdminStatus AdminStatus `json:"admin_status" yaml:"admin_status"`
	Band        Band        `json:"band" yaml:"band"`
	BSSID       string      `json:"bssid" yaml:"bssid"`
	AuthMethod  AuthMethod  `json:"auth_method" yaml:"auth_method"`
	Credentials Credentials `json:"credentials" yaml:"credentials"`
	IPMode      IPMode      `json:"ip_mode" yaml:"ip_mode"`
	StaticIP    *StaticIP   `json:"static_ip,omitempty" yaml:"static_ip,omitempty"`
}

// BSSIDIsAuto reports whether any access point of the SSID may be used.
func (d *DesiredWlanConfig) BSSIDIsAuto() bool {
	return d.BSSID == "" || strings.EqualFold(d.BSSID, "auto")
}

// BandRotationState carries the band policy and its counters between runs.
// It is read and returned by the connect cycle and persisted by its caller.
type BandRotationState struct {
	Policy           BandPolicy `json:"policy" yaml:"policy"`
	LastBandUsed     Band       `json:"last_band_used,omitempty" yaml:"last_band_used,omitempty"`
	RoundsConfigured int        `json:"rounds_configured" yaml:"rounds_configured"`
	RoundsElapsed    int        `json:"rounds_elapsed" yaml:"rounds_elapsed"`
	AllowedBands     []Band     `json:"allowed_bands,omitempty" yaml:"allowed_bands,omitempty"`
}

// WlanConfig binds a desired network to its rotation state.
type WlanConfig struct {
	WlanID        int               `json:"wlan_id" yaml:"wlan_id"`
	Configuration DesiredWlanConfig `json:"configuration" yaml:"configuration"`
	BandRotation  BandRotationState `json:"band_rotation" yaml:"band_rotation"`
}

// SensorInfo identifies the sensor in logs and in the failure history.
type SensorInfo struct {
	Name     string `json:"name" yaml:"name"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}

// ToolsConfig controls how the external tools are run.
type ToolsConfig struct {
	UseSudo               bool   `json:"use_sudo" yaml:"use_sudo"`
	CommandTimeoutSeconds int    `json:"command_timeout_seconds" yaml:"command_timeout_seconds"`
	AddressSource         string `json:"address_source" yaml:"address_source"` // "netlink" or "ip"
}

// FailureHistoryConfig enables the SQLite archive of connectivity failures.
type FailureHistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

// SelectorConfig tunes access point selection.
type SelectorConfig struct {
	SortBySignal bool `json:"sort_by_signal" yaml:"sort_by_signal"`
	ForceRescan  bool `json:"force_rescan" yaml:"force_rescan"`
}

// Config is the sensor configuration file.
type Config struct {
	ConfigVersion  string               `json:"config_version" yaml:"config_version"`
	LogLevel       string               `json:"log_level" yaml:"log_level"`
	Sensor         SensorInfo           `json:"sensor" yaml:"sensor"`
	Tools          ToolsConfig          `json:"tools" yaml:"tools"`
	FailuresFile   string               `json:"failures_file" yaml:"failures_file"`
	FailureHistory FailureHistoryConfig `json:"failure_history" yaml:"failure_history"`
	Selector       SelectorConfig       `json:"selector" yaml:"selector"`
	Wlans          []WlanConfig         `json:"wlans" yaml:"wlans"`
}

// FindWlan returns the WLAN entry with the given id.
func (c *Config) FindWlan(id int) (*WlanConfig, error) {
	for i := range c.Wlans {
		if c.Wlans[i].WlanID == id {
			return &c.Wlans[i], nil
		}
	}
	return nil, fmt.Errorf("wlan %d not configured", id)
}

const (
	defaultFailuresFile = "/var/lib/wlan-sensor/connectivity_failures.json"
	defaultHistoryDSN   = "file:/var/lib/wlan-sensor/failures.db?_pragma=busy_timeout(5000)"
	defaultRounds       = 3
)

// NewDefaultConfig creates a Config with default values.
func NewDefaultConfig() *Config {
	cfg := &Config{
		ConfigVersion: CurrentConfigVersion,
		LogLevel:      "info",
		Sensor:        SensorInfo{Name: "wlan-sensor"},
		Tools: ToolsConfig{
			UseSudo:               false,
			CommandTimeoutSeconds: 30,
			AddressSource:         "netlink",
		},
		FailuresFile: defaultFailuresFile,
		FailureHistory: FailureHistoryConfig{
			Enabled: false,
			DSN:     defaultHistoryDSN,
		},
		Selector: SelectorConfig{ForceRescan: true},
		Wlans: []WlanConfig{
			{
				WlanID: 1,
				Configuration: DesiredWlanConfig{
					SSID:        "sensor-net",
					AdminStatus: AdminEnable,
					Band:        BandAuto,
					BSSID:       "auto",
					AuthMethod:  AuthPSK,
					Credentials: Credentials{PSK: "change-me-please"},
					IPMode:      IPModeDHCP,
				},
			},
		},
	}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills every optional field left empty in cfg.
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Tools.CommandTimeoutSeconds <= 0 {
		cfg.Tools.CommandTimeoutSeconds = 30
	}
	if cfg.Tools.AddressSource == "" {
		cfg.Tools.AddressSource = "netlink"
	}
	if cfg.FailuresFile == "" {
		cfg.FailuresFile = defaultFailuresFile
	}
	if cfg.FailureHistory.DSN == "" {
		cfg.FailureHistory.DSN = defaultHistoryDSN
	}
	for i := range cfg.Wlans {
		d := &cfg.Wlans[i].Configuration
		if d.AdminStatus == "" {
			d.AdminStatus = AdminEnable
		}
		if d.Band == "" {
			d.Band = BandAuto
		}
		if d.BSSID == "" {
			d.BSSID = "auto"
		}
		if d.IPMode == "" {
			d.IPMode = IPModeDHCP
		}

		r := &cfg.Wlans[i].BandRotation
		if r.Policy == "" {
			switch d.Band {
			case Band2G:
				r.Policy = PolicyFixed2G
			case Band5G:
				r.Policy = PolicyFixed5G
			default:
				r.Policy = PolicyRotating
			}
		}
		if r.RoundsConfigured <= 0 {
			r.RoundsConfigured = defaultRounds
		}
		if len(r.AllowedBands) == 0 {
			r.AllowedBands = []Band{Band2G, Band5G}
		}
	}
}

// Validate rejects configurations the connection manager cannot act on.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	switch cfg.Tools.AddressSource {
	case "netlink", "ip":
	default:
		return fmt.Errorf("tools.address_source must be netlink or ip, got %q", cfg.Tools.AddressSource)
	}
	seen := make(map[int]bool)
	for _, w := range cfg.Wlans {
		if seen[w.WlanID] {
			return fmt.Errorf("duplicate wlan_id %d", w.WlanID)
		}
		seen[w.WlanID] = true
		if err := validateWlan(&w); err != nil {
			return fmt.Errorf("wlan %d: %w", w.WlanID, err)
		}
	}
	return nil
}

func validateWlan(w *WlanConfig) error {
	d := w.Configuration
	if strings.TrimSpace(d.SSID) == "" {
		return errors.New("ssid is required")
	}
	switch d.AdminStatus {
	case AdminEnable, AdminDisable:
	default:
		return fmt.Errorf("unknown admin_status %q", d.AdminStatus)
	}
	switch d.Band {
	case BandAuto, Band2G, Band5G:
	default:
		return fmt.Errorf("unknown band %q", d.Band)
	}
	if !d.BSSIDIsAuto() && !utils.ValidateMACAddress(d.BSSID) {
		return fmt.Errorf("bssid %q is neither auto nor a MAC address", d.BSSID)
	}
	switch d.AuthMethod {
	case AuthOpen:
	case AuthPSK:
		if n := len(d.Credentials.PSK); n < 8 || n > 63 {
			return errors.New("psk must be 8 to 63 characters")
		}
	case AuthPEAP, AuthTTLS:
		if d.Credentials.Identity == "" || d.Credentials.Password == "" {
			return errors.New("802.1X requires identity and password")
		}
	default:
		return fmt.Errorf("unknown auth_method %q", d.AuthMethod)
	}
	switch d.IPMode {
	case IPModeDHCP:
	case IPModeStatic:
		if d.StaticIP == nil {
			return errors.New("static ip_mode requires static_ip")
		}
		if net.ParseIP(d.StaticIP.Address).To4() == nil {
			return fmt.Errorf("static_ip.address %q is not an IPv4 address", d.StaticIP.Address)
		}
		if _, err := utils.NetmaskToPrefixLength(d.StaticIP.Netmask); err != nil {
			return err
		}
		if d.StaticIP.Gateway != "" && net.ParseIP(d.StaticIP.Gateway) == nil {
			return fmt.Errorf("static_ip.gateway %q is not an IP address", d.StaticIP.Gateway)
		}
	default:
		return fmt.Errorf("unknown ip_mode %q", d.IPMode)
	}

	r := w.BandRotation
	switch r.Policy {
	case PolicyFixed2G, PolicyFixed5G, PolicyRotating, PolicyRandom:
	default:
		return fmt.Errorf("unknown band policy %q", r.Policy)
	}
	for _, b := range r.AllowedBands {
		if b != Band2G && b != Band5G {
			return fmt.Errorf("allowed band %q must be 2G or 5G", b)
		}
	}
	// A profile locked to one band can only ever connect on that band.
	if d.Band == Band2G && r.Policy != PolicyFixed2G || d.Band == Band5G && r.Policy != PolicyFixed5G {
		return fmt.Errorf("band %s conflicts with band policy %s", d.Band, r.Policy)
	}
	return nil
}

// decodeConfig parses JSON or YAML content into a Config seeded with zero values.
func decodeConfig(content []byte) (*Config, error) {
	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var cfg Config
	var err error
	if looksLikeJSON(trimmed) {
		err = json.Unmarshal([]byte(trimmed), &cfg)
	} else {
		err = yaml.Unmarshal([]byte(trimmed), &cfg)
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}
