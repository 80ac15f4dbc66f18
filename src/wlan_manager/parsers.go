package wlan_manager

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/wlansensor/wlan-sensor-module-go/src/config_manager"
)

// Parser turns the raw output of one tool into a typed value. Each parser owns
// the line rules for one tool, so output drift in a tool version stays local.
type Parser[T any] interface {
	Parse(raw []byte) (T, error)
}

// prefixRule applies rest (the line with prefix removed, trimmed) to out when a
// trimmed line starts with prefix. The first matching rule wins.
type prefixRule[T any] struct {
	prefix string
	apply  func(rest string, out *T)
}

func applyRules[T any](raw []byte, rules []prefixRule[T], out *T) {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		for _, rule := range rules {
			if strings.HasPrefix(line, rule.prefix) {
				rule.apply(strings.TrimSpace(strings.TrimPrefix(line, rule.prefix)), out)
				break
			}
		}
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

// leadingInt parses the number at the start of s ("5180 MHz" -> 5180,
// "5180.0" -> 5180).
func leadingInt(s string) int {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	return int(atof(fields[0]))
}

// LshwParser extracts the wireless adapters from `lshw -C network`.
type LshwParser struct{}

func (LshwParser) Parse(raw []byte) ([]RadioInterface, error) {
	blocks := strings.Split(string(raw), "*-network")
	var radios []RadioInterface
	for _, block := range blocks[1:] {
		if !strings.Contains(block, "Wireless") {
			continue
		}
		fields := make(map[string]string)
		for _, line := range strings.Split(block, "\n") {
			key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
			if !ok {
				continue
			}
			fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
		physicalID, ok := fields["physical id"]
		if !ok || physicalID == "" {
			return nil, parseError("inventory", "wireless adapter %q has no physical id", fields["logical name"])
		}
		radios = append(radios, RadioInterface{
			PhysicalID:  physicalID,
			LogicalName: fields["logical name"],
			PhyHandle:   "phy" + physicalID,
			Product:     fields["product"],
			Vendor:      fields["vendor"],
			Driver:      driverFromConfiguration(fields["configuration"]),
			MACAddress:  strings.ToUpper(fields["serial"]),
		})
	}
	if len(radios) == 0 {
		return nil, parseError("inventory", "no wireless adapter in hardware listing")
	}
	return radios, nil
}

func driverFromConfiguration(cfg string) string {
	for _, kv := range strings.Fields(cfg) {
		if v, ok := strings.CutPrefix(kv, "driver="); ok {
			return v
		}
	}
	return ""
}

var bandHeader = regexp.MustCompile(`^Band \d+:`)

// PhyBandsParser counts the "Band N:" sections of `iw phy <phy> info`.
type PhyBandsParser struct{}

func (PhyBandsParser) Parse(raw []byte) (int, error) {
	count := 0
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		if bandHeader.MatchString(strings.TrimSpace(scanner.Text())) {
			count++
		}
	}
	return count, nil
}

// RegDomain is the regulatory country of a radio.
type RegDomain struct {
	Country string
	DFS     string
}

// RegDomainParser reads the `country XX: DFS-...` line of the phy#N section of
// `iw reg get`, falling back to the global section.
type RegDomainParser struct {
	PhysicalID string
}

func (p RegDomainParser) Parse(raw []byte) (RegDomain, error) {
	var global, phy RegDomain
	section := "global"
	want := "phy#" + p.PhysicalID
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "global":
			section = "global"
		case strings.HasPrefix(line, "phy#"):
			section = strings.Fields(line)[0]
		case strings.HasPrefix(line, "country "):
			fields := strings.Fields(line)
			rd := RegDomain{Country: strings.TrimSuffix(fields[1], ":")}
			if len(fields) > 2 {
				rd.DFS = fields[2]
			}
			if section == want && phy.Country == "" {
				phy = rd
			} else if section == "global" && global.Country == "" {
				global = rd
			}
		}
	}
	if phy.Country != "" {
		return phy, nil
	}
	if global.Country == "" {
		return RegDomain{}, parseError("inventory", "no country line in regulatory listing")
	}
	return global, nil
}

// NotConnectedSentinel is the head of `iw dev <if> link` without an association.
const NotConnectedSentinel = "Not connected."

var linkRules = []prefixRule[AssociationSnapshot]{
	{"Connected to", func(rest string, s *AssociationSnapshot) {
		if f := strings.Fields(rest); len(f) > 0 {
			s.BSSID = strings.ToUpper(f[0])
		}
	}},
	{"SSID:", func(rest string, s *AssociationSnapshot) { s.SSID = rest }},
	{"freq:", func(rest string, s *AssociationSnapshot) {
		if s.Frequency == 0 {
			s.Frequency = leadingInt(rest)
			s.Band = bandFromFrequency(s.Frequency)
		}
	}},
	{"signal:", func(rest string, s *AssociationSnapshot) { s.SignalDbm = leadingInt(rest) }},
	{"tx bitrate:", func(rest string, s *AssociationSnapshot) {
		f := strings.Fields(rest)
		if len(f) > 0 {
			s.TxBitrate = atof(f[0])
		}
		for i := 0; i+1 < len(f); i++ {
			if strings.HasSuffix(f[i], "MCS") {
				s.MCS = atoi(f[i+1])
				break
			}
		}
	}},
	{"dtim period:", func(rest string, s *AssociationSnapshot) { s.DTIM = atoi(rest) }},
	{"beacon int:", func(rest string, s *AssociationSnapshot) { s.BeaconIntervalMs = atoi(rest) }},
}

// LinkParser parses `iw dev <if> link`.
type LinkParser struct{}

func (LinkParser) Parse(raw []byte) (AssociationSnapshot, error) {
	var snap AssociationSnapshot
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return snap, parseError("inspect", "empty link status output")
	}
	if strings.HasPrefix(text, NotConnectedSentinel) {
		return snap, nil
	}
	snap.Connected = true
	applyRules(raw, linkRules, &snap)
	return snap, nil
}

// DevInfo is the channel section of `iw dev <if> info`.
type DevInfo struct {
	Channel    int
	Frequency  int
	Width      int
	CenterFreq int
	Band       config_manager.Band
	TxPower    float64
}

var devInfoRules = []prefixRule[DevInfo]{
	// channel 36 (5180 MHz), width: 80 MHz, center1: 5210 MHz
	{"channel", func(rest string, d *DevInfo) {
		f := strings.Fields("channel " + rest)
		if len(f) > 1 {
			d.Channel = atoi(f[1])
		}
		if len(f) > 2 {
			d.Frequency = atoi(strings.TrimPrefix(f[2], "("))
			d.Band = bandFromFrequency(d.Frequency)
		}
		if len(f) > 5 {
			d.Width = atoi(f[5])
		}
		if len(f) > 8 {
			d.CenterFreq = atoi(f[8])
		}
	}},
	{"txpower", func(rest string, d *DevInfo) {
		if f := strings.Fields(rest); len(f) > 0 {
			d.TxPower = atof(f[0])
		}
	}},
}

// DevInfoParser parses `iw dev <if> info`.
type DevInfoParser struct{}

func (DevInfoParser) Parse(raw []byte) (DevInfo, error) {
	var info DevInfo
	applyRules(raw, devInfoRules, &info)
	return info, nil
}

var ipAddrRules = []prefixRule[IPConfig]{
	{"inet6 ", func(rest string, c *IPConfig) {
		if c.IPv6 == "" {
			c.IPv6, c.IPv6Mask = splitCIDR(strings.Fields(rest)[0])
		}
	}},
	{"inet ", func(rest string, c *IPConfig) {
		if c.IPv4 == "" {
			c.IPv4, c.IPv4Mask = splitCIDR(strings.Fields(rest)[0])
		}
	}},
}

func splitCIDR(cidr string) (string, string) {
	addr, mask, _ := strings.Cut(cidr, "/")
	return addr, mask
}

// IPAddrParser parses `ip a show <if>`.
type IPAddrParser struct{}

func (IPAddrParser) Parse(raw []byte) (IPConfig, error) {
	var cfg IPConfig
	applyRules(raw, ipAddrRules, &cfg)
	return cfg, nil
}

// IPRouteParser returns the default gateway from `ip route list`, preferring a
// default route through Interface.
type IPRouteParser struct {
	Interface string
}

func (p IPRouteParser) Parse(raw []byte) (string, error) {
	var fallback string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		f := strings.Fields(scanner.Text())
		if len(f) < 3 || f[0] != "default" || f[1] != "via" {
			continue
		}
		for i := 3; i+1 < len(f); i++ {
			if f[i] == "dev" && f[i+1] == p.Interface {
				return f[2], nil
			}
		}
		if fallback == "" {
			fallback = f[2]
		}
	}
	return fallback, nil
}

// unsetValue is what nmcli prints for an empty profile property.
const unsetValue = "--"

var profileFactRules = []prefixRule[StoredProfileFacts]{
	{"802-11-wireless.band:", func(rest string, f *StoredProfileFacts) { f.Band = rest }},
	{"802-11-wireless.bssid:", func(rest string, f *StoredProfileFacts) { f.BSSID = strings.ToUpper(rest) }},
	{"802-11-wireless-security.key-mgmt:", func(rest string, f *StoredProfileFacts) { f.KeyMgmt = rest }},
	{"802-1x.eap:", func(rest string, f *StoredProfileFacts) { f.EAP = strings.TrimSuffix(rest, ";") }},
	{"802-1x.phase2-autheap:", func(rest string, f *StoredProfileFacts) {
		if f.EAP == "ttls" {
			f.Phase2Auth = rest
		}
	}},
	{"802-1x.phase2-auth:", func(rest string, f *StoredProfileFacts) {
		if f.EAP != "ttls" {
			f.Phase2Auth = rest
		}
	}},
}

// ProfileFactsParser parses `nmcli -f <fields> connection show <name>`.
// Properties nmcli leaves out are reported as "--".
type ProfileFactsParser struct{}

func (ProfileFactsParser) Parse(raw []byte) (StoredProfileFacts, error) {
	var facts StoredProfileFacts
	applyRules(raw, profileFactRules, &facts)
	for _, v := range []*string{&facts.Band, &facts.BSSID, &facts.KeyMgmt, &facts.EAP, &facts.Phase2Auth} {
		if *v == "" {
			*v = unsetValue
		}
	}
	return facts, nil
}

// ConnectionNamesParser parses `nmcli -t -f NAME connection show`.
type ConnectionNamesParser struct{}

func (ConnectionNamesParser) Parse(raw []byte) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		names = append(names, unescapeTerse(line))
	}
	return names, nil
}

// splitTerse splits a line of nmcli terse output on unescaped colons and
// removes the backslash escapes.
func splitTerse(line string) []string {
	var fields []string
	var cur strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line):
			i++
			cur.WriteByte(line[i])
		case c == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(fields, cur.String())
}

func unescapeTerse(s string) string {
	return strings.Join(splitTerse(s), ":")
}

// VisibilityRow is one row of `nmcli -t -f SIGNAL,SSID,BSSID,CHAN,IN-USE dev wifi list`.
// SignalPercent is on nmcli's 0-100 scale.
type VisibilityRow struct {
	SignalPercent int
	SSID          string
	BSSID         string
	Channel       int
	InUse         bool
}

// VisibilityParser parses the visibility table.
type VisibilityParser struct{}

func (VisibilityParser) Parse(raw []byte) ([]VisibilityRow, error) {
	var rows []VisibilityRow
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		f := splitTerse(scanner.Text())
		if len(f) < 5 {
			return nil, parseError("scan", "visibility row has %d fields, want 5", len(f))
		}
		rows = append(rows, VisibilityRow{
			SignalPercent: atoi(f[0]),
			SSID:          f[1],
			BSSID:         strings.ToUpper(f[2]),
			Channel:       atoi(f[3]),
			InUse:         strings.TrimSpace(f[4]) == "*",
		})
	}
	return rows, nil
}

// AccessPointFields is the -g field list AccessPointListParser expects.
const AccessPointFields = "SSID,BSSID,MODE,CHAN,FREQ,RATE,SIGNAL,SECURITY,WPA-FLAGS,RSN-FLAGS,DEVICE,ACTIVE"

// AccessPointListParser parses `nmcli -g <AccessPointFields> dev wifi list`,
// keeping the tool's row order.
type AccessPointListParser struct{}

func (AccessPointListParser) Parse(raw []byte) ([]VisibleAccessPoint, error) {
	var aps []VisibleAccessPoint
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		f := splitTerse(scanner.Text())
		if len(f) < 12 {
			return nil, parseError("select", "access point row has %d fields, want 12", len(f))
		}
		aps = append(aps, VisibleAccessPoint{
			SSID:          f[0],
			BSSID:         strings.ToUpper(f[1]),
			Mode:          f[2],
			Channel:       atoi(f[3]),
			FreqMHz:       leadingInt(f[4]),
			RateMbps:      leadingInt(f[5]),
			SignalPercent: atoi(f[6]),
			Security:      f[7],
			WPAFlags:      f[8],
			RSNFlags:      f[9],
			Device:        f[10],
			Active:        f[11] == "yes",
		})
	}
	return aps, nil
}

var (
	_ Parser[[]RadioInterface]     = LshwParser{}
	_ Parser[int]                  = PhyBandsParser{}
	_ Parser[RegDomain]            = RegDomainParser{}
	_ Parser[AssociationSnapshot]  = LinkParser{}
	_ Parser[DevInfo]              = DevInfoParser{}
	_ Parser[IPConfig]             = IPAddrParser{}
	_ Parser[string]               = IPRouteParser{}
	_ Parser[StoredProfileFacts]   = ProfileFactsParser{}
	_ Parser[[]string]             = ConnectionNamesParser{}
	_ Parser[[]VisibilityRow]      = VisibilityParser{}
	_ Parser[[]VisibleAccessPoint] = AccessPointListParser{}
)
