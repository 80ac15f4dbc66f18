package utils

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

var (
	colonMACPattern  = regexp.MustCompile(`^([0-9A-F]{2}[:]){5}([0-9A-F]{2})$`)
	hyphenMACPattern = regexp.MustCompile(`^([0-9A-F]{2}[-]){5}([0-9A-F]{2})$`)
	plainMACPattern  = regexp.MustCompile(`^[0-9A-F]{12}$`)
	hexLetterPattern = regexp.MustCompile(`[A-F]`)
)

// ValidateMACAddress checks if a string is a valid MAC address format.
// Supports formats: XX:XX:XX:XX:XX:XX, XX-XX-XX-XX-XX-XX, XXXXXXXXXXXX
func ValidateMACAddress(mac string) bool {
	mac = strings.ToUpper(strings.TrimSpace(mac))
	if mac == "" {
		return false
	}
	if colonMACPattern.MatchString(mac) || hyphenMACPattern.MatchString(mac) {
		return true
	}
	// A bare 12 digit string needs at least one hex letter to be told apart
	// from a numeric identifier.
	return plainMACPattern.MatchString(mac) && hexLetterPattern.MatchString(mac)
}

// NormalizeMACAddress returns mac in the upper-case colon form nmcli prints
// (XX:XX:XX:XX:XX:XX).
func NormalizeMACAddress(mac string) (string, error) {
	if !ValidateMACAddress(mac) {
		return "", fmt.Errorf("invalid MAC address %q", mac)
	}
	hex := strings.NewReplacer(":", "", "-", "").Replace(strings.ToUpper(strings.TrimSpace(mac)))
	parts := make([]string, 0, 6)
	for i := 0; i < len(hex); i += 2 {
		parts = append(parts, hex[i:i+2])
	}
	return strings.Join(parts, ":"), nil
}

// NetmaskToPrefixLength converts a dotted IPv4 netmask (255.255.255.0) to its
// prefix length (24).
func NetmaskToPrefixLength(mask string) (int, error) {
	ip := net.ParseIP(strings.TrimSpace(mask)).To4()
	if ip == nil {
		return 0, fmt.Errorf("invalid IPv4 netmask %q", mask)
	}
	ones, bits := net.IPMask(ip).Size()
	if bits == 0 {
		return 0, fmt.Errorf("non-contiguous IPv4 netmask %q", mask)
	}
	return ones, nil
}
