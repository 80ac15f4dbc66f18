package wlan_manager

import (
	"context"
	"errors"
	"strings"

	"github.com/stretchr/testify/mock"
	"github.com/wlansensor/wlan-sensor-module-go/src/commander"
)

const lshwOutput = `  *-network
       description: Ethernet interface
       product: RTL8111/8168/8411 PCI Express Gigabit Ethernet Controller
       vendor: Realtek Semiconductor Co., Ltd.
       physical id: 0
       logical name: eth0
       serial: 00:11:22:33:44:55
       capabilities: pm msi pciexpress ethernet physical
       configuration: autonegotiation=on broadcast=yes driver=r8169
  *-network
       description: Wireless interface
       product: Wi-Fi 6 AX200
       vendor: Intel Corporation
       physical id: 1
       bus info: pci@0000:03:00.0
       logical name: wlp3s0
       serial: a0:b1:c2:d3:e4:f5
       capabilities: pm msi pciexpress bus_master cap_list ethernet physical wireless
       configuration: broadcast=yes driver=iwlwifi driverversion=6.1.0 firmware=59.601f3a66.0 multicast=yes wireless=IEEE 802.11
`

const iwPhyDualBand = `Wiphy phy1
	max # scan SSIDs: 20
	Available Antennas: TX 0x3 RX 0x3
	Band 1:
		Capabilities: 0x1ff
		Frequencies:
			* 2412 MHz [1] (22.0 dBm)
	Band 2:
		Capabilities: 0x1ff
		Frequencies:
			* 5180 MHz [36] (22.0 dBm)
`

const iwRegOutput = `global
country DE: DFS-ETSI
	(2400 - 2483 @ 40), (N/A, 20), (N/A)
	(5150 - 5250 @ 80), (N/A, 23), (N/A), NO-OUTDOOR, AUTO-BW

phy#1 (self-managed)
country US: DFS-FCC
	(2402 - 2472 @ 40), (6, 22), (N/A)
`

const iwLinkConnected = `Connected to a0:b1:c2:d3:e4:01 (on wlp3s0)
	SSID: Temp
	freq: 5180
	RX: 1532 bytes (12 packets)
	TX: 1022 bytes (9 packets)
	signal: -40 dBm
	rx bitrate: 866.7 MBit/s VHT-MCS 9 80MHz short GI VHT-NSS 2
	tx bitrate: 433.3 MBit/s VHT-MCS 8 80MHz short GI VHT-NSS 1

	bss flags:	short-slot-time
	dtim period:	1
	beacon int:	100
`

const iwDevInfo = `Interface wlp3s0
	ifindex 3
	wdev 0x1
	addr a0:b1:c2:d3:e4:f5
	ssid Temp
	type managed
	wiphy 1
	channel 36 (5180 MHz), width: 80 MHz, center1: 5210 MHz
	txpower 22.00 dBm
`

const ipAddrOutput = `3: wlp3s0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 qdisc noqueue state UP group default qlen 1000
    link/ether a0:b1:c2:d3:e4:f5 brd ff:ff:ff:ff:ff:ff
    inet 192.168.10.20/24 brd 192.168.10.255 scope global dynamic noprefixroute wlp3s0
       valid_lft 86000sec preferred_lft 86000sec
    inet6 fe80::a2b1:c2ff:fed3:e4f5/64 scope link noprefixroute
       valid_lft forever preferred_lft forever
`

const ipRouteOutput = `default via 10.0.0.1 dev eth0 proto dhcp metric 100
default via 192.168.10.1 dev wlp3s0 proto dhcp metric 600
192.168.10.0/24 dev wlp3s0 proto kernel scope link src 192.168.10.20 metric 600
`

// tempAccessPoints is the "Temp" scan: A and B on 5G, C on 2G, plus a
// neighbour network.
const tempAccessPoints = `Temp:A0\:B1\:C2\:D3\:E4\:0A:Infra:36:5180 MHz:540 Mbit/s:80:WPA2:(none):pair_ccmp group_ccmp psk:wlp3s0:no
Other:11\:22\:33\:44\:55\:66:Infra:1:2412 MHz:130 Mbit/s:90:WPA2:(none):pair_ccmp group_ccmp psk:wlp3s0:no
Temp:A0\:B1\:C2\:D3\:E4\:0B:Infra:44:5220 MHz:540 Mbit/s:45:WPA2:(none):pair_ccmp group_ccmp psk:wlp3s0:no
Temp:A0\:B1\:C2\:D3\:E4\:0C:Infra:6:2437 MHz:130 Mbit/s:62:WPA2:(none):pair_ccmp group_ccmp psk:wlp3s0:no
`

const (
	bssidA = "A0:B1:C2:D3:E4:0A"
	bssidB = "A0:B1:C2:D3:E4:0B"
	bssidC = "A0:B1:C2:D3:E4:0C"
)

// MockExecutor is a mock implementation of commander.Executor keyed by the
// full command line.
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, name string, args ...string) (*commander.Result, error) {
	ret := m.Called(commandLine(name, args...))
	res, _ := ret.Get(0).(*commander.Result)
	return res, ret.Error(1)
}

func commandLine(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

// onCommand registers a finished command.
func (m *MockExecutor) onCommand(cmd string, exitCode int, stdout string) *mock.Call {
	return m.On("Execute", cmd).Return(&commander.Result{Command: cmd, ExitCode: exitCode, Stdout: []byte(stdout)}, nil)
}

// onLaunchError registers a command whose binary cannot be started.
func (m *MockExecutor) onLaunchError(cmd string) *mock.Call {
	return m.On("Execute", cmd).Return(nil, &commander.LaunchError{Command: cmd, Cause: errExecNotFound})
}

var errExecNotFound = errors.New("executable file not found in $PATH")
