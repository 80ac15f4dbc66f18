// Package wlan_manager defines interfaces for dependency injection.
package wlan_manager

import (
	"context"

	"github.com/wlansensor/wlan-sensor-module-go/src/config_manager"
	"github.com/wlansensor/wlan-sensor-module-go/src/failure_ledger"
)

// InventoryInterface lists the Wi-Fi radios of the host.
type InventoryInterface interface {
	Discover(ctx context.Context) ([]RadioInterface, error)
}

// LinkInspectorInterface reads the current association of an interface.
type LinkInspectorInterface interface {
	Inspect(ctx context.Context, iface string) (*AssociationSnapshot, error)
}

// ProfileManagerInterface validates and provisions stored connection profiles.
type ProfileManagerInterface interface {
	CheckProfile(ctx context.Context, desired *config_manager.DesiredWlanConfig) (ValidationResult, error)
	Provision(ctx context.Context, desired *config_manager.DesiredWlanConfig, radios []RadioInterface) ProvisionResult
}

// ScannerInterface defines the methods for network scanning operations.
type ScannerInterface interface {
	IsVisible(ctx context.Context, ssid string, forceRescan bool) (bool, error)
	ListAccessPoints(ctx context.Context) ([]VisibleAccessPoint, error)
}

// SelectorInterface connects to the best access point of an SSID on a band.
type SelectorInterface interface {
	ConnectToBand(ctx context.Context, ssid string, band config_manager.Band) (*SelectorResult, error)
}

// LedgerInterface is the persisted failure counter.
type LedgerInterface interface {
	Load() (*failure_ledger.State, error)
	Record(ctx context.Context, code int, message string) (*failure_ledger.State, error)
	Reset() error
}

// ConnectivityCheckerInterface verifies the gateway answers after a connect.
type ConnectivityCheckerInterface interface {
	CheckGateway(ctx context.Context, gateway string) bool
}

// AddressSource reads the IP configuration of an interface.
type AddressSource interface {
	Addresses(ctx context.Context, iface string) (*IPConfig, error)
}

var (
	_ InventoryInterface           = (*Inventory)(nil)
	_ LinkInspectorInterface       = (*LinkInspector)(nil)
	_ ProfileManagerInterface      = (*ProfileManager)(nil)
	_ ScannerInterface             = (*Scanner)(nil)
	_ SelectorInterface            = (*Selector)(nil)
	_ LedgerInterface              = (*failure_ledger.Ledger)(nil)
	_ ConnectivityCheckerInterface = (*ConnectivityChecker)(nil)
)
