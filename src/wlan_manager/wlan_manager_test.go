package wlan_manager

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wlansensor/wlan-sensor-module-go/src/config_manager"
	"github.com/wlansensor/wlan-sensor-module-go/src/failure_ledger"
)

// MockInventory is a mock implementation of InventoryInterface.
type MockInventory struct {
	mock.Mock
}

func (m *MockInventory) Discover(ctx context.Context) ([]RadioInterface, error) {
	args := m.Called()
	radios, _ := args.Get(0).([]RadioInterface)
	return radios, args.Error(1)
}

// MockLinkInspector is a mock implementation of LinkInspectorInterface.
type MockLinkInspector struct {
	mock.Mock
}

func (m *MockLinkInspector) Inspect(ctx context.Context, iface string) (*AssociationSnapshot, error) {
	args := m.Called(iface)
	snap, _ := args.Get(0).(*AssociationSnapshot)
	return snap, args.Error(1)
}

// MockProfileManager is a mock implementation of ProfileManagerInterface.
type MockProfileManager struct {
	mock.Mock
	checked *config_manager.DesiredWlanConfig
}

func (m *MockProfileManager) CheckProfile(ctx context.Context, desired *config_manager.DesiredWlanConfig) (ValidationResult, error) {
	m.checked = desired
	args := m.Called(desired.SSID)
	return args.Get(0).(ValidationResult), args.Error(1)
}

func (m *MockProfileManager) Provision(ctx context.Context, desired *config_manager.DesiredWlanConfig, radios []RadioInterface) ProvisionResult {
	args := m.Called(desired.SSID)
	return args.Get(0).(ProvisionResult)
}

// MockSelector is a mock implementation of SelectorInterface.
type MockSelector struct {
	mock.Mock
}

func (m *MockSelector) ConnectToBand(ctx context.Context, ssid string, band config_manager.Band) (*SelectorResult, error) {
	args := m.Called(ssid, band)
	res, _ := args.Get(0).(*SelectorResult)
	return res, args.Error(1)
}

// MockChecker is a mock implementation of ConnectivityCheckerInterface.
type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) CheckGateway(ctx context.Context, gateway string) bool {
	return m.Called(gateway).Bool(0)
}

type managerFixture struct {
	manager   *Manager
	inventory *MockInventory
	inspector *MockLinkInspector
	profiles  *MockProfileManager
	scanner   *MockScanner
	selector  *MockSelector
	checker   *MockChecker
	ledger    *failure_ledger.Ledger
}

func newManagerFixture(t *testing.T) *managerFixture {
	f := &managerFixture{
		inventory: new(MockInventory),
		inspector: new(MockLinkInspector),
		profiles:  new(MockProfileManager),
		scanner:   new(MockScanner),
		selector:  new(MockSelector),
		checker:   new(MockChecker),
		ledger:    failure_ledger.NewLedger(filepath.Join(t.TempDir(), "failures.json"), nil),
	}
	f.manager = &Manager{
		inventory: f.inventory,
		inspector: f.inspector,
		profiles:  f.profiles,
		scanner:   f.scanner,
		selector:  f.selector,
		ledger:    f.ledger,
		checker:   f.checker,
		rnd:       rand.New(rand.NewSource(1)),
	}
	f.inventory.On("Discover").Return([]RadioInterface{{PhysicalID: "1", LogicalName: "wlp3s0", PhyHandle: "phy1", BandsSupported: 2}}, nil)
	return f
}

func tempWlan(policy config_manager.BandPolicy) *config_manager.WlanConfig {
	return &config_manager.WlanConfig{
		WlanID:        1,
		Configuration: *pskDesired(),
		BandRotation: config_manager.BandRotationState{
			Policy:           policy,
			LastBandUsed:     config_manager.Band2G,
			RoundsConfigured: 3,
			RoundsElapsed:    4,
			AllowedBands:     []config_manager.Band{config_manager.Band2G, config_manager.Band5G},
		},
	}
}

var notAssociated = &AssociationSnapshot{Interface: "wlp3s0"}

func associatedOn(band config_manager.Band, bssid string) *AssociationSnapshot {
	return &AssociationSnapshot{
		Interface: "wlp3s0",
		Connected: true,
		SSID:      "Temp",
		BSSID:     bssid,
		Band:      band,
		IPConfig:  IPConfig{IPv4: "192.168.10.20", Gateway: "192.168.10.1"},
	}
}

func (f *managerFixture) seedFailures(t *testing.T, n int) {
	for i := 0; i < n; i++ {
		_, err := f.ledger.Record(context.Background(), CodeNotVisible, "seed")
		require.NoError(t, err)
	}
}

func (f *managerFixture) failureCodes(t *testing.T) []int {
	state, err := f.ledger.Load()
	require.NoError(t, err)
	codes := make([]int, 0, len(state.Records))
	for _, r := range state.Records {
		codes = append(codes, r.Code)
	}
	return codes
}

func TestEnsureConnectedShortCircuit(t *testing.T) {
	f := newManagerFixture(t)
	f.seedFailures(t, 2)
	f.inspector.On("Inspect", "wlp3s0").Return(associatedOn(config_manager.Band5G, bssidA), nil)
	f.checker.On("CheckGateway", "192.168.10.1").Return(true)

	wlan := tempWlan(config_manager.PolicyRotating)
	out, err := f.manager.EnsureConnected(context.Background(), wlan)
	require.NoError(t, err)

	assert.True(t, out.Ready())
	assert.True(t, out.ShortCircuit)
	assert.True(t, out.GatewayReachable)
	assert.Equal(t, config_manager.Band5G, out.RequestedBand)
	assert.Equal(t, config_manager.Band5G, out.Rotation.LastBandUsed)
	assert.Equal(t, 1, out.Rotation.RoundsElapsed)
	assert.Empty(t, f.failureCodes(t))
	assert.Equal(t, config_manager.Band2G, wlan.BandRotation.LastBandUsed)
	f.profiles.AssertNotCalled(t, "CheckProfile", mock.Anything)
	f.selector.AssertNotCalled(t, "ConnectToBand", mock.Anything, mock.Anything)
}

func TestEnsureConnectedWrongBandDoesNotShortCircuit(t *testing.T) {
	f := newManagerFixture(t)
	f.inspector.On("Inspect", "wlp3s0").Return(associatedOn(config_manager.Band2G, bssidC), nil).Once()
	f.inspector.On("Inspect", "wlp3s0").Return(associatedOn(config_manager.Band5G, bssidA), nil).Once()
	f.profiles.On("CheckProfile", "Temp").Return(ValidationResult{Kind: Valid}, nil)
	f.scanner.On("IsVisible", "Temp", false).Return(true, nil)
	f.selector.On("ConnectToBand", "Temp", config_manager.Band5G).Return(&SelectorResult{
		Selected:     VisibleAccessPoint{SSID: "Temp", BSSID: bssidA, FreqMHz: 5180},
		Candidates2G: 1,
		Candidates5G: 2,
	}, nil)
	f.checker.On("CheckGateway", "192.168.10.1").Return(true)

	out, err := f.manager.EnsureConnected(context.Background(), tempWlan(config_manager.PolicyRotating))
	require.NoError(t, err)
	assert.True(t, out.Ready())
	assert.False(t, out.ShortCircuit)
	require.NotNil(t, out.Selected)
	assert.Equal(t, bssidA, out.Selected.BSSID)
	assert.Equal(t, bssidA, out.Snapshot.BSSID)
	f.profiles.AssertNotCalled(t, "Provision", mock.Anything)
}

func TestEnsureConnectedProvisionsAndResetsLedger(t *testing.T) {
	f := newManagerFixture(t)
	f.seedFailures(t, 3)
	f.inspector.On("Inspect", "wlp3s0").Return(notAssociated, nil).Once()
	f.inspector.On("Inspect", "wlp3s0").Return(associatedOn(config_manager.Band2G, bssidC), nil).Once()
	f.profiles.On("CheckProfile", "Temp").Return(ValidationResult{Kind: MismatchAuth, Field: "802-11-wireless-security.key-mgmt"}, nil)
	f.profiles.On("Provision", "Temp").Return(ProvisionResult{Status: Created, Interface: "wlp3s0"})
	f.scanner.On("IsVisible", "Temp", false).Return(true, nil)
	f.selector.On("ConnectToBand", "Temp", config_manager.Band2G).Return(&SelectorResult{
		Selected: VisibleAccessPoint{SSID: "Temp", BSSID: bssidC, FreqMHz: 2437},
	}, nil)
	f.checker.On("CheckGateway", "192.168.10.1").Return(false)

	out, err := f.manager.EnsureConnected(context.Background(), tempWlan(config_manager.PolicyFixed2G))
	require.NoError(t, err)
	assert.Equal(t, Connected, out.State)
	assert.False(t, out.GatewayReachable)
	assert.Nil(t, out.Failure)
	assert.Empty(t, f.failureCodes(t))
	f.profiles.AssertExpectations(t)
}

func TestEnsureConnectedChecksProfileWithRadioBand(t *testing.T) {
	f := newManagerFixture(t)
	f.inventory.ExpectedCalls = nil
	f.inventory.On("Discover").Return([]RadioInterface{
		{PhysicalID: "0", LogicalName: "wlan0", PhyHandle: "phy0", BandsSupported: 1},
		{PhysicalID: "1", LogicalName: "wlan1", PhyHandle: "phy1", BandsSupported: 1},
	}, nil)
	f.inspector.On("Inspect", "wlan0").Return(notAssociated, nil)
	f.profiles.On("CheckProfile", "Temp").Return(ValidationResult{Kind: Valid}, nil)
	f.scanner.On("IsVisible", "Temp", false).Return(false, nil)

	wlan := tempWlan(config_manager.PolicyFixed5G)
	wlan.Configuration.Band = config_manager.Band5G

	out, err := f.manager.EnsureConnected(context.Background(), wlan)
	require.NoError(t, err)
	assert.Equal(t, CodeNotVisible, out.Failure.Code)
	require.NotNil(t, f.profiles.checked)
	assert.Equal(t, config_manager.BandAuto, f.profiles.checked.Band)
	assert.Equal(t, config_manager.Band5G, wlan.Configuration.Band)
}

func TestEnsureConnectedFailures(t *testing.T) {
	launchErr := launchError("scan", errExecNotFound)

	tests := []struct {
		name      string
		setup     func(f *managerFixture)
		wantCode  int
		wantStage State
	}{
		{
			name: "profile rejected",
			setup: func(f *managerFixture) {
				f.profiles.On("CheckProfile", "Temp").Return(ValidationResult{Kind: NotFound}, nil)
				f.profiles.On("Provision", "Temp").Return(ProvisionResult{Status: Rejected, Output: "Error: invalid psk"})
			},
			wantCode:  CodeProfileUnavailable,
			wantStage: Provisioning,
		},
		{
			name: "provisioning tool missing",
			setup: func(f *managerFixture) {
				f.profiles.On("CheckProfile", "Temp").Return(ValidationResult{Kind: NotFound}, nil)
				f.profiles.On("Provision", "Temp").Return(ProvisionResult{Status: ToolError, Err: launchErr})
			},
			wantCode:  CodeLaunchError,
			wantStage: Provisioning,
		},
		{
			name: "profile check tool missing",
			setup: func(f *managerFixture) {
				f.profiles.On("CheckProfile", "Temp").Return(ValidationResult{}, launchErr)
			},
			wantCode:  CodeLaunchError,
			wantStage: ValidatingProfile,
		},
		{
			name: "profile check unreadable",
			setup: func(f *managerFixture) {
				f.profiles.On("CheckProfile", "Temp").Return(ValidationResult{}, &WlanError{Type: ErrorTypeParse, Stage: "validate"})
			},
			wantCode:  CodeProfileUnavailable,
			wantStage: ValidatingProfile,
		},
		{
			name: "ssid not visible",
			setup: func(f *managerFixture) {
				f.profiles.On("CheckProfile", "Temp").Return(ValidationResult{Kind: Valid}, nil)
				f.scanner.On("IsVisible", "Temp", false).Return(false, nil)
			},
			wantCode:  CodeNotVisible,
			wantStage: ScanningVisibility,
		},
		{
			name: "scan tool failed",
			setup: func(f *managerFixture) {
				f.profiles.On("CheckProfile", "Temp").Return(ValidationResult{Kind: Valid}, nil)
				f.scanner.On("IsVisible", "Temp", false).Return(false, &WlanError{Type: ErrorTypeTool, Stage: "scan"})
			},
			wantCode:  CodeScanError,
			wantStage: ScanningVisibility,
		},
		{
			name: "scan tool missing",
			setup: func(f *managerFixture) {
				f.profiles.On("CheckProfile", "Temp").Return(ValidationResult{Kind: Valid}, nil)
				f.scanner.On("IsVisible", "Temp", false).Return(false, launchErr)
			},
			wantCode:  CodeLaunchError,
			wantStage: ScanningVisibility,
		},
		{
			name: "no access point on band",
			setup: func(f *managerFixture) {
				f.profiles.On("CheckProfile", "Temp").Return(ValidationResult{Kind: Valid}, nil)
				f.scanner.On("IsVisible", "Temp", false).Return(true, nil)
				f.selector.On("ConnectToBand", "Temp", config_manager.Band5G).
					Return(&SelectorResult{Candidates2G: 1}, fmt.Errorf("%w: Temp on 5G", ErrNoAccessPoint))
			},
			wantCode:  CodeNoAccessPoint,
			wantStage: SelectingBand,
		},
		{
			name: "connect failed",
			setup: func(f *managerFixture) {
				f.profiles.On("CheckProfile", "Temp").Return(ValidationResult{Kind: Valid}, nil)
				f.scanner.On("IsVisible", "Temp", false).Return(true, nil)
				f.selector.On("ConnectToBand", "Temp", config_manager.Band5G).
					Return(&SelectorResult{}, fmt.Errorf("%w: activation failed", ErrConnectFailed))
			},
			wantCode:  CodeConnectFailed,
			wantStage: SelectingBand,
		},
		{
			name: "access point list unreadable",
			setup: func(f *managerFixture) {
				f.profiles.On("CheckProfile", "Temp").Return(ValidationResult{Kind: Valid}, nil)
				f.scanner.On("IsVisible", "Temp", false).Return(true, nil)
				f.selector.On("ConnectToBand", "Temp", config_manager.Band5G).
					Return(nil, &WlanError{Type: ErrorTypeParse, Stage: "select"})
			},
			wantCode:  CodeScanError,
			wantStage: SelectingBand,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newManagerFixture(t)
			f.seedFailures(t, 1)
			f.inspector.On("Inspect", "wlp3s0").Return(notAssociated, nil)
			tt.setup(f)

			wlan := tempWlan(config_manager.PolicyRotating)
			out, err := f.manager.EnsureConnected(context.Background(), wlan)
			require.NoError(t, err)

			assert.False(t, out.Ready())
			assert.Equal(t, FailedTerminal, out.State)
			require.NotNil(t, out.Failure)
			assert.Equal(t, tt.wantCode, out.Failure.Code)
			assert.Equal(t, tt.wantStage, out.Failure.Stage)
			assert.Equal(t, []int{CodeNotVisible, tt.wantCode}, f.failureCodes(t))
			assert.Equal(t, wlan.BandRotation, out.Rotation)
			f.checker.AssertNotCalled(t, "CheckGateway", mock.Anything)
		})
	}
}

func TestEnsureConnectedNoRadio(t *testing.T) {
	f := newManagerFixture(t)
	f.inventory.ExpectedCalls = nil
	f.inventory.On("Discover").Return([]RadioInterface{}, nil)

	out, err := f.manager.EnsureConnected(context.Background(), tempWlan(config_manager.PolicyFixed5G))
	require.NoError(t, err)
	assert.Equal(t, CodeNoRadio, out.Failure.Code)
	assert.Equal(t, CheckingAssociation, out.Failure.Stage)
	assert.Equal(t, []int{CodeNoRadio}, f.failureCodes(t))
}

func TestEnsureConnectedInventoryLaunchError(t *testing.T) {
	f := newManagerFixture(t)
	f.inventory.ExpectedCalls = nil
	f.inventory.On("Discover").Return(nil, launchError("inventory", errExecNotFound))

	out, err := f.manager.EnsureConnected(context.Background(), tempWlan(config_manager.PolicyFixed5G))
	require.NoError(t, err)
	assert.Equal(t, CodeLaunchError, out.Failure.Code)
}

func TestEnsureConnectedInspectLaunchError(t *testing.T) {
	f := newManagerFixture(t)
	f.inspector.On("Inspect", "wlp3s0").Return(nil, launchError("inspect", errExecNotFound))

	out, err := f.manager.EnsureConnected(context.Background(), tempWlan(config_manager.PolicyFixed5G))
	require.NoError(t, err)
	assert.Equal(t, CodeLaunchError, out.Failure.Code)
	assert.Equal(t, CheckingAssociation, out.Failure.Stage)
}

func TestEnsureConnectedDisabled(t *testing.T) {
	f := newManagerFixture(t)
	wlan := tempWlan(config_manager.PolicyFixed5G)
	wlan.Configuration.AdminStatus = config_manager.AdminDisable

	out, err := f.manager.EnsureConnected(context.Background(), wlan)
	assert.ErrorIs(t, err, ErrWlanDisabled)
	assert.Nil(t, out)
	f.inventory.AssertNotCalled(t, "Discover")
	assert.Empty(t, f.failureCodes(t))
}

func TestEnsureConnectedUnknownPolicy(t *testing.T) {
	f := newManagerFixture(t)
	_, err := f.manager.EnsureConnected(context.Background(), tempWlan("Sometimes"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrWlanDisabled))
	assert.Empty(t, f.failureCodes(t))
}

func TestStateMarshalText(t *testing.T) {
	text, err := SelectingBand.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "SelectingBand", string(text))
	assert.Equal(t, "Unknown", State(42).String())
}

func TestTerminalFailureError(t *testing.T) {
	err := &TerminalFailure{Code: CodeNotVisible, Stage: ScanningVisibility, Message: "SSID Temp not visible"}
	assert.Equal(t, "connect failed in ScanningVisibility (code 404): SSID Temp not visible", err.Error())
}
