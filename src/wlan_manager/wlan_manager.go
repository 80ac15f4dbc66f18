// Package wlan_manager implements the connect cycle that takes the sensor from
// whatever state its radio is in to an association with the configured WLAN.
package wlan_manager

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wlansensor/wlan-sensor-module-go/src/commander"
	"github.com/wlansensor/wlan-sensor-module-go/src/config_manager"
)

// Failure codes written to the ledger, one per terminal failure class.
const (
	CodeLaunchError        = 401
	CodeProfileUnavailable = 402
	CodeConnectFailed      = 403
	CodeNotVisible         = 404
	CodeNoAccessPoint      = 405
	CodeScanError          = 406
	CodeNoRadio            = 407
)

// State is a step of the connect cycle.
type State int

const (
	Idle State = iota
	CheckingAssociation
	ValidatingProfile
	Provisioning
	ScanningVisibility
	SelectingBand
	Connected
	FailedTerminal
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case CheckingAssociation:
		return "CheckingAssociation"
	case ValidatingProfile:
		return "ValidatingProfile"
	case Provisioning:
		return "Provisioning"
	case ScanningVisibility:
		return "ScanningVisibility"
	case SelectingBand:
		return "SelectingBand"
	case Connected:
		return "Connected"
	case FailedTerminal:
		return "FailedTerminal"
	}
	return "Unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TerminalFailure is what ended a cycle in FailedTerminal. The caller decides
// whether to stop the process.
type TerminalFailure struct {
	Code    int    `json:"code"`
	Stage   State  `json:"stage"`
	Message string `json:"message"`
}

func (f *TerminalFailure) Error() string {
	return fmt.Sprintf("connect failed in %s (code %d): %s", f.Stage, f.Code, f.Message)
}

// Outcome is the result of one EnsureConnected call.
type Outcome struct {
	AttemptID        string                           `json:"attempt_id"`
	WlanID           int                              `json:"wlan_id"`
	SSID             string                           `json:"ssid"`
	State            State                            `json:"state"`
	RequestedBand    config_manager.Band              `json:"requested_band"`
	ShortCircuit     bool                             `json:"short_circuit"`
	Snapshot         *AssociationSnapshot             `json:"snapshot,omitempty"`
	Selected         *VisibleAccessPoint              `json:"selected,omitempty"`
	GatewayReachable bool                             `json:"gateway_reachable"`
	Rotation         config_manager.BandRotationState `json:"rotation"`
	Failure          *TerminalFailure                 `json:"failure,omitempty"`
}

// Ready reports whether measurements can run.
func (o *Outcome) Ready() bool {
	return o.State == Connected
}

// Manager runs connect cycles. It is not safe for concurrent use and only one
// process may drive the radio at a time.
type Manager struct {
	inventory   InventoryInterface
	inspector   LinkInspectorInterface
	profiles    ProfileManagerInterface
	scanner     ScannerInterface
	selector    SelectorInterface
	ledger      LedgerInterface
	checker     ConnectivityCheckerInterface
	rnd         *rand.Rand
	forceRescan bool
	radios      []RadioInterface
}

// NewManager wires the tool-backed components for cfg.
func NewManager(executor commander.Executor, ledger LedgerInterface, cfg *config_manager.Config) (*Manager, error) {
	addresses, err := NewAddressSource(cfg.Tools.AddressSource, executor)
	if err != nil {
		return nil, err
	}
	scanner := NewScanner(executor)
	return &Manager{
		inventory:   NewInventory(executor),
		inspector:   NewLinkInspector(executor, addresses),
		profiles:    NewProfileManager(executor),
		scanner:     scanner,
		selector:    NewSelector(executor, scanner, cfg.Selector.SortBySignal),
		ledger:      ledger,
		checker:     NewConnectivityChecker(executor),
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		forceRescan: cfg.Selector.ForceRescan,
	}, nil
}

// Radios returns the discovered radios, running discovery once.
func (m *Manager) Radios(ctx context.Context) ([]RadioInterface, error) {
	if m.radios != nil {
		return m.radios, nil
	}
	radios, err := m.inventory.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if len(radios) == 0 {
		return nil, ErrNoRadio
	}
	m.radios = radios
	return radios, nil
}

// Inspect reads the association of iface.
func (m *Manager) Inspect(ctx context.Context, iface string) (*AssociationSnapshot, error) {
	return m.inspector.Inspect(ctx, iface)
}

// AccessPoints lists the visible access points.
func (m *Manager) AccessPoints(ctx context.Context) ([]VisibleAccessPoint, error) {
	return m.scanner.ListAccessPoints(ctx)
}

// cycle carries the per-attempt state through EnsureConnected.
type cycle struct {
	log     *logrus.Entry
	outcome *Outcome
	wlan    *config_manager.WlanConfig
	iface   string
}

func (c *cycle) enter(s State) {
	c.log.WithFields(logrus.Fields{
		"from": c.outcome.State.String(),
		"to":   s.String(),
	}).Debug("State transition")
	c.outcome.State = s
}

// EnsureConnected runs one attempt to get wlan associated. There are no
// internal retries: a failure ends in FailedTerminal with the code written to
// the ledger, a success resets the ledger. The returned Outcome carries the
// band rotation state the caller must persist.
func (m *Manager) EnsureConnected(ctx context.Context, wlan *config_manager.WlanConfig) (*Outcome, error) {
	desired := &wlan.Configuration
	if desired.AdminStatus == config_manager.AdminDisable {
		return nil, ErrWlanDisabled
	}

	c := &cycle{
		wlan: wlan,
		outcome: &Outcome{
			AttemptID: uuid.NewString(),
			WlanID:    wlan.WlanID,
			SSID:      desired.SSID,
			State:     Idle,
			Rotation:  wlan.BandRotation,
		},
	}
	c.log = logger.WithFields(logrus.Fields{
		"attempt_id": c.outcome.AttemptID,
		"wlan_id":    wlan.WlanID,
		"ssid":       desired.SSID,
	})

	ledger, err := m.ledger.Load()
	if err != nil {
		return nil, err
	}
	c.log.WithField("previous_failures", ledger.Count).Info("Starting connect cycle")

	band, nextRotation, err := NextBand(wlan.BandRotation, m.rnd)
	if err != nil {
		return nil, err
	}
	c.outcome.RequestedBand = band
	c.log = c.log.WithField("band", band)

	c.enter(CheckingAssociation)
	radios, err := m.Radios(ctx)
	if err != nil {
		code := CodeNoRadio
		if IsErrorType(err, ErrorTypeLaunch) {
			code = CodeLaunchError
		}
		return m.fail(ctx, c, code, err), nil
	}
	// The profile is checked and written with the band the radio can take.
	desired, c.iface = effectiveDesired(desired, radios)

	snap, err := m.inspector.Inspect(ctx, c.iface)
	switch {
	case err != nil && IsErrorType(err, ErrorTypeLaunch):
		return m.fail(ctx, c, CodeLaunchError, err), nil
	case err != nil:
		c.log.WithError(err).Warn("Could not read association, continuing as not associated")
	case snap.Connected && snap.SSID == desired.SSID && snap.Band == band:
		c.log.WithField("bssid", snap.BSSID).Info("Already associated on requested band")
		c.outcome.ShortCircuit = true
		return m.succeed(ctx, c, snap, nextRotation)
	}

	c.enter(ValidatingProfile)
	validation, err := m.profiles.CheckProfile(ctx, desired)
	if err != nil {
		code := CodeProfileUnavailable
		if IsErrorType(err, ErrorTypeLaunch) {
			code = CodeLaunchError
		}
		return m.fail(ctx, c, code, err), nil
	}
	if validation.Kind != Valid {
		c.log.WithFields(logrus.Fields{
			"validation": validation.Kind.String(),
			"field":      validation.Field,
		}).Info("Stored profile needs provisioning")

		c.enter(Provisioning)
		prov := m.profiles.Provision(ctx, desired, radios)
		switch prov.Status {
		case Created:
		case ToolError:
			return m.fail(ctx, c, CodeLaunchError, prov.Err), nil
		default:
			return m.fail(ctx, c, CodeProfileUnavailable, fmt.Errorf("profile rejected: %s", prov.Output)), nil
		}
	}

	c.enter(ScanningVisibility)
	visible, err := m.scanner.IsVisible(ctx, desired.SSID, m.forceRescan)
	if err != nil {
		code := CodeScanError
		if IsErrorType(err, ErrorTypeLaunch) {
			code = CodeLaunchError
		}
		return m.fail(ctx, c, code, err), nil
	}
	if !visible {
		return m.fail(ctx, c, CodeNotVisible, fmt.Errorf("SSID %s not visible", desired.SSID)), nil
	}

	c.enter(SelectingBand)
	sel, err := m.selector.ConnectToBand(ctx, desired.SSID, band)
	if err != nil {
		code := CodeScanError
		switch {
		case errors.Is(err, ErrNoAccessPoint):
			code = CodeNoAccessPoint
		case errors.Is(err, ErrConnectFailed):
			code = CodeConnectFailed
		case IsErrorType(err, ErrorTypeLaunch):
			code = CodeLaunchError
		}
		return m.fail(ctx, c, code, err), nil
	}
	c.outcome.Selected = &sel.Selected

	final, err := m.inspector.Inspect(ctx, c.iface)
	if err != nil {
		c.log.WithError(err).Warn("Could not read association after connect")
		final = &AssociationSnapshot{Interface: c.iface, Connected: true, SSID: desired.SSID, BSSID: sel.Selected.BSSID}
	}
	return m.succeed(ctx, c, final, nextRotation)
}

func (m *Manager) succeed(ctx context.Context, c *cycle, snap *AssociationSnapshot, rotation config_manager.BandRotationState) (*Outcome, error) {
	c.enter(Connected)
	c.outcome.Snapshot = snap
	c.outcome.Rotation = rotation

	if err := m.ledger.Reset(); err != nil {
		return c.outcome, fmt.Errorf("connected but failed to reset failure ledger: %w", err)
	}
	if m.checker != nil && snap.Gateway != "" {
		c.outcome.GatewayReachable = m.checker.CheckGateway(ctx, snap.Gateway)
	}

	c.log.WithFields(logrus.Fields{
		"bssid":         snap.BSSID,
		"channel":       snap.Channel,
		"signal":        snap.SignalDbm,
		"ipv4":          snap.IPv4,
		"short_circuit": c.outcome.ShortCircuit,
	}).Info("WLAN connected, ready to test")
	return c.outcome, nil
}

func (m *Manager) fail(ctx context.Context, c *cycle, code int, cause error) *Outcome {
	stage := c.outcome.State
	message := "unknown failure"
	if cause != nil {
		message = cause.Error()
	}
	c.outcome.Failure = &TerminalFailure{Code: code, Stage: stage, Message: message}
	c.enter(FailedTerminal)

	c.log.WithFields(logrus.Fields{
		"code":  code,
		"stage": stage.String(),
	}).WithError(cause).Error("Connect cycle failed")

	if _, err := m.ledger.Record(ctx, code, message); err != nil {
		c.log.WithError(err).Error("Failed to record connectivity failure")
	}
	return c.outcome
}
