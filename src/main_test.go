package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wlansensor/wlan-sensor-module-go/src/config_manager"
	"github.com/wlansensor/wlan-sensor-module-go/src/wlan_manager"
)

// MockConnector is a mock implementation of connector.
type MockConnector struct {
	mock.Mock
}

func (m *MockConnector) EnsureConnected(ctx context.Context, wlan *config_manager.WlanConfig) (*wlan_manager.Outcome, error) {
	args := m.Called(wlan.WlanID)
	out, _ := args.Get(0).(*wlan_manager.Outcome)
	return out, args.Error(1)
}

func newTestConfig(t *testing.T) (*config_manager.ConfigManager, *config_manager.Config) {
	cm, err := config_manager.NewConfigManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	cfg, err := cm.EnsureDefaultConfig()
	require.NoError(t, err)
	return cm, cfg
}

var rotated = config_manager.BandRotationState{
	Policy:           config_manager.PolicyRotating,
	LastBandUsed:     config_manager.Band5G,
	RoundsConfigured: 3,
	RoundsElapsed:    1,
	AllowedBands:     []config_manager.Band{config_manager.Band2G, config_manager.Band5G},
}

func TestGetConfigPath(t *testing.T) {
	t.Cleanup(func() { configPath = "" })

	t.Setenv("WLANSENSOR_CONFIG_PATH", "")
	assert.Equal(t, defaultConfigPath, getConfigPath())

	t.Setenv("WLANSENSOR_CONFIG_PATH", "/tmp/sensor.yaml")
	assert.Equal(t, "/tmp/sensor.yaml", getConfigPath())

	configPath = "/opt/sensor.json"
	assert.Equal(t, "/opt/sensor.json", getConfigPath())
}

func TestRunConnectReadyPersistsRotation(t *testing.T) {
	cm, cfg := newTestConfig(t)
	c := new(MockConnector)
	c.On("EnsureConnected", 1).Return(&wlan_manager.Outcome{
		WlanID:   1,
		SSID:     "sensor-net",
		State:    wlan_manager.Connected,
		Rotation: rotated,
	}, nil)

	var out bytes.Buffer
	require.NoError(t, runConnect(context.Background(), c, cm, cfg, 1, &out))

	var printed map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &printed))
	assert.Equal(t, "Connected", printed["state"])

	saved, err := cm.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, rotated, saved.Wlans[0].BandRotation)
}

func TestRunConnectTerminalFailure(t *testing.T) {
	cm, cfg := newTestConfig(t)
	before := cfg.Wlans[0].BandRotation
	c := new(MockConnector)
	c.On("EnsureConnected", 1).Return(&wlan_manager.Outcome{
		WlanID:   1,
		State:    wlan_manager.FailedTerminal,
		Rotation: before,
		Failure:  &wlan_manager.TerminalFailure{Code: wlan_manager.CodeNotVisible, Stage: wlan_manager.ScanningVisibility, Message: "SSID sensor-net not visible"},
	}, nil)

	var out bytes.Buffer
	err := runConnect(context.Background(), c, cm, cfg, 1, &out)

	var ee *exitCodeError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, exitNoReady, ee.code)
	var tf *wlan_manager.TerminalFailure
	assert.True(t, errors.As(err, &tf))
	assert.Contains(t, out.String(), `"code": 404`)

	saved, err := cm.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, before, saved.Wlans[0].BandRotation)
}

func TestRunConnectErrors(t *testing.T) {
	cm, cfg := newTestConfig(t)
	c := new(MockConnector)
	c.On("EnsureConnected", 1).Return(nil, wlan_manager.ErrWlanDisabled)

	var out bytes.Buffer
	err := runConnect(context.Background(), c, cm, cfg, 1, &out)
	assert.ErrorIs(t, err, wlan_manager.ErrWlanDisabled)
	var ee *exitCodeError
	assert.False(t, errors.As(err, &ee))
	assert.Empty(t, out.String())

	err = runConnect(context.Background(), c, cm, cfg, 9, &out)
	assert.Error(t, err)
	c.AssertNumberOfCalls(t, "EnsureConnected", 1)
}

func TestInitializeGlobalLogger(t *testing.T) {
	t.Cleanup(func() {
		logrus.SetLevel(logrus.InfoLevel)
		logrus.SetOutput(os.Stderr)
	})

	var buf bytes.Buffer
	assert.Equal(t, logrus.DebugLevel, InitializeGlobalLogger("DEBUG", &buf))
	assert.Contains(t, buf.String(), "Global logger initialized")

	assert.Equal(t, logrus.InfoLevel, InitializeGlobalLogger("chatty", &buf))
	assert.Contains(t, buf.String(), "defaulting to info")
}
