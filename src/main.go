package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/wlansensor/wlan-sensor-module-go/src/commander"
	"github.com/wlansensor/wlan-sensor-module-go/src/config_manager"
	"github.com/wlansensor/wlan-sensor-module-go/src/failure_ledger"
)

const defaultConfigPath = "/etc/wlan-sensor/config.json"

// Process exit codes of the connect command.
const (
	exitReady   = 0
	exitError   = 1
	exitNoReady = 2
)

var configPath string

// getConfigPath returns the configuration file path: the --config flag, then
// the environment variable, then the default.
func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if p := os.Getenv("WLANSENSOR_CONFIG_PATH"); p != "" {
		return p
	}
	return defaultConfigPath
}

// exitCodeError carries a process exit code through cobra.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string {
	return e.err.Error()
}

func (e *exitCodeError) Unwrap() error {
	return e.err
}

// app holds what every command needs once the config is loaded.
type app struct {
	configManager *config_manager.ConfigManager
	config        *config_manager.Config
	executor      commander.Executor
	ledger        *failure_ledger.Ledger
	history       *failure_ledger.SQLiteHistory
}

func newApp(ctx context.Context) (*app, error) {
	cm, err := config_manager.NewConfigManager(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	cfg, err := cm.EnsureDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", cm.FilePath, err)
	}
	InitializeGlobalLogger(cfg.LogLevel, os.Stderr)

	a := &app{
		configManager: cm,
		config:        cfg,
		executor:      commander.NewExecCommander(time.Duration(cfg.Tools.CommandTimeoutSeconds)*time.Second, cfg.Tools.UseSudo),
	}

	var history failure_ledger.History
	if cfg.FailureHistory.Enabled {
		h, err := failure_ledger.NewSQLiteHistory(cfg.FailureHistory.DSN, cfg.Sensor.Name)
		if err == nil {
			err = h.Init(ctx)
		}
		if err != nil {
			logrus.WithError(err).Warn("Failure history unavailable, continuing without it")
		} else {
			a.history = h
			history = h
		}
	}
	a.ledger = failure_ledger.NewLedger(cfg.FailuresFile, history)
	return a, nil
}

func (a *app) close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close failure history")
		}
	}
}

// withApp builds the app for a command and closes it afterwards.
func withApp(run func(ctx context.Context, a *app, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		return run(ctx, a, cmd)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wlan-sensor",
	Short: "WLAN connection manager for field sensors",
	Long: `wlan-sensor brings the sensor's Wi-Fi radio onto the configured network
before a measurement run and keeps the connectivity failure ledger that the
watchdog reads.`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var ee *exitCodeError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(exitError)
	}
}
