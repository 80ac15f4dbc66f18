package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/wlansensor/wlan-sensor-module-go/src/config_manager"
	"github.com/wlansensor/wlan-sensor-module-go/src/wlan_manager"
)

// connector runs one connect cycle.
type connector interface {
	EnsureConnected(ctx context.Context, wlan *config_manager.WlanConfig) (*wlan_manager.Outcome, error)
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to the configured WLAN",
	Long: `Run one connect cycle for a WLAN entry and print the outcome as JSON.
Exit status is 0 when the sensor is ready to test, 2 when the cycle ended in a
recorded connectivity failure and 1 on any other error.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
		id, _ := cmd.Flags().GetInt("wlan-id")
		manager, err := wlan_manager.NewManager(a.executor, a.ledger, a.config)
		if err != nil {
			return err
		}
		return runConnect(ctx, manager, a.configManager, a.config, id, cmd.OutOrStdout())
	}),
}

// runConnect drives one cycle and persists the band rotation on success.
func runConnect(ctx context.Context, c connector, cm *config_manager.ConfigManager, cfg *config_manager.Config, wlanID int, out io.Writer) error {
	wlan, err := cfg.FindWlan(wlanID)
	if err != nil {
		return err
	}

	outcome, err := c.EnsureConnected(ctx, wlan)
	if outcome == nil {
		return err
	}
	if outcome.Ready() {
		if perr := cm.UpdateBandRotation(wlan.WlanID, outcome.Rotation); perr != nil {
			logrus.WithError(perr).Error("Failed to persist band rotation state")
		}
	}
	if werr := writeJSON(out, outcome); werr != nil {
		return werr
	}
	if err != nil {
		return err
	}
	if outcome.Failure != nil {
		return &exitCodeError{code: exitNoReady, err: outcome.Failure}
	}
	return nil
}

// radioStatus is one entry of the status report.
type radioStatus struct {
	Radio       wlan_manager.RadioInterface       `json:"radio"`
	Association *wlan_manager.AssociationSnapshot `json:"association,omitempty"`
	Error       string                            `json:"error,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show radios and their current association",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
		manager, err := wlan_manager.NewManager(a.executor, a.ledger, a.config)
		if err != nil {
			return err
		}
		radios, err := manager.Radios(ctx)
		if err != nil {
			return err
		}
		report := make([]radioStatus, 0, len(radios))
		for _, r := range radios {
			st := radioStatus{Radio: r}
			snap, err := manager.Inspect(ctx, r.LogicalName)
			if err != nil {
				st.Error = err.Error()
			} else {
				st.Association = snap
			}
			report = append(report, st)
		}
		return writeJSON(cmd.OutOrStdout(), report)
	}),
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List visible access points",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
		manager, err := wlan_manager.NewManager(a.executor, a.ledger, a.config)
		if err != nil {
			return err
		}
		aps, err := manager.AccessPoints(ctx)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), aps)
	}),
}

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Connectivity failure ledger",
	Long:  "Inspect or clear the connectivity failure ledger read by the watchdog",
}

var failuresShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the failure ledger",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
		state, err := a.ledger.Load()
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), state)
	}),
}

var failuresResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the failure ledger",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
		if err := a.ledger.Reset(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Failure ledger %s reset\n", a.ledger.Path())
		return nil
	}),
}

var failuresHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Print archived failures, newest first",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
		if a.history == nil {
			return fmt.Errorf("failure history is not enabled in %s", a.configManager.FilePath)
		}
		limit, _ := cmd.Flags().GetInt("limit")
		records, err := a.history.Recent(ctx, limit)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), records)
	}),
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $WLANSENSOR_CONFIG_PATH or "+defaultConfigPath+")")
	connectCmd.Flags().Int("wlan-id", 1, "WLAN entry to connect")
	failuresHistoryCmd.Flags().IntP("limit", "n", 20, "Number of records to show")

	failuresCmd.AddCommand(failuresShowCmd, failuresResetCmd, failuresHistoryCmd)
	rootCmd.AddCommand(connectCmd, statusCmd, scanCmd, failuresCmd)
}

