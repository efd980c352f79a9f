// Package cli provides the command-line interface for the trading engine.
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"galaxy-trader/internal/config"
	"galaxy-trader/internal/logging"
	"galaxy-trader/internal/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

// App holds shared application state for commands.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger
	Store     store.DataStore
}

// OpenStore lazily opens the SQLite store. Commands that only read
// configuration never touch the database.
func (a *App) OpenStore() (store.DataStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	st, err := store.NewSQLiteStore(a.Config.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store = st
	return st, nil
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd(cfg *config.Config, configDir string, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config:    cfg,
		ConfigDir: configDir,
		Logger:    logger,
	}

	rootCmd := &cobra.Command{
		Use:   "galaxy-trader",
		Short: "Autonomous trade fleet engine",
		Long: `Galaxy Trader runs a fleet of autonomous trading ships across a sector
graph: it evaluates opportunities, reserves them so ships never collide on
the same trade, levels up pilots, and avoids sectors under attack.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logging.SetDebugLevel()
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.Store != nil {
				_ = app.Store.Close()
			}
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Config directory (default ~/.config/galaxy-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addRunCommand(rootCmd, app)
	addStatusCommands(rootCmd, app)
	addJournalCommands(rootCmd, app)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.JSONMode() {
				return output.JSON(map[string]string{"version": Version})
			}
			output.Printf("galaxy-trader %s\n", Version)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(c *cobra.Command, args []string) error {
			output := NewOutput(c)
			if output.JSONMode() {
				return output.JSON(app.Config)
			}
			output.Bold("Configuration")
			output.Printf("  min profit:        %.0f cr\n", app.Config.Trading.MinProfit)
			output.Printf("  min ROI:           %.2f%%\n", app.Config.Trading.MinROI*100)
			output.Printf("  work budget:       %d pairs/tick\n", app.Config.Trading.WorkBudget)
			output.Printf("  cache TTL:         %s\n", app.Config.Cache.TTL)
			output.Printf("  reservation TTL:   %s\n", app.Config.Reservation.TTL)
			output.Printf("  danger threshold:  %d (window %s)\n", app.Config.Danger.Threshold, app.Config.Danger.Window)
			output.Printf("  tick interval:     %s\n", app.Config.Engine.TickInterval)
			output.Printf("  sweep schedule:    %s\n", app.Config.Engine.SweepSchedule)
			output.Printf("  server:            enabled=%t addr=%s\n", app.Config.Server.Enabled, app.Config.Server.Addr)
			output.Printf("  database:          %s\n", app.Config.Store.DBPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		RunE: func(c *cobra.Command, args []string) error {
			output := NewOutput(c)
			path := filepath.Join(app.ConfigDir, "config.toml")
			if output.JSONMode() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(c *cobra.Command, args []string) error {
			output := NewOutput(c)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration invalid: %v", err)
				return err
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}
