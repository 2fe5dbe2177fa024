// Package cli provides the command-line interface for the price analyst.
package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"price-analyst/internal/config"
)

// Version information
const (
	Version   = "0.4.0"
	BuildDate = "2026-10-01"
)

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(opts ...AppOption) *cobra.Command {
	return newRootCmd(NewApp(opts...))
}

func newRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "analyst",
		Short: "Price Analyst - multi-provider price data and technical analysis",
		Long: `Price Analyst fetches OHLCV series from several market data providers,
falling back from one to the next, and turns them into a technical report:
indicators, support and resistance, trade setups and an overall signal.

When every provider fails the last archived series is used, and failing that
placeholder data, always marked NOT LIVE.

Use 'analyst <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/price-analyst)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addAnalysisCommands(rootCmd, app)
	addWatchCommands(rootCmd, app)
	addCredentialCommands(rootCmd, app)
	addHelpCommands(rootCmd)

	return rootCmd
}

// withApp initializes the app before running fn.
func withApp(app *App, fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := app.init(cmd); err != nil {
			return err
		}
		return fn(cmd, args)
	}
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
					"go":         runtime.Version(),
				})
			}
			output.Printf("analyst %s (built %s, %s)\n", Version, BuildDate, runtime.Version())
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
		Short: "Show current configuration",
		RunE: withApp(app, func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(configView(app.Config))
			}
			showConfig(output, app.Config)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": dir})
			}
			output.Println(dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: withApp(app, func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		}),
	})

	return cmd
}

// configView is the JSON form of the configuration. Credentials are
// reported only as present or absent.
func configView(cfg *config.Config) map[string]interface{} {
	configured := make(map[string]bool)
	for _, id := range cfg.ProviderCredentials().Configured() {
		configured[string(id)] = true
	}
	configured["openai"] = cfg.Credentials.OpenAI.APIKey != ""

	notifications := map[string]interface{}{
		"enabled":  cfg.Notifications.Enabled,
		"level":    cfg.Notifications.Level,
		"webhook":  cfg.Notifications.Webhook.Enabled,
		"telegram": cfg.Notifications.Telegram.Enabled,
	}

	return map[string]interface{}{
		"dir":           cfg.Dir(),
		"data":          cfg.Data,
		"cache":         cfg.Cache,
		"scan":          cfg.Scan,
		"narrative":     cfg.Narrative,
		"store":         cfg.Store,
		"watch":         cfg.Watch,
		"notifications": notifications,
		"logging":       cfg.Logging,
		"credentials":   configured,
	}
}

func showConfig(output *Output, cfg *config.Config) {
	intraday, daily := cfg.Orders()

	output.Bold("Data")
	output.Printf("  Intraday order:  %v\n", intraday)
	output.Printf("  Daily order:     %v\n", daily)
	output.Printf("  Scraper:         %v (%d relays)\n", cfg.Data.Scraper, len(cfg.Data.YahooRelays))
	output.Printf("  Attempt timeout: %s\n", cfg.Data.AttemptTimeout)
	output.Printf("  Time zone:       %s\n", cfg.Location())
	output.Printf("  Default range:   %s\n", cfg.DefaultRange())
	output.Println()

	output.Bold("Cache")
	output.Printf("  Enabled:         %v\n", cfg.Cache.Enabled)
	output.Printf("  TTL:             %s intraday, %s daily\n", cfg.Cache.IntradayTTL, cfg.Cache.DailyTTL)
	output.Printf("  Capacity:        %d\n", cfg.Cache.Capacity)
	output.Println()

	output.Bold("Scan")
	output.Printf("  Delay:           %s\n", cfg.Scan.Delay)
	output.Printf("  Benchmark:       %s\n", orDash(cfg.Scan.Benchmark))
	output.Printf("  Min confidence:  %d\n", cfg.Scan.MinConfidence)
	output.Println()

	output.Bold("Narrative")
	output.Printf("  Enabled:         %v\n", cfg.Narrative.Enabled)
	output.Printf("  Model:           %s\n", cfg.Narrative.Model)
	output.Println()

	output.Bold("Store")
	output.Printf("  Path:            %s\n", cfg.StorePath())
	output.Printf("  Archive:         %v\n", cfg.Store.Archive)
	output.Printf("  History:         %v\n", cfg.Store.History)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:         %v (%s)\n", cfg.Notifications.Enabled, cfg.Notifications.Level)
	output.Printf("  Webhook:         %v\n", cfg.Notifications.Webhook.Enabled)
	output.Printf("  Telegram:        %v\n", cfg.Notifications.Telegram.Enabled)
	output.Println()

	output.Bold("Credentials")
	creds := cfg.ProviderCredentials()
	for _, id := range creds.Configured() {
		output.Printf("  %-16s %s\n", id+":", output.Green("configured"))
	}
	if len(creds) == 0 {
		output.Dim("  none in config files or environment")
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Execute runs the root command.
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		return fmt.Errorf("analyst: %w", err)
	}
	return nil
}
