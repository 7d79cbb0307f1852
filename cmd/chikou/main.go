// Binary chikou runs the Chikou breakout engine against historical or live bars.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chikoubot-go/internal/config"
	"chikoubot-go/internal/util"
)

const defaultConfigPath = "internal/config/config.yaml"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "chikou",
	Short: "Chikou span breakout signal engine",
	Long: `chikou compares each closed bar with the bar one displacement back,
trades breakouts and retests on a paper account, and resets to neutral after
a quiet spell.

Examples:
  chikou backtest --csv data/btc_4h.csv --fills out/fills.csv
  chikou backtest --from 2024-01-01 --to 2024-06-01
  chikou paper --config internal/config/config.yaml
  chikou config show`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to the YAML config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override app.log_level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads path on top of the defaults. A missing default config file
// falls back to the defaults alone.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) && path == defaultConfigPath {
		return config.Default(), nil
	}
	return cfg, err
}

// setup loads and validates the config after env and flag overrides, then
// builds the logger it asks for.
func setup(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	cfg.ApplyEnv()
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, newLogger(cfg.App, cmd.ErrOrStderr()), nil
}

func newLogger(app config.App, console io.Writer) zerolog.Logger {
	var log zerolog.Logger
	if app.LogFormat == "console" {
		log = util.NewConsoleLogger(app.LogLevel, console)
	} else {
		log = util.NewLogger(app.LogLevel)
	}
	return log.With().Str("app", app.Name).Str("env", app.Env).Logger()
}
