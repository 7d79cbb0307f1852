// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // json|console
}

// Exchange describes where bars come from and at what period the strategy sees them.
type Exchange struct {
	Name    string   `yaml:"name"` // stub|csv|binance
	Symbols []string `yaml:"symbols"`
	// Interval is the strategy bar period. FeedInterval, when shorter, is the
	// period requested from the venue and consolidated up to Interval.
	Interval     time.Duration `yaml:"interval"`
	FeedInterval time.Duration `yaml:"feed_interval"`
	RESTURL      string        `yaml:"rest_url"`
	WSURL        string        `yaml:"ws_url"`
	CSVPath      string        `yaml:"csv_path"`
	RateLimitRPS float64       `yaml:"rate_limit_rps"`
}

// Chikou holds the breakout/retest engine knobs.
type Chikou struct {
	Displacement       int           `yaml:"displacement"`
	UseBodies          bool          `yaml:"use_bodies"`
	ConfirmOnClose     bool          `yaml:"confirm_on_close"`
	Retests            bool          `yaml:"retests"`
	RetestMinDelayBars int           `yaml:"retest_min_delay_bars"`
	NeutralResetBars   int           `yaml:"neutral_reset_bars"`
	UseVolume          bool          `yaml:"use_volume"`
	VolumeSensitivity  float64       `yaml:"volume_sensitivity"`
	VolumeCap          float64       `yaml:"volume_cap"`
	PositionSize       float64       `yaml:"position_size"`
	MinSignalInterval  time.Duration `yaml:"min_signal_interval"`
	TickSize           float64       `yaml:"tick_size"`
}

// Momentum holds the Chikou momentum band-breakout knobs.
type Momentum struct {
	ChikouPeriod      int           `yaml:"chikou_period"`
	BBPeriod          int           `yaml:"bb_period"`
	BBStdDev          float64       `yaml:"bb_std_dev"`
	PositionSize      float64       `yaml:"position_size"`
	MinSignalInterval time.Duration `yaml:"min_signal_interval"`
}

// Strategy specifies which strategy is active along with the parameter bundles.
type Strategy struct {
	Mode     string   `yaml:"mode"` // chikou|momentum
	Chikou   Chikou   `yaml:"chikou"`
	Momentum Momentum `yaml:"momentum"`
}

// Indicators sizes the Ichimoku cloud and the volume average.
type Indicators struct {
	Tenkan         int `yaml:"tenkan"`
	Kijun          int `yaml:"kijun"`
	SenkouB        int `yaml:"senkou_b"`
	Displacement   int `yaml:"displacement"`
	VolumeLookback int `yaml:"volume_lookback"`
}

// Risk encodes guard-rails for how much size the executor may take on.
type Risk struct {
	MaxNotionalPerTrade float64 `yaml:"max_notional_per_trade"`
	KillSwitchDrawdown  float64 `yaml:"kill_switch_drawdown"`
}

// Paper captures paper-trading account settings such as starting cash, per-symbol caps, and execution tuning.
type Paper struct {
	StartingCash         float64 `yaml:"starting_cash"`
	MaxPositionPerSymbol float64 `yaml:"max_position_per_symbol"`
	SlippageBps          float64 `yaml:"slippage_bps"`
	LotSize              float64 `yaml:"lot_size"`
	FillsPath            string  `yaml:"fills_path"`
}

// Store selects where engine checkpoints are kept.
type Store struct {
	Backend       string `yaml:"backend"` // memory|file|redis
	Dir           string `yaml:"dir"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App        App        `yaml:"app"`
	Exchange   Exchange   `yaml:"exchange"`
	Strategy   Strategy   `yaml:"strategy"`
	Indicators Indicators `yaml:"indicators"`
	Risk       Risk       `yaml:"risk"`
	Paper      Paper      `yaml:"paper"`
	Store      Store      `yaml:"store"`
}

// Default returns the setup the strategy was tuned with: 4h BTCUSDT bars,
// a 26 bar displacement and a 100k paper account.
func Default() *Config {
	return &Config{
		App: App{Name: "chikoubot", Env: "dev", MetricsAddr: ":9102", LogLevel: "info", LogFormat: "json"},
		Exchange: Exchange{
			Name:         "binance",
			Symbols:      []string{"BTCUSDT"},
			Interval:     4 * time.Hour,
			FeedInterval: 4 * time.Hour,
			RESTURL:      "https://api.binance.com",
			WSURL:        "wss://stream.binance.com:9443",
			RateLimitRPS: 10,
		},
		Strategy: Strategy{
			Mode: "chikou",
			Chikou: Chikou{
				Displacement:       26,
				ConfirmOnClose:     true,
				Retests:            true,
				RetestMinDelayBars: 2,
				NeutralResetBars:   60,
				UseVolume:          true,
				VolumeSensitivity:  0.35,
				VolumeCap:          3,
				PositionSize:       0.8,
				MinSignalInterval:  12 * time.Hour,
				TickSize:           0.01,
			},
			Momentum: Momentum{
				ChikouPeriod:      26,
				BBPeriod:          20,
				BBStdDev:          2,
				PositionSize:      0.8,
				MinSignalInterval: 12 * time.Hour,
			},
		},
		Indicators: Indicators{Tenkan: 9, Kijun: 26, SenkouB: 52, Displacement: 26, VolumeLookback: 20},
		Risk:       Risk{KillSwitchDrawdown: 0.5},
		Paper: Paper{
			StartingCash: 100_000,
			SlippageBps:  2,
			LotSize:      0.00001,
			FillsPath:    "data/fills.jsonl",
		},
		Store: Store{Backend: "file", Dir: "data/state", KeyPrefix: "chikoubot"},
	}
}

// Validate checks the values the engine cannot run without.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.Exchange.Name {
	case "stub", "csv", "binance":
	default:
		errs = append(errs, fmt.Errorf("exchange.name %q is not one of stub, csv, binance", c.Exchange.Name))
	}
	check(len(c.Exchange.Symbols) > 0, "exchange.symbols is empty")
	check(c.Exchange.Interval > 0, "exchange.interval must be positive")
	check(c.Exchange.FeedInterval <= c.Exchange.Interval, "exchange.feed_interval %s exceeds interval %s", c.Exchange.FeedInterval, c.Exchange.Interval)
	check(c.Exchange.Name != "csv" || c.Exchange.CSVPath != "", "exchange.csv_path is required for the csv feed")

	switch c.Strategy.Mode {
	case "", "chikou", "momentum", "chikou_momentum", "bollinger":
	default:
		errs = append(errs, fmt.Errorf("strategy.mode %q is unknown", c.Strategy.Mode))
	}
	ch := c.Strategy.Chikou
	check(ch.Displacement > 0, "strategy.chikou.displacement must be positive")
	check(ch.RetestMinDelayBars >= 0, "strategy.chikou.retest_min_delay_bars must not be negative")
	check(ch.NeutralResetBars > 0, "strategy.chikou.neutral_reset_bars must be positive")
	check(ch.VolumeCap >= 1, "strategy.chikou.volume_cap must be at least 1")
	check(ch.VolumeSensitivity >= 0, "strategy.chikou.volume_sensitivity must not be negative")
	check(ch.PositionSize > 0 && ch.PositionSize <= 1, "strategy.chikou.position_size must be in (0, 1]")
	check(ch.MinSignalInterval >= 0, "strategy.chikou.min_signal_interval must not be negative")
	check(ch.TickSize >= 0, "strategy.chikou.tick_size must not be negative")
	mo := c.Strategy.Momentum
	check(mo.ChikouPeriod > 0 && mo.BBPeriod > 0, "strategy.momentum periods must be positive")
	check(mo.PositionSize > 0 && mo.PositionSize <= 1, "strategy.momentum.position_size must be in (0, 1]")

	in := c.Indicators
	check(in.Tenkan > 0 && in.Kijun > 0 && in.SenkouB > 0 && in.Displacement > 0, "indicators periods must be positive")
	check(in.VolumeLookback > 0, "indicators.volume_lookback must be positive")
	check(in.Displacement == ch.Displacement, "indicators.displacement %d differs from strategy.chikou.displacement %d", in.Displacement, ch.Displacement)

	check(c.Paper.StartingCash > 0, "paper.starting_cash must be positive")
	check(c.Paper.SlippageBps >= 0, "paper.slippage_bps must not be negative")
	check(c.Paper.LotSize >= 0, "paper.lot_size must not be negative")
	check(c.Risk.KillSwitchDrawdown >= 0 && c.Risk.KillSwitchDrawdown < 1, "risk.kill_switch_drawdown must be in [0, 1)")

	switch c.Store.Backend {
	case "", "memory":
	case "file":
		check(c.Store.Dir != "", "store.dir is required for the file backend")
	case "redis":
		check(c.Store.RedisAddr != "", "store.redis_addr is required for the redis backend")
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not one of memory, file, redis", c.Store.Backend))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Load reads a YAML file from disk on top of Default and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
