package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"chikoubot-go/internal/config"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== Chikou Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit bankroll and risk knobs")
		fmt.Println("3) Edit breakout engine settings")
		fmt.Println("4) Save config")
		fmt.Println("5) Launch paper bot")
		fmt.Println("6) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editRisk(reader, cfg)
		case "3":
			editEngine(reader, cfg)
		case "4":
			if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "5":
			launchPaper(reader)
		case "6":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Feed: %s %s every %s (consolidated from %s)\n", cfg.Exchange.Name, strings.Join(cfg.Exchange.Symbols, ", "), cfg.Exchange.Interval, cfg.Exchange.FeedInterval)
	fmt.Printf("Starting cash: $%.2f | slippage %.1f bps | lot %g\n", cfg.Paper.StartingCash, cfg.Paper.SlippageBps, cfg.Paper.LotSize)
	fmt.Printf("Per-symbol position cap: %g\n", cfg.Paper.MaxPositionPerSymbol)
	fmt.Printf("Per-trade notional cap: $%.2f\n", cfg.Risk.MaxNotionalPerTrade)
	fmt.Printf("Kill switch drawdown: %.2f%%\n", cfg.Risk.KillSwitchDrawdown*100)
	ch := cfg.Strategy.Chikou
	fmt.Printf("Strategy: %s | displacement %d | bodies %t | confirm on close %t\n", cfg.Strategy.Mode, ch.Displacement, ch.UseBodies, ch.ConfirmOnClose)
	fmt.Printf("Retests %t (after %d bars) | neutral reset after %d bars | cooldown %s\n", ch.Retests, ch.RetestMinDelayBars, ch.NeutralResetBars, ch.MinSignalInterval)
	fmt.Printf("Position size: %.0f%% | volume sensitivity %.2f cap %.1f\n", ch.PositionSize*100, ch.VolumeSensitivity, ch.VolumeCap)
	fmt.Printf("Checkpoints: %s\n", cfg.Store.Backend)
}

func editRisk(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Risk / Bankroll ---")
	cfg.Paper.StartingCash = promptFloat(reader, "Starting cash", cfg.Paper.StartingCash)
	cfg.Paper.MaxPositionPerSymbol = promptFloat(reader, "Max position per symbol (units, 0 = none)", cfg.Paper.MaxPositionPerSymbol)
	cfg.Paper.SlippageBps = promptFloat(reader, "Slippage (bps)", cfg.Paper.SlippageBps)
	cfg.Risk.MaxNotionalPerTrade = promptFloat(reader, "Max notional per trade (USD, 0 = none)", cfg.Risk.MaxNotionalPerTrade)
	cfg.Risk.KillSwitchDrawdown = promptPercent(reader, "Kill switch drawdown (%)", cfg.Risk.KillSwitchDrawdown)
}

func editEngine(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Breakout Engine ---")
	fmt.Printf("Current symbols: %s\n", strings.Join(cfg.Exchange.Symbols, ", "))
	fmt.Print("Enter symbol (blank to keep): ")
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		cfg.Exchange.Symbols = []string{strings.ToUpper(strings.TrimSpace(line))}
	}
	ch := &cfg.Strategy.Chikou
	ch.Displacement = int(promptFloat(reader, "Displacement (bars)", float64(ch.Displacement)))
	// the cloud and the lagging line share one displacement
	cfg.Indicators.Displacement = ch.Displacement
	ch.RetestMinDelayBars = int(promptFloat(reader, "Retest minimum delay (bars)", float64(ch.RetestMinDelayBars)))
	ch.NeutralResetBars = int(promptFloat(reader, "Neutral reset after (bars)", float64(ch.NeutralResetBars)))
	ch.PositionSize = promptPercent(reader, "Position size (% of equity)", ch.PositionSize)
	ch.VolumeSensitivity = promptFloat(reader, "Volume sensitivity", ch.VolumeSensitivity)
	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
	}
}

func launchPaper(reader *bufio.Reader) {
	fmt.Println("Launching paper bot (Ctrl+C to stop)...")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/chikou", "paper", "--config", locateConfig())
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start bot: %v\n", err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop the bot and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func promptPercent(reader *bufio.Reader, label string, current float64) float64 {
	pct := promptFloat(reader, label, current*100)
	return pct / 100
}

func loadConfig() (*config.Config, error) {
	return config.Load(locateConfig())
}

func saveConfig(cfg *config.Config) error {
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	if filepath.IsAbs(defaultConfigPath) {
		return defaultConfigPath
	}
	return filepath.Clean(defaultConfigPath)
}
