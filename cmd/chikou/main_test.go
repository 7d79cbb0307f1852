package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chikoubot-go/internal/exchange"
	"chikoubot-go/internal/paper"
	sig "chikoubot-go/internal/signal"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2024-03-01")
	if err != nil || !got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected %v %v", got, err)
	}
	if _, err := parseDate("2024-03-01T04:00:00Z"); err != nil {
		t.Fatalf("RFC3339 rejected: %v", err)
	}
	if _, err := parseDate("March 1st"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.Exchange.Symbols[0] != "BTCUSDT" {
		t.Fatalf("expected defaults, got %+v", cfg.Exchange)
	}
	if _, err := loadConfig("elsewhere.yaml"); err == nil {
		t.Fatalf("explicit missing config should fail")
	}
}

func TestBacktestCommandReplaysCSV(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []sig.Bar
	for n := 1; n <= 101; n++ {
		px := 100.0
		if n == 101 {
			px = 110
		}
		bars = append(bars, sig.Bar{
			Symbol: "BTCUSDT", Open: 100, High: px, Low: 100, Close: px, Volume: 10,
			End: start.Add(time.Duration(n) * 4 * time.Hour),
		})
	}
	csvPath := filepath.Join(dir, "bars.csv")
	if err := exchange.WriteCSV(csvPath, bars); err != nil {
		t.Fatalf("WriteCSV returned error: %v", err)
	}
	fills := filepath.Join(dir, "fills.csv")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"backtest", "--csv", csvPath, "--fills", fills, "--log-level", "warn"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("backtest returned error: %v", err)
	}

	got, err := paper.ReadCSV(fills)
	if err != nil {
		t.Fatalf("ReadCSV returned error: %v", err)
	}
	if len(got) != 1 || !strings.Contains(got[0].Reason, "BULLISH BREAKOUT") {
		t.Fatalf("expected one breakout fill, got %+v", got)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("app: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"config", "init", "--config", path})
	if err := rootCmd.Execute(); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
}
