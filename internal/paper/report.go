package paper

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"chikoubot-go/internal/execution"
)

// WriteCSV stores fills as a CSV report with a header row.
func WriteCSV(path string, fills []execution.Fill) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create fill report: %w", err)
	}
	if err := gocsv.MarshalFile(&fills, file); err != nil {
		file.Close()
		return fmt.Errorf("write fill report: %w", err)
	}
	return file.Close()
}

// ReadCSV loads a report written by WriteCSV.
func ReadCSV(path string) ([]execution.Fill, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var fills []execution.Fill
	if err := gocsv.UnmarshalFile(file, &fills); err != nil {
		return nil, fmt.Errorf("read fill report: %w", err)
	}
	return fills, nil
}
