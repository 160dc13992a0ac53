package severity

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// LoadRanges reads a severity table with low,high,label columns.
func LoadRanges(path string) ([]Range, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open severity table: %w", err)
	}
	defer file.Close()

	var ranges []Range
	if err := gocsv.UnmarshalFile(file, &ranges); err != nil {
		return nil, fmt.Errorf("failed to read severity table %s: %w", path, err)
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("severity table %s has no ranges", path)
	}
	return ranges, nil
}

// WriteReport saves results as CSV, replacing any existing report.
func WriteReport(path string, results []Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create area report: %w", err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&results, file); err != nil {
		return fmt.Errorf("failed to write area report: %w", err)
	}
	return nil
}
