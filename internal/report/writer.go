package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
)

// TimestampLayout is the suffix format of every report file name
const TimestampLayout = "20060102_150405"

// TimestampedName returns "<prefix>_<YYYYMMDD_HHMMSS>.<ext>"
func TimestampedName(prefix, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, t.Format(TimestampLayout), ext)
}

// ensureDir creates the parent directory of path
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// WriteCSV writes rows, a slice of tagged structs, to path with a header line.
// An empty slice still produces the header.
func WriteCSV(path string, rows interface{}) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(rows, f); err != nil {
		return fmt.Errorf("failed to write CSV %s: %w", path, err)
	}
	return f.Close()
}

// ReadCSV parses a CSV file written by WriteCSV into out, a pointer to a slice
func ReadCSV(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("failed to parse CSV %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes v to path as an indented JSON document
func WriteJSON(path string, v interface{}) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}
