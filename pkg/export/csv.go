// Package export writes the tables of a run as CSV files, a plain-text summary
// report and a SHA-256 checksum manifest.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// writeCSV writes header and rows to dir/name.
func writeCSV(dir, name string, header []string, rows [][]string) error {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

// money renders v with exactly two decimals.
func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// ratio renders v with four decimals.
func ratio(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(4)
}

func itoa(v int) string { return strconv.Itoa(v) }

func boolStr(b bool) string { return strconv.FormatBool(b) }

func date(t time.Time) string { return t.Format(dateLayout) }

func optDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func month(t time.Time) string { return t.Format(monthLayout) }
