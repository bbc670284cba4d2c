package csvio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strconv"

	"github.com/ruralpay/txengine/internal/models"
	"github.com/shopspring/decimal"
)

// Precision is the number of decimal places amounts are written with.
const Precision = 4

// Format selects how snapshots are serialized.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat returns FormatCSV for an empty string.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

// SnapshotWriter serializes account snapshots.
type SnapshotWriter struct {
	Format Format
}

// Write drains snapshots into out.
func (w *SnapshotWriter) Write(out io.Writer, snapshots iter.Seq[models.Snapshot]) error {
	switch w.Format {
	case FormatJSON:
		return writeJSON(out, snapshots)
	case FormatCSV, "":
		return writeCSV(out, snapshots)
	default:
		return fmt.Errorf("unsupported output format %q", w.Format)
	}
}

func writeCSV(out io.Writer, snapshots iter.Seq[models.Snapshot]) error {
	writer := csv.NewWriter(out)

	header := []string{"client", "available", "held", "total", "locked"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for s := range snapshots {
		row := []string{
			strconv.FormatUint(uint64(s.Client), 10),
			FormatAmount(s.Available),
			FormatAmount(s.Held),
			FormatAmount(s.Total),
			strconv.FormatBool(s.Locked),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// JSONSnapshot carries amounts as fixed-precision strings.
type JSONSnapshot struct {
	Client    uint16 `json:"client"`
	Available string `json:"available"`
	Held      string `json:"held"`
	Total     string `json:"total"`
	Locked    bool   `json:"locked"`
}

// JSONSnapshots converts snapshots to their fixed-precision JSON shape.
func JSONSnapshots(snapshots iter.Seq[models.Snapshot]) []JSONSnapshot {
	rows := []JSONSnapshot{}
	for s := range snapshots {
		rows = append(rows, JSONSnapshot{
			Client:    s.Client,
			Available: FormatAmount(s.Available),
			Held:      FormatAmount(s.Held),
			Total:     FormatAmount(s.Total),
			Locked:    s.Locked,
		})
	}
	return rows
}

func writeJSON(out io.Writer, snapshots iter.Seq[models.Snapshot]) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(JSONSnapshots(snapshots)); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

// FormatAmount renders an amount rounded to Precision decimal places.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(Precision)
}
