package attend

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
)

var csvHeader = []string{
	"User ID",
	"Timestamp",
	"Status",
	"Status Text",
	"Verification",
	"Workcode",
	"Received At",
}

// ExportFilename returns the canonical attendance export name, e.g.
// all_attendance_20260115_093045.csv.
func ExportFilename(now time.Time) string {
	return "all_attendance_" + now.Format("20060102_150405") + ".csv"
}

// WriteCSV writes records as CSV with the canonical header row.
func WriteCSV(w io.Writer, records []*Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.UserID,
			r.Timestamp,
			r.Status,
			r.StatusText,
			r.Verification,
			r.Workcode,
			r.ReceivedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVGzip writes the same CSV through a gzip stream.
func WriteCSVGzip(w io.Writer, records []*Record) error {
	gz := gzip.NewWriter(w)
	if err := WriteCSV(gz, records); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}
