// Package attend ingests attendance events pushed by biometric terminals.
//
// Terminals upload ATTLOG batches as tab-separated lines. Parsing is
// tolerant: a batch is never rejected because one line is bad, and duplicate
// events (device retries, overlapping uploads) are dropped by a stable
// per-event key. Accepted records land in a Redis-backed capped log with
// per-day and per-user counters.
package attend

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedLine is returned when an ATTLOG line cannot be parsed.
var ErrMalformedLine = errors.New("malformed attendance line")

// Punch status codes as sent by the terminal firmware.
const (
	// StatusCheckIn is an exported constant or variable used by the verification engine.
	StatusCheckIn = "0"
	// StatusCheckOut is an exported constant or variable used by the verification engine.
	StatusCheckOut = "1"
	// StatusBreakOut is an exported constant or variable used by the verification engine.
	StatusBreakOut = "2"
	// StatusBreakIn is an exported constant or variable used by the verification engine.
	StatusBreakIn = "3"
	// StatusOvertimeIn is an exported constant or variable used by the verification engine.
	StatusOvertimeIn = "4"
	// StatusOvertimeOut is an exported constant or variable used by the verification engine.
	StatusOvertimeOut = "5"
	// StatusError is an exported constant or variable used by the verification engine.
	StatusError = "255"
)

var statusTexts = map[string]string{
	StatusCheckIn:     "Check-in",
	StatusCheckOut:    "Check-out",
	StatusBreakOut:    "Break-out",
	StatusBreakIn:     "Break-in",
	StatusOvertimeIn:  "Overtime-in",
	StatusOvertimeOut: "Overtime-out",
	StatusError:       "Error",
}

// StatusText maps a punch status code to its display text. Codes outside the
// firmware vocabulary read "Unknown" rather than failing.
func StatusText(code string) string {
	if text, ok := statusTexts[code]; ok {
		return text
	}
	return "Unknown"
}

// Record is one attendance event. Timestamp stays the device's own string
// ("2006-01-02 15:04:05", device-local clock); ReceivedAt is our clock.
type Record struct {
	UserID       string    `json:"user_id"`
	Timestamp    string    `json:"timestamp"`
	Status       string    `json:"status"`
	StatusText   string    `json:"status_text"`
	Verification string    `json:"verification"`
	Workcode     string    `json:"workcode"`
	ReceivedAt   time.Time `json:"received_at"`
	Raw          string    `json:"-"`
}

// DedupKey identifies an event across uploads. Devices re-send batches after
// connection loss, so the same punch arrives more than once; user, device
// timestamp, and status pin it down.
func (r *Record) DedupKey() string {
	return r.UserID + "_" + r.Timestamp + "_" + r.Status
}

// Day returns the event's calendar day ("2006-01-02") from the device
// timestamp, or "" when the timestamp does not carry a parseable date.
func (r *Record) Day() string {
	if len(r.Timestamp) < 10 {
		return ""
	}
	day := r.Timestamp[:10]
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return ""
	}
	return day
}

// ParseLine parses one tab-separated ATTLOG line:
//
//	<user id> TAB <timestamp> TAB <status> [TAB <verification> [TAB <workcode>]]
func ParseLine(line string, receivedAt time.Time) (*Record, error) {
	parts := strings.Split(line, "\t")
	if len(parts) < 3 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	rec := &Record{
		UserID:     strings.TrimSpace(parts[0]),
		Timestamp:  strings.TrimSpace(parts[1]),
		Status:     strings.TrimSpace(parts[2]),
		ReceivedAt: receivedAt,
		Raw:        line,
	}
	if rec.UserID == "" || rec.Timestamp == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	if len(parts) > 3 {
		rec.Verification = strings.TrimSpace(parts[3])
	}
	if len(parts) > 4 {
		rec.Workcode = strings.TrimSpace(parts[4])
	}
	rec.StatusText = StatusText(rec.Status)

	return rec, nil
}

// ParseBody splits an ATTLOG upload into records, one per non-empty line,
// and counts the lines that did not parse. One bad line never rejects the
// rest of the batch.
func ParseBody(body string, receivedAt time.Time) ([]*Record, int) {
	var (
		records   []*Record
		malformed int
	)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := ParseLine(line, receivedAt)
		if err != nil {
			malformed++
			continue
		}
		records = append(records, rec)
	}
	return records, malformed
}
