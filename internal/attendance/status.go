// Package attendance implements the per-session attendance lifecycle: bulk
// record generation for a class meeting, explicit status marking, and the
// lazy expiry sweep that turns stale unmarked records absent.
package attendance

import "fmt"

// Status is the closed set of per-student attendance states. The wire
// values ("Belum Absen", "Hadir", "Alfa") are kept for compatibility with
// the existing mobile and web clients.
type Status string

const (
	// StatusUnmarked is the initial state of every generated record.
	StatusUnmarked Status = "Belum Absen"
	// StatusPresent is set by an explicit check-in.
	StatusPresent Status = "Hadir"
	// StatusAbsent is set explicitly or by the expiry sweep.
	StatusAbsent Status = "Alfa"
)

// ParseStatus validates external input. Only the explicit states are
// accepted; callers cannot reset a record to unmarked.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPresent, StatusAbsent:
		return Status(s), nil
	case StatusUnmarked:
		return "", fmt.Errorf("status %q cannot be set explicitly", s)
	default:
		return "", fmt.Errorf("unknown status %q, want %q or %q", s, StatusPresent, StatusAbsent)
	}
}

// Valid reports whether the status is one of the known states, including
// the initial unmarked state.
func (s Status) Valid() bool {
	switch s {
	case StatusUnmarked, StatusPresent, StatusAbsent:
		return true
	}
	return false
}
