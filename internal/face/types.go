// Package face implements the enrollment, matching and verification side of
// the attendance backend: it stores one embedding per student, ranks gallery
// candidates by cosine distance, and keeps the verification counters that
// drive lockout.
package face

import "fmt"

// Ratio is a similarity confidence on the 0-1 scale as produced by the
// matcher (1 - cosine distance). Percent is the 0-100 scale the verification
// API speaks. They are distinct types so the two scales can never be mixed
// without an explicit conversion.
type Ratio float64

// Percent is a confidence score on the 0-100 scale.
type Percent float64

// Percent converts a matcher ratio to the percent scale.
func (r Ratio) Percent() Percent {
	return Percent(float64(r) * 100)
}

// Valid reports whether the percent score is inside the accepted input range.
func (p Percent) Valid() bool {
	return p >= 0 && p <= 100
}

func (p Percent) String() string {
	return fmt.Sprintf("%.2f%%", float64(p))
}

// Candidate is one gallery match returned by the Matcher, best match first.
type Candidate struct {
	NIM        string  `json:"nim"`
	Distance   float64 `json:"distance"`
	Confidence Ratio   `json:"confidence"`
}
