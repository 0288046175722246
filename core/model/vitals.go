package model

import (
	"time"
	"unicode/utf8"
)

// MaxVitalLen bounds each reported BP2 value.
const MaxVitalLen = 20

// Bp2Values are the readings of a BP2 CheckMe monitor, kept as the device
// prints them.
type Bp2Values struct {
	Sys           string `json:"sys"`
	Dia           string `json:"dia"`
	Map           string `json:"map"`
	PulseRateNote string `json:"pulse_rate_note"`
}

// Validate checks the length of every value.
func (v Bp2Values) Validate() error {
	for _, f := range []struct{ name, val string }{
		{"sys", v.Sys}, {"dia", v.Dia}, {"map", v.Map}, {"pulse_rate_note", v.PulseRateNote},
	} {
		if utf8.RuneCountInString(f.val) > MaxVitalLen {
			return Invalid(f.name, "must be at most 20 characters")
		}
	}
	return nil
}

// Bp2Reading is one blood pressure reading taken for a patient.
type Bp2Reading struct {
	ID          int64  `json:"id"`
	PatientID   int64  `json:"patient"`
	PatientName string `json:"patient_name"`
	Bp2Values
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
