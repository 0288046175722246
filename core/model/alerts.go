package model

import "time"

// AlertHistory records a help or timeout event raised at a bed.
// Exactly one of TimedOut, Help, Cancelled and NotMe is set.
type AlertHistory struct {
	ID         int64     `json:"id"`
	Room       string    `json:"room" binding:"required"`
	Bed        string    `json:"bed" binding:"required"`
	Reason     string    `json:"reason"`
	Responded  bool      `json:"responded"`
	TimedOut   bool      `json:"is_timed_out"`
	Help       bool      `json:"is_help"`
	Cancelled  bool      `json:"is_cancelled"`
	NotMe      bool      `json:"not_me"`
	PatientPop bool      `json:"is_patient_pop"`
	CreatedAt  time.Time `json:"created_at"`
}

// Kind returns the name of the flag set on the alert.
func (a AlertHistory) Kind() string {
	switch {
	case a.TimedOut:
		return "timed_out"
	case a.Help:
		return "help"
	case a.Cancelled:
		return "cancelled"
	case a.NotMe:
		return "not_me"
	}
	return ""
}

// Validate enforces the room/bed requirement and the single-flag rule.
func (a AlertHistory) Validate() error {
	if a.Room == "" {
		return Invalid("room", "required")
	}
	if a.Bed == "" {
		return Invalid("bed", "required")
	}
	n := 0
	for _, f := range []bool{a.TimedOut, a.Help, a.Cancelled, a.NotMe} {
		if f {
			n++
		}
	}
	if n != 1 {
		return Invalid("flags", "exactly one of is_timed_out, is_help, is_cancelled, not_me must be true")
	}
	return nil
}

// FailedSchedule records a visit the robot could not complete.
type FailedSchedule struct {
	ID        int64     `json:"id"`
	Room      string    `json:"room_name"`
	Bed       string    `json:"bed_name"`
	Reason    string    `json:"reason"`
	Responded bool      `json:"responded"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SchedulerLog is the outcome of one bed visit during a round.
type SchedulerLog struct {
	ID         int64     `json:"id"`
	RoomID     *int64    `json:"room_id"`
	BedID      *int64    `json:"bed_id"`
	BatchID    int64     `json:"batch_id"`
	Successful bool      `json:"is_successful"`
	Attended   bool      `json:"is_attended"`
	Failed     bool      `json:"is_failed"`
	Timeout    bool      `json:"is_timeout"`
	NotPatient bool      `json:"not_patient"`
	CreatedAt  time.Time `json:"created_at"`
}

// Page selects a window of a listing.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 || p.Limit > 500 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
