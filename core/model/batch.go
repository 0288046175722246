package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeSlot is the part of day a batch belongs to.
type TimeSlot string

const (
	TimeSlotMorning   TimeSlot = "morning"
	TimeSlotAfternoon TimeSlot = "afternoon"
	TimeSlotEvening   TimeSlot = "evening"
	TimeSlotNight     TimeSlot = "night"
)

// Valid reports whether s is a known time slot.
func (s TimeSlot) Valid() bool {
	switch s {
	case TimeSlotMorning, TimeSlotAfternoon, TimeSlotEvening, TimeSlotNight:
		return true
	}
	return false
}

// Weekdays flags the days a batch runs on.
type Weekdays struct {
	Monday    bool `json:"monday"`
	Tuesday   bool `json:"tuesday"`
	Wednesday bool `json:"wednesday"`
	Thursday  bool `json:"thursday"`
	Friday    bool `json:"friday"`
	Saturday  bool `json:"saturday"`
	Sunday    bool `json:"sunday"`
}

// On returns the flag for d.
func (w Weekdays) On(d time.Weekday) bool {
	switch d {
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	case time.Sunday:
		return w.Sunday
	}
	return false
}

// Set updates the flag for d.
func (w *Weekdays) Set(d time.Weekday, on bool) {
	switch d {
	case time.Monday:
		w.Monday = on
	case time.Tuesday:
		w.Tuesday = on
	case time.Wednesday:
		w.Wednesday = on
	case time.Thursday:
		w.Thursday = on
	case time.Friday:
		w.Friday = on
	case time.Saturday:
		w.Saturday = on
	case time.Sunday:
		w.Sunday = on
	}
}

// Any reports whether at least one day is flagged.
func (w Weekdays) Any() bool {
	return w.Monday || w.Tuesday || w.Wednesday || w.Thursday || w.Friday || w.Saturday || w.Sunday
}

// ClockTime is a wall-clock hour and minute in the site timezone.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM" or "HH:MM:SS". Seconds are ignored.
func ParseClockTime(s string) (ClockTime, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return ClockTime{}, Invalid("trigger_time", fmt.Sprintf("invalid time %q", s))
}

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// Matches reports whether t falls in the same hour and minute.
func (c ClockTime) Matches(t time.Time) bool {
	return t.Hour() == c.Hour && t.Minute() == c.Minute
}

// Valid reports whether the hour and minute are in range.
func (c ClockTime) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

func (c ClockTime) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

func (c *ClockTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Batch is a named recurring round.
type Batch struct {
	ID          int64      `json:"id"`
	Name        string     `json:"batch_name"`
	TimeSlot    TimeSlot   `json:"time_slot"`
	Days        Weekdays   `json:"days"`
	TriggerTime ClockTime  `json:"trigger_time"`
	Stopped     bool       `json:"is_stopped"`
	Notified    bool       `json:"is_notified"`
	CompletedAt *time.Time `json:"completed_time"`
	CreatedAt   time.Time  `json:"created_at"`
}

// RunsOn reports whether the batch is due on d. Stopped batches never run.
func (b Batch) RunsOn(d time.Weekday) bool {
	return !b.Stopped && b.Days.On(d)
}

// Validate checks the fields a batch must carry before it is stored.
func (b Batch) Validate() error {
	if b.Name == "" {
		return Invalid("batch_name", "required")
	}
	if !b.TimeSlot.Valid() {
		return Invalid("time_slot", fmt.Sprintf("unknown time slot %q", b.TimeSlot))
	}
	if !b.TriggerTime.Valid() {
		return Invalid("trigger_time", "out of range")
	}
	return nil
}
