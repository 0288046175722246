package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRowNumber(t *testing.T) {
	cases := map[string]int{
		"room_7":  7,
		"room_12": 12,
		"ward":    0,
		"":        0,
		"room_3a": 0,
		"99":      99,
	}
	cases["room_"+strings.Repeat("9", 30)] = 0
	for name, want := range cases {
		if got := RowNumber(name); got != want {
			t.Errorf("RowNumber(%q) = %d, want %d", name, got, want)
		}
	}
	if RoomName(RowNumber("room_5")) != "room_5" {
		t.Fatalf("RoomName is not the inverse of RowNumber")
	}
}

func TestWeekdaysOnAndSet(t *testing.T) {
	var w Weekdays
	if w.Any() {
		t.Fatalf("zero value should have no days")
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		w.Set(d, true)
		if !w.On(d) {
			t.Fatalf("%s not set", d)
		}
		w.Set(d, false)
		if w.On(d) {
			t.Fatalf("%s not cleared", d)
		}
	}
	w.Monday = true
	b := Batch{Days: w}
	if !b.RunsOn(time.Monday) || b.RunsOn(time.Tuesday) {
		t.Fatalf("unexpected RunsOn result")
	}
	b.Stopped = true
	if b.RunsOn(time.Monday) {
		t.Fatalf("stopped batch must not run")
	}
}

func TestClockTime(t *testing.T) {
	c, err := ParseClockTime("06:00:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Hour != 6 || c.Minute != 0 {
		t.Fatalf("unexpected %v", c)
	}
	loc := time.FixedZone("site", 3600)
	if !c.Matches(time.Date(2024, 1, 1, 6, 0, 59, 0, loc)) {
		t.Fatalf("expected match within minute")
	}
	if c.Matches(time.Date(2024, 1, 1, 6, 1, 0, 0, loc)) {
		t.Fatalf("unexpected match")
	}
	b, _ := json.Marshal(c)
	if string(b) != `"06:00"` {
		t.Fatalf("marshal: %s", b)
	}
	var back ClockTime
	if err := json.Unmarshal([]byte(`"23:59"`), &back); err != nil || back != (ClockTime{23, 59}) {
		t.Fatalf("unmarshal: %v %v", back, err)
	}
	if _, err := ParseClockTime("25:99"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBatchValidate(t *testing.T) {
	b := Batch{Name: "morning round", TimeSlot: TimeSlotMorning, TriggerTime: ClockTime{6, 0}}
	if err := b.Validate(); err != nil {
		t.Fatalf("valid batch: %v", err)
	}
	b.TimeSlot = "brunch"
	var ve *ValidationError
	if err := b.Validate(); !errors.As(err, &ve) || ve.Field != "time_slot" {
		t.Fatalf("expected time_slot error, got %v", err)
	}
}

func TestAlertValidate(t *testing.T) {
	a := AlertHistory{Room: "room_1", Bed: "bed_1", Help: true}
	if err := a.Validate(); err != nil {
		t.Fatalf("valid alert: %v", err)
	}
	if a.Kind() != "help" {
		t.Fatalf("kind %s", a.Kind())
	}
	a.NotMe = true
	if err := a.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("two flags must fail, got %v", err)
	}
	a = AlertHistory{Room: "room_1", Bed: "bed_1"}
	if err := a.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("no flag must fail, got %v", err)
	}
	a = AlertHistory{Bed: "bed_1", Help: true}
	if err := a.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing room must fail")
	}
}
