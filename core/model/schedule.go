package model

import (
	"regexp"
	"strconv"
	"time"
)

// ScheduledSlot places a patient in a batch. RowNumber is derived from the
// patient's room and ScheduleOrder is shared by all rows of the same room.
type ScheduledSlot struct {
	ID            int64     `json:"id"`
	PatientID     int64     `json:"patient_id"`
	BatchID       int64     `json:"batch_id"`
	RowNumber     int       `json:"row_number"`
	ScheduleOrder int       `json:"schedule_order"`
	Active        bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// ScheduledSlotView is a scheduled row joined with its patient and slot.
type ScheduledSlotView struct {
	ScheduledSlot
	PatientRef string `json:"patient_ref"`
	Patient    string `json:"patient_name"`
	RoomName   string `json:"room_name"`
	BedName    string `json:"bed_name"`
	Pose       Pose   `json:"pose"`
	BatchName  string `json:"batch_name"`
	SlotID     *int64 `json:"slot_id"`
}

// DispatchRow is the flattened input of the dispatch plan builder.
type DispatchRow struct {
	ScheduledID   int64
	RowNumber     int
	ScheduleOrder int
	PatientID     int64
	RoomName      string
	BedName       string
	Pose          Pose
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// RowNumber extracts the trailing integer of a room name. Names without
// trailing digits, or with a number that does not fit an int, yield 0.
func RowNumber(roomName string) int {
	m := trailingDigits.FindStringSubmatch(roomName)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// RoomName is the inverse of RowNumber for conventionally named rooms.
func RoomName(row int) string { return "room_" + strconv.Itoa(row) }
