package model

// Pose is a robot pose on the site map.
type Pose struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Yaw float64 `json:"yaw"`
}

// Room is a ward room. Names follow the room_<n> convention.
type Room struct {
	ID     int64  `json:"id"`
	Name   string `json:"room_name"`
	Active bool   `json:"is_active"`
}

// Bed is a bed label shared across rooms.
type Bed struct {
	ID     int64  `json:"id"`
	Name   string `json:"bed_name"`
	Active bool   `json:"is_active"`
}

// Slot is a physical (room, bed) position the robot can stop at.
type Slot struct {
	ID       int64  `json:"id"`
	RoomID   *int64 `json:"room_id"`
	BedID    *int64 `json:"bed_id"`
	RoomName string `json:"room_name"`
	BedName  string `json:"bed_name"`
	Pose
	Active bool `json:"is_active"`
}

// RoomWaypoint holds the entry and exit poses of a room.
type RoomWaypoint struct {
	ID       int64  `json:"id"`
	RoomID   int64  `json:"room_id"`
	RoomName string `json:"room_name"`
	Entry    Pose   `json:"entry"`
	Exit     Pose   `json:"exit"`
	Active   bool   `json:"is_active"`
}

// Patient is a person occupying at most one slot.
type Patient struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"patient_id"`
	Name       string `json:"name"`
	Gender     string `json:"gender"`
	Age        int    `json:"age"`
	Active     bool   `json:"is_active"`
	SlotID     *int64 `json:"slot_assigned"`
}

// PatientView is a patient joined with the slot it currently occupies.
type PatientView struct {
	Patient
	Slot *Slot `json:"slot"`
}
