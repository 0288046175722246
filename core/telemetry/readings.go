package telemetry

import (
	"github.com/medbot/rounds/core/fanout"
	"github.com/medbot/rounds/core/model"
)

// Robot is the latest robot telemetry.
type Robot struct {
	Name              string `json:"robot_name"`
	Battery           int    `json:"robot_battery"`
	Break             bool   `json:"robot_break"`
	Emergency         bool   `json:"robot_emergency"`
	PhysicalEmergency bool   `json:"robot_physical_emergency"`
	InDock            bool   `json:"robot_in_dock"`
	Charging          bool   `json:"robot_is_charging"`
	PowerStage        string `json:"robot_power_stage"`
	SleepMode         string `json:"robot_sleep_mode"`
	DoorOpening       bool   `json:"robot_door_opening"`
	DoorClosing       bool   `json:"robot_door_closing"`
	LatestRoom        string `json:"latest_room_reached"`
	LatestBed         string `json:"latest_bed_reached"`
	Status            bool   `json:"status"`
	Volume            int    `json:"volume"`
}

// DefaultRobot is the state before any report arrives.
func DefaultRobot() Robot { return Robot{Name: "Med Bot", Status: true} }

// RobotPatch carries a partial robot report. Nil fields are left unchanged.
type RobotPatch struct {
	Name              *string `json:"robot_name"`
	Battery           *int    `json:"robot_battery"`
	Break             *bool   `json:"robot_break"`
	Emergency         *bool   `json:"robot_emergency"`
	PhysicalEmergency *bool   `json:"robot_physical_emergency"`
	InDock            *bool   `json:"robot_in_dock"`
	Charging          *bool   `json:"robot_is_charging"`
	PowerStage        *string `json:"robot_power_stage"`
	SleepMode         *string `json:"robot_sleep_mode"`
	DoorOpening       *bool   `json:"robot_door_opening"`
	DoorClosing       *bool   `json:"robot_door_closing"`
	Status            *bool   `json:"status"`
	Volume            *int    `json:"volume"`
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (p RobotPatch) apply(r *Robot) error {
	if p.Volume != nil && (*p.Volume < 0 || *p.Volume > 100) {
		return model.Invalid("volume", "must be between 0 and 100")
	}
	if p.Battery != nil && (*p.Battery < 0 || *p.Battery > 100) {
		return model.Invalid("robot_battery", "must be between 0 and 100")
	}
	set(&r.Name, p.Name)
	set(&r.Battery, p.Battery)
	set(&r.Break, p.Break)
	set(&r.Emergency, p.Emergency)
	set(&r.PhysicalEmergency, p.PhysicalEmergency)
	set(&r.InDock, p.InDock)
	set(&r.Charging, p.Charging)
	set(&r.PowerStage, p.PowerStage)
	set(&r.SleepMode, p.SleepMode)
	set(&r.DoorOpening, p.DoorOpening)
	set(&r.DoorClosing, p.DoorClosing)
	set(&r.Status, p.Status)
	set(&r.Volume, p.Volume)
	return nil
}

// ArmEndpose is the arm end effector pose.
type ArmEndpose struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	RX float64 `json:"rx"`
	RY float64 `json:"ry"`
	RZ float64 `json:"rz"`
}

// EndposePatch is a partial ArmEndpose.
type EndposePatch struct {
	X  *float64 `json:"x"`
	Y  *float64 `json:"y"`
	Z  *float64 `json:"z"`
	RX *float64 `json:"rx"`
	RY *float64 `json:"ry"`
	RZ *float64 `json:"rz"`
}

func (p EndposePatch) apply(e *ArmEndpose) error {
	set(&e.X, p.X)
	set(&e.Y, p.Y)
	set(&e.Z, p.Z)
	set(&e.RX, p.RX)
	set(&e.RY, p.RY)
	set(&e.RZ, p.RZ)
	return nil
}

// Joints holds one reading per arm joint.
type Joints struct {
	J1 float64 `json:"j1"`
	J2 float64 `json:"j2"`
	J3 float64 `json:"j3"`
	J4 float64 `json:"j4"`
	J5 float64 `json:"j5"`
	J6 float64 `json:"j6"`
}

// JointsPatch is a partial Joints.
type JointsPatch struct {
	J1 *float64 `json:"j1"`
	J2 *float64 `json:"j2"`
	J3 *float64 `json:"j3"`
	J4 *float64 `json:"j4"`
	J5 *float64 `json:"j5"`
	J6 *float64 `json:"j6"`
}

func (p JointsPatch) apply(j *Joints) error {
	set(&j.J1, p.J1)
	set(&j.J2, p.J2)
	set(&j.J3, p.J3)
	set(&j.J4, p.J4)
	set(&j.J5, p.J5)
	set(&j.J6, p.J6)
	return nil
}

func (j Joints) fields() map[string]any {
	return map[string]any{"j1": j.J1, "j2": j.J2, "j3": j.J3, "j4": j.J4, "j5": j.J5, "j6": j.J6}
}

// JointKind names a per-joint reading.
type JointKind string

const (
	JointVelocity JointKind = "velocity"
	JointEffort   JointKind = "effort"
	JointPosition JointKind = "position"
	JointHeat     JointKind = "heat"
)

// JointKinds lists every kind in a stable order.
var JointKinds = []JointKind{JointVelocity, JointEffort, JointPosition, JointHeat}

// Group returns the fan-out group announcing readings of k.
func (k JointKind) Group() string {
	switch k {
	case JointVelocity:
		return fanout.GroupJointVelocity
	case JointEffort:
		return fanout.GroupJointEffort
	case JointPosition:
		return fanout.GroupJointPosition
	case JointHeat:
		return fanout.GroupJointHeat
	}
	return ""
}

// ParseJointKind validates a kind received from a caller.
func ParseJointKind(s string) (JointKind, error) {
	for _, k := range JointKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", model.Invalid("kind", "unknown joint reading "+s)
}
