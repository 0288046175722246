package telemetry

import (
	"strings"
	"time"

	"github.com/medbot/rounds/core/model"
)

// Tracked is a status value with the time it last changed.
type Tracked struct {
	Value     string     `json:"value"`
	ChangedAt *time.Time `json:"timestamp"`
}

// set stores v, moving the timestamp only when the value differs.
func (t *Tracked) set(v string, now time.Time) {
	if t.Value == v && t.ChangedAt != nil {
		return
	}
	t.Value = v
	at := now
	t.ChangedAt = &at
}

// ArmStatus is the controller state of the arm.
type ArmStatus struct {
	ArmNumber          int     `json:"arm_number"`
	CtrlMode           Tracked `json:"ctrl_mode"`
	ArmStatus          Tracked `json:"arm_status"`
	ModeFeed           Tracked `json:"mode_feed"`
	TeachMode          Tracked `json:"teach_mode"`
	MotionStatus       Tracked `json:"motion_status"`
	TrajectoryNum      Tracked `json:"trajectory_num"`
	VoltageTooLow      Tracked `json:"voltage_too_low"`
	MotorOverheating   Tracked `json:"motor_overheating"`
	DriverOvercurrent  Tracked `json:"driver_overcurrent"`
	DriverOverheating  Tracked `json:"driver_overheating"`
	SensorStatus       Tracked `json:"sensor_status"`
	DriverErrorStatus  Tracked `json:"driver_error_status"`
	DriverEnableStatus Tracked `json:"driver_enable_status"`
	HomingStatus       Tracked `json:"homing_status"`
}

func (a *ArmStatus) tracked() map[string]*Tracked {
	return map[string]*Tracked{
		"ctrl_mode":            &a.CtrlMode,
		"arm_status":           &a.ArmStatus,
		"mode_feed":            &a.ModeFeed,
		"teach_mode":           &a.TeachMode,
		"motion_status":        &a.MotionStatus,
		"trajectory_num":       &a.TrajectoryNum,
		"voltage_too_low":      &a.VoltageTooLow,
		"motor_overheating":    &a.MotorOverheating,
		"driver_overcurrent":   &a.DriverOvercurrent,
		"driver_overheating":   &a.DriverOverheating,
		"sensor_status":        &a.SensorStatus,
		"driver_error_status":  &a.DriverErrorStatus,
		"driver_enable_status": &a.DriverEnableStatus,
		"homing_status":        &a.HomingStatus,
	}
}

// JointStatus is the health of one joint.
type JointStatus struct {
	Joint int     `json:"joint_number"`
	Limit Tracked `json:"limit"`
	Comms Tracked `json:"comms"`
	Motor Tracked `json:"motor"`
}

func (j *JointStatus) tracked() map[string]*Tracked {
	return map[string]*Tracked{"limit": &j.Limit, "comms": &j.Comms, "motor": &j.Motor}
}

// JointCount is the number of arm joints.
const JointCount = 6

// JointStatuses holds the status of joints 1 to JointCount.
type JointStatuses [JointCount]JointStatus

// applyTracked writes patch into fields, rejecting unknown keys before any
// field is touched.
func applyTracked(fields map[string]*Tracked, patch map[string]string, now time.Time) error {
	if len(patch) == 0 {
		return model.Invalid("status", "no fields given")
	}
	for k := range patch {
		if _, ok := fields[k]; !ok {
			return model.Invalid(k, "unknown status field")
		}
	}
	for k, v := range patch {
		fields[k].set(strings.TrimSpace(v), now)
	}
	return nil
}
