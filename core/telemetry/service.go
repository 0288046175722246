package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/medbot/rounds/core/fanout"
	"github.com/medbot/rounds/core/logger"
	"github.com/medbot/rounds/core/metrics"
	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/internal/eventbus"
)

// Publisher announces a payload to a fan-out group.
type Publisher interface {
	Publish(ctx context.Context, group string, payload any) error
}

// Occupants resolves a room/bed pair to its slot and active patient.
type Occupants interface {
	ResolveSlot(ctx context.Context, room, bed string) (model.Slot, error)
	OccupantOf(ctx context.Context, slotID int64) (model.Patient, error)
}

// Arrival is announced on the slot group when the robot reaches a bed.
type Arrival struct {
	ID         int64       `json:"id"`
	ExternalID string      `json:"patient_id"`
	Name       string      `json:"name"`
	Gender     string      `json:"gender"`
	Age        int         `json:"age"`
	Slot       ArrivalSlot `json:"slot"`
}

// ArrivalSlot locates an Arrival.
type ArrivalSlot struct {
	Room string  `json:"room"`
	Bed  string  `json:"bed"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Yaw  float64 `json:"yaw"`
}

// Service owns the telemetry holders.
type Service struct {
	robot       State[Robot]
	endpose     State[ArmEndpose]
	joints      map[JointKind]*State[Joints]
	armStatus   State[ArmStatus]
	jointStatus State[JointStatuses]

	pub       Publisher
	occupants Occupants
	samples   *eventbus.TypedBus[metrics.TelemetrySample]
	now       func() time.Time
	log       logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSamples forwards every reading to bus for history recording.
func WithSamples(bus *eventbus.TypedBus[metrics.TelemetrySample]) Option {
	return func(s *Service) { s.samples = bus }
}

// WithNow overrides the clock used for change timestamps.
func WithNow(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(s *Service) { s.log = l } }

// NewService returns a Service publishing through pub. occupants may be nil
// when SlotReached is not used.
func NewService(pub Publisher, occupants Occupants, opts ...Option) *Service {
	s := &Service{
		joints:    make(map[JointKind]*State[Joints], len(JointKinds)),
		pub:       pub,
		occupants: occupants,
		now:       time.Now,
	}
	for _, k := range JointKinds {
		s.joints[k] = &State[Joints]{}
	}
	s.robot.value = DefaultRobot()
	s.armStatus.value.ArmNumber = 1
	for i := range s.jointStatus.value {
		s.jointStatus.value[i].Joint = i + 1
	}
	for _, o := range opts {
		o(s)
	}
	s.log = logger.OrNop(s.log)
	return s
}

// Robot returns the latest robot state.
func (s *Service) Robot() Robot {
	r, _ := s.robot.Get()
	return r
}

// UpdateRobot merges a robot report.
func (s *Service) UpdateRobot(ctx context.Context, p RobotPatch) (Robot, error) {
	r, err := s.robot.Update(s.now(), p.apply)
	if err != nil {
		return r, err
	}
	s.sample("robot", map[string]any{
		"battery":   r.Battery,
		"charging":  r.Charging,
		"in_dock":   r.InDock,
		"emergency": r.Emergency,
		"volume":    r.Volume,
	})
	return r, nil
}

// SetEmergency records the emergency button and announces it.
func (s *Service) SetEmergency(ctx context.Context, pressed bool) (Robot, error) {
	r, err := s.robot.Update(s.now(), func(r *Robot) error {
		r.Emergency = pressed
		return nil
	})
	if err != nil {
		return r, err
	}
	s.sample("emergency", map[string]any{"pressed": pressed})
	return r, s.publish(ctx, fanout.GroupEmergency, map[string]bool{"emergency": pressed})
}

// SetVolume sets the speaker volume, 0 to 100.
func (s *Service) SetVolume(ctx context.Context, volume int) (Robot, error) {
	return s.UpdateRobot(ctx, RobotPatch{Volume: &volume})
}

// ArmEndpose returns the latest end effector pose.
func (s *Service) ArmEndpose() ArmEndpose {
	e, _ := s.endpose.Get()
	return e
}

// UpdateArmEndpose merges p and announces the full pose.
func (s *Service) UpdateArmEndpose(ctx context.Context, p EndposePatch) (ArmEndpose, error) {
	e, err := s.endpose.Update(s.now(), p.apply)
	if err != nil {
		return e, err
	}
	s.sample("arm_endpose", map[string]any{"x": e.X, "y": e.Y, "z": e.Z, "rx": e.RX, "ry": e.RY, "rz": e.RZ})
	return e, s.publish(ctx, fanout.GroupArmEndpose, e)
}

// Joints returns the latest readings of kind.
func (s *Service) Joints(kind JointKind) (Joints, error) {
	st, ok := s.joints[kind]
	if !ok {
		return Joints{}, model.Invalid("kind", "unknown joint reading "+string(kind))
	}
	j, _ := st.Get()
	return j, nil
}

// UpdateJoints merges p into the readings of kind and announces them.
func (s *Service) UpdateJoints(ctx context.Context, kind JointKind, p JointsPatch) (Joints, error) {
	st, ok := s.joints[kind]
	if !ok {
		return Joints{}, model.Invalid("kind", "unknown joint reading "+string(kind))
	}
	j, err := st.Update(s.now(), p.apply)
	if err != nil {
		return j, err
	}
	s.sample("joint_"+string(kind), j.fields())
	return j, s.publish(ctx, kind.Group(), j)
}

// ArmStatus returns the arm controller state.
func (s *Service) ArmStatus() ArmStatus {
	a, _ := s.armStatus.Get()
	return a
}

// UpdateArmStatus sets the given status fields and asks clients to refresh.
func (s *Service) UpdateArmStatus(ctx context.Context, patch map[string]string) (ArmStatus, error) {
	now := s.now()
	a, err := s.armStatus.Update(now, func(a *ArmStatus) error {
		return applyTracked(a.tracked(), patch, now)
	})
	if err != nil {
		return a, err
	}
	return a, s.publish(ctx, fanout.GroupRefreshArm, true)
}

// JointStatus returns the status of every joint.
func (s *Service) JointStatus() JointStatuses {
	j, _ := s.jointStatus.Get()
	return j
}

// UpdateJointStatus sets status fields of joint (1 based) and asks clients
// to refresh.
func (s *Service) UpdateJointStatus(ctx context.Context, joint int, patch map[string]string) (JointStatus, error) {
	if joint < 1 || joint > JointCount {
		return JointStatus{}, model.Invalid("joint_number", fmt.Sprintf("must be between 1 and %d", JointCount))
	}
	now := s.now()
	all, err := s.jointStatus.Update(now, func(js *JointStatuses) error {
		return applyTracked(js[joint-1].tracked(), patch, now)
	})
	if err != nil {
		return JointStatus{}, err
	}
	return all[joint-1], s.publish(ctx, fanout.GroupRefreshJoint, true)
}

// SlotReached records the robot's position and announces the patient lying
// at room/bed.
func (s *Service) SlotReached(ctx context.Context, room, bed string) (Arrival, error) {
	if _, err := s.robot.Update(s.now(), func(r *Robot) error {
		r.LatestRoom, r.LatestBed = room, bed
		return nil
	}); err != nil {
		return Arrival{}, err
	}
	if s.occupants == nil {
		return Arrival{}, fmt.Errorf("slot reached: no slot directory configured")
	}
	slot, err := s.occupants.ResolveSlot(ctx, room, bed)
	if err != nil {
		return Arrival{}, err
	}
	p, err := s.occupants.OccupantOf(ctx, slot.ID)
	if err != nil {
		return Arrival{}, err
	}
	a := Arrival{
		ID:         p.ID,
		ExternalID: p.ExternalID,
		Name:       p.Name,
		Gender:     p.Gender,
		Age:        p.Age,
		Slot:       ArrivalSlot{Room: slot.RoomName, Bed: slot.BedName, X: slot.X, Y: slot.Y, Yaw: slot.Yaw},
	}
	return a, s.publish(ctx, fanout.GroupSlot, a)
}

// LatestSlot returns the last room and bed the robot reported reaching.
func (s *Service) LatestSlot() (room, bed string) {
	r, _ := s.robot.Get()
	return r.LatestRoom, r.LatestBed
}

func (s *Service) publish(ctx context.Context, group string, payload any) error {
	if s.pub == nil {
		return nil
	}
	if err := s.pub.Publish(ctx, group, payload); err != nil {
		return fmt.Errorf("publish %s: %w", group, err)
	}
	return nil
}

func (s *Service) sample(measurement string, fields map[string]any) {
	if s.samples == nil {
		return
	}
	s.samples.Publish(metrics.TelemetrySample{Measurement: measurement, Tags: map[string]string{"source": "robot"}, Fields: fields, Time: s.now()})
}
