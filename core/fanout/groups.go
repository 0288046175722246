package fanout

import "sort"

// Group names.
const (
	GroupHelp          = "help"
	GroupNotification  = "notification"
	GroupApparatus     = "apparatus"
	GroupScheduler     = "scheduler"
	GroupEmergency     = "emergency"
	GroupRobotDistance = "robot-distance-accuracy"
	GroupArmEndpose    = "arm-endpose"
	GroupJointVelocity = "joint-velocity"
	GroupJointEffort   = "joint-effort"
	GroupJointPosition = "joint-position"
	GroupRefreshArm    = "refresh-arm-data"
	GroupRefreshJoint  = "refresh-joint-data"
	GroupJointHeat     = "joint-heat"
	GroupSlot          = "slot"
)

// Group describes a broadcast channel. Path is the websocket route segment
// existing clients connect to; Label ends the connection acknowledgement.
type Group struct {
	Name  string
	Path  string
	Label string
	// Bare groups send the payload without the {"payload": ...} envelope.
	Bare bool
	// Inbound converts a client message into the payload to broadcast. Groups
	// without it are publish-only.
	Inbound func(raw map[string]any) (any, error)
}

var registry = map[string]Group{
	GroupHelp:          {Name: GroupHelp, Path: "help", Label: "help", Inbound: helpMessage},
	GroupNotification:  {Name: GroupNotification, Path: "notification", Label: "notifications", Inbound: notificationMessage},
	GroupApparatus:     {Name: GroupApparatus, Path: "apparatus-value", Label: "apparatus value", Inbound: apparatusMessage},
	GroupScheduler:     {Name: GroupScheduler, Path: "scheduler-data", Label: "scheduler value", Bare: true},
	GroupEmergency:     {Name: GroupEmergency, Path: "emergency-status", Label: "emergency value"},
	GroupRobotDistance: {Name: GroupRobotDistance, Path: "robot-distance-accuracy", Label: "robot distance accuracy", Inbound: verbatim},
	GroupArmEndpose:    {Name: GroupArmEndpose, Path: "arm-endpose-value", Label: "arm endpose value"},
	GroupJointVelocity: {Name: GroupJointVelocity, Path: "joint-velocity-value", Label: "joint velocity value"},
	GroupJointEffort:   {Name: GroupJointEffort, Path: "joint-effort-value", Label: "joint effort value"},
	GroupJointPosition: {Name: GroupJointPosition, Path: "joint-position-value", Label: "joint position value"},
	GroupRefreshArm:    {Name: GroupRefreshArm, Path: "refresh-arm-data-value", Label: "refresh arm data"},
	GroupRefreshJoint:  {Name: GroupRefreshJoint, Path: "refresh-joint-data-value", Label: "refresh joint data"},
	GroupJointHeat:     {Name: GroupJointHeat, Path: "joint-heat-value", Label: "joint heat"},
	GroupSlot:          {Name: GroupSlot, Path: "slot", Label: "slot"},
}

// Lookup returns the group called name.
func Lookup(name string) (Group, bool) {
	g, ok := registry[name]
	return g, ok
}

// LookupPath resolves a group by name or by its websocket route segment.
func LookupPath(segment string) (Group, bool) {
	if g, ok := registry[segment]; ok {
		return g, true
	}
	for _, g := range registry {
		if g.Path == segment {
			return g, true
		}
	}
	return Group{}, false
}

// Groups returns every group sorted by name.
func Groups() []Group {
	out := make([]Group, 0, len(registry))
	for _, g := range registry {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
