package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/medbot/rounds/core/model"
)

// BedStop is one bed the robot visits inside a room.
type BedStop struct {
	BedName string  `json:"bed_name"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Yaw     float64 `json:"yaw"`
}

// RoomGroup is one room of a dispatch plan with its entry/exit poses and
// the beds visited in order.
type RoomGroup struct {
	Room      string
	RowNumber int
	Entry     model.Pose
	Exit      model.Pose
	Beds      []BedStop
}

// Plan is the ordered list of rooms for one batch.
type Plan []RoomGroup

// BedCount returns the number of bed stops across all rooms.
func (p Plan) BedCount() int {
	n := 0
	for _, g := range p {
		n += len(g.Beds)
	}
	return n
}

type waypointJSON struct {
	EntryX   float64 `json:"entry_point_x"`
	EntryY   float64 `json:"entry_point_y"`
	EntryYaw float64 `json:"entry_point_yaw"`
	ExitX    float64 `json:"exit_point_x"`
	ExitY    float64 `json:"exit_point_y"`
	ExitYaw  float64 `json:"exit_point_yaw"`
}

const bedsKey = "slot_pos"

// MarshalJSON encodes the group as {"room_N": {waypoint}, "slot_pos": [...]}
// with the room key first.
func (g RoomGroup) MarshalJSON() ([]byte, error) {
	key, err := json.Marshal(g.Room)
	if err != nil {
		return nil, err
	}
	wp, err := json.Marshal(waypointJSON{
		EntryX: g.Entry.X, EntryY: g.Entry.Y, EntryYaw: g.Entry.Yaw,
		ExitX: g.Exit.X, ExitY: g.Exit.Y, ExitYaw: g.Exit.Yaw,
	})
	if err != nil {
		return nil, err
	}
	beds := g.Beds
	if beds == nil {
		beds = []BedStop{}
	}
	stops, err := json.Marshal(beds)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(wp)
	buf.WriteString(`,"` + bedsKey + `":`)
	buf.Write(stops)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (g *RoomGroup) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var out RoomGroup
	for k, v := range raw {
		if k == bedsKey {
			if err := json.Unmarshal(v, &out.Beds); err != nil {
				return fmt.Errorf("decode %s: %w", bedsKey, err)
			}
			continue
		}
		if out.Room != "" {
			return fmt.Errorf("room group has two rooms: %s and %s", out.Room, k)
		}
		var wp waypointJSON
		if err := json.Unmarshal(v, &wp); err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		out.Room = k
		out.RowNumber = model.RowNumber(k)
		out.Entry = model.Pose{X: wp.EntryX, Y: wp.EntryY, Yaw: wp.EntryYaw}
		out.Exit = model.Pose{X: wp.ExitX, Y: wp.ExitY, Yaw: wp.ExitYaw}
	}
	if out.Room == "" {
		return fmt.Errorf("room group without room")
	}
	*g = out
	return nil
}
