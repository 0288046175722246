package sqlstore

import (
	"context"
	"database/sql"

	"github.com/medbot/rounds/core/model"
)

func (c conn) Rooms(ctx context.Context) ([]model.Room, error) {
	rows, err := c.query(ctx, `SELECT id, room_name, is_active FROM rooms ORDER BY id`)
	if err != nil {
		return nil, mapErr(err, "rooms")
	}
	defer func() { _ = rows.Close() }()
	var out []model.Room
	for rows.Next() {
		var r model.Room
		if err := rows.Scan(&r.ID, &r.Name, &r.Active); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c conn) InsertRoom(ctx context.Context, name string) (model.Room, error) {
	id, err := c.insert(ctx, `INSERT INTO rooms (room_name, is_active) VALUES (?, ?)`, name, true)
	if err != nil {
		return model.Room{}, err
	}
	return model.Room{ID: id, Name: name, Active: true}, nil
}

func (c conn) Beds(ctx context.Context) ([]model.Bed, error) {
	rows, err := c.query(ctx, `SELECT id, bed_name, is_active FROM beds ORDER BY id`)
	if err != nil {
		return nil, mapErr(err, "beds")
	}
	defer func() { _ = rows.Close() }()
	var out []model.Bed
	for rows.Next() {
		var b model.Bed
		if err := rows.Scan(&b.ID, &b.Name, &b.Active); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (c conn) InsertBed(ctx context.Context, name string) (model.Bed, error) {
	id, err := c.insert(ctx, `INSERT INTO beds (bed_name, is_active) VALUES (?, ?)`, name, true)
	if err != nil {
		return model.Bed{}, err
	}
	return model.Bed{ID: id, Name: name, Active: true}, nil
}

const slotSelect = `SELECT s.id, s.room_id, s.bed_id, COALESCE(r.room_name, ''), COALESCE(b.bed_name, ''),
	s.x, s.y, s.yaw, s.is_active
	FROM slots s
	LEFT JOIN rooms r ON r.id = s.room_id
	LEFT JOIN beds b ON b.id = s.bed_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanSlot(sc scanner) (model.Slot, error) {
	var s model.Slot
	var room, bed sql.NullInt64
	if err := sc.Scan(&s.ID, &room, &bed, &s.RoomName, &s.BedName, &s.X, &s.Y, &s.Yaw, &s.Active); err != nil {
		return model.Slot{}, err
	}
	s.RoomID = idPtr(room)
	s.BedID = idPtr(bed)
	return s, nil
}

func (c conn) Slots(ctx context.Context, activeOnly bool) ([]model.Slot, error) {
	q := slotSelect
	var args []any
	if activeOnly {
		q += ` WHERE s.is_active = ?`
		args = append(args, true)
	}
	rows, err := c.query(ctx, q+` ORDER BY s.id`, args...)
	if err != nil {
		return nil, mapErr(err, "slots")
	}
	defer func() { _ = rows.Close() }()
	var out []model.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c conn) SlotByID(ctx context.Context, id int64) (model.Slot, error) {
	s, err := scanSlot(c.queryRow(ctx, slotSelect+` WHERE s.id = ?`, id))
	if err != nil {
		return model.Slot{}, mapErr(err, "slot")
	}
	return s, nil
}

func (c conn) SlotByNames(ctx context.Context, room, bed string) (model.Slot, error) {
	s, err := scanSlot(c.queryRow(ctx, slotSelect+` WHERE r.room_name = ? AND b.bed_name = ?
	ORDER BY s.is_active DESC, s.id DESC LIMIT 1`, room, bed))
	if err != nil {
		return model.Slot{}, mapErr(err, "slot "+room+"/"+bed)
	}
	return s, nil
}

func (c conn) InsertSlot(ctx context.Context, s model.Slot) (model.Slot, error) {
	id, err := c.insert(ctx, `INSERT INTO slots (room_id, bed_id, x, y, yaw, is_active) VALUES (?, ?, ?, ?, ?, ?)`,
		nullID(s.RoomID), nullID(s.BedID), s.X, s.Y, s.Yaw, s.Active)
	if err != nil {
		return model.Slot{}, err
	}
	return c.SlotByID(ctx, id)
}

func (c conn) UpdateSlot(ctx context.Context, s model.Slot) error {
	res, err := c.exec(ctx, `UPDATE slots SET room_id = ?, bed_id = ?, x = ?, y = ?, yaw = ?, is_active = ? WHERE id = ?`,
		nullID(s.RoomID), nullID(s.BedID), s.X, s.Y, s.Yaw, s.Active, s.ID)
	if err != nil {
		return mapErr(err, "update slot")
	}
	return requireAffected(res, "slot", s.ID)
}

const waypointSelect = `SELECT w.id, w.room_id, r.room_name, w.entry_x, w.entry_y, w.entry_yaw,
	w.exit_x, w.exit_y, w.exit_yaw, w.is_active
	FROM room_waypoints w
	JOIN rooms r ON r.id = w.room_id`

func scanWaypoint(sc scanner) (model.RoomWaypoint, error) {
	var w model.RoomWaypoint
	err := sc.Scan(&w.ID, &w.RoomID, &w.RoomName, &w.Entry.X, &w.Entry.Y, &w.Entry.Yaw,
		&w.Exit.X, &w.Exit.Y, &w.Exit.Yaw, &w.Active)
	return w, err
}

func (c conn) Waypoints(ctx context.Context) ([]model.RoomWaypoint, error) {
	rows, err := c.query(ctx, waypointSelect+` ORDER BY w.room_id`)
	if err != nil {
		return nil, mapErr(err, "waypoints")
	}
	defer func() { _ = rows.Close() }()
	var out []model.RoomWaypoint
	for rows.Next() {
		w, err := scanWaypoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (c conn) WaypointByRoomID(ctx context.Context, roomID int64) (model.RoomWaypoint, error) {
	w, err := scanWaypoint(c.queryRow(ctx, waypointSelect+` WHERE w.room_id = ?`, roomID))
	if err != nil {
		return model.RoomWaypoint{}, mapErr(err, "waypoint")
	}
	return w, nil
}

func (c conn) WaypointByRoomName(ctx context.Context, name string) (model.RoomWaypoint, error) {
	w, err := scanWaypoint(c.queryRow(ctx, waypointSelect+` WHERE r.room_name = ?`, name))
	if err != nil {
		return model.RoomWaypoint{}, mapErr(err, "waypoint for "+name)
	}
	return w, nil
}

func (c conn) SaveWaypoint(ctx context.Context, w model.RoomWaypoint) (model.RoomWaypoint, error) {
	_, err := c.exec(ctx, `INSERT INTO room_waypoints
		(room_id, entry_x, entry_y, entry_yaw, exit_x, exit_y, exit_yaw, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (room_id) DO UPDATE SET
		entry_x = excluded.entry_x, entry_y = excluded.entry_y, entry_yaw = excluded.entry_yaw,
		exit_x = excluded.exit_x, exit_y = excluded.exit_y, exit_yaw = excluded.exit_yaw,
		is_active = excluded.is_active`,
		w.RoomID, w.Entry.X, w.Entry.Y, w.Entry.Yaw, w.Exit.X, w.Exit.Y, w.Exit.Yaw, w.Active)
	if err != nil {
		return model.RoomWaypoint{}, mapErr(err, "save waypoint")
	}
	return c.WaypointByRoomID(ctx, w.RoomID)
}
