package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medbot/rounds/core/model"
)

func (h *handlers) directoryRoutes(rg *gin.RouterGroup) {
	rg.POST("/room/create/", h.createRooms)
	rg.GET("/room/all/", h.listRooms)
	rg.POST("/bed/create/", h.createBeds)
	rg.GET("/bed/all/", h.listBeds)

	slots := rg.Group("/slot")
	{
		slots.POST("/create/", h.createSlot)
		slots.GET("/all/", h.listSlots(false))
		slots.GET("/active/", h.listSlots(true))
		slots.PUT("/delete/:id/", h.toggleSlot)
		slots.POST("/position/create/", h.setSlotPose)
	}

	rooms := rg.Group("/room")
	{
		rooms.GET("/position/view/", h.listWaypoints)
		rooms.POST("/position/view/", h.upsertWaypoint)
		rooms.PUT("/position/activate/:id/", h.toggleWaypoint)
		rooms.POST("/entry-point/position/create/", h.setWaypointPose(true))
		rooms.POST("/exit-point/position/create/", h.setWaypointPose(false))
	}
}

func (h *handlers) patientRoutes(rg *gin.RouterGroup) {
	rg.POST("/create-patient/", h.createPatient)
	rg.POST("/assign-bed-room/", h.assignBedRoom)
	rg.PUT("/delete-patient/:id/", h.togglePatient)
}

type countRequest struct {
	Count int `json:"count"`
}

func (h *handlers) createRooms(c *gin.Context) {
	var req countRequest
	if !bind(c, &req) {
		return
	}
	rooms, err := h.Directory.CreateRooms(c.Request.Context(), req.Count)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, "Rooms created successfully.", rooms)
}

func (h *handlers) listRooms(c *gin.Context) {
	rooms, err := h.Directory.Rooms(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Rooms fetched successfully.", rooms)
}

func (h *handlers) createBeds(c *gin.Context) {
	var req countRequest
	if !bind(c, &req) {
		return
	}
	beds, err := h.Directory.CreateBeds(c.Request.Context(), req.Count)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, "Beds created successfully.", beds)
}

func (h *handlers) listBeds(c *gin.Context) {
	beds, err := h.Directory.Beds(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Beds fetched successfully.", beds)
}

type slotRequest struct {
	RoomID int64 `json:"room_id" binding:"required,gt=0"`
	BedID  int64 `json:"bed_id" binding:"required,gt=0"`
	model.Pose
}

func (h *handlers) createSlot(c *gin.Context) {
	var req slotRequest
	if !bind(c, &req) {
		return
	}
	slot, err := h.Directory.CreateSlot(c.Request.Context(), req.RoomID, req.BedID, req.Pose)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, "Slot created successfully.", slot)
}

func (h *handlers) listSlots(activeOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		slots, err := h.Directory.Slots(c.Request.Context(), activeOnly)
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusOK, "Slots fetched successfully.", slots)
	}
}

func (h *handlers) toggleSlot(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	slot, err := h.Directory.ToggleSlot(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Slot status updated successfully.", slot)
}

type slotPoseRequest struct {
	SlotID int64 `json:"slot_id" binding:"required,gt=0"`
	model.Pose
}

func (h *handlers) setSlotPose(c *gin.Context) {
	var req slotPoseRequest
	if !bind(c, &req) {
		return
	}
	slot, err := h.Directory.SetSlotPose(c.Request.Context(), req.SlotID, req.Pose)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Slot position saved successfully.", slot)
}

func (h *handlers) listWaypoints(c *gin.Context) {
	wps, err := h.Directory.Waypoints(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Room positions fetched successfully.", wps)
}

type waypointRequest struct {
	RoomID int64      `json:"room_id" binding:"required,gt=0"`
	Entry  model.Pose `json:"entry"`
	Exit   model.Pose `json:"exit"`
}

func (h *handlers) upsertWaypoint(c *gin.Context) {
	var req waypointRequest
	if !bind(c, &req) {
		return
	}
	wp, err := h.Directory.UpsertWaypoint(c.Request.Context(), req.RoomID, req.Entry, req.Exit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Room position saved successfully.", wp)
}

func (h *handlers) toggleWaypoint(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	wp, err := h.Directory.ToggleWaypoint(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Room position status updated successfully.", wp)
}

type roomPoseRequest struct {
	RoomID int64 `json:"room_id" binding:"required,gt=0"`
	model.Pose
}

func (h *handlers) setWaypointPose(entry bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req roomPoseRequest
		if !bind(c, &req) {
			return
		}
		set, msg := h.Directory.SetExit, "Room exit point saved successfully."
		if entry {
			set, msg = h.Directory.SetEntry, "Room entry point saved successfully."
		}
		wp, err := set(c.Request.Context(), req.RoomID, req.Pose)
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusOK, msg, wp)
	}
}

func (h *handlers) createPatient(c *gin.Context) {
	var req model.Patient
	if !bind(c, &req) {
		return
	}
	p, err := h.Directory.CreatePatient(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, "Patient created successfully.", p)
}

type assignSlotRequest struct {
	PatientID int64 `json:"patient_id" binding:"required,gt=0"`
	SlotID    int64 `json:"slot_id" binding:"required,gt=0"`
}

func (h *handlers) assignBedRoom(c *gin.Context) {
	var req assignSlotRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.Directory.AssignSlot(c.Request.Context(), req.PatientID, req.SlotID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Slot assigned successfully.", p)
}

func (h *handlers) togglePatient(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	p, err := h.Directory.TogglePatient(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Patient status updated successfully.", p)
}
