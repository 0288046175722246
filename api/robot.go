package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medbot/rounds/core/alerts"
	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/core/telemetry"
)

func (h *handlers) robotRoutes(rg *gin.RouterGroup) {
	rg.POST("/create-robot-telemetry/", h.updateRobot)
	rg.GET("/all-robot-telemetry/", h.robot)

	getup := rg.Group("/getup/robot")
	{
		getup.GET("/status/", h.robot)
		getup.PUT("/status/", h.updateRobot)
		getup.GET("/volume/", h.robot)
		getup.PUT("/volume/", h.setVolume)
		getup.GET("/robot_emergency/", h.robot)
		getup.PUT("/robot_emergency/", h.setEmergency)
	}

	rg.GET("/arm-endpose/", h.armEndpose)
	rg.POST("/arm-endpose/", h.updateArmEndpose)
	rg.GET("/joint-velocity/", h.joints(telemetry.JointVelocity))
	rg.POST("/joint-velocity/", h.updateJoints(telemetry.JointVelocity))
	rg.GET("/joint-effort/", h.joints(telemetry.JointEffort))
	rg.POST("/joint-effort/", h.updateJoints(telemetry.JointEffort))
	rg.GET("/joint-position/", h.joints(telemetry.JointPosition))
	rg.POST("/joint-position/", h.updateJoints(telemetry.JointPosition))
	rg.GET("/get-joint-heat/", h.joints(telemetry.JointHeat))
	rg.POST("/create-update-joint-heat/", h.updateJoints(telemetry.JointHeat))

	rg.POST("/create-update-arm-status/", h.updateArmStatus)
	rg.GET("/get-arm-status/", h.armStatus)
	rg.POST("/create-update-joint-status/", h.updateJointStatus)
	rg.GET("/get-joint-status/", h.jointStatus)

	rg.POST("/transfer-slot-reached-pos/", h.slotReached)
	rg.GET("/fetch-latest-slot/", h.latestSlot)
	rg.GET("/get-slot_cord/:room/:bed/", h.slotCoordinates)
	rg.GET("/get-room_entry_cord/:room/", h.roomCoordinates(true))
	rg.GET("/get-room_exit_cord/:room/", h.roomCoordinates(false))

	rg.POST("/save-help-data/", h.saveAlert)
	rg.PUT("/respond-help/:id/:rsp/", h.respondAlert)
	rg.GET("/alerts/", h.listAlerts)
	rg.PUT("/alerts/:id/update-reason/", h.updateAlertReason)
	rg.GET("/active/alerts/", h.activeAlerts)

	rg.GET("/failed-schedules/", h.listFailed)
	rg.POST("/failed-schedules/", h.recordFailed)
	rg.PUT("/failed-schedules/:id/", h.updateFailed)
}

func (h *handlers) robot(c *gin.Context) {
	ok(c, http.StatusOK, "Latest robot telemetry fetched.", h.Telemetry.Robot())
}

func (h *handlers) updateRobot(c *gin.Context) {
	var patch telemetry.RobotPatch
	if !bind(c, &patch) {
		return
	}
	r, err := h.Telemetry.UpdateRobot(c.Request.Context(), patch)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Robot telemetry updated.", r)
}

func (h *handlers) setVolume(c *gin.Context) {
	var req struct {
		Volume *int `json:"volume" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	r, err := h.Telemetry.SetVolume(c.Request.Context(), *req.Volume)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Robot volume updated.", r)
}

func (h *handlers) setEmergency(c *gin.Context) {
	var req struct {
		Emergency *bool `json:"robot_emergency" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	r, err := h.Telemetry.SetEmergency(c.Request.Context(), *req.Emergency)
	if err != nil {
		failErr(c, err)
		return
	}
	state := "released"
	if r.Emergency {
		state = "pressed"
	}
	ok(c, http.StatusOK, "Robot emergency button "+state, r)
}

func (h *handlers) armEndpose(c *gin.Context) {
	ok(c, http.StatusOK, "Arm endpose fetched.", h.Telemetry.ArmEndpose())
}

func (h *handlers) updateArmEndpose(c *gin.Context) {
	var patch telemetry.EndposePatch
	if !bind(c, &patch) {
		return
	}
	e, err := h.Telemetry.UpdateArmEndpose(c.Request.Context(), patch)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Arm endpose updated.", e)
}

func (h *handlers) joints(kind telemetry.JointKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		j, err := h.Telemetry.Joints(kind)
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusOK, fmt.Sprintf("Joint %s fetched.", kind), j)
	}
}

func (h *handlers) updateJoints(kind telemetry.JointKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch telemetry.JointsPatch
		if !bind(c, &patch) {
			return
		}
		j, err := h.Telemetry.UpdateJoints(c.Request.Context(), kind, patch)
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusOK, fmt.Sprintf("Joint %s updated.", kind), j)
	}
}

// statusPatch decodes a flat JSON object of status fields. Non-string values
// are kept in their JSON text form.
func statusPatch(c *gin.Context) (map[string]string, bool) {
	var raw map[string]any
	if !bind(c, &raw) {
		return nil, false
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out, true
}

func (h *handlers) updateArmStatus(c *gin.Context) {
	patch, valid := statusPatch(c)
	if !valid {
		return
	}
	delete(patch, "arm_number")
	a, err := h.Telemetry.UpdateArmStatus(c.Request.Context(), patch)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "ArmStatus updated", a)
}

func (h *handlers) armStatus(c *gin.Context) {
	ok(c, http.StatusOK, "ArmStatus fetched", h.Telemetry.ArmStatus())
}

func (h *handlers) updateJointStatus(c *gin.Context) {
	patch, valid := statusPatch(c)
	if !valid {
		return
	}
	joint, err := strconv.Atoi(patch["joint_number"])
	if err != nil {
		fail(c, http.StatusBadRequest, "joint_number is required.")
		return
	}
	delete(patch, "joint_number")
	j, err := h.Telemetry.UpdateJointStatus(c.Request.Context(), joint, patch)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "JointStatus updated", j)
}

func (h *handlers) jointStatus(c *gin.Context) {
	ok(c, http.StatusOK, "JointStatus fetched", h.Telemetry.JointStatus())
}

type roomBedRequest struct {
	Room string `json:"room" binding:"required"`
	Bed  string `json:"bed" binding:"required"`
}

func (h *handlers) slotReached(c *gin.Context) {
	var req roomBedRequest
	if !bind(c, &req) {
		return
	}
	a, err := h.Telemetry.SlotReached(c.Request.Context(), req.Room, req.Bed)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Slot position broadcasted.", a)
}

func (h *handlers) latestSlot(c *gin.Context) {
	room, bed := h.Telemetry.LatestSlot()
	ok(c, http.StatusOK, "Latest room and bed fetched successfully.", gin.H{"latest_room_reached": room, "latest_bed_reached": bed})
}

func (h *handlers) slotCoordinates(c *gin.Context) {
	slot, err := h.Directory.ResolveSlot(c.Request.Context(), c.Param("room"), c.Param("bed"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Slot coordinates fetched.", slot.Pose)
}

func (h *handlers) roomCoordinates(entry bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		wp, err := h.Directory.WaypointOf(c.Request.Context(), c.Param("room"))
		if err != nil {
			failErr(c, err)
			return
		}
		if entry {
			ok(c, http.StatusOK, "Room entry coordinates fetched.", wp.Entry)
			return
		}
		ok(c, http.StatusOK, "Room exit coordinates fetched.", wp.Exit)
	}
}

func (h *handlers) saveAlert(c *gin.Context) {
	var req model.AlertHistory
	if !bind(c, &req) {
		return
	}
	a, err := h.Alerts.SaveAlert(c.Request.Context(), req)
	if err != nil {
		if errorStatus(err) == http.StatusBadRequest {
			fail(c, http.StatusBadRequest, "Exactly one of is_timed_out, is_help, is_cancelled, or not_me must be True.")
			return
		}
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, "Alert saved successfully.", a)
}

func (h *handlers) respondAlert(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	a, err := h.Alerts.Respond(c.Request.Context(), id, c.Param("rsp") == "1")
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Alert marked as responded.", a)
}

func (h *handlers) listAlerts(c *gin.Context) {
	p, valid := page(c)
	if !valid {
		return
	}
	list, err := h.Alerts.All(c.Request.Context(), p)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Alerts fetched successfully.", list)
}

func (h *handlers) activeAlerts(c *gin.Context) {
	list, err := h.Alerts.Active(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Active alerts fetched successfully.", list)
}

func (h *handlers) updateAlertReason(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	a, err := h.Alerts.UpdateReason(c.Request.Context(), id, req.Reason)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Reason updated successfully.", a)
}

func (h *handlers) listFailed(c *gin.Context) {
	p, valid := page(c)
	if !valid {
		return
	}
	list, err := h.Alerts.Failed(c.Request.Context(), p)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Failed schedules fetched successfully.", list)
}

func (h *handlers) recordFailed(c *gin.Context) {
	var req model.FailedSchedule
	if !bind(c, &req) {
		return
	}
	f, err := h.Alerts.RecordFailed(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, "Failed schedule recorded successfully.", f)
}

func (h *handlers) updateFailed(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var patch alerts.FailedPatch
	if !bind(c, &patch) {
		return
	}
	f, err := h.Alerts.UpdateFailed(c.Request.Context(), id, patch)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Failed schedule updated successfully.", f)
}
