package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medbot/rounds/core/assignment"
	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/core/scheduler"
)

func (h *handlers) scheduleRoutes(rg *gin.RouterGroup) {
	rg.POST("/add-batch-schedule/", h.saveBatch)
	rg.GET("/view-all-batch-schedule/", h.listBatches(false))
	rg.GET("/view-all-active-batch-schedule/", h.listBatches(true))
	rg.PUT("/mark-batch/completed/:id/", h.markCompleted)

	rg.POST("/schedule-slots/", h.scheduleSlot)
	rg.POST("/check-scheduled-slot/", h.checkScheduledSlot)
	rg.GET("/view-all-scheduled-slots/", h.listScheduledSlots)
	rg.POST("/swap/scheduled/slots/", h.swapScheduledSlots)
	rg.POST("/swap-room-order-scheduled-slot/", h.swapRoomOrder)
	rg.DELETE("/remove/scheduled-slot/", h.removeScheduledSlot)
	rg.GET("/view-active-slot-patient/", h.activeSlotPatients)

	rg.POST("/create-scheduler-log/", h.createSchedulerLog)
	rg.POST("/update-scheduler-log-attended/", h.updateSchedulerLogAttended)
	rg.GET("/view-scheduler-logs/", h.viewSchedulerLogs)
}

type batchRequest struct {
	ID int64 `json:"id"`
	scheduler.BatchPatch
}

func (h *handlers) saveBatch(c *gin.Context) {
	var req batchRequest
	if !bind(c, &req) {
		return
	}
	b, err := h.Registry.SaveBatch(c.Request.Context(), req.ID, req.BatchPatch)
	if err != nil {
		failErr(c, err)
		return
	}
	if req.ID == 0 {
		ok(c, http.StatusCreated, "Batch schedule created successfully.", b)
		return
	}
	ok(c, http.StatusOK, "Batch schedule updated successfully.", b)
}

func (h *handlers) listBatches(activeOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		batches, err := h.Registry.ListBatches(c.Request.Context(), activeOnly)
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusOK, "Batch schedules fetched successfully.", batches)
	}
}

func (h *handlers) markCompleted(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	b, err := h.Registry.MarkCompleted(c.Request.Context(), id, h.Now().UTC())
	if err != nil {
		if isNotFound(err) {
			fail(c, http.StatusNotFound, fmt.Sprintf("Batch with id %d not found.", id))
			return
		}
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Batch marked as completed successfully.", b)
}

type placementRequest struct {
	Patient int64 `json:"patient" binding:"required,gt=0"`
	Batch   int64 `json:"batch" binding:"required,gt=0"`
}

func (h *handlers) bindPlacement(c *gin.Context) (placementRequest, bool) {
	var req placementRequest
	if !bind(c, &req) {
		return req, false
	}
	return req, true
}

func (h *handlers) scheduleSlot(c *gin.Context) {
	req, valid := h.bindPlacement(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()
	row, err := h.Assignment.Assign(ctx, req.Patient, req.Batch)
	if err != nil {
		failErr(c, err)
		return
	}
	p, err := h.Directory.Patient(ctx, req.Patient)
	if err != nil {
		failErr(c, err)
		return
	}
	b, err := h.Registry.Batch(ctx, req.Batch)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, fmt.Sprintf("Patient %s moved to batch %s successfully.", p.Name, b.Name), row)
}

// checkScheduledSlot assigns a patient that is not scheduled yet and asks for
// confirmation when it already sits in another batch.
func (h *handlers) checkScheduledSlot(c *gin.Context) {
	req, valid := h.bindPlacement(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()
	conflict, err := h.Assignment.CheckConflict(ctx, req.Patient, req.Batch)
	if err != nil {
		if errors.Is(err, assignment.ErrAlreadyInBatch) {
			fail(c, http.StatusBadRequest, "The patient already exists in this batch slot.")
			return
		}
		failErr(c, err)
		return
	}
	if conflict.Kind == assignment.ConflictOtherBatch {
		warn(c, conflict.Message(), conflict)
		return
	}
	row, err := h.Assignment.Assign(ctx, req.Patient, req.Batch)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, "scheduled slot assigned successfully", row)
}

func (h *handlers) listScheduledSlots(c *gin.Context) {
	batchID, valid := queryInt64(c, "batch_id")
	if !valid {
		return
	}
	groups, err := h.Assignment.ListGrouped(c.Request.Context(), batchID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Scheduled slots fetched successfully.", groups)
}

type swapRequest struct {
	PK1 int64 `json:"pk1" binding:"required,gt=0"`
	PK2 int64 `json:"pk2" binding:"required,gt=0"`
}

func (h *handlers) swapScheduledSlots(c *gin.Context) {
	var req swapRequest
	if !bind(c, &req) {
		return
	}
	if err := h.Assignment.Swap(c.Request.Context(), req.PK1, req.PK2); err != nil {
		if isNotFound(err) {
			fail(c, http.StatusNotFound, "One or both slots not found.")
			return
		}
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, fmt.Sprintf("Swapped patients between slots %d and %d", req.PK1, req.PK2), nil)
}

type swapOrderRequest struct {
	RoomPosA int   `json:"room_pos_a" binding:"required"`
	RoomPosB int   `json:"room_pos_b" binding:"required"`
	BatchID  int64 `json:"batch_id" binding:"required,gt=0"`
}

func (h *handlers) swapRoomOrder(c *gin.Context) {
	var req swapOrderRequest
	if !bind(c, &req) {
		return
	}
	if req.RoomPosA == req.RoomPosB {
		fail(c, http.StatusBadRequest, "Both room positions are the same, nothing to swap.")
		return
	}
	if err := h.Assignment.SwapRoomOrder(c.Request.Context(), req.BatchID, req.RoomPosA, req.RoomPosB); err != nil {
		if isNotFound(err) {
			fail(c, http.StatusNotFound, "No matching slots found for given room positions.")
			return
		}
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, fmt.Sprintf("Successfully swapped schedule_order %d and %d.", req.RoomPosA, req.RoomPosB), nil)
}

type removeRequest struct {
	SlotID int64 `json:"slot_id" binding:"required,gt=0"`
}

func (h *handlers) removeScheduledSlot(c *gin.Context) {
	var req removeRequest
	if !bind(c, &req) {
		return
	}
	removed, err := h.Assignment.Remove(c.Request.Context(), req.SlotID)
	if err != nil {
		failErr(c, err)
		return
	}
	if !removed {
		fail(c, http.StatusBadRequest, "Selected patient does not exist in the slot")
		return
	}
	ok(c, http.StatusOK, "Slot updated successfully.", nil)
}

func (h *handlers) activeSlotPatients(c *gin.Context) {
	patients, err := h.Directory.ActiveWithSlot(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Active patients with slots fetched successfully.", patients)
}

func (h *handlers) createSchedulerLog(c *gin.Context) {
	var req model.SchedulerLog
	if !bind(c, &req) {
		return
	}
	l, err := h.Alerts.LogVisit(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, "Scheduler log created successfully.", l)
}

type attendedRequest struct {
	LogID      int64 `json:"log_id" binding:"required,gt=0"`
	IsAttended *bool `json:"is_attended" binding:"required"`
}

func (h *handlers) updateSchedulerLogAttended(c *gin.Context) {
	var req attendedRequest
	if !bind(c, &req) {
		return
	}
	l, err := h.Alerts.SetAttended(c.Request.Context(), req.LogID, *req.IsAttended)
	if err != nil {
		if isNotFound(err) {
			fail(c, http.StatusNotFound, "Log not found.")
			return
		}
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Scheduler log updated successfully.", l)
}

func (h *handlers) viewSchedulerLogs(c *gin.Context) {
	batchID, valid := queryInt64(c, "batch_id")
	if !valid {
		return
	}
	p, valid := page(c)
	if !valid {
		return
	}
	logs, err := h.Alerts.Visits(c.Request.Context(), batchID, p)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Scheduler logs fetched successfully.", logs)
}
