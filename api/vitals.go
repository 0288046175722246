package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medbot/rounds/core/model"
	"github.com/medbot/rounds/core/vitals"
)

func (h *handlers) vitalsRoutes(rg *gin.RouterGroup) {
	rg.POST("/bp2checkme/upsert/", h.upsertBp2)
	rg.PUT("/bp2checkme/upsert/", h.upsertBp2)
	rg.GET("/bp2checkme/all/", h.listBp2)
	rg.PATCH("/bp2checkme/toggle-active/", h.toggleBp2)
	rg.POST("/robot/bp2checkme/upsert/", h.robotBp2)
}

type bp2UpsertRequest struct {
	PK int64 `json:"pk" binding:"omitempty,gt=0"`
	vitals.Patch
}

func (h *handlers) upsertBp2(c *gin.Context) {
	var req bp2UpsertRequest
	if !bind(c, &req) {
		return
	}
	r, created, err := h.Vitals.Upsert(c.Request.Context(), req.PK, req.Patch)
	if err != nil {
		if isNotFound(err) && req.PK != 0 {
			fail(c, http.StatusNotFound, "Record not found.")
			return
		}
		failErr(c, err)
		return
	}
	if created {
		ok(c, http.StatusCreated, "BP2CheckMe record created successfully.", r)
		return
	}
	ok(c, http.StatusOK, "BP2CheckMe record updated successfully.", r)
}

func (h *handlers) listBp2(c *gin.Context) {
	p, valid := page(c)
	if !valid {
		return
	}
	list, total, err := h.Vitals.List(c.Request.Context(), p)
	if err != nil {
		failErr(c, err)
		return
	}
	if list == nil {
		list = []model.Bp2Reading{}
	}
	ok(c, http.StatusOK, "All BP2CheckMe records retrieved successfully", gin.H{"count": total, "results": list})
}

type bp2ToggleRequest struct {
	PK int64 `json:"pk" binding:"required,gt=0"`
}

func (h *handlers) toggleBp2(c *gin.Context) {
	var req bp2ToggleRequest
	if !bind(c, &req) {
		return
	}
	r, err := h.Vitals.Toggle(c.Request.Context(), req.PK)
	if err != nil {
		if isNotFound(err) {
			fail(c, http.StatusNotFound, "Record not found.")
			return
		}
		failErr(c, err)
		return
	}
	msg := "Record deactivated."
	if r.Active {
		msg = "Record activated."
	}
	ok(c, http.StatusOK, msg, gin.H{"id": r.ID, "is_active": r.Active})
}

type robotBp2Request struct {
	Patient int64 `json:"patient" binding:"required,gt=0"`
	model.Bp2Values
}

func (h *handlers) robotBp2(c *gin.Context) {
	var req robotBp2Request
	if !bind(c, &req) {
		return
	}
	if _, err := h.Vitals.RecordFromRobot(c.Request.Context(), req.Patient, req.Bp2Values); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, "BP2CheckMe record created successfully.", nil)
}
