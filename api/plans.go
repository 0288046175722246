package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medbot/rounds/core/dispatch/logging"
)

// requireToken rejects requests without "Bearer <token>" when a plan log
// token is configured.
func (h *handlers) requireToken(c *gin.Context) {
	if h.cfg.PlanLogToken == "" {
		return
	}
	if c.GetHeader("Authorization") != "Bearer "+h.cfg.PlanLogToken {
		fail(c, http.StatusUnauthorized, "unauthorized")
	}
}

// planLogs returns the published plans matching the start, end, batch_id and
// limit query parameters.
func (h *handlers) planLogs(c *gin.Context) {
	var q logging.LogQuery
	for name, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
		s := c.Query(name)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			fail(c, http.StatusBadRequest, name+" must be an RFC3339 timestamp.")
			return
		}
		*dst = t
	}
	batchID, valid := queryInt64(c, "batch_id")
	if !valid {
		return
	}
	q.BatchID = batchID
	limit, valid := queryInt64(c, "limit")
	if !valid {
		return
	}
	q.Limit = int(limit)
	records, err := h.Plans.Query(c.Request.Context(), q)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Dispatch plans fetched successfully.", records)
}
