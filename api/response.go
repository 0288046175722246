package api

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/medbot/rounds/core/assignment"
	"github.com/medbot/rounds/core/model"
)

const (
	statusSuccess = "success"
	statusWarning = "warning"
	statusError   = "error"
)

// Envelope is the body of every API response.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func ok(c *gin.Context, code int, message string, data any) {
	c.JSON(code, Envelope{Status: statusSuccess, Message: message, Data: data})
}

func warn(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Envelope{Status: statusWarning, Message: message, Data: data})
}

func fail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Envelope{Status: statusError, Message: message})
}

// FieldError is the detail attached to a 400 caused by one request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// failErr maps a service error onto the response envelope.
func failErr(c *gin.Context, err error) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	var verr *model.ValidationError
	if errors.As(err, &verr) && verr.Field != "" {
		c.AbortWithStatusJSON(code, Envelope{
			Status:  statusError,
			Message: err.Error(),
			Data:    []FieldError{{Field: verr.Field, Rule: verr.Msg}},
		})
		return
	}
	fail(c, code, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, assignment.ErrAlreadyInBatch):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func isNotFound(err error) bool { return errors.Is(err, model.ErrNotFound) }

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, name+" must be a positive integer.")
		return 0, false
	}
	return id, true
}

func queryInt64(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		fail(c, http.StatusBadRequest, name+" must be a non-negative integer.")
		return 0, false
	}
	return v, true
}

func page(c *gin.Context) (model.Page, bool) {
	limit, ok1 := queryInt64(c, "limit")
	if !ok1 {
		return model.Page{}, false
	}
	offset, ok2 := queryInt64(c, "offset")
	if !ok2 {
		return model.Page{}, false
	}
	return model.Page{Limit: int(limit), Offset: int(offset)}.Normalize(), true
}

// bind decodes the JSON body into dst and runs its binding rules. A malformed
// body or a broken rule yields 400; rule failures list the offending fields.
func bind(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{
		Status:  statusError,
		Message: validationMessage(fields),
		Data:    fields,
	})
	return false
}

// validationMessage reads "a and b are required." when every failure is a
// missing field, otherwise it names the first broken rule.
func validationMessage(fields []FieldError) string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Rule != "required" {
			return f.Field + " failed the " + f.Rule + " rule."
		}
		names = append(names, f.Field)
	}
	switch len(names) {
	case 1:
		return names[0] + " is required."
	case 2:
		return names[0] + " and " + names[1] + " are required."
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1] + " are required."
}

var jsonNamesOnce sync.Once

// useJSONFieldNames makes validation errors report the json name of a field.
func useJSONFieldNames() {
	jsonNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}
