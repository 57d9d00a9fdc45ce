package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextRequestID is the gin context key holding the request id. Error bodies echo it so a
// failed admin call can be matched to its log line.
const ContextRequestID = "request_id"

// Body is the API response envelope.
type Body struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Hint      string `json:"hint,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// OK sends 200 with data.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends 201 with data.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Fail sends an error envelope with status. hint may be empty.
func Fail(c *gin.Context, status int, err, hint string) {
	c.JSON(status, Body{Error: err, Hint: hint, RequestID: c.GetString(ContextRequestID)})
}

func BadRequest(c *gin.Context, err string) { Fail(c, http.StatusBadRequest, err, "") }

// BadRequestHint sends 400 with a hint on how to fix the request.
func BadRequestHint(c *gin.Context, err, hint string) { Fail(c, http.StatusBadRequest, err, hint) }

func Unauthorized(c *gin.Context, err string) { Fail(c, http.StatusUnauthorized, err, "") }

func Forbidden(c *gin.Context, err string) { Fail(c, http.StatusForbidden, err, "") }

func NotFound(c *gin.Context, err string) { Fail(c, http.StatusNotFound, err, "") }

func Conflict(c *gin.Context, err string) { Fail(c, http.StatusConflict, err, "") }

// ServiceUnavailable sends 503, used while the scheduler is reconciling or a backend is off.
func ServiceUnavailable(c *gin.Context, err string) {
	Fail(c, http.StatusServiceUnavailable, err, "")
}

func Internal(c *gin.Context, err string) { Fail(c, http.StatusInternalServerError, err, "") }
