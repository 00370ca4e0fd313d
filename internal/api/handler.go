package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weihan/activity_service/internal/service"
	"github.com/weihan/activity_service/internal/store"
	"github.com/weihan/activity_service/internal/timewindow"
)

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	v1 := r.Group("/v1")
	{
		v1.GET("/activities/recent", h.Recent)
		v1.GET("/activities/past", h.Past)
		v1.GET("/activities/summary", h.Summary)
		v1.GET("/time", h.TimeInfo)
		v1.GET("/tools", h.Tools)
		v1.POST("/tools/execute", h.ExecuteTool)
	}
}

// Recent: GET /v1/activities/recent?days_ahead=90&limit=20
func (h *Handler) Recent(c *gin.Context) {
	daysAhead, err := parseIntParam(c, "days_ahead", service.DefaultDaysAhead)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	limit, err := parseIntParam(c, "limit", service.DefaultLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	env, err := h.svc.GetRecentActivities(c.Request.Context(), daysAhead, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

// Past: GET /v1/activities/past?days_back=30&limit=20
func (h *Handler) Past(c *gin.Context) {
	daysBack, err := parseIntParam(c, "days_back", service.DefaultDaysBack)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	limit, err := parseIntParam(c, "limit", service.DefaultLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	env, err := h.svc.GetPastActivities(c.Request.Context(), daysBack, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

// Summary: GET /v1/activities/summary
func (h *Handler) Summary(c *gin.Context) {
	rows, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"sources": rows,
	})
}

// TimeInfo: GET /v1/time
func (h *Handler) TimeInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.TimeInfo())
}

// Tools: GET /v1/tools — the function-calling definitions for the chat layer.
func (h *Handler) Tools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": service.ToolDefinitions()})
}

type executeRequest struct {
	Name      string          `json:"name" binding:"required"`
	Arguments json.RawMessage `json:"arguments"`
}

// ExecuteTool: POST /v1/tools/execute
// Body: {"name": "...", "arguments": {...}}
func (h *Handler) ExecuteTool(c *gin.Context) {
	var req executeRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid json: " + err.Error()})
		return
	}

	result, err := h.svc.ExecuteTool(c.Request.Context(), req.Name, req.Arguments)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// writeError maps the error taxonomy to HTTP status codes. Store
// unavailability is 503 so the calling agent can report "couldn't
// retrieve activity data right now" instead of fabricating an answer.
func writeError(c *gin.Context, err error) {
	var rangeErr *timewindow.InvalidRangeError
	var limitErr *service.InvalidLimitError
	var toolErr *service.UnknownToolError

	switch {
	case errors.As(err, &rangeErr), errors.As(err, &limitErr), errors.As(err, &toolErr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, store.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": err.Error(), "retryable": true})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}
}

// parseIntParam reads an integer query parameter, falling back to def
// only when the parameter is absent. A present-but-malformed value is
// the caller's error.
func parseIntParam(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid " + name + " parameter: " + raw)
	}
	return v, nil
}
