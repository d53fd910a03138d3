package preference

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/service/preference"
	"github.com/bugtally/notify-engine/pkg/httputil"
)

type Handler struct {
	service *preference.Service
}

func NewHandler(service *preference.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	prefs := r.Group("/users/:user_id/preferences")
	{
		prefs.GET("/events", h.ListEventPreferences)
		prefs.PUT("/events", h.UpsertEventPreference)
		prefs.GET("/digest", h.GetDigestPreference)
		prefs.PUT("/digest", h.UpsertDigestPreference)
	}
}

func (h *Handler) ListEventPreferences(c *gin.Context) {
	userID, ok := httputil.PathUserID(c)
	if !ok {
		return
	}

	prefs, err := h.service.ListEventPreferences(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, prefs)
}

type eventPreferenceRequest struct {
	EventType   string `json:"event_type" binding:"required,event_type"`
	Enabled     bool   `json:"enabled"`
	MinSeverity int    `json:"min_severity" binding:"gte=0"`
}

func (h *Handler) UpsertEventPreference(c *gin.Context) {
	userID, ok := httputil.PathUserID(c)
	if !ok {
		return
	}

	var req eventPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pref := &model.EventPreference{
		UserID:      userID,
		EventType:   model.EventType(req.EventType),
		Enabled:     req.Enabled,
		MinSeverity: req.MinSeverity,
	}
	if err := h.service.UpsertEventPreference(c.Request.Context(), pref); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, pref)
}

func (h *Handler) GetDigestPreference(c *gin.Context) {
	userID, ok := httputil.PathUserID(c)
	if !ok {
		return
	}

	pref, err := h.service.GetDigestPreference(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, pref)
}

type digestPreferenceRequest struct {
	Enabled          bool     `json:"enabled"`
	Frequency        string   `json:"frequency" binding:"required,oneof=hourly daily weekly"`
	TimeOfDay        int      `json:"time_of_day" binding:"gte=0,lte=23"`
	DayOfWeek        int      `json:"day_of_week" binding:"gte=1,lte=7"`
	MinNotifications int      `json:"min_notifications" binding:"gte=1"`
	IncludeChannels  []string `json:"include_channels" binding:"omitempty,dive,channel"`
}

func (h *Handler) UpsertDigestPreference(c *gin.Context) {
	userID, ok := httputil.PathUserID(c)
	if !ok {
		return
	}

	var req digestPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pref := &model.DigestPreference{
		UserID:           userID,
		Enabled:          req.Enabled,
		Frequency:        model.DigestFrequency(req.Frequency),
		TimeOfDay:        req.TimeOfDay,
		DayOfWeek:        req.DayOfWeek,
		MinNotifications: req.MinNotifications,
		IncludeChannels:  req.IncludeChannels,
	}
	if err := h.service.UpsertDigestPreference(c.Request.Context(), pref); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, pref)
}
