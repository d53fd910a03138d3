package filter

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/service/filter"
	"github.com/bugtally/notify-engine/pkg/httputil"
)

type Handler struct {
	service *filter.Service
}

func NewHandler(service *filter.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	filters := r.Group("/users/:user_id/filters")
	{
		filters.POST("", h.CreateFilter)
		filters.GET("", h.ListFilters)
		filters.GET("/:id", h.GetFilter)
		filters.PUT("/:id", h.UpdateFilter)
		filters.DELETE("/:id", h.DeleteFilter)
	}
}

type filterRequest struct {
	ProjectID   int64    `json:"project_id"`
	Enabled     *bool    `json:"enabled"`
	FilterType  string   `json:"filter_type" binding:"required"`
	FilterValue string   `json:"filter_value" binding:"required"`
	Action      string   `json:"action" binding:"required"`
	Channels    []string `json:"channels" binding:"omitempty,dive,channel"`
}

func (h *Handler) CreateFilter(c *gin.Context) {
	userID, ok := httputil.PathUserID(c)
	if !ok {
		return
	}

	var req filterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f := req.toModel(userID)
	if err := h.service.Create(c.Request.Context(), f); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": f})
}

func (h *Handler) ListFilters(c *gin.Context) {
	userID, ok := httputil.PathUserID(c)
	if !ok {
		return
	}

	filters, err := h.service.ListForUser(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, filters)
}

func (h *Handler) GetFilter(c *gin.Context) {
	userID, ok := httputil.PathUserID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter ID"})
		return
	}

	f, err := h.service.Get(c.Request.Context(), userID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, f)
}

func (h *Handler) UpdateFilter(c *gin.Context) {
	userID, ok := httputil.PathUserID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter ID"})
		return
	}

	var req filterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f := req.toModel(userID)
	f.ID = id
	if err := h.service.Update(c.Request.Context(), userID, f); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, f)
}

func (h *Handler) DeleteFilter(c *gin.Context) {
	userID, ok := httputil.PathUserID(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter ID"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *filterRequest) toModel(userID int64) *model.NotificationFilter {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return &model.NotificationFilter{
		UserID:      userID,
		ProjectID:   r.ProjectID,
		Enabled:     enabled,
		FilterType:  model.FilterType(r.FilterType),
		FilterValue: r.FilterValue,
		Action:      model.FilterAction(r.Action),
		Channels:    r.Channels,
	}
}
