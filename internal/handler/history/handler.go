package history

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/service/history"
	"github.com/bugtally/notify-engine/pkg/httputil"
)

type Handler struct {
	service *history.Service
}

func NewHandler(service *history.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/users/:user_id/notifications")
	{
		notifications.GET("", h.ListHistory)
		notifications.GET("/unread-count", h.CountUnread)
		notifications.GET("/stats", h.GetStats)
		notifications.POST("/read", h.MarkRead)
		notifications.POST("/read-all", h.MarkAllRead)
	}
}

func (h *Handler) ListHistory(c *gin.Context) {
	userID, ok := httputil.PathUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "25"))
	pagination := model.Pagination{Page: page, PageSize: pageSize}

	filters := model.HistoryFilters{
		UnreadOnly: c.Query("unread") == "true",
	}
	if raw := c.Query("event_type"); raw != "" {
		eventType := model.EventType(raw)
		filters.EventType = &eventType
	}
	if bugID, err := strconv.ParseInt(c.Query("bug_id"), 10, 64); err == nil {
		filters.BugID = &bugID
	}

	entries, total, err := h.service.List(c.Request.Context(), userID, filters, pagination)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, entries, pagination.Page, pagination.Limit(), total)
}

func (h *Handler) CountUnread(c *gin.Context) {
	userID, ok := httputil.PathUserID(c)
	if !ok {
		return
	}

	count, err := h.service.CountUnread(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"unread": count})
}

func (h *Handler) GetStats(c *gin.Context) {
	userID, ok := httputil.PathUserID(c)
	if !ok {
		return
	}

	stats, err := h.service.GetStats(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stats)
}

type markReadRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

func (h *Handler) MarkRead(c *gin.Context) {
	userID, ok := httputil.PathUserID(c)
	if !ok {
		return
	}

	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification ID: " + raw})
			return
		}
		ids = append(ids, id)
	}

	affected, err := h.service.MarkRead(c.Request.Context(), userID, ids)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"marked_read": affected})
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	userID, ok := httputil.PathUserID(c)
	if !ok {
		return
	}

	affected, err := h.service.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"marked_read": affected})
}
