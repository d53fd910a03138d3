package push

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

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
	subs := r.Group("/users/:user_id/push-subscriptions")
	{
		subs.POST("", h.RegisterSubscription)
		subs.DELETE("/:id", h.DisableSubscription)
	}
}

type subscriptionRequest struct {
	Endpoint   string `json:"endpoint" binding:"required,url"`
	P256dhKey  string `json:"p256dh_key" binding:"required"`
	AuthKey    string `json:"auth_key" binding:"required"`
	DeviceName string `json:"device_name"`
}

func (h *Handler) RegisterSubscription(c *gin.Context) {
	userID, ok := httputil.PathUserID(c)
	if !ok {
		return
	}

	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub := &model.PushSubscription{
		UserID:     userID,
		Endpoint:   req.Endpoint,
		P256dhKey:  req.P256dhKey,
		AuthKey:    req.AuthKey,
		DeviceName: req.DeviceName,
	}
	if err := h.service.RegisterPushSubscription(c.Request.Context(), sub); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": sub})
}

func (h *Handler) DisableSubscription(c *gin.Context) {
	if _, ok := httputil.PathUserID(c); !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription ID"})
		return
	}

	if err := h.service.DisablePushSubscription(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
