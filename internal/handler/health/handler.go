package health

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/service/history"
	"github.com/bugtally/notify-engine/pkg/httputil"
)

// Handler serves delivery-health reports derived from the channel audit
// log. Liveness and readiness live on the root handler, not here.
type Handler struct {
	service *history.Service
}

func NewHandler(service *history.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	channels := r.Group("/health/channels")
	{
		channels.GET("", h.AllChannels)
		channels.GET("/:channel", h.OneChannel)
	}
}

var knownChannels = []string{
	model.ChannelEmail,
	model.ChannelPush,
	model.ChannelChat,
	model.ChannelWebhook,
	model.ChannelInApp,
}

func (h *Handler) AllChannels(c *gin.Context) {
	reports := make([]*model.ChannelHealthReport, 0, len(knownChannels))
	for _, channel := range knownChannels {
		report, err := h.service.CheckChannelHealth(c.Request.Context(), channel)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		reports = append(reports, report)
	}
	httputil.RespondWithSuccess(c, reports)
}

func (h *Handler) OneChannel(c *gin.Context) {
	channel := c.Param("channel")
	if !known(channel) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown channel"})
		return
	}

	report, err := h.service.CheckChannelHealth(c.Request.Context(), channel)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, report)
}

func known(channel string) bool {
	for _, kc := range knownChannels {
		if kc == channel {
			return true
		}
	}
	return false
}
