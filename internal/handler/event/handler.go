package event

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/service/dispatcher"
)

// Handler accepts issue events from the tracker and hands them to the
// dispatcher. The endpoint acknowledges with 202 before any delivery work
// happens.
type Handler struct {
	dispatcher *dispatcher.Dispatcher
}

func NewHandler(d *dispatcher.Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/events", h.NotifyIssueAction)
}

func (h *Handler) NotifyIssueAction(c *gin.Context) {
	var event model.IssueEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !knownEventType(event.EventType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event type"})
		return
	}
	if event.Issue.ID == 0 || event.Issue.ProjectID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "issue id and project id are required"})
		return
	}

	h.dispatcher.NotifyIssueAction(&event)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func knownEventType(t model.EventType) bool {
	for _, known := range model.EventTypes {
		if known == t {
			return true
		}
	}
	return false
}
