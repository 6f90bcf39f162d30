package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ariannmichael/smartcity-orchestrator/internal/event/application"
	"github.com/ariannmichael/smartcity-orchestrator/internal/event/domain"
)

// EventHandler encapsula los endpoints HTTP de orquestación de eventos.
type EventHandler struct {
	service *application.EventService
}

func NewEventHandler(service *application.EventService) *EventHandler {
	return &EventHandler{service: service}
}

// ---------------- Handlers ----------------

// Ingest endpoint POST /ingest/:service?dedupe_key=K
// El body es el payload crudo del servicio, un objeto JSON arbitrario.
func (h *EventHandler) Ingest(c *gin.Context) {
	service := c.Param("service")

	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload must be a JSON object"})
		return
	}

	dedupeKey := c.Query("dedupe_key")

	base, derived, err := h.service.Ingest(c.Request.Context(), service, payload, dedupeKey)
	if err != nil {
		// Los fallos internos no exponen detalle ni resultados parciales.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	derivedIDs := make([]uuid.UUID, 0, len(derived))
	for _, evt := range derived {
		derivedIDs = append(derivedIDs, evt.ID)
	}

	c.JSON(http.StatusCreated, gin.H{
		"stored_event_id":   base.ID,
		"derived_event_ids": derivedIDs,
	})
}

// ListEvents endpoint GET /events?limit=N&offset=M
func (h *EventHandler) ListEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(application.DefaultListLimit)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	events, err := h.service.ListEvents(c.Request.Context(), limit, offset)
	if err != nil {
		if errors.Is(err, application.ErrLimitTooLarge) || errors.Is(err, application.ErrInvalidOffset) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if events == nil {
		events = []*domain.Event{}
	}
	c.JSON(http.StatusOK, events)
}
