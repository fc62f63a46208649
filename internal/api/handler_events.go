package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fieldops-scheduler-backend/internal/model"
	"fieldops-scheduler-backend/internal/schedule"
	"fieldops-scheduler-backend/internal/store"
)

// GetEvents handles GET /api/events. Either `date=YYYY-MM-DD` for one
// calendar day, or `resource_id` with optional `from`/`to` RFC3339 bounds.
func (h *Handler) GetEvents(c *gin.Context) {
	loc := h.registry.Location()

	if dateParam := c.Query("date"); dateParam != "" {
		date, err := time.ParseInLocation("2006-01-02", dateParam, loc)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'date' format. Use YYYY-MM-DD."})
			return
		}
		events, err := h.store.ListByDate(c.Request.Context(), date)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve events"})
			return
		}
		c.JSON(http.StatusOK, events)
		return
	}

	resourceID := c.Query("resource_id")
	if resourceID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "resource_id or date is required"})
		return
	}

	from, to, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.store.ListByResource(c.Request.Context(), resourceID, from, to)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve events"})
		return
	}
	c.JSON(http.StatusOK, events)
}

// parseRange defaults to the next 7 days when bounds are omitted.
func parseRange(fromParam, toParam string) (time.Time, time.Time, error) {
	from := time.Now().UTC()
	to := from.Add(7 * 24 * time.Hour)
	var err error
	if fromParam != "" {
		if from, err = time.Parse(time.RFC3339, fromParam); err != nil {
			return from, to, errors.New("Invalid 'from' timestamp format. Use RFC3339.")
		}
		to = from.Add(7 * 24 * time.Hour)
	}
	if toParam != "" {
		if to, err = time.Parse(time.RFC3339, toParam); err != nil {
			return from, to, errors.New("Invalid 'to' timestamp format. Use RFC3339.")
		}
	}
	if !from.Before(to) {
		return from, to, errors.New("'from' must be before 'to'")
	}
	return from, to, nil
}

// projectionResponse wraps the pure projection result; a null projection
// means the event does not intersect the requested day.
type projectionResponse struct {
	EventID    string               `json:"eventId"`
	Day        string               `json:"day"`
	Projection *schedule.Projection `json:"projection"`
}

// GetProjection handles GET /api/events/:event_id/projection. Query:
// `day=YYYY-MM-DD`, optional `window_start`/`window_end` as HH:MM
// overriding the configured operating window.
func (h *Handler) GetProjection(c *gin.Context) {
	loc := h.registry.Location()

	event, err := h.store.GetEvent(c.Request.Context(), c.Param("event_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "event not found"})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	dayParam := c.Query("day")
	if dayParam == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "day is required"})
		return
	}
	date, err := time.ParseInLocation("2006-01-02", dayParam, loc)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'day' format. Use YYYY-MM-DD."})
		return
	}

	winStart, winEnd := h.windowStart, h.windowEnd
	if s := c.Query("window_start"); s != "" {
		if winStart, err = model.ParseClock(s); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if s := c.Query("window_end"); s != "" {
		if winEnd, err = model.ParseClock(s); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if winEnd <= winStart {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "operating window must have positive length"})
		return
	}

	day := schedule.Window{Start: date, End: date.AddDate(0, 0, 1)}
	operating := schedule.Window{Start: date.Add(winStart), End: date.Add(winEnd)}

	c.JSON(http.StatusOK, projectionResponse{
		EventID:    event.ID,
		Day:        dayParam,
		Projection: schedule.Project(event, day, operating),
	})
}
