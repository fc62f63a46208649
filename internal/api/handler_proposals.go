package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fieldops-scheduler-backend/internal/model"
	"fieldops-scheduler-backend/internal/schedule"
)

type proposalRequest struct {
	Type          string `json:"type" binding:"required"`
	AllowConflict bool   `json:"allow_conflict"`

	// create
	SubjectID   string   `json:"subject_id"`
	ResourceIDs []string `json:"resource_ids"`
	Priority    string   `json:"priority"`

	// create / move
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`

	// move / reassign / status_change
	EventID string `json:"event_id"`

	// create / status_change
	Status string `json:"status"`
}

// PostProposal handles POST /api/proposals, the sole mutating entry point.
// Both committed and rejected outcomes are 200s carrying the structured
// result; only malformed requests and faults map to error codes.
func (h *Handler) PostProposal(c *gin.Context) {
	var req proposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	change, err := req.toChange()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.engine.Propose(c.Request.Context(), change, schedule.Options{AllowConflict: req.AllowConflict})
	if err != nil {
		if errors.Is(err, schedule.ErrLockTimeout) {
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "scheduling contention, retry the proposal"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (r *proposalRequest) toChange() (schedule.Change, error) {
	switch r.Type {
	case "create":
		if r.Start == nil || r.End == nil {
			return nil, errors.New("create requires start and end")
		}
		return schedule.Create{
			SubjectID:   r.SubjectID,
			Start:       *r.Start,
			End:         *r.End,
			ResourceIDs: r.ResourceIDs,
			Status:      model.EventStatus(r.Status),
			Priority:    model.EventPriority(r.Priority),
		}, nil
	case "move":
		if r.EventID == "" || r.Start == nil || r.End == nil {
			return nil, errors.New("move requires event_id, start and end")
		}
		return schedule.Move{EventID: r.EventID, Start: *r.Start, End: *r.End}, nil
	case "reassign":
		if r.EventID == "" {
			return nil, errors.New("reassign requires event_id")
		}
		return schedule.Reassign{EventID: r.EventID, ResourceIDs: r.ResourceIDs}, nil
	case "status_change":
		if r.EventID == "" || r.Status == "" {
			return nil, errors.New("status_change requires event_id and status")
		}
		return schedule.StatusChange{EventID: r.EventID, Status: model.EventStatus(r.Status)}, nil
	}
	return nil, errors.New("unknown proposal type: " + r.Type)
}
