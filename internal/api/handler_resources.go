package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldops-scheduler-backend/internal/model"
	"fieldops-scheduler-backend/internal/registry"
)

// GetResources handles GET /api/resources, listing active resources with an
// optional `kind` filter (crew or vehicle).
func (h *Handler) GetResources(c *gin.Context) {
	kind := model.ResourceKind(c.Query("kind"))
	if kind != "" && kind != model.KindCrew && kind != model.KindVehicle {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "kind must be crew or vehicle"})
		return
	}

	resources, err := h.registry.ListActive(c.Request.Context(), kind)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve resources"})
		return
	}
	c.JSON(http.StatusOK, resources)
}

// GetResource handles GET /api/resources/:resource_id.
func (h *Handler) GetResource(c *gin.Context) {
	resource, err := h.registry.Get(c.Request.Context(), c.Param("resource_id"))
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, resource)
}
