package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"fieldops-scheduler-backend/internal/registry"
	"fieldops-scheduler-backend/internal/schedule"
	"fieldops-scheduler-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	engine   *schedule.Engine
	store    store.Store
	registry *registry.Registry
	webpush  *webpush.Options

	// Default operating window for projections, as offsets from local
	// midnight.
	windowStart time.Duration
	windowEnd   time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(engine *schedule.Engine, st store.Store, reg *registry.Registry, webpushOptions *webpush.Options, windowStart, windowEnd time.Duration) *Handler {
	return &Handler{
		engine:      engine,
		store:       st,
		registry:    reg,
		webpush:     webpushOptions,
		windowStart: windowStart,
		windowEnd:   windowEnd,
	}
}
