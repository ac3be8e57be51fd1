package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo"
	"github.com/sauverpro/goFasta/pkg/tracker"
	log "github.com/sirupsen/logrus"
)

// Handler contains all properties to serve the API
type Handler struct {
	svc       *tracker.Service
	startedAt time.Time
}

// NewHandler create a new API handler
func NewHandler(svc *tracker.Service) *Handler {
	return &Handler{
		svc:       svc,
		startedAt: time.Now(),
	}
}

// RegisterRoutes attaches the handlers to the echo web server
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	log.Debug("Register API routes")
	api := e.Group("/api")
	api.POST("/devices", h.handleCreateDevice)
	api.GET("/devices/search", h.handleSearchDevices)
	api.GET("/devices", h.handleFetchDevices)
	api.GET("/devices/:deviceId", h.handleGetDevice)
	api.PUT("/devices/:deviceId", h.handleUpdateDevice)
	api.DELETE("/devices/:deviceId", h.handleDeleteDevice)
	api.DELETE("/devices", h.handleBulkDeleteDevices)

	// GPS tracking route, the bridge posts hardware readings here.
	api.POST("/gps", h.handleUpsertGPSData)

	e.GET("/health", h.handleHealth)
}

func (h *Handler) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startedAt).Seconds(),
	})
}
