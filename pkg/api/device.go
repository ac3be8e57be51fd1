package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo"
	"github.com/pkg/errors"
	"github.com/sauverpro/goFasta/pkg/api/resource"
	"github.com/sauverpro/goFasta/pkg/storage"
	log "github.com/sirupsen/logrus"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type messageResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// storeError maps storage failures onto HTTP responses. Expected
// conditions stay typed and are never logged as errors; anything else is
// a persistence failure surfaced as a generic 500.
func storeError(c echo.Context, err error) error {
	switch errors.Cause(err) {
	case storage.ErrNotFound:
		return c.JSON(http.StatusNotFound, errorResponse{Error: "Device not found"})
	case storage.ErrConflict:
		return c.JSON(http.StatusConflict, errorResponse{Error: "Device with this ID already exists"})
	case storage.ErrInvalidArgument:
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid query parameters"})
	}

	log.WithError(err).Error("Store operation failed")

	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
}

func badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func (h *Handler) handleCreateDevice(c echo.Context) error {
	r := &resource.CreateDeviceRequest{}
	if err := c.Bind(r); err != nil {
		return badRequest(c, err)
	}

	m, err := resource.ValidateCreateDevice(r)
	if err != nil {
		return badRequest(c, err)
	}

	if err := h.svc.CreateDevice(m); err != nil {
		return storeError(c, err)
	}

	return c.JSON(http.StatusCreated, messageResponse{
		Success: true,
		Message: "Device created successfully",
		Data:    resource.NewDevice(m),
	})
}

func (h *Handler) handleUpsertGPSData(c echo.Context) error {
	r := &resource.GPSDataRequest{}
	if err := c.Bind(r); err != nil {
		return badRequest(c, err)
	}

	f, err := resource.ValidateGPSData(r)
	if err != nil {
		return badRequest(c, err)
	}

	m, _, err := h.svc.IngestPosition(r.DeviceID, f)
	if err != nil {
		return storeError(c, err)
	}

	// Minimal confirmation only: the write path does not pay for ETA
	// derivation.
	return c.JSON(http.StatusOK, messageResponse{
		Success: true,
		Message: "GPS data updated successfully",
		Data: map[string]interface{}{
			"device_id":    m.DeviceID,
			"plate_number": m.PlateNumber,
			"last_update":  m.LastUpdate,
		},
	})
}

func (h *Handler) handleFetchDevices(c echo.Context) error {
	opt, err := listOptions(c)
	if err != nil {
		return badRequest(c, err)
	}

	views, total, err := h.svc.ListDevices(opt)
	if err != nil {
		return storeError(c, err)
	}

	return c.JSON(http.StatusOK, resource.NewDeviceList(views, total, opt))
}

func (h *Handler) handleSearchDevices(c echo.Context) error {
	opt, err := listOptions(c)
	if err != nil {
		return badRequest(c, err)
	}

	f := storage.SearchFilter{
		Query:       c.QueryParam("q"),
		PlateNumber: c.QueryParam("plateNumber"),
	}

	if f.MinSpeed, err = floatParam(c, "minSpeed"); err != nil {
		return badRequest(c, err)
	}
	if f.MaxSpeed, err = floatParam(c, "maxSpeed"); err != nil {
		return badRequest(c, err)
	}

	views, total, err := h.svc.SearchDevices(f, opt)
	if err != nil {
		return storeError(c, err)
	}

	return c.JSON(http.StatusOK, resource.NewDeviceList(views, total, opt))
}

func (h *Handler) handleGetDevice(c echo.Context) error {
	v, err := h.svc.GetDevice(c.Param("deviceId"))
	if err != nil {
		return storeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    resource.NewDeviceView(v),
	})
}

func (h *Handler) handleUpdateDevice(c echo.Context) error {
	r := &resource.UpdateDeviceRequest{}
	if err := c.Bind(r); err != nil {
		return badRequest(c, err)
	}

	f, err := resource.ValidateUpdateDevice(r)
	if err != nil {
		return badRequest(c, err)
	}

	m, err := h.svc.UpdateDevice(c.Param("deviceId"), f)
	if err != nil {
		return storeError(c, err)
	}

	return c.JSON(http.StatusOK, messageResponse{
		Success: true,
		Message: "Device updated successfully",
		Data:    resource.NewDevice(m),
	})
}

func (h *Handler) handleDeleteDevice(c echo.Context) error {
	m, err := h.svc.DeleteDevice(c.Param("deviceId"))
	if err != nil {
		return storeError(c, err)
	}

	return c.JSON(http.StatusOK, messageResponse{
		Success: true,
		Message: "Device deleted successfully",
		Data: map[string]interface{}{
			"device_id":    m.DeviceID,
			"plate_number": m.PlateNumber,
		},
	})
}

func (h *Handler) handleBulkDeleteDevices(c echo.Context) error {
	r := &resource.BulkDeleteRequest{}
	if err := c.Bind(r); err != nil {
		return badRequest(c, err)
	}

	if err := resource.ValidateBulkDelete(r); err != nil {
		return badRequest(c, err)
	}

	count, err := h.svc.BulkDelete(r.DeviceIDs)
	if err != nil {
		return storeError(c, err)
	}

	return c.JSON(http.StatusOK, messageResponse{
		Success: true,
		Message: strconv.FormatInt(count, 10) + " devices deleted successfully",
		Data: map[string]interface{}{
			"requestedCount": len(r.DeviceIDs),
			"deletedCount":   count,
		},
	})
}

func listOptions(c echo.Context) (storage.ListOptions, error) {
	opt := storage.ListOptions{
		SortBy: c.QueryParam("sort"),
		Order:  storage.SortOrder(c.QueryParam("order")),
	}

	var err error
	if opt.Page, err = intParam(c, "page"); err != nil {
		return opt, err
	}
	if opt.PageSize, err = intParam(c, "limit"); err != nil {
		return opt, err
	}

	return opt, nil
}

func intParam(c echo.Context, name string) (int, error) {
	s := c.QueryParam(name)
	if s == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Errorf("%s must be an integer", name)
	}

	return v, nil
}

func floatParam(c echo.Context, name string) (*float64, error) {
	s := c.QueryParam(name)
	if s == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.Errorf("%s must be a number", name)
	}

	return &v, nil
}
