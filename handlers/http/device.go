package httpHandler

import (
	"net/http"

	"cacao-server/entities"
	"cacao-server/usecases"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DeviceHandler struct {
	useCase *usecases.DeviceUseCase
	log     *zap.Logger
}

func NewDeviceHandler(useCase *usecases.DeviceUseCase, log *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		useCase: useCase,
		log:     log,
	}
}

type deviceStatusRequest struct {
	Status entities.Status `json:"status"`
}

// CreateDevice handles POST /api/devices
func (h *DeviceHandler) CreateDevice(c *gin.Context) {
	var in usecases.DeviceInput
	if !bindJSON(c, &in) {
		return
	}

	device, err := h.useCase.CreateDevice(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Device created successfully",
		"data":    device,
	})
}

// GetDevice handles GET /api/devices/:id
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	device, err := h.useCase.GetDevice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": device,
	})
}

// GetAllDevices handles GET /api/devices
func (h *DeviceHandler) GetAllDevices(c *gin.Context) {
	devices, err := h.useCase.GetAllDevices(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	list(c, devices)
}

// UpdateDevice handles PUT /api/devices/:id
func (h *DeviceHandler) UpdateDevice(c *gin.Context) {
	var in usecases.DeviceInput
	if !bindJSON(c, &in) {
		return
	}

	device, err := h.useCase.UpdateDevice(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Device updated successfully",
		"data":    device,
	})
}

// UpdateDeviceStatus handles PUT /api/devices/:id/status
func (h *DeviceHandler) UpdateDeviceStatus(c *gin.Context) {
	var req deviceStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	device, err := h.useCase.UpdateDeviceStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Device status updated successfully",
		"data":    device,
	})
}

// DeleteDevice handles DELETE /api/devices/:id
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	if err := h.useCase.DeleteDevice(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetDeviceSensors handles GET /api/devices/:id/sensors
func (h *DeviceHandler) GetDeviceSensors(c *gin.Context) {
	sensors, err := h.useCase.GetSensorsByDeviceID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	list(c, sensors)
}

// CreateSensor handles POST /api/sensors
func (h *DeviceHandler) CreateSensor(c *gin.Context) {
	var in usecases.SensorInput
	if !bindJSON(c, &in) {
		return
	}

	sensor, err := h.useCase.CreateSensor(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Sensor created successfully",
		"data":    sensor,
	})
}

// GetSensor handles GET /api/sensors/:id
func (h *DeviceHandler) GetSensor(c *gin.Context) {
	sensor, err := h.useCase.GetSensor(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sensor})
}

// GetAllSensors handles GET /api/sensors
func (h *DeviceHandler) GetAllSensors(c *gin.Context) {
	sensors, err := h.useCase.GetAllSensors(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	list(c, sensors)
}

// UpdateSensor handles PUT /api/sensors/:id
func (h *DeviceHandler) UpdateSensor(c *gin.Context) {
	var in usecases.SensorInput
	if !bindJSON(c, &in) {
		return
	}

	sensor, err := h.useCase.UpdateSensor(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Sensor updated successfully",
		"data":    sensor,
	})
}

// DeleteSensor handles DELETE /api/sensors/:id
func (h *DeviceHandler) DeleteSensor(c *gin.Context) {
	if err := h.useCase.DeleteSensor(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
