package httpHandler

import (
	"net/http"
	"strings"

	"cacao-server/metrics"
	"cacao-server/usecases"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MeasurementHandler struct {
	ingest       *usecases.IngestionUseCase
	measurements *usecases.MeasurementUseCase
	limiter      *KeyedLimiter
	log          *zap.Logger
}

func NewMeasurementHandler(ingest *usecases.IngestionUseCase, measurements *usecases.MeasurementUseCase, limiter *KeyedLimiter, log *zap.Logger) *MeasurementHandler {
	return &MeasurementHandler{
		ingest:       ingest,
		measurements: measurements,
		limiter:      limiter,
		log:          log,
	}
}

// Ingest handles POST /api/measurements. Devices call it without a session.
func (h *MeasurementHandler) Ingest(c *gin.Context) {
	var in usecases.ReadingsInput
	if !bindJSON(c, &in) {
		return
	}

	serial := strings.TrimSpace(in.SerialNumber)
	if h.limiter != nil && serial != "" && !h.limiter.Allow(serial) {
		metrics.IngestFailures.WithLabelValues(usecases.TransportHTTP, "rate_limited").Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "too many submissions for this device, slow down",
			"type":  "rate_limited",
		})
		return
	}

	res, err := h.ingest.Ingest(c.Request.Context(), usecases.TransportHTTP, in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Measurements recorded successfully",
		"data":    res,
	})
}

// GetMeasurements handles GET /api/measurements?sensor_id=&limit=
func (h *MeasurementHandler) GetMeasurements(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	measurements, err := h.measurements.List(c.Request.Context(), c.Query("sensor_id"), limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	list(c, measurements)
}

// GetMeasurement handles GET /api/measurements/:id
func (h *MeasurementHandler) GetMeasurement(c *gin.Context) {
	m, err := h.measurements.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": m})
}

// UpdateMeasurement handles PUT /api/measurements/:id
func (h *MeasurementHandler) UpdateMeasurement(c *gin.Context) {
	var in usecases.MeasurementUpdate
	if !bindJSON(c, &in) {
		return
	}

	m, err := h.measurements.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Measurement updated successfully",
		"data":    m,
	})
}

// DeleteMeasurement handles DELETE /api/measurements/:id
func (h *MeasurementHandler) DeleteMeasurement(c *gin.Context) {
	if err := h.measurements.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
