package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	httpHandler "cacao-server/handlers/http"
	"cacao-server/metrics"
	"cacao-server/usecases"
	"cacao-server/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// wsReadTimeout closes a device connection that stays silent this long.
	wsReadTimeout = 2 * time.Minute
	wsMaxMessage  = 64 << 10
)

// WebSocket message envelopes
type incomingMessage struct {
	Type string `json:"type"` // readings | heartbeat
}

type readingsMessage struct {
	Type string `json:"type"`
	usecases.ReadingsInput
}

type outgoingMessage struct {
	Type         string                `json:"type"` // ack | error
	SerialNumber string                `json:"serialNumber,omitempty"`
	Timestamp    *time.Time            `json:"timestampEnvio,omitempty"`
	Measurements int                   `json:"measurements,omitempty"`
	Heartbeat    bool                  `json:"heartbeat,omitempty"`
	Error        string                `json:"error,omitempty"`
	Fields       []usecases.FieldError `json:"fields,omitempty"`
}

// WSHandler groups dependencies for websocket flows
type WSHandler struct {
	mgr     *ws.Manager
	ingest  *usecases.IngestionUseCase
	limiter *httpHandler.KeyedLimiter
	log     *zap.Logger
}

func NewWSHandler(mgr *ws.Manager, ingest *usecases.IngestionUseCase, limiter *httpHandler.KeyedLimiter, log *zap.Logger) *WSHandler {
	return &WSHandler{mgr: mgr, ingest: ingest, limiter: limiter, log: log}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// HandleDeviceWS upgrades to websocket and reads readings from a registered
// device.
// GET /ws?serial=<serial_number>
func (h *WSHandler) HandleDeviceWS(c *gin.Context) {
	device, err := h.ingest.DeviceBySerial(c.Request.Context(), c.Query("serial"))
	if err != nil {
		switch usecases.KindOf(err) {
		case usecases.KindNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown device serial number", "type": usecases.KindNotFound})
		case usecases.KindValidation:
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing device serial", "type": usecases.KindValidation})
		default:
			h.log.Error("websocket device lookup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "type": usecases.KindInternal})
		}
		return
	}
	serial := device.SerialNumber

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("serial", serial), zap.Error(err))
		return
	}
	conn.SetReadLimit(wsMaxMessage)

	h.mgr.Register(serial, conn)
	h.log.Info("device connected", zap.String("serial", serial), zap.String("device_id", device.ID))
	defer func() {
		h.mgr.Unregister(serial, conn)
		h.log.Info("device disconnected", zap.String("serial", serial))
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read ended", zap.String("serial", serial), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		h.mgr.Touch(serial)
		h.reply(serial, h.handleMessage(c, serial, message))
	}
}

func (h *WSHandler) handleMessage(c *gin.Context, serial string, message []byte) outgoingMessage {
	var base incomingMessage
	if err := json.Unmarshal(message, &base); err != nil {
		return outgoingMessage{Type: "error", Error: "invalid json"}
	}

	switch base.Type {
	case "heartbeat":
		return outgoingMessage{Type: "ack", SerialNumber: serial, Heartbeat: true}
	case "readings":
		var msg readingsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return outgoingMessage{Type: "error", Error: "invalid readings payload"}
		}
		if msg.SerialNumber == "" {
			msg.SerialNumber = serial
		}
		if msg.SerialNumber != serial {
			return outgoingMessage{Type: "error", Error: "serialNumber does not match the connection"}
		}
		if h.limiter != nil && !h.limiter.Allow(serial) {
			metrics.IngestFailures.WithLabelValues(usecases.TransportWS, "rate_limited").Inc()
			return outgoingMessage{Type: "error", Error: "too many submissions for this device, slow down"}
		}

		res, err := h.ingest.Ingest(c.Request.Context(), usecases.TransportWS, msg.ReadingsInput)
		if err != nil {
			return errorMessage(err)
		}
		return outgoingMessage{
			Type:         "ack",
			SerialNumber: res.SerialNumber,
			Timestamp:    &res.Timestamp,
			Measurements: res.Measurements,
		}
	default:
		return outgoingMessage{Type: "error", Error: "unknown message type: " + base.Type}
	}
}

func (h *WSHandler) reply(serial string, msg outgoingMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("websocket reply encoding failed", zap.Error(err))
		return
	}
	if err := h.mgr.Send(serial, b); err != nil && !errors.Is(err, ws.ErrNotConnected) {
		h.log.Debug("websocket reply failed", zap.String("serial", serial), zap.Error(err))
	}
}

func errorMessage(err error) outgoingMessage {
	var ue *usecases.Error
	if errors.As(err, &ue) && ue.Kind != usecases.KindInternal {
		return outgoingMessage{Type: "error", Error: ue.Message, Fields: ue.Fields}
	}
	return outgoingMessage{Type: "error", Error: "internal server error"}
}

// GetConnectedDevices GET /api/devices/connected
func (h *WSHandler) GetConnectedDevices(c *gin.Context) {
	devices := h.mgr.List()
	c.JSON(http.StatusOK, gin.H{"data": devices, "count": len(devices)})
}
