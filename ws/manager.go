package ws

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrNotConnected = errors.New("device not connected")

// Conn is the part of a websocket connection the manager needs.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DeviceConnection describes a connected device.
type DeviceConnection struct {
	SerialNumber string    `json:"serial_number"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastSeen     time.Time `json:"last_seen"`
}

type session struct {
	conn Conn
	// gorilla connections allow one concurrent writer
	writeMu sync.Mutex
	info    DeviceConnection
}

// Manager keeps track of active device websocket connections by serial number.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*session
	now      func() time.Time
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*session), now: time.Now}
}

// Register registers a device connection, replacing and closing any existing one.
func (m *Manager) Register(serial string, conn Conn) {
	now := m.now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.sessions[serial]; ok && old.conn != conn {
		_ = old.conn.Close()
	}
	m.sessions[serial] = &session{
		conn: conn,
		info: DeviceConnection{SerialNumber: serial, ConnectedAt: now, LastSeen: now},
	}
}

// Unregister removes the device's connection if it is still conn. A newer
// connection registered under the same serial is left alone.
func (m *Manager) Unregister(serial string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[serial]; ok && s.conn == conn {
		_ = s.conn.Close()
		delete(m.sessions, serial)
	}
}

// Touch records activity from the device.
func (m *Manager) Touch(serial string) {
	now := m.now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[serial]; ok {
		s.info.LastSeen = now
	}
}

// Send writes a text message to a device if connected.
func (m *Manager) Send(serial string, payload []byte) error {
	m.mu.RLock()
	s, ok := m.sessions[serial]
	m.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (m *Manager) IsConnected(serial string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[serial]
	return ok
}

// List returns the connected devices sorted by serial number.
func (m *Manager) List() []DeviceConnection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]DeviceConnection, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SerialNumber < out[j].SerialNumber })
	return out
}

// CloseAll closes every connection, used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for serial, s := range m.sessions {
		_ = s.conn.Close()
		delete(m.sessions, serial)
	}
}
