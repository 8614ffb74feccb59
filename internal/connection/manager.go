package connection

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// writeTimeout bounds a single write to a device
const writeTimeout = 5 * time.Second

// ClientInfo holds information about a connected device
type ClientInfo struct {
	ConnectionID string
	DeviceID     string
	Name         string
	ConnectedAt  time.Time
	Conn         net.Conn
	writeMu      sync.Mutex
}

// Send writes one newline-terminated line. Replies, invocation results and
// queued requests share the connection, so writes are serialized.
func (c *ClientInfo) Send(line []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	defer c.Conn.SetWriteDeadline(time.Time{})

	if _, err := c.Conn.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write to %s: %w", c.ConnectionID, err)
	}
	return nil
}

// Manager manages all active device connections
type Manager struct {
	clients  map[string]*ClientInfo // key: connection_id
	byDevice map[string][]string    // key: device_id, value: []connection_id oldest first
	mu       sync.RWMutex
	maxConns int
}

// NewManager creates a new connection manager
func NewManager(maxConnections int) *Manager {
	return &Manager{
		clients:  make(map[string]*ClientInfo),
		byDevice: make(map[string][]string),
		maxConns: maxConnections,
	}
}

// Register adds a new device connection
func (m *Manager) Register(connectionID, deviceID, name string, conn net.Conn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.clients) >= m.maxConns {
		return ErrMaxConnectionsReached
	}

	if _, exists := m.clients[connectionID]; exists {
		return fmt.Errorf("connection ID %s already registered", connectionID)
	}

	m.clients[connectionID] = &ClientInfo{
		ConnectionID: connectionID,
		DeviceID:     deviceID,
		Name:         name,
		ConnectedAt:  time.Now(),
		Conn:         conn,
	}
	m.byDevice[deviceID] = append(m.byDevice[deviceID], connectionID)

	return nil
}

// Unregister removes a device connection
func (m *Manager) Unregister(connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, exists := m.clients[connectionID]
	if !exists {
		return fmt.Errorf("connection ID %s not found", connectionID)
	}

	deviceID := client.DeviceID
	if connIDs, ok := m.byDevice[deviceID]; ok {
		for i, id := range connIDs {
			if id == connectionID {
				m.byDevice[deviceID] = append(connIDs[:i], connIDs[i+1:]...)
				break
			}
		}
		if len(m.byDevice[deviceID]) == 0 {
			delete(m.byDevice, deviceID)
		}
	}

	delete(m.clients, connectionID)

	return nil
}

// Get retrieves client information by connection ID
func (m *Manager) Get(connectionID string) (*ClientInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	client, exists := m.clients[connectionID]
	return client, exists
}

// Latest returns the most recently registered connection of a device
func (m *Manager) Latest(deviceID string) (*ClientInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	connIDs := m.byDevice[deviceID]
	if len(connIDs) == 0 {
		return nil, false
	}
	client, exists := m.clients[connIDs[len(connIDs)-1]]
	return client, exists
}

// Count returns the total number of active connections
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Stats returns statistics about the connection manager
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return ManagerStats{
		TotalConnections: len(m.clients),
		UniqueDevices:    len(m.byDevice),
		MaxConnections:   m.maxConns,
	}
}

// ManagerStats contains statistics about the connection manager
type ManagerStats struct {
	TotalConnections int
	UniqueDevices    int
	MaxConnections   int
}

var (
	ErrMaxConnectionsReached = &ConnectionError{"maximum connections reached"}
)

// ConnectionError represents a connection error
type ConnectionError struct {
	msg string
}

func (e *ConnectionError) Error() string {
	return e.msg
}
