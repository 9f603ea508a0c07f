// Package webchat binds the conversation controller to browser clients over
// WebSocket.
package webchat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 10 * time.Second

// SessionManager tracks the open connections of each user. A user with
// several tabs open receives every reply on all of them.
type SessionManager struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Register adds a connection for userID under connID.
func (m *SessionManager) Register(userID, connID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[userID]; !ok {
		m.active[userID] = make(map[string]*websocket.Conn)
	}
	m.active[userID][connID] = conn
	slog.Info("Web chat connection registered", "user_id", userID, "conn_id", connID)
}

// Unregister removes conn if it is still the one registered under connID.
func (m *SessionManager) Unregister(userID, connID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, ok := m.active[userID]
	if !ok {
		return
	}
	if current, exists := conns[connID]; exists && current == conn {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(m.active, userID)
		}
		slog.Info("Web chat connection unregistered", "user_id", userID, "conn_id", connID)
	}
}

// Broadcast writes v as JSON to every connection of userID and returns how
// many writes succeeded.
func (m *SessionManager) Broadcast(ctx context.Context, userID string, v any) int {
	m.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(m.active[userID]))
	for _, c := range m.active[userID] {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	delivered := 0
	for _, c := range conns {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := wsjson.Write(wctx, c, v)
		cancel()
		if err != nil {
			slog.Debug("Web chat write failed", "user_id", userID, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Connections returns the number of open connections for userID.
func (m *SessionManager) Connections(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active[userID])
}

// CloseAll closes every connection, used on shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, conns := range m.active {
		for _, conn := range conns {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(m.active, userID)
	}
}
