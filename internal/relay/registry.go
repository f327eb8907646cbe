package relay

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sender writes one serialized message to a client.
type Sender interface {
	Send(data []byte) error
	Close() error
}

// Conn is the handle for one client's live channel. The session membership
// lives in the Registry, not on the connection itself; Conn only identifies
// the transport.
type Conn struct {
	ID        string
	CreatedAt time.Time
	sender    Sender
}

// NewConn wraps a transport sender in a connection handle.
func NewConn(id string, sender Sender) *Conn {
	return &Conn{
		ID:        id,
		CreatedAt: time.Now(),
		sender:    sender,
	}
}

// Send writes one serialized message to the client.
func (c *Conn) Send(data []byte) error {
	return c.sender.Send(data)
}

type entry struct {
	conn     *Conn
	roomID   string
	identity string
}

// Registry is the process-local map from connection to its current room
// membership and identity. Only the Gateway mutates it; the Broadcaster
// reads via ConnectionsFor.
type Registry struct {
	logger *zap.Logger
	mu     sync.RWMutex
	conns  map[string]*entry
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger: logger.Named("registry"),
		conns:  make(map[string]*entry),
	}
}

// Register adds a connection with no room membership. Registering an
// already-known connection leaves its membership untouched.
func (r *Registry) Register(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[c.ID]; exists {
		return
	}
	r.conns[c.ID] = &entry{conn: c}
}

// SetSession moves a connection into a room, replacing any prior membership.
// There is no explicit leave: a re-join overwrites. Unknown connections are
// ignored.
func (r *Registry) SetSession(c *Conn, roomID, identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[c.ID]
	if !ok {
		r.logger.Debug("set session for unknown connection", zap.String("conn", c.ID))
		return
	}
	e.roomID = roomID
	e.identity = identity
}

// Session returns the connection's current room and identity. ok is false
// when the connection is unknown or has not joined a room.
func (r *Registry) Session(c *Conn) (roomID, identity string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.conns[c.ID]
	if !exists || e.roomID == "" {
		return "", "", false
	}
	return e.roomID, e.identity, true
}

// ConnectionsFor returns the live connections currently mapped to a room,
// for this process only.
func (r *Registry) ConnectionsFor(roomID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []*Conn
	for _, e := range r.conns {
		if e.roomID == roomID && roomID != "" {
			conns = append(conns, e.conn)
		}
	}
	return conns
}

// Remove deletes a connection. Removing an unknown connection is a no-op.
func (r *Registry) Remove(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c.ID)
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
