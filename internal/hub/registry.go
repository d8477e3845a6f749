package hub

import (
	"log/slog"
	"sort"
	"sync"
)

// Sender delivers outbound events to a single connection's transport. Send
// reports false when the frame was dropped (full buffer or closed
// transport); delivery is at-most-once and never retried.
type Sender interface {
	Send(event string, payload any) bool
}

// Connection is a point-in-time snapshot of a registry entry. Channels is a
// copy; mutating it does not affect the registry.
type Connection struct {
	ID          string
	AccountID   string
	DisplayName string
	TenantID    string
	Channels    []string
}

// Authenticated reports whether the connection has completed authentication.
func (c Connection) Authenticated() bool { return c.AccountID != "" }

// Subscribed reports whether the connection is bound to channelID.
func (c Connection) Subscribed(channelID string) bool {
	for _, id := range c.Channels {
		if id == channelID {
			return true
		}
	}
	return false
}

// Target pairs a registry entry's identity with its transport, for fan-out.
type Target struct {
	ConnID      string
	AccountID   string
	DisplayName string
	Sender      Sender
}

type entry struct {
	id          string
	sender      Sender
	accountID   string
	displayName string
	tenantID    string
	channels    map[string]struct{}
}

// Registry is the process-wide table of live connections. It is owned by the
// server instance, created empty at startup, and never persisted. All
// mutation is synchronized; reads hand out snapshots.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*entry
	logger *slog.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		conns:  map[string]*entry{},
		logger: logger.With("component", "registry"),
	}
}

// Track creates an unauthenticated entry for a freshly opened transport.
func (r *Registry) Track(connID string, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conns[connID]; exists {
		return
	}
	r.conns[connID] = &entry{
		id:       connID,
		sender:   sender,
		channels: map[string]struct{}{},
	}
	r.logger.Debug("connection tracked", "conn_id", connID)
}

// Register binds a connection to an authenticated identity. It fails with
// ErrUnauthenticated when no verified account ID is supplied. The subscribed
// channel set is rebuilt from scratch: re-authentication never trusts the
// previous set.
func (r *Registry) Register(connID, accountID, displayName, tenantID string) error {
	if accountID == "" {
		return ErrUnauthenticated
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[connID]
	if !ok {
		// Transport already went away; the caller aborts silently.
		return ErrUnauthenticated
	}
	e.accountID = accountID
	e.displayName = displayName
	e.tenantID = tenantID
	e.channels = map[string]struct{}{}
	r.logger.Debug("connection registered",
		"conn_id", connID, "account_id", accountID, "tenant_id", tenantID)
	return nil
}

// AddChannel binds the connection to a channel's fan-out group. Unknown
// connections are a no-op: the transport may have disconnected while a store
// call was in flight, and that race is expected.
func (r *Registry) AddChannel(connID, channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[connID]
	if !ok {
		return
	}
	e.channels[channelID] = struct{}{}
}

// RemoveChannel unbinds the connection from a channel. No-op if the
// connection is unknown.
func (r *Registry) RemoveChannel(connID, channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(e.channels, channelID)
}

// Lookup returns a snapshot of the connection, if it is still live.
func (r *Registry) Lookup(connID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	return e.snapshot(), true
}

// Remove deletes the entry and returns its final snapshot. Idempotent:
// removing an unknown connection reports ok=false.
func (r *Registry) Remove(connID string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	delete(r.conns, connID)
	r.logger.Debug("connection removed", "conn_id", connID)
	return e.snapshot(), true
}

// Subscribers returns the fan-out targets currently bound to channelID.
func (r *Registry) Subscribers(channelID string) []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Target
	for _, e := range r.conns {
		if _, ok := e.channels[channelID]; ok {
			out = append(out, e.target())
		}
	}
	return out
}

// TenantPeers returns the authenticated targets in tenantID, excluding
// exceptConnID.
func (r *Registry) TenantPeers(tenantID, exceptConnID string) []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Target
	for _, e := range r.conns {
		if e.accountID == "" || e.tenantID != tenantID || e.id == exceptConnID {
			continue
		}
		out = append(out, e.target())
	}
	return out
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (e *entry) snapshot() Connection {
	channels := make([]string, 0, len(e.channels))
	for id := range e.channels {
		channels = append(channels, id)
	}
	sort.Strings(channels)
	return Connection{
		ID:          e.id,
		AccountID:   e.accountID,
		DisplayName: e.displayName,
		TenantID:    e.tenantID,
		Channels:    channels,
	}
}

func (e *entry) target() Target {
	return Target{
		ConnID:      e.id,
		AccountID:   e.accountID,
		DisplayName: e.displayName,
		Sender:      e.sender,
	}
}
