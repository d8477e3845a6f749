// Package hub implements the real-time message-routing core: it
// authenticates live connections, keeps their subscribed-channel state in
// sync with persisted memberships, and fans out message, typing, and
// presence events to the connections bound to each channel. Fan-out is
// fire-and-forget: delivery is at-most-once per connection and never
// retried; a client that misses a frame recovers by reconnecting and
// backfilling history from the store.
package hub

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aerocrew/towerchat/internal/auth"
	"github.com/aerocrew/towerchat/internal/observability"
	"github.com/aerocrew/towerchat/internal/store"
	"github.com/aerocrew/towerchat/pkg/models"
)

// Options configures a Hub.
type Options struct {
	Store    store.Store
	Verifier auth.Verifier
	Metrics  *observability.Metrics
	Logger   *slog.Logger

	// TypingTTL, when positive, enables the stale-typing sweep.
	TypingTTL time.Duration
}

// Hub owns the connection registry and the ephemeral typing/presence state
// for one serving process. All handlers report failures to the originating
// connection only; nothing in the error path is ever broadcast.
type Hub struct {
	registry *Registry
	tracker  *Tracker
	store    store.Store
	verifier auth.Verifier
	metrics  *observability.Metrics
	logger   *slog.Logger

	typingTTL time.Duration

	// broadcastMu orders fan-out across event types: a stopped-typing
	// relay triggered by a send always precedes its new_message.
	broadcastMu sync.Mutex

	// sendMu guards sendLocks. Each channel's lock is held across the
	// message insert and its broadcast enqueue, so per-channel fan-out
	// order matches persistence commit order.
	sendMu    sync.Mutex
	sendLocks map[string]*sync.Mutex
}

// New creates a hub. Store and Verifier are required; Metrics and Logger
// fall back to no-op and slog.Default respectively.
func New(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry:  NewRegistry(logger),
		tracker:   NewTracker(),
		store:     opts.Store,
		verifier:  opts.Verifier,
		metrics:   opts.Metrics,
		logger:    logger.With("component", "hub"),
		typingTTL: opts.TypingTTL,
		sendLocks: map[string]*sync.Mutex{},
	}
}

// Registry exposes the connection registry (health surface, tests).
func (h *Hub) Registry() *Registry { return h.registry }

// Run starts background maintenance and blocks until ctx is cancelled.
// Currently that is only the optional stale-typing sweep.
func (h *Hub) Run(ctx context.Context) {
	if h.typingTTL <= 0 {
		<-ctx.Done()
		return
	}
	interval := h.typingTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, entry := range h.tracker.SweepTyping(h.typingTTL) {
				h.broadcast(h.registry.Subscribers(entry.ChannelID), "", EventUserStoppedTyping, TypingEventPayload{
					AccountID:   entry.AccountID,
					DisplayName: entry.DisplayName,
					ChannelID:   entry.ChannelID,
				})
			}
		}
	}
}

// Connect tracks a freshly opened, not yet authenticated transport.
func (h *Hub) Connect(connID string, sender Sender) {
	h.registry.Track(connID, sender)
	h.gauge("pending", 1)
}

// Disconnect tears down a connection: registry entry, typing state, and the
// tenant-wide offline notification when the account's last connection
// closed. Idempotent.
func (h *Hub) Disconnect(connID string) {
	conn, ok := h.registry.Remove(connID)
	if !ok {
		return
	}
	if !conn.Authenticated() {
		h.gauge("pending", -1)
		return
	}
	h.gauge("authenticated", -1)

	// Peers in each channel the connection was typing in get exactly one
	// stopped-typing relay.
	for _, channelID := range conn.Channels {
		if h.tracker.StopTyping(channelID, conn.AccountID) {
			h.broadcast(h.registry.Subscribers(channelID), "", EventUserStoppedTyping, TypingEventPayload{
				AccountID:   conn.AccountID,
				DisplayName: conn.DisplayName,
				ChannelID:   channelID,
			})
		}
	}

	if h.tracker.ConnectionOffline(conn.TenantID, conn.AccountID) {
		h.broadcast(h.registry.TenantPeers(conn.TenantID, connID), "", EventUserOffline, UserOfflinePayload{
			AccountID: conn.AccountID,
		})
	}
	h.logger.Info("connection closed",
		"conn_id", connID, "account_id", conn.AccountID, "tenant_id", conn.TenantID)
}

// Authenticate verifies the presented credential, loads the account's
// channel memberships, and binds the connection to each channel's fan-out
// group. The resolved channel list is acknowledged to the origin; tenant
// peers are told the account came online.
func (h *Hub) Authenticate(ctx context.Context, connID string, origin Sender, p AuthenticatePayload) {
	verifiedID, err := h.verifier.Verify(ctx, p.Credential)
	if err != nil || verifiedID != p.AccountID {
		// A mismatched subject is a spoofed identity claim, reported
		// identically to a bad credential.
		h.countError(CodeAuthenticationFailed)
		origin.Send(EventAuthError, AuthErrorPayload{Message: ErrAuthenticationFailed.Error()})
		return
	}

	channelIDs, err := h.store.ListMemberships(ctx, verifiedID, p.TenantID)
	if err != nil {
		h.logger.Error("membership load failed", "conn_id", connID, "error", err)
		h.countError(CodePersistence)
		origin.Send(EventAuthError, AuthErrorPayload{Message: "failed to load channel memberships"})
		return
	}

	// The transport may have dropped while the verifier or store call was
	// in flight; abort silently in that case.
	prev, ok := h.registry.Lookup(connID)
	if !ok {
		return
	}
	if err := h.registry.Register(connID, verifiedID, p.DisplayName, p.TenantID); err != nil {
		return
	}
	for _, channelID := range channelIDs {
		h.registry.AddChannel(connID, channelID)
	}

	// Typing indicators left by the previous identity are cleared the same
	// way a disconnect clears them; the new identity starts clean.
	if prev.Authenticated() {
		for _, channelID := range prev.Channels {
			if h.tracker.StopTyping(channelID, prev.AccountID) {
				h.broadcast(h.registry.Subscribers(channelID), "", EventUserStoppedTyping, TypingEventPayload{
					AccountID:   prev.AccountID,
					DisplayName: prev.DisplayName,
					ChannelID:   channelID,
				})
			}
		}
	}

	if !prev.Authenticated() {
		h.gauge("pending", -1)
		h.gauge("authenticated", 1)
	} else if prev.AccountID != verifiedID || prev.TenantID != p.TenantID {
		// Re-authentication as a different identity releases the old one.
		if h.tracker.ConnectionOffline(prev.TenantID, prev.AccountID) {
			h.broadcast(h.registry.TenantPeers(prev.TenantID, connID), "", EventUserOffline, UserOfflinePayload{
				AccountID: prev.AccountID,
			})
		}
	}

	first := false
	if !prev.Authenticated() || prev.AccountID != verifiedID || prev.TenantID != p.TenantID {
		first = h.tracker.ConnectionOnline(p.TenantID, verifiedID)
	}

	origin.Send(EventAuthenticated, AuthenticatedPayload{
		Success:    true,
		ChannelIDs: append([]string{}, channelIDs...),
	})
	if first {
		h.broadcast(h.registry.TenantPeers(p.TenantID, connID), "", EventUserOnline, UserOnlinePayload{
			AccountID:   verifiedID,
			DisplayName: p.DisplayName,
		})
	}
	h.logger.Info("connection authenticated",
		"conn_id", connID, "account_id", verifiedID, "tenant_id", p.TenantID,
		"channels", len(channelIDs))
}

// JoinChannel confirms an existing membership row and binds the connection
// to the channel's fan-out group. Joining never creates memberships; the
// self-service join paths live with the relational collaborator.
func (h *Hub) JoinChannel(ctx context.Context, connID string, origin Sender, p JoinChannelPayload) {
	conn, ok := h.registry.Lookup(connID)
	if !ok {
		return
	}
	if !conn.Authenticated() {
		h.sendError(origin, ErrUnauthenticated)
		return
	}

	member, err := h.store.HasMembership(ctx, p.ChannelID, conn.AccountID)
	if err != nil {
		h.logger.Error("membership check failed", "conn_id", connID, "error", err)
		h.sendError(origin, ErrPersistence)
		return
	}
	if !member {
		h.sendError(origin, ErrAccessDenied)
		return
	}

	// Re-check after the store round trip.
	if _, ok := h.registry.Lookup(connID); !ok {
		return
	}
	h.registry.AddChannel(connID, p.ChannelID)

	origin.Send(EventJoinedChannel, JoinedChannelPayload{ChannelID: p.ChannelID})
	h.broadcast(h.registry.Subscribers(p.ChannelID), connID, EventUserJoinedChannel, UserJoinedChannelPayload{
		ChannelID:   p.ChannelID,
		AccountID:   conn.AccountID,
		DisplayName: conn.DisplayName,
	})
}

// SendMessage authorizes against live subscription state, persists the
// message, and fans it out to every subscriber including the sender. A
// store failure aborts the send entirely: no partial fan-out of
// unpersisted data.
func (h *Hub) SendMessage(ctx context.Context, connID string, origin Sender, p SendMessagePayload) {
	conn, ok := h.registry.Lookup(connID)
	if !ok {
		return
	}
	if !conn.Authenticated() {
		h.sendError(origin, ErrUnauthenticated)
		return
	}
	// Authorization is against live subscription state, not a fresh store
	// query: a small staleness window in exchange for one less round trip
	// on the hot path.
	if !conn.Subscribed(p.ChannelID) {
		h.sendError(origin, ErrNotAMember)
		return
	}
	if strings.TrimSpace(p.Content) == "" && p.AttachmentRef == "" {
		origin.Send(EventError, ErrorPayload{Code: CodeInvalidPayload, Message: "content is required"})
		return
	}
	kind := p.Kind
	if kind == "" {
		kind = models.MessageText
	}
	if !kind.Valid() {
		origin.Send(EventError, ErrorPayload{Code: CodeInvalidPayload, Message: "unsupported message kind"})
		return
	}

	// One sender at a time per channel, from insert through enqueue:
	// subscribers see messages in the order their inserts committed.
	lock := h.channelLock(p.ChannelID)
	lock.Lock()
	defer lock.Unlock()

	msg := &models.Message{
		ChannelID:     p.ChannelID,
		SenderID:      conn.AccountID,
		Content:       p.Content,
		Kind:          kind,
		AttachmentRef: p.AttachmentRef,
	}
	if err := h.store.InsertMessage(ctx, msg); err != nil {
		h.logger.Error("message insert failed",
			"conn_id", connID, "channel_id", p.ChannelID, "error", err)
		h.sendError(origin, ErrPersistence)
		return
	}

	// The sender may have disconnected while the insert was in flight; the
	// message is durable but its broadcast is discarded with the
	// connection. Reconnecting clients pick it up from history.
	if _, ok := h.registry.Lookup(connID); !ok {
		return
	}

	h.broadcastMu.Lock()
	if h.tracker.StopTyping(p.ChannelID, conn.AccountID) {
		h.send(h.registry.Subscribers(p.ChannelID), "", EventUserStoppedTyping, TypingEventPayload{
			AccountID:   conn.AccountID,
			DisplayName: conn.DisplayName,
			ChannelID:   p.ChannelID,
		})
	}
	targets := h.registry.Subscribers(p.ChannelID)
	h.send(targets, "", EventNewMessage, NewMessagePayload{
		ID:            msg.ID,
		ChannelID:     msg.ChannelID,
		SenderID:      msg.SenderID,
		SenderName:    conn.DisplayName,
		Content:       msg.Content,
		Kind:          msg.Kind,
		AttachmentRef: msg.AttachmentRef,
		Timestamp:     msg.CreatedAt,
	})
	h.broadcastMu.Unlock()

	if h.metrics != nil {
		h.metrics.MessagesRouted.WithLabelValues(string(kind)).Inc()
		h.metrics.FanoutSize.Observe(float64(len(targets)))
	}
}

// TypingStart relays a typing indicator to the channel's other subscribers.
func (h *Hub) TypingStart(connID string, origin Sender, p TypingPayload) {
	conn, ok := h.registry.Lookup(connID)
	if !ok {
		return
	}
	if !conn.Authenticated() {
		h.sendError(origin, ErrUnauthenticated)
		return
	}
	if !conn.Subscribed(p.ChannelID) {
		h.sendError(origin, ErrNotAMember)
		return
	}
	if h.tracker.StartTyping(p.ChannelID, conn.AccountID, conn.DisplayName) {
		h.broadcast(h.registry.Subscribers(p.ChannelID), connID, EventUserTyping, TypingEventPayload{
			AccountID:   conn.AccountID,
			DisplayName: conn.DisplayName,
			ChannelID:   p.ChannelID,
		})
	}
}

// TypingStop clears a typing indicator. Relayed only when an entry was set.
func (h *Hub) TypingStop(connID string, origin Sender, p TypingPayload) {
	conn, ok := h.registry.Lookup(connID)
	if !ok {
		return
	}
	if !conn.Authenticated() {
		h.sendError(origin, ErrUnauthenticated)
		return
	}
	if !conn.Subscribed(p.ChannelID) {
		h.sendError(origin, ErrNotAMember)
		return
	}
	if h.tracker.StopTyping(p.ChannelID, conn.AccountID) {
		h.broadcast(h.registry.Subscribers(p.ChannelID), connID, EventUserStoppedTyping, TypingEventPayload{
			AccountID:   conn.AccountID,
			DisplayName: conn.DisplayName,
			ChannelID:   p.ChannelID,
		})
	}
}

// UpdatePresence applies an explicit status change and relays it to tenant
// peers. Offline cannot be set explicitly; it is derived from disconnect.
func (h *Hub) UpdatePresence(connID string, origin Sender, p UpdatePresencePayload) {
	conn, ok := h.registry.Lookup(connID)
	if !ok {
		return
	}
	if !conn.Authenticated() {
		h.sendError(origin, ErrUnauthenticated)
		return
	}
	if !p.Status.Valid() {
		origin.Send(EventError, ErrorPayload{Code: CodeInvalidPayload, Message: "unsupported presence status"})
		return
	}
	if !h.tracker.SetStatus(conn.TenantID, conn.AccountID, p.Status) {
		return
	}
	h.broadcast(h.registry.TenantPeers(conn.TenantID, connID), "", EventPresenceUpdate, PresenceUpdatePayload{
		AccountID: conn.AccountID,
		Status:    p.Status,
	})
}

// channelLock returns the per-channel send lock, creating it on first use.
// Locks live for the process lifetime; the map is bounded by the number of
// channels with traffic.
func (h *Hub) channelLock(channelID string) *sync.Mutex {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	lock, ok := h.sendLocks[channelID]
	if !ok {
		lock = &sync.Mutex{}
		h.sendLocks[channelID] = lock
	}
	return lock
}

// sendError reports a failure to the originating connection only.
func (h *Hub) sendError(origin Sender, err error) {
	code := errorCode(err)
	h.countError(code)
	origin.Send(EventError, ErrorPayload{Code: code, Message: err.Error()})
}

// broadcast delivers an event to targets under the ordering lock.
func (h *Hub) broadcast(targets []Target, exceptConnID, event string, payload any) {
	h.broadcastMu.Lock()
	defer h.broadcastMu.Unlock()
	h.send(targets, exceptConnID, event, payload)
}

// send delivers an event to targets; the caller holds broadcastMu.
func (h *Hub) send(targets []Target, exceptConnID, event string, payload any) {
	for _, t := range targets {
		if t.ConnID == exceptConnID {
			continue
		}
		if !t.Sender.Send(event, payload) {
			h.countDrop(event)
			h.logger.Warn("event dropped", "event", event, "conn_id", t.ConnID)
		}
	}
}

func (h *Hub) countError(code string) {
	if h.metrics != nil {
		h.metrics.HandlerErrors.WithLabelValues(code).Inc()
	}
}

func (h *Hub) countDrop(event string) {
	if h.metrics != nil {
		h.metrics.EventsDropped.WithLabelValues(event).Inc()
	}
}

func (h *Hub) gauge(state string, delta float64) {
	if h.metrics != nil {
		h.metrics.ActiveConnections.WithLabelValues(state).Add(delta)
	}
}
