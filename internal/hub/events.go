package hub

import (
	"encoding/json"
	"time"

	"github.com/aerocrew/towerchat/pkg/models"
)

// Frame is the wire envelope for every event in both directions:
// {"event": "...", "data": {...}}.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client -> server events.
const (
	EventAuthenticate   = "authenticate"
	EventJoinChannel    = "join_channel"
	EventSendMessage    = "send_message"
	EventTypingStart    = "typing_start"
	EventTypingStop     = "typing_stop"
	EventUpdatePresence = "update_presence"
)

// Server -> client events.
const (
	EventAuthenticated     = "authenticated"
	EventAuthError         = "authError"
	EventJoinedChannel     = "joined_channel"
	EventUserJoinedChannel = "user_joined_channel"
	EventNewMessage        = "new_message"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventPresenceUpdate    = "user_presence_update"
	EventUserOnline        = "user_online"
	EventUserOffline       = "user_offline"
	EventError             = "error"
)

// AuthenticatePayload establishes identity and loads the channel set.
type AuthenticatePayload struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	TenantID    string `json:"tenantId"`
	Credential  string `json:"credential"`
}

// AuthenticatedPayload acknowledges authentication with the resolved
// channel identifier list.
type AuthenticatedPayload struct {
	Success    bool     `json:"success"`
	ChannelIDs []string `json:"channelIds"`
}

// AuthErrorPayload reports an authentication failure.
type AuthErrorPayload struct {
	Message string `json:"message"`
}

// JoinChannelPayload requests an explicit channel join.
type JoinChannelPayload struct {
	ChannelID string `json:"channelId"`
}

// JoinedChannelPayload acknowledges a join to the requester.
type JoinedChannelPayload struct {
	ChannelID string `json:"channelId"`
}

// UserJoinedChannelPayload notifies existing subscribers of a join.
type UserJoinedChannelPayload struct {
	ChannelID   string `json:"channelId"`
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
}

// SendMessagePayload submits a message to a channel.
type SendMessagePayload struct {
	ChannelID     string             `json:"channelId"`
	Content       string             `json:"content"`
	Kind          models.MessageKind `json:"kind,omitempty"`
	AttachmentRef string             `json:"attachmentRef,omitempty"`
}

// NewMessagePayload is the canonical fan-out delivery of a persisted message.
type NewMessagePayload struct {
	ID            string             `json:"id"`
	ChannelID     string             `json:"channelId"`
	SenderID      string             `json:"senderId"`
	SenderName    string             `json:"senderName"`
	Content       string             `json:"content"`
	Kind          models.MessageKind `json:"kind"`
	AttachmentRef string             `json:"attachmentRef,omitempty"`
	Timestamp     time.Time          `json:"timestamp"`
}

// TypingPayload carries typing_start and typing_stop requests.
type TypingPayload struct {
	ChannelID string `json:"channelId"`
}

// TypingEventPayload relays a typing change to channel subscribers.
type TypingEventPayload struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	ChannelID   string `json:"channelId"`
}

// UpdatePresencePayload carries an explicit presence change.
type UpdatePresencePayload struct {
	Status models.PresenceStatus `json:"status"`
}

// PresenceUpdatePayload relays a presence change to tenant peers.
type PresenceUpdatePayload struct {
	AccountID string                `json:"accountId"`
	Status    models.PresenceStatus `json:"status"`
}

// UserOnlinePayload is the tenant-wide online notification.
type UserOnlinePayload struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName,omitempty"`
}

// UserOfflinePayload is the tenant-wide offline notification, emitted when
// an account's last live connection closes.
type UserOfflinePayload struct {
	AccountID string `json:"accountId"`
}

// ErrorPayload reports a generic operation failure to the originating
// connection only.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
