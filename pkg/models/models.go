// Package models provides the domain types shared by the towerchat hub,
// store, and CLI: tenants, accounts, channels, memberships, and messages.
package models

import (
	"time"
)

// Enterprise is a tenant. Accounts are assigned to exactly one enterprise
// based on their registered email domain; every channel, membership, and
// presence broadcast is scoped to a single enterprise.
type Enterprise struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Account is a registered user within an enterprise.
type Account struct {
	ID           string    `json:"id"`
	EnterpriseID string    `json:"enterprise_id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChannelVisibility determines who may join a channel without an explicit
// invitation.
type ChannelVisibility string

const (
	// ChannelPublic channels are self-service joinable by any member of the
	// enterprise.
	ChannelPublic ChannelVisibility = "public"

	// ChannelPrivate channels require an explicit membership row; there is no
	// self-service join path.
	ChannelPrivate ChannelVisibility = "private"

	// ChannelDepartment channels are self-service joinable by enterprise
	// members of the owning department.
	ChannelDepartment ChannelVisibility = "department"
)

// Channel is a named message stream within an enterprise. Channel names are
// unique per enterprise.
type Channel struct {
	ID           string            `json:"id"`
	EnterpriseID string            `json:"enterprise_id"`
	Name         string            `json:"name"`
	Visibility   ChannelVisibility `json:"visibility"`
	CreatorID    string            `json:"creator_id"`
	DepartmentID string            `json:"department_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// MembershipRole is the role an account holds within a single channel.
type MembershipRole string

const (
	// RoleAdmin is held by the channel creator and any promoted members.
	RoleAdmin MembershipRole = "admin"

	// RoleMember is the default role for joined or invited accounts.
	RoleMember MembershipRole = "member"
)

// Membership links an account to a channel. At most one row exists per
// (channel, account) pair.
type Membership struct {
	ChannelID string         `json:"channel_id"`
	AccountID string         `json:"account_id"`
	Role      MembershipRole `json:"role"`
	CreatedAt time.Time      `json:"created_at"`
}

// MessageKind identifies the payload semantics of a message.
type MessageKind string

const (
	MessageText     MessageKind = "text"
	MessageFile     MessageKind = "file"
	MessageImage    MessageKind = "image"
	MessageAlert    MessageKind = "alert"
	MessageHandover MessageKind = "handover"
)

// Valid reports whether k is one of the defined message kinds.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageText, MessageFile, MessageImage, MessageAlert, MessageHandover:
		return true
	}
	return false
}

// Message is an append-only channel message. Attachment handling is not part
// of the routing core: AttachmentRef is carried opaquely.
type Message struct {
	ID            string      `json:"id"`
	ChannelID     string      `json:"channel_id"`
	SenderID      string      `json:"sender_id"`
	Content       string      `json:"content"`
	Kind          MessageKind `json:"kind"`
	AttachmentRef string      `json:"attachment_ref,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// PresenceStatus is the transient availability of an account. It is derived
// from connection existence plus explicit updates and is never persisted.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceBusy    PresenceStatus = "busy"
	PresenceOffline PresenceStatus = "offline"
)

// Valid reports whether s is a status a client may set explicitly. Offline is
// excluded: it is only ever derived from the last connection closing.
func (s PresenceStatus) Valid() bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceBusy:
		return true
	}
	return false
}
