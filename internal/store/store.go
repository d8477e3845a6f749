// Package store provides durable persistence for enterprises, accounts,
// channels, channel memberships, and messages. It is the source of truth the
// routing hub consults for "who belongs to which channel"; the hub itself
// only ever calls ListMemberships, HasMembership, and InsertMessage on the
// hot path, everything else is administrative glue used by the CLI and the
// registration flows.
package store

import (
	"context"

	"github.com/aerocrew/towerchat/pkg/models"
)

// Store is the interface for membership and message persistence.
type Store interface {
	// Membership queries consumed by the routing core.
	ListMemberships(ctx context.Context, accountID, enterpriseID string) ([]string, error)
	HasMembership(ctx context.Context, channelID, accountID string) (bool, error)

	// InsertMessage persists a message and reflects the generated ID and
	// CreatedAt back into msg.
	InsertMessage(ctx context.Context, msg *models.Message) error

	// Administrative operations (CLI, registration, backfill).
	CreateEnterprise(ctx context.Context, ent *models.Enterprise) error
	CreateAccount(ctx context.Context, acc *models.Account) error
	CreateChannel(ctx context.Context, ch *models.Channel) error
	AddMember(ctx context.Context, m *models.Membership) error
	GetChannel(ctx context.Context, id string) (*models.Channel, error)
	ListChannels(ctx context.Context, enterpriseID string) ([]*models.Channel, error)
	ListMessages(ctx context.Context, channelID string, limit int) ([]*models.Message, error)

	Close() error
}

// DefaultHistoryLimit caps message backfill queries when the caller does not
// specify a limit.
const DefaultHistoryLimit = 50
