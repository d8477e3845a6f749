package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aerocrew/towerchat/pkg/models"
)

// MemoryStore provides an in-memory Store implementation for testing and
// local runs. All reads return copies; callers never see internal state.
type MemoryStore struct {
	mu          sync.RWMutex
	enterprises map[string]*models.Enterprise
	accounts    map[string]*models.Account
	channels    map[string]*models.Channel
	memberships map[string]map[string]*models.Membership // channelID -> accountID -> row
	messages    map[string][]*models.Message             // channelID -> append order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		enterprises: map[string]*models.Enterprise{},
		accounts:    map[string]*models.Account{},
		channels:    map[string]*models.Channel{},
		memberships: map[string]map[string]*models.Membership{},
		messages:    map[string][]*models.Message{},
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) ListMemberships(ctx context.Context, accountID, enterpriseID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for channelID, members := range m.memberships {
		if _, ok := members[accountID]; !ok {
			continue
		}
		ch, ok := m.channels[channelID]
		if !ok || ch.EnterpriseID != enterpriseID {
			continue
		}
		out = append(out, channelID)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) HasMembership(ctx context.Context, channelID, accountID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members, ok := m.memberships[channelID]
	if !ok {
		return false, nil
	}
	_, ok = members[accountID]
	return ok, nil
}

func (m *MemoryStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return errors.New("message is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *msg
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now().UTC()
	}
	m.messages[clone.ChannelID] = append(m.messages[clone.ChannelID], &clone)

	// Reflect generated fields back to the caller.
	msg.ID = clone.ID
	msg.CreatedAt = clone.CreatedAt
	return nil
}

func (m *MemoryStore) CreateEnterprise(ctx context.Context, ent *models.Enterprise) error {
	if ent == nil {
		return errors.New("enterprise is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *ent
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now().UTC()
	}
	if _, exists := m.enterprises[clone.ID]; exists {
		return ErrDuplicate
	}
	m.enterprises[clone.ID] = &clone
	ent.ID = clone.ID
	ent.CreatedAt = clone.CreatedAt
	return nil
}

func (m *MemoryStore) CreateAccount(ctx context.Context, acc *models.Account) error {
	if acc == nil {
		return errors.New("account is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *acc
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now().UTC()
	}
	if _, exists := m.accounts[clone.ID]; exists {
		return ErrDuplicate
	}
	m.accounts[clone.ID] = &clone
	acc.ID = clone.ID
	acc.CreatedAt = clone.CreatedAt
	return nil
}

func (m *MemoryStore) CreateChannel(ctx context.Context, ch *models.Channel) error {
	if ch == nil {
		return errors.New("channel is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.channels {
		if existing.EnterpriseID == ch.EnterpriseID && existing.Name == ch.Name {
			return ErrDuplicate
		}
	}

	clone := *ch
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now().UTC()
	}
	m.channels[clone.ID] = &clone

	// The creator is always auto-added as channel admin.
	if clone.CreatorID != "" {
		if m.memberships[clone.ID] == nil {
			m.memberships[clone.ID] = map[string]*models.Membership{}
		}
		m.memberships[clone.ID][clone.CreatorID] = &models.Membership{
			ChannelID: clone.ID,
			AccountID: clone.CreatorID,
			Role:      models.RoleAdmin,
			CreatedAt: clone.CreatedAt,
		}
	}

	ch.ID = clone.ID
	ch.CreatedAt = clone.CreatedAt
	return nil
}

func (m *MemoryStore) AddMember(ctx context.Context, mem *models.Membership) error {
	if mem == nil {
		return errors.New("membership is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.channels[mem.ChannelID]; !ok {
		return ErrNotFound
	}
	if m.memberships[mem.ChannelID] == nil {
		m.memberships[mem.ChannelID] = map[string]*models.Membership{}
	}
	if _, exists := m.memberships[mem.ChannelID][mem.AccountID]; exists {
		return ErrDuplicate
	}

	clone := *mem
	if clone.Role == "" {
		clone.Role = models.RoleMember
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now().UTC()
	}
	m.memberships[mem.ChannelID][mem.AccountID] = &clone
	mem.Role = clone.Role
	mem.CreatedAt = clone.CreatedAt
	return nil
}

func (m *MemoryStore) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *ch
	return &clone, nil
}

func (m *MemoryStore) ListChannels(ctx context.Context, enterpriseID string) ([]*models.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Channel
	for _, ch := range m.channels {
		if ch.EnterpriseID != enterpriseID {
			continue
		}
		clone := *ch
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, channelID string, limit int) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	msgs := m.messages[channelID]
	start := 0
	if len(msgs) > limit {
		start = len(msgs) - limit
	}
	out := make([]*models.Message, 0, len(msgs)-start)
	for _, msg := range msgs[start:] {
		clone := *msg
		out = append(out, &clone)
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
