package hub

import (
	"sync"
	"time"

	"github.com/aerocrew/towerchat/pkg/models"
)

// Tracker holds the ephemeral typing and presence state. Nothing here is
// ever persisted or replayed to newly joining connections; typing and
// presence are fire-and-forget relays plus cleanup on disconnect.
type Tracker struct {
	mu sync.Mutex

	// typing: channelID -> accountID -> record.
	typing map[string]map[string]typingRecord

	// presence: tenantID -> accountID -> state.
	presence map[string]map[string]*presenceState
}

type presenceState struct {
	status      models.PresenceStatus
	connections int
}

type typingRecord struct {
	since       time.Time
	displayName string
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		typing:   map[string]map[string]typingRecord{},
		presence: map[string]map[string]*presenceState{},
	}
}

// StartTyping records accountID as typing in channelID. Returns false when
// the account was already typing there (the relay is suppressed; repeated
// typing_start refreshes the timestamp for the TTL sweep only).
func (t *Tracker) StartTyping(channelID, accountID, displayName string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	byAccount, ok := t.typing[channelID]
	if !ok {
		byAccount = map[string]typingRecord{}
		t.typing[channelID] = byAccount
	}
	_, already := byAccount[accountID]
	byAccount[accountID] = typingRecord{since: time.Now(), displayName: displayName}
	return !already
}

// StopTyping clears the typing entry. Returns false when no entry was set,
// in which case no relay is emitted.
func (t *Tracker) StopTyping(channelID, accountID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	byAccount, ok := t.typing[channelID]
	if !ok {
		return false
	}
	if _, set := byAccount[accountID]; !set {
		return false
	}
	delete(byAccount, accountID)
	if len(byAccount) == 0 {
		delete(t.typing, channelID)
	}
	return true
}

// TypingEntry identifies one (channel, account) typing record.
type TypingEntry struct {
	ChannelID   string
	AccountID   string
	DisplayName string
}

// SweepTyping removes entries older than ttl and returns them. Stale
// entries come from clients that crashed or stalled without issuing
// typing_stop; the sweep is an optional hardening layer and runs only when
// the hub is configured with a positive TTL.
func (t *Tracker) SweepTyping(ttl time.Duration) []TypingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-ttl)
	var expired []TypingEntry
	for channelID, byAccount := range t.typing {
		for accountID, rec := range byAccount {
			if rec.since.After(cutoff) {
				continue
			}
			delete(byAccount, accountID)
			expired = append(expired, TypingEntry{
				ChannelID:   channelID,
				AccountID:   accountID,
				DisplayName: rec.displayName,
			})
		}
		if len(byAccount) == 0 {
			delete(t.typing, channelID)
		}
	}
	return expired
}

// ConnectionOnline records a live connection for the account. Returns true
// when this is the account's first connection in the tenant, i.e. the
// offline -> online transition peers should be told about.
func (t *Tracker) ConnectionOnline(tenantID, accountID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	byAccount, ok := t.presence[tenantID]
	if !ok {
		byAccount = map[string]*presenceState{}
		t.presence[tenantID] = byAccount
	}
	state, ok := byAccount[accountID]
	if !ok {
		byAccount[accountID] = &presenceState{status: models.PresenceOnline, connections: 1}
		return true
	}
	state.connections++
	return false
}

// ConnectionOffline records a closed connection. Returns true when it was
// the account's last connection, i.e. the transition to offline.
func (t *Tracker) ConnectionOffline(tenantID, accountID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	byAccount, ok := t.presence[tenantID]
	if !ok {
		return false
	}
	state, ok := byAccount[accountID]
	if !ok {
		return false
	}
	state.connections--
	if state.connections > 0 {
		return false
	}
	delete(byAccount, accountID)
	if len(byAccount) == 0 {
		delete(t.presence, tenantID)
	}
	return true
}

// SetStatus applies an explicit presence update. Returns false when the
// account has no live connection in the tenant (nothing to update).
func (t *Tracker) SetStatus(tenantID, accountID string, status models.PresenceStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	byAccount, ok := t.presence[tenantID]
	if !ok {
		return false
	}
	state, ok := byAccount[accountID]
	if !ok {
		return false
	}
	state.status = status
	return true
}

// Status returns the current presence of an account, or offline when it has
// no live connections.
func (t *Tracker) Status(tenantID, accountID string) models.PresenceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if byAccount, ok := t.presence[tenantID]; ok {
		if state, ok := byAccount[accountID]; ok {
			return state.status
		}
	}
	return models.PresenceOffline
}
