package store

import (
	"context"
	"errors"
	"testing"

	"github.com/aerocrew/towerchat/pkg/models"
)

func seedMemory(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	m := NewMemoryStore()

	if err := m.CreateEnterprise(ctx, &models.Enterprise{ID: "ent-1", Name: "Aerocrew"}); err != nil {
		t.Fatalf("CreateEnterprise = %v", err)
	}
	for _, id := range []string{"alice", "bob"} {
		if err := m.CreateAccount(ctx, &models.Account{ID: id, EnterpriseID: "ent-1", DisplayName: id}); err != nil {
			t.Fatalf("CreateAccount(%s) = %v", id, err)
		}
	}
	return m
}

func TestMemoryStore_CreateChannelAddsCreatorAsAdmin(t *testing.T) {
	ctx := context.Background()
	m := seedMemory(t)

	ch := &models.Channel{EnterpriseID: "ent-1", Name: "ops", CreatorID: "alice"}
	if err := m.CreateChannel(ctx, ch); err != nil {
		t.Fatalf("CreateChannel = %v", err)
	}
	if ch.ID == "" || ch.CreatedAt.IsZero() {
		t.Fatalf("generated fields not reflected back: %+v", ch)
	}

	member, err := m.HasMembership(ctx, ch.ID, "alice")
	if err != nil || !member {
		t.Fatalf("HasMembership(creator) = %v, %v", member, err)
	}

	// The creator's auto-membership already exists.
	err = m.AddMember(ctx, &models.Membership{ChannelID: ch.ID, AccountID: "alice"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("AddMember(creator again) = %v, want ErrDuplicate", err)
	}
}

func TestMemoryStore_ChannelNameUniquePerEnterprise(t *testing.T) {
	ctx := context.Background()
	m := seedMemory(t)

	if err := m.CreateChannel(ctx, &models.Channel{EnterpriseID: "ent-1", Name: "ops"}); err != nil {
		t.Fatalf("CreateChannel = %v", err)
	}
	err := m.CreateChannel(ctx, &models.Channel{EnterpriseID: "ent-1", Name: "ops"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate name in same enterprise = %v, want ErrDuplicate", err)
	}

	// Same name in another tenant is fine.
	if err := m.CreateEnterprise(ctx, &models.Enterprise{ID: "ent-2", Name: "Other"}); err != nil {
		t.Fatalf("CreateEnterprise = %v", err)
	}
	if err := m.CreateChannel(ctx, &models.Channel{EnterpriseID: "ent-2", Name: "ops"}); err != nil {
		t.Fatalf("same name in other enterprise = %v", err)
	}
}

func TestMemoryStore_ListMembershipsScopedToEnterprise(t *testing.T) {
	ctx := context.Background()
	m := seedMemory(t)
	if err := m.CreateEnterprise(ctx, &models.Enterprise{ID: "ent-2", Name: "Other"}); err != nil {
		t.Fatalf("CreateEnterprise = %v", err)
	}

	for _, ch := range []*models.Channel{
		{ID: "ch-b", EnterpriseID: "ent-1", Name: "beta", CreatorID: "alice"},
		{ID: "ch-a", EnterpriseID: "ent-1", Name: "alpha", CreatorID: "alice"},
		{ID: "ch-x", EnterpriseID: "ent-2", Name: "xray", CreatorID: "alice"},
	} {
		if err := m.CreateChannel(ctx, ch); err != nil {
			t.Fatalf("CreateChannel(%s) = %v", ch.Name, err)
		}
	}

	got, err := m.ListMemberships(ctx, "alice", "ent-1")
	if err != nil {
		t.Fatalf("ListMemberships = %v", err)
	}
	if len(got) != 2 || got[0] != "ch-a" || got[1] != "ch-b" {
		t.Fatalf("ListMemberships = %v, want sorted [ch-a ch-b]", got)
	}

	got, err = m.ListMemberships(ctx, "bob", "ent-1")
	if err != nil || len(got) != 0 {
		t.Fatalf("ListMemberships(no rows) = %v, %v", got, err)
	}
}

func TestMemoryStore_AddMemberRequiresChannel(t *testing.T) {
	m := seedMemory(t)
	err := m.AddMember(context.Background(), &models.Membership{ChannelID: "nope", AccountID: "bob"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("AddMember(unknown channel) = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_InsertAndListMessages(t *testing.T) {
	ctx := context.Background()
	m := seedMemory(t)
	if err := m.CreateChannel(ctx, &models.Channel{ID: "ch-1", EnterpriseID: "ent-1", Name: "ops", CreatorID: "alice"}); err != nil {
		t.Fatalf("CreateChannel = %v", err)
	}

	msg := &models.Message{ChannelID: "ch-1", SenderID: "alice", Content: "first", Kind: models.MessageText}
	if err := m.InsertMessage(ctx, msg); err != nil {
		t.Fatalf("InsertMessage = %v", err)
	}
	if msg.ID == "" || msg.CreatedAt.IsZero() {
		t.Fatalf("generated fields not reflected back: %+v", msg)
	}

	for i := 0; i < 5; i++ {
		if err := m.InsertMessage(ctx, &models.Message{ChannelID: "ch-1", SenderID: "bob", Content: "more"}); err != nil {
			t.Fatalf("InsertMessage = %v", err)
		}
	}

	got, err := m.ListMessages(ctx, "ch-1", 0)
	if err != nil || len(got) != 6 {
		t.Fatalf("ListMessages = %d msgs, err %v", len(got), err)
	}
	if got[0].Content != "first" {
		t.Fatalf("first message = %+v, want insert order preserved", got[0])
	}

	// The limit keeps the most recent entries.
	got, err = m.ListMessages(ctx, "ch-1", 3)
	if err != nil || len(got) != 3 {
		t.Fatalf("ListMessages(limit 3) = %d msgs, err %v", len(got), err)
	}
	if got[0].Content != "more" {
		t.Fatalf("limited list kept the oldest entry: %+v", got[0])
	}

	// Mutating a returned message must not touch stored state.
	got[0].Content = "tampered"
	again, _ := m.ListMessages(ctx, "ch-1", 3)
	if again[0].Content != "more" {
		t.Fatal("returned message aliases internal state")
	}
}

func TestMemoryStore_GetChannel(t *testing.T) {
	ctx := context.Background()
	m := seedMemory(t)
	if err := m.CreateChannel(ctx, &models.Channel{ID: "ch-1", EnterpriseID: "ent-1", Name: "ops"}); err != nil {
		t.Fatalf("CreateChannel = %v", err)
	}

	if _, err := m.GetChannel(ctx, "ch-1"); err != nil {
		t.Fatalf("GetChannel = %v", err)
	}
	if _, err := m.GetChannel(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetChannel(unknown) = %v, want ErrNotFound", err)
	}
}
