package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aerocrew/towerchat/pkg/models"
)

func newSQLiteFixture(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteFixture(t)

	if err := s.CreateEnterprise(ctx, &models.Enterprise{ID: "ent-1", Name: "Aerocrew"}); err != nil {
		t.Fatalf("CreateEnterprise = %v", err)
	}
	if err := s.CreateAccount(ctx, &models.Account{ID: "alice", EnterpriseID: "ent-1", DisplayName: "alice", Email: "alice@example.com"}); err != nil {
		t.Fatalf("CreateAccount = %v", err)
	}

	ch := &models.Channel{EnterpriseID: "ent-1", Name: "ops", CreatorID: "alice"}
	if err := s.CreateChannel(ctx, ch); err != nil {
		t.Fatalf("CreateChannel = %v", err)
	}
	if ch.ID == "" {
		t.Fatal("channel ID not generated")
	}

	// Creator membership was written in the same transaction.
	member, err := s.HasMembership(ctx, ch.ID, "alice")
	if err != nil || !member {
		t.Fatalf("HasMembership(creator) = %v, %v", member, err)
	}

	got, err := s.ListMemberships(ctx, "alice", "ent-1")
	if err != nil || len(got) != 1 || got[0] != ch.ID {
		t.Fatalf("ListMemberships = %v, %v", got, err)
	}

	loaded, err := s.GetChannel(ctx, ch.ID)
	if err != nil {
		t.Fatalf("GetChannel = %v", err)
	}
	if loaded.Name != "ops" || loaded.Visibility != models.ChannelPublic {
		t.Fatalf("GetChannel = %+v", loaded)
	}
}

func TestSQLiteStore_DuplicateChannelName(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteFixture(t)
	if err := s.CreateEnterprise(ctx, &models.Enterprise{ID: "ent-1", Name: "Aerocrew"}); err != nil {
		t.Fatalf("CreateEnterprise = %v", err)
	}

	if err := s.CreateChannel(ctx, &models.Channel{EnterpriseID: "ent-1", Name: "ops"}); err != nil {
		t.Fatalf("CreateChannel = %v", err)
	}
	err := s.CreateChannel(ctx, &models.Channel{EnterpriseID: "ent-1", Name: "ops"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate channel name = %v, want ErrDuplicate", err)
	}
}

func TestSQLiteStore_MessageHistory(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteFixture(t)
	if err := s.CreateEnterprise(ctx, &models.Enterprise{ID: "ent-1", Name: "Aerocrew"}); err != nil {
		t.Fatalf("CreateEnterprise = %v", err)
	}
	if err := s.CreateChannel(ctx, &models.Channel{ID: "ch-1", EnterpriseID: "ent-1", Name: "ops"}); err != nil {
		t.Fatalf("CreateChannel = %v", err)
	}

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		msg := &models.Message{
			ChannelID: "ch-1",
			SenderID:  "alice",
			Content:   string(rune('a' + i)),
			Kind:      models.MessageText,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.InsertMessage(ctx, msg); err != nil {
			t.Fatalf("InsertMessage(%d) = %v", i, err)
		}
	}

	// The limit keeps the newest rows, returned oldest-first.
	got, err := s.ListMessages(ctx, "ch-1", 3)
	if err != nil {
		t.Fatalf("ListMessages = %v", err)
	}
	if len(got) != 3 || got[0].Content != "c" || got[2].Content != "e" {
		t.Fatalf("ListMessages = %+v", got)
	}
}

func TestTranslateSQLiteError(t *testing.T) {
	if err := translateSQLiteError(nil, "op"); err != nil {
		t.Fatalf("translateSQLiteError(nil) = %v", err)
	}
	uniq := errors.New("constraint failed: UNIQUE constraint failed: channels.enterprise_id, channels.name (2067)")
	if err := translateSQLiteError(uniq, "op"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("unique violation = %v, want ErrDuplicate", err)
	}
	fk := errors.New("constraint failed: FOREIGN KEY constraint failed (787)")
	if err := translateSQLiteError(fk, "op"); errors.Is(err, ErrDuplicate) {
		t.Fatal("foreign-key violation mapped to ErrDuplicate")
	}
}
