package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/aerocrew/towerchat/pkg/models"
)

// SQLiteStore implements the Store interface on SQLite. It is intended for
// local runs and single-node deployments; the schema is applied on open.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) a SQLite store at path.
// Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite handles one writer at a time; serialize through a single
	// connection to avoid SQLITE_BUSY under concurrent inserts.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

var _ Store = (*SQLiteStore)(nil)

// DB exposes the underlying connection.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Migrate applies the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListMemberships(ctx context.Context, accountID, enterpriseID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.channel_id
		FROM channel_members m
		JOIN channels c ON c.id = m.channel_id
		WHERE m.account_id = ? AND c.enterprise_id = ?
		ORDER BY m.channel_id
	`, accountID, enterpriseID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var channelID string
		if err := rows.Scan(&channelID); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, channelID)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) HasMembership(ctx context.Context, channelID, accountID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM channel_members WHERE channel_id = ? AND account_id = ?
	`, channelID, accountID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has membership: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return errors.New("message is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, channel_id, sender_id, content, kind, attachment_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ChannelID, msg.SenderID, msg.Content, string(msg.Kind),
		nullable(msg.AttachmentRef), msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateEnterprise(ctx context.Context, ent *models.Enterprise) error {
	if ent == nil {
		return errors.New("enterprise is required")
	}
	if ent.ID == "" {
		ent.ID = uuid.NewString()
	}
	if ent.CreatedAt.IsZero() {
		ent.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enterprises (id, name, created_at) VALUES (?, ?, ?)
	`, ent.ID, ent.Name, ent.CreatedAt)
	return translateSQLiteError(err, "create enterprise")
}

func (s *SQLiteStore) CreateAccount(ctx context.Context, acc *models.Account) error {
	if acc == nil {
		return errors.New("account is required")
	}
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, enterprise_id, display_name, email, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, acc.ID, acc.EnterpriseID, acc.DisplayName, acc.Email, acc.CreatedAt)
	return translateSQLiteError(err, "create account")
}

func (s *SQLiteStore) CreateChannel(ctx context.Context, ch *models.Channel) error {
	if ch == nil {
		return errors.New("channel is required")
	}
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	if ch.Visibility == "" {
		ch.Visibility = models.ChannelPublic
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create channel: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO channels (id, enterprise_id, name, visibility, creator_id, department_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ch.ID, ch.EnterpriseID, ch.Name, string(ch.Visibility), ch.CreatorID,
		nullable(ch.DepartmentID), ch.CreatedAt)
	if err != nil {
		return translateSQLiteError(err, "create channel")
	}

	// The creator is always auto-added as channel admin.
	if ch.CreatorID != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO channel_members (channel_id, account_id, role, created_at)
			VALUES (?, ?, ?, ?)
		`, ch.ID, ch.CreatorID, string(models.RoleAdmin), ch.CreatedAt)
		if err != nil {
			return translateSQLiteError(err, "add creator membership")
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) AddMember(ctx context.Context, m *models.Membership) error {
	if m == nil {
		return errors.New("membership is required")
	}
	if m.Role == "" {
		m.Role = models.RoleMember
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channel_members (channel_id, account_id, role, created_at)
		VALUES (?, ?, ?, ?)
	`, m.ChannelID, m.AccountID, string(m.Role), m.CreatedAt)
	return translateSQLiteError(err, "add member")
}

func (s *SQLiteStore) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	var (
		ch         models.Channel
		visibility string
		department sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, enterprise_id, name, visibility, creator_id, department_id, created_at
		FROM channels WHERE id = ?
	`, id).Scan(&ch.ID, &ch.EnterpriseID, &ch.Name, &visibility, &ch.CreatorID,
		&department, &ch.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	ch.Visibility = models.ChannelVisibility(visibility)
	ch.DepartmentID = department.String
	return &ch, nil
}

func (s *SQLiteStore) ListChannels(ctx context.Context, enterpriseID string) ([]*models.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, enterprise_id, name, visibility, creator_id, department_id, created_at
		FROM channels WHERE enterprise_id = ? ORDER BY name
	`, enterpriseID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()
	return scanChannels(rows)
}

func (s *SQLiteStore) ListMessages(ctx context.Context, channelID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel_id, sender_id, content, kind, attachment_ref, created_at
		FROM (
			SELECT id, channel_id, sender_id, content, kind, attachment_ref, created_at
			FROM messages WHERE channel_id = ?
			ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at ASC
	`, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// translateSQLiteError maps unique-constraint violations to ErrDuplicate.
// modernc.org/sqlite surfaces SQLITE_CONSTRAINT_* through the error string.
func translateSQLiteError(err error, op string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint") {
		return ErrDuplicate
	}
	return fmt.Errorf("%s: %w", op, err)
}
