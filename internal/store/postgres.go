package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/aerocrew/towerchat/pkg/models"
)

// PostgresStore implements the Store interface on PostgreSQL.
type PostgresStore struct {
	db *sql.DB

	// Prepared statements for the hot-path queries.
	stmtListMemberships *sql.Stmt
	stmtHasMembership   *sql.Stmt
	stmtInsertMessage   *sql.Stmt
}

// PostgresConfig holds connection pool settings.
type PostgresConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig returns default pool settings.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// NewPostgresStore opens a PostgreSQL store using the given DSN.
func NewPostgresStore(dsn string, config *PostgresConfig) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if config == nil {
		config = DefaultPostgresConfig()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	return s, nil
}

var _ Store = (*PostgresStore)(nil)

// DB exposes the underlying connection for the migrator.
func (s *PostgresStore) DB() *sql.DB { return s.db }

// Migrate applies the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) prepareStatements() error {
	var err error

	s.stmtListMemberships, err = s.db.Prepare(`
		SELECT m.channel_id
		FROM channel_members m
		JOIN channels c ON c.id = m.channel_id
		WHERE m.account_id = $1 AND c.enterprise_id = $2
		ORDER BY m.channel_id
	`)
	if err != nil {
		return fmt.Errorf("list memberships: %w", err)
	}

	s.stmtHasMembership, err = s.db.Prepare(`
		SELECT 1 FROM channel_members WHERE channel_id = $1 AND account_id = $2
	`)
	if err != nil {
		return fmt.Errorf("has membership: %w", err)
	}

	s.stmtInsertMessage, err = s.db.Prepare(`
		INSERT INTO messages (id, channel_id, sender_id, content, kind, attachment_ref)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMemberships(ctx context.Context, accountID, enterpriseID string) ([]string, error) {
	rows, err := s.stmtListMemberships.QueryContext(ctx, accountID, enterpriseID)
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

func (s *PostgresStore) HasMembership(ctx context.Context, channelID, accountID string) (bool, error) {
	var one int
	err := s.stmtHasMembership.QueryRowContext(ctx, channelID, accountID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has membership: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return errors.New("message is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	// The database stamps created_at, keeping timestamps monotone with
	// commit order.
	err := s.stmtInsertMessage.QueryRowContext(ctx,
		msg.ID, msg.ChannelID, msg.SenderID, msg.Content, string(msg.Kind),
		nullable(msg.AttachmentRef)).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateEnterprise(ctx context.Context, ent *models.Enterprise) error {
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
		INSERT INTO enterprises (id, name, created_at) VALUES ($1, $2, $3)
	`, ent.ID, ent.Name, ent.CreatedAt)
	return translatePQError(err, "create enterprise")
}

func (s *PostgresStore) CreateAccount(ctx context.Context, acc *models.Account) error {
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
		VALUES ($1, $2, $3, $4, $5)
	`, acc.ID, acc.EnterpriseID, acc.DisplayName, acc.Email, acc.CreatedAt)
	return translatePQError(err, "create account")
}

func (s *PostgresStore) CreateChannel(ctx context.Context, ch *models.Channel) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ch.ID, ch.EnterpriseID, ch.Name, string(ch.Visibility), ch.CreatorID,
		nullable(ch.DepartmentID), ch.CreatedAt)
	if err != nil {
		return translatePQError(err, "create channel")
	}

	// The creator is always auto-added as channel admin.
	if ch.CreatorID != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO channel_members (channel_id, account_id, role, created_at)
			VALUES ($1, $2, $3, $4)
		`, ch.ID, ch.CreatorID, string(models.RoleAdmin), ch.CreatedAt)
		if err != nil {
			return translatePQError(err, "add creator membership")
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) AddMember(ctx context.Context, m *models.Membership) error {
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
		VALUES ($1, $2, $3, $4)
	`, m.ChannelID, m.AccountID, string(m.Role), m.CreatedAt)
	return translatePQError(err, "add member")
}

func (s *PostgresStore) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	var (
		ch         models.Channel
		visibility string
		department sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, enterprise_id, name, visibility, creator_id, department_id, created_at
		FROM channels WHERE id = $1
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

func (s *PostgresStore) ListChannels(ctx context.Context, enterpriseID string) ([]*models.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, enterprise_id, name, visibility, creator_id, department_id, created_at
		FROM channels WHERE enterprise_id = $1 ORDER BY name
	`, enterpriseID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()
	return scanChannels(rows)
}

func (s *PostgresStore) ListMessages(ctx context.Context, channelID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel_id, sender_id, content, kind, attachment_ref, created_at
		FROM (
			SELECT id, channel_id, sender_id, content, kind, attachment_ref, created_at
			FROM messages WHERE channel_id = $1
			ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at ASC
	`, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// Close closes prepared statements and the database connection.
func (s *PostgresStore) Close() error {
	var errs []error
	for _, stmt := range []*sql.Stmt{s.stmtListMemberships, s.stmtHasMembership, s.stmtInsertMessage} {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// translatePQError maps unique-constraint violations to ErrDuplicate.
func translatePQError(err error, op string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanChannels(rows *sql.Rows) ([]*models.Channel, error) {
	var out []*models.Channel
	for rows.Next() {
		var (
			ch         models.Channel
			visibility string
			department sql.NullString
		)
		if err := rows.Scan(&ch.ID, &ch.EnterpriseID, &ch.Name, &visibility,
			&ch.CreatorID, &department, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		ch.Visibility = models.ChannelVisibility(visibility)
		ch.DepartmentID = department.String
		out = append(out, &ch)
	}
	return out, rows.Err()
}

func scanMessages(rows *sql.Rows) ([]*models.Message, error) {
	var out []*models.Message
	for rows.Next() {
		var (
			msg        models.Message
			kind       string
			attachment sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.ChannelID, &msg.SenderID, &msg.Content,
			&kind, &attachment, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Kind = models.MessageKind(kind)
		msg.AttachmentRef = attachment.String
		out = append(out, &msg)
	}
	return out, rows.Err()
}
