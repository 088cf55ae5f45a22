package twofa

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var Schema string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Migrate creates the login_2fa table if it does not exist.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply 2FA schema: %w", err)
	}
	return nil
}

// PostgresTwoFARepository implements TwoFARepository using PostgreSQL
type PostgresTwoFARepository struct {
	db DBTX
}

// NewPostgresTwoFARepository creates a new PostgreSQL-based 2FA repository
func NewPostgresTwoFARepository(db DBTX) *PostgresTwoFARepository {
	return &PostgresTwoFARepository{db: db}
}

const twofaColumns = `id, login_id, two_factor_type, two_factor_secret, two_factor_enabled, created_at, updated_at`

func scanTwoFA(row pgx.Row) (TwoFAEntity, error) {
	var e TwoFAEntity
	err := row.Scan(&e.ID, &e.LoginID, &e.TwoFactorType, &e.TwoFactorSecret, &e.TwoFactorEnabled, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// Create2FAInit creates a new, disabled 2FA record
func (r *PostgresTwoFARepository) Create2FAInit(ctx context.Context, params Create2FAParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `
		INSERT INTO login_2fa (login_id, two_factor_type, two_factor_secret, two_factor_enabled)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id`,
		params.LoginID, params.TwoFactorType, params.TwoFactorSecret,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create 2FA record: %w", err)
	}
	return id, nil
}

// Enable2FA enables 2FA for a login
func (r *PostgresTwoFARepository) Enable2FA(ctx context.Context, params Enable2FAParams) error {
	return r.setEnabled(ctx, params.LoginID, params.TwoFactorType, true)
}

// Disable2FA disables 2FA for a login
func (r *PostgresTwoFARepository) Disable2FA(ctx context.Context, params Disable2FAParams) error {
	return r.setEnabled(ctx, params.LoginID, params.TwoFactorType, false)
}

func (r *PostgresTwoFARepository) setEnabled(ctx context.Context, loginID uuid.UUID, twoFactorType string, enabled bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE login_2fa
		SET two_factor_enabled = $3, updated_at = now()
		WHERE login_id = $1 AND two_factor_type = $2 AND deleted_at IS NULL`,
		loginID, twoFactorType, enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to update 2FA record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTwoFANotFound
	}
	return nil
}

// Get2FAByLoginID retrieves a 2FA record by login ID and type
func (r *PostgresTwoFARepository) Get2FAByLoginID(ctx context.Context, params Get2FAByLoginIDParams) (TwoFAEntity, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+twofaColumns+`
		FROM login_2fa
		WHERE login_id = $1 AND two_factor_type = $2 AND deleted_at IS NULL`,
		params.LoginID, params.TwoFactorType,
	)
	entity, err := scanTwoFA(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return TwoFAEntity{}, ErrTwoFANotFound
	}
	if err != nil {
		return TwoFAEntity{}, fmt.Errorf("failed to get 2FA record: %w", err)
	}
	return entity, nil
}

// FindTwoFAsByLoginID retrieves all 2FA records for a login
func (r *PostgresTwoFARepository) FindTwoFAsByLoginID(ctx context.Context, loginID uuid.UUID) ([]TwoFAEntity, error) {
	return r.find(ctx, `
		SELECT `+twofaColumns+`
		FROM login_2fa
		WHERE login_id = $1 AND deleted_at IS NULL
		ORDER BY created_at, two_factor_type`, loginID)
}

// FindEnabledTwoFAs retrieves all enabled 2FA records for a login
func (r *PostgresTwoFARepository) FindEnabledTwoFAs(ctx context.Context, loginID uuid.UUID) ([]TwoFAEntity, error) {
	return r.find(ctx, `
		SELECT `+twofaColumns+`
		FROM login_2fa
		WHERE login_id = $1 AND two_factor_enabled = TRUE AND deleted_at IS NULL
		ORDER BY created_at, two_factor_type`, loginID)
}

func (r *PostgresTwoFARepository) find(ctx context.Context, query string, loginID uuid.UUID) ([]TwoFAEntity, error) {
	rows, err := r.db.Query(ctx, query, loginID)
	if err != nil {
		return nil, fmt.Errorf("failed to query 2FA records: %w", err)
	}
	defer rows.Close()

	entities := make([]TwoFAEntity, 0)
	for rows.Next() {
		entity, err := scanTwoFA(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan 2FA record: %w", err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read 2FA records: %w", err)
	}
	return entities, nil
}
