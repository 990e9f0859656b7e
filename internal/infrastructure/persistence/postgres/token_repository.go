package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/domain"
	"github.com/jackc/pgx/v5"
)

const (
	tokenColumns = `reference, token, units::text, meter_identifier, expires_at, created_at`

	tokenValueConstraint = "tokens_token_key"
)

type TokenRepository struct {
	db Executor
}

var _ application.TokenStore = (*TokenRepository)(nil)

func NewTokenRepository(db Executor) *TokenRepository {
	return &TokenRepository{db: db}
}

// InsertIfAbsent relies on the primary key for exactly-once issuance per
// reference and on tokens_token_key for value uniqueness.
func (r *TokenRepository) InsertIfAbsent(ctx context.Context, token *domain.Token) (*domain.Token, bool, error) {
	query := `
		INSERT INTO tokens (reference, token, units, meter_identifier, expires_at, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)
		ON CONFLICT (reference) DO NOTHING
		RETURNING ` + tokenColumns

	m := toTokenModel(token)
	stored, err := scanToken(r.db.QueryRow(ctx, query,
		m.Reference,
		m.Token,
		m.Units,
		m.MeterIdentifier,
		m.ExpiresAt,
		m.CreatedAt,
	))

	switch {
	case err == nil:
		return stored, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Conflict on reference: someone else issued first.
		existing, err := r.FindByReference(ctx, token.Reference)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if constraint, ok := uniqueConstraint(err); ok && constraint == tokenValueConstraint {
		return nil, false, domain.NewTokenCollisionError(err)
	}
	return nil, false, fmt.Errorf("failed to insert token: %w", err)
}

func (r *TokenRepository) FindByReference(ctx context.Context, reference string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE reference = $1`

	token, err := scanToken(r.db.QueryRow(ctx, query, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewTokenNotFoundError(reference)
	}
	return token, err
}

func (r *TokenRepository) FindByValue(ctx context.Context, value string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE token = $1`

	token, err := scanToken(r.db.QueryRow(ctx, query, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewTokenNotFoundError(value)
	}
	return token, err
}

func scanToken(row pgx.Row) (*domain.Token, error) {
	var m TokenModel
	err := row.Scan(
		&m.Reference,
		&m.Token,
		&m.Units,
		&m.MeterIdentifier,
		&m.ExpiresAt,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan token: %w", err)
	}
	return toTokenDomain(&m)
}
