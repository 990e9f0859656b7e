package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/domain"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `reference, amount_minor, currency, payer_identity, status,
		metadata, paid_at, created_at, updated_at`

type PaymentRepository struct {
	db Executor
}

var _ application.PaymentStore = (*PaymentRepository)(nil)

func NewPaymentRepository(db Executor) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Insert(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	p, err := toPaymentModel(payment)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query,
		p.Reference,
		p.AmountMinor,
		p.Currency,
		p.PayerIdentity,
		p.Status,
		p.Metadata,
		p.PaidAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if IsUniqueViolation(err) {
		return domain.NewDuplicateReferenceError(payment.Reference)
	}
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) FindByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reference = $1`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewPaymentNotFoundError(reference)
	}
	return payment, err
}

// UpdateStatusIfPending is a compare-and-set on status: the WHERE clause makes
// concurrent writers serialize on the row and only the first one matches.
func (r *PaymentRepository) UpdateStatusIfPending(ctx context.Context, reference string, status domain.PaymentStatus, paidAt *time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET status = $2,
		    paid_at = COALESCE($3, paid_at),
		    updated_at = NOW()
		WHERE reference = $1 AND status = 'pending'
	`

	tag, err := r.db.Exec(ctx, query, reference, string(status), paidAt)
	if err != nil {
		return false, fmt.Errorf("failed to update payment status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PaymentRepository) SetIssuance(ctx context.Context, reference string, issuance domain.Issuance) error {
	query := `
		UPDATE payments
		SET metadata = jsonb_set(metadata, '{issuanceResult}', jsonb_build_object('token', $2::text, 'units', $3::text)),
		    updated_at = NOW()
		WHERE reference = $1
	`

	tag, err := r.db.Exec(ctx, query, reference, issuance.Token, issuance.Units)
	if err != nil {
		return fmt.Errorf("failed to set issuance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewPaymentNotFoundError(reference)
	}
	return nil
}

// FindStale lists payments the sweeper should reconcile. Successful payments
// still waiting on a token come first, then pending ones oldest first.
func (r *PaymentRepository) FindStale(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error) {
	query := `
		SELECT p.reference, p.amount_minor, p.currency, p.payer_identity, p.status,
		       p.metadata, p.paid_at, p.created_at, p.updated_at
		FROM payments p
		LEFT JOIN tokens t ON t.reference = p.reference
		WHERE (p.status = 'pending' AND p.created_at < $1)
		   OR (p.status = 'success' AND t.reference IS NULL)
		ORDER BY (p.status = 'success') DESC, p.created_at ASC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var m PaymentModel
	err := row.Scan(
		&m.Reference,
		&m.AmountMinor,
		&m.Currency,
		&m.PayerIdentity,
		&m.Status,
		&m.Metadata,
		&m.PaidAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return toPaymentDomain(&m)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
