package application

import (
	"context"
	"time"

	"github.com/DanielPopoola/powervend/internal/domain"
)

// GatewayClient is the port for the hosted payment gateway.
type GatewayClient interface {
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, error)
	Verify(ctx context.Context, reference string) (*VerifyResponse, error)
}

// PaymentStore persists payment records keyed by gateway reference.
type PaymentStore interface {
	// Insert fails with domain.ErrDuplicateReference when the reference exists.
	Insert(ctx context.Context, payment *domain.Payment) error
	// FindByReference fails with domain.ErrPaymentNotFound.
	FindByReference(ctx context.Context, reference string) (*domain.Payment, error)
	// UpdateStatusIfPending applies the transition only while the stored
	// status is still pending. It reports whether this call won.
	UpdateStatusIfPending(ctx context.Context, reference string, status domain.PaymentStatus, paidAt *time.Time) (bool, error)
	// SetIssuance writes the denormalized issuance copy into the metadata.
	SetIssuance(ctx context.Context, reference string, issuance domain.Issuance) error
	// FindStale returns payments still pending since before olderThan, plus
	// successful payments that have no token yet.
	FindStale(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error)
}

// TokenStore persists issued tokens. Reference and value are both unique.
type TokenStore interface {
	// InsertIfAbsent stores the token unless one already exists for its
	// reference, in which case the existing record is returned with
	// inserted=false. A clash on the token value alone is reported as
	// domain.ErrTokenCollision.
	InsertIfAbsent(ctx context.Context, token *domain.Token) (stored *domain.Token, inserted bool, err error)
	// FindByReference fails with domain.ErrTokenNotFound.
	FindByReference(ctx context.Context, reference string) (*domain.Token, error)
	FindByValue(ctx context.Context, value string) (*domain.Token, error)
}

// EventPublisher announces issuance outcomes to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, aggregateID string, data any) error
}

// HealthChecker is implemented by stores that can report connectivity.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

const (
	EventTokenIssued   = "token.issued"
	EventPaymentFailed = "payment.failed"
)

type TokenIssuedData struct {
	Reference       string    `json:"reference"`
	Token           string    `json:"token"`
	Units           string    `json:"units"`
	MeterIdentifier string    `json:"meter_identifier"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type PaymentFailedData struct {
	Reference     string `json:"reference"`
	PayerIdentity string `json:"payer_identity"`
	AmountMinor   int64  `json:"amount_minor"`
	Reason        string `json:"reason"`
}
