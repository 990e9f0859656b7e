package application

import (
	"errors"
	"fmt"
	"time"
)

type GatewayStatus string

const (
	GatewayStatusSuccess GatewayStatus = "success"
	GatewayStatusFailed  GatewayStatus = "failed"
	GatewayStatusPending GatewayStatus = "pending"
)

type InitializeRequest struct {
	Email       string
	AmountMinor int64
	Currency    string
	CallbackURL string
	Metadata    map[string]string
}

type InitializeResponse struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
}

type VerifyResponse struct {
	Reference   string
	Status      GatewayStatus
	RawStatus   string
	AmountMinor int64
	Currency    string
	PaidAt      *time.Time
	Message     string
}

// GatewayError is a non-2xx answer from the payment gateway.
type GatewayError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error [%s]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
}

func (e *GatewayError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

func IsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	ok := errors.As(err, &gwErr)
	return gwErr, ok
}
