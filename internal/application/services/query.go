package services

import (
	"context"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/domain"
)

type QueryService struct {
	payments application.PaymentStore
	tokens   application.TokenStore
}

func NewQueryService(
	payments application.PaymentStore,
	tokens application.TokenStore,
) *QueryService {
	return &QueryService{
		payments: payments,
		tokens:   tokens,
	}
}

func (s *QueryService) FindPayment(ctx context.Context, reference string) (*domain.Payment, error) {
	return s.payments.FindByReference(ctx, reference)
}

func (s *QueryService) FindToken(ctx context.Context, reference string) (*domain.Token, error) {
	return s.tokens.FindByReference(ctx, reference)
}
