package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/application/services"
	"github.com/DanielPopoola/powervend/internal/infrastructure/paystack"
	"github.com/DanielPopoola/powervend/internal/interfaces/rest"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	initiator  *services.PaymentInitiator
	reconciler *services.Reconciler
	query      *services.QueryService
	signer     *paystack.Signer
	health     map[string]application.HealthChecker
	logger     *slog.Logger
}

func NewHandlers(
	initiator *services.PaymentInitiator,
	reconciler *services.Reconciler,
	query *services.QueryService,
	signer *paystack.Signer,
	health map[string]application.HealthChecker,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		initiator:  initiator,
		reconciler: reconciler,
		query:      query,
		signer:     signer,
		health:     health,
		logger:     logger,
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	rest.WriteError(w, r, err, h.logger)
}

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return application.NewInvalidInputError(errors.New("request body is empty"))
		}
		return application.NewInvalidInputError(err)
	}
	return nil
}

// outcomeStatus maps a reconciliation outcome onto the HTTP status clients
// branch on.
func outcomeStatus(kind services.OutcomeKind) int {
	switch kind {
	case services.OutcomeStillPending:
		return http.StatusAccepted
	case services.OutcomePaymentFailed:
		return http.StatusPaymentRequired
	default:
		return http.StatusOK
	}
}
