package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/domain"
	"github.com/DanielPopoola/powervend/internal/infrastructure/paystack"
	"github.com/DanielPopoola/powervend/internal/interfaces/rest"
)

const eventChargeSuccess = "charge.success"

type webhookAck struct {
	Received bool   `json:"received"`
	Status   string `json:"status,omitempty"`
}

// PaystackWebhook reconciles the referenced payment on charge.success. The
// payload only names the reference; the payment's status always comes from
// the gateway's verify endpoint.
func (h *Handlers) PaystackWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, application.NewInvalidInputError(err))
		return
	}

	if !h.signer.Verify(body, r.Header.Get(paystack.SignatureHeader)) {
		h.logger.WarnContext(r.Context(), "rejected webhook with bad signature",
			"remote_addr", r.RemoteAddr,
		)
		h.writeError(w, r, application.NewUnauthorizedError("invalid webhook signature"))
		return
	}

	var event paystack.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.writeError(w, r, application.NewInvalidInputError(err))
		return
	}

	if event.Event != eventChargeSuccess {
		h.logger.DebugContext(r.Context(), "ignoring webhook event", "event", event.Event)
		rest.WriteJSON(w, http.StatusOK, webhookAck{Received: true})
		return
	}

	outcome, err := h.reconciler.Reconcile(r.Context(), event.Data.Reference)
	if err != nil {
		// Unknown references are acknowledged so the gateway stops redelivering.
		if errors.Is(err, domain.ErrPaymentNotFound) || errors.Is(err, domain.ErrMissingRequiredField) {
			h.logger.WarnContext(r.Context(), "webhook for unknown payment",
				"reference", event.Data.Reference,
				"error", err,
			)
			rest.WriteJSON(w, http.StatusOK, webhookAck{Received: true})
			return
		}
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "webhook reconciled",
		"reference", event.Data.Reference,
		"outcome", outcome.Kind,
	)
	rest.WriteJSON(w, http.StatusOK, webhookAck{Received: true, Status: string(outcome.Kind)})
}
