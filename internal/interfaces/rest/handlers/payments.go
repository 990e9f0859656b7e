package handlers

import (
	"net/http"

	"github.com/DanielPopoola/powervend/internal/interfaces/rest"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) InitializePayment(w http.ResponseWriter, r *http.Request) {
	var req rest.InitializePaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.initiator.Initiate(r.Context(), req.ToCommand())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rest.WriteData(w, http.StatusCreated, rest.InitializePaymentResponse{
		Reference:        result.Reference,
		AuthorizationURL: result.AuthorizationURL,
		AccessCode:       result.AccessCode,
	})
}

// VerifyPayment is polled by the client after checkout. It reconciles the
// payment and returns the token once issued.
func (h *Handlers) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	outcome, err := h.reconciler.Reconcile(r.Context(), reference)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rest.WriteData(w, outcomeStatus(outcome.Kind), rest.ToIssuanceResponse(reference, outcome))
}

func (h *Handlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.query.FindPayment(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rest.WriteData(w, http.StatusOK, rest.ToPaymentResponse(payment))
}
