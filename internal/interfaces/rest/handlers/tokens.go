package handlers

import (
	"net/http"

	"github.com/DanielPopoola/powervend/internal/interfaces/rest"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) GenerateToken(w http.ResponseWriter, r *http.Request) {
	var req rest.GenerateTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	outcome, err := h.reconciler.Generate(r.Context(), req.ToCommand())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rest.WriteData(w, outcomeStatus(outcome.Kind), rest.ToIssuanceResponse(req.Reference, outcome))
}

func (h *Handlers) GetToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.query.FindToken(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rest.WriteData(w, http.StatusOK, rest.ToTokenResponse(token))
}
