package handlers

import (
	"net/http"

	"github.com/DanielPopoola/powervend/internal/docs"
	"github.com/DanielPopoola/powervend/internal/interfaces/rest"
)

func (h *Handlers) OpenAPIDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := docs.JSON()
	if err != nil {
		rest.WriteError(w, r, err, h.logger)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}
