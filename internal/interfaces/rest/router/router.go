// Package router assembles the HTTP handler tree.
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/DanielPopoola/powervend/internal/interfaces/rest/handlers"
	"github.com/DanielPopoola/powervend/internal/interfaces/rest/middleware"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type Options struct {
	RequestTimeout time.Duration
	// Document enables request validation when set.
	Document *openapi3.T
}

func New(h *handlers.Handlers, opts Options, logger *slog.Logger) (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}
	if opts.Document != nil {
		validate, err := middleware.RequestValidator(opts.Document, logger)
		if err != nil {
			return nil, err
		}
		r.Use(validate)
	}

	r.Get("/health", h.Health)
	r.Get("/docs/openapi.json", h.OpenAPIDocument)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/payments", func(r chi.Router) {
			r.Post("/initialize", h.InitializePayment)
			r.Get("/{reference}/verify", h.VerifyPayment)
			r.Get("/{reference}", h.GetPayment)
		})
		r.Route("/tokens", func(r chi.Router) {
			r.Post("/generate", h.GenerateToken)
			r.Get("/{reference}", h.GetToken)
		})
		r.Post("/webhooks/paystack", h.PaystackWebhook)
	})

	return r, nil
}
