// Package handler exposes the HTTP surface: checkout, product catalog reads,
// and the API-key security middleware. Business logic stays in the domain
// packages; handlers only translate between the wire and the domain.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/evercart/checkout/internal/domain/order"
	"github.com/evercart/checkout/internal/domain/product"
)

// Handler serves the public API, delegating to the order orchestrator and the
// product repository.
type Handler struct {
	products     product.Repository
	orchestrator *order.Orchestrator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(products product.Repository, orchestrator *order.Orchestrator) *Handler {
	return &Handler{
		products:     products,
		orchestrator: orchestrator,
	}
}

// Routes builds the router. Checkout requires an API key; catalog reads are
// public.
func (h *Handler) Routes(requireKey func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Group(func(r chi.Router) {
		r.Use(requireKey)
		r.Post("/checkout", h.checkout)
	})
	return r
}

// errorBody is the typed error response: a stable machine-readable kind plus
// a human message.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Kind: kind, Message: message})
}
