// Package handler serves the terminal HTTP API.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/pos-checkout/internal/domain/business"
	"github.com/xenking/pos-checkout/internal/domain/checkout"
	"github.com/xenking/pos-checkout/internal/domain/product"
	"github.com/xenking/pos-checkout/internal/domain/promotion"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to image paths in product responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
	// Location is used to read the history date filter. Defaults to
	// time.Local.
	Location *time.Location
}

// Handler exposes the checkout service and the catalog over HTTP.
type Handler struct {
	checkout   *checkout.Service
	products   product.Repository
	promotions promotion.Repository
	directory  business.Repository

	imageBaseURL string
	loc          *time.Location
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	svc *checkout.Service,
	products product.Repository,
	promotions promotion.Repository,
	directory business.Repository,
) *Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		checkout:     svc,
		products:     products,
		promotions:   promotions,
		directory:    directory,
		imageBaseURL: cfg.ImageBaseURL,
		loc:          loc,
	}
}

// Routes returns the API router, relative to its mount point. Middlewares
// wrap every route.
func (h *Handler) Routes(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares...)

	r.Get("/products", h.ListProducts)
	r.Get("/categories", h.ListCategories)
	r.Get("/branches", h.ListBranches)
	r.Get("/brands", h.ListBrands)
	r.Get("/branch-brands", h.ListBranchBrands)
	r.Get("/promotions", h.ListPromotions)
	r.Get("/transactions", h.ListTransactions)

	r.Post("/sessions", h.OpenSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.CloseSession)
		r.Get("/products", h.SessionProducts)

		r.Post("/items", h.AddItem)
		r.Put("/items/{productID}", h.SetQuantity)
		r.Delete("/items/{productID}", h.RemoveItem)

		r.Get("/promotions", h.EligiblePromotions)
		r.Put("/promotion", h.SelectPromotion)
		r.Delete("/promotion", h.ClearPromotion)

		r.Post("/checkout", h.Checkout)
		r.Post("/payment", h.BeginPayment)
		r.Post("/payment/confirm", h.ConfirmPayment)
		r.Post("/payment/cancel", h.CancelPayment)
	})
	return r
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}

func productID(r *http.Request) string {
	return chi.URLParam(r, "productID")
}

func productFilter(r *http.Request) product.Filter {
	q := r.URL.Query()
	return product.Filter{
		Term:       q.Get("q"),
		Category:   q.Get("category"),
		BusinessID: q.Get("business"),
	}
}
