package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pos-checkout/internal/domain/cart"
	"github.com/xenking/pos-checkout/internal/domain/checkout"
	"github.com/xenking/pos-checkout/internal/domain/product"
	"github.com/xenking/pos-checkout/internal/domain/promotion"
)

func writeError(w http.ResponseWriter, status int, message string, extra func(e *jx.Encoder)) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
			if extra != nil {
				extra(e)
			}
		})
	})
}

// respondError converts domain errors to HTTP error responses.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		badReq   *badRequestError
		capErr   *cart.CapacityError
		qtyErr   *cart.InvalidQuantityError
		stateErr *checkout.StateError
		unavail  *checkout.UnavailableError
	)
	switch {
	case errors.As(err, &badReq):
		writeError(w, http.StatusBadRequest, badReq.Error(), nil)
	case errors.Is(err, checkout.ErrSessionNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, promotion.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.As(err, &stateErr),
		errors.Is(err, checkout.ErrCheckoutInProgress):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.As(err, &capErr):
		writeError(w, http.StatusUnprocessableEntity, capErr.Error(), func(e *jx.Encoder) {
			field(e, "productId", capErr.ProductID)
			e.Field("available", func(e *jx.Encoder) { e.Int(capErr.Available) })
		})
	case errors.As(err, &qtyErr),
		errors.Is(err, checkout.ErrEmptyCheckout),
		errors.Is(err, checkout.ErrPromotionNotEligible),
		errors.Is(err, checkout.ErrInvalidMethod),
		errors.Is(err, checkout.ErrTenderReferenceRequired),
		errors.Is(err, checkout.ErrInsufficientCash),
		errors.Is(err, checkout.ErrMethodMismatch):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.As(err, &unavail):
		zctx.From(r.Context()).Warn("Dependency unavailable",
			zap.String("source", unavail.Source),
			zap.Error(unavail.Err),
		)
		writeError(w, http.StatusServiceUnavailable, unavail.Source+" unavailable", nil)
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
