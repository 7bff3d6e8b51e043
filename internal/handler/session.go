package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/pos-checkout/internal/domain/checkout"
)

func (h *Handler) writeView(w http.ResponseWriter, status int, v checkout.View) {
	writeJSON(w, status, func(e *jx.Encoder) { h.encodeView(e, v) })
}

// OpenSession starts an idle checkout for the calling terminal.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, http.StatusCreated, h.checkout.OpenSession(r.Context()))
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	v, err := h.checkout.Session(r.Context(), sessionID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.writeView(w, http.StatusOK, v)
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.CloseSession(r.Context(), sessionID(r)); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SessionProducts lists the catalog with the stock still available to the
// session.
func (h *Handler) SessionProducts(w http.ResponseWriter, r *http.Request) {
	found, err := h.checkout.Products(r.Context(), sessionID(r), productFilter(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, p := range found {
				h.encodeProduct(e, p.Product, &p.Available)
			}
		})
	})
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var id string
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key == "productId" {
			var err error
			id, err = d.Str()
			return err
		}
		return d.Skip()
	})
	if err == nil && id == "" {
		err = &badRequestError{err: errors.New("productId is required")}
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	v, err := h.checkout.AddItem(r.Context(), sessionID(r), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.writeView(w, http.StatusOK, v)
}

func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var (
		qty  int
		seen bool
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key == "quantity" {
			var err error
			qty, err = d.Int()
			seen = true
			return err
		}
		return d.Skip()
	})
	if err == nil && !seen {
		err = &badRequestError{err: errors.New("quantity is required")}
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	v, err := h.checkout.SetQuantity(r.Context(), sessionID(r), productID(r), qty)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.writeView(w, http.StatusOK, v)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	v, err := h.checkout.RemoveItem(r.Context(), sessionID(r), productID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.writeView(w, http.StatusOK, v)
}

func (h *Handler) EligiblePromotions(w http.ResponseWriter, r *http.Request) {
	promos, err := h.checkout.EligiblePromotions(r.Context(), sessionID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePromotions(e, promos) })
}

func (h *Handler) SelectPromotion(w http.ResponseWriter, r *http.Request) {
	var promotionID, bogoProductID string
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "promotionId":
			promotionID, err = d.Str()
		case "bogoProductId":
			if d.Next() == jx.Null {
				return d.Null()
			}
			bogoProductID, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && promotionID == "" {
		err = &badRequestError{err: errors.New("promotionId is required")}
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	v, err := h.checkout.SelectPromotion(r.Context(), sessionID(r), promotionID, bogoProductID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.writeView(w, http.StatusOK, v)
}

func (h *Handler) ClearPromotion(w http.ResponseWriter, r *http.Request) {
	v, err := h.checkout.ClearPromotion(r.Context(), sessionID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.writeView(w, http.StatusOK, v)
}

// Checkout freezes the order and returns the snapshot to pay.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	snap, err := h.checkout.Checkout(r.Context(), sessionID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeSnapshot(e, snap) })
}

func (h *Handler) BeginPayment(w http.ResponseWriter, r *http.Request) {
	var method string
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key == "method" {
			var err error
			method, err = d.Str()
			return err
		}
		return d.Skip()
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	v, err := h.checkout.BeginPayment(r.Context(), sessionID(r), checkout.Method(method))
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.writeView(w, http.StatusOK, v)
}

// ConfirmPayment completes the pending payment. The tender method is the one
// chosen when payment began.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := sessionID(r)

	v, err := h.checkout.Session(ctx, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	tender := checkout.Tender{Method: v.Method}
	err = decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "reference":
			tender.Reference, err = d.Str()
		case "cashTendered":
			tender.CashTendered, err = decimalValue(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	tx, err := h.checkout.ConfirmPayment(ctx, id, tender)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeTransaction(e, tx) })
}

func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	v, err := h.checkout.CancelPayment(r.Context(), sessionID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.writeView(w, http.StatusOK, v)
}
