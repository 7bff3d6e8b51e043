package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/pos-checkout/internal/domain/checkout"
	"github.com/xenking/pos-checkout/internal/domain/product"
)

func catalogUnavailable(source string, err error) error {
	return &checkout.UnavailableError{Source: source, Err: err}
}

// ListProducts returns the catalog filtered by q, category and business, with
// cataloged stock.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	all, err := h.products.List(r.Context())
	if err != nil {
		respondError(w, r, catalogUnavailable("catalog", err))
		return
	}
	found := product.Search(all, productFilter(r))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, p := range found {
				h.encodeProduct(e, p, nil)
			}
		})
	})
}

// ListCategories returns the sorted set of catalog categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	all, err := h.products.List(r.Context())
	if err != nil {
		respondError(w, r, catalogUnavailable("catalog", err))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, c := range product.Categories(all) {
				e.Str(c)
			}
		})
	})
}

func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.directory.ListBranches(r.Context())
	if err != nil {
		respondError(w, r, catalogUnavailable("directory", err))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeBranches(e, branches) })
}

func (h *Handler) ListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.directory.ListBrands(r.Context())
	if err != nil {
		respondError(w, r, catalogUnavailable("directory", err))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeBrands(e, brands) })
}

func (h *Handler) ListBranchBrands(w http.ResponseWriter, r *http.Request) {
	links, err := h.directory.ListBranchBrands(r.Context())
	if err != nil {
		respondError(w, r, catalogUnavailable("directory", err))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeBranchBrands(e, links) })
}

// ListPromotions returns the whole promotion catalog, eligible or not.
func (h *Handler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	promos, err := h.promotions.List(r.Context())
	if err != nil {
		respondError(w, r, catalogUnavailable("promotions", err))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePromotions(e, promos) })
}

// ListTransactions returns one page of transaction history.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q, err := h.historyQuery(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page, err := h.checkout.History(r.Context(), q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeHistory(e, page) })
}

func (h *Handler) historyQuery(r *http.Request) (checkout.HistoryQuery, error) {
	v := r.URL.Query()
	q := checkout.HistoryQuery{Search: v.Get("q")}

	if m := v.Get("method"); m != "" {
		q.Method = checkout.Method(m)
		if !q.Method.Valid() {
			return q, &badRequestError{err: checkout.ErrInvalidMethod}
		}
	}
	if d := v.Get("date"); d != "" {
		day, err := time.ParseInLocation(time.DateOnly, d, h.loc)
		if err != nil {
			return q, &badRequestError{err: errors.Wrap(err, "date")}
		}
		q.Date = day
	}
	for name, dst := range map[string]*int{"page": &q.Page, "pageSize": &q.PageSize} {
		s := v.Get(name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, &badRequestError{err: errors.Wrap(err, name)}
		}
		*dst = n
	}
	return q, nil
}
