package handler

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/pos-checkout/internal/domain/business"
	"github.com/xenking/pos-checkout/internal/domain/cart"
	"github.com/xenking/pos-checkout/internal/domain/checkout"
	"github.com/xenking/pos-checkout/internal/domain/pricing"
	"github.com/xenking/pos-checkout/internal/domain/product"
	"github.com/xenking/pos-checkout/internal/domain/promotion"
)

// maxBodyBytes caps request bodies. Every request body is a small object.
const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// money renders an amount with two decimals. Amounts stay exact until here.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Str(d.StringFixed(2))
}

func field(e *jx.Encoder, name, v string) {
	e.Field(name, func(e *jx.Encoder) { e.Str(v) })
}

func optField(e *jx.Encoder, name, v string) {
	if v != "" {
		field(e, name, v)
	}
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product, available *int) {
	e.Obj(func(e *jx.Encoder) {
		field(e, "id", p.ID)
		field(e, "name", p.Name)
		e.Field("price", func(e *jx.Encoder) { money(e, p.Price) })
		field(e, "category", p.Category)
		optField(e, "barcode", p.Barcode)
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
		e.Field("lowStock", func(e *jx.Encoder) { e.Bool(p.LowStock()) })
		if available != nil {
			e.Field("available", func(e *jx.Encoder) { e.Int(*available) })
		}
		if p.Image != "" {
			field(e, "image", h.imageBaseURL+p.Image)
		}
		optField(e, "businessId", p.BusinessID)
	})
}

func encodePromotion(e *jx.Encoder, p promotion.Promotion) {
	e.Obj(func(e *jx.Encoder) {
		field(e, "id", p.ID)
		field(e, "name", p.Name)
		field(e, "type", string(p.Kind))
		e.Field("value", func(e *jx.Encoder) { e.Str(p.Value.String()) })
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, id := range p.Products {
					e.Str(id)
				}
			})
		})
		field(e, "startDate", p.StartDate.Format(time.RFC3339))
		field(e, "endDate", p.EndDate.Format(time.RFC3339))
		if p.Window != nil {
			field(e, "startTimeFrame", p.Window.Start.String())
			field(e, "endTimeFrame", p.Window.End.String())
		}
	})
}

func encodePromotions(e *jx.Encoder, promos []promotion.Promotion) {
	e.Arr(func(e *jx.Encoder) {
		for _, p := range promos {
			encodePromotion(e, p)
		}
	})
}

func (h *Handler) encodeLines(e *jx.Encoder, lines []cart.Line, freeID string) {
	e.Arr(func(e *jx.Encoder) {
		for _, l := range lines {
			e.Obj(func(e *jx.Encoder) {
				field(e, "productId", l.Product.ID)
				field(e, "name", l.Product.Name)
				e.Field("price", func(e *jx.Encoder) { money(e, l.Product.Price) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
				e.Field("amount", func(e *jx.Encoder) { money(e, l.Amount()) })
				if freeID == l.Product.ID {
					e.Field("freeUnits", func(e *jx.Encoder) { e.Int(1) })
				}
			})
		}
	})
}

func encodeTotals(e *jx.Encoder, subtotal, discount, tax, total decimal.Decimal) {
	e.Field("subtotal", func(e *jx.Encoder) { money(e, subtotal) })
	e.Field("discount", func(e *jx.Encoder) { money(e, discount) })
	e.Field("tax", func(e *jx.Encoder) { money(e, tax) })
	e.Field("total", func(e *jx.Encoder) { money(e, total) })
}

func encodeQuote(e *jx.Encoder, q pricing.Result) {
	e.Obj(func(e *jx.Encoder) {
		encodeTotals(e, q.Subtotal, q.Discount, q.Tax, q.Total)
		optField(e, "bogoProductId", q.BOGOProductID)
	})
}

func (h *Handler) encodeSnapshot(e *jx.Encoder, s checkout.Snapshot) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("lines", func(e *jx.Encoder) { h.encodeLines(e, s.Lines, s.BOGOProductID) })
		encodeTotals(e, s.Subtotal, s.Discount, s.Tax, s.Total)
		optField(e, "promotionId", s.PromotionID())
		optField(e, "bogoProductId", s.BOGOProductID)
		field(e, "createdAt", s.CreatedAt.Format(time.RFC3339))
	})
}

func (h *Handler) encodeView(e *jx.Encoder, v checkout.View) {
	e.Obj(func(e *jx.Encoder) {
		field(e, "id", v.ID)
		field(e, "state", string(v.State))
		e.Field("lines", func(e *jx.Encoder) { h.encodeLines(e, v.Lines, v.BOGOProductID) })
		if v.Promotion != nil {
			e.Field("promotion", func(e *jx.Encoder) { encodePromotion(e, *v.Promotion) })
		}
		optField(e, "bogoProductId", v.BOGOProductID)
		e.Field("quote", func(e *jx.Encoder) { encodeQuote(e, v.Quote) })
		if v.Snapshot != nil {
			e.Field("snapshot", func(e *jx.Encoder) { h.encodeSnapshot(e, *v.Snapshot) })
		}
		optField(e, "method", string(v.Method))
	})
}

func encodeTransaction(e *jx.Encoder, tx checkout.Transaction) {
	e.Obj(func(e *jx.Encoder) {
		field(e, "id", tx.ID)
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range tx.Items {
					e.Obj(func(e *jx.Encoder) {
						field(e, "productId", it.ProductID)
						field(e, "name", it.Name)
						e.Field("price", func(e *jx.Encoder) { money(e, it.Price) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					})
				}
			})
		})
		encodeTotals(e, tx.Subtotal, tx.Discount, tx.Tax, tx.Total)
		optField(e, "promotionId", tx.PromotionID)
		optField(e, "bogoProductId", tx.BOGOProductID)
		field(e, "method", string(tx.Method))
		optField(e, "reference", tx.Reference)
		if tx.Method == checkout.MethodCash {
			e.Field("cashTendered", func(e *jx.Encoder) { money(e, tx.CashTendered) })
			e.Field("change", func(e *jx.Encoder) { money(e, tx.Change) })
		}
		optField(e, "cashier", tx.Cashier)
		field(e, "createdAt", tx.CreatedAt.Format(time.RFC3339))
	})
}

func encodeHistory(e *jx.Encoder, p checkout.HistoryPage) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("transactions", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, tx := range p.Transactions {
					encodeTransaction(e, tx)
				}
			})
		})
		e.Field("totalCount", func(e *jx.Encoder) { e.Int(p.TotalCount) })
		e.Field("revenue", func(e *jx.Encoder) { money(e, p.Revenue) })
		e.Field("page", func(e *jx.Encoder) { e.Int(p.Page) })
		e.Field("pageSize", func(e *jx.Encoder) { e.Int(p.PageSize) })
		e.Field("pages", func(e *jx.Encoder) { e.Int(p.Pages()) })
	})
}

func encodeBranches(e *jx.Encoder, branches []business.Branch) {
	e.Arr(func(e *jx.Encoder) {
		for _, b := range branches {
			e.Obj(func(e *jx.Encoder) {
				field(e, "id", b.ID)
				field(e, "name", b.Name)
				optField(e, "address", b.Address)
			})
		}
	})
}

func encodeBrands(e *jx.Encoder, brands []business.Brand) {
	e.Arr(func(e *jx.Encoder) {
		for _, b := range brands {
			e.Obj(func(e *jx.Encoder) {
				field(e, "id", b.ID)
				field(e, "name", b.Name)
			})
		}
	})
}

func encodeBranchBrands(e *jx.Encoder, links []business.BranchBrand) {
	e.Arr(func(e *jx.Encoder) {
		for _, l := range links {
			e.Obj(func(e *jx.Encoder) {
				field(e, "id", l.ID)
				field(e, "branchId", l.BranchID)
				field(e, "brandId", l.BrandID)
				field(e, "name", l.Name)
			})
		}
	})
}

// badRequestError marks request decoding failures.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

// decodeBody reads the JSON object in r's body and hands each field to fn.
// An empty body reads as an empty object.
func decodeBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return &badRequestError{err: errors.Wrap(err, "read body")}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		return fn(d, string(key))
	}); err != nil {
		return &badRequestError{err: errors.Wrap(err, "decode body")}
	}
	return nil
}

// decimalValue accepts a JSON string or number.
func decimalValue(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Zero, errors.New("expected amount")
	}
}
