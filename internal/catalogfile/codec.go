package catalogfile

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/pos-checkout/internal/domain/product"
	"github.com/xenking/pos-checkout/internal/domain/promotion"
)

const dateLayout = "2006-01-02"

// EncodeProducts writes products as a JSON array. Prices are written as
// strings to keep exact decimals.
func EncodeProducts(e *jx.Encoder, products []product.Product) {
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			EncodeProduct(e, p)
		}
	})
}

// EncodeProduct writes a single product object.
func EncodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { e.Str(p.Price.String()) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("barcode", func(e *jx.Encoder) { e.Str(p.Barcode) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
		e.Field("image", func(e *jx.Encoder) { e.Str(p.Image) })
		e.Field("businessId", func(e *jx.Encoder) { e.Str(p.BusinessID) })
	})
}

// DecodeProducts reads a JSON array of products.
func DecodeProducts(d *jx.Decoder) ([]product.Product, error) {
	out := []product.Product{}
	err := d.Arr(func(d *jx.Decoder) error {
		p, err := DecodeProduct(d)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

// DecodeProduct reads one product object and checks it.
func DecodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
		case "category":
			p.Category, err = d.Str()
		case "barcode":
			p.Barcode, err = d.Str()
		case "stock":
			p.Stock, err = d.Int()
		case "image":
			p.Image, err = optionalStr(d)
		case "businessId", "business":
			p.BusinessID, err = d.Str()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
	if err != nil {
		return p, err
	}
	return p, ValidateProduct(p)
}

// ValidateProduct enforces the catalog constraints on p.
func ValidateProduct(p product.Product) error {
	switch {
	case p.ID == "":
		return errors.New("product id is required")
	case p.Price.IsNegative():
		return errors.Errorf("product %s: negative price %s", p.ID, p.Price)
	case p.Stock < 0:
		return errors.Errorf("product %s: negative stock %d", p.ID, p.Stock)
	}
	return nil
}

// EncodePromotions writes promotions as a JSON array. Bounds are written as
// RFC 3339 timestamps.
func EncodePromotions(e *jx.Encoder, promos []promotion.Promotion) {
	e.Arr(func(e *jx.Encoder) {
		for _, p := range promos {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
				e.Field("type", func(e *jx.Encoder) { e.Str(string(p.Kind)) })
				e.Field("value", func(e *jx.Encoder) { e.Str(p.Value.String()) })
				e.Field("products", func(e *jx.Encoder) {
					e.Arr(func(e *jx.Encoder) {
						for _, id := range p.Products {
							e.Str(id)
						}
					})
				})
				e.Field("startDate", func(e *jx.Encoder) { e.Str(p.StartDate.Format(time.RFC3339Nano)) })
				e.Field("endDate", func(e *jx.Encoder) { e.Str(p.EndDate.Format(time.RFC3339Nano)) })
				if p.Window != nil {
					e.Field("startTimeFrame", func(e *jx.Encoder) { e.Str(p.Window.Start.String()) })
					e.Field("endTimeFrame", func(e *jx.Encoder) { e.Str(p.Window.End.String()) })
				}
			})
		}
	})
}

// DecodePromotions reads a JSON array of promotions. Dates may be RFC 3339
// timestamps or plain dates, the latter taken as midnight in loc.
func DecodePromotions(d *jx.Decoder, loc *time.Location) ([]promotion.Promotion, error) {
	out := []promotion.Promotion{}
	err := d.Arr(func(d *jx.Decoder) error {
		p, err := decodePromotion(d, loc)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func decodePromotion(d *jx.Decoder, loc *time.Location) (promotion.Promotion, error) {
	var (
		p          promotion.Promotion
		start, end string
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var (
			err error
			s   string
		)
		switch string(key) {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "type", "kind":
			s, err = d.Str()
			p.Kind = promotion.Kind(s)
		case "value":
			p.Value, err = decodeDecimal(d)
		case "products":
			p.Products = []string{}
			err = d.Arr(func(d *jx.Decoder) error {
				id, err := d.Str()
				p.Products = append(p.Products, id)
				return err
			})
		case "startDate":
			if s, err = d.Str(); err == nil {
				p.StartDate, err = parseDate(s, loc)
			}
		case "endDate":
			if s, err = d.Str(); err == nil {
				p.EndDate, err = parseDate(s, loc)
			}
		case "startTimeFrame":
			start, err = optionalStr(d)
		case "endTimeFrame":
			end, err = optionalStr(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
	if err != nil {
		return p, err
	}
	if !p.Kind.Valid() {
		return p, errors.Errorf("promotion %s: unknown type %q", p.ID, p.Kind)
	}
	if p.Window, err = promotion.NewWindow(start, end); err != nil {
		return p, errors.Wrapf(err, "promotion %s", p.ID)
	}
	return p, nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(dateLayout, s, loc)
}

// decodeDecimal accepts both JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Decimal{}, errors.Errorf("unexpected %s for decimal", d.Next())
	}
}

func optionalStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}
