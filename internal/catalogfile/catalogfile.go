// Package catalogfile reads and writes the JSON catalog format shared by the
// seeder, the offline CLI, the supplier feed ingest and the catalog cache.
package catalogfile

import (
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/pos-checkout/internal/domain/business"
	"github.com/xenking/pos-checkout/internal/domain/product"
	"github.com/xenking/pos-checkout/internal/domain/promotion"
)

// Catalog is everything a terminal needs to sell.
type Catalog struct {
	Branches     []business.Branch
	Brands       []business.Brand
	BranchBrands []business.BranchBrand
	Products     []product.Product
	Promotions   []promotion.Promotion
}

// Load reads a catalog file. Date-only promotion bounds are interpreted in
// loc.
func Load(path string, loc *time.Location) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read catalog")
	}
	return Decode(data, loc)
}

// Decode parses a catalog document.
func Decode(data []byte, loc *time.Location) (*Catalog, error) {
	if loc == nil {
		loc = time.Local
	}
	var c Catalog
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "branches":
			err = d.Arr(func(d *jx.Decoder) error {
				b, err := decodeBranch(d)
				c.Branches = append(c.Branches, b)
				return err
			})
		case "brands":
			err = d.Arr(func(d *jx.Decoder) error {
				b, err := decodeBrand(d)
				c.Brands = append(c.Brands, b)
				return err
			})
		case "branchBrands":
			err = d.Arr(func(d *jx.Decoder) error {
				b, err := decodeBranchBrand(d)
				c.BranchBrands = append(c.BranchBrands, b)
				return err
			})
		case "products":
			c.Products, err = DecodeProducts(d)
		case "promotions":
			c.Promotions, err = DecodePromotions(d, loc)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return &c, nil
}

// Encode writes c in the catalog format.
func Encode(c *Catalog) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("branches", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, b := range c.Branches {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(b.ID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(b.Name) })
						e.Field("address", func(e *jx.Encoder) { e.Str(b.Address) })
					})
				}
			})
		})
		e.Field("brands", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, b := range c.Brands {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(b.ID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(b.Name) })
					})
				}
			})
		})
		e.Field("branchBrands", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, b := range c.BranchBrands {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(b.ID) })
						e.Field("branchId", func(e *jx.Encoder) { e.Str(b.BranchID) })
						e.Field("brandId", func(e *jx.Encoder) { e.Str(b.BrandID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(b.Name) })
					})
				}
			})
		})
		e.Field("products", func(e *jx.Encoder) { EncodeProducts(e, c.Products) })
		e.Field("promotions", func(e *jx.Encoder) { EncodePromotions(e, c.Promotions) })
	})
	return e.Bytes()
}

func decodeBranch(d *jx.Decoder) (business.Branch, error) {
	var b business.Branch
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			b.ID, err = d.Str()
		case "name":
			b.Name, err = d.Str()
		case "address":
			b.Address, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	return b, err
}

func decodeBrand(d *jx.Decoder) (business.Brand, error) {
	var b business.Brand
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			b.ID, err = d.Str()
		case "name":
			b.Name, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	return b, err
}

func decodeBranchBrand(d *jx.Decoder) (business.BranchBrand, error) {
	var b business.BranchBrand
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			b.ID, err = d.Str()
		case "branchId":
			b.BranchID, err = d.Str()
		case "brandId":
			b.BrandID, err = d.Str()
		case "name":
			b.Name, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	return b, err
}
