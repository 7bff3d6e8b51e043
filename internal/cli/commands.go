package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/go-faster/jx"
	"github.com/spf13/cobra"

	"github.com/xenking/pos-checkout/internal/domain/checkout"
	"github.com/xenking/pos-checkout/internal/domain/product"
	"github.com/xenking/pos-checkout/internal/domain/promotion"
)

func newProductsCommand(e *env) *cobra.Command {
	var f product.Filter
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products with stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess := e.service.OpenSession(ctx)
			products, err := e.service.Products(ctx, sess.ID, f)
			if err != nil {
				return err
			}

			if e.json() {
				var enc jx.Encoder
				enc.Arr(func(enc *jx.Encoder) {
					for _, p := range products {
						enc.Obj(func(enc *jx.Encoder) {
							enc.Field("id", func(enc *jx.Encoder) { enc.Str(p.ID) })
							enc.Field("name", func(enc *jx.Encoder) { enc.Str(p.Name) })
							enc.Field("category", func(enc *jx.Encoder) { enc.Str(p.Category) })
							enc.Field("price", func(enc *jx.Encoder) { enc.Str(p.Price.StringFixed(2)) })
							enc.Field("stock", func(enc *jx.Encoder) { enc.Int(p.Stock) })
							enc.Field("lowStock", func(enc *jx.Encoder) { enc.Bool(p.LowStock()) })
						})
					}
				})
				return writeLine(e, enc.Bytes())
			}

			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
			for _, p := range products {
				stock := fmt.Sprint(p.Stock)
				if p.LowStock() {
					stock += " (low)"
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, p.Price.StringFixed(2), stock)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&f.Term, "query", "q", "", "match name, id or barcode")
	cmd.Flags().StringVar(&f.Category, "category", "", "category")
	cmd.Flags().StringVar(&f.BusinessID, "business", "", "business id")
	return cmd
}

func newPromotionsCommand(e *env) *cobra.Command {
	var items []string
	cmd := &cobra.Command{
		Use:   "promotions",
		Short: "List promotions redeemable for a cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			id, err := e.fill(ctx, items)
			if err != nil {
				return err
			}
			promos, err := e.service.EligiblePromotions(ctx, id)
			if err != nil {
				return err
			}

			if e.json() {
				var enc jx.Encoder
				enc.Arr(func(enc *jx.Encoder) {
					for _, p := range promos {
						encodePromotion(enc, p)
					}
				})
				return writeLine(e, enc.Bytes())
			}

			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tNAME\tKIND\tVALUE\tENDS")
			for _, p := range promos {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					p.ID, p.Name, p.Kind, p.Value.String(), p.EndDate.Format(time.DateOnly))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringArrayVarP(&items, "item", "i", nil, "cart item as id or id:qty, repeatable")
	return cmd
}

func newQuoteCommand(e *env) *cobra.Command {
	var (
		items       []string
		promotionID string
		bogoID      string
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a cart the way a terminal would at checkout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			id, err := e.fill(ctx, items)
			if err != nil {
				return err
			}
			if promotionID != "" {
				if _, err := e.service.SelectPromotion(ctx, id, promotionID, bogoID); err != nil {
					return err
				}
			}
			snap, err := e.service.Checkout(ctx, id)
			if err != nil {
				return err
			}

			if e.json() {
				return writeLine(e, encodeSnapshot(snap))
			}
			return printSnapshot(e, snap)
		},
	}
	cmd.Flags().StringArrayVarP(&items, "item", "i", nil, "cart item as id or id:qty, repeatable")
	cmd.Flags().StringVarP(&promotionID, "promotion", "p", "", "promotion to apply")
	cmd.Flags().StringVar(&bogoID, "bogo", "", "product to take free under a BOGO promotion")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func writeLine(e *env, data []byte) error {
	_, err := fmt.Fprintln(e.out, string(data))
	return err
}

func encodePromotion(enc *jx.Encoder, p promotion.Promotion) {
	enc.Obj(func(enc *jx.Encoder) {
		enc.Field("id", func(enc *jx.Encoder) { enc.Str(p.ID) })
		enc.Field("name", func(enc *jx.Encoder) { enc.Str(p.Name) })
		enc.Field("kind", func(enc *jx.Encoder) { enc.Str(string(p.Kind)) })
		enc.Field("value", func(enc *jx.Encoder) { enc.Str(p.Value.String()) })
		enc.Field("endDate", func(enc *jx.Encoder) { enc.Str(p.EndDate.Format(time.DateOnly)) })
	})
}

func encodeSnapshot(s checkout.Snapshot) []byte {
	var enc jx.Encoder
	enc.Obj(func(enc *jx.Encoder) {
		enc.Field("items", func(enc *jx.Encoder) {
			enc.Arr(func(enc *jx.Encoder) {
				for _, l := range s.Lines {
					enc.Obj(func(enc *jx.Encoder) {
						enc.Field("productId", func(enc *jx.Encoder) { enc.Str(l.Product.ID) })
						enc.Field("quantity", func(enc *jx.Encoder) { enc.Int(l.Quantity) })
						enc.Field("amount", func(enc *jx.Encoder) { enc.Str(l.Amount().StringFixed(2)) })
						if l.Product.ID == s.BOGOProductID {
							enc.Field("freeUnits", func(enc *jx.Encoder) { enc.Int(1) })
						}
					})
				}
			})
		})
		if id := s.PromotionID(); id != "" {
			enc.Field("promotionId", func(enc *jx.Encoder) { enc.Str(id) })
		}
		enc.Field("subtotal", func(enc *jx.Encoder) { enc.Str(s.Subtotal.StringFixed(2)) })
		enc.Field("discount", func(enc *jx.Encoder) { enc.Str(s.Discount.StringFixed(2)) })
		enc.Field("tax", func(enc *jx.Encoder) { enc.Str(s.Tax.StringFixed(2)) })
		enc.Field("total", func(enc *jx.Encoder) { enc.Str(s.Total.StringFixed(2)) })
	})
	return enc.Bytes()
}

func printSnapshot(e *env, s checkout.Snapshot) error {
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, l := range s.Lines {
		name := l.Product.Name
		if l.Product.ID == s.BOGOProductID {
			name += " (1 free)"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d x\t%s\t\n", name, l.Quantity, l.Amount().StringFixed(2))
	}
	_, _ = fmt.Fprintf(tw, "Subtotal\t\t%s\t\n", s.Subtotal.StringFixed(2))
	if id := s.PromotionID(); id != "" {
		_, _ = fmt.Fprintf(tw, "Discount (%s)\t\t-%s\t\n", id, s.Discount.StringFixed(2))
	}
	_, _ = fmt.Fprintf(tw, "Tax\t\t%s\t\n", s.Tax.StringFixed(2))
	_, _ = fmt.Fprintf(tw, "Total\t\t%s\t\n", s.Total.StringFixed(2))
	return tw.Flush()
}
