// Package cli implements posctl, an offline tool for pricing carts against a
// catalog file.
package cli

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xenking/pos-checkout/db"
	"github.com/xenking/pos-checkout/internal/catalogfile"
	"github.com/xenking/pos-checkout/internal/domain/checkout"
	"github.com/xenking/pos-checkout/internal/domain/pricing"
	"github.com/xenking/pos-checkout/internal/storage/memory"
)

// env is what every command runs against.
type env struct {
	out     io.Writer
	v       *viper.Viper
	lg      *zap.Logger
	loc     *time.Location
	store   *memory.Store
	service *checkout.Service
	now     func() time.Time
}

// NewRootCommand builds the posctl command tree writing results to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	e := &env{out: out, v: viper.New()}

	root := &cobra.Command{
		Use:           "posctl",
		Short:         "Price carts and inspect promotions against a catalog file",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.setup(); err != nil {
				return err
			}
			cmd.SetContext(zctx.Base(cmd.Context(), e.lg))
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if e.lg != nil {
				_ = e.lg.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file")
	flags.String("catalog-file", "", "catalog JSON file; empty uses the bundled catalog")
	flags.String("tax-rate", "0.12", "sales tax rate")
	flags.String("timezone", "Local", "IANA zone for promotion windows")
	flags.String("at", "", "price as of this RFC 3339 time instead of now")
	flags.String("log-level", "warn", "log level")
	flags.StringP("output", "o", "text", "output format: text|json")
	for _, name := range []string{"config", "catalog-file", "tax-rate", "timezone", "at", "log-level", "output"} {
		_ = e.v.BindPFlag(name, flags.Lookup(name))
	}
	e.v.SetEnvPrefix("POSCTL")
	e.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	e.v.AutomaticEnv()

	root.AddCommand(
		newProductsCommand(e),
		newPromotionsCommand(e),
		newQuoteCommand(e),
	)
	return root
}

// Execute runs posctl with the process arguments.
func Execute() error {
	return NewRootCommand(os.Stdout).ExecuteContext(context.Background())
}

func (e *env) setup() error {
	if cfg := e.v.GetString("config"); cfg != "" {
		e.v.SetConfigFile(cfg)
		if err := e.v.ReadInConfig(); err != nil {
			return errors.Wrap(err, "read config")
		}
	}

	level, err := zapcore.ParseLevel(e.v.GetString("log-level"))
	if err != nil {
		return errors.Wrap(err, "parse log level")
	}
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(level)
	if e.lg, err = logCfg.Build(); err != nil {
		return errors.Wrap(err, "build logger")
	}

	if e.loc, err = time.LoadLocation(e.v.GetString("timezone")); err != nil {
		return errors.Wrap(err, "load timezone")
	}
	rate, err := decimal.NewFromString(e.v.GetString("tax-rate"))
	if err != nil {
		return errors.Wrap(err, "parse tax rate")
	}

	e.now = time.Now
	if at := e.v.GetString("at"); at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return errors.Wrap(err, "parse --at")
		}
		t = t.In(e.loc)
		e.now = func() time.Time { return t }
	}

	var c *catalogfile.Catalog
	if path := e.v.GetString("catalog-file"); path != "" {
		c, err = catalogfile.Load(path, e.loc)
	} else {
		c, err = catalogfile.Decode(db.Catalog, e.loc)
	}
	if err != nil {
		return errors.Wrap(err, "load catalog")
	}
	e.store = memory.NewStore(c)
	e.lg.Debug("Catalog loaded",
		zap.Int("products", len(c.Products)),
		zap.Int("promotions", len(c.Promotions)),
	)

	resolver := pricing.NewResolver(rate)
	e.service, err = checkout.NewService(e.store.Products, e.store.Promotions, e.store.Transactions, checkout.Options{
		Resolver: &resolver,
		Now:      e.now,
	})
	return err
}

func (e *env) json() bool {
	return e.v.GetString("output") == "json"
}

// item is one --item argument, id or id:qty.
type item struct {
	productID string
	qty       int
}

func parseItem(s string) (item, error) {
	id, qtyStr, found := strings.Cut(s, ":")
	if id == "" {
		return item{}, errors.Errorf("item %q: empty product id", s)
	}
	if !found {
		return item{productID: id, qty: 1}, nil
	}
	qty, err := strconv.Atoi(qtyStr)
	if err != nil || qty < 1 {
		return item{}, errors.Errorf("item %q: quantity must be a positive integer", s)
	}
	return item{productID: id, qty: qty}, nil
}

// fill opens a session holding items.
func (e *env) fill(ctx context.Context, args []string) (string, error) {
	sess := e.service.OpenSession(ctx)
	for _, arg := range args {
		it, err := parseItem(arg)
		if err != nil {
			return "", err
		}
		v, err := e.service.AddItem(ctx, sess.ID, it.productID)
		if err != nil {
			return "", errors.Wrapf(err, "add %s", it.productID)
		}
		qty := 0
		for _, l := range v.Lines {
			if l.Product.ID == it.productID {
				qty = l.Quantity
			}
		}
		if want := qty - 1 + it.qty; want != qty {
			if _, err := e.service.SetQuantity(ctx, sess.ID, it.productID, want); err != nil {
				return "", errors.Wrapf(err, "set %s quantity", it.productID)
			}
		}
	}
	return sess.ID, nil
}
