package main

import (
	"bufio"
	"context"
	"os"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/pos-checkout/internal/catalogfile"
	"github.com/xenking/pos-checkout/internal/domain/product"
)

const (
	bloomFPR      = 0.001
	progressEvery = 100_000
	writeBatch    = 500
	maxLineBytes  = 1 << 20
)

// feed is one decoded supplier file. repeats holds barcodes that were already
// in the file's own filter when added.
type feed struct {
	path     string
	products []product.Product
	barcodes *bloom.BloomFilter
	repeats  map[string]struct{}
	rejected int
}

// ingest merges the feeds in order. A product id seen in several feeds keeps
// its last version; a barcode claimed by more than one product id is
// ambiguous and every product carrying it is dropped.
func ingest(ctx context.Context, lg *zap.Logger, files []string, capacity uint) ([]product.Product, error) {
	lg.Info("Pass 1: decoding feeds", zap.Int("files", len(files)))
	feeds, err := readFeeds(ctx, lg, files, capacity)
	if err != nil {
		return nil, errors.Wrap(err, "read feeds")
	}

	lg.Info("Pass 2: checking shared barcodes")
	conflicts, err := findConflicts(ctx, feeds)
	if err != nil {
		return nil, errors.Wrap(err, "find conflicts")
	}
	for barcode, ids := range conflicts {
		lg.Warn("Barcode claimed by several products, skipping",
			zap.String("barcode", barcode),
			zap.Strings("product_ids", ids),
		)
	}

	products := merge(feeds, conflicts)
	lg.Info("Feeds merged",
		zap.Int("products", len(products)),
		zap.Int("conflicts", len(conflicts)),
	)
	return products, nil
}

func readFeeds(ctx context.Context, lg *zap.Logger, files []string, capacity uint) ([]*feed, error) {
	feeds := make([]*feed, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			f, err := readFeed(ctx, lg, path, capacity)
			if err != nil {
				return errors.Wrapf(err, "feed %d", i+1)
			}
			feeds[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return feeds, nil
}

func readFeed(ctx context.Context, lg *zap.Logger, path string, capacity uint) (*feed, error) {
	f := &feed{
		path:     path,
		barcodes: bloom.NewWithEstimates(capacity, bloomFPR),
		repeats:  map[string]struct{}{},
	}
	lg = lg.With(zap.String("file", path))

	line := 0
	err := streamGzFile(ctx, path, func(data []byte) {
		line++
		if len(data) == 0 {
			return
		}
		p, err := catalogfile.DecodeProduct(jx.DecodeBytes(data))
		if err != nil {
			f.rejected++
			lg.Warn("Rejected feed line", zap.Int("line", line), zap.Error(err))
			return
		}
		if p.Barcode != "" && f.barcodes.TestOrAddString(p.Barcode) {
			f.repeats[p.Barcode] = struct{}{}
		}
		f.products = append(f.products, p)
		if len(f.products)%progressEvery == 0 {
			lg.Info("Pass 1 progress", zap.Int("products", len(f.products)))
		}
	})
	if err != nil {
		return nil, err
	}

	lg.Info("Pass 1 complete",
		zap.Int("products", len(f.products)),
		zap.Int("rejected", f.rejected),
	)
	return f, nil
}

// findConflicts checks every barcode that may repeat, in its own feed or in
// another feed's filter, against the exact product ids that carry it.
func findConflicts(ctx context.Context, feeds []*feed) (map[string][]string, error) {
	results := make([]map[string][]string, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		g.Go(func() error {
			candidates := map[string][]string{}
			for n, p := range f.products {
				if n%progressEvery == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if p.Barcode == "" || !sharedBarcode(feeds, i, p.Barcode) {
					continue
				}
				candidates[p.Barcode] = append(candidates[p.Barcode], p.ID)
			}
			results[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	owners := map[string]map[string]struct{}{}
	for _, candidates := range results {
		for barcode, ids := range candidates {
			set, ok := owners[barcode]
			if !ok {
				set = map[string]struct{}{}
				owners[barcode] = set
			}
			for _, id := range ids {
				set[id] = struct{}{}
			}
		}
	}

	conflicts := map[string][]string{}
	for barcode, set := range owners {
		if len(set) < 2 {
			continue
		}
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		conflicts[barcode] = ids
	}
	return conflicts, nil
}

func sharedBarcode(feeds []*feed, self int, barcode string) bool {
	if _, ok := feeds[self].repeats[barcode]; ok {
		return true
	}
	for j, other := range feeds {
		if j != self && other.barcodes.TestString(barcode) {
			return true
		}
	}
	return false
}

// merge applies the feeds in order and returns the products sorted by id.
func merge(feeds []*feed, conflicts map[string][]string) []product.Product {
	byID := map[string]product.Product{}
	for _, f := range feeds {
		for _, p := range f.products {
			if _, bad := conflicts[p.Barcode]; bad && p.Barcode != "" {
				continue
			}
			byID[p.ID] = p
		}
	}

	out := make([]product.Product, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// streamGzFile opens a gzip-compressed file and calls fn for each line. The
// line is only valid during the call.
func streamGzFile(ctx context.Context, path string, fn func(line []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Bytes())
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

type productWriter interface {
	Upsert(ctx context.Context, products []product.Product) error
}

// writeProducts upserts products in batches.
func writeProducts(ctx context.Context, lg *zap.Logger, w productWriter, products []product.Product) error {
	lg.Info("Writing products", zap.Int("count", len(products)))

	for start := 0; start < len(products); start += writeBatch {
		end := min(start+writeBatch, len(products))
		if err := w.Upsert(ctx, products[start:end]); err != nil {
			return errors.Wrapf(err, "upsert products %d-%d", start, end)
		}
		lg.Info("Write progress", zap.Int("written", end), zap.Int("total", len(products)))
	}
	return nil
}
