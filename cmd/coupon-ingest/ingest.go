package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/money"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	maxCodeLen    = 64
	progressEvery = 1_000_000
)

type upserter interface {
	Upsert(ctx context.Context, c coupon.Coupon) error
}

type stats struct {
	written   int
	rejected  int
	conflicts int
}

// candidate is a coupon whose code may also occur in another file.
type candidate struct {
	coupon coupon.Coupon
	file   int
	mask   uint
}

// ingest writes the coupons of files to store.
//
// Pass 1 builds a bloom filter of the codes of every file. Pass 2 parses the
// files again: a code absent from every other filter is unique and written
// right away, the rest are held back and resolved exactly, the last file
// winning.
func ingest(ctx context.Context, files []string, loc *time.Location, store upserter) (stats, error) {
	var st stats
	if len(files) > bits.UintSize {
		return st, errors.Errorf("at most %d files per run", bits.UintSize)
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	filters, err := buildFilters(ctx, files)
	if err != nil {
		return st, errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: parsing exports")
	unique := make(chan coupon.Coupon, 1024)
	held := make([]map[string]coupon.Coupon, len(files))
	var rejected atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for c := range unique {
			if err := store.Upsert(gctx, c); err != nil {
				return err
			}
			st.written++
			if st.written%progressEvery == 0 {
				slog.Info("write progress", slog.Int("written", st.written))
			}
		}
		return nil
	})

	parsers, pctx := errgroup.WithContext(gctx)
	for i, path := range files {
		parsers.Go(func() error {
			local := map[string]coupon.Coupon{}
			err := eachLine(pctx, path, func(n int, line string) error {
				c, err := parseRecord(line, loc)
				if errors.Is(err, errSkip) {
					return nil
				}
				if err != nil {
					rejected.Add(1)
					slog.Warn("rejected record",
						slog.String("file", path),
						slog.Int("line", n),
						slog.String("error", err.Error()),
					)
					return nil
				}
				key := strings.ToUpper(c.Code)
				if inOthers(filters, i, key) {
					local[key] = c
					return nil
				}
				select {
				case unique <- c:
					return nil
				case <-pctx.Done():
					return pctx.Err()
				}
			})
			held[i] = local
			return err
		})
	}
	g.Go(func() error {
		defer close(unique)
		if err := parsers.Wait(); err != nil {
			return err
		}
		for _, c := range resolve(held, &st) {
			select {
			case unique <- c:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	err = g.Wait()
	st.rejected = int(rejected.Load())
	if err != nil {
		return st, errors.Wrap(err, "write coupons")
	}
	return st, nil
}

// resolve merges the held back coupons. A code found in several files is a
// conflict and the version of the highest file index wins.
func resolve(held []map[string]coupon.Coupon, st *stats) []coupon.Coupon {
	merged := map[string]*candidate{}
	for i, m := range held {
		for key, c := range m {
			cand, ok := merged[key]
			if !ok {
				merged[key] = &candidate{coupon: c, file: i, mask: 1 << uint(i)}
				continue
			}
			cand.mask |= 1 << uint(i)
			if i > cand.file {
				cand.coupon, cand.file = c, i
			}
		}
	}

	out := make([]coupon.Coupon, 0, len(merged))
	for _, cand := range merged {
		if bits.OnesCount(cand.mask) > 1 {
			st.conflicts++
		}
		out = append(out, cand.coupon)
	}
	return out
}

func buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			f := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			count := 0
			err := eachLine(ctx, path, func(_ int, line string) error {
				code, _, _ := strings.Cut(strings.TrimSpace(line), ";")
				code = strings.TrimSpace(code)
				if code == "" || strings.HasPrefix(code, "#") {
					return nil
				}
				f.AddString(strings.ToUpper(code))
				count++
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "file %s", path)
			}
			slog.Info("pass 1 complete", slog.String("file", path), slog.Int("codes", count))
			filters[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func inOthers(filters []*bloom.BloomFilter, self int, key string) bool {
	for j, f := range filters {
		if j != self && f.TestString(key) {
			return true
		}
	}
	return false
}

var errSkip = errors.New("skip line")

// parseRecord parses one export line. Blank lines and # comments return
// errSkip.
func parseRecord(line string, loc *time.Location) (coupon.Coupon, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return coupon.Coupon{}, errSkip
	}

	f := strings.Split(line, ";")
	if len(f) < 3 {
		return coupon.Coupon{}, errors.Errorf("want at least 3 fields, got %d", len(f))
	}
	field := func(i int) string {
		if i < len(f) {
			return strings.TrimSpace(f[i])
		}
		return ""
	}

	c := coupon.Coupon{
		Code:         field(0),
		DiscountType: coupon.DiscountType(strings.ToLower(field(1))),
		Visibility:   coupon.Visibility(strings.ToLower(field(5))),
		DisplayText:  field(7),
	}
	if c.Code == "" || len(c.Code) > maxCodeLen || strings.ContainsAny(c.Code, " \t") {
		return c, errors.Errorf("invalid code %q", c.Code)
	}

	var err error
	if c.DiscountValue, err = decimal.NewFromString(field(2)); err != nil {
		return c, errors.Wrap(err, "discount_value")
	}
	if c.DiscountValue.IsNegative() {
		return c, errors.New("negative discount_value")
	}
	switch c.DiscountType {
	case coupon.DiscountFixed, coupon.DiscountDeliveryFree:
	case coupon.DiscountPercentage:
		if c.DiscountValue.GreaterThan(money.Hundred) {
			return c, errors.Errorf("percentage %s over 100", c.DiscountValue)
		}
	default:
		return c, errors.Errorf("unknown discount_type %q", field(1))
	}

	if v := field(3); v != "" {
		if c.MinOrderValue, err = decimal.NewFromString(v); err != nil {
			return c, errors.Wrap(err, "min_order_value")
		}
	}
	if c.ExpiresAt, err = coupon.ParseExpiry(field(4), loc); err != nil {
		return c, err
	}

	switch c.Visibility {
	case "":
		c.Visibility = coupon.VisibilityPublic
	case coupon.VisibilityPublic, coupon.VisibilityHidden:
	case coupon.VisibilitySpecificCustomer:
		c.AllowedCustomerIDs = coupon.ParseCustomerIDs(strings.ReplaceAll(field(6), "|", ","))
		if len(c.AllowedCustomerIDs) == 0 {
			return c, errors.New("specific_customer coupon without customer ids")
		}
	default:
		return c, errors.Errorf("unknown visibility %q", field(5))
	}
	return c, nil
}

// eachLine streams the lines of a gzip file to fn with 1-based line
// numbers.
func eachLine(ctx context.Context, path string, fn func(n int, line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	n := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		n++
		if err := fn(n, scanner.Text()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
