// Command seed-db loads demo products and coupons into a fresh database.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		productsFile string
		force        bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.BoolVar(&force, "force", false, "insert products even when the table is not empty")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, force); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string, force bool) error {
	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), productsFile, force); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, postgres.NewCouponStore(pool), time.Now()); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, path string, force bool) error {
	existing, err := repo.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 && !force {
		slog.Info("products already seeded, skipping", slog.Int("count", len(existing)))
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}
	products, err := decodeProducts(data)
	if err != nil {
		return errors.Wrap(err, "parse products file")
	}

	slog.Info("inserting products", slog.Int("count", len(products)))
	for i := range products {
		if err := repo.Insert(ctx, &products[i]); err != nil {
			return err
		}
		slog.Info("inserted product", slog.Int64("id", products[i].ID), slog.String("name", products[i].Name))
	}
	return nil
}

type couponUpserter interface {
	Upsert(ctx context.Context, c coupon.Coupon) error
}

func seedCoupons(ctx context.Context, store couponUpserter, now time.Time) error {
	coupons := demoCoupons(now)
	slog.Info("upserting demo coupons", slog.Int("count", len(coupons)))
	for _, c := range coupons {
		if err := store.Upsert(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// demoCoupons covers every discount type and visibility, plus one expired
// coupon.
func demoCoupons(now time.Time) []coupon.Coupon {
	inMonths := func(n int) *time.Time {
		t := now.AddDate(0, n, 0).UTC().Truncate(time.Second)
		return &t
	}
	return []coupon.Coupon{
		{
			Code:          "SAVE10",
			DiscountType:  coupon.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(10),
			Visibility:    coupon.VisibilityPublic,
			DisplayText:   "10% off every order",
		},
		{
			Code:          "MIN300",
			DiscountType:  coupon.DiscountFixed,
			DiscountValue: decimal.NewFromInt(100),
			MinOrderValue: decimal.NewFromInt(300),
			ExpiresAt:     inMonths(6),
			Visibility:    coupon.VisibilityPublic,
			DisplayText:   "₹100 off orders above ₹300",
		},
		{
			Code:          "BIG50",
			DiscountType:  coupon.DiscountFixed,
			DiscountValue: decimal.NewFromInt(50),
			MinOrderValue: decimal.NewFromInt(1000),
			Visibility:    coupon.VisibilityPublic,
			DisplayText:   "₹50 off orders above ₹1000",
		},
		{
			Code:               "VIP20",
			DiscountType:       coupon.DiscountPercentage,
			DiscountValue:      decimal.NewFromInt(20),
			Visibility:         coupon.VisibilitySpecificCustomer,
			AllowedCustomerIDs: coupon.NewCustomerSet(101, 102),
			DisplayText:        "20% off for our regulars",
		},
		{
			Code:          "FLAT20",
			DiscountType:  coupon.DiscountFixed,
			DiscountValue: decimal.NewFromInt(20),
			Visibility:    coupon.VisibilityHidden,
		},
		{
			Code:          "FREESHIP",
			DiscountType:  coupon.DiscountDeliveryFree,
			DiscountValue: decimal.Zero,
			Visibility:    coupon.VisibilityPublic,
			DisplayText:   "Free delivery",
		},
		{
			Code:          "OLDIE",
			DiscountType:  coupon.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(50),
			ExpiresAt:     inMonths(-1),
			Visibility:    coupon.VisibilityPublic,
			DisplayText:   "Expired launch offer",
		},
	}
}
