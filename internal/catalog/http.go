// Package catalog provides coupon sources backed by remote services.
package catalog

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

const maxBodySize = 8 << 20

var _ coupon.Source = (*HTTPSource)(nil)

// HTTPSource fetches the coupon listing from a JSON endpoint returning an
// array of coupon objects.
type HTTPSource struct {
	client *http.Client
	url    string
	loc    *time.Location
	lg     *zap.Logger
}

// NewHTTPSource returns a source for url. Zone-less expiry dates are read in
// loc. A nil client gets an instrumented default with timeout.
func NewHTTPSource(client *http.Client, url string, timeout time.Duration, loc *time.Location, lg *zap.Logger) *HTTPSource {
	if client == nil {
		client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &HTTPSource{client: client, url: url, loc: loc, lg: lg}
}

// FetchAll downloads and decodes the listing. Entries with unusable values
// are logged and left out.
func (s *HTTPSource) FetchAll(ctx context.Context) ([]coupon.Coupon, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "get coupons")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("get coupons: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read coupons")
	}
	coupons, skipped, err := coupon.DecodeList(body, s.loc)
	if err != nil {
		return nil, err
	}
	for _, inv := range skipped {
		s.lg.Warn("Skipping invalid coupon",
			zap.Int("index", inv.Index),
			zap.String("code", inv.Code),
			zap.Error(inv.Err),
		)
	}
	return coupons, nil
}
