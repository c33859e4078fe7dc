// Package handler exposes products, carts and checkout over JSON HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/order"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/domain/product"
	"github.com/xenking/kart-pricing/internal/session"
)

// SessionHeader carries the cart session id in both directions.
const SessionHeader = "X-Cart-Session"

// Sessions resolves session ids to engines. release ends the request's hold
// on the engine.
type Sessions interface {
	Acquire(ctx context.Context, id string) (e *pricing.Engine, release func(), err error)
}

// Checkout places orders from carts.
type Checkout interface {
	Submit(ctx context.Context, c order.Cart) (*order.Order, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to product image paths in responses.
	ImageBaseURL string
}

// Handler serves the storefront API.
type Handler struct {
	products product.Repository
	sessions Sessions
	checkout Checkout
	metrics  *pricing.Metrics
	validate *validator.Validate

	imageBaseURL string
}

// NewHandler constructs a Handler. metrics may be nil.
func NewHandler(
	cfg Config,
	products product.Repository,
	sessions Sessions,
	checkout Checkout,
	metrics *pricing.Metrics,
) *Handler {
	return &Handler{
		products:     products,
		sessions:     sessions,
		checkout:     checkout,
		metrics:      metrics,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.HandleFunc("GET /api/cart", h.withCart(h.GetCart))
	mux.HandleFunc("DELETE /api/cart", h.withCart(h.ClearCart))
	mux.HandleFunc("POST /api/cart/items", h.withCart(h.AddItem))
	mux.HandleFunc("PATCH /api/cart/items/{id}", h.withCart(h.UpdateItem))
	mux.HandleFunc("DELETE /api/cart/items/{id}", h.withCart(h.RemoveItem))
	mux.HandleFunc("PUT /api/cart/customer", h.withCart(h.SetCustomer))
	mux.HandleFunc("POST /api/cart/coupon", h.withCart(h.ApplyCoupon))
	mux.HandleFunc("DELETE /api/cart/coupon/{code}", h.withCart(h.RemoveCoupon))
	mux.HandleFunc("GET /api/cart/coupons", h.withCart(h.ListCoupons))
	mux.HandleFunc("POST /api/cart/checkout", h.withCart(h.Checkout))
}

type cartHandlerFunc func(w http.ResponseWriter, r *http.Request, id string, e *pricing.Engine)

// withCart resolves the session of the request, creating one when the
// header is absent, and echoes its id.
func (h *Handler) withCart(next cartHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			id = session.NewID()
		}

		e, release, err := h.sessions.Acquire(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		defer release()

		w.Header().Set(SessionHeader, id)
		next(w, r, id, e)
	}
}

type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string { return e.message }

func badRequest(msg string) error {
	return &apiError{status: http.StatusBadRequest, message: msg}
}

// writeError maps domain errors to {code, message} bodies.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "internal server error"

	var ae *apiError
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &ae):
		status, msg = ae.status, ae.message
	case errors.As(err, &ve):
		status, msg = http.StatusBadRequest, ve.Error()
	case errors.Is(err, session.ErrInvalidID):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, product.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, order.ErrEmptyCart):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
