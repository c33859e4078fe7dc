package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-pricing/internal/money"
)

const maxRequestBody = 64 << 10

type addItemRequest struct {
	ProductID int64 `validate:"ne=0"`
	Quantity  int   `validate:"min=1,max=999"`
	// Custom box fields, read only for negative product ids.
	Name         string `validate:"max=200"`
	SpecialPrice string `validate:"omitempty,numeric"`
	MRPPrice     string `validate:"omitempty,numeric"`
	ImageURL     string `validate:"max=2048"`
}

type updateItemRequest struct {
	Quantity int `validate:"min=0,max=999"`
}

type customerRequest struct {
	CustomerID *int64 `validate:"omitempty,gt=0"`
}

type couponRequest struct {
	Code string `validate:"required,max=64"`
}

// decodeBody reads a JSON object from the request, calling field for every
// key, and validates dst.
func (h *Handler) decodeBody(r *http.Request, dst any, field func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if err := jx.DecodeBytes(body).Obj(field); err != nil {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return h.validate.Struct(dst)
}

func (h *Handler) decodeAddItem(r *http.Request) (addItemRequest, error) {
	var req addItemRequest
	err := h.decodeBody(r, &req, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			req.ProductID, err = d.Int64()
		case "quantity":
			req.Quantity, err = d.Int()
		case "name":
			req.Name, err = d.Str()
		case "special_price":
			req.SpecialPrice, err = money.DecodeRaw(d)
		case "mrp_price":
			req.MRPPrice, err = money.DecodeRaw(d)
		case "thumbnail_image":
			req.ImageURL, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return req, err
	}
	if req.ProductID < 0 && (strings.TrimSpace(req.Name) == "" || req.SpecialPrice == "") {
		return req, badRequest("custom items need name and special_price")
	}
	return req, nil
}

func (h *Handler) decodeUpdateItem(r *http.Request) (updateItemRequest, error) {
	var req updateItemRequest
	err := h.decodeBody(r, &req, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		var err error
		req.Quantity, err = d.Int()
		return err
	})
	return req, err
}

func (h *Handler) decodeCustomer(r *http.Request) (customerRequest, error) {
	var req customerRequest
	err := h.decodeBody(r, &req, func(d *jx.Decoder, key string) error {
		if key != "customer_id" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		id, err := d.Int64()
		req.CustomerID = &id
		return err
	})
	return req, err
}

func (h *Handler) decodeCoupon(r *http.Request) (couponRequest, error) {
	var req couponRequest
	err := h.decodeBody(r, &req, func(d *jx.Decoder, key string) error {
		if key != "code" {
			return d.Skip()
		}
		var err error
		req.Code, err = d.Str()
		req.Code = strings.TrimSpace(req.Code)
		return err
	})
	return req, err
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, badRequest("invalid product id")
	}
	return id, nil
}
