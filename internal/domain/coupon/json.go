package coupon

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-pricing/internal/money"
)

// Layouts accepted for expiry_date, most specific first.
var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseExpiry parses an expiry timestamp. Zone-less layouts are read in loc.
// Empty and MySQL zero dates yield nil.
func ParseExpiry(s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "0000-00-00") {
		return nil, nil
	}
	for _, layout := range expiryLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t, nil
		}
	}
	return nil, errors.Errorf("unrecognized expiry %q", s)
}

// ParseCustomerIDs splits a comma separated id list. Entries that are not
// integers are dropped.
func ParseCustomerIDs(s string) CustomerSet {
	set := CustomerSet{}
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

// InvalidError reports a well-formed coupon object holding a value that
// cannot be used, such as an unknown expiry format.
type InvalidError struct {
	Index int
	Code  string
	Err   error
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("coupon #%d %q: %v", e.Index, e.Code, e.Err)
}

func (e *InvalidError) Unwrap() error { return e.Err }

// DecodeList parses the backend coupon listing, a JSON array of coupon
// objects. Decimals may be strings or numbers and allowed_customer_ids may be
// a comma separated string or an array.
//
// Entries with unusable values are left out and reported in skipped; only
// malformed JSON fails the listing.
func DecodeList(data []byte, loc *time.Location) (coupons []Coupon, skipped []*InvalidError, err error) {
	d := jx.DecodeBytes(data)
	i := 0
	if err := d.Arr(func(d *jx.Decoder) error {
		defer func() { i++ }()

		c, err := Decode(d, loc)
		var invalid *InvalidError
		if errors.As(err, &invalid) {
			invalid.Index = i
			skipped = append(skipped, invalid)
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "coupon #%d", i)
		}
		coupons = append(coupons, c)
		return nil
	}); err != nil {
		return nil, nil, errors.Wrap(err, "decode coupons")
	}
	return coupons, skipped, nil
}

// Decode reads a single coupon object. A well-formed object with an unusable
// value is read to its end and reported as *InvalidError.
func Decode(d *jx.Decoder, loc *time.Location) (Coupon, error) {
	c := Coupon{
		DiscountType: DiscountFixed,
		Visibility:   VisibilityPublic,
	}
	var invalid error
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = decodeID(d)
		case "coupon_code", "code":
			c.Code, err = decodeText(d)
			c.Code = strings.TrimSpace(c.Code)
		case "discount_type":
			var s string
			s, err = decodeText(d)
			if s != "" {
				c.DiscountType = DiscountType(s)
			}
		case "discount_value":
			c.DiscountValue, err = money.DecodeDecimal(d)
		case "min_order_value":
			c.MinOrderValue, err = money.DecodeDecimal(d)
		case "expiry_date":
			var s string
			if s, err = decodeText(d); err == nil {
				var perr error
				if c.ExpiresAt, perr = ParseExpiry(s, loc); perr != nil {
					invalid = errors.Wrap(perr, key)
				}
			}
		case "visibility":
			var s string
			s, err = decodeText(d)
			if s != "" {
				c.Visibility = Visibility(s)
			}
		case "allowed_customer_ids":
			c.AllowedCustomerIDs, err = decodeCustomerIDs(d)
		case "display_text":
			c.DisplayText, err = decodeText(d)
		case "logo_url":
			c.LogoURL, err = decodeText(d)
		case "company_name":
			c.CompanyName, err = decodeText(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return c, err
	}
	if invalid != nil {
		return c, &InvalidError{Code: c.Code, Err: invalid}
	}
	return c, nil
}

// Encode writes c in the same layout Decode reads.
func Encode(e *jx.Encoder, c Coupon) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("coupon_code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("discount_type", func(e *jx.Encoder) { e.Str(string(c.DiscountType)) })
		e.Field("discount_value", func(e *jx.Encoder) { money.EncodeDecimal(e, c.DiscountValue) })
		e.Field("min_order_value", func(e *jx.Encoder) { money.EncodeDecimal(e, c.MinOrderValue) })
		e.Field("expiry_date", func(e *jx.Encoder) {
			if c.ExpiresAt == nil {
				e.Null()
				return
			}
			e.Str(c.ExpiresAt.Format(time.RFC3339))
		})
		e.Field("visibility", func(e *jx.Encoder) { e.Str(string(c.Visibility)) })
		e.Field("allowed_customer_ids", func(e *jx.Encoder) {
			if c.AllowedCustomerIDs == nil {
				e.Null()
				return
			}
			e.Arr(func(e *jx.Encoder) {
				for _, id := range c.AllowedCustomerIDs.IDs() {
					e.Int64(id)
				}
			})
		})
		if c.DisplayText != "" {
			e.Field("display_text", func(e *jx.Encoder) { e.Str(c.DisplayText) })
		}
		if c.LogoURL != "" {
			e.Field("logo_url", func(e *jx.Encoder) { e.Str(c.LogoURL) })
		}
		if c.CompanyName != "" {
			e.Field("company_name", func(e *jx.Encoder) { e.Str(c.CompanyName) })
		}
	})
}

func decodeCustomerIDs(d *jx.Decoder) (CustomerSet, error) {
	switch tt := d.Next(); tt {
	case jx.Null:
		return nil, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		return ParseCustomerIDs(s), nil
	case jx.Array:
		set := CustomerSet{}
		err := d.Arr(func(d *jx.Decoder) error {
			id, err := decodeID(d)
			if err != nil {
				return err
			}
			if id != 0 {
				set[id] = struct{}{}
			}
			return nil
		})
		return set, err
	default:
		return nil, errors.Errorf("unexpected %s for customer ids", tt)
	}
}

// decodeID reads an integer sent as a number or a numeric string. Anything
// unparsable decodes to zero.
func decodeID(d *jx.Decoder) (int64, error) {
	raw, err := money.DecodeRaw(d)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, nil
	}
	return id, nil
}

func decodeText(d *jx.Decoder) (string, error) {
	switch tt := d.Next(); tt {
	case jx.Null:
		return "", d.Null()
	case jx.String:
		return d.Str()
	default:
		return "", errors.Errorf("unexpected %s for text", tt)
	}
}
