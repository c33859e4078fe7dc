package money

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// DecodeRaw reads an amount that the backend may send as a JSON string, a
// number or null and returns its textual form. Null yields "".
func DecodeRaw(d *jx.Decoder) (string, error) {
	switch tt := d.Next(); tt {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("unexpected %s for amount", tt)
	}
}

// DecodeDecimal is DecodeRaw followed by Parse.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	raw, err := DecodeRaw(d)
	if err != nil {
		return zero, err
	}
	return Parse(raw), nil
}

// EncodeDecimal writes d as a JSON string with two decimal places.
func EncodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Str(d.StringFixed(2))
}
