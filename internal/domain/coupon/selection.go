package coupon

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Selection is the coupon state of one cart: the applied coupon, the code
// the user chose by hand and whether automatic selection is paused.
type Selection struct {
	Applied           *Coupon
	ManualOverride    string
	SuppressAutoApply bool
}

// AppliedCode returns the applied coupon's code or "".
func (s Selection) AppliedCode() string {
	if s.Applied == nil {
		return ""
	}
	return s.Applied.Code
}

// IsZero reports whether nothing is applied, overridden or suppressed.
func (s Selection) IsZero() bool {
	return s.Applied == nil && s.ManualOverride == "" && !s.SuppressAutoApply
}

// EncodeSelection writes s in the storefront's persisted layout:
//
//	{"applied":[{...}],"manualOverride":"CODE","suppressAutoApply":false}
func EncodeSelection(s Selection) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("applied", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				if s.Applied != nil {
					Encode(e, *s.Applied)
				}
			})
		})
		e.Field("manualOverride", func(e *jx.Encoder) {
			if s.ManualOverride == "" {
				e.Null()
				return
			}
			e.Str(s.ManualOverride)
		})
		e.Field("suppressAutoApply", func(e *jx.Encoder) {
			e.Bool(s.SuppressAutoApply)
		})
	})
	return e.Bytes()
}

// DecodeSelection parses a persisted selection. Only the first entry of the
// applied list is kept.
func DecodeSelection(data []byte, loc *time.Location) (Selection, error) {
	var s Selection
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "applied":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				c, err := Decode(d, loc)
				if err != nil {
					return err
				}
				if s.Applied == nil {
					s.Applied = &c
				}
				return nil
			})
		case "manualOverride":
			code, err := decodeText(d)
			s.ManualOverride = code
			return err
		case "suppressAutoApply":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Bool()
			s.SuppressAutoApply = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return Selection{}, errors.Wrap(err, "decode selection")
	}
	return s, nil
}
