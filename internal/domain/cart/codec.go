package cart

import (
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-pricing/internal/money"
)

// Encode writes items in the storefront's persisted cart layout:
//
//	[{"product":{"id":1,"name":"...","special_price":"10.00",...},"quantity":2}]
func Encode(items []LineItem) []byte {
	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, li := range items {
			e.Obj(func(e *jx.Encoder) {
				e.Field("product", func(e *jx.Encoder) {
					encodeProduct(e, li.Product)
				})
				e.Field("quantity", func(e *jx.Encoder) {
					e.Int(li.Quantity)
				})
			})
		}
	})
	return e.Bytes()
}

func encodeProduct(e *jx.Encoder, p Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("special_price", func(e *jx.Encoder) { e.Str(p.SpecialPrice) })
		e.Field("mrp_price", func(e *jx.Encoder) { e.Str(p.MRPPrice) })
		if p.ImageURL != "" {
			e.Field("thumbnail_image", func(e *jx.Encoder) { e.Str(p.ImageURL) })
		}
	})
}

// Decode parses a persisted cart. Malformed JSON is an error; individual
// lines with a missing product id or a non-positive quantity are dropped and
// counted in the second return value.
func Decode(data []byte) ([]LineItem, int, error) {
	var raw []LineItem
	d := jx.DecodeBytes(data)
	if err := d.Arr(func(d *jx.Decoder) error {
		li, err := decodeLineItem(d)
		if err != nil {
			return err
		}
		raw = append(raw, li)
		return nil
	}); err != nil {
		return nil, 0, errors.Wrap(err, "decode cart")
	}

	items, dropped := Sanitize(raw)
	return items, dropped, nil
}

func decodeLineItem(d *jx.Decoder) (LineItem, error) {
	var li LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product":
			if d.Next() == jx.Null {
				return d.Null()
			}
			p, err := decodeProduct(d)
			if err != nil {
				return errors.Wrap(err, "product")
			}
			li.Product = p
			return nil
		case "quantity":
			n, err := decodeInt(d)
			if err != nil {
				return errors.Wrap(err, "quantity")
			}
			li.Quantity = int(n)
			return nil
		default:
			return d.Skip()
		}
	})
	return li, err
}

func decodeProduct(d *jx.Decoder) (Product, error) {
	var p Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = decodeInt(d)
		case "name":
			p.Name, err = decodeText(d)
		case "special_price":
			p.SpecialPrice, err = money.DecodeRaw(d)
		case "mrp_price":
			p.MRPPrice, err = money.DecodeRaw(d)
		case "thumbnail_image":
			p.ImageURL, err = decodeText(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return p, err
}

// decodeInt accepts a JSON number or a numeric string. Null and unparsable
// strings decode to zero.
func decodeInt(d *jx.Decoder) (int64, error) {
	switch tt := d.Next(); tt {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return 0, err
		}
		return n.Int64()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, nil
		}
		return v, nil
	case jx.Null:
		return 0, d.Null()
	default:
		return 0, errors.Errorf("unexpected %s for integer", tt)
	}
}

func decodeText(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}
