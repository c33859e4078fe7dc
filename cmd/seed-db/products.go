package main

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-pricing/internal/domain/product"
	"github.com/xenking/kart-pricing/internal/money"
)

// decodeProducts parses the seed file, a JSON array of product objects.
// Prices may be strings or numbers.
func decodeProducts(data []byte) ([]product.Product, error) {
	var out []product.Product
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var p product.Product
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "name":
				p.Name, err = d.Str()
			case "short_description":
				p.ShortDescription, err = d.Str()
			case "mrp_price":
				p.MRPPrice, err = money.DecodeDecimal(d)
			case "special_price":
				p.SpecialPrice, err = money.DecodeDecimal(d)
			case "thumbnail_image":
				p.ThumbnailImage, err = d.Str()
			case "tag":
				p.Tag, err = d.Str()
			case "categories":
				err = d.Arr(func(d *jx.Decoder) error {
					c, err := d.Str()
					p.Categories = append(p.Categories, c)
					return err
				})
			default:
				err = d.Skip()
			}
			return errors.Wrap(err, key)
		}); err != nil {
			return errors.Wrapf(err, "product #%d", len(out))
		}
		if p.Name == "" {
			return errors.Errorf("product #%d: name is required", len(out))
		}
		if !p.SpecialPrice.IsPositive() {
			return errors.Errorf("product %q: special_price must be positive", p.Name)
		}
		out = append(out, p)
		return nil
	})
	return out, err
}
