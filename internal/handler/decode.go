package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/checkout-pricing/internal/domain/catalog"
	"github.com/xenking/checkout-pricing/internal/domain/pricing"
	"github.com/xenking/checkout-pricing/internal/domain/profile"
	"github.com/xenking/checkout-pricing/internal/domain/tax"
)

// summaryRequest is the checkout payload shared by payment-summary and
// add-to-cart.
type summaryRequest struct {
	Store             string
	Profile           profile.Profile
	CartDetails       []catalog.CartDetail
	CouponCodes       []string
	ZipCode           string
	Country           string
	RequireMembership bool
}

func badRequest(format string, args ...any) error {
	return errors.Wrapf(errBadRequest, format, args...)
}

// readPricingRequest decodes the body and groups the flat cart details.
func readPricingRequest(w http.ResponseWriter, r *http.Request) (pricing.Request, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return pricing.Request{}, badRequest("read body: %v", err)
	}
	body, err := decodeSummaryRequest(data)
	if err != nil {
		return pricing.Request{}, badRequest("invalid request body: %v", err)
	}

	items, err := catalog.GroupCartDetails(body.CartDetails)
	if err != nil {
		return pricing.Request{}, err
	}
	req := pricing.Request{
		StoreSlug:         body.Store,
		Items:             items,
		Profile:           body.Profile,
		CouponCodes:       body.CouponCodes,
		RequireMembership: body.RequireMembership,
	}
	if zip := strings.TrimSpace(body.ZipCode); zip != "" {
		req.ShipTo = &tax.Address{PostalCode: zip, Country: body.Country}
	}
	return req, nil
}

func decodeSummaryRequest(data []byte) (summaryRequest, error) {
	var req summaryRequest
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "store":
			req.Store, err = d.Str()
		case "profile":
			err = decodeProfile(d, &req.Profile)
		case "cart_details":
			err = d.Arr(func(d *jx.Decoder) error {
				var cd catalog.CartDetail
				if err := decodeCartDetail(d, &cd); err != nil {
					return err
				}
				req.CartDetails = append(req.CartDetails, cd)
				return nil
			})
		case "coupon_codes":
			err = d.Arr(func(d *jx.Decoder) error {
				code, err := d.Str()
				req.CouponCodes = append(req.CouponCodes, code)
				return err
			})
		case "coupon_code":
			var code string
			code, err = d.Str()
			req.CouponCodes = append(req.CouponCodes, code)
		case "zip_code":
			req.ZipCode, err = decodeID(d)
		case "country":
			req.Country, err = d.Str()
		case "require_membership":
			req.RequireMembership, err = d.Bool()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
	return req, err
}

func decodeProfile(d *jx.Decoder, p *profile.Profile) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = decodeID(d)
		case "email":
			p.Email, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
}

func decodeCartDetail(d *jx.Decoder, cd *catalog.CartDetail) error {
	cd.Quantity = 1
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "product_id":
			cd.ProductID, err = decodeID(d)
		case "quantity":
			cd.Quantity, err = d.Int()
		case "student_email":
			if d.Next() == jx.Null {
				return d.Null()
			}
			cd.StudentEmail, err = d.Str()
		case "is_related":
			cd.IsRelated, err = d.Bool()
		case "related_to":
			if d.Next() == jx.Null {
				return d.Null()
			}
			cd.RelatedTo, err = decodeID(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
}

// decodeID accepts ids sent either as strings or as integers.
func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Int64()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	default:
		return "", errors.Errorf("unexpected %s", d.Next())
	}
}
