// Package taxclient implements tax.Adapter against a remote sales tax
// calculation service speaking a transactions/create JSON API.
package taxclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/checkout-pricing/internal/domain/money"
	"github.com/xenking/checkout-pricing/internal/domain/tax"
)

const createTransactionPath = "/api/v2/transactions/create"

var _ tax.Adapter = (*Client)(nil)

// Config holds the tax service endpoint and credentials.
type Config struct {
	BaseURL   string
	AccountID string
	License   string
}

// Option configures a Client.
type Option func(*options)

type options struct {
	transport http.RoundTripper
	tracer    trace.TracerProvider
	meter     metric.MeterProvider
	now       func() time.Time
}

// WithTransport sets the base round tripper wrapped by otelhttp.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithTracerProvider sets the tracer provider for outgoing requests.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// WithMeterProvider sets the meter provider for outgoing requests.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meter = mp }
}

// Client calls the tax service. Deadlines come from the caller's context.
type Client struct {
	baseURL string
	auth    string
	http    *http.Client
	now     func() time.Time
}

// New creates a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("tax service base url is required")
	}

	o := options{transport: http.DefaultTransport, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	var otelOpts []otelhttp.Option
	if o.tracer != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(o.tracer))
	}
	if o.meter != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(o.meter))
	}

	c := &Client{
		baseURL: base,
		http:    &http.Client{Transport: otelhttp.NewTransport(o.transport, otelOpts...)},
		now:     o.now,
	}
	if cfg.AccountID != "" {
		c.auth = "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.AccountID+":"+cfg.License))
	}
	return c, nil
}

// Compute requests a sales order quote for the cart lines.
func (c *Client) Compute(ctx context.Context, req tax.Request) (tax.Quote, error) {
	body := encodeRequest(req, c.now())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createTransactionPath, bytes.NewReader(body))
	if err != nil {
		return tax.Quote{}, errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.auth != "" {
		httpReq.Header.Set("Authorization", c.auth)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return tax.Quote{}, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return tax.Quote{}, errors.Wrap(err, "read response")
	}
	if resp.StatusCode/100 != 2 {
		return tax.Quote{}, &StatusError{Code: resp.StatusCode, Message: decodeErrorMessage(data)}
	}

	quote, err := decodeQuote(data, len(req.Lines))
	if err != nil {
		return tax.Quote{}, err
	}
	return quote, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return "tax service returned " + strconv.Itoa(e.Code)
	}
	return "tax service returned " + strconv.Itoa(e.Code) + ": " + e.Message
}

func encodeRequest(req tax.Request, now time.Time) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("type")
	e.Str("SalesOrder")
	e.FieldStart("companyCode")
	e.Str(req.CompanyCode)
	e.FieldStart("date")
	e.Str(now.UTC().Format(time.DateOnly))
	e.FieldStart("commit")
	e.Bool(false)

	e.FieldStart("addresses")
	e.ObjStart()
	e.FieldStart("shipFrom")
	e.ObjStart()
	e.FieldStart("postalCode")
	e.Str(req.ShipFromPostalCode)
	e.ObjEnd()
	e.FieldStart("shipTo")
	e.ObjStart()
	e.FieldStart("postalCode")
	e.Str(req.ShipTo.PostalCode)
	if req.ShipTo.Country != "" {
		e.FieldStart("country")
		e.Str(req.ShipTo.Country)
	}
	e.ObjEnd()
	e.ObjEnd()

	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range req.Lines {
		e.ObjStart()
		e.FieldStart("number")
		e.Str(strconv.Itoa(l.Number))
		e.FieldStart("amount")
		e.Num(jx.Num(l.Amount.String()))
		if l.TaxCode != "" {
			e.FieldStart("taxCode")
			e.Str(l.TaxCode)
		}
		e.FieldStart("description")
		e.Str(l.Description)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
	return e.Bytes()
}

// decodeQuote parses a transaction response. Lines are matched to request
// lines by their 1-based number.
func decodeQuote(data []byte, lines int) (tax.Quote, error) {
	var (
		total    money.Money
		hasTotal bool
		taxable  = make([]money.Money, lines)
		seen     = make([]bool, lines)
	)

	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "totalTax":
			m, err := decodeAmount(d)
			if err != nil {
				return errors.Wrap(err, "totalTax")
			}
			total, hasTotal = m, true
			return nil
		case "lines":
			return d.Arr(func(d *jx.Decoder) error {
				var (
					number int
					amount money.Money
				)
				if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					switch string(key) {
					case "lineNumber":
						s, err := decodeString(d)
						if err != nil {
							return errors.Wrap(err, "lineNumber")
						}
						if number, err = strconv.Atoi(s); err != nil {
							return errors.Wrap(err, "lineNumber")
						}
						return nil
					case "taxableAmount":
						m, err := decodeAmount(d)
						if err != nil {
							return errors.Wrap(err, "taxableAmount")
						}
						amount = m
						return nil
					default:
						return d.Skip()
					}
				}); err != nil {
					return err
				}
				if number < 1 || number > lines || seen[number-1] {
					return errors.Wrapf(tax.ErrMalformedQuote, "unexpected line %d", number)
				}
				seen[number-1] = true
				taxable[number-1] = amount
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		if errors.Is(err, tax.ErrMalformedQuote) {
			return tax.Quote{}, err
		}
		return tax.Quote{}, errors.Wrapf(tax.ErrMalformedQuote, "decode: %v", err)
	}
	if !hasTotal {
		return tax.Quote{}, errors.Wrap(tax.ErrMalformedQuote, "missing totalTax")
	}
	for i, ok := range seen {
		if !ok {
			return tax.Quote{}, errors.Wrapf(tax.ErrMalformedQuote, "missing line %d", i+1)
		}
	}
	return tax.Quote{TotalTax: total, PerLineTaxable: taxable}, nil
}

// decodeAmount accepts a JSON number or a numeric string.
func decodeAmount(d *jx.Decoder) (money.Money, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return money.Zero, err
		}
		raw = s
	default:
		n, err := d.Num()
		if err != nil {
			return money.Zero, err
		}
		raw = n.String()
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return money.Zero, err
	}
	return money.New(v)
}

// decodeString accepts a JSON string or number.
func decodeString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.String {
		return d.Str()
	}
	n, err := d.Num()
	if err != nil {
		return "", err
	}
	return n.String(), nil
}

func decodeErrorMessage(data []byte) string {
	var msg string
	d := jx.DecodeBytes(data)
	_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "error" {
			return d.Skip()
		}
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != "message" {
				return d.Skip()
			}
			s, err := d.Str()
			msg = s
			return err
		})
	})
	return msg
}
