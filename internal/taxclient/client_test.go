package taxclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/checkout-pricing/internal/domain/money"
	"github.com/xenking/checkout-pricing/internal/domain/tax"
)

func testRequest() tax.Request {
	return tax.Request{
		Lines: []tax.Line{
			{Number: 1, Amount: money.MustParse("80.00"), TaxCode: "ED001", Description: "Go 101"},
			{Number: 2, Amount: money.MustParse("30.00"), Description: "Go Cert"},
		},
		ShipTo:             tax.Address{PostalCode: "94105", Country: "US"},
		ShipFromPostalCode: "10001",
		CompanyCode:        "ACME",
	}
}

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/", AccountID: "acct", License: "secret"})
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestClient_Compute(t *testing.T) {
	var (
		gotPath string
		gotBody []byte
		gotUser string
		gotPass string
	)
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		// Lines deliberately out of order, amounts in both encodings.
		_, _ = io.WriteString(w, `{
			"id": 123,
			"totalTax": 9.5,
			"lines": [
				{"lineNumber": "2", "taxableAmount": "30.00", "tax": 2.5},
				{"lineNumber": 1, "taxableAmount": 80, "tax": 7}
			]
		}`)
	})

	q, err := c.Compute(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "9.50", q.TotalTax.String())
	require.Len(t, q.PerLineTaxable, 2)
	assert.Equal(t, "80.00", q.PerLineTaxable[0].String())
	assert.Equal(t, "30.00", q.PerLineTaxable[1].String())

	assert.Equal(t, createTransactionPath, gotPath)
	assert.Equal(t, "acct", gotUser)
	assert.Equal(t, "secret", gotPass)

	var (
		docType, date, shipTo string
		amounts               []string
	)
	d := jx.DecodeBytes(gotBody)
	require.NoError(t, d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "type":
			s, err := d.Str()
			docType = s
			return err
		case "date":
			s, err := d.Str()
			date = s
			return err
		case "addresses":
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				if string(key) != "shipTo" {
					return d.Skip()
				}
				return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					if string(key) != "postalCode" {
						return d.Skip()
					}
					s, err := d.Str()
					shipTo = s
					return err
				})
			})
		case "lines":
			return d.Arr(func(d *jx.Decoder) error {
				return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					if string(key) != "amount" {
						return d.Skip()
					}
					n, err := d.Num()
					amounts = append(amounts, n.String())
					return err
				})
			})
		default:
			return d.Skip()
		}
	}))
	assert.Equal(t, "SalesOrder", docType)
	assert.Equal(t, "2025-06-15", date)
	assert.Equal(t, "94105", shipTo)
	assert.Equal(t, []string{"80.00", "30.00"}, amounts)
}

func TestClient_Compute_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing line", `{"totalTax": 1, "lines": [{"lineNumber": "1", "taxableAmount": 80}]}`},
		{"unknown line", `{"totalTax": 1, "lines": [{"lineNumber": "1", "taxableAmount": 80}, {"lineNumber": "3", "taxableAmount": 1}]}`},
		{"duplicate line", `{"totalTax": 1, "lines": [{"lineNumber": "1", "taxableAmount": 80}, {"lineNumber": "1", "taxableAmount": 1}]}`},
		{"negative tax", `{"totalTax": -1, "lines": []}`},
		{"missing total", `{"lines": [{"lineNumber": "1", "taxableAmount": 80}, {"lineNumber": "2", "taxableAmount": 30}]}`},
		{"not json", `<html>oops</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Compute(context.Background(), testRequest())
			require.ErrorIs(t, err, tax.ErrMalformedQuote)
		})
	}
}

func TestClient_Compute_StatusError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error": {"code": "AuthenticationException", "message": "bad credentials"}}`)
	})

	_, err := c.Compute(context.Background(), testRequest())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, "bad credentials", se.Message)
}

func TestClient_Compute_Timeout(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Compute(ctx, testRequest())
	require.Error(t, err)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}
