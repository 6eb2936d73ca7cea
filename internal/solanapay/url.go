package solanapay

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// TransferRequest holds the fields of a solana: transfer-request URL.
type TransferRequest struct {
	Recipient string
	Amount    decimal.Decimal
	SPLToken  string // empty for native SOL
	Reference string
	Label     string
	Message   string
	Memo      string
}

// EncodeURL renders r in the Solana Pay transfer-request format:
// solana:<recipient>?amount=..&spl-token=..&reference=..&label=..&message=..&memo=..
func EncodeURL(r TransferRequest) string {
	var params []string
	add := func(k, v string) {
		if v != "" {
			params = append(params, k+"="+url.QueryEscape(v))
		}
	}
	if !r.Amount.IsZero() {
		add("amount", r.Amount.String())
	}
	add("spl-token", r.SPLToken)
	add("reference", r.Reference)
	add("label", r.Label)
	add("message", r.Message)
	add("memo", r.Memo)

	u := "solana:" + r.Recipient
	if len(params) > 0 {
		u += "?" + strings.Join(params, "&")
	}
	return u
}

// QRCodeURL points an image renderer at the payment URL.
func QRCodeURL(base, paymentURL string) string {
	q := url.Values{}
	q.Set("size", "300x300")
	q.Set("data", paymentURL)
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}
