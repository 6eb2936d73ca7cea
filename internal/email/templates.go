package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"afripay/internal/domain/invoice"
	"afripay/internal/domain/payment"
	"afripay/internal/domain/transaction"
)

const layout = `<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#1f2937;max-width:560px;margin:0 auto">
<h2 style="color:#7c3aed">AfriPay</h2>
{{template "content" .}}
<p style="font-size:12px;color:#6b7280">Powered by Solana Pay</p>
</body></html>`

const paymentRequestContent = `{{define "content"}}
<p>You have a new payment request{{with .Request.Label}} from <strong>{{.}}</strong>{{end}}.</p>
{{with .Request.Description}}<p>{{.}}</p>{{end}}
<table cellpadding="4">
<tr><td>Amount</td><td>{{.Request.Amount}} {{.Request.Currency}}</td></tr>
<tr><td>AfriPay fee</td><td>{{.Request.Fee}} {{.Request.Currency}}</td></tr>
<tr><td><strong>Total</strong></td><td><strong>{{.Request.Total}} {{.Request.Currency}}</strong></td></tr>
<tr><td>Expires</td><td>{{.Request.ExpiresAt.Format "2006-01-02 15:04 MST"}}</td></tr>
</table>
<p><img src="{{.Request.QRCodeURL}}" alt="Scan to pay" width="240" height="240"></p>
<p><a href="{{.PayLink}}">Open in wallet</a></p>
{{end}}`

const receiptContent = `{{define "content"}}
<p>Payment received. Thank you!</p>
<table cellpadding="4">
<tr><td>Amount</td><td>{{.Tx.GrossAmount}} {{.Tx.Currency}}</td></tr>
<tr><td>Reference</td><td>{{.Tx.Reference}}</td></tr>
<tr><td>Signature</td><td style="word-break:break-all">{{.Tx.Signature}}</td></tr>
</table>
<p><a href="{{.ExplorerURL}}">View on Solana Explorer</a></p>
{{end}}`

const invoiceContent = `{{define "content"}}
<p>Invoice <strong>{{.Invoice.Number}}</strong>{{with .Invoice.CustomerName}} for {{.}}{{end}}.</p>
<table cellpadding="4">
{{range .Invoice.Items}}<tr><td>{{.Description}}</td><td>{{.Quantity}} x {{.UnitPrice}}</td></tr>
{{end}}<tr><td><strong>Total</strong></td><td><strong>{{.Invoice.Amount}} {{.Invoice.Currency}}</strong></td></tr>
</table>
{{with .Request}}<p><img src="{{.QRCodeURL}}" alt="Scan to pay" width="240" height="240"></p>{{end}}
{{end}}`

var (
	paymentRequestTmpl = template.Must(template.Must(template.New("layout").Parse(layout)).Parse(paymentRequestContent))
	receiptTmpl        = template.Must(template.Must(template.New("layout").Parse(layout)).Parse(receiptContent))
	invoiceTmpl        = template.Must(template.Must(template.New("layout").Parse(layout)).Parse(invoiceContent))
)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// SendPaymentRequest mails the customer the QR code and wallet link.
func (s *Sender) SendPaymentRequest(ctx context.Context, r *payment.Request) error {
	html, err := render(paymentRequestTmpl, map[string]any{
		"Request": r,
		"PayLink": template.URL(r.PaymentURL),
	})
	if err != nil {
		return err
	}
	_, err = s.Send(ctx, Message{
		To:       r.CustomerEmail,
		Subject:  fmt.Sprintf("Payment request: %s %s", r.Total, r.Currency),
		HTML:     html,
		Template: "payment_request",
	})
	return err
}

// SendReceipt confirms a settled payment to the customer.
func (s *Sender) SendReceipt(ctx context.Context, r *payment.Request, tx *transaction.Transaction, network string) error {
	cluster := ""
	if network != "" && network != "mainnet-beta" {
		cluster = "?cluster=" + network
	}
	html, err := render(receiptTmpl, map[string]any{
		"Tx":          tx,
		"ExplorerURL": "https://explorer.solana.com/tx/" + tx.Signature + cluster,
	})
	if err != nil {
		return err
	}
	_, err = s.Send(ctx, Message{
		To:       r.CustomerEmail,
		Subject:  fmt.Sprintf("Receipt: %s %s paid", tx.GrossAmount, tx.Currency),
		HTML:     html,
		Template: "payment_receipt",
	})
	return err
}

// SendInvoice mails an invoice with its backing payment request.
func (s *Sender) SendInvoice(ctx context.Context, inv *invoice.Invoice, r *payment.Request) error {
	html, err := render(invoiceTmpl, map[string]any{"Invoice": inv, "Request": r})
	if err != nil {
		return err
	}
	_, err = s.Send(ctx, Message{
		To:       inv.CustomerEmail,
		Subject:  "Invoice " + inv.Number,
		HTML:     html,
		Template: "invoice",
	})
	return err
}
