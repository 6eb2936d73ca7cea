package payment

import (
	"time"

	"afripay/internal/domain/payment"
	"afripay/internal/domain/transaction"
	"afripay/internal/fee"

	"github.com/shopspring/decimal"
)

// CreateInput is the merchant's payment request body.
type CreateInput struct {
	UserID          string          `json:"userId" validate:"max=128"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency" validate:"omitempty,oneof=USDC SOL usdc sol"`
	RecipientWallet string          `json:"recipientWallet" validate:"required,solana_pubkey"`
	Description     string          `json:"description" validate:"max=500"`
	Label           string          `json:"label" validate:"max=100"`
	Message         string          `json:"message" validate:"max=200"`
	Memo            string          `json:"memo" validate:"max=200"`
	CustomerEmail   string          `json:"customerEmail" validate:"omitempty,email"`

	// SkipEmail suppresses the payment request email when the caller sends
	// its own, as invoices do. Receipts are still sent.
	SkipEmail bool `json:"-"`
}

// TransactionDetails tells the client how to pay.
type TransactionDetails struct {
	Reference  string    `json:"reference"`
	PaymentURL string    `json:"paymentUrl"`
	QRCodeURL  string    `json:"qrCodeUrl"`
	Recipient  string    `json:"recipient"`
	SPLToken   string    `json:"splToken,omitempty"`
	Network    string    `json:"network"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type CreateResult struct {
	PaymentRequest     *payment.Request   `json:"paymentRequest"`
	FeeBreakdown       fee.Quote          `json:"feeBreakdown"`
	TransactionDetails TransactionDetails `json:"transactionDetails"`
}

// Breakdown restates the fee persisted with a request.
type Breakdown struct {
	Currency         fee.Currency    `json:"currency"`
	RequestedAmount  decimal.Decimal `json:"requestedAmount"`
	AfripayFee       decimal.Decimal `json:"afripayFee"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	MerchantReceives decimal.Decimal `json:"merchantReceives"`
}

func breakdownOf(r *payment.Request) Breakdown {
	return Breakdown{
		Currency:         r.Currency,
		RequestedAmount:  r.Amount,
		AfripayFee:       r.Fee,
		TotalAmount:      r.Total,
		MerchantReceives: r.Amount,
	}
}

type RequestView struct {
	PaymentRequest *payment.Request `json:"paymentRequest"`
	FeeBreakdown   Breakdown        `json:"feeBreakdown"`
	Expired        bool             `json:"expired"`
}

// StatusResult is the polling answer for one reference.
type StatusResult struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Confirmed bool   `json:"confirmed"`
	Signature string `json:"signature,omitempty"`
}

type VerifyResult struct {
	Transaction    *transaction.Transaction `json:"transaction"`
	PlatformFee    decimal.Decimal          `json:"platformFee"`
	NetAmount      decimal.Decimal          `json:"netAmount"`
	PaymentRequest *payment.Request         `json:"paymentRequest"`
}

// TransactionRequestMeta answers the Solana Pay GET.
type TransactionRequestMeta struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

// TransactionRequestResult answers the Solana Pay POST.
type TransactionRequestResult struct {
	Transaction string `json:"transaction"`
	Message     string `json:"message,omitempty"`
}

type BalanceResult struct {
	Wallet   string          `json:"wallet"`
	Currency fee.Currency    `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}
