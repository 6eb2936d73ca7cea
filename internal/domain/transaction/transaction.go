package transaction

import (
	"time"

	"afripay/internal/fee"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatusConfirmed is the only status written; a record exists only once the
// chain has confirmed the transfer.
const StatusConfirmed = "confirmed"

// Transaction is a verified on-chain settlement of a payment request.
// Signature is unique.
type Transaction struct {
	ID               uuid.UUID       `json:"id"`
	Signature        string          `json:"signature"`
	Reference        string          `json:"reference"`
	PaymentRequestID uuid.UUID       `json:"paymentRequestId"`
	UserID           string          `json:"userId,omitempty"`
	GrossAmount      decimal.Decimal `json:"amount"`
	PlatformFee      decimal.Decimal `json:"platformFee"`
	NetAmount        decimal.Decimal `json:"netAmount"`
	Currency         fee.Currency    `json:"currency"`
	SenderWallet     string          `json:"senderWallet"`
	RecipientWallet  string          `json:"recipientWallet"`
	Slot             uint64          `json:"slot"`
	BlockTime        *time.Time      `json:"blockTime,omitempty"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// New records a settlement. Fee and net come from the stored request so the
// ledger always satisfies net = gross - fee.
func New(reference string, requestID uuid.UUID, userID, signature string, gross, platformFee decimal.Decimal, cur fee.Currency) *Transaction {
	return &Transaction{
		ID:               uuid.New(),
		Signature:        signature,
		Reference:        reference,
		PaymentRequestID: requestID,
		UserID:           userID,
		GrossAmount:      gross,
		PlatformFee:      platformFee,
		NetAmount:        gross.Sub(platformFee),
		Currency:         cur,
		Status:           StatusConfirmed,
		CreatedAt:        time.Now().UTC(),
	}
}
