package payment

import (
	"fmt"
	"strings"
	"time"

	"afripay/internal/fee"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultTTL is how long a payment request stays open after creation.
const DefaultTTL = 24 * time.Hour

// Request is a merchant payment request correlated on chain by Reference.
type Request struct {
	ID            uuid.UUID       `json:"id"`
	Reference     string          `json:"reference"`
	UserID        string          `json:"userId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      fee.Currency    `json:"currency"`
	Fee           decimal.Decimal `json:"afripayFee"`
	Total         decimal.Decimal `json:"totalAmount"`
	Recipient     string          `json:"recipientWallet"`
	Label         string          `json:"label,omitempty"`
	Message       string          `json:"message,omitempty"`
	Memo          string          `json:"memo,omitempty"`
	Description   string          `json:"description,omitempty"`
	CustomerEmail string          `json:"customerEmail,omitempty"`
	PaymentURL    string          `json:"paymentUrl"`
	QRCodeURL     string          `json:"qrCodeUrl"`
	Status        Status          `json:"status"`
	Signature     string          `json:"signature,omitempty"`
	ExpiresAt     time.Time       `json:"expiresAt"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

// Status represents payment request status
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus accepts the empty string as "any status".
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "", StatusPending, StatusCompleted, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// transitions lists every allowed status change. Self transitions are not
// listed; callers treat them as no-ops.
var transitions = map[Status][]Status{
	StatusPending: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal change.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NewRequest builds a pending request from a fee quote. The reference and
// URLs are attached by the caller once they are known.
func NewRequest(userID, recipient string, q fee.Quote, now time.Time) (*Request, error) {
	if strings.TrimSpace(recipient) == "" {
		return nil, DomainError{Code: ErrInvalidRecipient, Message: "recipient wallet is required"}
	}
	if !q.Total.Equal(q.Amount.Add(q.Fee)) {
		return nil, DomainError{Code: ErrInvalidAmount, Message: "total must equal amount plus fee"}
	}
	return &Request{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    q.Amount,
		Currency:  q.Currency,
		Fee:       q.Fee,
		Total:     q.Total,
		Recipient: recipient,
		Status:    StatusPending,
		ExpiresAt: now.Add(DefaultTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Complete moves a pending request to completed with the settling signature.
func (r *Request) Complete(signature string, at time.Time) error {
	if err := r.transition(StatusCompleted); err != nil {
		return err
	}
	r.Signature = signature
	r.CompletedAt = &at
	r.UpdatedAt = at
	return nil
}

// Cancel moves a pending request to cancelled.
func (r *Request) Cancel(at time.Time) error {
	if err := r.transition(StatusCancelled); err != nil {
		return err
	}
	r.UpdatedAt = at
	return nil
}

func (r *Request) transition(to Status) error {
	if !CanTransition(r.Status, to) {
		return &TransitionError{Reference: r.Reference, From: r.Status, To: to}
	}
	r.Status = to
	return nil
}

func (r *Request) IsPending() bool { return r.Status == StatusPending }

// IsExpired is informational; an expired but pending request can still settle.
func (r *Request) IsExpired(now time.Time) bool { return now.After(r.ExpiresAt) }

// TransitionError is returned for a status change the lifecycle forbids.
type TransitionError struct {
	Reference string
	From, To  Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("payment request %s cannot move from %s to %s", e.Reference, e.From, e.To)
}

// DomainError represents a domain-level error
type DomainError struct {
	Message string
	Code    string
}

func (e DomainError) Error() string {
	return fmt.Sprintf("domain error [%s]: %s", e.Code, e.Message)
}

const (
	ErrInvalidAmount    = "INVALID_AMOUNT"
	ErrInvalidRecipient = "INVALID_RECIPIENT"
)
