package invoice

import (
	"fmt"
	"strings"
	"time"

	"afripay/internal/fee"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Item is one invoice line.
type Item struct {
	Description string          `json:"description" validate:"required,max=200"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

func (i Item) Total() decimal.Decimal { return i.Quantity.Mul(i.UnitPrice) }

type Invoice struct {
	ID               uuid.UUID       `json:"id"`
	UserID           string          `json:"userId"`
	Number           string          `json:"invoiceNumber"`
	CustomerEmail    string          `json:"customerEmail"`
	CustomerName     string          `json:"customerName,omitempty"`
	Items            []Item          `json:"items"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         fee.Currency    `json:"currency"`
	DueDate          *time.Time      `json:"dueDate,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	Status           Status          `json:"status"`
	PaymentReference string          `json:"paymentReference,omitempty"`
	PaidAt           *time.Time      `json:"paidAt,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// New builds an invoice whose amount is the sum of its lines.
func New(userID, customerEmail, customerName string, items []Item, cur fee.Currency, now time.Time) (*Invoice, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("invoice needs at least one item")
	}
	total := decimal.Zero
	for i, it := range items {
		if !it.Quantity.IsPositive() {
			return nil, fmt.Errorf("item %d: quantity must be positive", i)
		}
		if it.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("item %d: unit price cannot be negative", i)
		}
		total = total.Add(it.Total())
	}
	id := uuid.New()
	return &Invoice{
		ID:            id,
		UserID:        userID,
		Number:        NumberFor(id, now),
		CustomerEmail: strings.TrimSpace(customerEmail),
		CustomerName:  customerName,
		Items:         items,
		Amount:        total.Round(cur.Decimals()),
		Currency:      cur,
		Status:        StatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// NumberFor derives a human-readable invoice number, e.g. INV-20250301-1A2B3C4D.
func NumberFor(id uuid.UUID, at time.Time) string {
	return fmt.Sprintf("INV-%s-%s", at.UTC().Format("20060102"), strings.ToUpper(id.String()[:8]))
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusSent || to == StatusPaid || to == StatusCancelled
	case StatusSent:
		return to == StatusPaid || to == StatusCancelled
	}
	return false
}

func (inv *Invoice) MarkSent(at time.Time) error { return inv.move(StatusSent, at) }
func (inv *Invoice) Cancel(at time.Time) error { return inv.move(StatusCancelled, at) }
func (inv *Invoice) MarkPaid(at time.Time) error {
	if err := inv.move(StatusPaid, at); err != nil {
		return err
	}
	inv.PaidAt = &at
	return nil
}

func (inv *Invoice) move(to Status, at time.Time) error {
	if !CanTransition(inv.Status, to) {
		return fmt.Errorf("invoice %s cannot move from %s to %s", inv.Number, inv.Status, to)
	}
	inv.Status = to
	inv.UpdatedAt = at
	return nil
}
