package data

import (
	"afripay/internal/domain/payment"
	"afripay/internal/domain/transaction"
	"afripay/internal/domain/webhook"
)

// ListRequest represents a paginated list request
type ListRequest struct {
	UserID string `json:"userId,omitempty"`
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Validate normalizes paging: limit defaults to 50 and is capped at 200.
func (req *ListRequest) Validate() {
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
}

// RequestListResponse represents paginated payment request data
type RequestListResponse struct {
	PaymentRequests []*payment.Request `json:"paymentRequests"`
	Limit           int                `json:"limit"`
	Offset          int                `json:"offset"`
}

// TransactionListResponse represents paginated settlement data
type TransactionListResponse struct {
	Transactions []*transaction.Transaction `json:"transactions"`
	Limit        int                        `json:"limit"`
	Offset       int                        `json:"offset"`
}

type EventListResponse struct {
	Reference string           `json:"reference"`
	Events    []*webhook.Event `json:"events"`
}
