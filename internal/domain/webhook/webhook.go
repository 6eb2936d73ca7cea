package webhook

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is an outbound notification recorded alongside the state change
// that produced it.
type Event struct {
	ID               int64            `json:"id"`
	Type             Type             `json:"type"`
	Reference        string           `json:"reference"`
	UserID           string           `json:"userId,omitempty"`
	Payload          json.RawMessage  `json:"payload"`
	ProcessingStatus ProcessingStatus `json:"processingStatus"`
	ReceivedAt       time.Time        `json:"receivedAt"`
	ProcessedAt      *time.Time       `json:"processedAt,omitempty"`
}

// Type represents the kinds of lifecycle events AfriPay emits
type Type string

const (
	TypePaymentCreated   Type = "payment.created"
	TypePaymentCompleted Type = "payment.completed"
	TypePaymentCancelled Type = "payment.cancelled"
	TypeInvoiceCreated   Type = "invoice.created"
	TypeInvoicePaid      Type = "invoice.paid"
)

// ProcessingStatus represents the event processing status
type ProcessingStatus string

const (
	ProcessingPending   ProcessingStatus = "pending"
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingFailed    ProcessingStatus = "failed"
)

// NewEvent marshals payload and validates the event type.
func NewEvent(t Type, reference, userID string, payload any) (*Event, error) {
	if !isValidType(t) {
		return nil, fmt.Errorf("invalid event type: %s", t)
	}
	if reference == "" {
		return nil, fmt.Errorf("reference is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return &Event{
		Type:             t,
		Reference:        reference,
		UserID:           userID,
		Payload:          raw,
		ProcessingStatus: ProcessingPending,
		ReceivedAt:       time.Now().UTC(),
	}, nil
}

// IsProcessed checks if the event has been processed
func (e *Event) IsProcessed() bool {
	return e.ProcessingStatus == ProcessingCompleted || e.ProcessingStatus == ProcessingFailed
}

func isValidType(t Type) bool {
	switch t {
	case TypePaymentCreated, TypePaymentCompleted, TypePaymentCancelled, TypeInvoiceCreated, TypeInvoicePaid:
		return true
	}
	return false
}
