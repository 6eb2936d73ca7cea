package data

import (
	"context"

	"afripay/internal/domain/payment"
	"afripay/internal/domain/transaction"
	"afripay/internal/domain/webhook"
	"afripay/internal/services/svcerr"
	"afripay/internal/solanapay"
	"afripay/internal/store/repositories"
)

// Service handles read-only listings and aggregates
type Service struct {
	requestRepo     repositories.PaymentRequestRepository
	transactionRepo repositories.TransactionRepository
	eventRepo       repositories.EventRepository
	metricsRepo     repositories.MetricsRepository
}

// NewService creates a new data service
func NewService(
	requestRepo repositories.PaymentRequestRepository,
	transactionRepo repositories.TransactionRepository,
	eventRepo repositories.EventRepository,
	metricsRepo repositories.MetricsRepository,
) *Service {
	return &Service{
		requestRepo:     requestRepo,
		transactionRepo: transactionRepo,
		eventRepo:       eventRepo,
		metricsRepo:     metricsRepo,
	}
}

// ListRequests retrieves payment requests, optionally filtered by merchant and status
func (s *Service) ListRequests(ctx context.Context, req ListRequest) (*RequestListResponse, error) {
	req.Validate()
	status, err := payment.ParseStatus(req.Status)
	if err != nil {
		return nil, svcerr.Invalid("status", "must be pending, completed or cancelled")
	}

	reqs, err := s.requestRepo.List(ctx, repositories.ListFilter{
		UserID: req.UserID,
		Status: string(status),
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		return nil, svcerr.Wrap("list_requests", err)
	}
	if reqs == nil {
		reqs = []*payment.Request{}
	}
	return &RequestListResponse{PaymentRequests: reqs, Limit: req.Limit, Offset: req.Offset}, nil
}

// ListTransactions retrieves verified settlements, newest first
func (s *Service) ListTransactions(ctx context.Context, req ListRequest) (*TransactionListResponse, error) {
	req.Validate()

	txs, err := s.transactionRepo.List(ctx, repositories.ListFilter{UserID: req.UserID, Limit: req.Limit, Offset: req.Offset})
	if err != nil {
		return nil, svcerr.Wrap("list_transactions", err)
	}
	if txs == nil {
		txs = []*transaction.Transaction{}
	}
	return &TransactionListResponse{Transactions: txs, Limit: req.Limit, Offset: req.Offset}, nil
}

// ListEvents returns the lifecycle events recorded for one reference.
func (s *Service) ListEvents(ctx context.Context, reference string) (*EventListResponse, error) {
	if _, err := solanapay.ParsePublicKey(reference); err != nil {
		return nil, svcerr.Invalid("reference", "must be a valid Solana public key")
	}
	events, err := s.eventRepo.FindByReference(ctx, reference)
	if err != nil {
		return nil, svcerr.Wrap("list_events", err)
	}
	if events == nil {
		events = []*webhook.Event{}
	}
	return &EventListResponse{Reference: reference, Events: events}, nil
}

// Metrics aggregates request counts and settled volume. An empty userID
// covers every merchant.
func (s *Service) Metrics(ctx context.Context, userID string) (*repositories.Metrics, error) {
	m, err := s.metricsRepo.Metrics(ctx, userID)
	if err != nil {
		return nil, svcerr.Wrap("metrics", err)
	}
	if m.RequestsByStatus == nil {
		m.RequestsByStatus = map[payment.Status]int64{}
	}
	for _, st := range []payment.Status{payment.StatusPending, payment.StatusCompleted, payment.StatusCancelled} {
		if _, ok := m.RequestsByStatus[st]; !ok {
			m.RequestsByStatus[st] = 0
		}
	}
	if m.Volume == nil {
		m.Volume = []repositories.CurrencyVolume{}
	}
	return m, nil
}
