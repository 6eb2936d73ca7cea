// Package storetest provides an in-memory implementation of the repository
// contracts for service and handler tests.
package storetest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"afripay/internal/domain/invoice"
	"afripay/internal/domain/payment"
	"afripay/internal/domain/transaction"
	"afripay/internal/domain/webhook"
	"afripay/internal/store/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type state struct {
	requests     map[string]payment.Request
	transactions map[string]transaction.Transaction
	invoices     map[uuid.UUID]invoice.Invoice
	events       []webhook.Event
	nextEventID  int64
}

func newState() *state {
	return &state{
		requests:     map[string]payment.Request{},
		transactions: map[string]transaction.Transaction{},
		invoices:     map[uuid.UUID]invoice.Invoice{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	c.events = append(c.events, s.events...)
	c.nextEventID = s.nextEventID
	return c
}

// Store keeps every table in maps. Transactions work on a snapshot that
// replaces the live state on Commit.
type Store struct {
	mu sync.Mutex
	st *state

	// BeginErr, when set, fails every Begin.
	BeginErr error
	// Commits counts successful commits.
	Commits int
}

func New() *Store { return &Store{st: newState()} }

// view runs fn against the live state under the lock.
func (s *Store) view(fn func(*state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

func (s *Store) PaymentRequests() repositories.PaymentRequestRepository { return requestRepo{s.view} }
func (s *Store) Transactions() repositories.TransactionRepository { return txRepo{s.view} }
func (s *Store) Invoices() repositories.InvoiceRepository { return invoiceRepo{s.view} }
func (s *Store) Events() repositories.EventRepository { return eventRepo{s.view} }
func (s *Store) Metrics() repositories.MetricsRepository { return metricsRepo{s.view} }

// Begin implements repositories.UnitOfWork.
func (s *Store) Begin(ctx context.Context) (repositories.Transaction, error) {
	if s.BeginErr != nil {
		return nil, s.BeginErr
	}
	s.mu.Lock()
	snap := s.st.clone()
	s.mu.Unlock()
	return &memTx{store: s, st: snap}, nil
}

// EventTypes lists stored event types in insertion order.
func (s *Store) EventTypes() []webhook.Type {
	var out []webhook.Type
	s.view(func(st *state) {
		for _, e := range st.events {
			out = append(out, e.Type)
		}
	})
	return out
}

type memTx struct {
	store *Store
	mu    sync.Mutex
	st    *state
	done  bool
}

func (t *memTx) view(fn func(*state)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.st)
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("transaction already closed")
	}
	t.done = true
	t.store.mu.Lock()
	t.store.st = t.st
	t.store.Commits++
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return errors.New("transaction already closed")
	}
	t.done = true
	return nil
}

func (t *memTx) PaymentRequests() repositories.PaymentRequestRepository { return requestRepo{t.view} }
func (t *memTx) Transactions() repositories.TransactionRepository { return txRepo{t.view} }
func (t *memTx) Invoices() repositories.InvoiceRepository { return invoiceRepo{t.view} }
func (t *memTx) Events() repositories.EventRepository { return eventRepo{t.view} }

type viewFn func(func(*state))

type requestRepo struct{ view viewFn }

func (r requestRepo) Create(ctx context.Context, req *payment.Request) (err error) {
	r.view(func(st *state) {
		if _, ok := st.requests[req.Reference]; ok {
			err = errors.New("duplicate reference")
			return
		}
		st.requests[req.Reference] = *req
	})
	return err
}

func (r requestRepo) FindByReference(ctx context.Context, reference string) (out *payment.Request, err error) {
	r.view(func(st *state) {
		req, ok := st.requests[reference]
		if !ok {
			err = repositories.ErrNotFound
			return
		}
		out = &req
	})
	return out, err
}

func (r requestRepo) List(ctx context.Context, f repositories.ListFilter) (out []*payment.Request, err error) {
	r.view(func(st *state) {
		for _, req := range st.requests {
			if f.UserID != "" && req.UserID != f.UserID {
				continue
			}
			if f.Status != "" && string(req.Status) != f.Status {
				continue
			}
			req := req
			out = append(out, &req)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

func (r requestRepo) ListOpen(ctx context.Context, now time.Time, limit int) (out []*payment.Request, err error) {
	r.view(func(st *state) {
		for _, req := range st.requests {
			if req.Status == payment.StatusPending && req.ExpiresAt.After(now) {
				req := req
				out = append(out, &req)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, limit, 0), nil
}

func (r requestRepo) MarkCompleted(ctx context.Context, reference, signature string, at time.Time) (ok bool, err error) {
	r.view(func(st *state) {
		req, found := st.requests[reference]
		if !found || req.Status != payment.StatusPending {
			return
		}
		req.Status = payment.StatusCompleted
		req.Signature = signature
		req.CompletedAt = &at
		req.UpdatedAt = at
		st.requests[reference] = req
		ok = true
	})
	return ok, nil
}

func (r requestRepo) MarkCancelled(ctx context.Context, reference string, at time.Time) (ok bool, err error) {
	r.view(func(st *state) {
		req, found := st.requests[reference]
		if !found || req.Status != payment.StatusPending {
			return
		}
		req.Status = payment.StatusCancelled
		req.UpdatedAt = at
		st.requests[reference] = req
		ok = true
	})
	return ok, nil
}

type txRepo struct{ view viewFn }

func (r txRepo) Upsert(ctx context.Context, t *transaction.Transaction) (out *transaction.Transaction, err error) {
	r.view(func(st *state) {
		if existing, ok := st.transactions[t.Signature]; ok {
			out = &existing
			return
		}
		st.transactions[t.Signature] = *t
		stored := *t
		out = &stored
	})
	return out, nil
}

func (r txRepo) FindBySignature(ctx context.Context, signature string) (out *transaction.Transaction, err error) {
	r.view(func(st *state) {
		t, ok := st.transactions[signature]
		if !ok {
			err = repositories.ErrNotFound
			return
		}
		out = &t
	})
	return out, err
}

func (r txRepo) List(ctx context.Context, f repositories.ListFilter) (out []*transaction.Transaction, err error) {
	r.view(func(st *state) {
		for _, t := range st.transactions {
			if f.UserID != "" && t.UserID != f.UserID {
				continue
			}
			t := t
			out = append(out, &t)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

type invoiceRepo struct{ view viewFn }

func (r invoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	r.view(func(st *state) { st.invoices[inv.ID] = *inv })
	return nil
}

func (r invoiceRepo) FindByID(ctx context.Context, id uuid.UUID) (out *invoice.Invoice, err error) {
	r.view(func(st *state) {
		inv, ok := st.invoices[id]
		if !ok {
			err = repositories.ErrNotFound
			return
		}
		out = &inv
	})
	return out, err
}

func (r invoiceRepo) FindByPaymentReference(ctx context.Context, reference string) (out *invoice.Invoice, err error) {
	err = repositories.ErrNotFound
	r.view(func(st *state) {
		for _, inv := range st.invoices {
			if inv.PaymentReference == reference {
				inv := inv
				out, err = &inv, nil
				return
			}
		}
	})
	return out, err
}

func (r invoiceRepo) ListByUser(ctx context.Context, userID string, limit, offset int) (out []*invoice.Invoice, err error) {
	r.view(func(st *state) {
		for _, inv := range st.invoices {
			if inv.UserID == userID {
				inv := inv
				out = append(out, &inv)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r invoiceRepo) UpdateStatus(ctx context.Context, inv *invoice.Invoice) (err error) {
	r.view(func(st *state) {
		cur, ok := st.invoices[inv.ID]
		if !ok {
			err = repositories.ErrNotFound
			return
		}
		cur.Status = inv.Status
		cur.PaidAt = inv.PaidAt
		cur.PaymentReference = inv.PaymentReference
		cur.UpdatedAt = inv.UpdatedAt
		st.invoices[inv.ID] = cur
	})
	return err
}

type eventRepo struct{ view viewFn }

func (r eventRepo) Save(ctx context.Context, e *webhook.Event) error {
	r.view(func(st *state) {
		for i, ex := range st.events {
			if ex.Type == e.Type && ex.Reference == e.Reference {
				st.events[i].Payload = e.Payload
				e.ID = ex.ID
				return
			}
		}
		st.nextEventID++
		e.ID = st.nextEventID
		st.events = append(st.events, *e)
	})
	return nil
}

func (r eventRepo) FindByReference(ctx context.Context, reference string) (out []*webhook.Event, err error) {
	r.view(func(st *state) {
		for _, e := range st.events {
			if e.Reference == reference {
				e := e
				out = append(out, &e)
			}
		}
	})
	return out, nil
}

func (r eventRepo) FindUnprocessed(ctx context.Context, limit int) (out []*webhook.Event, err error) {
	r.view(func(st *state) {
		for _, e := range st.events {
			if !e.IsProcessed() {
				e := e
				out = append(out, &e)
			}
		}
	})
	return page(out, limit, 0), nil
}

func (r eventRepo) MarkProcessed(ctx context.Context, id int64, status webhook.ProcessingStatus) (err error) {
	err = repositories.ErrNotFound
	r.view(func(st *state) {
		for i := range st.events {
			if st.events[i].ID == id {
				now := time.Now().UTC()
				st.events[i].ProcessingStatus = status
				st.events[i].ProcessedAt = &now
				err = nil
				return
			}
		}
	})
	return err
}

type metricsRepo struct{ view viewFn }

func (r metricsRepo) Metrics(ctx context.Context, userID string) (*repositories.Metrics, error) {
	m := &repositories.Metrics{RequestsByStatus: map[payment.Status]int64{}}
	r.view(func(st *state) {
		for _, req := range st.requests {
			if userID == "" || req.UserID == userID {
				m.RequestsByStatus[req.Status]++
			}
		}
		vols := map[string]*repositories.CurrencyVolume{}
		for _, t := range st.transactions {
			if userID != "" && t.UserID != userID {
				continue
			}
			v, ok := vols[string(t.Currency)]
			if !ok {
				v = &repositories.CurrencyVolume{Currency: t.Currency, Gross: decimal.Zero, Fees: decimal.Zero, Net: decimal.Zero}
				vols[string(t.Currency)] = v
			}
			v.Count++
			v.Gross = v.Gross.Add(t.GrossAmount)
			v.Fees = v.Fees.Add(t.PlatformFee)
			v.Net = v.Net.Add(t.NetAmount)
		}
		for _, v := range vols {
			m.Volume = append(m.Volume, *v)
		}
	})
	sort.Slice(m.Volume, func(i, j int) bool {
		return strings.Compare(string(m.Volume[i].Currency), string(m.Volume[j].Currency)) < 0
	})
	return m, nil
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
