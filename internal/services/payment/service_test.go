package payment

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"afripay/internal/domain/invoice"
	"afripay/internal/domain/payment"
	"afripay/internal/domain/transaction"
	"afripay/internal/domain/webhook"
	"afripay/internal/fee"
	"afripay/internal/services/svcerr"
	"afripay/internal/solanapay"
	"afripay/internal/store/repositories"
	"afripay/internal/store/storetest"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type fakeChain struct {
	FindReferenceFunc   func(ctx context.Context, ref solana.PublicKey) (*solanapay.Match, error)
	InspectTransferFunc func(ctx context.Context, sig solana.Signature, q solanapay.TransferQuery) (*solanapay.Transfer, error)
	BuildTransferFunc   func(ctx context.Context, p solanapay.TransferParams) (string, error)
	BalanceFunc         func(ctx context.Context, wallet solana.PublicKey, cur fee.Currency) (decimal.Decimal, error)

	inspectCalls int
}

var testMint = solana.MustPublicKeyFromBase58("4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU")

func (f *fakeChain) FindReference(ctx context.Context, ref solana.PublicKey) (*solanapay.Match, error) {
	if f.FindReferenceFunc == nil {
		return nil, nil
	}
	return f.FindReferenceFunc(ctx, ref)
}

func (f *fakeChain) InspectTransfer(ctx context.Context, sig solana.Signature, q solanapay.TransferQuery) (*solanapay.Transfer, error) {
	f.inspectCalls++
	if f.InspectTransferFunc == nil {
		return nil, solanapay.ErrTransactionNotFound
	}
	return f.InspectTransferFunc(ctx, sig, q)
}

func (f *fakeChain) BuildTransfer(ctx context.Context, p solanapay.TransferParams) (string, error) {
	return f.BuildTransferFunc(ctx, p)
}

func (f *fakeChain) Balance(ctx context.Context, wallet solana.PublicKey, cur fee.Currency) (decimal.Decimal, error) {
	return f.BalanceFunc(ctx, wallet, cur)
}

func (f *fakeChain) USDCMint() solana.PublicKey { return testMint }
func (f *fakeChain) Network() string { return "devnet" }

type fakeNotifier struct {
	mu       sync.Mutex
	requests []string
	receipts []string
}

func (n *fakeNotifier) SendPaymentRequest(ctx context.Context, r *payment.Request) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = append(n.requests, r.Reference)
	return nil
}

func (n *fakeNotifier) SendReceipt(ctx context.Context, r *payment.Request, tx *transaction.Transaction, network string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts = append(n.receipts, tx.Signature)
	return nil
}

type fakeRequests struct {
	repositories.PaymentRequestRepository
	MarkCompletedFunc   func(ctx context.Context, reference, signature string, at time.Time) (bool, error)
	FindByReferenceFunc func(ctx context.Context, reference string) (*payment.Request, error)
}

func (r *fakeRequests) MarkCompleted(ctx context.Context, reference, signature string, at time.Time) (bool, error) {
	return r.MarkCompletedFunc(ctx, reference, signature, at)
}

func (r *fakeRequests) FindByReference(ctx context.Context, reference string) (*payment.Request, error) {
	return r.FindByReferenceFunc(ctx, reference)
}

// lostRace is a unit of work in which another verify completed the request
// between the service's lookup and its own update.
type lostRace struct {
	store  *storetest.Store
	winner payment.Request
}

func (u *lostRace) Begin(ctx context.Context) (repositories.Transaction, error) {
	tx, err := u.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return lostRaceTx{Transaction: tx, winner: u.winner}, nil
}

type lostRaceTx struct {
	repositories.Transaction
	winner payment.Request
}

func (t lostRaceTx) PaymentRequests() repositories.PaymentRequestRepository {
	return &fakeRequests{
		PaymentRequestRepository: t.Transaction.PaymentRequests(),
		MarkCompletedFunc: func(context.Context, string, string, time.Time) (bool, error) {
			return false, nil
		},
		FindByReferenceFunc: func(context.Context, string) (*payment.Request, error) {
			w := t.winner
			return &w, nil
		},
	}
}

type fixture struct {
	svc      *Service
	store    *storetest.Store
	chain    *fakeChain
	notifier *fakeNotifier
	merchant solana.PublicKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storetest.New()
	chain := &fakeChain{}
	notifier := &fakeNotifier{}
	calc := fee.NewCalculator(decimal.RequireFromString("0.029"), decimal.RequireFromString("0.30"), decimal.NewFromInt(150))
	svc := NewService(store.PaymentRequests(), store.Transactions(), store, chain, calc, notifier, Options{
		Label:     "AfriPay",
		IconURL:   "https://afripay.africa/icon.png",
		QRBaseURL: "https://qr.example/",
	})
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	return &fixture{svc: svc, store: store, chain: chain, notifier: notifier, merchant: solana.NewWallet().PublicKey()}
}

func (f *fixture) create(t *testing.T, amount string) *payment.Request {
	t.Helper()
	res, err := f.svc.Create(context.Background(), CreateInput{
		UserID:          "merchant-1",
		Amount:          decimal.RequireFromString(amount),
		Currency:        "USDC",
		RecipientWallet: f.merchant.String(),
		Description:     "Order #42",
		CustomerEmail:   "buyer@example.com",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.svc.Wait()
	return res.PaymentRequest
}

func signature(n byte) string {
	var s solana.Signature
	s[0], s[63] = n, n
	return s.String()
}

func paidInFull(received string) func(context.Context, solana.Signature, solanapay.TransferQuery) (*solanapay.Transfer, error) {
	return func(_ context.Context, sig solana.Signature, q solanapay.TransferQuery) (*solanapay.Transfer, error) {
		return &solanapay.Transfer{
			Signature:    sig.String(),
			Slot:         1234,
			Sender:       "payer",
			HasReference: true,
			Received:     decimal.RequireFromString(received),
		}, nil
	}
}

func TestCreatePersistsFeeAndEvent(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "100.50")

	if !req.Fee.Equal(decimal.RequireFromString("3.2145")) {
		t.Fatalf("fee = %s, want 3.2145", req.Fee)
	}
	if !req.Total.Equal(decimal.RequireFromString("103.7145")) {
		t.Fatalf("total = %s, want 103.7145", req.Total)
	}

	stored, err := f.store.PaymentRequests().FindByReference(context.Background(), req.Reference)
	if err != nil {
		t.Fatalf("stored request: %v", err)
	}
	if stored.Status != payment.StatusPending || !stored.Fee.Equal(req.Fee) {
		t.Fatalf("stored = %+v", stored)
	}
	if stored.Message != "Order #42" {
		t.Fatalf("message = %q, want description fallback", stored.Message)
	}

	wantPrefix := "solana:" + f.merchant.String() + "?amount=103.7145&spl-token=" + testMint.String() + "&reference=" + req.Reference
	if !strings.HasPrefix(req.PaymentURL, wantPrefix) {
		t.Fatalf("payment url = %s", req.PaymentURL)
	}
	if !strings.HasPrefix(req.QRCodeURL, "https://qr.example/?size=300x300&data=") {
		t.Fatalf("qr url = %s", req.QRCodeURL)
	}

	if got := f.store.EventTypes(); len(got) != 1 || got[0] != webhook.TypePaymentCreated {
		t.Fatalf("events = %v", got)
	}
	if len(f.notifier.requests) != 1 {
		t.Fatalf("payment request emails = %d, want 1", len(f.notifier.requests))
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	good := CreateInput{Amount: decimal.NewFromInt(10), Currency: "SOL", RecipientWallet: f.merchant.String()}

	cases := map[string]func(in *CreateInput){
		"bad wallet":    func(in *CreateInput) { in.RecipientWallet = "not-a-key" },
		"zero amount":   func(in *CreateInput) { in.Amount = decimal.Zero },
		"below minimum": func(in *CreateInput) { in.Amount = decimal.RequireFromString("0.0000001") },
		"currency":      func(in *CreateInput) { in.Currency = "BTC" },
		"email":         func(in *CreateInput) { in.CustomerEmail = "nope" },
		"over uint64":   func(in *CreateInput) { in.Amount = decimal.NewFromInt(20000000000) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := good
			mutate(&in)
			_, err := f.svc.Create(context.Background(), in)
			var ve *svcerr.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
	if f.store.Commits != 0 {
		t.Fatalf("commits = %d, want 0", f.store.Commits)
	}
}

func TestCreateRejectsAmountBeyondTransferRange(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateInput{
		Amount:          decimal.NewFromInt(20000000000),
		Currency:        "SOL",
		RecipientWallet: f.merchant.String(),
	})
	var ve *svcerr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if _, ok := ve.Fields["amount"]; !ok {
		t.Fatalf("fields = %v, want amount", ve.Fields)
	}
	if f.store.Commits != 0 {
		t.Fatalf("commits = %d, want 0", f.store.Commits)
	}
}

func TestVerifyUnknownReferenceSkipsChain(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Verify(context.Background(), signature(1), solana.NewWallet().PublicKey().String())

	var nf *svcerr.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want not found", err)
	}
	if f.chain.inspectCalls != 0 {
		t.Fatalf("chain called %d times before lookup", f.chain.inspectCalls)
	}
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "5")

	var ve *svcerr.ValidationError
	if _, err := f.svc.Verify(context.Background(), "xyz", req.Reference); !errors.As(err, &ve) {
		t.Fatalf("bad signature: err = %v", err)
	}
	if _, err := f.svc.Verify(context.Background(), signature(1), "0OIl"); !errors.As(err, &ve) {
		t.Fatalf("bad reference: err = %v", err)
	}
}

func TestVerifyCompletesRequest(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "100.50")
	f.chain.InspectTransferFunc = paidInFull("103.7145")

	sig := signature(7)
	res, err := f.svc.Verify(context.Background(), sig, req.Reference)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	f.svc.Wait()

	if !res.Transaction.GrossAmount.Equal(decimal.RequireFromString("103.7145")) {
		t.Fatalf("gross = %s", res.Transaction.GrossAmount)
	}
	if !res.PlatformFee.Equal(decimal.RequireFromString("3.2145")) || !res.NetAmount.Equal(decimal.RequireFromString("100.5")) {
		t.Fatalf("fee = %s net = %s", res.PlatformFee, res.NetAmount)
	}
	if res.PaymentRequest.Status != payment.StatusCompleted || res.PaymentRequest.Signature != sig {
		t.Fatalf("request = %+v", res.PaymentRequest)
	}

	stored, _ := f.store.PaymentRequests().FindByReference(context.Background(), req.Reference)
	if stored.Status != payment.StatusCompleted || stored.CompletedAt == nil {
		t.Fatalf("stored = %+v", stored)
	}
	events := f.store.EventTypes()
	if events[len(events)-1] != webhook.TypePaymentCompleted {
		t.Fatalf("events = %v", events)
	}
	if len(f.notifier.receipts) != 1 || f.notifier.receipts[0] != sig {
		t.Fatalf("receipts = %v", f.notifier.receipts)
	}
}

func TestVerifyReplayDoesNotHitChain(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "20")
	f.chain.InspectTransferFunc = paidInFull("20.88")

	sig := signature(9)
	first, err := f.svc.Verify(context.Background(), sig, req.Reference)
	if err != nil {
		t.Fatalf("first verify: %v", err)
	}
	second, err := f.svc.Verify(context.Background(), sig, req.Reference)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	f.svc.Wait()

	if f.chain.inspectCalls != 1 {
		t.Fatalf("chain calls = %d, want 1", f.chain.inspectCalls)
	}
	if first.Transaction.ID != second.Transaction.ID {
		t.Fatalf("replay returned a different transaction")
	}
	if len(f.notifier.receipts) != 1 {
		t.Fatalf("receipts = %d, want 1", len(f.notifier.receipts))
	}
}

func TestVerifyConflicts(t *testing.T) {
	f := newFixture(t)
	f.chain.InspectTransferFunc = paidInFull("1000")

	completed := f.create(t, "10")
	if _, err := f.svc.Verify(context.Background(), signature(1), completed.Reference); err != nil {
		t.Fatalf("verify: %v", err)
	}

	cancelled := f.create(t, "10")
	if _, err := f.svc.Cancel(context.Background(), cancelled.Reference); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	other := f.create(t, "10")

	cases := []struct {
		name, sig, ref string
	}{
		{"different signature", signature(2), completed.Reference},
		{"cancelled request", signature(3), cancelled.Reference},
		{"signature settles another request", signature(1), other.Reference},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Verify(context.Background(), tc.sig, tc.ref)
			var ce *svcerr.ConflictError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want conflict", err)
			}
		})
	}

	stored, _ := f.store.PaymentRequests().FindByReference(context.Background(), other.Reference)
	if stored.Status != payment.StatusPending {
		t.Fatalf("conflicting verify changed status to %s", stored.Status)
	}
}

func TestVerifyChainRejections(t *testing.T) {
	cases := []struct {
		name    string
		inspect func(context.Context, solana.Signature, solanapay.TransferQuery) (*solanapay.Transfer, error)
		code    string
	}{
		{
			name: "not found",
			inspect: func(context.Context, solana.Signature, solanapay.TransferQuery) (*solanapay.Transfer, error) {
				return nil, solanapay.ErrTransactionNotFound
			},
			code: svcerr.CodeNotConfirmed,
		},
		{
			name: "failed on chain",
			inspect: func(context.Context, solana.Signature, solanapay.TransferQuery) (*solanapay.Transfer, error) {
				return &solanapay.Transfer{Failed: true, HasReference: true, Received: decimal.Zero}, nil
			},
			code: svcerr.CodeNotConfirmed,
		},
		{
			name: "missing reference",
			inspect: func(context.Context, solana.Signature, solanapay.TransferQuery) (*solanapay.Transfer, error) {
				return &solanapay.Transfer{Received: decimal.NewFromInt(500)}, nil
			},
			code: svcerr.CodeReferenceMismatch,
		},
		{
			name:    "underpaid",
			inspect: paidInFull("99.99"),
			code:    svcerr.CodeUnderpaid,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.create(t, "100")
			f.chain.InspectTransferFunc = tc.inspect

			_, err := f.svc.Verify(context.Background(), signature(4), req.Reference)
			var ce *svcerr.ChainError
			if !errors.As(err, &ce) || ce.Code != tc.code {
				t.Fatalf("err = %v, want chain error %s", err, tc.code)
			}
			stored, _ := f.store.PaymentRequests().FindByReference(context.Background(), req.Reference)
			if stored.Status != payment.StatusPending {
				t.Fatalf("status = %s, want pending", stored.Status)
			}
		})
	}
}

func TestVerifyAcceptsExactAmountWithoutFee(t *testing.T) {
	// the fee leg may go to the platform wallet in a transaction request
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	f := newFixture(t)
	req := f.create(t, "100")
	f.chain.InspectTransferFunc = paidInFull("100")

	res, err := f.svc.Verify(context.Background(), signature(5), req.Reference)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	f.svc.Wait()
	if !res.NetAmount.Equal(req.Amount) || !res.PlatformFee.Equal(req.Fee) {
		t.Fatalf("fee = %s net = %s", res.PlatformFee, res.NetAmount)
	}
	out := buf.String()
	if !strings.Contains(out, "fee leg not observed") || !strings.Contains(out, `"received":"100"`) {
		t.Fatalf("log = %s", out)
	}
}

func TestVerifyPaidInFullLogsNoShortfall(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	f := newFixture(t)
	req := f.create(t, "100")
	f.chain.InspectTransferFunc = paidInFull(req.Total.String())

	if _, err := f.svc.Verify(context.Background(), signature(7), req.Reference); err != nil {
		t.Fatalf("verify: %v", err)
	}
	f.svc.Wait()
	if strings.Contains(buf.String(), "fee leg not observed") {
		t.Fatalf("log = %s", buf.String())
	}
}

func TestVerifyLosingConcurrentSettleOfSameSignature(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "20")
	f.chain.InspectTransferFunc = paidInFull("20.88")
	sig := signature(11)
	ctx := context.Background()

	won, err := f.store.Transactions().Upsert(ctx, transaction.New(req.Reference, req.ID, req.UserID, sig, req.Total, req.Fee, req.Currency))
	if err != nil {
		t.Fatal(err)
	}
	winner := *req
	if err := winner.Complete(sig, f.svc.now()); err != nil {
		t.Fatal(err)
	}
	f.svc.uow = &lostRace{store: f.store, winner: winner}
	commits := f.store.Commits

	res, err := f.svc.Verify(ctx, sig, req.Reference)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	f.svc.Wait()

	if res.Transaction.ID != won.ID || res.PaymentRequest.Status != payment.StatusCompleted {
		t.Fatalf("result = %+v", res)
	}
	txs, _ := f.store.Transactions().List(ctx, repositories.ListFilter{})
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txs))
	}
	if len(f.notifier.receipts) != 0 {
		t.Fatalf("receipts = %v", f.notifier.receipts)
	}
	if f.store.Commits != commits {
		t.Fatalf("commits = %d, want %d", f.store.Commits, commits)
	}
}

func TestVerifyLosingConcurrentSettleOfOtherSignature(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "20")
	f.chain.InspectTransferFunc = paidInFull("20.88")

	winner := *req
	if err := winner.Complete(signature(12), f.svc.now()); err != nil {
		t.Fatal(err)
	}
	f.svc.uow = &lostRace{store: f.store, winner: winner}

	_, err := f.svc.Verify(context.Background(), signature(11), req.Reference)
	var ce *svcerr.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want conflict", err)
	}
	f.svc.Wait()
	txs, _ := f.store.Transactions().List(context.Background(), repositories.ListFilter{})
	if len(txs) != 0 {
		t.Fatalf("transactions = %d, want 0", len(txs))
	}
	if len(f.notifier.receipts) != 0 {
		t.Fatalf("receipts = %v", f.notifier.receipts)
	}
}

func TestVerifyMarksLinkedInvoicePaid(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "50")

	inv, err := invoice.New("merchant-1", "buyer@example.com", "Buyer", []invoice.Item{
		{Description: "Consulting", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(50)},
	}, fee.USDC, f.svc.now())
	if err != nil {
		t.Fatalf("invoice: %v", err)
	}
	inv.PaymentReference = req.Reference
	inv.Status = invoice.StatusSent
	if err := f.store.Invoices().Create(context.Background(), inv); err != nil {
		t.Fatal(err)
	}

	f.chain.InspectTransferFunc = paidInFull("51.75")
	if _, err := f.svc.Verify(context.Background(), signature(6), req.Reference); err != nil {
		t.Fatalf("verify: %v", err)
	}

	got, _ := f.store.Invoices().FindByID(context.Background(), inv.ID)
	if got.Status != invoice.StatusPaid || got.PaidAt == nil {
		t.Fatalf("invoice = %+v", got)
	}
	events := f.store.EventTypes()
	if events[len(events)-1] != webhook.TypeInvoicePaid {
		t.Fatalf("events = %v", events)
	}
}

func TestVerifyRollsBackOnBeginFailure(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "10")
	f.chain.InspectTransferFunc = paidInFull("10.59")
	f.store.BeginErr = errors.New("connection refused")

	_, err := f.svc.Verify(context.Background(), signature(8), req.Reference)
	var se *svcerr.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want service error", err)
	}
	if _, err := f.store.Transactions().FindBySignature(context.Background(), signature(8)); err == nil {
		t.Fatalf("transaction persisted despite failure")
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var nf *svcerr.NotFoundError
	if _, err := f.svc.Cancel(ctx, solana.NewWallet().PublicKey().String()); !errors.As(err, &nf) {
		t.Fatalf("unknown reference: err = %v", err)
	}

	req := f.create(t, "10")
	got, err := f.svc.Cancel(ctx, req.Reference)
	if err != nil || got.Status != payment.StatusCancelled {
		t.Fatalf("cancel: %+v, %v", got, err)
	}
	if _, err := f.svc.Cancel(ctx, req.Reference); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	cancelEvents := 0
	for _, e := range f.store.EventTypes() {
		if e == webhook.TypePaymentCancelled {
			cancelEvents++
		}
	}
	if cancelEvents != 1 {
		t.Fatalf("cancel events = %d, want 1", cancelEvents)
	}

	done := f.create(t, "10")
	f.chain.InspectTransferFunc = paidInFull("10.59")
	if _, err := f.svc.Verify(ctx, signature(3), done.Reference); err != nil {
		t.Fatalf("verify: %v", err)
	}
	var ce *svcerr.ConflictError
	if _, err := f.svc.Cancel(ctx, done.Reference); !errors.As(err, &ce) {
		t.Fatalf("cancel completed: err = %v, want conflict", err)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ref := solana.NewWallet().PublicKey().String()

	res, err := f.svc.Status(context.Background(), ref)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if res.Status != "pending" || res.Confirmed {
		t.Fatalf("status = %+v", res)
	}

	f.chain.FindReferenceFunc = func(context.Context, solana.PublicKey) (*solanapay.Match, error) {
		return &solanapay.Match{Signature: signature(1), Status: "confirmed", Confirmed: true}, nil
	}
	res, err = f.svc.Status(context.Background(), ref)
	if err != nil || !res.Confirmed || res.Signature != signature(1) {
		t.Fatalf("status = %+v, %v", res, err)
	}

	var ve *svcerr.ValidationError
	if _, err := f.svc.Status(context.Background(), "bad"); !errors.As(err, &ve) {
		t.Fatalf("bad reference: err = %v", err)
	}
}

func TestBuildTransactionRequestSplitsFee(t *testing.T) {
	f := newFixture(t)
	platform := solana.NewWallet().PublicKey()
	f.svc.opts.PlatformWallet = &platform
	req := f.create(t, "100.50")

	var got solanapay.TransferParams
	f.chain.BuildTransferFunc = func(_ context.Context, p solanapay.TransferParams) (string, error) {
		got = p
		return "AQID", nil
	}

	payer := solana.NewWallet().PublicKey()
	res, err := f.svc.BuildTransactionRequest(context.Background(), req.Reference, payer.String())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if res.Transaction != "AQID" || res.Message != "Order #42" {
		t.Fatalf("result = %+v", res)
	}
	if !got.Payer.Equals(payer) || !got.Recipient.Equals(f.merchant) {
		t.Fatalf("params = %+v", got)
	}
	if got.FeeRecipient == nil || !got.FeeRecipient.Equals(platform) {
		t.Fatalf("fee recipient = %v", got.FeeRecipient)
	}
	if !got.Amount.Equal(decimal.RequireFromString("100.5")) || !got.Fee.Equal(decimal.RequireFromString("3.2145")) {
		t.Fatalf("amount = %s fee = %s", got.Amount, got.Fee)
	}
	if got.Reference.String() != req.Reference {
		t.Fatalf("reference = %s", got.Reference)
	}

	meta, err := f.svc.TransactionRequestMeta(context.Background(), req.Reference)
	if err != nil || meta.Label != "AfriPay" || meta.Icon == "" {
		t.Fatalf("meta = %+v, %v", meta, err)
	}
}

func TestBuildTransactionRequestRejects(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "10")
	f.chain.BuildTransferFunc = func(context.Context, solanapay.TransferParams) (string, error) {
		t.Fatal("unexpected build")
		return "", nil
	}

	var ve *svcerr.ValidationError
	if _, err := f.svc.BuildTransactionRequest(context.Background(), req.Reference, "nope"); !errors.As(err, &ve) {
		t.Fatalf("bad account: err = %v", err)
	}

	if _, err := f.svc.Cancel(context.Background(), req.Reference); err != nil {
		t.Fatal(err)
	}
	var ce *svcerr.ConflictError
	if _, err := f.svc.BuildTransactionRequest(context.Background(), req.Reference, solana.NewWallet().PublicKey().String()); !errors.As(err, &ce) {
		t.Fatalf("cancelled: err = %v, want conflict", err)
	}
}

func TestBalance(t *testing.T) {
	f := newFixture(t)
	f.chain.BalanceFunc = func(_ context.Context, _ solana.PublicKey, cur fee.Currency) (decimal.Decimal, error) {
		if cur != fee.SOL {
			t.Fatalf("currency = %s", cur)
		}
		return decimal.RequireFromString("1.5"), nil
	}

	res, err := f.svc.Balance(context.Background(), f.merchant.String(), "sol")
	if err != nil || !res.Balance.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("balance = %+v, %v", res, err)
	}

	var ve *svcerr.ValidationError
	if _, err := f.svc.Balance(context.Background(), "x", "SOL"); !errors.As(err, &ve) {
		t.Fatalf("bad wallet: err = %v", err)
	}
	if _, err := f.svc.Balance(context.Background(), f.merchant.String(), "EUR"); !errors.As(err, &ve) {
		t.Fatalf("bad currency: err = %v", err)
	}
}
