package solanapay

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"afripay/internal/fee"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// fakeRPC implements RPC with overridable function fields.
type fakeRPC struct {
	SignaturesFunc   func(ctx context.Context, account solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error)
	TransactionFunc  func(ctx context.Context, sig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
	BalanceFunc      func(ctx context.Context, account solana.PublicKey) (*rpc.GetBalanceResult, error)
	TokenBalanceFunc func(ctx context.Context, account solana.PublicKey) (*rpc.GetTokenAccountBalanceResult, error)
	HealthFunc       func(ctx context.Context) (string, error)
}

func (f *fakeRPC) GetSignaturesForAddressWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
	if f.SignaturesFunc == nil {
		return nil, nil
	}
	return f.SignaturesFunc(ctx, account, opts)
}

func (f *fakeRPC) GetTransaction(ctx context.Context, sig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	if f.TransactionFunc == nil {
		return nil, rpc.ErrNotFound
	}
	return f.TransactionFunc(ctx, sig, opts)
}

func (f *fakeRPC) GetBalance(ctx context.Context, account solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return f.BalanceFunc(ctx, account)
}

func (f *fakeRPC) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	return f.TokenBalanceFunc(ctx, account)
}

func (f *fakeRPC) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: solana.Hash{7}, LastValidBlockHeight: 100}}, nil
}

func (f *fakeRPC) GetHealth(ctx context.Context) (string, error) {
	if f.HealthFunc == nil {
		return rpc.HealthOk, nil
	}
	return f.HealthFunc(ctx)
}

func (f *fakeRPC) GetSlot(context.Context, rpc.CommitmentType) (uint64, error) { return 42, nil }

func newTestClient(f *fakeRPC) *Client {
	return NewWithRPC(f, "devnet", solana.NewWallet().PublicKey(), time.Second)
}

func TestEncodeURL(t *testing.T) {
	recipient := solana.NewWallet().PublicKey().String()
	ref := solana.NewWallet().PublicKey().String()
	raw := EncodeURL(TransferRequest{
		Recipient: recipient,
		Amount:    decimal.RequireFromString("103.7145"),
		SPLToken:  "mint",
		Reference: ref,
		Label:     "Coffee Shop",
		Message:   "Order #12",
	})

	if !strings.HasPrefix(raw, "solana:"+recipient+"?amount=103.7145&spl-token=mint&reference=") {
		t.Fatalf("unexpected url %s", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if q.Get("reference") != ref || q.Get("label") != "Coffee Shop" || q.Get("message") != "Order #12" {
		t.Errorf("query = %v", q)
	}
	if q.Has("memo") {
		t.Error("empty memo must be omitted")
	}
}

func TestQRCodeURL(t *testing.T) {
	got := QRCodeURL("https://api.qrserver.com/v1/create-qr-code/", "solana:abc?amount=1")
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Query().Get("data") != "solana:abc?amount=1" {
		t.Errorf("data = %q", u.Query().Get("data"))
	}
}

func TestFindReferenceNone(t *testing.T) {
	c := newTestClient(&fakeRPC{})
	m, err := c.FindReference(context.Background(), NewReference())
	if err != nil || m != nil {
		t.Fatalf("got %v, %v; want nil, nil", m, err)
	}
}

func TestFindReferenceReturnsOldest(t *testing.T) {
	newest, oldest := solana.Signature{1}, solana.Signature{2}
	c := newTestClient(&fakeRPC{
		SignaturesFunc: func(_ context.Context, _ solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
			if opts.Commitment != rpc.CommitmentConfirmed {
				t.Errorf("commitment = %s", opts.Commitment)
			}
			return []*rpc.TransactionSignature{
				{Signature: newest, Slot: 20, ConfirmationStatus: rpc.ConfirmationStatusProcessed},
				{Signature: oldest, Slot: 10, ConfirmationStatus: rpc.ConfirmationStatusFinalized},
			}, nil
		},
	})
	m, err := c.FindReference(context.Background(), NewReference())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Signature != oldest.String() || m.Status != "finalized" || !m.Confirmed {
		t.Errorf("match = %+v", m)
	}
}

func TestFindReferenceFailedTransaction(t *testing.T) {
	c := newTestClient(&fakeRPC{
		SignaturesFunc: func(context.Context, solana.PublicKey, *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
			return []*rpc.TransactionSignature{{Signature: solana.Signature{3}, Err: map[string]any{"InstructionError": 0}, ConfirmationStatus: rpc.ConfirmationStatusConfirmed}}, nil
		},
	})
	m, _ := c.FindReference(context.Background(), NewReference())
	if m.Status != "failed" || m.Confirmed {
		t.Errorf("match = %+v", m)
	}
}

func TestInspectTransferNotFound(t *testing.T) {
	c := newTestClient(&fakeRPC{})
	_, err := c.InspectTransfer(context.Background(), solana.Signature{9}, TransferQuery{})
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("err = %v, want ErrTransactionNotFound", err)
	}
}

func TestReceivedAmountSOL(t *testing.T) {
	payer, merchant := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	meta := &rpc.TransactionMeta{
		PreBalances:  []uint64{5_000_000_000, 1_000_000_000},
		PostBalances: []uint64{3_499_995_000, 2_500_000_000},
	}
	got, err := receivedAmount(meta, []solana.PublicKey{payer, merchant}, merchant, fee.SOL, solana.PublicKey{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("received = %s, want 1.5", got)
	}
}

func TestReceivedAmountUSDC(t *testing.T) {
	merchant, other := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	bal := func(idx uint16, owner solana.PublicKey, amount string) rpc.TokenBalance {
		o := owner
		return rpc.TokenBalance{AccountIndex: idx, Owner: &o, Mint: mint, UiTokenAmount: &rpc.UiTokenAmount{Amount: amount, Decimals: 6}}
	}
	meta := &rpc.TransactionMeta{
		PreTokenBalances:  []rpc.TokenBalance{bal(1, other, "200000000"), bal(2, merchant, "1000000")},
		PostTokenBalances: []rpc.TokenBalance{bal(1, other, "96285500"), bal(2, merchant, "104714500")},
	}
	got, err := receivedAmount(meta, nil, merchant, fee.USDC, mint)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("103.7145")) {
		t.Errorf("received = %s, want 103.7145", got)
	}
}

func TestReceivedAmountUSDCNewTokenAccount(t *testing.T) {
	merchant, mint := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	meta := &rpc.TransactionMeta{
		PostTokenBalances: []rpc.TokenBalance{{AccountIndex: 3, Owner: &merchant, Mint: mint, UiTokenAmount: &rpc.UiTokenAmount{Amount: "2500000"}}},
	}
	got, _ := receivedAmount(meta, nil, merchant, fee.USDC, mint)
	if !got.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("received = %s, want 2.5", got)
	}
}

func TestInstructionsSplitFeeAndCarryReference(t *testing.T) {
	c := newTestClient(&fakeRPC{})
	platform := solana.NewWallet().PublicKey()
	ref := NewReference()
	ixs, err := c.instructions(TransferParams{
		Payer:        solana.NewWallet().PublicKey(),
		Recipient:    solana.NewWallet().PublicKey(),
		Amount:       decimal.RequireFromString("100.5"),
		FeeRecipient: &platform,
		Fee:          decimal.RequireFromString("3.2145"),
		Currency:     fee.USDC,
		Reference:    ref,
		Memo:         "order-12",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ixs) != 3 {
		t.Fatalf("got %d instructions, want memo + merchant + fee", len(ixs))
	}
	if !ixs[0].ProgramID().Equals(memoProgramID) {
		t.Errorf("first instruction program = %s, want memo", ixs[0].ProgramID())
	}

	var found bool
	for _, a := range ixs[1].Accounts() {
		if a.PublicKey.Equals(ref) {
			found = true
			if a.IsSigner || a.IsWritable {
				t.Error("reference must be read-only and non-signer")
			}
		}
	}
	if !found {
		t.Error("reference key missing from merchant transfer")
	}

	if got := transferCheckedAmount(t, ixs[1]); got != 100_500_000 {
		t.Errorf("merchant units = %d", got)
	}
	if got := transferCheckedAmount(t, ixs[2]); got != 3_214_500 {
		t.Errorf("fee units = %d", got)
	}
}

func TestInstructionsWithoutPlatformWalletPayTotal(t *testing.T) {
	c := newTestClient(&fakeRPC{})
	ixs, err := c.instructions(TransferParams{
		Payer:     solana.NewWallet().PublicKey(),
		Recipient: solana.NewWallet().PublicKey(),
		Amount:    decimal.RequireFromString("1.5"),
		Fee:       decimal.RequireFromString("0.0455"),
		Currency:  fee.SOL,
		Reference: NewReference(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ixs) != 1 {
		t.Fatalf("got %d instructions, want 1", len(ixs))
	}
	if !ixs[0].ProgramID().Equals(solana.SystemProgramID) {
		t.Errorf("program = %s, want system", ixs[0].ProgramID())
	}
	data, _ := ixs[0].Data()
	if got := binary.LittleEndian.Uint64(data[4:12]); got != 1_545_500_000 {
		t.Errorf("lamports = %d, want 1545500000", got)
	}
}

func TestBuildTransferSerializesUnsigned(t *testing.T) {
	c := newTestClient(&fakeRPC{})
	payer, ref := solana.NewWallet().PublicKey(), NewReference()
	encoded, err := c.BuildTransfer(context.Background(), TransferParams{
		Payer:     payer,
		Recipient: solana.NewWallet().PublicKey(),
		Amount:    decimal.NewFromInt(1),
		Fee:       decimal.RequireFromString("0.031"),
		Currency:  fee.SOL,
		Reference: ref,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		t.Fatalf("decode transaction: %v", err)
	}
	if !tx.Message.AccountKeys[0].Equals(payer) {
		t.Errorf("fee payer = %s, want %s", tx.Message.AccountKeys[0], payer)
	}
	if len(tx.Signatures) != 1 || tx.Signatures[0] != (solana.Signature{}) {
		t.Errorf("want one empty signature slot, got %v", tx.Signatures)
	}
	if !containsKey(tx.Message.AccountKeys, ref) {
		t.Error("reference missing from account keys")
	}
}

func TestBalanceSOL(t *testing.T) {
	c := newTestClient(&fakeRPC{
		BalanceFunc: func(context.Context, solana.PublicKey) (*rpc.GetBalanceResult, error) {
			return &rpc.GetBalanceResult{Value: 2_250_000_000}, nil
		},
	})
	got, err := c.Balance(context.Background(), solana.NewWallet().PublicKey(), fee.SOL)
	if err != nil || !got.Equal(decimal.RequireFromString("2.25")) {
		t.Fatalf("balance = %s, %v", got, err)
	}
}

func TestBalanceUSDCMissingAccountIsZero(t *testing.T) {
	c := newTestClient(&fakeRPC{
		TokenBalanceFunc: func(context.Context, solana.PublicKey) (*rpc.GetTokenAccountBalanceResult, error) {
			return nil, errors.New("Invalid param: could not find account")
		},
	})
	got, err := c.Balance(context.Background(), solana.NewWallet().PublicKey(), fee.USDC)
	if err != nil || !got.IsZero() {
		t.Fatalf("balance = %s, %v", got, err)
	}
}

func TestHealth(t *testing.T) {
	if h := newTestClient(&fakeRPC{}).Health(context.Background()); h.Status != "healthy" || h.Slot != 42 {
		t.Errorf("health = %+v", h)
	}
	down := newTestClient(&fakeRPC{HealthFunc: func(context.Context) (string, error) { return "", errors.New("timeout") }})
	if h := down.Health(context.Background()); h.Status != "unhealthy" || h.Error == "" {
		t.Errorf("health = %+v", h)
	}
}

func TestParseHelpers(t *testing.T) {
	if _, err := ParsePublicKey("not-a-key"); !errors.Is(err, ErrInvalidPublicKey) {
		t.Errorf("err = %v", err)
	}
	if _, err := ParseSignature("abc"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("err = %v", err)
	}
}

func transferCheckedAmount(t *testing.T, ix solana.Instruction) uint64 {
	t.Helper()
	data, err := ix.Data()
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	// discriminator, u64 amount, u8 decimals
	if len(data) != 10 {
		t.Fatalf("transferChecked data length = %d", len(data))
	}
	return binary.LittleEndian.Uint64(data[1:9])
}
