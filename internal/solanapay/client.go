// Package solanapay is AfriPay's façade over the Solana JSON-RPC API and the
// Solana Pay conventions: transfer-request URLs, reference lookup, transfer
// verification and transaction-request construction.
package solanapay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"afripay/internal/config"
	"afripay/internal/fee"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RPC is the subset of *rpc.Client AfriPay calls.
type RPC interface {
	GetSignaturesForAddressWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error)
	GetTransaction(ctx context.Context, sig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetHealth(ctx context.Context) (string, error)
	GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
}

var (
	ErrInvalidPublicKey    = errors.New("invalid public key")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrTransactionNotFound = errors.New("transaction not found or not yet confirmed")
)

// Client wraps one RPC connection for the configured cluster.
type Client struct {
	rpc      RPC
	network  string
	usdcMint solana.PublicKey
	timeout  time.Duration
}

// New dials nothing; rpc.New only records the endpoint.
func New(cfg config.SolanaCfg) (*Client, error) {
	mint, err := ParsePublicKey(cfg.USDCMint)
	if err != nil {
		return nil, fmt.Errorf("USDC mint: %w", err)
	}
	return NewWithRPC(rpc.New(cfg.RPCEndpoint), cfg.Network, mint, cfg.RPCTimeout), nil
}

func NewWithRPC(r RPC, network string, usdcMint solana.PublicKey, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{rpc: r, network: network, usdcMint: usdcMint, timeout: timeout}
}

func (c *Client) Network() string { return c.network }
func (c *Client) USDCMint() solana.PublicKey { return c.usdcMint }

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// ParsePublicKey validates a base58 account address.
func ParsePublicKey(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %q", ErrInvalidPublicKey, s)
	}
	return pk, nil
}

// ParseSignature validates a base58 transaction signature.
func ParseSignature(s string) (solana.Signature, error) {
	sig, err := solana.SignatureFromBase58(strings.TrimSpace(s))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %q", ErrInvalidSignature, s)
	}
	return sig, nil
}

// NewReference returns a fresh random public key. The private half is
// discarded; a reference only needs to be unique.
func NewReference() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

// Balance returns the wallet's holdings of cur.
func (c *Client) Balance(ctx context.Context, wallet solana.PublicKey, cur fee.Currency) (decimal.Decimal, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if cur == fee.SOL {
		res, err := c.rpc.GetBalance(ctx, wallet, rpc.CommitmentConfirmed)
		if err != nil {
			return decimal.Zero, fmt.Errorf("get balance: %w", err)
		}
		return fee.FromBaseUnits(res.Value, fee.SOL), nil
	}

	ata, _, err := solana.FindAssociatedTokenAddress(wallet, c.usdcMint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("derive token account: %w", err)
	}
	res, err := c.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		// wallets that never held USDC have no token account
		if strings.Contains(err.Error(), "could not find account") {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("get token balance: %w", err)
	}
	if res.Value == nil {
		return decimal.Zero, nil
	}
	units, err := decimal.NewFromString(res.Value.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("token amount %q: %w", res.Value.Amount, err)
	}
	return units.Shift(-int32(res.Value.Decimals)), nil
}

// Health reports RPC node health and the current slot.
type Health struct {
	Status  string `json:"status"`
	Network string `json:"network"`
	Slot    uint64 `json:"slot,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (c *Client) Health(ctx context.Context) Health {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	h := Health{Status: "healthy", Network: c.network}
	status, err := c.rpc.GetHealth(ctx)
	if err != nil || status != rpc.HealthOk {
		h.Status = "unhealthy"
		if err != nil {
			h.Error = err.Error()
		} else {
			h.Error = "node reports " + status
		}
		log.Warn().Str("network", c.network).Str("error", h.Error).Msg("solana rpc unhealthy")
		return h
	}
	if slot, err := c.rpc.GetSlot(ctx, rpc.CommitmentConfirmed); err == nil {
		h.Slot = slot
	}
	return h
}
