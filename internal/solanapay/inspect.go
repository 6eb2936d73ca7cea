package solanapay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"afripay/internal/fee"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// TransferQuery describes the payment a signature is expected to settle.
type TransferQuery struct {
	Recipient solana.PublicKey
	Reference solana.PublicKey
	Currency  fee.Currency
}

// Transfer is what the chain says a confirmed transaction did for a query.
type Transfer struct {
	Signature    string
	Slot         uint64
	BlockTime    *time.Time
	Sender       string
	Failed       bool
	HasReference bool
	Received     decimal.Decimal
}

// InspectTransfer fetches sig at confirmed commitment and measures what the
// recipient received. ErrTransactionNotFound means the transaction is unknown
// or has not reached confirmed yet.
func (c *Client) InspectTransfer(ctx context.Context, sig solana.Signature, q TransferQuery) (*Transfer, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	maxVersion := uint64(0)
	res, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && res == nil) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", sig, err)
	}
	if res.Meta == nil || res.Transaction == nil {
		return nil, ErrTransactionNotFound
	}

	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", sig, err)
	}
	keys := accountKeys(tx, res.Meta)

	t := &Transfer{
		Signature:    sig.String(),
		Slot:         res.Slot,
		Failed:       res.Meta.Err != nil,
		HasReference: containsKey(keys, q.Reference),
	}
	if len(keys) > 0 {
		t.Sender = keys[0].String()
	}
	if res.BlockTime != nil {
		bt := res.BlockTime.Time().UTC()
		t.BlockTime = &bt
	}

	t.Received, err = receivedAmount(res.Meta, keys, q.Recipient, q.Currency, c.usdcMint)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("signature", t.Signature).
		Uint64("slot", t.Slot).
		Bool("failed", t.Failed).
		Bool("has_reference", t.HasReference).
		Str("received", t.Received.String()).
		Msg("inspected transfer")
	return t, nil
}

// accountKeys returns static keys followed by lookup-table keys, the order
// balance arrays are indexed in.
func accountKeys(tx *solana.Transaction, meta *rpc.TransactionMeta) []solana.PublicKey {
	keys := make([]solana.PublicKey, 0, len(tx.Message.AccountKeys))
	keys = append(keys, tx.Message.AccountKeys...)
	keys = append(keys, meta.LoadedAddresses.Writable...)
	keys = append(keys, meta.LoadedAddresses.ReadOnly...)
	return keys
}

func containsKey(keys []solana.PublicKey, k solana.PublicKey) bool {
	for _, key := range keys {
		if key.Equals(k) {
			return true
		}
	}
	return false
}

// receivedAmount is the recipient's balance delta in cur. For SOL it is the
// lamport delta of the wallet itself; for USDC it sums deltas of every token
// account the wallet owns for the mint.
func receivedAmount(meta *rpc.TransactionMeta, keys []solana.PublicKey, recipient solana.PublicKey, cur fee.Currency, mint solana.PublicKey) (decimal.Decimal, error) {
	if cur == fee.SOL {
		for i, k := range keys {
			if !k.Equals(recipient) {
				continue
			}
			if i >= len(meta.PreBalances) || i >= len(meta.PostBalances) {
				return decimal.Zero, fmt.Errorf("balance arrays shorter than account keys")
			}
			delta := decimal.NewFromUint64(meta.PostBalances[i]).Sub(decimal.NewFromUint64(meta.PreBalances[i]))
			return delta.Shift(-fee.SOL.Decimals()), nil
		}
		return decimal.Zero, nil
	}

	pre := map[uint16]decimal.Decimal{}
	for _, b := range meta.PreTokenBalances {
		if !ownedMint(b, recipient, mint) {
			continue
		}
		amt, err := tokenUnits(b)
		if err != nil {
			return decimal.Zero, err
		}
		pre[b.AccountIndex] = amt
	}

	total := decimal.Zero
	for _, b := range meta.PostTokenBalances {
		if !ownedMint(b, recipient, mint) {
			continue
		}
		amt, err := tokenUnits(b)
		if err != nil {
			return decimal.Zero, err
		}
		// a missing pre balance means the account was created in this tx
		total = total.Add(amt.Sub(pre[b.AccountIndex]))
	}
	return total.Shift(-fee.USDC.Decimals()), nil
}

func ownedMint(b rpc.TokenBalance, owner, mint solana.PublicKey) bool {
	return b.Owner != nil && b.Owner.Equals(owner) && b.Mint.Equals(mint)
}

func tokenUnits(b rpc.TokenBalance) (decimal.Decimal, error) {
	if b.UiTokenAmount == nil || b.UiTokenAmount.Amount == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(b.UiTokenAmount.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("token amount %q: %w", b.UiTokenAmount.Amount, err)
	}
	return d, nil
}
