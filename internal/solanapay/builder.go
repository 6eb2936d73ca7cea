package solanapay

import (
	"context"
	"encoding/base64"
	"fmt"

	"afripay/internal/fee"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

var memoProgramID = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

// TransferParams is an unsigned payment the customer's wallet will sign.
type TransferParams struct {
	Payer     solana.PublicKey
	Recipient solana.PublicKey
	Amount    decimal.Decimal
	// FeeRecipient receives Fee in a separate transfer. When nil, Fee is
	// added to the recipient's transfer.
	FeeRecipient *solana.PublicKey
	Fee          decimal.Decimal
	Currency     fee.Currency
	Reference    solana.PublicKey
	Memo         string
}

// BuildTransfer returns the base64 wire form of an unsigned transaction with
// empty signature slots, as Solana Pay transaction requests expect.
func (c *Client) BuildTransfer(ctx context.Context, p TransferParams) (string, error) {
	ixs, err := c.instructions(p)
	if err != nil {
		return "", err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	bh, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(ixs, bh.Value.Blockhash, solana.TransactionPayer(p.Payer))
	if err != nil {
		return "", fmt.Errorf("new transaction: %w", err)
	}
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)

	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func (c *Client) instructions(p TransferParams) ([]solana.Instruction, error) {
	merchantAmount := p.Amount
	if p.FeeRecipient == nil {
		merchantAmount = p.Amount.Add(p.Fee)
	}
	if !merchantAmount.IsPositive() {
		return nil, fmt.Errorf("transfer amount must be positive")
	}

	var ixs []solana.Instruction
	if p.Memo != "" {
		ixs = append(ixs, solana.NewInstruction(memoProgramID, solana.AccountMetaSlice{}, []byte(p.Memo)))
	}

	pay, err := c.transfer(p.Payer, p.Recipient, merchantAmount, p.Currency)
	if err != nil {
		return nil, err
	}
	pay, err = withReference(pay, p.Reference)
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, pay)

	if p.FeeRecipient != nil && p.Fee.IsPositive() {
		feeIx, err := c.transfer(p.Payer, *p.FeeRecipient, p.Fee, p.Currency)
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, feeIx)
	}
	return ixs, nil
}

func (c *Client) transfer(from, to solana.PublicKey, amount decimal.Decimal, cur fee.Currency) (solana.Instruction, error) {
	units, err := fee.ToBaseUnits(amount, cur)
	if err != nil {
		return nil, err
	}
	if cur == fee.SOL {
		return system.NewTransferInstruction(units, from, to).Build(), nil
	}

	src, _, err := solana.FindAssociatedTokenAddress(from, c.usdcMint)
	if err != nil {
		return nil, fmt.Errorf("payer token account: %w", err)
	}
	dst, _, err := solana.FindAssociatedTokenAddress(to, c.usdcMint)
	if err != nil {
		return nil, fmt.Errorf("recipient token account: %w", err)
	}
	return token.NewTransferCheckedInstruction(
		units,
		uint8(fee.USDC.Decimals()),
		src,
		c.usdcMint,
		dst,
		from,
		[]solana.PublicKey{},
	).Build(), nil
}

// withReference appends ref as a read-only, non-signer key so the
// transaction can later be found with getSignaturesForAddress(ref).
func withReference(ix solana.Instruction, ref solana.PublicKey) (solana.Instruction, error) {
	data, err := ix.Data()
	if err != nil {
		return nil, fmt.Errorf("instruction data: %w", err)
	}
	accounts := make(solana.AccountMetaSlice, 0, len(ix.Accounts())+1)
	accounts = append(accounts, ix.Accounts()...)
	accounts = append(accounts, solana.Meta(ref))
	return solana.NewInstruction(ix.ProgramID(), accounts, data), nil
}
