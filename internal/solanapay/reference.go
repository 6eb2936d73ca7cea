package solanapay

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// findReferenceLimit matches the Solana Pay reference implementation.
const findReferenceLimit = 1000

// Match is the oldest signature that mentions a reference.
type Match struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	Status    string `json:"status"`
	Confirmed bool   `json:"confirmed"`
}

// FindReference returns nil, nil when no transaction carries the reference yet.
func (c *Client) FindReference(ctx context.Context, reference solana.PublicKey) (*Match, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	limit := findReferenceLimit
	sigs, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, reference, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("get signatures for %s: %w", reference, err)
	}
	if len(sigs) == 0 {
		return nil, nil
	}

	// newest first; the settling payment is the oldest
	oldest := sigs[len(sigs)-1]
	m := &Match{
		Signature: oldest.Signature.String(),
		Slot:      oldest.Slot,
		Status:    string(oldest.ConfirmationStatus),
	}
	switch {
	case oldest.Err != nil:
		m.Status = "failed"
	case m.Status == "":
		m.Status = string(rpc.ConfirmationStatusConfirmed)
	}
	m.Confirmed = oldest.Err == nil &&
		(oldest.ConfirmationStatus == "" ||
			oldest.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
			oldest.ConfirmationStatus == rpc.ConfirmationStatusFinalized)
	return m, nil
}
