package payment

import (
	"context"
	"strings"

	"afripay/internal/domain/payment"
	"afripay/internal/fee"
	"afripay/internal/services/svcerr"
	"afripay/internal/solanapay"
)

// TransactionRequestMeta answers the wallet's GET on a transaction request link.
func (s *Service) TransactionRequestMeta(ctx context.Context, reference string) (*TransactionRequestMeta, error) {
	req, err := s.lookup(ctx, reference)
	if err != nil {
		return nil, err
	}
	return &TransactionRequestMeta{Label: firstNonEmpty(req.Label, s.opts.Label), Icon: s.opts.IconURL}, nil
}

// BuildTransactionRequest serializes an unsigned transfer for account to sign.
// With a platform wallet configured the fee leg is split off; otherwise the
// merchant receives the full total.
func (s *Service) BuildTransactionRequest(ctx context.Context, reference, account string) (*TransactionRequestResult, error) {
	payer, err := solanapay.ParsePublicKey(strings.TrimSpace(account))
	if err != nil {
		return nil, svcerr.Invalid("account", "must be a valid Solana public key")
	}
	req, err := s.lookup(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !req.IsPending() {
		return nil, &svcerr.ConflictError{Message: "payment request is already " + string(req.Status)}
	}
	if req.IsExpired(s.now()) {
		return nil, &svcerr.ConflictError{Message: "payment request has expired"}
	}

	recipient, err := solanapay.ParsePublicKey(req.Recipient)
	if err != nil {
		return nil, svcerr.Wrap("transaction_request", err)
	}
	ref, _ := solanapay.ParsePublicKey(req.Reference)

	encoded, err := s.chain.BuildTransfer(ctx, solanapay.TransferParams{
		Payer:        payer,
		Recipient:    recipient,
		Amount:       req.Amount,
		FeeRecipient: s.opts.PlatformWallet,
		Fee:          req.Fee,
		Currency:     req.Currency,
		Reference:    ref,
		Memo:         req.Memo,
	})
	if err != nil {
		return nil, svcerr.Wrap("transaction_request", err)
	}
	return &TransactionRequestResult{Transaction: encoded, Message: messageFor(req, s.opts.Label)}, nil
}

func messageFor(req *payment.Request, fallback string) string {
	return firstNonEmpty(req.Message, req.Label, fallback)
}

// Balance reads a wallet's SOL or USDC balance.
func (s *Service) Balance(ctx context.Context, wallet, currency string) (*BalanceResult, error) {
	pk, err := solanapay.ParsePublicKey(strings.TrimSpace(wallet))
	if err != nil {
		return nil, svcerr.Invalid("wallet", "must be a valid Solana public key")
	}
	cur, err := fee.ParseCurrency(currency)
	if err != nil {
		return nil, svcerr.Invalid("currency", "must be USDC or SOL")
	}
	bal, err := s.chain.Balance(ctx, pk, cur)
	if err != nil {
		return nil, svcerr.Wrap("balance", err)
	}
	return &BalanceResult{Wallet: pk.String(), Currency: cur, Balance: bal}, nil
}
