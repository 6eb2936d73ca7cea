package handlers

import (
	"context"
	"net/http"

	"afripay/internal/domain/payment"
	paymentsvc "afripay/internal/services/payment"

	"github.com/go-chi/chi/v5"
)

// PaymentService is the payment surface the handlers use.
type PaymentService interface {
	Create(ctx context.Context, in paymentsvc.CreateInput) (*paymentsvc.CreateResult, error)
	Get(ctx context.Context, reference string) (*paymentsvc.RequestView, error)
	Cancel(ctx context.Context, reference string) (*payment.Request, error)
	Status(ctx context.Context, reference string) (*paymentsvc.StatusResult, error)
	Verify(ctx context.Context, signature, reference string) (*paymentsvc.VerifyResult, error)
	TransactionRequestMeta(ctx context.Context, reference string) (*paymentsvc.TransactionRequestMeta, error)
	BuildTransactionRequest(ctx context.Context, reference, account string) (*paymentsvc.TransactionRequestResult, error)
	Balance(ctx context.Context, wallet, currency string) (*paymentsvc.BalanceResult, error)
}

// CreatePayment handles POST /api/create
func CreatePayment(svc PaymentService, errs Errors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in paymentsvc.CreateInput
		if !decode(w, r, &in) {
			return
		}
		res, err := svc.Create(r.Context(), in)
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// GetPayment handles GET /api/create/{reference}
func GetPayment(svc PaymentService, errs Errors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Get(r.Context(), chi.URLParam(r, "reference"))
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// CancelPayment handles DELETE /api/create/{reference}
func CancelPayment(svc PaymentService, errs Errors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := svc.Cancel(r.Context(), chi.URLParam(r, "reference"))
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"paymentRequest": req})
	}
}

func PaymentStatus(svc PaymentService, errs Errors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Status(r.Context(), chi.URLParam(r, "reference"))
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type verifyBody struct {
	Signature string `json:"signature"`
	Reference string `json:"reference"`
}

// VerifyPayment handles POST /api/payment/verify
func VerifyPayment(svc PaymentService, errs Errors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body verifyBody
		if !decode(w, r, &body) {
			return
		}
		res, err := svc.Verify(r.Context(), body.Signature, body.Reference)
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// TransactionRequestMeta handles the Solana Pay GET on a transaction request link.
func TransactionRequestMeta(svc PaymentService, errs Errors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.TransactionRequestMeta(r.Context(), chi.URLParam(r, "reference"))
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type accountBody struct {
	Account string `json:"account"`
}

// TransactionRequest handles the Solana Pay POST; the wallet sends its account.
func TransactionRequest(svc PaymentService, errs Errors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body accountBody
		if !decode(w, r, &body) {
			return
		}
		res, err := svc.BuildTransactionRequest(r.Context(), chi.URLParam(r, "reference"), body.Account)
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func WalletBalance(svc PaymentService, errs Errors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Balance(r.Context(), chi.URLParam(r, "wallet"), r.URL.Query().Get("currency"))
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
