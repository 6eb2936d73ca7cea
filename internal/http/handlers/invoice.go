package handlers

import (
	"context"
	"net/http"

	"afripay/internal/domain/invoice"
	invoicesvc "afripay/internal/services/invoice"

	"github.com/go-chi/chi/v5"
)

type InvoiceService interface {
	Create(ctx context.Context, in invoicesvc.CreateInput) (*invoicesvc.Result, error)
	Get(ctx context.Context, id string) (*invoice.Invoice, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*invoice.Invoice, error)
	Cancel(ctx context.Context, id string) (*invoice.Invoice, error)
}

func CreateInvoice(svc InvoiceService, errs Errors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in invoicesvc.CreateInput
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

func GetInvoice(svc InvoiceService, errs Errors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoice": inv})
	}
}

// ListInvoices handles GET /api/invoices?userId=
func ListInvoices(svc InvoiceService, errs Errors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseListRequest(r)
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		req.Validate()
		invs, err := svc.List(r.Context(), req.UserID, req.Limit, req.Offset)
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		if invs == nil {
			invs = []*invoice.Invoice{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoices": invs, "limit": req.Limit, "offset": req.Offset})
	}
}

func CancelInvoice(svc InvoiceService, errs Errors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, err := svc.Cancel(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoice": inv})
	}
}
