package handlers

import (
	"context"
	"net/http"
	"strconv"

	"afripay/internal/services/data"
	"afripay/internal/services/svcerr"
	"afripay/internal/store/repositories"

	"github.com/go-chi/chi/v5"
)

// DataService is the read-only surface behind listings and metrics.
type DataService interface {
	ListRequests(ctx context.Context, req data.ListRequest) (*data.RequestListResponse, error)
	ListTransactions(ctx context.Context, req data.ListRequest) (*data.TransactionListResponse, error)
	ListEvents(ctx context.Context, reference string) (*data.EventListResponse, error)
	Metrics(ctx context.Context, userID string) (*repositories.Metrics, error)
}

// ListRequests handles GET /api/payment/requests
func ListRequests(svc DataService, errs Errors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseListRequest(r)
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		res, err := svc.ListRequests(r.Context(), req)
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// ListTransactions handles GET /api/payment/transactions
func ListTransactions(svc DataService, errs Errors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseListRequest(r)
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		res, err := svc.ListTransactions(r.Context(), req)
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func ListEvents(svc DataService, errs Errors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.ListEvents(r.Context(), chi.URLParam(r, "reference"))
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func Metrics(svc DataService, errs Errors) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Metrics(r.Context(), r.URL.Query().Get("userId"))
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// parseListRequest parses HTTP query parameters into ListRequest
func parseListRequest(r *http.Request) (data.ListRequest, error) {
	q := r.URL.Query()
	req := data.ListRequest{UserID: q.Get("userId"), Status: q.Get("status")}

	var err error
	if req.Limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return req, err
	}
	if req.Offset, err = intParam(q.Get("offset"), "offset"); err != nil {
		return req, err
	}
	return req, nil
}

func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, svcerr.Invalid(name, "must be a non-negative integer")
	}
	return n, nil
}
