package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"pft/internal/core"
	"pft/internal/log"
	"pft/internal/storage"
)

// maxBodyBytes bounds request bodies; payloads here are a handful of fields.
const maxBodyBytes = 64 << 10

// apiError carries the status and message a handler wants to answer with.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

var errInvalidJSON = &apiError{status: http.StatusBadRequest, msg: "invalid JSON body"}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle maps handler errors to JSON responses: validation failures are 400,
// missing rows 404, anything else a logged 500.
func (s *Server) handle(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		var ae *apiError
		switch {
		case errors.As(err, &ae):
			writeError(w, ae.status, ae.msg)
		case errors.Is(err, core.ErrValidation):
			writeError(w, http.StatusBadRequest, validationMessage(err))
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "not found")
		default:
			ctx := r.Context()
			fields := log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "")
			log.NewStructuredLogger(log.FromContext(ctx)).
				LogError(ctx, "Request failed", err, operationFor(r.Method), fields)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	}
}

// validationMessage drops the "validation failed: " prefix shared by every
// validation error.
func validationMessage(err error) string {
	msg := err.Error()
	prefix := core.ErrValidation.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody reads one JSON value into dst. An empty body is ErrBodyRequired.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errInvalidJSON
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return core.ErrBodyRequired
	}
	if err := json.Unmarshal(data, dst); err != nil {
		if errors.Is(err, core.ErrValidation) {
			return err
		}
		return errInvalidJSON
	}
	return nil
}

// pathID parses {id}. A non-numeric id matches no row, so it is a 404.
func pathID(r *http.Request, notFound string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, &apiError{status: http.StatusNotFound, msg: notFound}
	}
	return id, nil
}

// queryInt returns 0 for a missing or non-integer parameter.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

// notFoundAs renames storage.ErrNotFound for the resource at hand.
func notFoundAs(err error, msg string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &apiError{status: http.StatusNotFound, msg: msg}
	}
	return err
}

const (
	msgTransactionNotFound = "Transaction not found"
	msgBudgetNotFound      = "Budget not found"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Personal Finance Tracker API"})
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

// handleReady also checks the database, unlike /api/health.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.finance.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return nil
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	return nil
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) error {
	p, err := s.finance.Profile(r.Context())
	if err != nil {
		return notFoundAs(err, "User not found")
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) error {
	list, err := s.finance.Categories(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(list))
	return nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) error {
	list, err := s.finance.Transactions(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(list))
	return nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) error {
	var in core.TransactionInput
	if err := decodeBody(w, r, &in); err != nil {
		return err
	}
	t, err := s.finance.CreateTransaction(r.Context(), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, t)
	return nil
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, msgTransactionNotFound)
	if err != nil {
		return err
	}
	var in core.TransactionInput
	if err := decodeBody(w, r, &in); err != nil {
		return err
	}
	t, err := s.finance.UpdateTransaction(r.Context(), id, in)
	if err != nil {
		return notFoundAs(err, msgTransactionNotFound)
	}
	writeJSON(w, http.StatusOK, t)
	return nil
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, msgTransactionNotFound)
	if err != nil {
		return err
	}
	if err := s.finance.DeleteTransaction(r.Context(), id); err != nil {
		return notFoundAs(err, msgTransactionNotFound)
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": id})
	return nil
}

// handleListBudgets filters by month and year; a missing, zero or
// non-integer value does not filter.
func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) error {
	list, err := s.finance.Budgets(r.Context(), queryInt(r, "month"), queryInt(r, "year"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(list))
	return nil
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) error {
	var in core.BudgetInput
	if err := decodeBody(w, r, &in); err != nil {
		return err
	}
	b, err := s.finance.CreateBudget(r.Context(), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, b)
	return nil
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, msgBudgetNotFound)
	if err != nil {
		return err
	}
	var in core.BudgetInput
	if err := decodeBody(w, r, &in); err != nil {
		return err
	}
	b, err := s.finance.UpdateBudget(r.Context(), id, in)
	if err != nil {
		return notFoundAs(err, msgBudgetNotFound)
	}
	writeJSON(w, http.StatusOK, b)
	return nil
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, msgBudgetNotFound)
	if err != nil {
		return err
	}
	if err := s.finance.DeleteBudget(r.Context(), id); err != nil {
		return notFoundAs(err, msgBudgetNotFound)
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": id})
	return nil
}

// handleMonthlySummary defaults a missing or non-integer month or year to
// the current one.
func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) error {
	sum, err := s.finance.MonthlySummary(r.Context(), queryInt(r, "month"), queryInt(r, "year"))
	if err != nil {
		return err
	}
	if sum.ByCategory == nil {
		sum.ByCategory = []core.CategoryTotal{}
	}
	if sum.Budgets == nil {
		sum.Budgets = []core.Budget{}
	}
	writeJSON(w, http.StatusOK, sum)
	return nil
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

func operationFor(method string) string {
	switch method {
	case http.MethodPost:
		return log.OpCreate
	case http.MethodPut:
		return log.OpUpdate
	case http.MethodDelete:
		return log.OpDelete
	default:
		return log.OpRead
	}
}
