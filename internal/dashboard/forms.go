package dashboard

import (
	"context"
	"math"
	"net/url"
	"strconv"
	"strings"

	"pft/internal/apiclient"
)

// TransactionPayloadFromForm shapes the transaction form into the API payload.
// An unparseable amount becomes null, a blank date is left out and a blank
// category means uncategorised.
func TransactionPayloadFromForm(form url.Values) apiclient.TransactionPayload {
	return apiclient.TransactionPayload{
		Description:     form.Get("description"),
		Amount:          parseFloat(form.Get("amount")),
		Type:            form.Get("type"),
		CategoryID:      optionalString(form.Get("category_id")),
		TransactionDate: strings.TrimSpace(form.Get("transaction_date")),
	}
}

// BudgetPayloadFromForm shapes the budget form into the API payload. A blank
// category makes an overall budget.
func BudgetPayloadFromForm(form url.Values) apiclient.BudgetPayload {
	return apiclient.BudgetPayload{
		Month:       parseInt(form.Get("month")),
		Year:        parseInt(form.Get("year")),
		LimitAmount: parseFloat(form.Get("limit_amount")),
		CategoryID:  optionalString(form.Get("category_id")),
	}
}

// SubmitTransaction creates a transaction from the form, clears the form and
// refreshes the dashboard. API failures are returned as is.
func (s *Session) SubmitTransaction(ctx context.Context, form url.Values) error {
	if _, err := s.backend.CreateTransaction(ctx, TransactionPayloadFromForm(form)); err != nil {
		return err
	}
	if err := s.resetTransactionForm(); err != nil {
		return err
	}
	s.Refresh(ctx)
	return nil
}

// SubmitBudget creates a budget from the form, clears the form and refreshes
// the dashboard. API failures are returned as is.
func (s *Session) SubmitBudget(ctx context.Context, form url.Values) error {
	if _, err := s.backend.CreateBudget(ctx, BudgetPayloadFromForm(form)); err != nil {
		return err
	}
	if err := s.resetBudgetForm(); err != nil {
		return err
	}
	s.Refresh(ctx)
	return nil
}

// DeleteTransaction is the transaction row action.
func (s *Session) DeleteTransaction(ctx context.Context, id int64) error {
	if err := s.backend.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.Refresh(ctx)
	return nil
}

// DeleteBudget is the budget row action.
func (s *Session) DeleteBudget(ctx context.Context, id int64) error {
	if err := s.backend.DeleteBudget(ctx, id); err != nil {
		return err
	}
	s.Refresh(ctx)
	return nil
}

// resetTransactionForm blanks the fields and puts the category select back on
// its first option.
func (s *Session) resetTransactionForm() error {
	html, err := s.views.partial("transaction_fields", nil)
	if err != nil {
		return err
	}
	s.doc.Replace(IDTransactionForm, html)
	return s.renderCategorySelects()
}

func (s *Session) resetBudgetForm() error {
	html, err := s.views.partial("budget_fields", nil)
	if err != nil {
		return err
	}
	s.doc.Replace(IDBudgetForm, html)
	return s.renderCategorySelects()
}

func parseFloat(raw string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// parseInt accepts "3" and truncates "3.7"; anything else is nil.
func parseInt(raw string) *int {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return &n
	}
	f := parseFloat(raw)
	if f == nil || math.Abs(*f) > math.MaxInt32 {
		return nil
	}
	n := int(*f)
	return &n
}

func optionalString(raw string) *string {
	if raw == "" {
		return nil
	}
	return &raw
}
