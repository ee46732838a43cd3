package apiclient

import (
	"context"
	"net/url"
	"strconv"

	"pft/internal/core"
)

const (
	pathCategories   = "/api/categories"
	pathSummary      = "/api/summary/monthly"
	pathTransactions = "/api/transactions"
	pathBudgets      = "/api/budgets"
	pathProfile      = "/api/profile"
	pathHealth       = "/api/health"
)

// TransactionPayload is what the transaction form posts. A nil Amount or
// CategoryID is sent as null; an empty TransactionDate is left out so the API
// picks today.
type TransactionPayload struct {
	Description     string   `json:"description"`
	Amount          *float64 `json:"amount"`
	Type            string   `json:"type"`
	CategoryID      *string  `json:"category_id"`
	TransactionDate string   `json:"transaction_date,omitempty"`
}

// BudgetPayload is what the budget form posts. A nil CategoryID creates an
// overall budget.
type BudgetPayload struct {
	Month       *int     `json:"month"`
	Year        *int     `json:"year"`
	LimitAmount *float64 `json:"limit_amount"`
	CategoryID  *string  `json:"category_id"`
}

func (c *Client) Categories(ctx context.Context) ([]core.Category, error) {
	var out []core.Category
	err := c.Get(ctx, pathCategories, &out)
	return out, err
}

// SummaryPath builds the summary URL; an empty query selects the current month.
func SummaryPath(query url.Values) string {
	if len(query) == 0 {
		return pathSummary
	}
	return pathSummary + "?" + query.Encode()
}

func (c *Client) MonthlySummary(ctx context.Context, query url.Values) (core.MonthlySummary, error) {
	var out core.MonthlySummary
	err := c.Get(ctx, SummaryPath(query), &out)
	return out, err
}

func (c *Client) Transactions(ctx context.Context) ([]core.Transaction, error) {
	var out []core.Transaction
	err := c.Get(ctx, pathTransactions, &out)
	return out, err
}

func (c *Client) CreateTransaction(ctx context.Context, p TransactionPayload) (core.Transaction, error) {
	var out core.Transaction
	err := c.Post(ctx, pathTransactions, p, &out)
	return out, err
}

func (c *Client) UpdateTransaction(ctx context.Context, id int64, p TransactionPayload) (core.Transaction, error) {
	var out core.Transaction
	err := c.Put(ctx, transactionPath(id), p, &out)
	return out, err
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	return c.Delete(ctx, transactionPath(id), nil)
}

func (c *Client) Budgets(ctx context.Context) ([]core.Budget, error) {
	var out []core.Budget
	err := c.Get(ctx, pathBudgets, &out)
	return out, err
}

func (c *Client) CreateBudget(ctx context.Context, p BudgetPayload) (core.Budget, error) {
	var out core.Budget
	err := c.Post(ctx, pathBudgets, p, &out)
	return out, err
}

func (c *Client) UpdateBudget(ctx context.Context, id int64, p BudgetPayload) (core.Budget, error) {
	var out core.Budget
	err := c.Put(ctx, budgetPath(id), p, &out)
	return out, err
}

func (c *Client) DeleteBudget(ctx context.Context, id int64) error {
	return c.Delete(ctx, budgetPath(id), nil)
}

func (c *Client) Profile(ctx context.Context) (core.Profile, error) {
	var out core.Profile
	err := c.Get(ctx, pathProfile, &out)
	return out, err
}

func transactionPath(id int64) string {
	return pathTransactions + "/" + strconv.FormatInt(id, 10)
}

func budgetPath(id int64) string {
	return pathBudgets + "/" + strconv.FormatInt(id, 10)
}

// Health fails unless the API answers its health check with a 2xx.
func (c *Client) Health(ctx context.Context) error {
	return c.Get(ctx, pathHealth, nil)
}
