package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// DateLayout is the wire format of transaction dates.
const DateLayout = "2006-01-02"

type (
	TransactionType string

	Category struct {
		ID   int64           `json:"id"`
		Name string          `json:"name"`
		Type TransactionType `json:"type"`
	}

	Transaction struct {
		ID              int64           `json:"id"`
		UserID          int64           `json:"user_id"`
		CategoryID      *int64          `json:"category_id"`
		Amount          decimal.Decimal `json:"amount"`
		Type            TransactionType `json:"type"`
		Description     string          `json:"description"`
		TransactionDate string          `json:"transaction_date"`
		CreatedAt       string          `json:"created_at,omitempty"`
		CategoryName    *string         `json:"category_name"`
	}

	// Budget carries the stored limit plus the spent/remaining status computed
	// for its month when it is served.
	Budget struct {
		ID           int64           `json:"id"`
		UserID       int64           `json:"user_id"`
		CategoryID   *int64          `json:"category_id"`
		Month        int             `json:"month"`
		Year         int             `json:"year"`
		LimitAmount  decimal.Decimal `json:"limit_amount"`
		AlertSent    bool            `json:"alert_sent"`
		CategoryName *string         `json:"category_name"`
		Spent        decimal.Decimal `json:"spent"`
		Remaining    decimal.Decimal `json:"remaining"`
	}

	CategoryTotal struct {
		CategoryID   int64           `json:"category_id"`
		CategoryName string          `json:"category_name"`
		Type         TransactionType `json:"type"`
		Total        decimal.Decimal `json:"total"`
	}

	MonthlySummary struct {
		Month        int             `json:"month"`
		Year         int             `json:"year"`
		TotalIncome  decimal.Decimal `json:"total_income"`
		TotalExpense decimal.Decimal `json:"total_expense"`
		Net          decimal.Decimal `json:"net"`
		ByCategory   []CategoryTotal `json:"by_category"`
		Budgets      []Budget        `json:"budgets"`
	}

	Profile struct {
		ID              int64  `json:"id"`
		Name            string `json:"name"`
		Email           string `json:"email"`
		ProfilePhotoURL string `json:"profile_photo_url"`
	}
)

// ErrValidation is the parent of every payload validation error.
var ErrValidation = errors.New("validation failed")

var (
	ErrBodyRequired    = fmt.Errorf("%w: JSON body required", ErrValidation)
	ErrInvalidAmount   = fmt.Errorf("%w: 'amount' and valid 'type' are required", ErrValidation)
	ErrInvalidDate     = fmt.Errorf("%w: transaction_date must be ISO format YYYY-MM-DD", ErrValidation)
	ErrNotInteger      = fmt.Errorf("%w: 'month' and 'year' must be integers", ErrValidation)
	ErrInvalidMonth    = fmt.Errorf("%w: 'month' must be between 1 and 12", ErrValidation)
	ErrInvalidCategory = fmt.Errorf("%w: 'category_id' must be an integer", ErrValidation)
	ErrUnknownCategory = fmt.Errorf("%w: category not found", ErrValidation)
)

// ErrMissingField reports a required budget field that was absent or null.
func ErrMissingField(field string) error {
	return fmt.Errorf("%w: '%s' is required", ErrValidation, field)
}

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

// Label renders a category the way selects and chart axes show it: "name (type)".
func (c Category) Label() string {
	return CategoryLabel(c.Name, c.Type)
}

func CategoryLabel(name string, t TransactionType) string {
	return name + " (" + string(t) + ")"
}

// MonthBounds returns the half-open interval [start, end) covering year/month.
func MonthBounds(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Status fills Spent and Remaining from the expenses recorded against the budget.
func (b *Budget) Status(spent decimal.Decimal) {
	b.Spent = spent
	b.Remaining = b.LimitAmount.Sub(spent)
}

// OverLimit reports whether spent strictly exceeds the limit.
func (b Budget) OverLimit() bool {
	return b.Spent.GreaterThan(b.LimitAmount)
}
