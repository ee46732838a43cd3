package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OptionalID is a nullable identifier that accepts a JSON number, a numeric
// string, an empty string or null. Browsers submit select values as strings,
// so "7" and 7 both resolve to category 7 and "" means no category.
type OptionalID struct {
	ID    int64
	Valid bool
}

func (o *OptionalID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*o = OptionalID{}
		return nil
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" {
		*o = OptionalID{}
		return nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return ErrInvalidCategory
	}
	*o = OptionalID{ID: id, Valid: true}
	return nil
}

func (o OptionalID) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(o.ID, 10)), nil
}

// Ptr returns nil when the id is absent.
func (o OptionalID) Ptr() *int64 {
	if !o.Valid {
		return nil
	}
	id := o.ID
	return &id
}

// FlexInt is a nullable integer that also accepts numeric strings.
// Fractional numbers are truncated; non-numeric strings are rejected.
type FlexInt struct {
	Value int
	Valid bool
}

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = FlexInt{}
		return nil
	}
	quoted := strings.HasPrefix(s, `"`)
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if n, err := strconv.Atoi(s); err == nil {
		*f = FlexInt{Value: n, Valid: true}
		return nil
	}
	if !quoted {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			*f = FlexInt{Value: int(v), Valid: true}
			return nil
		}
	}
	return ErrNotInteger
}

// TransactionInput is the create/update payload of a transaction.
type TransactionInput struct {
	Amount          decimal.NullDecimal `json:"amount"`
	Type            TransactionType     `json:"type"`
	CategoryID      OptionalID          `json:"category_id"`
	Description     *string             `json:"description"`
	TransactionDate string              `json:"transaction_date"`
}

// TransactionFields is a validated TransactionInput.
type TransactionFields struct {
	Amount      decimal.Decimal
	Type        TransactionType
	CategoryID  *int64
	Description string
	Date        time.Time
}

// Normalize validates the input; a blank date defaults to today.
func (in TransactionInput) Normalize(today time.Time) (TransactionFields, error) {
	if !in.Amount.Valid || !in.Type.IsValid() {
		return TransactionFields{}, ErrInvalidAmount
	}

	date := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if raw := strings.TrimSpace(in.TransactionDate); raw != "" {
		parsed, err := time.Parse(DateLayout, raw)
		if err != nil {
			return TransactionFields{}, ErrInvalidDate
		}
		date = parsed
	}

	var desc string
	if in.Description != nil {
		desc = *in.Description
	}

	return TransactionFields{
		Amount:      in.Amount.Decimal,
		Type:        in.Type,
		CategoryID:  in.CategoryID.Ptr(),
		Description: desc,
		Date:        date,
	}, nil
}

// BudgetInput is the create/update payload of a budget.
type BudgetInput struct {
	Month       FlexInt             `json:"month"`
	Year        FlexInt             `json:"year"`
	LimitAmount decimal.NullDecimal `json:"limit_amount"`
	CategoryID  OptionalID          `json:"category_id"`
}

// BudgetFields is a validated BudgetInput.
type BudgetFields struct {
	Month       int
	Year        int
	LimitAmount decimal.Decimal
	CategoryID  *int64
}

func (in BudgetInput) Normalize() (BudgetFields, error) {
	switch {
	case !in.Month.Valid:
		return BudgetFields{}, ErrMissingField("month")
	case !in.Year.Valid:
		return BudgetFields{}, ErrMissingField("year")
	case !in.LimitAmount.Valid:
		return BudgetFields{}, ErrMissingField("limit_amount")
	}
	if in.Month.Value < 1 || in.Month.Value > 12 {
		return BudgetFields{}, ErrInvalidMonth
	}
	return BudgetFields{
		Month:       in.Month.Value,
		Year:        in.Year.Value,
		LimitAmount: in.LimitAmount.Decimal,
		CategoryID:  in.CategoryID.Ptr(),
	}, nil
}
