// Package services holds the finance operations behind the REST API.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"pft/internal/amqp"
	"pft/internal/core"
	"pft/internal/log"
	"pft/internal/storage"
)

// EventPublisher sends finance events. *amqp.Client implements it.
type EventPublisher interface {
	Publish(ctx context.Context, ev *amqp.FinanceEvent) error
}

// FinanceService orchestrates transactions and budgets for one user across
// SQLite and AMQP. Storage is the source of truth; events are best effort.
type FinanceService struct {
	storage   *storage.SQLiteRepository
	publisher EventPublisher
	userID    int64
	now       func() time.Time
}

// NewFinanceService wires the service for userID. publisher may be nil.
func NewFinanceService(repo *storage.SQLiteRepository, publisher EventPublisher, userID int64) *FinanceService {
	return &FinanceService{
		storage:   repo,
		publisher: publisher,
		userID:    userID,
		now:       time.Now,
	}
}

// Ping checks the database.
func (s *FinanceService) Ping(ctx context.Context) error {
	return s.storage.Ping(ctx)
}

func (s *FinanceService) Profile(ctx context.Context) (core.Profile, error) {
	return s.storage.GetUser(ctx, s.userID)
}

func (s *FinanceService) Categories(ctx context.Context) ([]core.Category, error) {
	return s.storage.ListCategories(ctx, s.userID)
}

func (s *FinanceService) Transactions(ctx context.Context) ([]core.Transaction, error) {
	return s.storage.ListTransactions(ctx, s.userID)
}

func (s *FinanceService) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	fields, err := s.transactionFields(ctx, in)
	if err != nil {
		return core.Transaction{}, err
	}

	t, err := s.storage.CreateTransaction(ctx, s.userID, fields)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	logTransaction(ctx, log.OpCreate, t)
	s.evaluateMonth(ctx, fields.Date.Year(), int(fields.Date.Month()))
	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventTransactionCreated, t))
	return t, nil
}

// UpdateTransaction replaces every field of transaction id. Budgets of both
// the old and the new month are re-evaluated.
func (s *FinanceService) UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error) {
	before, err := s.storage.GetTransaction(ctx, s.userID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	fields, err := s.transactionFields(ctx, in)
	if err != nil {
		return core.Transaction{}, err
	}

	t, err := s.storage.UpdateTransaction(ctx, s.userID, id, fields)
	if err != nil {
		return core.Transaction{}, err
	}

	if old, err := time.Parse(core.DateLayout, before.TransactionDate); err == nil &&
		(old.Year() != fields.Date.Year() || old.Month() != fields.Date.Month()) {
		s.evaluateMonth(ctx, old.Year(), int(old.Month()))
	}
	logTransaction(ctx, log.OpUpdate, t)
	s.evaluateMonth(ctx, fields.Date.Year(), int(fields.Date.Month()))
	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventTransactionUpdated, t))
	return t, nil
}

func (s *FinanceService) DeleteTransaction(ctx context.Context, id int64) error {
	t, err := s.storage.GetTransaction(ctx, s.userID, id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteTransaction(ctx, s.userID, id); err != nil {
		return err
	}

	logTransaction(ctx, log.OpDelete, t)
	if d, err := time.Parse(core.DateLayout, t.TransactionDate); err == nil {
		s.evaluateMonth(ctx, d.Year(), int(d.Month()))
	}
	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventTransactionDeleted, t))
	return nil
}

func logTransaction(ctx context.Context, op string, t core.Transaction) {
	fields := log.NewFields().
		WithOperation(op).
		WithTransaction(t.ID, string(t.Type), core.FormatAmount(t.Amount))
	slog.InfoContext(ctx, "Transaction stored", fields.ToSlice()...)
}

// Budgets lists budgets with their status. Zero month or year matches all.
func (s *FinanceService) Budgets(ctx context.Context, month, year int) ([]core.Budget, error) {
	list, err := s.storage.ListBudgets(ctx, s.userID, storage.BudgetFilter{Month: month, Year: year})
	if err != nil {
		return nil, err
	}
	return s.withStatus(ctx, list)
}

func (s *FinanceService) CreateBudget(ctx context.Context, in core.BudgetInput) (core.Budget, error) {
	fields, err := s.budgetFields(ctx, in)
	if err != nil {
		return core.Budget{}, err
	}

	b, err := s.storage.CreateBudget(ctx, s.userID, fields)
	if err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	s.evaluateMonth(ctx, b.Year, b.Month)
	return s.budgetWithStatus(ctx, b.ID)
}

func (s *FinanceService) UpdateBudget(ctx context.Context, id int64, in core.BudgetInput) (core.Budget, error) {
	if _, err := s.storage.GetBudget(ctx, s.userID, id); err != nil {
		return core.Budget{}, err
	}
	fields, err := s.budgetFields(ctx, in)
	if err != nil {
		return core.Budget{}, err
	}

	b, err := s.storage.UpdateBudget(ctx, s.userID, id, fields)
	if err != nil {
		return core.Budget{}, err
	}
	s.evaluateMonth(ctx, b.Year, b.Month)
	return s.budgetWithStatus(ctx, b.ID)
}

func (s *FinanceService) DeleteBudget(ctx context.Context, id int64) error {
	b, err := s.storage.GetBudget(ctx, s.userID, id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteBudget(ctx, s.userID, id); err != nil {
		return err
	}
	s.evaluateMonth(ctx, b.Year, b.Month)
	return nil
}

// MonthlySummary aggregates one month. Zero month or year means the current one.
func (s *FinanceService) MonthlySummary(ctx context.Context, month, year int) (core.MonthlySummary, error) {
	today := s.now()
	if month == 0 {
		month = int(today.Month())
	}
	if year == 0 {
		year = today.Year()
	}
	if month < 1 || month > 12 {
		return core.MonthlySummary{}, core.ErrInvalidMonth
	}

	start, end := core.MonthBounds(year, month)
	income, err := s.storage.SumTransactions(ctx, s.userID, core.Income, start, end, nil)
	if err != nil {
		return core.MonthlySummary{}, err
	}
	expense, err := s.storage.SumTransactions(ctx, s.userID, core.Expense, start, end, nil)
	if err != nil {
		return core.MonthlySummary{}, err
	}
	byCategory, err := s.storage.CategoryTotals(ctx, s.userID, start, end)
	if err != nil {
		return core.MonthlySummary{}, err
	}
	budgets, err := s.storage.BudgetsForMonth(ctx, s.userID, month, year)
	if err != nil {
		return core.MonthlySummary{}, err
	}
	budgets, err = s.withStatus(ctx, budgets)
	if err != nil {
		return core.MonthlySummary{}, err
	}

	return core.MonthlySummary{
		Month:        month,
		Year:         year,
		TotalIncome:  income,
		TotalExpense: expense,
		Net:          income.Sub(expense),
		ByCategory:   byCategory,
		Budgets:      budgets,
	}, nil
}

func (s *FinanceService) transactionFields(ctx context.Context, in core.TransactionInput) (core.TransactionFields, error) {
	fields, err := in.Normalize(s.now())
	if err != nil {
		return core.TransactionFields{}, err
	}
	if err := s.checkCategory(ctx, fields.CategoryID); err != nil {
		return core.TransactionFields{}, err
	}
	return fields, nil
}

func (s *FinanceService) budgetFields(ctx context.Context, in core.BudgetInput) (core.BudgetFields, error) {
	fields, err := in.Normalize()
	if err != nil {
		return core.BudgetFields{}, err
	}
	if err := s.checkCategory(ctx, fields.CategoryID); err != nil {
		return core.BudgetFields{}, err
	}
	return fields, nil
}

func (s *FinanceService) checkCategory(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	ok, err := s.storage.CategoryExists(ctx, s.userID, *id)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrUnknownCategory
	}
	return nil
}

// spent sums the expenses a budget is measured against.
func (s *FinanceService) spent(ctx context.Context, b core.Budget) (decimal.Decimal, error) {
	start, end := core.MonthBounds(b.Year, b.Month)
	return s.storage.SumTransactions(ctx, s.userID, core.Expense, start, end, b.CategoryID)
}

func (s *FinanceService) withStatus(ctx context.Context, list []core.Budget) ([]core.Budget, error) {
	for i := range list {
		spent, err := s.spent(ctx, list[i])
		if err != nil {
			return nil, fmt.Errorf("budget %d status: %w", list[i].ID, err)
		}
		list[i].Status(spent)
	}
	return list, nil
}

func (s *FinanceService) budgetWithStatus(ctx context.Context, id int64) (core.Budget, error) {
	b, err := s.storage.GetBudget(ctx, s.userID, id)
	if err != nil {
		return core.Budget{}, err
	}
	spent, err := s.spent(ctx, b)
	if err != nil {
		return core.Budget{}, err
	}
	b.Status(spent)
	return b, nil
}

// evaluateMonth raises an alert for every budget of the month that went over
// its limit and clears the flag of those back under it. Failures are logged;
// the write that triggered the evaluation already succeeded.
func (s *FinanceService) evaluateMonth(ctx context.Context, year, month int) {
	if err := s.EvaluateBudgets(ctx, year, month); err != nil {
		fields := log.NewFields().WithPeriod(year, month).WithError(err)
		slog.ErrorContext(ctx, "Budget evaluation failed", fields.ToSlice()...)
	}
}

// EvaluateBudgets runs the alert rules for one month.
func (s *FinanceService) EvaluateBudgets(ctx context.Context, year, month int) error {
	budgets, err := s.storage.BudgetsForMonth(ctx, s.userID, month, year)
	if err != nil {
		return err
	}

	var errs []error
	for _, b := range budgets {
		spent, err := s.spent(ctx, b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		b.Status(spent)

		switch over := b.OverLimit(); {
		case over && !b.AlertSent:
			slog.WarnContext(ctx, "Budget over limit",
				log.FieldBudgetID, b.ID,
				log.FieldYear, b.Year,
				log.FieldMonth, b.Month,
				"spent", core.FormatAmount(spent),
				"limit", core.FormatAmount(b.LimitAmount))
			if err := s.storage.SetBudgetAlertSent(ctx, b.ID, true); err != nil {
				errs = append(errs, err)
				continue
			}
			b.AlertSent = true
			s.publish(ctx, amqp.NewBudgetAlertEvent(b))
		case !over && b.AlertSent:
			if err := s.storage.SetBudgetAlertSent(ctx, b.ID, false); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (s *FinanceService) publish(ctx context.Context, ev *amqp.FinanceEvent) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping event", log.FieldEvent, ev.Type)
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		// the change is stored; the ledger misses this event
		fields := log.NewFields().WithOperation(log.OpPublish).WithError(err)
		fields[log.FieldEvent] = ev.Type
		fields[log.FieldMessageID] = ev.MessageID
		slog.ErrorContext(ctx, "Failed to publish finance event", fields.ToSlice()...)
	}
}

// Close closes storage and the publisher when it can be closed.
func (s *FinanceService) Close() error {
	var errs []error
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
