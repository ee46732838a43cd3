package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"pft/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist for the given user.
var ErrNotFound = errors.New("not found")

const dsnPragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies the migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY between our own queries.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.Profile, error) {
	var p core.Profile
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, profile_photo_url FROM users WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Email, &p.ProfilePhotoURL)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return p, nil
}

// ListCategories orders income before expense, then by name.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type FROM categories WHERE user_id = ? ORDER BY type DESC, name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []core.Category{}
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CategoryExists(ctx context.Context, userID, id int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE id = ? AND user_id = ?`, id, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check category %d: %w", id, err)
	}
	return n > 0, nil
}

const transactionColumns = `t.id, t.user_id, t.category_id, t.amount_cents, t.type, t.description,
	t.transaction_date, t.created_at, c.name`

const transactionFrom = ` FROM transactions t LEFT JOIN categories c ON c.id = t.category_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t            core.Transaction
		categoryID   sql.NullInt64
		cents        int64
		categoryName sql.NullString
	)
	if err := s.Scan(&t.ID, &t.UserID, &categoryID, &cents, &t.Type, &t.Description,
		&t.TransactionDate, &t.CreatedAt, &categoryName); err != nil {
		return core.Transaction{}, err
	}
	t.Amount = core.FromCents(cents)
	if categoryID.Valid {
		id := categoryID.Int64
		t.CategoryID = &id
	}
	if categoryName.Valid {
		name := categoryName.String
		t.CategoryName = &name
	}
	return t, nil
}

// ListTransactions returns the newest transactions first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+transactionFrom+
			` WHERE t.user_id = ? ORDER BY t.transaction_date DESC, t.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+transactionFrom+` WHERE t.id = ? AND t.user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, userID int64, f core.TransactionFields) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, category_id, amount_cents, type, description, transaction_date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, nullableID(f.CategoryID), core.ToCents(f.Amount), string(f.Type), f.Description, f.Date.Format(core.DateLayout))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction id: %w", err)
	}
	return r.GetTransaction(ctx, userID, id)
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, userID, id int64, f core.TransactionFields) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET category_id = ?, amount_cents = ?, type = ?, description = ?, transaction_date = ?
		 WHERE id = ? AND user_id = ?`,
		nullableID(f.CategoryID), core.ToCents(f.Amount), string(f.Type), f.Description, f.Date.Format(core.DateLayout), id, userID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, err)
	}
	if err := expectOne(res, "transaction", id); err != nil {
		return core.Transaction{}, err
	}
	return r.GetTransaction(ctx, userID, id)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return expectOne(res, "transaction", id)
}

// SumTransactions totals transactions of one type dated in [start, end).
// A non-nil categoryID restricts the sum to that category.
func (r *SQLiteRepository) SumTransactions(ctx context.Context, userID int64, t core.TransactionType, start, end time.Time, categoryID *int64) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		WHERE user_id = ? AND type = ? AND transaction_date >= ? AND transaction_date < ?`
	args := []any{userID, string(t), start.Format(core.DateLayout), end.Format(core.DateLayout)}
	if categoryID != nil {
		query += ` AND category_id = ?`
		args = append(args, *categoryID)
	}

	var cents int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&cents); err != nil {
		return decimal.Zero, fmt.Errorf("sum %s transactions: %w", t, err)
	}
	return core.FromCents(cents), nil
}

// CategoryTotals lists every category of the user with the sum of its
// transactions in [start, end); categories without any sum to zero.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, userID int64, start, end time.Time) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.type, COALESCE(SUM(t.amount_cents), 0)
		 FROM categories c
		 LEFT JOIN transactions t
		   ON t.category_id = c.id AND t.user_id = ? AND t.transaction_date >= ? AND t.transaction_date < ?
		 WHERE c.user_id = ?
		 GROUP BY c.id
		 ORDER BY c.name ASC, c.id ASC`,
		userID, start.Format(core.DateLayout), end.Format(core.DateLayout), userID)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	out := []core.CategoryTotal{}
	for rows.Next() {
		var (
			ct    core.CategoryTotal
			cents int64
		)
		if err := rows.Scan(&ct.CategoryID, &ct.CategoryName, &ct.Type, &cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		ct.Total = core.FromCents(cents)
		out = append(out, ct)
	}
	return out, rows.Err()
}

const budgetColumns = `b.id, b.user_id, b.category_id, b.month, b.year, b.limit_cents, b.alert_sent, c.name`

const budgetFrom = ` FROM budgets b LEFT JOIN categories c ON c.id = b.category_id`

func scanBudget(s scanner) (core.Budget, error) {
	var (
		b            core.Budget
		categoryID   sql.NullInt64
		cents        int64
		categoryName sql.NullString
	)
	if err := s.Scan(&b.ID, &b.UserID, &categoryID, &b.Month, &b.Year, &cents, &b.AlertSent, &categoryName); err != nil {
		return core.Budget{}, err
	}
	b.LimitAmount = core.FromCents(cents)
	if categoryID.Valid {
		id := categoryID.Int64
		b.CategoryID = &id
	}
	if categoryName.Valid {
		name := categoryName.String
		b.CategoryName = &name
	}
	return b, nil
}

func (r *SQLiteRepository) queryBudgets(ctx context.Context, query string, args ...any) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+budgetColumns+budgetFrom+query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	out := []core.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BudgetFilter narrows ListBudgets; zero fields match everything.
type BudgetFilter struct {
	Month int
	Year  int
}

// ListBudgets returns the latest periods first.
func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID int64, f BudgetFilter) ([]core.Budget, error) {
	query := ` WHERE b.user_id = ?`
	args := []any{userID}
	if f.Month != 0 {
		query += ` AND b.month = ?`
		args = append(args, f.Month)
	}
	if f.Year != 0 {
		query += ` AND b.year = ?`
		args = append(args, f.Year)
	}
	query += ` ORDER BY b.year DESC, b.month DESC, b.id ASC`
	return r.queryBudgets(ctx, query, args...)
}

// BudgetsForMonth returns the budgets of one period, overall budgets first.
func (r *SQLiteRepository) BudgetsForMonth(ctx context.Context, userID int64, month, year int) ([]core.Budget, error) {
	return r.queryBudgets(ctx,
		` WHERE b.user_id = ? AND b.month = ? AND b.year = ? ORDER BY b.category_id IS NULL DESC, b.id ASC`,
		userID, month, year)
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID, id int64) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+budgetFrom+` WHERE b.id = ? AND b.user_id = ?`, id, userID)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %d: %w", id, err)
	}
	return b, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, userID int64, f core.BudgetFields) (core.Budget, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category_id, month, year, limit_cents) VALUES (?, ?, ?, ?, ?)`,
		userID, nullableID(f.CategoryID), f.Month, f.Year, core.ToCents(f.LimitAmount))
	if err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Budget{}, fmt.Errorf("insert budget id: %w", err)
	}
	return r.GetBudget(ctx, userID, id)
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, userID, id int64, f core.BudgetFields) (core.Budget, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET category_id = ?, month = ?, year = ?, limit_cents = ? WHERE id = ? AND user_id = ?`,
		nullableID(f.CategoryID), f.Month, f.Year, core.ToCents(f.LimitAmount), id, userID)
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget %d: %w", id, err)
	}
	if err := expectOne(res, "budget", id); err != nil {
		return core.Budget{}, err
	}
	return r.GetBudget(ctx, userID, id)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget %d: %w", id, err)
	}
	return expectOne(res, "budget", id)
}

func (r *SQLiteRepository) SetBudgetAlertSent(ctx context.Context, id int64, sent bool) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE budgets SET alert_sent = ? WHERE id = ?`, sent, id); err != nil {
		return fmt.Errorf("set alert flag on budget %d: %w", id, err)
	}
	return nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func expectOne(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d rows affected: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}

type seedCategory struct {
	name string
	kind core.TransactionType
}

var defaultCategories = []seedCategory{
	{"Food", core.Expense},
	{"Transport", core.Expense},
	{"Housing", core.Expense},
	{"Utilities", core.Expense},
	{"Entertainment", core.Expense},
	{"Salary", core.Income},
}

// Seed makes sure the demo user exists and owns the default categories.
// Categories are only inserted when the user has none.
func (r *SQLiteRepository) Seed(ctx context.Context, p core.Profile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, name, email, profile_photo_url) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		p.ID, p.Name, p.Email, p.ProfilePhotoURL); err != nil {
		return fmt.Errorf("seed user %d: %w", p.ID, err)
	}

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE user_id = ?`, p.ID).Scan(&n); err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if n == 0 {
		for _, c := range defaultCategories {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO categories (user_id, name, type) VALUES (?, ?, ?)`, p.ID, c.name, string(c.kind)); err != nil {
				return fmt.Errorf("seed category %s: %w", c.name, err)
			}
		}
	}

	return tx.Commit()
}
