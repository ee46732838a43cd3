package dashboard

import (
	"context"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"pft/internal/chart"
	"pft/internal/core"
)

const (
	DefaultProfileName  = "Demo User"
	DefaultProfileEmail = "demo@example.com"
	DefaultProfilePhoto = "/static/img/profile.svg"

	OverallLabel = "Overall"

	IncomeColor  = "rgba(34, 197, 94, 0.7)"
	ExpenseColor = "rgba(239, 68, 68, 0.7)"

	chartDatasetLabel = "Total"
	missing           = "-"
)

type option struct {
	Value string
	Label string
}

type rowAction struct {
	DeleteURL string
}

type transactionRow struct {
	Date        string
	Description string
	Category    string
	Type        string
	Amount      string
	Actions     template.HTML
}

type budgetRow struct {
	Period    string
	Category  string
	Limit     string
	Spent     string
	Remaining string
	Over      bool
	Actions   template.HTML
}

func TransactionDeletePath(id int64) string {
	return "/ui/transactions/" + strconv.FormatInt(id, 10) + "/delete"
}

func BudgetDeletePath(id int64) string {
	return "/ui/budgets/" + strconv.FormatInt(id, 10) + "/delete"
}

// PopulateCategorySelects fetches the categories, keeps them on the session
// and rebuilds both category selects from scratch.
func (s *Session) PopulateCategorySelects(ctx context.Context) error {
	categories, err := s.backend.Categories(ctx)
	if err != nil {
		return err
	}
	s.categories = categories
	return s.renderCategorySelects()
}

func (s *Session) renderCategorySelects() error {
	txOptions := make([]option, 0, len(s.categories))
	budgetOptions := make([]option, 0, len(s.categories)+1)
	budgetOptions = append(budgetOptions, option{Value: "", Label: OverallLabel})
	for _, c := range s.categories {
		o := option{Value: strconv.FormatInt(c.ID, 10), Label: c.Label()}
		txOptions = append(txOptions, o)
		budgetOptions = append(budgetOptions, o)
	}

	html, err := s.views.partial("category_options", txOptions)
	if err != nil {
		return err
	}
	s.doc.Replace(IDTransactionCategory, html)

	html, err = s.views.partial("category_options", budgetOptions)
	if err != nil {
		return err
	}
	s.doc.Replace(IDBudgetCategory, html)
	return nil
}

// RenderTotals writes income, expense and net with two decimals.
func (s *Session) RenderTotals(sum core.MonthlySummary) {
	s.doc.Replace(IDTotalIncome, amountHTML(sum.TotalIncome))
	s.doc.Replace(IDTotalExpense, amountHTML(sum.TotalExpense))
	s.doc.Replace(IDNetBalance, amountHTML(sum.Net))
}

func amountHTML(d decimal.Decimal) template.HTML {
	return template.HTML(template.HTMLEscapeString(core.FormatAmount(d)))
}

// RenderTransactions replaces the transaction rows. Each row carries its own
// delete action.
func (s *Session) RenderTransactions(list []core.Transaction) error {
	rows := make([]transactionRow, 0, len(list))
	for _, t := range list {
		actions, err := s.views.partial("row-actions", rowAction{DeleteURL: TransactionDeletePath(t.ID)})
		if err != nil {
			return err
		}
		rows = append(rows, transactionRow{
			Date:        orDefault(t.TransactionDate, missing),
			Description: t.Description,
			Category:    orDefault(deref(t.CategoryName), missing),
			Type:        string(t.Type),
			Amount:      core.FormatAmount(t.Amount),
			Actions:     actions,
		})
	}
	html, err := s.views.partial("transaction_rows", rows)
	if err != nil {
		return err
	}
	s.doc.Replace(IDTransactionsBody, html)
	return nil
}

// RenderBudgets replaces the budget rows. Budgets without a category are
// shown as Overall.
func (s *Session) RenderBudgets(list []core.Budget) error {
	rows := make([]budgetRow, 0, len(list))
	for _, b := range list {
		actions, err := s.views.partial("row-actions", rowAction{DeleteURL: BudgetDeletePath(b.ID)})
		if err != nil {
			return err
		}
		rows = append(rows, budgetRow{
			Period:    fmt.Sprintf("%02d/%d", b.Month, b.Year),
			Category:  orDefault(deref(b.CategoryName), OverallLabel),
			Limit:     core.FormatAmount(b.LimitAmount),
			Spent:     core.FormatAmount(b.Spent),
			Remaining: core.FormatAmount(b.Remaining),
			Over:      b.OverLimit(),
			Actions:   actions,
		})
	}
	html, err := s.views.partial("budget_rows", rows)
	if err != nil {
		return err
	}
	s.doc.Replace(IDBudgetsBody, html)
	return nil
}

// RenderChart draws one bar per category total. The previous chart is
// destroyed first so the canvas never holds two.
func (s *Session) RenderChart(totals []core.CategoryTotal) error {
	cfg := chart.BarConfig{
		DatasetLabel: chartDatasetLabel,
		Labels:       make([]string, 0, len(totals)),
		Values:       make([]float64, 0, len(totals)),
		Colors:       make([]string, 0, len(totals)),
		ShowLegend:   false,
		Responsive:   true,
	}
	for _, t := range totals {
		label := core.CategoryLabel(t.CategoryName, t.Type)
		cfg.Labels = append(cfg.Labels, label)
		cfg.Values = append(cfg.Values, t.Total.InexactFloat64())
		cfg.Colors = append(cfg.Colors, barColor(label))
	}

	if s.chart != nil {
		s.chart.Destroy()
		s.chart = nil
	}
	c, err := s.charts.NewBar(IDCategoryChart, cfg)
	if err != nil {
		s.doc.Replace(IDCategoryChart, "")
		return err
	}
	s.chart = c
	s.doc.Replace(IDCategoryChart, c.HTML())
	return nil
}

func barColor(label string) string {
	if strings.HasSuffix(label, "("+string(core.Income)+")") {
		return IncomeColor
	}
	return ExpenseColor
}

// RenderProfile writes name and email, falling back to the demo identity.
// The photo is only replaced when the profile has one.
func (s *Session) RenderProfile(p core.Profile) error {
	s.profile = &p
	s.doc.Replace(IDProfileName, template.HTML(template.HTMLEscapeString(orDefault(p.Name, DefaultProfileName))))
	s.doc.Replace(IDProfileEmail, template.HTML(template.HTMLEscapeString(orDefault(p.Email, DefaultProfileEmail))))
	if p.ProfilePhotoURL == "" {
		return nil
	}
	html, err := s.views.partial("profile_photo", p.ProfilePhotoURL)
	if err != nil {
		return err
	}
	s.doc.Replace(IDProfilePhoto, html)
	return nil
}

func (s *Session) syncFilters(month, year string) error {
	html, err := s.views.partial("filter_month", month)
	if err != nil {
		return err
	}
	s.doc.Replace(IDFilterMonth, html)
	html, err = s.views.partial("filter_year", year)
	if err != nil {
		return err
	}
	s.doc.Replace(IDFilterYear, html)
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
