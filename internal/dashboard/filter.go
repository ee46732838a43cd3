package dashboard

import (
	"context"
	"net/url"
	"strings"
)

// FilterQuery keeps only the non-empty filter values.
func FilterQuery(month, year string) url.Values {
	q := url.Values{}
	if m := strings.TrimSpace(month); m != "" {
		q.Set("month", m)
	}
	if y := strings.TrimSpace(year); y != "" {
		q.Set("year", y)
	}
	return q
}

// ApplyFilters loads the summary for month/year and redraws totals, chart and
// budgets. Transactions are left as they are.
func (s *Session) ApplyFilters(ctx context.Context, month, year string) error {
	summary, err := s.backend.MonthlySummary(ctx, FilterQuery(month, year))
	if err != nil {
		return err
	}
	s.RenderTotals(summary)
	if err := s.RenderChart(summary.ByCategory); err != nil {
		return err
	}
	if err := s.RenderBudgets(summary.Budgets); err != nil {
		return err
	}
	return s.syncFilters(strings.TrimSpace(month), strings.TrimSpace(year))
}
