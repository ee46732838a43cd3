// Package dashboard renders the finance dashboard for one page session.
//
// A Session owns everything a loaded page owns: the cached categories, the
// live chart, the last profile and the rendered Document. Operations render
// into the Document; the caller ships the changed regions back to the page.
package dashboard

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io"
	"net/url"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"pft/internal/apiclient"
	"pft/internal/chart"
	"pft/internal/core"
	"pft/internal/log"
)

// ErrClosed is returned by operations on a session that was closed.
var ErrClosed = errors.New("dashboard: session closed")

// RefreshFailedMessage is shown when a refresh fails. The cause only goes to the log.
const RefreshFailedMessage = "Could not load dashboard data. Please try again."

// Backend is the part of the REST API the dashboard talks to.
// *apiclient.Client implements it.
type Backend interface {
	Categories(ctx context.Context) ([]core.Category, error)
	MonthlySummary(ctx context.Context, query url.Values) (core.MonthlySummary, error)
	Transactions(ctx context.Context) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, p apiclient.TransactionPayload) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	Budgets(ctx context.Context) ([]core.Budget, error)
	CreateBudget(ctx context.Context, p apiclient.BudgetPayload) (core.Budget, error)
	DeleteBudget(ctx context.Context, id int64) error
	Profile(ctx context.Context) (core.Profile, error)
}

type Options struct {
	Backend Backend
	Charts  chart.Library
	Views   *Views
	Logger  *log.Logger
}

type Session struct {
	mu      sync.Mutex
	backend Backend
	charts  chart.Library
	views   *Views
	logger  *log.Logger

	closed     bool
	doc        *Document
	categories []core.Category
	chart      chart.Chart
	profile    *core.Profile
	// budgets holds the standalone /api/budgets result of the last refresh.
	// The budget table is drawn from the summary instead.
	budgets []core.Budget
}

// NewSession builds a session whose document holds the empty page.
func NewSession(opts Options) (*Session, error) {
	if opts.Backend == nil || opts.Charts == nil || opts.Views == nil {
		return nil, errors.New("dashboard: backend, charts and views are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentDashboard)
	}
	s := &Session{
		backend: opts.Backend,
		charts:  opts.Charts,
		views:   opts.Views,
		logger:  logger,
		doc:     NewDocument(),
	}
	if err := s.renderBlank(); err != nil {
		return nil, err
	}
	s.doc.Flush()
	return s, nil
}

func (s *Session) renderBlank() error {
	zero := template.HTML(core.FormatAmount(core.FromCents(0)))
	for _, id := range []string{IDTotalIncome, IDTotalExpense, IDNetBalance} {
		s.doc.Replace(id, zero)
	}
	s.doc.Replace(IDTransactionsBody, "")
	s.doc.Replace(IDBudgetsBody, "")
	s.doc.Replace(IDCategoryChart, "")
	s.doc.Replace(IDAlert, "")
	s.doc.Replace(IDProfileName, template.HTML(template.HTMLEscapeString(DefaultProfileName)))
	s.doc.Replace(IDProfileEmail, template.HTML(template.HTMLEscapeString(DefaultProfileEmail)))

	photo, err := s.views.partial("profile_photo", DefaultProfilePhoto)
	if err != nil {
		return err
	}
	s.doc.Replace(IDProfilePhoto, photo)

	if err := s.syncFilters("", ""); err != nil {
		return err
	}
	if err := s.renderCategorySelects(); err != nil {
		return err
	}
	if err := s.resetTransactionForm(); err != nil {
		return err
	}
	return s.resetBudgetForm()
}

// Do runs op with the session locked and returns the regions it changed.
// On error nothing is flushed; the changes ride along with the next response.
// A closed session runs nothing and returns ErrClosed.
func (s *Session) Do(op func(*Session) error) ([]Fragment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if err := op(s); err != nil {
		return nil, err
	}
	return s.doc.Flush(), nil
}

// WritePage renders the whole page and clears the change set.
func (s *Session) WritePage(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	var buf bytes.Buffer
	if err := s.views.page(&buf, s.doc); err != nil {
		return err
	}
	s.doc.Flush()
	_, err := buf.WriteTo(w)
	return err
}

// Close destroys the live chart and makes later Do and WritePage calls fail
// with ErrClosed. Closing twice is harmless.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.chart != nil {
		s.chart.Destroy()
		s.chart = nil
	}
}

// Init fills the category selects and runs the first refresh.
func (s *Session) Init(ctx context.Context) error {
	if err := s.PopulateCategorySelects(ctx); err != nil {
		return err
	}
	s.Refresh(ctx)
	return nil
}

// Refresh reloads the summary, transactions, budgets and profile in parallel
// and redraws the page from them. The first failing request cancels the rest;
// nothing is redrawn then, the error is logged and the alert region shows
// RefreshFailedMessage.
func (s *Session) Refresh(ctx context.Context) {
	var (
		summary      core.MonthlySummary
		transactions []core.Transaction
		budgets      []core.Budget
		profile      core.Profile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		summary, err = s.backend.MonthlySummary(gctx, nil)
		return err
	})
	g.Go(func() (err error) {
		transactions, err = s.backend.Transactions(gctx)
		return err
	})
	g.Go(func() (err error) {
		budgets, err = s.backend.Budgets(gctx)
		return err
	})
	g.Go(func() (err error) {
		profile, err = s.backend.Profile(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.fail(ctx, err)
		return
	}

	s.budgets = budgets
	s.logger.DebugContext(ctx, "Standalone budgets fetched", "count", len(budgets))

	if err := s.redraw(summary, transactions, profile); err != nil {
		s.fail(ctx, err)
		return
	}
	if s.doc.Content(IDAlert) != "" {
		s.doc.Replace(IDAlert, "")
	}
}

func (s *Session) redraw(summary core.MonthlySummary, transactions []core.Transaction, profile core.Profile) error {
	s.RenderTotals(summary)
	if err := s.RenderChart(summary.ByCategory); err != nil {
		return err
	}
	if err := s.RenderTransactions(transactions); err != nil {
		return err
	}
	if err := s.RenderBudgets(summary.Budgets); err != nil {
		return err
	}
	if err := s.RenderProfile(profile); err != nil {
		return err
	}
	return s.syncFilters(strconv.Itoa(summary.Month), strconv.Itoa(summary.Year))
}

func (s *Session) fail(ctx context.Context, err error) {
	s.logger.ErrorContext(ctx, "Dashboard refresh failed",
		log.FieldOperation, log.OpRefresh,
		log.FieldError, err)
	html, rerr := s.views.partial("alert", RefreshFailedMessage)
	if rerr != nil {
		html = template.HTML(template.HTMLEscapeString(RefreshFailedMessage))
	}
	s.doc.Replace(IDAlert, html)
}
