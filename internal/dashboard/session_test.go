package dashboard

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"pft/internal/apiclient"
	"pft/internal/chart"
	"pft/internal/log"
	"pft/web"
)

const (
	categoriesJSON   = `[{"id":1,"name":"Salary","type":"income"},{"id":2,"name":"Food","type":"expense"}]`
	summaryJSON      = `{"month":5,"year":2024,"total_income":1234.5,"total_expense":200,"net":1034.5,"by_category":[{"category_id":1,"category_name":"Salary","type":"income","total":1234.5},{"category_id":2,"category_name":"Food","type":"expense","total":200}],"budgets":[{"id":4,"user_id":1,"category_id":null,"month":5,"year":2024,"limit_amount":500,"alert_sent":false,"category_name":null,"spent":200,"remaining":300}]}`
	transactionsJSON = `[{"id":10,"user_id":1,"category_id":2,"category_name":"Food","transaction_date":"2024-05-02","description":"Groceries","amount":200,"type":"expense"},{"id":11,"user_id":1,"category_id":null,"category_name":null,"transaction_date":"","description":"","amount":1234.5,"type":"income"}]`
	budgetsJSON      = `[{"id":99,"user_id":1,"category_id":2,"month":1,"year":2020,"limit_amount":1,"alert_sent":false,"category_name":"Standalone","spent":0,"remaining":1}]`
	profileJSON      = `{"id":1,"name":"","email":"ada@example.com","profile_photo_url":""}`
)

type call struct {
	method   string
	path     string
	rawQuery string
	body     string
}

type reply struct {
	status int
	body   string
}

// fakeAPI serves canned JSON per "METHOD /path" and records every request.
type fakeAPI struct {
	mu      sync.Mutex
	replies map[string]reply
	calls   []call
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{replies: map[string]reply{
		"GET /api/categories":         {http.StatusOK, categoriesJSON},
		"GET /api/summary/monthly":    {http.StatusOK, summaryJSON},
		"GET /api/transactions":       {http.StatusOK, transactionsJSON},
		"GET /api/budgets":            {http.StatusOK, budgetsJSON},
		"GET /api/profile":            {http.StatusOK, profileJSON},
		"POST /api/transactions":      {http.StatusCreated, `{"id":12,"amount":42.5,"type":"expense"}`},
		"POST /api/budgets":           {http.StatusCreated, `{"id":5,"month":3,"year":2024,"limit_amount":500}`},
		"DELETE /api/transactions/10": {http.StatusOK, `{"deleted":10}`},
		"DELETE /api/budgets/4":       {http.StatusOK, `{"deleted":4}`},
	}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		key := r.Method + " " + r.URL.Path

		f.mu.Lock()
		f.calls = append(f.calls, call{method: r.Method, path: r.URL.Path, rawQuery: r.URL.RawQuery, body: string(body)})
		rep, ok := f.replies[key]
		f.mu.Unlock()

		if !ok {
			rep = reply{http.StatusNotFound, `{"error":"not found"}`}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rep.status)
		_, _ = io.WriteString(w, rep.body)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) set(key string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[key] = reply{status, body}
}

func (f *fakeAPI) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.method == method && c.path == path {
			n++
		}
	}
	return n
}

func (f *fakeAPI) find(method, path string) (call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.method == method && c.path == path {
			return c, true
		}
	}
	return call{}, false
}

type fixture struct {
	api     *fakeAPI
	session *Session
	charts  *chart.SVG
	logs    *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	api, srv := newFakeAPI(t)
	views, err := ParseViews(web.TemplatesFS)
	if err != nil {
		t.Fatalf("parse views: %v", err)
	}
	var logs bytes.Buffer
	logger := log.New(log.Config{Handler: slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})}).
		WithComponent(log.ComponentDashboard)
	charts := chart.NewSVG()
	s, err := NewSession(Options{
		Backend: apiclient.New(srv.URL),
		Charts:  charts,
		Views:   views,
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return &fixture{api: api, session: s, charts: charts, logs: &logs}
}

func (fx *fixture) content(id string) string {
	return string(fx.session.doc.Content(id))
}

func TestNewSessionRequiresCollaborators(t *testing.T) {
	if _, err := NewSession(Options{}); err == nil {
		t.Fatal("expected error without backend, charts and views")
	}
}

func TestNewSessionStartsBlank(t *testing.T) {
	fx := newFixture(t)
	if got := fx.content(IDTotalIncome); got != "0.00" {
		t.Fatalf("income = %q, want 0.00", got)
	}
	if got := fx.content(IDProfileName); got != DefaultProfileName {
		t.Fatalf("name = %q", got)
	}
	if !strings.Contains(fx.content(IDProfilePhoto), DefaultProfilePhoto) {
		t.Fatalf("photo = %q", fx.content(IDProfilePhoto))
	}
	if len(fx.session.doc.Changed()) != 0 {
		t.Fatalf("blank page should not be pending: %v", fx.session.doc.Changed())
	}
}

func TestPopulateCategorySelectsIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := fx.session.PopulateCategorySelects(ctx); err != nil {
			t.Fatalf("populate #%d: %v", i+1, err)
		}
	}

	tx := fx.content(IDTransactionCategory)
	if n := strings.Count(tx, "<option"); n != 2 {
		t.Fatalf("transaction select has %d options, want 2: %s", n, tx)
	}
	for _, want := range []string{`<option value="1">Salary (income)</option>`, `<option value="2">Food (expense)</option>`} {
		if !strings.Contains(tx, want) {
			t.Fatalf("missing %s in %s", want, tx)
		}
	}

	budget := fx.content(IDBudgetCategory)
	if n := strings.Count(budget, "<option"); n != 3 {
		t.Fatalf("budget select has %d options, want 3: %s", n, budget)
	}
	if n := strings.Count(budget, `<option value="">Overall</option>`); n != 1 {
		t.Fatalf("expected a single Overall option, got %d", n)
	}
	if !strings.HasPrefix(budget, `<option value="">Overall</option>`) {
		t.Fatalf("Overall should come first: %s", budget)
	}
	if len(fx.session.categories) != 2 {
		t.Fatalf("categories cached = %d", len(fx.session.categories))
	}
}

func TestRenderChartTwiceLeavesOneLiveChart(t *testing.T) {
	fx := newFixture(t)
	if err := fx.session.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := fx.session.ApplyFilters(context.Background(), "5", "2024"); err != nil {
		t.Fatalf("apply filters: %v", err)
	}
	if live := fx.charts.Live(IDCategoryChart); live != 1 {
		t.Fatalf("live charts = %d, want 1", live)
	}

	html := fx.content(IDCategoryChart)
	if !strings.Contains(html, IncomeColor) || !strings.Contains(html, ExpenseColor) {
		t.Fatalf("expected income and expense colours: %s", html)
	}
	if strings.Contains(html, "bar-chart__legend") {
		t.Fatal("legend should be hidden")
	}
	if !strings.Contains(html, `width="100%"`) {
		t.Fatal("chart should be responsive")
	}
}

func TestBarColor(t *testing.T) {
	cases := map[string]string{
		"Salary (income)":      IncomeColor,
		"Food (expense)":       ExpenseColor,
		"income tax (expense)": ExpenseColor,
		"Side income (income)": IncomeColor,
	}
	for label, want := range cases {
		if got := barColor(label); got != want {
			t.Errorf("barColor(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestRefreshRendersSummaryTransactionsAndProfile(t *testing.T) {
	fx := newFixture(t)
	if err := fx.session.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}

	if got := fx.content(IDTotalIncome); got != "1234.50" {
		t.Fatalf("income = %q, want 1234.50", got)
	}
	if got := fx.content(IDTotalExpense); got != "200.00" {
		t.Fatalf("expense = %q, want 200.00", got)
	}
	if got := fx.content(IDNetBalance); got != "1034.50" {
		t.Fatalf("net = %q, want 1034.50", got)
	}

	rows := fx.content(IDTransactionsBody)
	if n := strings.Count(rows, "<tr>"); n != 2 {
		t.Fatalf("transaction rows = %d, want 2", n)
	}
	for _, want := range []string{"Groceries", "2024-05-02", "<td>-</td>", "1234.50", TransactionDeletePath(10), TransactionDeletePath(11)} {
		if !strings.Contains(rows, want) {
			t.Fatalf("missing %q in %s", want, rows)
		}
	}

	budgets := fx.content(IDBudgetsBody)
	for _, want := range []string{"Overall", "05/2024", "500.00", "200.00", "300.00", BudgetDeletePath(4)} {
		if !strings.Contains(budgets, want) {
			t.Fatalf("missing %q in %s", want, budgets)
		}
	}
	if strings.Contains(budgets, "Standalone") {
		t.Fatal("budget table must come from the summary, not the standalone list")
	}
	if len(fx.session.budgets) != 1 {
		t.Fatalf("standalone budgets kept = %d, want 1", len(fx.session.budgets))
	}

	if got := fx.content(IDProfileName); got != DefaultProfileName {
		t.Fatalf("name = %q, want default", got)
	}
	if got := fx.content(IDProfileEmail); got != "ada@example.com" {
		t.Fatalf("email = %q", got)
	}
	if !strings.Contains(fx.content(IDProfilePhoto), DefaultProfilePhoto) {
		t.Fatal("photo without url must keep the previous image")
	}

	if !strings.Contains(fx.content(IDFilterMonth), `value="5"`) || !strings.Contains(fx.content(IDFilterYear), `value="2024"`) {
		t.Fatalf("filters not synced: %s %s", fx.content(IDFilterMonth), fx.content(IDFilterYear))
	}
	if fx.content(IDAlert) != "" {
		t.Fatalf("alert should be empty: %s", fx.content(IDAlert))
	}
	if fx.api.count(http.MethodGet, "/api/budgets") != 1 {
		t.Fatal("refresh should fetch the standalone budgets once")
	}
}

func TestRefreshFailureShowsAlertWithoutRendering(t *testing.T) {
	fx := newFixture(t)
	fx.api.set("GET /api/profile", http.StatusInternalServerError, `{"error":"boom"}`)

	if err := fx.session.Init(context.Background()); err != nil {
		t.Fatalf("init should swallow refresh errors: %v", err)
	}

	if got := fx.content(IDTotalIncome); got != "0.00" {
		t.Fatalf("income changed to %q after a failed refresh", got)
	}
	if fx.content(IDTransactionsBody) != "" || fx.content(IDBudgetsBody) != "" {
		t.Fatal("tables must not be rendered after a failed refresh")
	}
	if fx.charts.Live(IDCategoryChart) != 0 {
		t.Fatal("no chart should be drawn after a failed refresh")
	}
	alert := fx.content(IDAlert)
	if !strings.Contains(alert, RefreshFailedMessage) {
		t.Fatalf("alert = %q", alert)
	}
	if strings.Contains(alert, "boom") || strings.Contains(alert, "500") {
		t.Fatalf("alert must not leak the cause: %q", alert)
	}
	if !strings.Contains(fx.logs.String(), "Dashboard refresh failed") || !strings.Contains(fx.logs.String(), "/api/profile") {
		t.Fatalf("error not logged: %s", fx.logs.String())
	}

	fx.api.set("GET /api/profile", http.StatusOK, profileJSON)
	fx.session.Refresh(context.Background())
	if fx.content(IDAlert) != "" {
		t.Fatal("successful refresh should clear the alert")
	}
}

func TestInitPropagatesCategoryFailure(t *testing.T) {
	fx := newFixture(t)
	fx.api.set("GET /api/categories", http.StatusBadGateway, `{}`)

	err := fx.session.Init(context.Background())
	var httpErr *apiclient.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if fx.api.count(http.MethodGet, "/api/transactions") != 0 {
		t.Fatal("refresh must not run when categories fail")
	}
}

func TestRenderTablesReplacePriorRows(t *testing.T) {
	fx := newFixture(t)
	if err := fx.session.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := fx.session.RenderTransactions(nil); err != nil {
		t.Fatalf("render transactions: %v", err)
	}
	if err := fx.session.RenderBudgets(nil); err != nil {
		t.Fatalf("render budgets: %v", err)
	}
	if n := strings.Count(fx.content(IDTransactionsBody), "<tr"); n != 0 {
		t.Fatalf("transaction rows left: %d", n)
	}
	if n := strings.Count(fx.content(IDBudgetsBody), "<tr"); n != 0 {
		t.Fatalf("budget rows left: %d", n)
	}
}

func TestApplyFiltersOmitsEmptyValues(t *testing.T) {
	fx := newFixture(t)
	if err := fx.session.ApplyFilters(context.Background(), "4", ""); err != nil {
		t.Fatalf("apply filters: %v", err)
	}
	c, ok := fx.api.find(http.MethodGet, "/api/summary/monthly")
	if !ok {
		t.Fatal("summary not requested")
	}
	if c.rawQuery != "month=4" {
		t.Fatalf("query = %q, want month=4", c.rawQuery)
	}
	if fx.api.count(http.MethodGet, "/api/transactions") != 0 {
		t.Fatal("filters must not re-fetch transactions")
	}
	if got := fx.content(IDTotalIncome); got != "1234.50" {
		t.Fatalf("totals not updated: %q", got)
	}
	if fx.content(IDTransactionsBody) != "" {
		t.Fatal("transactions must not be re-rendered by filters")
	}
}

func TestFilterQuery(t *testing.T) {
	cases := []struct {
		month, year, want string
	}{
		{"", "", ""},
		{"4", "", "month=4"},
		{"", "2024", "year=2024"},
		{"4", "2024", "month=4&year=2024"},
		{" 4 ", "  ", "month=4"},
	}
	for _, tc := range cases {
		if got := FilterQuery(tc.month, tc.year).Encode(); got != tc.want {
			t.Errorf("FilterQuery(%q, %q) = %q, want %q", tc.month, tc.year, got, tc.want)
		}
	}
}

func TestSubmitTransactionPostsResetsAndRefreshes(t *testing.T) {
	fx := newFixture(t)
	form := map[string][]string{
		"description":      {"Coffee"},
		"amount":           {"42.5"},
		"type":             {"expense"},
		"category_id":      {""},
		"transaction_date": {""},
	}

	frags, err := fx.session.Do(func(s *Session) error {
		return s.SubmitTransaction(context.Background(), form)
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	c, ok := fx.api.find(http.MethodPost, "/api/transactions")
	if !ok {
		t.Fatal("transaction not posted")
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(c.body), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["amount"] != 42.5 {
		t.Fatalf("amount = %#v, want 42.5", body["amount"])
	}
	if v, ok := body["category_id"]; !ok || v != nil {
		t.Fatalf("category_id = %#v (present %v), want null", v, ok)
	}
	if _, ok := body["transaction_date"]; ok {
		t.Fatal("blank transaction_date must be omitted")
	}

	if fx.api.count(http.MethodGet, "/api/transactions") != 1 {
		t.Fatal("submit should trigger a refresh")
	}
	ids := make(map[string]bool)
	for _, f := range frags {
		ids[f.ID] = true
	}
	for _, id := range []string{IDTransactionForm, IDTransactionCategory, IDTransactionsBody, IDTotalIncome} {
		if !ids[id] {
			t.Fatalf("fragment %s missing from %v", id, ids)
		}
	}
}

func TestSubmitFailureReachesCaller(t *testing.T) {
	fx := newFixture(t)
	fx.api.set("POST /api/budgets", http.StatusBadRequest, `{"error":"'month' is required"}`)

	_, err := fx.session.Do(func(s *Session) error {
		return s.SubmitBudget(context.Background(), map[string][]string{"month": {""}})
	})
	var httpErr *apiclient.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Method != http.MethodPost || httpErr.Path != "/api/budgets" {
		t.Fatalf("error = %+v", httpErr)
	}
	if fx.content(IDAlert) != "" {
		t.Fatal("submit failures do not touch the alert region")
	}
	if fx.api.count(http.MethodGet, "/api/summary/monthly") != 0 {
		t.Fatal("failed submit must not refresh")
	}
}

func TestDeleteActionsDeleteThenRefresh(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.session.Do(func(s *Session) error { return s.DeleteTransaction(ctx, 10) }); err != nil {
		t.Fatalf("delete transaction: %v", err)
	}
	if _, err := fx.session.Do(func(s *Session) error { return s.DeleteBudget(ctx, 4) }); err != nil {
		t.Fatalf("delete budget: %v", err)
	}
	if fx.api.count(http.MethodDelete, "/api/transactions/10") != 1 || fx.api.count(http.MethodDelete, "/api/budgets/4") != 1 {
		t.Fatal("delete requests not sent")
	}
	if fx.api.count(http.MethodGet, "/api/summary/monthly") != 2 {
		t.Fatal("each delete should refresh")
	}

	_, err := fx.session.Do(func(s *Session) error { return s.DeleteTransaction(ctx, 77) })
	var httpErr *apiclient.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 HTTPError, got %v", err)
	}
}

func TestRenderProfilePhoto(t *testing.T) {
	fx := newFixture(t)
	if err := fx.session.RenderProfile(profileWith("Ada", "/static/img/ada.png")); err != nil {
		t.Fatalf("render profile: %v", err)
	}
	if !strings.Contains(fx.content(IDProfilePhoto), "/static/img/ada.png") {
		t.Fatalf("photo = %s", fx.content(IDProfilePhoto))
	}
	if err := fx.session.RenderProfile(profileWith("Ada", "")); err != nil {
		t.Fatalf("render profile: %v", err)
	}
	if !strings.Contains(fx.content(IDProfilePhoto), "/static/img/ada.png") {
		t.Fatal("missing url must leave the previous photo")
	}
	if fx.content(IDProfileName) != "Ada" {
		t.Fatalf("name = %s", fx.content(IDProfileName))
	}
}

func TestWritePageContainsEveryRegion(t *testing.T) {
	fx := newFixture(t)
	if err := fx.session.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	var buf bytes.Buffer
	if err := fx.session.WritePage(&buf); err != nil {
		t.Fatalf("write page: %v", err)
	}
	page := buf.String()
	for id := range regions {
		if !strings.Contains(page, `id="`+id+`"`) {
			t.Errorf("page lacks region %s", id)
		}
	}
	if len(fx.session.doc.Changed()) != 0 {
		t.Fatal("writing the page should clear pending changes")
	}
}

func TestCloseDestroysChart(t *testing.T) {
	fx := newFixture(t)
	if err := fx.session.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if fx.charts.Live(IDCategoryChart) != 1 {
		t.Fatal("expected a live chart after init")
	}
	fx.session.Close()
	if fx.charts.Live(IDCategoryChart) != 0 {
		t.Fatal("Close() left the chart alive")
	}
	fx.session.Close()
}

func TestClosedSessionRejectsOperations(t *testing.T) {
	fx := newFixture(t)
	fx.session.Close()

	ran := false
	frags, err := fx.session.Do(func(s *Session) error {
		ran = true
		s.Refresh(context.Background())
		return nil
	})
	if !errors.Is(err, ErrClosed) || frags != nil {
		t.Fatalf("Do() = %v, %v; want ErrClosed", frags, err)
	}
	if ran {
		t.Error("op ran on a closed session")
	}
	if fx.charts.Live(IDCategoryChart) != 0 {
		t.Error("a closed session drew a chart")
	}

	var buf bytes.Buffer
	if err := fx.session.WritePage(&buf); !errors.Is(err, ErrClosed) || buf.Len() != 0 {
		t.Errorf("WritePage() = %v, wrote %d bytes", err, buf.Len())
	}
}
