package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"pft/internal/config"
	"pft/internal/core"
	ports "pft/internal/sheets"
)

type appendCall struct {
	path   string
	query  string
	values [][]string
}

// fakeSheets answers values:append calls the way the Sheets API does.
func fakeSheets(t *testing.T) (*Client, func() []appendCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []appendCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Values [][]string `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		calls = append(calls, appendCall{path: r.URL.Path, query: r.URL.RawQuery, values: body.Values})
		n := len(calls)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "sheet-1",
			"updates":       map[string]any{"updatedRange": "Row" + string(rune('0'+n))},
		})
	}))
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	c := New(svc, "sheet-1", "Ledger", "")
	return c, func() []appendCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]appendCall(nil), calls...)
	}
}

func TestAppendTransaction(t *testing.T) {
	c, calls := fakeSheets(t)
	food := "Food"
	entry := ports.TransactionEntry{
		Event: "transaction.created",
		At:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Transaction: core.Transaction{
			ID:              9,
			Amount:          decimal.RequireFromString("12.5"),
			Type:            core.Expense,
			Description:     "Lunch",
			TransactionDate: "2024-12-31",
			CategoryName:    &food,
		},
	}

	ref, err := c.AppendTransaction(context.Background(), entry)
	if err != nil {
		t.Fatalf("AppendTransaction() error = %v", err)
	}
	if ref != "Row1" {
		t.Errorf("ref = %q, want the updated range", ref)
	}

	got := calls()
	if len(got) != 1 {
		t.Fatalf("got %d calls, want 1", len(got))
	}
	// the ledger year follows the transaction date, not the event time
	if !strings.Contains(got[0].path, "/spreadsheets/sheet-1/values/2024 Ledger!A:H:append") {
		t.Errorf("path = %q", got[0].path)
	}
	if !strings.Contains(got[0].query, "valueInputOption=USER_ENTERED") {
		t.Errorf("query = %q", got[0].query)
	}
	want := []string{"2025-01-02T03:04:05Z", "transaction.created", "9", "2024-12-31", "expense", "Food", "Lunch", "12.50"}
	if strings.Join(got[0].values[0], "|") != strings.Join(want, "|") {
		t.Errorf("row = %v, want %v", got[0].values[0], want)
	}
}

func TestAppendAlert(t *testing.T) {
	c, calls := fakeSheets(t)
	entry := ports.AlertEntry{
		At: time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC),
		Budget: core.Budget{
			ID:          4,
			Month:       5,
			Year:        2024,
			LimitAmount: decimal.NewFromInt(100),
			Spent:       decimal.RequireFromString("120.4"),
			Remaining:   decimal.RequireFromString("-20.4"),
		},
	}

	if _, err := c.AppendAlert(context.Background(), entry); err != nil {
		t.Fatalf("AppendAlert() error = %v", err)
	}
	got := calls()
	if len(got) != 1 || !strings.Contains(got[0].path, "2024 Alerts!A:G:append") {
		t.Fatalf("calls = %+v, want one append to the default alerts sheet", got)
	}
	want := "2024-05-20T00:00:00Z|4|05/2024|Overall|100.00|120.40|-20.40"
	if strings.Join(got[0].values[0], "|") != want {
		t.Errorf("row = %v, want %s", got[0].values[0], want)
	}
}

func TestAppendWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.AppendAlert(context.Background(), ports.AlertEntry{}); err == nil {
		t.Fatal("expected error without a service")
	}
}

func TestNewFromConfigCredentials(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr string
	}{
		{
			name:    "missing spreadsheet",
			cfg:     config.Config{},
			wantErr: "missing GOOGLE_SPREADSHEET_ID",
		},
		{
			name:    "missing credentials",
			cfg:     config.Config{GoogleSpreadsheetID: "id"},
			wantErr: "missing service account credentials",
		},
		{
			name:    "unreadable file",
			cfg:     config.Config{GoogleSpreadsheetID: "id", GoogleServiceAccountFile: filepath.Join(os.TempDir(), "does-not-exist.json")},
			wantErr: "read service account file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFromConfig(context.Background(), &tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewFromConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Ledger", 2025, "2025 Ledger"},
		{"Alerts", 2024, "2024 Alerts"},
		{"", 2023, ""},
		{"Test Sheet", 2022, "2022 Test Sheet"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
	}

	for _, tt := range tests {
		got := yearPrefixedName(tt.baseName, tt.year)
		if got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q",
				tt.baseName, tt.year, got, tt.expected)
		}
	}
}
