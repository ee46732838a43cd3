package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"pft/internal/config"
	ports "pft/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base names without year (e.g. "Ledger"); the entry's year is prefixed.
	ledgerBase string
	alertsBase string
}

// Ensure interface conformance
var _ ports.LedgerSink = (*Client)(nil)

// NewFromConfig creates a Sheets client authenticated with the configured
// service account.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.GoogleSpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	credentials, err := serviceAccountJSON(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID)

	return New(svc, spreadsheetID, cfg.GoogleLedgerSheet, cfg.GoogleAlertsSheet), nil
}

// New wraps an existing service.
func New(svc *gsheet.Service, spreadsheetID, ledgerBase, alertsBase string) *Client {
	if strings.TrimSpace(ledgerBase) == "" {
		ledgerBase = "Ledger"
	}
	if strings.TrimSpace(alertsBase) == "" {
		alertsBase = "Alerts"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		ledgerBase:    ledgerBase,
		alertsBase:    alertsBase,
	}
}

// serviceAccountJSON prefers inline JSON over a credentials file.
func serviceAccountJSON(ctx context.Context, cfg *config.Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.GoogleServiceAccountJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(cfg.GoogleServiceAccountJSON), nil
	case strings.TrimSpace(cfg.GoogleServiceAccountFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", cfg.GoogleServiceAccountFile)
		b, err := os.ReadFile(cfg.GoogleServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func (c *Client) AppendTransaction(ctx context.Context, e ports.TransactionEntry) (string, error) {
	sheet := yearPrefixedName(c.ledgerBase, e.Year())
	return c.append(ctx, sheet+"!A:H", e.Row())
}

func (c *Client) AppendAlert(ctx context.Context, e ports.AlertEntry) (string, error) {
	sheet := yearPrefixedName(c.alertsBase, e.Budget.Year)
	return c.append(ctx, sheet+"!A:G", e.Row())
}

func (c *Client) append(ctx context.Context, rng string, row []string) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	values := make([]any, len(row))
	for i, v := range row {
		values[i] = v
	}
	vr := &gsheet.ValueRange{Values: [][]any{values}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", rng, err)
	}
	if resp.Updates == nil {
		return rng, nil
	}
	return resp.Updates.UpdatedRange, nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
