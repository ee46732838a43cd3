package dashboard

import (
	"net/url"
	"testing"

	"github.com/goccy/go-json"

	"pft/internal/core"
)

func profileWith(name, photo string) core.Profile {
	return core.Profile{ID: 1, Name: name, Email: "ada@example.com", ProfilePhotoURL: photo}
}

func TestTransactionPayloadFromForm(t *testing.T) {
	p := TransactionPayloadFromForm(url.Values{
		"description":      {"Coffee"},
		"amount":           {"42.5"},
		"type":             {"expense"},
		"category_id":      {""},
		"transaction_date": {""},
	})
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"description":"Coffee","amount":42.5,"type":"expense","category_id":null}`
	if string(b) != want {
		t.Fatalf("payload = %s, want %s", b, want)
	}

	p = TransactionPayloadFromForm(url.Values{
		"amount":           {"abc"},
		"type":             {"income"},
		"category_id":      {"3"},
		"transaction_date": {"2024-02-29"},
	})
	if p.Amount != nil {
		t.Fatalf("unparseable amount should be nil, got %v", *p.Amount)
	}
	if p.CategoryID == nil || *p.CategoryID != "3" {
		t.Fatalf("category_id = %v", p.CategoryID)
	}
	if p.TransactionDate != "2024-02-29" {
		t.Fatalf("date = %q", p.TransactionDate)
	}
}

func TestBudgetPayloadFromForm(t *testing.T) {
	p := BudgetPayloadFromForm(url.Values{
		"month":        {"3"},
		"year":         {"2024"},
		"limit_amount": {"500"},
		"category_id":  {"7"},
	})
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"month":3,"year":2024,"limit_amount":500,"category_id":"7"}`
	if string(b) != want {
		t.Fatalf("payload = %s, want %s", b, want)
	}

	p = BudgetPayloadFromForm(url.Values{"month": {"3.9"}, "year": {"x"}, "limit_amount": {""}})
	if p.Month == nil || *p.Month != 3 {
		t.Fatalf("month = %v, want 3", p.Month)
	}
	if p.Year != nil || p.LimitAmount != nil || p.CategoryID != nil {
		t.Fatalf("unparseable fields should be nil: %+v", p)
	}
}

func TestParseFloatRejectsNonFinite(t *testing.T) {
	for _, raw := range []string{"NaN", "Inf", "-Inf", "1e400"} {
		if v := parseFloat(raw); v != nil {
			t.Errorf("parseFloat(%q) = %v, want nil", raw, *v)
		}
	}
}
