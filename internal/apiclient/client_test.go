package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"

	"github.com/goccy/go-json"
)

type recorded struct {
	method      string
	path        string
	rawQuery    string
	contentType string
	body        []byte
}

func newRecordingServer(t *testing.T, status int, response string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{
			method:      r.Method,
			path:        r.URL.Path,
			rawQuery:    r.URL.RawQuery,
			contentType: r.Header.Get("Content-Type"),
			body:        body,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestNonSuccessStatusFailsWithMethodAndPath(t *testing.T) {
	cases := []struct {
		name   string
		status int
		call   func(*Client) error
		method string
		path   string
	}{
		{"get 404", http.StatusNotFound, func(c *Client) error { return c.Get(context.Background(), "/api/profile", nil) }, http.MethodGet, "/api/profile"},
		{"post 400", http.StatusBadRequest, func(c *Client) error { return c.Post(context.Background(), "/api/budgets", map[string]int{"month": 1}, nil) }, http.MethodPost, "/api/budgets"},
		{"put 500", http.StatusInternalServerError, func(c *Client) error { return c.Put(context.Background(), "/api/transactions/3", map[string]int{}, nil) }, http.MethodPut, "/api/transactions/3"},
		{"delete 404", http.StatusNotFound, func(c *Client) error { return c.DeleteTransaction(context.Background(), 9) }, http.MethodDelete, "/api/transactions/9"},
		{"redirect is not success", http.StatusFound, func(c *Client) error { return c.Get(context.Background(), "/api/categories", nil) }, http.MethodGet, "/api/categories"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newRecordingServer(t, tc.status, `{"error":"nope"}`)
			err := tc.call(New(srv.URL, WithHTTPClient(&http.Client{
				CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
			})))

			var httpErr *HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("expected *HTTPError, got %v", err)
			}
			if httpErr.Method != tc.method || httpErr.Path != tc.path || httpErr.StatusCode != tc.status {
				t.Fatalf("unexpected error fields: %+v", httpErr)
			}
		})
	}
}

func TestSuccessReturnsParsedBodyUnchanged(t *testing.T) {
	const body = `{"name":"Ada","nested":{"list":[1,2.5,"x"],"flag":true},"nothing":null}`
	srv, _ := newRecordingServer(t, http.StatusOK, body)

	var got map[string]any
	if err := New(srv.URL).Get(context.Background(), "/anything", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	var want map[string]any
	if err := json.Unmarshal([]byte(body), &want); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("body changed:\n got %#v\nwant %#v", got, want)
	}
}

func TestPostSendsJSONBody(t *testing.T) {
	srv, calls := newRecordingServer(t, http.StatusCreated, `{"id": 11, "amount": 42.5, "type": "expense"}`)

	amount := 42.5
	tx, err := New(srv.URL).CreateTransaction(context.Background(), TransactionPayload{
		Description: "Lunch",
		Amount:      &amount,
		Type:        "expense",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.ID != 11 || tx.Amount.String() != "42.5" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}

	c := (*calls)[0]
	if c.method != http.MethodPost || c.path != "/api/transactions" {
		t.Fatalf("unexpected request %s %s", c.method, c.path)
	}
	if c.contentType != "application/json" {
		t.Fatalf("content type = %q", c.contentType)
	}
	var sent map[string]any
	if err := json.Unmarshal(c.body, &sent); err != nil {
		t.Fatalf("body is not JSON: %s", c.body)
	}
	if sent["amount"] != 42.5 {
		t.Fatalf("amount = %#v", sent["amount"])
	}
	if v, ok := sent["category_id"]; !ok || v != nil {
		t.Fatalf("category_id should be present and null, got %#v (present=%v)", v, ok)
	}
	if _, ok := sent["transaction_date"]; ok {
		t.Fatalf("blank transaction_date should be omitted: %s", c.body)
	}
}

func TestGetSendsNoBody(t *testing.T) {
	srv, calls := newRecordingServer(t, http.StatusOK, `[]`)
	if _, err := New(srv.URL + "/").Categories(context.Background()); err != nil {
		t.Fatalf("categories: %v", err)
	}
	c := (*calls)[0]
	if c.path != "/api/categories" {
		t.Fatalf("trailing slash on base URL should be trimmed, got %s", c.path)
	}
	if len(c.body) != 0 || c.contentType != "" {
		t.Fatalf("GET should not carry a body, got %q (%s)", c.body, c.contentType)
	}
}

func TestSummaryPath(t *testing.T) {
	cases := []struct {
		query url.Values
		want  string
	}{
		{nil, "/api/summary/monthly"},
		{url.Values{"month": {"4"}}, "/api/summary/monthly?month=4"},
		{url.Values{"year": {"2024"}, "month": {"4"}}, "/api/summary/monthly?month=4&year=2024"},
	}
	for _, tc := range cases {
		if got := SummaryPath(tc.query); got != tc.want {
			t.Fatalf("SummaryPath(%v) = %s, want %s", tc.query, got, tc.want)
		}
	}
}

func TestEmptySuccessBody(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusNoContent, "")
	var out map[string]any
	if err := New(srv.URL).Delete(context.Background(), "/api/budgets/1", &out); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if out != nil {
		t.Fatalf("expected untouched output, got %v", out)
	}
}

func TestMalformedBodyIsNotHTTPError(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusOK, "{not json")
	_, err := New(srv.URL).Profile(context.Background())
	if err == nil {
		t.Fatal("expected decode error")
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		t.Fatalf("decode failures are generic errors, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv, calls := newRecordingServer(t, http.StatusOK, `{"status":"ok"}`)
	if err := New(srv.URL).Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if len(*calls) != 1 || (*calls)[0].path != "/api/health" {
		t.Fatalf("unexpected calls: %+v", *calls)
	}

	down, _ := newRecordingServer(t, http.StatusServiceUnavailable, `{}`)
	var httpErr *HTTPError
	if err := New(down.URL).Health(context.Background()); !errors.As(err, &httpErr) {
		t.Fatalf("Health() on a failing API = %v, want *HTTPError", err)
	}
}
