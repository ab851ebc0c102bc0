package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"expenses/internal/apiclient"
	"expenses/internal/core"
	"expenses/internal/metrics"
)

type fakeAPI struct {
	mu       sync.Mutex
	expenses []core.Expense
	nextID   int
	listErr  error

	lists   int
	creates []core.ExpenseInput
	deletes []core.ExpenseID
}

func (f *fakeAPI) List(context.Context) ([]core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]core.Expense(nil), f.expenses...), nil
}

func (f *fakeAPI) Create(_ context.Context, in core.ExpenseInput) (core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, in)
	if in.Description == "" {
		return core.Expense{}, &apiclient.StatusError{Code: 400, Message: "Validation failed"}
	}
	f.nextID++
	e := core.Expense{ID: core.ExpenseID(strconv.Itoa(f.nextID)), Description: in.Description, Amount: in.Amount, Date: in.Date, Category: in.Category}
	f.expenses = append(f.expenses, e)
	return e, nil
}

func (f *fakeAPI) Delete(_ context.Context, id core.ExpenseID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	for i, e := range f.expenses {
		if e.ID == id {
			f.expenses = append(f.expenses[:i], f.expenses[i+1:]...)
			return nil
		}
	}
	return &apiclient.StatusError{Code: 404}
}

func newTestServer(t *testing.T, api *fakeAPI) *Server {
	t.Helper()
	srv, err := NewServer(Config{
		Addr:    ":0",
		API:     api,
		Metrics: metrics.New("test"),
		Now:     func() time.Time { return time.Date(2024, 3, 3, 9, 0, 0, 0, time.Local) },
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func htmxRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("HX-Request", "true")
	return req
}

var seed = []core.Expense{
	{ID: "1", Description: "Lunch", Amount: 12.5, Date: "2024-03-01", Category: "FOOD"},
	{ID: "2", Description: "Bus", Amount: 2.75, Date: "2024-03-02", Category: "TRANSPORTATION"},
}

func TestIndexAndHealth(t *testing.T) {
	api := &fakeAPI{expenses: append([]core.Expense(nil), seed...), nextID: 2}
	srv := newTestServer(t, api)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("index status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"Add New Expense",
		"Save Expense",
		`value="2024-03-03"`,
		"Lunch", "€12.50", "1/3/2024", "Food",
		"Bus", "€2.75", "Transportation",
		"€15.25",
		`hx-delete="/expenses/1"`,
		`class="message hidden"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
	if api.lists != 1 {
		t.Errorf("index list calls = %d", api.lists)
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("security headers not applied")
	}

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}
}

func TestReadyzFailsWhenServiceDown(t *testing.T) {
	api := &fakeAPI{listErr: &apiclient.StatusError{Code: 502}}
	srv := newTestServer(t, api)
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d", rr.Code)
	}
}

func TestIndexShowsLoadError(t *testing.T) {
	api := &fakeAPI{listErr: &apiclient.StatusError{Code: 500}}
	srv := newTestServer(t, api)
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	body := rr.Body.String()
	if !strings.Contains(body, "Error loading expenses: HTTP Error: 500") || !strings.Contains(body, "message error") {
		t.Fatalf("index should show the load error:\n%s", body)
	}
}

func TestListFragmentEmpty(t *testing.T) {
	srv := newTestServer(t, &fakeAPI{})
	rr := serve(srv, htmxRequest(http.MethodGet, "/ui/expenses", ""))
	body := rr.Body.String()
	if !strings.Contains(body, `id="expensesList" hx-swap-oob="true"`) {
		t.Fatalf("list fragment not out-of-band:\n%s", body)
	}
	if !strings.Contains(body, `colspan="5"`) || !strings.Contains(body, "No expenses found") {
		t.Fatalf("missing placeholder row:\n%s", body)
	}
	if strings.Contains(body, "Total") {
		t.Fatal("empty list must not render a total row")
	}
	if rr.Header().Get("HX-Reswap") != "none" {
		t.Fatal("fragments must not swap the target")
	}
}

func TestSubmitCreatesAndReloads(t *testing.T) {
	api := &fakeAPI{}
	srv := newTestServer(t, api)

	form := url.Values{"description": {"Coffee"}, "amount": {"3"}, "date": {"2024-03-03"}, "category": {"OTHER"}}
	rr := serve(srv, htmxRequest(http.MethodPost, "/expenses", form.Encode()))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	want := core.ExpenseInput{Description: "Coffee", Amount: 3, Date: "2024-03-03", Category: "OTHER"}
	if len(api.creates) != 1 || api.creates[0] != want {
		t.Fatalf("creates = %+v", api.creates)
	}
	if api.lists != 1 {
		t.Fatalf("reloads = %d, want 1", api.lists)
	}

	body := rr.Body.String()
	for _, want := range []string{
		"Expense saved successfully!",
		`data-hide-after="5000"`,
		"Coffee", "€3.00",
		`id="expenseForm"`,
		`id="formTitle" hx-swap-oob="true"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("submit response missing %q", want)
		}
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "expense:created") {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
}

func TestSubmitSendsValuesAsEntered(t *testing.T) {
	api := &fakeAPI{}
	srv := newTestServer(t, api)

	desc := " Caf\x01è\ttab "
	form := url.Values{"description": {desc}, "amount": {"12.5abc"}, "date": {"2024-03-03"}, "category": {"GIFTS"}}
	serve(srv, htmxRequest(http.MethodPost, "/expenses", form.Encode()))

	want := core.ExpenseInput{Description: desc, Amount: 12.5, Date: "2024-03-03", Category: "GIFTS"}
	if len(api.creates) != 1 || api.creates[0] != want {
		t.Fatalf("creates = %+v, want %+v", api.creates, want)
	}
}

func TestSubmitFailureKeepsForm(t *testing.T) {
	api := &fakeAPI{}
	srv := newTestServer(t, api)

	form := url.Values{"description": {""}, "amount": {"3"}, "date": {"2024-03-03"}, "category": {"OTHER"}}
	rr := serve(srv, htmxRequest(http.MethodPost, "/expenses", form.Encode()))
	body := rr.Body.String()
	if !strings.Contains(body, "Error: Validation failed") {
		t.Fatalf("missing error message:\n%s", body)
	}
	if strings.Contains(body, `id="expenseForm"`) || strings.Contains(body, `id="expensesList"`) {
		t.Fatal("failed submit must not touch the form or the list")
	}
	if api.lists != 0 {
		t.Fatal("failed submit must not reload")
	}
	if strings.Contains(rr.Header().Get("HX-Trigger"), "expense:created") {
		t.Fatal("no created event on failure")
	}
}

func TestDeleteDeclinedAndConfirmed(t *testing.T) {
	api := &fakeAPI{expenses: append([]core.Expense(nil), seed...), nextID: 2}
	srv := newTestServer(t, api)

	// no htmx header and no explicit confirmation: declined
	rr := serve(srv, httptest.NewRequest(http.MethodDelete, "/expenses/1", nil))
	if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
		t.Fatalf("declined delete: status = %d body = %q", rr.Code, rr.Body.String())
	}
	if len(api.deletes) != 0 {
		t.Fatal("declined delete issued a request")
	}

	rr = serve(srv, htmxRequest(http.MethodDelete, "/expenses/1", ""))
	if len(api.deletes) != 1 || api.deletes[0] != "1" {
		t.Fatalf("deletes = %v", api.deletes)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Expense deleted successfully!") || strings.Contains(body, "Lunch") || !strings.Contains(body, "Bus") {
		t.Fatalf("unexpected delete response:\n%s", body)
	}

	rr = serve(srv, httptest.NewRequest(http.MethodDelete, "/expenses/99?confirm=yes", nil))
	if !strings.Contains(rr.Body.String(), "Error deleting expense: HTTP Error: 404") {
		t.Fatalf("missing delete error:\n%s", rr.Body.String())
	}
}

func TestResetFragment(t *testing.T) {
	srv := newTestServer(t, &fakeAPI{})
	rr := serve(srv, htmxRequest(http.MethodGet, "/ui/form", ""))
	body := rr.Body.String()
	for _, want := range []string{`id="expenseForm"`, `value="2024-03-03"`, `class="message hidden"`, "Add New Expense"} {
		if !strings.Contains(body, want) {
			t.Errorf("reset response missing %q", want)
		}
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "form:reset") {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}
}

func TestRateLimitOnPost(t *testing.T) {
	srv, err := NewServer(Config{API: &fakeAPI{}, RateLimitPerMinute: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown(context.Background())

	form := url.Values{"description": {"x"}, "amount": {"1"}, "date": {"2024-03-03"}, "category": {"FOOD"}}.Encode()
	if rr := serve(srv, htmxRequest(http.MethodPost, "/expenses", form)); rr.Code != http.StatusOK {
		t.Fatalf("first POST status = %d", rr.Code)
	}
	rr := serve(srv, htmxRequest(http.MethodPost, "/expenses", form))
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("second POST status = %d", rr.Code)
	}
}

func TestStaticAssets(t *testing.T) {
	srv := newTestServer(t, &fakeAPI{})
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "data-hide-after") && !strings.Contains(rr.Body.String(), "hideAfter") {
		t.Fatalf("static status = %d", rr.Code)
	}
	if rr.Header().Get("Cache-Control") == "" {
		t.Error("static assets should be cacheable")
	}
}
