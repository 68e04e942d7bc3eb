package http

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/host"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

const testBotToken = "123456:TEST-token"

var testNow = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

type fakeAdvisor struct {
	tips    []string
	loading bool
	calls   atomic.Int32
}

func (f *fakeAdvisor) Advise(ctx context.Context, txs []core.Transaction, sum core.FinancialSummary) []string {
	f.calls.Add(1)
	return f.tips
}

func (f *fakeAdvisor) Loading() bool { return f.loading }

// flakyStore fails writes or pings on demand.
type flakyStore struct {
	*storage.MemoryStore
	failPut  bool
	failPing bool
}

func (f *flakyStore) Put(ctx context.Context, key string, value []byte) error {
	if f.failPut {
		return errors.New("disk full")
	}
	return f.MemoryStore.Put(ctx, key, value)
}

func (f *flakyStore) Update(ctx context.Context, key string, fn storage.UpdateFunc) error {
	if f.failPut {
		return errors.New("disk full")
	}
	return f.MemoryStore.Update(ctx, key, fn)
}

func (f *flakyStore) Ping(ctx context.Context) error {
	if f.failPing {
		return errors.New("connection refused")
	}
	return f.MemoryStore.Ping(ctx)
}

type testEnv struct {
	srv     *Server
	kv      *flakyStore
	ledger  *ledger.Store
	advisor *fakeAdvisor
}

func newTestEnv(t *testing.T, seed bool, mutate func(*Options)) *testEnv {
	t.Helper()
	kv := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	led, err := ledger.Open(context.Background(), kv, ledger.Options{
		Seed:   seed,
		Logger: applog.Discard(),
		Now:    func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	svc := services.NewTransactionService(led, nil, applog.Discard())
	adv := &fakeAdvisor{tips: []string{"Совет 1", "Совет 2"}}
	opts := Options{
		Logger:         applog.Discard(),
		BotToken:       testBotToken,
		InitDataMaxAge: 24 * time.Hour,
		Location:       time.UTC,
		Now:            func() time.Time { return testNow },
	}
	if mutate != nil {
		mutate(&opts)
	}
	return &testEnv{
		srv:     NewServer(":0", svc, led, adv, opts),
		kv:      kv,
		ledger:  led,
		advisor: adv,
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestTransactionLifecycle(t *testing.T) {
	env := newTestEnv(t, false, nil)

	rec := env.do(t, http.MethodPost, "/api/transactions",
		`{"type":"expense","amount":1200,"category":"Еда","date":"2025-06-14","note":"Обед"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	created := decode[map[string]any](t, rec)
	if created["amount"] != float64(1200) {
		t.Errorf("amount = %#v, want JSON number 1200", created["amount"])
	}
	if created["date"] != "2025-06-14T00:00:00.000Z" {
		t.Errorf("date = %v", created["date"])
	}
	id, _ := created["id"].(string)
	if id == "" || rec.Header().Get("Location") != "/api/transactions/"+id {
		t.Errorf("unexpected id %q / location %q", id, rec.Header().Get("Location"))
	}

	rec = env.do(t, http.MethodPost, "/api/transactions", `{"type":"income","amount":"85 000","category":"Зарплата","date":"2025-06-15"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/transactions", "")
	list := decode[[]map[string]any](t, rec)
	if len(list) != 2 || list[0]["category"] != "Зарплата" {
		t.Fatalf("list not sorted newest first: %v", list)
	}

	for i := 0; i < 2; i++ {
		rec = env.do(t, http.MethodDelete, "/api/transactions/"+id, "")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("delete #%d status = %d", i+1, rec.Code)
		}
	}
	if got := len(env.ledger.List()); got != 1 {
		t.Errorf("ledger has %d transactions, want 1", got)
	}
}

func TestCreateTransactionRejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing amount", `{"type":"expense","category":"Еда"}`, http.StatusUnprocessableEntity},
		{"null amount", `{"amount":null,"category":"Еда"}`, http.StatusUnprocessableEntity},
		{"unreadable amount", `{"amount":"abc","category":"Еда"}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"amount":-5,"category":"Еда"}`, http.StatusUnprocessableEntity},
		{"blank category", `{"amount":5,"category":"   "}`, http.StatusUnprocessableEntity},
		{"unknown type", `{"type":"transfer","amount":5,"category":"Еда"}`, http.StatusUnprocessableEntity},
		{"not json", `amount=5`, http.StatusBadRequest},
		{"truncated json", `{"amount":5`, http.StatusBadRequest},
		{"bad date", `{"amount":5,"category":"Еда","date":"вчера"}`, http.StatusBadRequest},
		{"zero amount", `{"amount":0,"category":"Еда"}`, http.StatusCreated},
		{"comma decimal", `{"amount":"12,5","category":"Еда"}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false, nil)
			rec := env.do(t, http.MethodPost, "/api/transactions", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			if tt.want == http.StatusUnprocessableEntity {
				if got := strings.TrimSpace(rec.Body.String()); got != `{"created":false}` {
					t.Errorf("body = %s", got)
				}
				if len(env.ledger.List()) != 0 {
					t.Error("rejected draft created a transaction")
				}
			}
		})
	}
}

func TestCreateDefaultsToExpenseToday(t *testing.T) {
	env := newTestEnv(t, false, nil)
	rec := env.do(t, http.MethodPost, "/api/transactions", `{"amount":10,"category":"Другое"}`)
	created := decode[map[string]any](t, rec)
	if created["type"] != "expense" || created["date"] != "2025-06-15T00:00:00.000Z" {
		t.Errorf("defaults not applied: %v", created)
	}
}

func TestStorageFailureIs500(t *testing.T) {
	env := newTestEnv(t, true, nil)
	env.kv.failPut = true

	rec := env.do(t, http.MethodPost, "/api/transactions", `{"amount":10,"category":"Еда"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("create status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "disk full") {
		t.Error("storage error leaked to client")
	}
	rec = env.do(t, http.MethodDelete, "/api/transactions/1", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("delete status = %d", rec.Code)
	}
	if len(env.ledger.List()) != 3 {
		t.Error("failed writes must leave the ledger unchanged")
	}
}

func TestSummary(t *testing.T) {
	env := newTestEnv(t, true, nil)
	rec := env.do(t, http.MethodGet, "/api/summary", "")
	got := decode[map[string]float64](t, rec)
	want := map[string]float64{"totalIncome": 85000, "totalExpense": 4700, "balance": 80300}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func signedInitData(token string, authDate time.Time) string {
	v := url.Values{}
	v.Set("user", `{"id":42,"first_name":"Анна"}`)
	v.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	v.Set("hash", hex.EncodeToString(host.Sign(v, token)))
	return v.Encode()
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t, true, nil)
	for i := 0; i < 4; i++ {
		env.do(t, http.MethodPost, "/api/transactions", `{"amount":1,"category":"Еда","date":"2024-01-0`+strconv.Itoa(i+1)+`"}`)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set(HeaderInitData, signedInitData(testBotToken, testNow.Add(-time.Hour)))
	rec := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Greeting string `json:"greeting"`
		Display  struct {
			Balance string `json:"balance"`
		} `json:"display"`
		Recent []struct {
			ID   string `json:"id"`
			Date string `json:"date"`
		} `json:"recent"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Greeting != "Анна" {
		t.Errorf("greeting = %q", body.Greeting)
	}
	if !strings.Contains(body.Display.Balance, "80") {
		t.Errorf("balance display = %q", body.Display.Balance)
	}
	if len(body.Recent) != 5 {
		t.Fatalf("recent = %d, want 5", len(body.Recent))
	}
	if body.Recent[0].ID != "3" || body.Recent[3].Date != "2024-01-04T00:00:00.000Z" {
		t.Errorf("recent not ordered by date: %+v", body.Recent)
	}
}

func TestHostResolution(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		header   string
		want     int
		greeting bool
	}{
		{"no header", testBotToken, "", http.StatusOK, false},
		{"valid", testBotToken, signedInitData(testBotToken, testNow), http.StatusOK, true},
		{"wrong signature", testBotToken, signedInitData("other:token", testNow), http.StatusUnauthorized, false},
		{"expired", testBotToken, signedInitData(testBotToken, testNow.Add(-48*time.Hour)), http.StatusUnauthorized, false},
		{"no bot token ignores header", "", "garbage", http.StatusOK, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false, func(o *Options) { o.BotToken = tt.token })
			req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
			if tt.header != "" {
				req.Header.Set(HeaderInitData, tt.header)
			}
			rec := httptest.NewRecorder()
			env.srv.Handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if rec.Code == http.StatusOK {
				hasGreeting := strings.Contains(rec.Body.String(), `"greeting"`)
				if hasGreeting != tt.greeting {
					t.Errorf("greeting present = %v, want %v", hasGreeting, tt.greeting)
				}
			}
		})
	}
}

func TestAnalytics(t *testing.T) {
	env := newTestEnv(t, true, nil)

	rec := env.do(t, http.MethodGet, "/api/analytics?period=year", "")
	var body struct {
		Period     string `json:"period"`
		Categories []struct {
			Name  string  `json:"name"`
			Value float64 `json:"value"`
		} `json:"categories"`
		Timeline []struct {
			Key     string  `json:"key"`
			Income  float64 `json:"income"`
			Expense float64 `json:"expense"`
		} `json:"timeline"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Period != "year" {
		t.Errorf("period = %q", body.Period)
	}
	if len(body.Categories) != 2 || body.Categories[0].Name != "Развлечения" || body.Categories[0].Value != 3500 {
		t.Errorf("categories = %+v", body.Categories)
	}
	if len(body.Timeline) != 1 || body.Timeline[0].Income != 85000 || body.Timeline[0].Expense != 4700 {
		t.Errorf("timeline = %+v", body.Timeline)
	}

	rec = env.do(t, http.MethodGet, "/api/analytics?period=bogus", "")
	if got := decode[map[string]any](t, rec)["period"]; got != "month" {
		t.Errorf("unknown period should fall back to month, got %v", got)
	}
}

func TestCharts(t *testing.T) {
	env := newTestEnv(t, false, nil)
	for _, path := range []string{"/api/analytics/categories.png", "/api/analytics/timeline.png?period=week"} {
		if rec := env.do(t, http.MethodGet, path, ""); rec.Code != http.StatusNoContent {
			t.Errorf("%s on empty ledger: status = %d, want 204", path, rec.Code)
		}
	}

	env.do(t, http.MethodPost, "/api/transactions", `{"amount":100,"category":"Еда"}`)
	for _, path := range []string{"/api/analytics/categories.png", "/api/analytics/timeline.png"} {
		rec := env.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
			t.Fatalf("%s: status = %d, type %q", path, rec.Code, rec.Header().Get("Content-Type"))
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
			t.Errorf("%s: not a PNG", path)
		}
	}
	before := env.srv.chartLRU.Len()
	env.do(t, http.MethodGet, "/api/analytics/categories.png", "")
	if env.srv.chartLRU.Len() != before {
		t.Error("repeat request at the same revision should hit the cache")
	}
}

func TestAdvice(t *testing.T) {
	env := newTestEnv(t, true, nil)

	rec := env.do(t, http.MethodPost, "/api/advice", "")
	got := decode[map[string][]string](t, rec)["advice"]
	if len(got) != 2 || got[0] != "Совет 1" {
		t.Errorf("advice = %v", got)
	}

	env.advisor.tips = nil
	rec = env.do(t, http.MethodPost, "/api/advice", "")
	if strings.TrimSpace(rec.Body.String()) != `{"advice":[]}` {
		t.Errorf("body = %s", rec.Body)
	}

	env.advisor.loading = true
	rec = env.do(t, http.MethodGet, "/api/advice/status", "")
	if strings.TrimSpace(rec.Body.String()) != `{"loading":true}` {
		t.Errorf("status body = %s", rec.Body)
	}
}

func TestHealthReadyMetrics(t *testing.T) {
	env := newTestEnv(t, true, nil)

	if rec := env.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body)
	}
	if rec := env.do(t, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d", rec.Code)
	}
	env.kv.failPing = true
	if rec := env.do(t, http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with failing storage = %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/metrics", "")
	for _, want := range []string{
		"fintrack_http_requests_total 3",
		"fintrack_ledger_transactions 3",
		"fintrack_advice_loading 0",
	} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics missing %q:\n%s", want, rec.Body)
		}
	}
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	env := newTestEnv(t, false, func(o *Options) { o.RateLimitPerMinute = 2 })
	for i := 0; i < 2; i++ {
		if rec := env.do(t, http.MethodPost, "/api/transactions", `{"amount":1,"category":"x"}`); rec.Code != http.StatusCreated {
			t.Fatalf("request %d: status %d", i+1, rec.Code)
		}
	}
	if rec := env.do(t, http.MethodDelete, "/api/transactions/x", ""); rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/transactions", ""); rec.Code != http.StatusOK {
		t.Errorf("reads are not limited, got %d", rec.Code)
	}
}

func TestResponseHeaders(t *testing.T) {
	env := newTestEnv(t, false, nil)
	rec := env.do(t, http.MethodGet, "/api/summary", "")
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("API responses must not be cached")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id")
	}

	if rec := env.do(t, http.MethodPut, "/api/transactions", `{}`); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT status = %d, want 405", rec.Code)
	}
}

func TestRunMaintenanceStops(t *testing.T) {
	env := newTestEnv(t, false, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.srv.RunMaintenance(ctx, time.Millisecond) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("maintenance did not stop")
	}
}

func TestRunMaintenanceReloadsLedger(t *testing.T) {
	env := newTestEnv(t, false, nil)

	// Another process writing through the same backend.
	other, err := ledger.Open(context.Background(), env.kv, ledger.Options{Logger: applog.Discard()})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	d := decimal.NewFromInt(700)
	if _, err := other.Add(context.Background(), core.Draft{Amount: &d, Category: "Такси"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.srv.RunMaintenance(ctx, time.Millisecond) }()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.Now().Add(time.Second)
	for env.ledger.Revision() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("ledger was not reloaded")
		}
		time.Sleep(time.Millisecond)
	}

	rec := env.do(t, http.MethodGet, "/api/transactions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Такси") {
		t.Errorf("reloaded transaction missing: %s", rec.Body.String())
	}
}
