package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"financeai/internal/auth"
	"financeai/internal/core"
	"financeai/internal/insights"
	"financeai/internal/ledger"
	"financeai/internal/ledger/memory"
	"financeai/internal/log"
	"financeai/internal/services"
)

const testSecret = "test-secret"

type brokenStore struct{}

func (brokenStore) Insert(context.Context, string, core.NewTransaction) (core.Transaction, error) {
	return core.Transaction{}, ledger.Wrap("insert", errors.New("connection reset"))
}

func (brokenStore) Query(context.Context, string, ledger.QueryOptions) ([]core.Transaction, error) {
	return nil, ledger.Wrap("query", errors.New("connection reset"))
}

type testEnv struct {
	srv   *Server
	store ledger.Store
	token string
}

func newTestEnv(t *testing.T, store ledger.Store, gen insights.Generator) *testEnv {
	t.Helper()
	logger := log.Discard()
	verifier := auth.NewVerifier(testSecret)
	token, err := verifier.Sign(auth.User{ID: "user-1", Email: "a@example.com"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if gen == nil {
		gen = insights.GeneratorFunc(func(context.Context, insights.Payload) (string, error) {
			return `Sure! {"insights":[{"type":"warning","title":"Food","description":"High food spend"}]}`, nil
		})
	}
	pipeline := insights.NewPipeline(gen, logger)
	svc := Services{
		Ledger:    services.NewLedgerService(store, ledger.NewBroker(), logger),
		Dashboard: services.NewDashboardService(store, logger),
		Insights:  services.NewInsightService(store, pipeline, services.InsightOptions{}, logger),
	}
	srv := NewServer(":0", verifier, svc, Options{
		RateLimitPerMin: 1000,
		Readiness: []ReadinessCheck{{Name: "ledger", Check: func(context.Context) error { return nil }}},
	}, logger)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, store: store, token: token}
}

func (e *testEnv) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if authed {
		r.Header.Set("Authorization", "Bearer "+e.token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, r)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, memory.New(), nil)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := env.do(t, http.MethodGet, path, "", false)
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}
	metrics := env.do(t, http.MethodGet, "/metrics", "", false).Body.String()
	for _, name := range []string{"http_requests_total", "insight_cache_hits_total", "insight_cache_misses_total"} {
		if !strings.Contains(metrics, "# TYPE "+name) {
			t.Errorf("/metrics missing %s", name)
		}
	}
	if rr := env.do(t, http.MethodGet, "/nowhere", "", false); rr.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d", rr.Code)
	}
}

func TestReadyReportsFailingCheck(t *testing.T) {
	env := newTestEnv(t, memory.New(), nil)
	env.srv.ready = append(env.srv.ready, ReadinessCheck{Name: "amqp", Check: func(context.Context) error {
		return errors.New("not connected")
	}})

	rr := env.do(t, http.MethodGet, "/readyz", "", false)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	body := decode[map[string]any](t, rr)
	if body["status"] != "not_ready" {
		t.Errorf("body = %v", body)
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	env := newTestEnv(t, memory.New(), nil)

	for _, path := range []string{"/api/dashboard", "/api/transactions", "/api/insights", "/api/insights/status"} {
		rr := env.do(t, http.MethodGet, path, "", false)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s status = %d, want 401", path, rr.Code)
		}
	}

	r := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	r.Header.Set("Authorization", "Bearer not-a-jwt")
	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, r)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("invalid token status = %d, want 401", rr.Code)
	}
}

func TestCreateAndListTransactions(t *testing.T) {
	env := newTestEnv(t, memory.New(), nil)

	rr := env.do(t, http.MethodPost, "/api/transactions", `{"amount":"1500","category":"food","description":"Groceries"}`, true)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[struct {
		Transaction core.Transaction `json:"transaction"`
	}](t, rr)
	if created.Transaction.ID == "" || created.Transaction.UserID != "user-1" {
		t.Errorf("created = %+v", created.Transaction)
	}

	rr = env.do(t, http.MethodGet, "/api/transactions?limit=5", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	list := decode[struct {
		Transactions []core.Transaction `json:"transactions"`
	}](t, rr)
	if len(list.Transactions) != 1 || list.Transactions[0].ID != created.Transaction.ID {
		t.Errorf("list = %+v", list.Transactions)
	}

	rr = env.do(t, http.MethodGet, "/api/dashboard", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", rr.Code)
	}
	dash := decode[services.Dashboard](t, rr)
	if dash.Aggregates.MonthlyExpenses.String() != "1500" {
		t.Errorf("dashboard expenses = %s", dash.Aggregates.MonthlyExpenses)
	}
}

func TestCreateTransactionErrors(t *testing.T) {
	tests := []struct {
		name       string
		store      ledger.Store
		body       string
		wantStatus int
		wantField  string
	}{
		{"zero amount", memory.New(), `{"amount":"0","category":"food","description":"x"}`, http.StatusUnprocessableEntity, "amount"},
		{"too large", memory.New(), `{"amount":"10000001","category":"food","description":"x"}`, http.StatusUnprocessableEntity, "amount"},
		{"unknown category", memory.New(), `{"amount":"1","category":"crypto","description":"x"}`, http.StatusUnprocessableEntity, "category"},
		{"empty description", memory.New(), `{"amount":"1","category":"food","description":"   "}`, http.StatusUnprocessableEntity, "description"},
		{"malformed", memory.New(), `{"amount":`, http.StatusBadRequest, ""},
		{"store failure", brokenStore{}, `{"amount":"1","category":"food","description":"x"}`, http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.store, nil)
			rr := env.do(t, http.MethodPost, "/api/transactions", tt.body, true)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			body := decode[ErrorBody](t, rr)
			if body.Field != tt.wantField {
				t.Errorf("field = %q, want %q", body.Field, tt.wantField)
			}
			if strings.Contains(body.Error, "connection reset") {
				t.Errorf("store details leaked: %q", body.Error)
			}
		})
	}
}

func TestInsightsEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		genErr     error
		method     string
		wantStatus int
		wantError  string
	}{
		{"get success", nil, http.MethodGet, http.StatusOK, ""},
		{"post success", nil, http.MethodPost, http.StatusOK, ""},
		{"get rate limited", &insights.StatusError{StatusCode: 429}, http.MethodGet, http.StatusTooManyRequests, insights.MsgRateLimited},
		{"post quota", &insights.StatusError{StatusCode: 402}, http.MethodPost, http.StatusPaymentRequired, insights.MsgQuotaExhausted},
		{"get upstream failure", &insights.StatusError{StatusCode: 503}, http.MethodGet, http.StatusBadGateway, insights.MsgGenerationFailed},
		{"post upstream failure", errors.New("timeout"), http.MethodPost, http.StatusInternalServerError, insights.MsgGenerationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gen insights.Generator
			if tt.genErr != nil {
				gen = insights.GeneratorFunc(func(context.Context, insights.Payload) (string, error) {
					return "", tt.genErr
				})
			}
			env := newTestEnv(t, memory.New(), gen)

			body := ""
			if tt.method == http.MethodPost {
				body = `{"transactions":[{"category":"food","amount":1500,"description":"Groceries"}]}`
			}
			rr := env.do(t, tt.method, "/api/insights", body, true)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantError != "" {
				if got := decode[ErrorBody](t, rr); got.Error != tt.wantError {
					t.Errorf("error = %q, want %q", got.Error, tt.wantError)
				}
				return
			}
			got := decode[struct {
				Insights []core.Insight `json:"insights"`
			}](t, rr)
			if len(got.Insights) != 1 || got.Insights[0].Type != core.InsightWarning {
				t.Errorf("insights = %+v", got.Insights)
			}

			status := decode[services.InsightStatus](t, env.do(t, http.MethodGet, "/api/insights/status", "", true))
			if status.State != insights.StateSucceeded {
				t.Errorf("status state = %s", status.State)
			}
		})
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	env := newTestEnv(t, memory.New(), nil)
	rr := env.do(t, http.MethodGet, "/healthz", "", false)

	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}
