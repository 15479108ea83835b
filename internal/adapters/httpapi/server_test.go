package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	memclock "github.com/sura-tech/quotes-api/internal/adapters/memory/clock"
	memidempotency "github.com/sura-tech/quotes-api/internal/adapters/memory/idempotency"
	memoutbox "github.com/sura-tech/quotes-api/internal/adapters/memory/outbox"
	memquoterepo "github.com/sura-tech/quotes-api/internal/adapters/memory/quoterepo"
	memtx "github.com/sura-tech/quotes-api/internal/adapters/memory/tx"
	appidempotency "github.com/sura-tech/quotes-api/internal/app/idempotency"
	"github.com/sura-tech/quotes-api/internal/app/quotes"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	quotesRepo := memquoterepo.NewRepo()
	idemStore := memidempotency.NewStore()
	outboxStore := memoutbox.NewStore()
	clk := memclock.NewManualClock(time.Unix(1_700_000_000, 0))
	runner := memtx.NewRunner(quotesRepo, idemStore, outboxStore)

	idemSvc := appidempotency.NewService(idemStore, runner, clk, 24*time.Hour)
	quoteSvc := quotes.NewService(quotesRepo, outboxStore, idemSvc, clk)

	return NewRouter(NewServer(quoteSvc, zap.NewNop()))
}

const validBody = `{
	"documentId": "DOC-001",
	"currency": "THB",
	"customer": {"customerId": "cust-1", "email": "buyer@example.com"},
	"items": [
		{"sku": "SKU-A", "name": "Widget", "quantity": 2, "unitPrice": 100, "taxRate": 0.07},
		{"sku": "SKU-B", "name": "Gadget", "quantity": 1, "unitPrice": 50}
	],
	"metadata": {"channel": "web"}
}`

func postQuote(t *testing.T, h http.Handler, key string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeQuote(t *testing.T, rec *httptest.ResponseRecorder) QuoteResponse {
	t.Helper()
	var out QuoteResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return out
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var out ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode error response: %v (body %s)", err, rec.Body.String())
	}
	return out
}

func TestCreateQuote_Created(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)
	rec := postQuote(t, h, uuid.NewString(), validBody)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Idempotency-Status"); got != "created" {
		t.Fatalf("Idempotency-Status %q", got)
	}

	q := decodeQuote(t, rec)
	if q.QuoteID == "" || q.Status != "ISSUED" {
		t.Fatalf("unexpected body: %+v", q)
	}
	if want := "/api/v1/quotes/" + q.QuoteID; rec.Header().Get("Location") != want {
		t.Fatalf("Location %q, want %q", rec.Header().Get("Location"), want)
	}
	if q.Totals.Subtotal != 250 {
		t.Fatalf("subtotal %v", q.Totals.Subtotal)
	}
	if len(q.Items) != 2 || q.Items[0].LineTotal != 200 {
		t.Fatalf("items: %+v", q.Items)
	}
}

func TestCreateQuote_ReplayReturns200(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)
	key := uuid.NewString()

	first := postQuote(t, h, key, validBody)
	if first.Code != http.StatusCreated {
		t.Fatalf("first call status %d", first.Code)
	}
	second := postQuote(t, h, key, validBody)
	if second.Code != http.StatusOK {
		t.Fatalf("replay status %d, body %s", second.Code, second.Body.String())
	}
	if got := second.Header().Get("Idempotency-Status"); got != "replayed" {
		t.Fatalf("Idempotency-Status %q", got)
	}
	if second.Header().Get("Location") != "" {
		t.Fatalf("replay must not carry a Location header")
	}

	q1 := decodeQuote(t, first)
	q2 := decodeQuote(t, second)
	if q1.QuoteID != q2.QuoteID {
		t.Fatalf("replay returned a different quote: %s vs %s", q1.QuoteID, q2.QuoteID)
	}
}

func TestCreateQuote_ConflictOnReusedKey(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)
	key := uuid.NewString()

	if rec := postQuote(t, h, key, validBody); rec.Code != http.StatusCreated {
		t.Fatalf("first call status %d", rec.Code)
	}

	other := strings.Replace(validBody, "DOC-001", "DOC-002", 1)
	rec := postQuote(t, h, key, other)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	if er := decodeError(t, rec); er.Error.Code != "IDEMPOTENCY_CONFLICT" {
		t.Fatalf("code %q", er.Error.Code)
	}
}

func TestCreateQuote_MissingIdempotencyKey(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)
	rec := postQuote(t, h, "", validBody)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if er := decodeError(t, rec); er.Error.Code != "IDEMPOTENCY_KEY_REQUIRED" {
		t.Fatalf("code %q", er.Error.Code)
	}
}

func TestCreateQuote_MalformedIdempotencyKey(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)
	rec := postQuote(t, h, "not-a-uuid", validBody)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if er := decodeError(t, rec); er.Error.Code != "IDEMPOTENCY_KEY_INVALID" {
		t.Fatalf("code %q", er.Error.Code)
	}
}

func TestCreateQuote_ValidationErrors(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)
	body := `{
		"documentId": "",
		"currency": "baht",
		"customer": {"customerId": ""},
		"items": [{"sku": "", "name": "Widget", "quantity": 0, "unitPrice": -1, "taxRate": 2}]
	}`
	rec := postQuote(t, h, uuid.NewString(), body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}

	er := decodeError(t, rec)
	if er.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("code %q", er.Error.Code)
	}
	details, err := er.Error.Details.Get()
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	fe, ok := details["fieldErrors"].(map[string]any)
	if !ok {
		t.Fatalf("fieldErrors missing: %+v", details)
	}
	for _, field := range []string{
		"documentId", "currency", "customer.customerId",
		"items[0].sku", "items[0].quantity", "items[0].unitPrice", "items[0].taxRate",
	} {
		if _, ok := fe[field]; !ok {
			t.Errorf("expected field error for %q, got %+v", field, fe)
		}
	}
}

func TestCreateQuote_InvalidEmail(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)
	body := strings.Replace(validBody, "buyer@example.com", "not-an-email", 1)
	rec := postQuote(t, h, uuid.NewString(), body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	if er := decodeError(t, rec); er.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("code %q", er.Error.Code)
	}
}

func TestCreateQuote_MalformedBody(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)
	rec := postQuote(t, h, uuid.NewString(), `{"documentId": `)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if er := decodeError(t, rec); er.Error.Code != "BAD_REQUEST" {
		t.Fatalf("code %q", er.Error.Code)
	}
}

func TestGetQuote(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)
	created := decodeQuote(t, postQuote(t, h, uuid.NewString(), validBody))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes/"+created.QuoteID, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	got := decodeQuote(t, rec)
	if got.QuoteID != created.QuoteID || got.DocumentID != "DOC-001" {
		t.Fatalf("unexpected quote: %+v", got)
	}
}

func TestGetQuote_NotFound(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
	if er := decodeError(t, rec); er.Error.Code != "QUOTE_NOT_FOUND" {
		t.Fatalf("code %q", er.Error.Code)
	}
}

func TestRequestID_EchoedAndGenerated(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestErrorBody_CarriesRequestID(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", bytes.NewBufferString(validBody))
	req.Header.Set("X-Request-Id", "req-456")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	er := decodeError(t, rec)
	rid, err := er.Error.RequestId.Get()
	if err != nil || rid != "req-456" {
		t.Fatalf("request id in body: %q err=%v", rid, err)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("status %d body %q", rec.Code, rec.Body.String())
	}
}
