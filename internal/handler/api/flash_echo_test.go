package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"FlashScan/internal/domain/models"
	icache "FlashScan/internal/service/cache"
	"FlashScan/internal/services/flash"
)

type fakeAnalyzer struct {
	calls int
	q     models.AnalysisQuery
	bars  []models.Bar
	run   *models.AnalysisRun
	err   error
}

func (a *fakeAnalyzer) Analyze(_ context.Context, q models.AnalysisQuery, _ ...flash.Option) (*models.AnalysisRun, error) {
	a.calls++
	a.q = q
	return a.run, a.err
}

func (a *fakeAnalyzer) AnalyzeBars(_ context.Context, q models.AnalysisQuery, bars []models.Bar, _ ...flash.Option) (*models.AnalysisRun, error) {
	a.calls++
	a.q = q
	a.bars = bars
	return a.run, a.err
}

type fakeBars struct {
	q models.BarsQuery
}

func (b *fakeBars) GetBars(_ context.Context, q models.BarsQuery) (*models.BarsResult, error) {
	b.q = q
	return &models.BarsResult{Symbol: q.Symbol, Count: 0}, nil
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newEcho(h *FlashEchoHandler) *echo.Echo {
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return rec, env
}

func TestAnalyzeQueryMapping(t *testing.T) {
	a := &fakeAnalyzer{run: &models.AnalysisRun{RunID: "r1", Symbol: "EURUSD"}}
	e := newEcho(NewFlashEchoHandler(nil, a, &fakeBars{}, WithSignalDefaults(models.SignalParams{ADXLookback: 14, Warmup: 200})))

	rec, env := do(t, e, http.MethodGet, "/api/flash/analyze?symbol=EURUSD&tf=5m&from=2024-05-06T00:00:00Z&grace_period=9&warmup=50", "")
	if rec.Code != http.StatusOK || env.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var run models.AnalysisRun
	if err := json.Unmarshal(env.Data, &run); err != nil || run.RunID != "r1" {
		t.Fatalf("unexpected data %s (%v)", env.Data, err)
	}
	q := a.q
	if q.Symbol != "EURUSD" || q.Timeframe != "5m" || q.Engine.GracePeriod != 9 {
		t.Fatalf("unexpected query %+v", q)
	}
	if !q.From.Equal(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)) || !q.To.IsZero() {
		t.Fatalf("unexpected range %v..%v", q.From, q.To)
	}
	if q.Signals == nil || q.Signals.Warmup != 50 || q.Signals.ADXLookback != 14 {
		t.Fatalf("expected warmup override on defaults, got %+v", q.Signals)
	}
}

func TestAnalyzeDefaultsGrace(t *testing.T) {
	a := &fakeAnalyzer{run: &models.AnalysisRun{}}
	e := newEcho(NewFlashEchoHandler(nil, a, &fakeBars{}))
	if rec, _ := do(t, e, http.MethodGet, "/api/flash/analyze?symbol=X", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if a.q.Engine.GracePeriod != 7 || a.q.Timeframe != "1m" || a.q.Signals != nil {
		t.Fatalf("unexpected defaults %+v", a.q)
	}
}

func TestAnalyzeValidation(t *testing.T) {
	a := &fakeAnalyzer{run: &models.AnalysisRun{}}
	e := newEcho(NewFlashEchoHandler(nil, a, &fakeBars{}))

	cases := []string{
		"/api/flash/analyze",
		"/api/flash/analyze?symbol=X&tf=2m",
		"/api/flash/analyze?symbol=X&grace_period=-3",
		"/api/flash/analyze?symbol=X&from=yesterday",
		"/api/flash/analyze?symbol=X&warmup=abc",
	}
	for _, target := range cases {
		rec, env := do(t, e, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest || env.Status != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d %s", target, rec.Code, rec.Body.String())
		}
	}
	if a.calls != 0 {
		t.Fatalf("analyzer must not run on invalid input, ran %d times", a.calls)
	}
}

func TestAnalyzeErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&flash.BarError{Index: 4, Err: flash.ErrRegistryExhausted}, http.StatusUnprocessableEntity, "ERR_REGISTRY_EXHAUSTED"},
		{&flash.BarError{Index: 2, Err: flash.ErrMalformedBar}, http.StatusBadRequest, "ERR_BAD_REQUEST"},
		{flash.ErrInvalidConfiguration, http.StatusBadRequest, "ERR_BAD_REQUEST"},
		{context.DeadlineExceeded, http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tc := range cases {
		a := &fakeAnalyzer{err: tc.err}
		e := newEcho(NewFlashEchoHandler(nil, a, &fakeBars{}))
		rec, env := do(t, e, http.MethodGet, "/api/flash/analyze?symbol=X", "")
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
		var errs []struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(env.Data, &errs); err != nil || len(errs) != 1 || errs[0].Code != tc.code {
			t.Fatalf("%v: expected code %s, got %s", tc.err, tc.code, env.Data)
		}
	}
}

func TestAnalyzeCache(t *testing.T) {
	a := &fakeAnalyzer{run: &models.AnalysisRun{RunID: "cached"}}
	e := newEcho(NewFlashEchoHandler(nil, a, &fakeBars{}, WithCache(icache.NewTTLCache(16), time.Minute)))

	for i := 0; i < 3; i++ {
		rec, env := do(t, e, http.MethodGet, "/api/flash/analyze?symbol=X&to=1715040000", "")
		if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), "cached") {
			t.Fatalf("request %d: unexpected response %d %s", i, rec.Code, rec.Body.String())
		}
	}
	if a.calls != 1 {
		t.Fatalf("expected one analyzer call, got %d", a.calls)
	}
	do(t, e, http.MethodGet, "/api/flash/analyze?symbol=X&to=1715040000&grace_period=3", "")
	if a.calls != 2 {
		t.Fatalf("different params must miss the cache, calls=%d", a.calls)
	}
}

func TestAnalyzeRateLimit(t *testing.T) {
	a := &fakeAnalyzer{run: &models.AnalysisRun{}}
	e := newEcho(NewFlashEchoHandler(nil, a, &fakeBars{}, WithRateLimit(1, 0)))

	if rec, _ := do(t, e, http.MethodGet, "/api/flash/analyze?symbol=X", ""); rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}
	rec, env := do(t, e, http.MethodGet, "/api/flash/analyze?symbol=X", "")
	if rec.Code != http.StatusTooManyRequests || env.Status != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "" {
		t.Fatalf("no refill means no Retry-After, got %q", rec.Header().Get("Retry-After"))
	}

	e = newEcho(NewFlashEchoHandler(nil, a, &fakeBars{}, WithRateLimit(1, 0.5)))
	do(t, e, http.MethodGet, "/api/flash/analyze?symbol=X", "")
	rec, _ = do(t, e, http.MethodGet, "/api/flash/analyze?symbol=X", "")
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "2" {
		t.Fatalf("expected 429 with Retry-After 2, got %d %q", rec.Code, rec.Header().Get("Retry-After"))
	}
}

func TestAnalyzeBarsBody(t *testing.T) {
	a := &fakeAnalyzer{run: &models.AnalysisRun{RunID: "p"}}
	e := newEcho(NewFlashEchoHandler(nil, a, &fakeBars{}))

	body := `{"symbol":"EURUSD","grace_period":3,"bars":[
		{"time":"2024-05-06T00:00:00Z","open":1,"high":1.2,"low":0.9,"close":1.1,"trigger":"start"},
		{"time":"2024-05-06T00:01:00Z","open":1.1,"high":1.2,"low":1,"close":1,"trigger":"end"}]}`
	rec, _ := do(t, e, http.MethodPost, "/api/flash/analyze", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if len(a.bars) != 2 || a.bars[0].Trigger != models.TriggerStart || a.bars[1].Trigger != models.TriggerEnd {
		t.Fatalf("unexpected bars %+v", a.bars)
	}
	if a.q.Engine.GracePeriod != 3 {
		t.Fatalf("unexpected engine params %+v", a.q.Engine)
	}

	rec, _ = do(t, e, http.MethodPost, "/api/flash/analyze", `{"symbol":"EURUSD","bars":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty bars: expected 400, got %d", rec.Code)
	}
}

func TestGetBars(t *testing.T) {
	b := &fakeBars{}
	e := newEcho(NewFlashEchoHandler(nil, &fakeAnalyzer{}, b))

	rec, _ := do(t, e, http.MethodGet, "/api/bars?symbol=EURUSD&tf=15m&limit=25", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if b.q.Symbol != "EURUSD" || b.q.Timeframe != "15m" || b.q.Limit != 25 {
		t.Fatalf("unexpected query %+v", b.q)
	}
	if rec, _ := do(t, e, http.MethodGet, "/api/bars?symbol=EURUSD&limit=60000", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("limit above max: expected 400, got %d", rec.Code)
	}
}
