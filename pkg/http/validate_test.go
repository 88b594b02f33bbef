package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type rangeRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	From   string `query:"from" validate:"omitempty,timestr"`
	Grace  int    `query:"grace_period" default:"7" validate:"gte=1"`
}

func bindQuery(t *testing.T, target string) (*rangeRequest, []ValidationError) {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
	req := &rangeRequest{}
	res := ReadAndValidateRequest(c, req)
	if res == nil {
		return req, nil
	}
	errs, ok := res.([]ValidationError)
	if !ok {
		t.Fatalf("unexpected validation result %T", res)
	}
	return req, errs
}

func TestReadAndValidateDefaults(t *testing.T) {
	req, errs := bindQuery(t, "/?symbol=EURUSD&from=2024-05-06T00:00:00Z")
	if errs != nil {
		t.Fatalf("unexpected errors %+v", errs)
	}
	if req.Grace != 7 {
		t.Fatalf("expected default grace 7, got %d", req.Grace)
	}
}

func TestReadAndValidateWireNames(t *testing.T) {
	_, errs := bindQuery(t, "/?from=last-week")
	if len(errs) != 2 {
		t.Fatalf("expected two errors, got %+v", errs)
	}
	got := map[string]string{}
	for _, e := range errs {
		got[e.Field] = e.Code
	}
	if got["symbol"] != "ERR_REQUIRED" || got["from"] != "ERR_TIMESTR" {
		t.Fatalf("unexpected errors %+v", errs)
	}
}

func TestReadAndValidateBindError(t *testing.T) {
	_, errs := bindQuery(t, "/?symbol=X&grace_period=abc")
	if len(errs) != 1 || errs[0].Code != "ERR_BIND" {
		t.Fatalf("expected bind error, got %+v", errs)
	}
}
