package ws

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"FlashScan/internal/domain/models"
	"FlashScan/internal/handler/api"
	"FlashScan/internal/services/flash"
)

var t0 = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

// engineAnalyzer runs the real engine over a fixed series so observer options take effect.
type engineAnalyzer struct {
	bars []models.Bar
	done chan error
}

func (a *engineAnalyzer) Analyze(ctx context.Context, q models.AnalysisQuery, opts ...flash.Option) (*models.AnalysisRun, error) {
	res, err := flash.Run(q.Engine, a.bars, append([]flash.Option{flash.WithContext(ctx)}, opts...)...)
	if a.done != nil {
		a.done <- err
	}
	if err != nil {
		return nil, err
	}
	return &models.AnalysisRun{RunID: "replay", Symbol: q.Symbol, Engine: q.Engine, Bars: len(a.bars), Result: res}, nil
}

func (a *engineAnalyzer) AnalyzeBars(ctx context.Context, q models.AnalysisQuery, _ []models.Bar, opts ...flash.Option) (*models.AnalysisRun, error) {
	return a.Analyze(ctx, q, opts...)
}

func series() []models.Bar {
	mk := func(i int, o, h, l, c float64, trig models.Trigger) models.Bar {
		return models.Bar{Time: t0.Add(time.Duration(i) * time.Minute), Open: o, High: h, Low: l, Close: c, Trigger: trig}
	}
	return []models.Bar{
		mk(0, 10, 10.2, 9.8, 10, models.TriggerStart),
		mk(1, 10, 10.5, 9, 9.5, models.TriggerEnd),
		mk(2, 9.5, 9.8, 9, 9.2, models.TriggerNone),
		mk(3, 10, 10.5, 9.5, 10.2, models.TriggerNone),
	}
}

func startServer(t *testing.T, bars []models.Bar) *httptest.Server {
	t.Helper()
	return serve(t, &engineAnalyzer{bars: bars})
}

func serve(t *testing.T, a *engineAnalyzer) *httptest.Server {
	t.Helper()
	e := echo.New()
	NewReplayHandler(nil, a, api.NewFlashEchoHandler(nil, a, nil)).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/flash/replay?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestReplayStreamsRowsThenSummary(t *testing.T) {
	srv := startServer(t, series())
	conn := dial(t, srv, "symbol=EURUSD&grace_period=2")

	var frames []Frame
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		frames = append(frames, f)
		if f.Type != "row" {
			break
		}
	}
	if len(frames) != 5 {
		t.Fatalf("expected 4 rows and a summary, got %d frames", len(frames))
	}
	for i, f := range frames[:4] {
		if f.Type != "row" || f.Index != i || f.Row == nil || f.Bar == nil {
			t.Fatalf("frame %d: unexpected %+v", i, f)
		}
		if !f.Row.Time.Equal(f.Bar.Time) {
			t.Fatalf("frame %d: row time %v does not match bar %v", i, f.Row.Time, f.Bar.Time)
		}
	}
	last := frames[4]
	if last.Type != "summary" || last.Summary == nil {
		t.Fatalf("expected summary frame, got %+v", last)
	}
	if last.Summary.RunID != "replay" || last.Summary.Final.ClosedBullish != 1 || last.Summary.Bars != 4 {
		t.Fatalf("unexpected summary %+v", last.Summary)
	}
}

func TestReplayErrorFrame(t *testing.T) {
	bars := series()
	bars[2].Time = bars[1].Time
	srv := startServer(t, bars)
	conn := dial(t, srv, "symbol=EURUSD&grace_period=2")

	var f Frame
	for {
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read: %v", err)
		}
		if f.Type != "row" {
			break
		}
	}
	if f.Type != "error" || f.Error == nil || f.Error.Code != "ERR_BAD_REQUEST" {
		t.Fatalf("expected bad request error frame, got %+v", f)
	}
}

func TestReplayStopsWhenClientLeaves(t *testing.T) {
	// Enough frames to fill the socket buffers long before the pass ends.
	bars := make([]models.Bar, 100000)
	for i := range bars {
		bars[i] = models.Bar{Time: t0.Add(time.Duration(i) * time.Minute), Open: 10, High: 10.2, Low: 9.8, Close: 10}
	}
	a := &engineAnalyzer{bars: bars, done: make(chan error, 1)}
	srv := serve(t, a)
	conn := dial(t, srv, "symbol=EURUSD&grace_period=2")

	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read: %v", err)
	}
	conn.Close()

	select {
	case err := <-a.done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected the pass to be cancelled, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("analysis still running after the client left")
	}
}

func TestReplayRejectsBadQueryBeforeUpgrade(t *testing.T) {
	srv := startServer(t, series())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/flash/replay?grace_period=2"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected handshake failure without symbol")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("expected 400 response, got %+v", resp)
	}
}
