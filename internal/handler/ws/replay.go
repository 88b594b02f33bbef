package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"FlashScan/internal/domain/models"
	"FlashScan/internal/domain/service"
	"FlashScan/internal/handler/api"
	"FlashScan/internal/service/metrics"
	"FlashScan/internal/services/flash"
	xhttp "FlashScan/pkg/http"
	xlogger "FlashScan/pkg/logger"
)

const writeWait = 10 * time.Second

// Frame is one websocket message of a replay stream.
type Frame struct {
	Type    string             `json:"type"` // row | summary | error
	Index   int                `json:"index,omitempty"`
	Bar     *models.Bar        `json:"bar,omitempty"`
	Row     *models.TallyRow   `json:"row,omitempty"`
	Summary *models.RunSummary `json:"summary,omitempty"`
	Error   *xhttp.AppError    `json:"error,omitempty"`
}

// ReplayHandler streams the tally row of every analysed bar while the engine runs, then a
// final summary frame.
type ReplayHandler struct {
	logger   *xlogger.Logger
	analyzer service.Analyzer
	queries  *api.FlashEchoHandler
	upgrader websocket.Upgrader
}

func NewReplayHandler(logger *xlogger.Logger, analyzer service.Analyzer, queries *api.FlashEchoHandler) *ReplayHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ReplayHandler{
		logger:   logger,
		analyzer: analyzer,
		queries:  queries,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *ReplayHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/flash/replay", h.Replay)
}

func (h *ReplayHandler) Replay(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	q, appErr := h.queries.Query(req)
	if appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("replay upgrade error", xlogger.Error(err))
		return nil
	}
	defer conn.Close()
	metrics.ReplayStreams.Inc()
	defer metrics.ReplayStreams.Dec()

	// A hijacked request context outlives the client, so a failed write cancels the run
	// before it is persisted or published.
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	var writeErr error
	send := func(f Frame) {
		if writeErr != nil {
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if writeErr = conn.WriteJSON(f); writeErr != nil {
			cancel()
		}
	}

	observer := func(i int, bar models.Bar, row models.TallyRow) {
		send(Frame{Type: "row", Index: i, Bar: &bar, Row: &row})
	}
	run, err := h.analyzer.Analyze(ctx, q, flash.WithObserver(observer))
	switch {
	case err != nil && writeErr == nil:
		h.logger.Warn("replay analyze error", xlogger.String("symbol", q.Symbol), xlogger.Error(err))
		send(Frame{Type: "error", Error: api.ToAppError(err)})
	case err == nil:
		s := run.Summary()
		send(Frame{Type: "summary", Summary: &s})
	}
	if writeErr != nil {
		h.logger.Warn("replay write error", xlogger.String("symbol", q.Symbol), xlogger.Error(writeErr))
		return nil
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(writeWait))
	return nil
}

var _ xhttp.Handler = (*ReplayHandler)(nil)
