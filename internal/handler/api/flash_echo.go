package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"FlashScan/internal/domain/models"
	domrepo "FlashScan/internal/domain/repository"
	"FlashScan/internal/domain/service"
	icache "FlashScan/internal/service/cache"
	"FlashScan/internal/service/metrics"
	"FlashScan/internal/service/ratelimit"
	xhttp "FlashScan/pkg/http"
	xlogger "FlashScan/pkg/logger"
)

// FlashEchoHandler serves flash analysis and bar lookups.
type FlashEchoHandler struct {
	logger   *xlogger.Logger
	analyzer service.Analyzer
	bars     service.BarReader

	cache    icache.BytesCache
	cacheTTL time.Duration

	rl *ratelimit.Limiter

	signals models.SignalParams
}

type HandlerOption func(*FlashEchoHandler)

// WithCache caches GET analysis responses for ttl.
func WithCache(c icache.BytesCache, ttl time.Duration) HandlerOption {
	return func(h *FlashEchoHandler) {
		h.cache = c
		h.cacheTTL = ttl
	}
}

// WithRateLimit limits analysis requests per client IP. capacity 0 disables the limit.
func WithRateLimit(capacity int, refillPerSec float64) HandlerOption {
	return func(h *FlashEchoHandler) { h.rl = ratelimit.New(capacity, refillPerSec) }
}

// WithSignalDefaults sets the preprocessor parameters a warmup override is applied to.
func WithSignalDefaults(p models.SignalParams) HandlerOption {
	return func(h *FlashEchoHandler) { h.signals = p }
}

func NewFlashEchoHandler(logger *xlogger.Logger, analyzer service.Analyzer, bars service.BarReader, opts ...HandlerOption) *FlashEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &FlashEchoHandler{logger: logger, analyzer: analyzer, bars: bars}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *FlashEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/flash/analyze", h.Analyze)
	g.POST("/flash/analyze", h.AnalyzeBars)
	g.GET("/bars", h.GetBars)
}

// Query builds the analysis query of req. It is shared with the websocket replay.
func (h *FlashEchoHandler) Query(req *models.AnalyzeRequest) (models.AnalysisQuery, *xhttp.AppError) {
	from, to, bad := xhttp.ParseRange(req.From, req.To)
	if bad != "" {
		return models.AnalysisQuery{}, xhttp.BadRequestErrorf("%s is not a valid time", bad).WithField(bad)
	}
	q := models.AnalysisQuery{
		Symbol:    req.Symbol,
		Timeframe: string(domrepo.NormalizeTimeframe(req.TF)),
		From:      from,
		To:        to,
		Engine:    models.EngineParams{GracePeriod: req.GracePeriod, MaxActive: req.MaxActive},
	}
	if req.Warmup != "" {
		n, err := strconv.Atoi(req.Warmup)
		if err != nil || n < 0 {
			return models.AnalysisQuery{}, xhttp.BadRequestError("warmup must be a non-negative integer").WithField("warmup")
		}
		sp := h.signals
		sp.Warmup = n
		q.Signals = &sp
	}
	return q, nil
}

// allow sets Retry-After on rejection.
func (h *FlashEchoHandler) allow(c echo.Context, endpoint string) bool {
	ok, wait := h.rl.Allow(c.RealIP() + ":" + endpoint)
	if !ok && wait > 0 {
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	}
	return ok
}

func (h *FlashEchoHandler) Analyze(c echo.Context) error {
	const endpoint = "analyze"
	start := time.Now()
	defer func() { metrics.AnalysisLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, endpoint) {
		h.logger.Warn("flash.analyze rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.TooManyRequestsResponse(c)
	}
	q, appErr := h.Query(req)
	if appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}

	key := icache.Key("analyze", q.Symbol, q.Timeframe, req.From, req.To,
		strconv.Itoa(req.GracePeriod), strconv.Itoa(req.MaxActive), req.Warmup)
	if b, ok := h.cached(c, endpoint, key); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	run, err := h.analyzer.Analyze(c.Request().Context(), q)
	if err != nil {
		metrics.AnalysisErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("flash.analyze error", xlogger.String("symbol", q.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, ToAppError(err))
	}
	h.store(c, endpoint, key, run)
	return xhttp.SuccessResponse(c, run)
}

func (h *FlashEchoHandler) AnalyzeBars(c echo.Context) error {
	const endpoint = "analyze_bars"
	start := time.Now()
	defer func() { metrics.AnalysisLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.AnalyzeBarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, endpoint) {
		h.logger.Warn("flash.analyze_bars rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.TooManyRequestsResponse(c)
	}

	q := models.AnalysisQuery{
		Symbol: req.Symbol,
		Engine: models.EngineParams{GracePeriod: req.GracePeriod, MaxActive: req.MaxActive},
	}
	run, err := h.analyzer.AnalyzeBars(c.Request().Context(), q, req.Bars)
	if err != nil {
		metrics.AnalysisErrors.WithLabelValues(endpoint).Inc()
		h.logger.Warn("flash.analyze_bars error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, ToAppError(err))
	}
	return xhttp.SuccessResponse(c, run)
}

func (h *FlashEchoHandler) GetBars(c echo.Context) error {
	req := &models.BarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, bad := xhttp.ParseRange(req.From, req.To)
	if bad != "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%s is not a valid time", bad).WithField(bad))
	}
	res, err := h.bars.GetBars(c.Request().Context(), models.BarsQuery{
		Symbol:    req.Symbol,
		Timeframe: req.TF,
		From:      from,
		To:        to,
		Limit:     req.Limit,
	})
	if err != nil {
		h.logger.Error("bars usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, ToAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FlashEchoHandler) cached(c echo.Context, endpoint, key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(c.Request().Context(), key)
	if err != nil {
		h.logger.Warn("flash."+endpoint+" cache_get_error", xlogger.Error(err))
		return nil, false
	}
	if !ok {
		metrics.CacheHits.WithLabelValues(endpoint, "miss").Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(endpoint, "hit").Inc()
	h.logger.Debug("flash."+endpoint+" cache_hit", xlogger.String("key", key))
	return b, true
}

func (h *FlashEchoHandler) store(c echo.Context, endpoint, key string, data interface{}) {
	if h.cache == nil || h.cacheTTL <= 0 {
		return
	}
	b, err := json.Marshal(xhttp.APIResponse{Status: http.StatusOK, Message: http.StatusText(http.StatusOK), Data: data})
	if err != nil {
		h.logger.Error("flash."+endpoint+" marshal_error", xlogger.Error(err))
		return
	}
	if err := h.cache.SetBytes(c.Request().Context(), key, b, h.cacheTTL); err != nil {
		h.logger.Warn("flash."+endpoint+" cache_set_error", xlogger.Error(err))
	}
}

var _ xhttp.Handler = (*FlashEchoHandler)(nil)
