package repository

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"FlashScan/internal/domain/models"
	domrepo "FlashScan/internal/domain/repository"
	applogger "FlashScan/pkg/logger"
	"FlashScan/pkg/util"
)

// CSVBarSource implements BarSource over a single CSV file (one symbol). Two layouts are accepted:
// the FXCM historical export (Date, Time, bid/ask OHLC, Total Ticks; bid prices are used) and a
// generic time,open,high,low,close[,volume][,trigger] file.
type CSVBarSource struct {
	path string
	l    *applogger.Logger

	once sync.Once
	bars []models.Bar
	err  error
}

func NewCSVBarSource(path string) *CSVBarSource {
	return &CSVBarSource{path: path}
}

// SetLogger injects a structured logger.
func (s *CSVBarSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CSVBarSource) load() ([]models.Bar, error) {
	s.once.Do(func() {
		start := time.Now()
		f, err := os.Open(s.path)
		if err != nil {
			s.err = fmt.Errorf("open csv: %w", err)
			return
		}
		defer f.Close()
		s.bars, s.err = ReadBars(f)
		if s.l != nil {
			if s.err != nil {
				s.l.Error("csv load error", applogger.String("path", s.path), applogger.Error(s.err))
			} else {
				s.l.Info("csv load ok",
					applogger.String("path", s.path),
					applogger.Int("rows", len(s.bars)),
					applogger.Duration("duration_ms", time.Since(start)),
				)
			}
		}
	})
	return s.bars, s.err
}

// GetBars returns the bars within [from, to]. Zero bounds are open. symbol and tf are not
// interpreted: the file holds one series.
func (s *CSVBarSource) GetBars(_ context.Context, _ string, from, to time.Time, _ domrepo.Timeframe) ([]models.Bar, error) {
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]models.Bar, 0, len(all))
	for _, b := range all {
		if !from.IsZero() && b.Time.Before(from) {
			continue
		}
		if !to.IsZero() && b.Time.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *CSVBarSource) GetLatestNBars(_ context.Context, _ string, n int, _ domrepo.Timeframe) ([]models.Bar, error) {
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	if n <= 0 || n >= len(all) {
		return append([]models.Bar(nil), all...), nil
	}
	return append([]models.Bar(nil), all[len(all)-n:]...), nil
}

func (s *CSVBarSource) GetBarsBefore(_ context.Context, _ string, t time.Time, n int, _ domrepo.Timeframe) ([]models.Bar, error) {
	if n <= 0 {
		return nil, nil
	}
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]models.Bar, 0, n)
	for _, b := range all {
		if !b.Time.Before(t) {
			continue
		}
		if len(out) == n {
			out = append(out[:0], out[1:]...)
		}
		out = append(out, b)
	}
	return out, nil
}

type csvLayout struct {
	date, clock          int // fxcm only
	ts                   int
	open, high, low, cls int
	volume, trigger      int
}

var errNoHeader = errors.New("csv: missing or unrecognised header")

func detectLayout(header []string) (csvLayout, error) {
	idx := map[string]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		idx[h] = i
	}
	col := func(names ...string) int {
		for _, n := range names {
			if i, ok := idx[n]; ok {
				return i
			}
		}
		return -1
	}
	l := csvLayout{date: -1, clock: -1, ts: -1, trigger: col("trigger", "signal")}
	if col("openbid") >= 0 {
		l.date, l.clock = col("date"), col("time")
		l.open, l.high, l.low, l.cls = col("openbid"), col("highbid"), col("lowbid"), col("closebid")
		l.volume = col("total ticks", "vol", "volume")
		if l.date < 0 || l.clock < 0 {
			return l, errNoHeader
		}
	} else {
		l.ts = col("time", "timestamp", "datetime", "date")
		l.open, l.high, l.low, l.cls = col("open"), col("high"), col("low"), col("close")
		l.volume = col("volume", "vol")
		if l.ts < 0 {
			return l, errNoHeader
		}
	}
	if l.open < 0 || l.high < 0 || l.low < 0 || l.cls < 0 {
		return l, errNoHeader
	}
	return l, nil
}

// ReadBars parses a bar CSV (UTF-8 or BOM-marked UTF-16). Rows are returned in file order; any
// unparsable row is an error.
func ReadBars(r io.Reader) ([]models.Bar, error) {
	br := bufio.NewReader(r)
	if b, _ := br.Peek(2); len(b) == 2 && ((b[0] == 0xFF && b[1] == 0xFE) || (b[0] == 0xFE && b[1] == 0xFF)) {
		br = bufio.NewReader(transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errNoHeader
		}
		return nil, fmt.Errorf("csv header: %w", err)
	}
	layout, err := detectLayout(header)
	if err != nil {
		return nil, err
	}

	out := make([]models.Bar, 0, 4096)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		b, err := layout.parse(rec)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (l csvLayout) parse(rec []string) (models.Bar, error) {
	field := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(strings.Trim(rec[i], `"`))
	}
	num := func(name string, i int) (float64, error) {
		v, err := strconv.ParseFloat(field(i), 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		return v, nil
	}

	var b models.Bar
	raw := field(l.ts)
	if l.date >= 0 {
		raw = field(l.date) + " " + field(l.clock)
	}
	ts, ok := util.ParseTime(raw)
	if !ok {
		return b, fmt.Errorf("time: cannot parse %q", raw)
	}
	b.Time = ts.UTC()

	var err error
	if b.Open, err = num("open", l.open); err != nil {
		return b, err
	}
	if b.High, err = num("high", l.high); err != nil {
		return b, err
	}
	if b.Low, err = num("low", l.low); err != nil {
		return b, err
	}
	if b.Close, err = num("close", l.cls); err != nil {
		return b, err
	}
	if l.volume >= 0 && field(l.volume) != "" {
		if b.Volume, err = num("volume", l.volume); err != nil {
			return b, err
		}
	}
	if l.trigger >= 0 {
		if b.Trigger, err = models.ParseTrigger(field(l.trigger)); err != nil {
			return b, err
		}
	}
	return b, nil
}
