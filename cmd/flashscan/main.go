// Command flashscan runs the flash engine over a bar CSV and writes the results next to it.
//
//	flashscan -in EURUSD_m1.csv -out results/ -grace 7
//
// Without -triggers the flash triggers are derived from ADX; with it the trigger column of the
// file is used as is.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"FlashScan/internal/domain/models"
	"FlashScan/internal/domain/repository"
	internalrepo "FlashScan/internal/repository"
	"FlashScan/internal/services/signals"
	"FlashScan/internal/usecase"
	applogger "FlashScan/pkg/logger"
)

func main() {
	var (
		in        = flag.String("in", "", "input bar CSV (required)")
		out       = flag.String("out", "results", "output directory")
		symbol    = flag.String("symbol", "", "symbol name (default: input file name)")
		grace     = flag.Int("grace", 7, "grace period in bars")
		maxActive = flag.Int("max-active", 0, "flash registry capacity (0 = unbounded)")
		triggers  = flag.Bool("triggers", false, "use the trigger column of the input instead of ADX")
		sqlite    = flag.String("sqlite", "", "also persist the run into this SQLite file")
		level     = flag.String("log-level", "info", "log level")
	)
	def := signals.DefaultParams()
	flag.IntVar(&def.ADXLookback, "adx-lookback", def.ADXLookback, "ADX lookback")
	flag.Float64Var(&def.ADXThreshold, "adx-threshold", def.ADXThreshold, "ADX flash threshold")
	flag.IntVar(&def.BBLookback, "bb-lookback", def.BBLookback, "Bollinger lookback")
	flag.Float64Var(&def.BBStdDev, "bb-std", def.BBStdDev, "Bollinger standard deviations")
	flag.IntVar(&def.BBCloses, "bb-closes", def.BBCloses, "consecutive closes outside the bands")
	flag.IntVar(&def.Warmup, "warmup", def.Warmup, "bars dropped before analysis")
	flag.Parse()

	l, err := applogger.New(&applogger.Config{Level: *level, Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *in == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *symbol == "" {
		*symbol = strings.TrimSuffix(filepath.Base(*in), filepath.Ext(*in))
	}

	if err := run(context.Background(), l, options{
		in: *in, out: *out, symbol: *symbol, sqlite: *sqlite, triggers: *triggers,
		engine:  models.EngineParams{GracePeriod: *grace, MaxActive: *maxActive},
		signals: def,
	}); err != nil {
		l.Error("flashscan failed", applogger.Error(err))
		os.Exit(1)
	}
}

type options struct {
	in, out, symbol, sqlite string
	triggers                bool
	engine                  models.EngineParams
	signals                 models.SignalParams
}

func run(ctx context.Context, l *applogger.Logger, o options) error {
	src := internalrepo.NewCSVBarSource(o.in)
	src.SetLogger(l)
	candles, err := src.GetBars(ctx, o.symbol, zeroTime, zeroTime, "")
	if err != nil {
		return err
	}

	var rows []models.SignalBar
	bars := candles
	if !o.triggers {
		if rows, err = signals.Preprocess(candles, o.signals); err != nil {
			return err
		}
		bars = signals.Bars(rows)
	}

	var store repository.ResultStore = internalrepo.NewCSVResultStore(o.out)
	if o.sqlite != "" {
		db, err := internalrepo.NewSQLiteResultStore(o.sqlite)
		if err != nil {
			return err
		}
		defer db.Close()
		store = &teeStore{stores: []repository.ResultStore{store, db}}
	}
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	uc := usecase.NewAnalysisUseCase(nil, nil, l,
		usecase.WithDefaults(o.engine, o.signals),
		usecase.WithResultStore(store),
	)
	res, err := uc.AnalyzeBars(ctx, models.AnalysisQuery{Symbol: o.symbol, Engine: o.engine}, bars)
	if err != nil {
		return err
	}

	series := filepath.Join(o.out, res.RunID+"_series.csv")
	if err := writeFile(series, func(w io.Writer) error {
		return internalrepo.WriteSeries(w, bars, rows, res.Result.Tally)
	}); err != nil {
		return err
	}

	s := res.Summary()
	l.Info("flashscan done",
		applogger.String("run_id", s.RunID),
		applogger.String("symbol", s.Symbol),
		applogger.Int("bars", s.Bars),
		applogger.Int("closed", s.Final.Closed),
		applogger.Int("stunted", s.Final.Stunted),
		applogger.Int("active", s.ActiveCount),
		applogger.Int("issues", s.Issues),
		applogger.String("series", series),
	)
	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
