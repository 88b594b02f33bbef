package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"FlashScan/internal/domain/models"
	"FlashScan/internal/domain/repository"
)

var flashHeader = []string{
	"id", "time", "age", "stage",
	"fo", "fh", "fl", "fd",
	"wo", "wh", "wl", "wd",
	"ho", "hh", "hl", "hd",
	"bias", "max_favorable", "max_adverse", "degenerate",
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// WriteFlashes writes one CSV row per flash, in the given order.
func WriteFlashes(w io.Writer, flashes []models.Flash) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(flashHeader); err != nil {
		return err
	}
	for _, f := range flashes {
		rec := []string{
			strconv.Itoa(f.ID), f.OriginTime.Format(time.RFC3339), strconv.Itoa(f.Age), f.Stage.String(),
			ff(f.FlashOpen), ff(f.FlashHigh), ff(f.FlashLow), strconv.Itoa(f.FlashDuration),
			ff(f.WindowOpen), ff(f.WindowHigh), ff(f.WindowLow), strconv.Itoa(f.WindowDuration),
			ff(f.HoldOpen), ff(f.HoldHigh), ff(f.HoldLow), strconv.Itoa(f.HoldDuration),
			f.Bias.String(), ff(f.MaxFavorable), ff(f.MaxAdverse), strconv.FormatBool(f.Degenerate),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSeries writes the analysed series: bar, indicator columns and the tally row of each bar.
// rows and tally must be aligned; indicator columns are left empty when rows is nil.
func WriteSeries(w io.Writer, bars []models.Bar, rows []models.SignalBar, tally []models.TallyRow) error {
	if len(bars) != len(tally) || (rows != nil && len(rows) != len(bars)) {
		return fmt.Errorf("series: misaligned inputs (%d bars, %d signal rows, %d tally rows)", len(bars), len(rows), len(tally))
	}
	cw := csv.NewWriter(w)
	header := []string{"time", "open", "high", "low", "close", "volume", "signal",
		"adx", "flash", "bb_high", "bb_low", "bb_signal",
		"bulls", "bears", "bulls_closed", "bears_closed", "stunted", "active", "closed"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, b := range bars {
		t := tally[i]
		rec := []string{
			b.Time.Format(time.RFC3339), ff(b.Open), ff(b.High), ff(b.Low), ff(b.Close), ff(b.Volume), b.Trigger.String(),
			"", "", "", "", "",
			strconv.Itoa(t.ActiveBullish), strconv.Itoa(t.ActiveBearish),
			strconv.Itoa(t.ClosedBullish), strconv.Itoa(t.ClosedBearish), strconv.Itoa(t.Stunted),
			strconv.Itoa(t.Active), strconv.Itoa(t.Closed),
		}
		if rows != nil {
			r := rows[i]
			rec[7], rec[8] = ff(r.ADX), strconv.FormatBool(r.Flash)
			rec[9], rec[10], rec[11] = ff(r.BandUpper), ff(r.BandLower), strconv.Itoa(r.BandStreak)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVResultStore implements ResultStore by writing <run>_{active,closed,stunted}.csv into a directory.
type CSVResultStore struct {
	dir string
}

func NewCSVResultStore(dir string) repository.ResultStore {
	return &CSVResultStore{dir: dir}
}

func (s *CSVResultStore) Init(context.Context) error {
	return os.MkdirAll(s.dir, 0o755)
}

func (s *CSVResultStore) SaveRun(_ context.Context, run *models.AnalysisRun) error {
	if run == nil || run.Result == nil {
		return fmt.Errorf("save run: empty run")
	}
	for name, set := range map[string][]models.Flash{
		"active":  run.Result.Active,
		"closed":  run.Result.Closed,
		"stunted": run.Result.Stunted,
	} {
		if err := s.writeFile(fmt.Sprintf("%s_%s.csv", run.RunID, name), func(w io.Writer) error {
			return WriteFlashes(w, set)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *CSVResultStore) writeFile(name string, fn func(io.Writer) error) error {
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}

func (s *CSVResultStore) Health(context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

func (s *CSVResultStore) Close() error { return nil }
