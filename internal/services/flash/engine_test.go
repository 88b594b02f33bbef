package flash

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"FlashScan/internal/domain/models"
)

var t0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func bar(i int, o, h, l, c float64, trig models.Trigger) models.Bar {
	return models.Bar{
		Time:    t0.Add(time.Duration(i) * time.Minute),
		Open:    o,
		High:    h,
		Low:     l,
		Close:   c,
		Trigger: trig,
	}
}

func mustRun(t *testing.T, grace int, bars []models.Bar) *models.AnalysisResult {
	t.Helper()
	res, err := Run(models.EngineParams{GracePeriod: grace}, bars)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return res
}

func scenarioA() []models.Bar {
	return []models.Bar{
		bar(0, 100, 101, 99, 100, models.TriggerStart),
		bar(1, 100, 102, 99, 101, models.TriggerNone),
		bar(2, 101, 103, 100.5, 102, models.TriggerEnd),
	}
}

func TestScenarioWindowOpensOnEnd(t *testing.T) {
	res := mustRun(t, 1, scenarioA())
	if len(res.Active) != 1 {
		t.Fatalf("expected 1 active flash, got %d", len(res.Active))
	}
	f := res.Active[0]
	if f.Stage != models.StageWindow {
		t.Fatalf("expected window stage, got %s", f.Stage)
	}
	if f.WindowOpen != 101 || f.WindowDuration != 1 {
		t.Fatalf("unexpected window open/duration %v/%d", f.WindowOpen, f.WindowDuration)
	}
	if f.FlashHigh != 102 || f.FlashLow != 99 || f.FlashDuration != 2 {
		t.Fatalf("unexpected flash extremes %+v", f)
	}
	if f.Age != 3 {
		t.Fatalf("expected age 3, got %d", f.Age)
	}
	if len(res.Tally) != 3 {
		t.Fatalf("expected 3 tally rows, got %d", len(res.Tally))
	}
}

func TestScenarioReturnToTargetCloses(t *testing.T) {
	bars := append(scenarioA(),
		bar(3, 102, 103, 101.5, 102.5, models.TriggerNone),
		bar(4, 101.5, 101.8, 100.9, 101.2, models.TriggerNone),
	)
	res := mustRun(t, 1, bars)

	if row := res.Tally[3]; row.ActiveBearish != 1 || row.ClosedBearish != 0 {
		t.Fatalf("bar 3: expected one active bearish, got %+v", row)
	}
	row := res.Tally[4]
	if row.ActiveBearish != 0 || row.ClosedBearish != 1 || row.Closed != 1 || row.Active != 0 {
		t.Fatalf("bar 4: expected one closed bearish, got %+v", row)
	}
	if len(res.Closed) != 1 || len(res.Active) != 0 {
		t.Fatalf("expected flash migrated to closed, active=%d closed=%d", len(res.Active), len(res.Closed))
	}
	f := res.Closed[0]
	if f.Stage != models.StageClosed || f.Bias != models.BiasBearish {
		t.Fatalf("unexpected closed flash %+v", f)
	}
	if f.WindowDuration != 3 || f.HoldDuration != 0 {
		t.Fatalf("unexpected durations window=%d hold=%d", f.WindowDuration, f.HoldDuration)
	}
	if f.HoldOpen != 101 || f.HoldHigh != 101 || f.HoldLow != 101 {
		t.Fatalf("hold must be seeded with window open, got %v/%v/%v", f.HoldOpen, f.HoldHigh, f.HoldLow)
	}
	want := (103.0 - 101.0) / 101.0
	if math.Abs(f.MaxFavorable-want) > 1e-12 || math.Abs(f.MaxAdverse-want) > 1e-12 {
		t.Fatalf("unexpected outcome %v/%v want %v", f.MaxFavorable, f.MaxAdverse, want)
	}
}

func TestScenarioCompetingStartStunts(t *testing.T) {
	bars := []models.Bar{
		bar(0, 100, 101, 99, 100, models.TriggerStart),
		bar(1, 100, 100.5, 99.5, 100, models.TriggerEnd),
		bar(2, 100, 100.2, 99.8, 100.1, models.TriggerStart),
	}
	res := mustRun(t, 3, bars)

	if len(res.Stunted) != 1 || len(res.Closed) != 0 {
		t.Fatalf("expected one stunted and no closed, got stunted=%d closed=%d", len(res.Stunted), len(res.Closed))
	}
	s := res.Stunted[0]
	if s.ID != 1 || s.Stage != models.StageWindow || s.Bias != models.BiasUnset {
		t.Fatalf("unexpected stunted flash %+v", s)
	}
	if s.MaxFavorable != 0 || s.MaxAdverse != 0 {
		t.Fatalf("stunted flash must not carry outcomes")
	}
	if got := res.Tally[2].Stunted - res.Tally[1].Stunted; got != 1 {
		t.Fatalf("expected stunted counter +1, got %d", got)
	}
	if len(res.Active) != 1 || res.Active[0].ID != 2 || res.Active[0].Stage != models.StageFlash {
		t.Fatalf("expected the new flash to be active, got %+v", res.Active)
	}
}

func TestWindowInterruptedEntersHold(t *testing.T) {
	bars := []models.Bar{
		bar(0, 99, 100, 98, 99.5, models.TriggerStart),
		bar(1, 100, 101, 99.5, 100.5, models.TriggerEnd),
		bar(2, 102, 102.5, 101.5, 102, models.TriggerStart),
		bar(3, 101, 101.2, 99.8, 100, models.TriggerNone),
	}
	res := mustRun(t, 1, bars)

	if len(res.Closed) != 1 {
		t.Fatalf("expected 1 closed, got %d", len(res.Closed))
	}
	f := res.Closed[0]
	if f.HoldOpen != 102 || f.HoldHigh != 102.5 || f.HoldLow != 101.5 || f.HoldDuration != 2 {
		t.Fatalf("unexpected hold fields %+v", f)
	}
	if f.WindowDuration != 1 {
		t.Fatalf("window duration must not grow on the hold transition, got %d", f.WindowDuration)
	}
	if math.Abs(f.MaxFavorable-0.01) > 1e-12 || math.Abs(f.MaxAdverse-0.025) > 1e-12 {
		t.Fatalf("unexpected outcome %v/%v", f.MaxFavorable, f.MaxAdverse)
	}
	if len(res.Active) != 1 || res.Active[0].ID != 2 || res.Active[0].FlashDuration != 2 {
		t.Fatalf("unexpected active set %+v", res.Active)
	}
}

func TestHoldExtendsUntilReturn(t *testing.T) {
	bars := []models.Bar{
		bar(0, 100, 100.5, 99.5, 100, models.TriggerStart),
		bar(1, 100, 100.5, 99, 99.2, models.TriggerEnd),
		bar(2, 98, 98.5, 97.5, 98, models.TriggerStart),
		bar(3, 97, 97.8, 96, 97.5, models.TriggerNone),
		bar(4, 98, 99.2, 97.9, 99, models.TriggerNone),
		bar(5, 99.5, 100.2, 99.4, 100, models.TriggerNone),
	}
	res := mustRun(t, 1, bars)

	if len(res.Closed) != 1 {
		t.Fatalf("expected 1 closed, got %d", len(res.Closed))
	}
	f := res.Closed[0]
	if f.Bias != models.BiasBullish || f.WindowOpen != 100 || f.WindowLow != 99 || f.WindowDuration != 1 {
		t.Fatalf("unexpected window fields %+v", f)
	}
	if f.HoldOpen != 98 || f.HoldHigh != 99.2 || f.HoldLow != 96 || f.HoldDuration != 4 {
		t.Fatalf("unexpected hold fields %+v", f)
	}
	// Adverse excursion runs to the hold low, below the window low.
	if math.Abs(f.MaxFavorable-1.0/99) > 1e-12 || math.Abs(f.MaxAdverse-4.0/96) > 1e-12 {
		t.Fatalf("unexpected outcome %v/%v", f.MaxFavorable, f.MaxAdverse)
	}
	if got := res.Tally[4]; got.ActiveBullish != 1 || got.Closed != 0 {
		t.Fatalf("flash must stay active while the hold extends, got %+v", got)
	}
	if last := res.Last(); last.ClosedBullish != 1 || last.ActiveBullish != 0 {
		t.Fatalf("unexpected final row %+v", last)
	}
}

func TestReturnToTargetBeatsCompetingStart(t *testing.T) {
	bars := []models.Bar{
		bar(0, 99, 100, 98, 99.5, models.TriggerStart),
		bar(1, 100, 101, 99.5, 100.5, models.TriggerEnd),
		bar(2, 99.9, 100.4, 99.6, 100.1, models.TriggerStart),
	}
	res := mustRun(t, 1, bars)

	if len(res.Closed) != 1 || res.Closed[0].Bias != models.BiasBullish {
		t.Fatalf("expected one bullish closed flash, got %+v", res.Closed)
	}
	if res.Closed[0].HoldDuration != 0 {
		t.Fatalf("expected direct close without hold bars")
	}
	if len(res.Active) != 1 || res.Active[0].ID != 2 {
		t.Fatalf("expected the competing flash to be created, got %+v", res.Active)
	}
}

func TestSameBarMigrationsKeepCreationOrder(t *testing.T) {
	// Two flashes in the same window close on one bar; both migrate in creation order.
	bars := []models.Bar{
		bar(0, 100, 100.5, 99.5, 100, models.TriggerStart),
		bar(1, 100, 100.5, 99.5, 100, models.TriggerStart),
		bar(2, 100, 100.5, 99.5, 100, models.TriggerEnd),
		bar(3, 103, 104, 102, 103, models.TriggerNone),
		bar(4, 100.2, 100.3, 99.9, 100, models.TriggerNone),
	}
	res := mustRun(t, 1, bars)
	if len(res.Closed) != 2 {
		t.Fatalf("expected 2 closed, got %d", len(res.Closed))
	}
	if res.Closed[0].ID != 1 || res.Closed[1].ID != 2 {
		t.Fatalf("unexpected order %d,%d", res.Closed[0].ID, res.Closed[1].ID)
	}
	if res.Tally[4].ClosedBearish != 2 {
		t.Fatalf("expected two bearish closures, got %+v", res.Tally[4])
	}
}

func TestInvalidConfiguration(t *testing.T) {
	for _, p := range []models.EngineParams{{GracePeriod: 0}, {GracePeriod: -2}, {GracePeriod: 1, MaxActive: -1}} {
		if _, err := New(p); !errors.Is(err, ErrInvalidConfiguration) {
			t.Fatalf("params %+v: expected invalid configuration, got %v", p, err)
		}
	}
}

func TestMalformedBars(t *testing.T) {
	good := bar(0, 100, 101, 99, 100, models.TriggerNone)
	cases := map[string]models.Bar{
		"zero time":    {Open: 1, High: 1, Low: 1, Close: 1},
		"nan":          bar(1, math.NaN(), 101, 99, 100, models.TriggerNone),
		"inf":          bar(1, 100, math.Inf(1), 99, 100, models.TriggerNone),
		"high<low":     bar(1, 100, 98, 99, 100, models.TriggerNone),
		"open outside": bar(1, 102, 101, 99, 100, models.TriggerNone),
		"stale time":   bar(0, 100, 101, 99, 100, models.TriggerNone),
		"bad trigger":  bar(1, 100, 101, 99, 100, models.Trigger(3)),
	}
	for name, b := range cases {
		_, err := Run(models.EngineParams{GracePeriod: 1}, []models.Bar{good, b})
		if !errors.Is(err, ErrMalformedBar) {
			t.Fatalf("%s: expected malformed bar, got %v", name, err)
		}
		var be *BarError
		if !errors.As(err, &be) || be.Index != 1 {
			t.Fatalf("%s: expected bar error at index 1, got %v", name, err)
		}
	}
}

func TestRegistryExhausted(t *testing.T) {
	bars := []models.Bar{
		bar(0, 100, 101, 99, 100, models.TriggerStart),
		bar(1, 100, 101, 99, 100, models.TriggerStart),
		bar(2, 100, 101, 99, 100, models.TriggerStart),
	}
	_, err := Run(models.EngineParams{GracePeriod: 1, MaxActive: 2}, bars)
	if !errors.Is(err, ErrRegistryExhausted) {
		t.Fatalf("expected registry exhausted, got %v", err)
	}
	var be *BarError
	if !errors.As(err, &be) || be.Index != 2 {
		t.Fatalf("expected failure on bar 2, got %v", err)
	}
}

func TestObserverSeesEveryRow(t *testing.T) {
	var seen []int
	_, err := Run(models.EngineParams{GracePeriod: 1}, scenarioA(), WithObserver(func(i int, _ models.Bar, _ models.TallyRow) {
		seen = append(seen, i)
	}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !reflect.DeepEqual(seen, []int{0, 1, 2}) {
		t.Fatalf("unexpected observed indices %v", seen)
	}
}

func randomBars(seed int64, n int) []models.Bar {
	rng := rand.New(rand.NewSource(seed))
	out := make([]models.Bar, 0, n)
	price := 100.0
	on := false
	for i := 0; i < n; i++ {
		o := price
		c := o + rng.NormFloat64()*0.4
		if c < 1 {
			c = 1
		}
		h := math.Max(o, c) + rng.Float64()*0.3
		l := math.Min(o, c) - rng.Float64()*0.3
		trig := models.TriggerNone
		if rng.Float64() < 0.25 {
			on = !on
			if on {
				trig = models.TriggerStart
			} else {
				trig = models.TriggerEnd
			}
		}
		out = append(out, bar(i, o, h, l, c, trig))
		price = c
	}
	return out
}

func TestLifecycleProperties(t *testing.T) {
	bars := randomBars(7, 2000)
	e, err := New(models.EngineParams{GracePeriod: 3})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	stages := map[int]models.Stage{}
	biases := map[int]models.Bias{}
	ranges := map[int]models.Flash{}
	for _, b := range bars {
		row, err := e.Step(b)
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		if row.Active != row.ActiveBullish+row.ActiveBearish || row.Closed != row.ClosedBullish+row.ClosedBearish {
			t.Fatalf("derived counters broken: %+v", row)
		}
		e.reg.Each(func(_ int, f *models.Flash) {
			if prev, ok := stages[f.ID]; ok && f.Stage < prev {
				t.Fatalf("flash %d regressed from %s to %s", f.ID, prev, f.Stage)
			}
			if prev, ok := ranges[f.ID]; ok {
				checkRanges(t, prev, *f)
			}
			ranges[f.ID] = *f
			stages[f.ID] = f.Stage
			if prev, ok := biases[f.ID]; ok && prev != models.BiasUnset && prev != f.Bias {
				t.Fatalf("flash %d bias changed from %s to %s", f.ID, prev, f.Bias)
			}
			biases[f.ID] = f.Bias
		})
	}
	res := e.Finish()

	seen := map[int]bool{}
	for _, set := range [][]models.Flash{res.Active, res.Closed, res.Stunted} {
		for _, f := range set {
			if seen[f.ID] {
				t.Fatalf("flash %d owned twice", f.ID)
			}
			seen[f.ID] = true
		}
	}
	if len(seen) != e.nextID {
		t.Fatalf("expected %d flashes across sets, got %d", e.nextID, len(seen))
	}
	if len(res.Closed) == 0 || len(res.Stunted) == 0 {
		t.Fatalf("series too quiet to be useful: closed=%d stunted=%d", len(res.Closed), len(res.Stunted))
	}
	for _, f := range res.Closed {
		if prev, ok := ranges[f.ID]; ok && prev.Stage == models.StageHold {
			checkRanges(t, prev, f)
		}
		if f.Stage != models.StageClosed || f.Bias == models.BiasUnset {
			t.Fatalf("bad closed flash %+v", f)
		}
		if f.MaxFavorable < 0 {
			t.Fatalf("flash %d has negative favorable excursion %v", f.ID, f.MaxFavorable)
		}
	}
	for _, f := range res.Stunted {
		if f.Stage != models.StageWindow || f.Bias != models.BiasUnset {
			t.Fatalf("bad stunted flash %+v", f)
		}
	}
	last := res.Last()
	if last.Stunted != len(res.Stunted) || last.Closed != len(res.Closed) {
		t.Fatalf("final row %+v disagrees with collections", last)
	}
}

// checkRanges fails if a stage range shrank between two observations of the same flash. A
// range is only compared once prev had entered the stage that owns it.
func checkRanges(t *testing.T, prev, cur models.Flash) {
	t.Helper()
	type span struct {
		name      string
		owner     models.Stage
		ph, pl    float64
		high, low float64
	}
	for _, s := range []span{
		{"flash", models.StageFlash, prev.FlashHigh, prev.FlashLow, cur.FlashHigh, cur.FlashLow},
		{"window", models.StageWindow, prev.WindowHigh, prev.WindowLow, cur.WindowHigh, cur.WindowLow},
		{"hold", models.StageHold, prev.HoldHigh, prev.HoldLow, cur.HoldHigh, cur.HoldLow},
	} {
		if prev.Stage < s.owner {
			continue
		}
		if s.high < s.ph || s.low > s.pl {
			t.Fatalf("flash %d %s range shrank from [%v,%v] to [%v,%v]", cur.ID, s.name, s.pl, s.ph, s.low, s.high)
		}
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	seen := 0
	_, err := Run(models.EngineParams{GracePeriod: 2}, randomBars(3, 100),
		WithContext(ctx),
		WithObserver(func(int, models.Bar, models.TallyRow) {
			seen++
			if seen == 10 {
				cancel()
			}
		}))
	if !errors.Is(err, context.Canceled) || seen != 10 {
		t.Fatalf("expected the pass to stop after 10 bars, got %d bars and %v", seen, err)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	bars := randomBars(42, 1500)
	a := mustRun(t, 2, bars)
	b := mustRun(t, 2, bars)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("two runs over the same input differ")
	}
}
