package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"FlashScan/internal/domain/models"
	applogger "FlashScan/pkg/logger"
)

const input = `time,open,high,low,close,trigger
2024-05-06T00:00:00Z,1.0,1.1,0.9,1.00,start
2024-05-06T00:01:00Z,1.0,1.2,1.0,1.10,none
2024-05-06T00:02:00Z,1.1,1.3,1.1,1.20,none
2024-05-06T00:03:00Z,1.2,1.2,0.9,0.95,none
2024-05-06T00:04:00Z,1.0,1.1,0.9,1.00,end
`

func TestRunWithFileTriggers(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "bars.csv")
	if err := os.WriteFile(in, []byte(input), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out")
	err := run(context.Background(), applogger.Nop(), options{
		in: in, out: out, symbol: "TEST", triggers: true,
		engine: models.EngineParams{GracePeriod: 2},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var series, closed int
	entries, _ := os.ReadDir(out)
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), "_series.csv"):
			series++
			b, _ := os.ReadFile(filepath.Join(out, e.Name()))
			if lines := strings.Count(string(b), "\n"); lines != 6 {
				t.Fatalf("expected header and 5 rows, got %d lines", lines)
			}
		case strings.HasSuffix(e.Name(), "_closed.csv"):
			closed++
		}
	}
	if series != 1 || closed != 1 {
		t.Fatalf("missing output files: %v", entries)
	}
}

func TestRunMissingInput(t *testing.T) {
	err := run(context.Background(), applogger.Nop(), options{
		in: filepath.Join(t.TempDir(), "nope.csv"), out: t.TempDir(), symbol: "X", triggers: true,
		engine: models.EngineParams{GracePeriod: 2},
	})
	if err == nil {
		t.Fatal("expected error for missing input")
	}
}
