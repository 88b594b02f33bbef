// Command app serves the FlashScan HTTP and websocket API and, when enabled, consumes
// analysis jobs from Kafka.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"FlashScan/internal/di"
	"FlashScan/pkg/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path")
	check := flag.Bool("check-config", false, "validate the config, print the effective engine settings and exit")
	flag.Parse()

	if err := run(*configPath, *check); err != nil {
		log.Printf("flashscan: %v", err)
		os.Exit(1)
	}
}

func run(path string, check bool) error {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if check {
		fmt.Printf("env=%s results=%s publish=%t grace_period=%d max_active=%d adx=%d/%.1f bb=%d/%.1f/%d warmup=%d\n",
			cfg.Environment, cfg.Results.Backend, cfg.Results.Publish,
			cfg.Engine.GracePeriod, cfg.Engine.MaxActive,
			cfg.Signals.ADXLookback, cfg.Signals.ADXThreshold,
			cfg.Signals.BBLookback, cfg.Signals.BBStdDev, cfg.Signals.BBCloses, cfg.Signals.Warmup)
		return nil
	}

	// The application logger is built inside the container; until then errors go to stderr.
	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return app.Run()
}
