// main.go
//
// tickerd: low-latency Coinbase ticker capture.
//
// Loads configuration, starts the pipeline (feed, decoder, pinned CSV
// logger), waits for a signal or feed termination, then drains and persists
// the session summary. There is no reconnect; supervision belongs to the
// service manager.

package main

import (
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"tickerd/analyzer"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (optional)")
		products   = flag.String("products", "", "comma-separated product ids, overrides config")
		csvPath    = flag.String("csv", "", "CSV output path, overrides config")
	)
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg := DefaultConfig()
	if *configPath != "" {
		cfg, err = LoadConfig(*configPath)
		if err != nil {
			log.Fatal("configuration rejected", zap.Error(err))
		}
	}
	if *products != "" {
		cfg.Products = strings.Split(*products, ",")
	}
	if *csvPath != "" {
		cfg.CSVPath = *csvPath
	}

	a := analyzer.New(cfg.analyzerConfig(), log)
	if err := a.Start(); err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigc:
		log.Info("signal received, draining", zap.String("signal", sig.String()))
	case <-a.Done():
		log.Warn("feed connection ended, draining")
	}

	a.Stop()
}
