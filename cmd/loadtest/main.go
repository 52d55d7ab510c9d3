package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/scalefilter/internal/loadtest"
	"github.com/okian/scalefilter/pkg/logger"
)

const (
	defaultBatches  = 1000
	defaultReadings = 10
	defaultDupRatio = 0.1
	defaultTimeout  = 30 * time.Second
	defaultSettle   = time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		batches  = flag.Int("batches", defaultBatches, "Number of batches to submit")
		readings = flag.Int("readings", defaultReadings, "Readings per batch")
		dup      = flag.Float64("dup", defaultDupRatio, "Share of batches re-submitted with the same id")
		workers  = flag.Int("workers", runtime.NumCPU()*2, "Number of concurrent submitters")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle   = flag.Duration("settle", defaultSettle, "Time allowed for the service to drain")
		output   = flag.String("output", "", "File to write the generated batches to")
		logFile  = flag.String("log", "", "Log file (default: loadtest_TIMESTAMP.log)")
		verbose  = flag.Bool("verbose", false, "Enable debug logging")
		help     = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp(os.Stdout)
		return
	}

	closer, err := loadtest.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("failed to set up logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &loadtest.Config{
		BaseURL:          *baseURL,
		NumBatches:       *batches,
		ReadingsPerBatch: *readings,
		DuplicateRatio:   *dup,
		Workers:          *workers,
		Timeout:          *timeout,
		SettleTimeout:    *settle,
		OutputFile:       *output,
		Verbose:          *verbose,
	}

	if _, err := loadtest.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "load test failed", logger.Error(err))
		stop()
		_ = closer.Close()
		os.Exit(1)
	}
}
