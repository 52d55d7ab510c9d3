package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/scalefilter/pkg/logger"
)

const directoryPermission = 0750

// ErrNotSettled is returned when the service did not store every accepted
// reading within the settle timeout.
var ErrNotSettled = errors.New("service did not settle")

// Run executes the complete load test.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get()
	stats := &Stats{StartTime: time.Now()}
	if cfg.VerifyLimit < 1 {
		cfg.VerifyLimit = defaultVerifyLimit
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	log.Info(ctx, "starting scale load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("batches", cfg.NumBatches),
		logger.Int("readingsPerBatch", cfg.ReadingsPerBatch),
		logger.Int("workers", cfg.Workers),
		logger.Float64("duplicateRatio", cfg.DuplicateRatio))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	settings, err := client.filterSettings(ctx)
	if err != nil {
		return stats, fmt.Errorf("reading filter settings failed: %w", err)
	}
	log.Info(ctx, "filter settings", logger.Bool("enable", settings.Enable), logger.Float64("factor", settings.Factor))

	baseline, err := client.storedReadings(ctx)
	if err != nil {
		return stats, fmt.Errorf("reading stats failed: %w", err)
	}

	batches, err := generateBatches(ctx, cfg, stats)
	if err != nil {
		return stats, fmt.Errorf("batch generation failed: %w", err)
	}
	// Expected values are computed before submitting: the batches are
	// re-sent as duplicates later and must still hold the original values.
	expected, err := expectedReadings(batches, settings)
	if err != nil {
		return stats, err
	}

	submitBatches(ctx, cfg, client, batches, stats)
	if dups := pickDuplicates(batches, cfg.DuplicateRatio); len(dups) > 0 {
		log.Info(ctx, "re-submitting batches", logger.Int("batches", len(dups)))
		submitBatches(ctx, cfg, client, dups, stats)
	}

	want := baseline + stats.Accepted*cfg.ReadingsPerBatch
	if err := waitForSettle(ctx, client, want, cfg.SettleTimeout); err != nil {
		return stats, err
	}

	limit := min(cfg.VerifyLimit, stats.ReadingsGenerated)
	if limit > 0 {
		got, err := client.latest(ctx, limit)
		if err != nil {
			return stats, fmt.Errorf("fetching readings failed: %w", err)
		}
		stats.ReadingsVerified, err = verifyReadings(ctx, expected, got)
		if err != nil {
			return stats, fmt.Errorf("verification failed: %w", err)
		}
	}

	if cfg.OutputFile != "" {
		if err := saveBatchesToFile(ctx, cfg.OutputFile, batches); err != nil {
			log.Warn(ctx, "failed to save batches to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if stats.Failed > 0 {
		return stats, fmt.Errorf("%d batches failed", stats.Failed)
	}
	return stats, nil
}

func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	resp, err := client.Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func waitForSettle(ctx context.Context, client *HTTPClient, want int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		n, err := client.storedReadings(ctx)
		if err != nil {
			return fmt.Errorf("reading stats failed: %w", err)
		}
		if n >= want {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %d of %d readings stored", ErrNotSettled, n, want)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settlePollInterval):
		}
	}
}

func saveBatchesToFile(ctx context.Context, filename string, batches []Batch) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(batches, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal batches: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "batches saved to file", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, batchesPerSecond float64
	if stats.Submitted > 0 {
		acceptRate = float64(stats.Accepted) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		batchesPerSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("batchesGenerated", stats.BatchesGenerated),
		logger.Int("readingsGenerated", stats.ReadingsGenerated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("failed", stats.Failed),
		logger.Int("backpressured", stats.Backpressured),
		logger.Int("readingsVerified", stats.ReadingsVerified),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("batchesPerSecond", batchesPerSecond))
}
