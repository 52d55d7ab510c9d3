package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/scalefilter/internal/domain/model"
	"github.com/okian/scalefilter/pkg/logger"
)

// HTTPClient wraps http.Client with the service's base URL.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.Unmarshal(body, v)
}

func (c *HTTPClient) filterSettings(ctx context.Context) (FilterSettings, error) {
	var s FilterSettings
	err := c.getJSON(ctx, "/filter", &s)
	return s, err
}

func (c *HTTPClient) storedReadings(ctx context.Context) (int, error) {
	var stats map[string]any
	if err := c.getJSON(ctx, "/stats", &stats); err != nil {
		return 0, err
	}
	n, _ := stats["storedReadings"].(float64)
	return int(n), nil
}

func (c *HTTPClient) latest(ctx context.Context, n int) ([]*model.Reading, error) {
	var out []*model.Reading
	err := c.getJSON(ctx, "/readings?limit="+strconv.Itoa(n), &out)
	return out, err
}

type submitResult int

const (
	resultAccepted submitResult = iota
	resultDuplicate
	resultBackpressure
	resultFailed
)

// submitBatches posts batches with cfg.Workers concurrent submitters.
// Backpressured batches are retried after a short pause.
func submitBatches(ctx context.Context, cfg *Config, client *HTTPClient, batches []Batch, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting batches", logger.Int("batches", len(batches)), logger.Int("workers", cfg.Workers))

	var submitted, accepted, duplicate, failed, backpressured int64

	ch := make(chan Batch, cfg.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range ch {
				atomic.AddInt64(&submitted, 1)
				res := submitWithRetry(ctx, client, b, &backpressured)
				switch res {
				case resultAccepted:
					atomic.AddInt64(&accepted, 1)
				case resultDuplicate:
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
				if cfg.Verbose {
					log.Debug(ctx, "batch submitted", logger.String("batch_id", b.ID), logger.Int("result", int(res)))
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, b := range batches {
			select {
			case <-ctx.Done():
				return
			case ch <- b:
			}
		}
	}()
	wg.Wait()

	stats.Submitted += int(submitted)
	stats.Accepted += int(accepted)
	stats.Duplicates += int(duplicate)
	stats.Failed += int(failed)
	stats.Backpressured += int(backpressured)
}

func submitWithRetry(ctx context.Context, client *HTTPClient, b Batch, backpressured *int64) submitResult {
	for try := 0; try < maxBackpressureTries; try++ {
		res := submitSingleBatch(ctx, client, b)
		if res != resultBackpressure {
			return res
		}
		atomic.AddInt64(backpressured, 1)
		select {
		case <-ctx.Done():
			return resultFailed
		case <-time.After(backpressureBackoff):
		}
	}
	return resultFailed
}

func submitSingleBatch(ctx context.Context, client *HTTPClient, b Batch) submitResult {
	resp, err := client.Post(ctx, "/ingest", b)
	if err != nil {
		return resultFailed
	}
	defer resp.Body.Close()

	var ack IngestResponse
	_ = json.NewDecoder(resp.Body).Decode(&ack)

	switch resp.StatusCode {
	case http.StatusAccepted:
		return resultAccepted
	case http.StatusOK:
		if ack.Duplicate {
			return resultDuplicate
		}
		return resultFailed
	case http.StatusTooManyRequests:
		return resultBackpressure
	default:
		return resultFailed
	}
}
