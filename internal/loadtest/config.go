// Package loadtest drives a running scale service over HTTP: it submits
// generated reading batches, re-submits some of them to exercise batch-id
// deduplication and checks that the stored readings were scaled exactly once.
package loadtest

import (
	"time"

	"github.com/okian/scalefilter/internal/domain/model"
)

// Config holds configuration for a load test run.
type Config struct {
	BaseURL          string        // Base URL of the service
	NumBatches       int           // Number of batches to generate
	ReadingsPerBatch int           // Readings in each batch
	DuplicateRatio   float64       // Share of batches submitted a second time
	Workers          int           // Number of concurrent submitters
	Timeout          time.Duration // HTTP request timeout
	SettleTimeout    time.Duration // How long to wait for the service to drain
	VerifyLimit      int           // Max readings fetched for verification
	OutputFile       string        // Output file for generated batches
	Verbose          bool          // Enable verbose logging
}

// Batch is one generated submission.
type Batch struct {
	ID       string      `json:"batch_id"`
	Readings model.Batch `json:"readings"`
}

// IngestResponse mirrors the POST /ingest response body.
type IngestResponse struct {
	Status    string `json:"status"`
	BatchID   string `json:"batch_id"`
	Readings  int    `json:"readings"`
	Duplicate bool   `json:"duplicate"`
}

// FilterSettings mirrors the GET /filter response body.
type FilterSettings struct {
	Enable     bool    `json:"enable"`
	Factor     float64 `json:"factor"`
	FactorText string  `json:"factor_text"`
}

// Stats holds test statistics.
type Stats struct {
	BatchesGenerated  int
	ReadingsGenerated int
	Submitted         int
	Accepted          int
	Duplicates        int
	Failed            int
	Backpressured     int
	ReadingsVerified  int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
