package loadtest

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/scalefilter/internal/domain/model"
	"github.com/okian/scalefilter/pkg/logger"
)

const (
	randomFloatDivisor = 1_000_000
	maxIntegerValue    = 10_000
)

var assets = []string{"pump", "fan", "boiler", "compressor", "valve"}

func randomInt(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0
	}
	return v.Int64()
}

func randomFloat() float64 {
	return float64(randomInt(randomFloatDivisor)) / randomFloatDivisor
}

// generateBatches builds cfg.NumBatches batches. Every reading mixes the
// datapoint kinds the filter has to treat differently.
func generateBatches(ctx context.Context, cfg *Config, stats *Stats) ([]Batch, error) {
	batches := make([]Batch, cfg.NumBatches)
	for i := range batches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		b := Batch{ID: uuid.NewString(), Readings: make(model.Batch, cfg.ReadingsPerBatch)}
		for j := range b.Readings {
			b.Readings[j] = generateReading(i*cfg.ReadingsPerBatch + j)
		}
		batches[i] = b
	}

	stats.BatchesGenerated = len(batches)
	stats.ReadingsGenerated = len(batches) * cfg.ReadingsPerBatch
	logger.Get().Info(ctx, "generated batches",
		logger.Int("batches", stats.BatchesGenerated),
		logger.Int("readings", stats.ReadingsGenerated))
	return batches, nil
}

func generateReading(seq int) *model.Reading {
	asset := assets[seq%len(assets)]
	return model.NewReading(asset,
		model.NewDatapoint("count", model.IntegerValue(randomInt(2*maxIntegerValue)-maxIntegerValue)),
		model.NewDatapoint("level", model.FloatValue(randomFloat()*100-50)),
		model.NewDatapoint("state", model.StringValue("seq-"+strconv.Itoa(seq))),
		model.NewDatapoint("window", model.ArrayValue([]model.Value{
			model.IntegerValue(randomInt(maxIntegerValue)),
			model.FloatValue(randomFloat()),
		})),
		model.NewDatapoint("meta", model.ObjectValue([]model.Datapoint{
			{Name: "seq", Value: model.IntegerValue(int64(seq))},
		})),
	)
}

// pickDuplicates returns the batches to submit a second time.
func pickDuplicates(batches []Batch, ratio float64) []Batch {
	if ratio <= 0 || len(batches) == 0 {
		return nil
	}
	n := int(float64(len(batches)) * ratio)
	if n > len(batches) {
		n = len(batches)
	}
	return batches[:n]
}
