package loadtest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okian/scalefilter/internal/domain/model"
	"github.com/okian/scalefilter/internal/domain/scale"
	"github.com/okian/scalefilter/pkg/logger"
)

// expectedReadings returns the readings the service should store for
// batches, keyed by reading UUID. Batches are deep-copied before scaling so
// the submitted originals are left as they are.
func expectedReadings(batches []Batch, settings FilterSettings) (map[string]*model.Reading, error) {
	out := make(map[string]*model.Reading)
	for _, b := range batches {
		data, err := json.Marshal(b.Readings)
		if err != nil {
			return nil, fmt.Errorf("copy batch %s: %w", b.ID, err)
		}
		var cp model.Batch
		if err := json.Unmarshal(data, &cp); err != nil {
			return nil, fmt.Errorf("copy batch %s: %w", b.ID, err)
		}
		scale.Apply(cp, settings.Factor, settings.Enable)
		for _, r := range cp {
			out[r.UUID] = r
		}
	}
	return out, nil
}

// verifyReadings checks every fetched reading against its expected value
// and returns how many were compared.
func verifyReadings(ctx context.Context, expected map[string]*model.Reading, got []*model.Reading) (int, error) {
	verified := 0
	var mismatches []string
	for _, r := range got {
		want, ok := expected[r.UUID]
		if !ok {
			continue
		}
		verified++
		if err := compareReading(want, r); err != nil {
			mismatches = append(mismatches, err.Error())
		}
	}

	if len(mismatches) > 0 {
		for _, m := range mismatches {
			logger.Get().Error(ctx, "reading mismatch", logger.String("detail", m))
		}
		return verified, fmt.Errorf("%d of %d readings do not match", len(mismatches), verified)
	}
	if verified == 0 && len(got) > 0 {
		return 0, fmt.Errorf("none of the %d fetched readings belong to this run", len(got))
	}
	return verified, nil
}

func compareReading(want, got *model.Reading) error {
	if want.AssetCode != got.AssetCode {
		return fmt.Errorf("%s: asset %q, want %q", got.UUID, got.AssetCode, want.AssetCode)
	}
	if len(want.Datapoints) != len(got.Datapoints) {
		return fmt.Errorf("%s: %d datapoints, want %d", got.UUID, len(got.Datapoints), len(want.Datapoints))
	}
	for i, dp := range want.Datapoints {
		g := got.Datapoints[i]
		if dp.Name != g.Name || !dp.Value.Equal(g.Value) {
			return fmt.Errorf("%s: datapoint %d is %s=%s, want %s=%s", got.UUID, i, g.Name, g.Value, dp.Name, dp.Value)
		}
	}
	return nil
}
