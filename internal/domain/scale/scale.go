// Package scale multiplies the numeric datapoints of a reading batch by a
// scale factor, in place.
//
// The transform never adds, removes or reorders readings or datapoints and
// never allocates: integer and float payloads are rewritten where they sit,
// every other variant passes through untouched. Composite variants (arrays
// and objects) are not descended into.
package scale

import "github.com/okian/scalefilter/internal/domain/model"

// Stats counts what one traversal touched.
type Stats struct {
	Readings int // readings visited
	Integers int // integer datapoints rewritten
	Floats   int // float datapoints rewritten
	Skipped  int // datapoints left unchanged
}

// Scaled returns the number of rewritten datapoints.
func (s Stats) Scaled() int { return s.Integers + s.Floats }

// Apply multiplies every numeric datapoint in batch by factor and returns
// the same batch. When enabled is false the batch is returned without being
// traversed.
func Apply(batch model.Batch, factor float64, enabled bool) model.Batch {
	ApplyCounted(batch, factor, enabled)
	return batch
}

// ApplyCounted performs Apply and reports what it did.
func ApplyCounted(batch model.Batch, factor float64, enabled bool) Stats {
	var st Stats
	if !enabled {
		return st
	}
	for _, r := range batch {
		if r == nil {
			continue
		}
		st.Readings++
		for _, dp := range r.Datapoints {
			if dp == nil {
				continue
			}
			kind := dp.Value.Kind()
			if !ScaleValue(&dp.Value, factor) {
				st.Skipped++
				continue
			}
			if kind == model.KindInteger {
				st.Integers++
			} else {
				st.Floats++
			}
		}
	}
	return st
}

// ScaleValue rewrites v in place when it is numeric and reports whether it
// did. Integers are promoted to float64, multiplied, then truncated toward
// zero.
func ScaleValue(v *model.Value, factor float64) bool {
	switch v.Kind() {
	case model.KindInteger:
		v.SetInt(int64(float64(v.Int()) * factor))
		return true
	case model.KindFloat:
		v.SetFloat(v.Float() * factor)
		return true
	case model.KindString, model.KindArray, model.KindObject:
		return false
	default:
		return false
	}
}
