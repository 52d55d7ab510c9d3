package model

import (
	"time"

	"github.com/google/uuid"
)

// Datapoint is a named measurement within a Reading.
type Datapoint struct {
	Name  string
	Value Value
}

// NewDatapoint allocates a datapoint.
func NewDatapoint(name string, v Value) *Datapoint {
	return &Datapoint{Name: name, Value: v}
}

// Reading is a named, timestamped set of datapoints produced by one asset.
// Datapoint names are not required to be unique.
type Reading struct {
	UUID          string
	AssetCode     string
	Timestamp     time.Time
	UserTimestamp time.Time
	Datapoints    []*Datapoint
}

// NewReading builds a reading stamped with a fresh UUID and the current time.
func NewReading(assetCode string, dps ...*Datapoint) *Reading {
	now := time.Now().UTC()
	return &Reading{
		UUID:          uuid.NewString(),
		AssetCode:     assetCode,
		Timestamp:     now,
		UserTimestamp: now,
		Datapoints:    dps,
	}
}

// Normalize fills the fields an upstream producer may omit: a missing UUID
// gets a random one, a missing timestamp gets now and a missing user
// timestamp copies the timestamp.
func (r *Reading) Normalize(now time.Time) {
	if r.UUID == "" {
		r.UUID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = now.UTC()
	}
	if r.UserTimestamp.IsZero() {
		r.UserTimestamp = r.Timestamp
	}
}

// Datapoint returns the first datapoint called name, or nil.
func (r *Reading) Datapoint(name string) *Datapoint {
	for _, dp := range r.Datapoints {
		if dp != nil && dp.Name == name {
			return dp
		}
	}
	return nil
}

// Batch is an ordered set of readings processed together in one pipeline call.
type Batch []*Reading

// DatapointCount returns the total number of datapoints across the batch.
func (b Batch) DatapointCount() int {
	n := 0
	for _, r := range b {
		if r != nil {
			n += len(r.Datapoints)
		}
	}
	return n
}
