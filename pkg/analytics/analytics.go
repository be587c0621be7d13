// Package analytics derives historical trends (mesh growth, per-node
// signal drift) from pkg/history's observation log using simple linear
// regression.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/sajari/regression"

	"github.com/meshforge/meshforge-maps/pkg/history"
	"github.com/meshforge/meshforge-maps/pkg/model"
)

// Trend is a fitted linear model: value ≈ Slope*x + Intercept, where x
// is elapsed seconds since the first sample in the series.
type Trend struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r_squared"`
	Samples   int     `json:"samples"`
}

// Predict evaluates the fitted trend at elapsedSeconds since the
// series' first sample.
func (t Trend) Predict(elapsedSeconds float64) float64 {
	return t.Slope*elapsedSeconds + t.Intercept
}

// Analytics computes trends from a history.Store's observation log.
type Analytics struct {
	store *history.Store
}

// New creates an Analytics bound to store.
func New(store *history.Store) *Analytics {
	return &Analytics{store: store}
}

// NetworkGrowthTrend buckets recent observations into interval-sized
// windows, counts distinct nodes seen per window, and fits a linear
// trend to that series -- a positive slope means the mesh is growing.
func (a *Analytics) NetworkGrowthTrend(since time.Time, interval time.Duration) (Trend, error) {
	obs, err := a.store.Recent(100000)
	if err != nil {
		return Trend{}, fmt.Errorf("load observations: %w", err)
	}

	type bucket struct {
		nodes map[string]struct{}
		ts    int64
	}
	buckets := make(map[int64]*bucket)
	sinceUnix := since.Unix()
	step := int64(interval.Seconds())
	if step <= 0 {
		step = 3600
	}

	for _, o := range obs {
		if o.Timestamp < sinceUnix {
			continue
		}
		key := (o.Timestamp - sinceUnix) / step
		b, ok := buckets[key]
		if !ok {
			b = &bucket{nodes: make(map[string]struct{}), ts: sinceUnix + key*step}
			buckets[key] = b
		}
		b.nodes[o.NodeID] = struct{}{}
	}

	if len(buckets) < 2 {
		return Trend{}, fmt.Errorf("need at least 2 time buckets to fit a trend, have %d", len(buckets))
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	firstTS := buckets[keys[0]].ts
	r := new(regression.Regression)
	r.SetObserved("node_count")
	r.SetVar(0, "elapsed_seconds")
	for _, k := range keys {
		b := buckets[k]
		elapsed := float64(b.ts - firstTS)
		r.Train(regression.DataPoint(float64(len(b.nodes)), []float64{elapsed}))
	}
	if err := r.Run(); err != nil {
		return Trend{}, fmt.Errorf("fit growth trend: %w", err)
	}

	return Trend{
		Slope:     r.Coeff(1),
		Intercept: r.Coeff(0),
		R2:        r.R2,
		Samples:   len(keys),
	}, nil
}

// SignalTrend fits a linear trend to nodeID's SNR readings over its
// recent trajectory, in dB per second.
func (a *Analytics) SignalTrend(nodeID string, since time.Time) (Trend, error) {
	traj, err := a.store.Trajectory(nodeID, since)
	if err != nil {
		return Trend{}, fmt.Errorf("load trajectory: %w", err)
	}
	return fitSNRTrend(traj)
}

func fitSNRTrend(traj []model.Observation) (Trend, error) {
	var points []model.Observation
	for _, o := range traj {
		if o.SNR != nil {
			points = append(points, o)
		}
	}
	if len(points) < 2 {
		return Trend{}, fmt.Errorf("need at least 2 SNR samples to fit a trend, have %d", len(points))
	}

	first := points[0].Timestamp
	r := new(regression.Regression)
	r.SetObserved("snr")
	r.SetVar(0, "elapsed_seconds")
	for _, o := range points {
		elapsed := float64(o.Timestamp - first)
		r.Train(regression.DataPoint(*o.SNR, []float64{elapsed}))
	}
	if err := r.Run(); err != nil {
		return Trend{}, fmt.Errorf("fit signal trend: %w", err)
	}

	return Trend{
		Slope:     r.Coeff(1),
		Intercept: r.Coeff(0),
		R2:        r.R2,
		Samples:   len(points),
	}, nil
}
