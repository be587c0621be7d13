// Package collector implements the poll-based ingest sources: Meshtastic
// (store-first, device HTTP fallback), Reticulum (cryptographic mesh),
// AREDN (Wi-Fi mesh), and hamclock (HF propagation feed). The live
// Meshtastic MQTT push path is handled by pkg/broker; the collector here
// covers the polled view of the same network.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/breaker"
	"github.com/meshforge/meshforge-maps/pkg/events"
	"github.com/meshforge/meshforge-maps/pkg/logx"
	"github.com/meshforge/meshforge-maps/pkg/model"
	"github.com/meshforge/meshforge-maps/pkg/perf"
	"github.com/meshforge/meshforge-maps/pkg/reconnect"
)

// Result is one poll cycle's output: the features observed and the
// topology links derived between them.
type Result struct {
	Features []model.Feature
	Links    []model.TopologyLink
}

// Source is implemented by each concrete poll-based collector. Poll should
// return quickly and must respect ctx cancellation; BaseCollector handles
// scheduling, retry, and circuit-breaking around it.
type Source interface {
	Name() string
	Network() model.Network
	Poll(ctx context.Context) (Result, error)
}

// BaseCollector wraps a Source with circuit-breaking, jittered reconnect
// backoff, and event-bus notification, matching the supervise-and-retry
// shape of the teacher's retry.Runner but applied to a long-running poll
// loop instead of one-shot command execution.
type BaseCollector struct {
	source   Source
	breaker  *breaker.Breaker
	backoff  *reconnect.Strategy
	bus      *events.Bus
	log      *logx.Logger
	interval time.Duration
	perf     *perf.Recorder

	up bool // last poll outcome, for service up/down transition events
}

// SetPerf installs a latency recorder; every poll's wall time and
// outcome is reported to it under the source's name.
func (b *BaseCollector) SetPerf(r *perf.Recorder) {
	b.perf = r
}

// NewBaseCollector wraps source with the given polling interval. br and
// bus may be nil; a nil breaker disables circuit-breaking and a nil bus
// disables event publication.
func NewBaseCollector(source Source, interval time.Duration, br *breaker.Breaker, bus *events.Bus, log *logx.Logger) *BaseCollector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &BaseCollector{
		source:   source,
		breaker:  br,
		backoff:  reconnect.New(reconnect.DefaultConfig()),
		bus:      bus,
		log:      log,
		interval: interval,
	}
}

// Run polls the wrapped source on a timer until ctx is canceled, calling
// onResult with each successful Result. A failed poll (including a
// breaker rejection) is logged and backed off before the next attempt;
// the base interval resumes once a poll succeeds.
func (b *BaseCollector) Run(ctx context.Context, onResult func(Result)) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		delay := b.interval
		if err := b.pollOnce(ctx, onResult); err != nil {
			delay = b.backoff.Next()
			if b.log != nil {
				b.log.Warn("collector poll failed", "source", b.source.Name(), "error", err.Error(), "retry_in", delay.String())
			}
			b.publishTransition(false)
		} else {
			b.backoff.Reset()
			b.publishTransition(true)
		}
		timer.Reset(delay)
	}
}

func (b *BaseCollector) pollOnce(ctx context.Context, onResult func(Result)) error {
	if b.breaker != nil && !b.breaker.Allow() {
		return fmt.Errorf("%s: %w", b.source.Name(), breaker.ErrOpen)
	}

	start := time.Now()
	result, err := b.source.Poll(ctx)
	if b.perf != nil {
		b.perf.RecordPoll(b.source.Name(), time.Since(start), err)
	}
	if err != nil {
		if b.breaker != nil {
			b.breaker.RecordFailure()
		}
		return err
	}
	if b.breaker != nil {
		b.breaker.RecordSuccess()
	}

	onResult(result)
	if b.bus != nil {
		for i := range result.Features {
			b.bus.Publish(events.Event{
				Topic:     events.TopicFeatureUpdated,
				NodeID:    result.Features[i].ID,
				Timestamp: time.Now(),
				Payload:   result.Features[i],
			})
		}
	}
	return nil
}

// publishTransition emits a service up/down event when the source's
// poll outcome flips. The first successful poll counts as a transition
// to up; steady-state outcomes publish nothing.
func (b *BaseCollector) publishTransition(ok bool) {
	if ok == b.up {
		return
	}
	b.up = ok
	if b.bus == nil {
		return
	}
	topic := events.TopicServiceUp
	if !ok {
		topic = events.TopicServiceDown
	}
	b.bus.Publish(events.Event{
		Topic:     topic,
		Timestamp: time.Now(),
		Payload:   b.source.Name(),
	})
}

// Name returns the wrapped source's name, for registries keyed by source.
func (b *BaseCollector) Name() string {
	return b.source.Name()
}
