// Package scheduler runs the periodic sample, encode and dispatch cycle.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/telebridge/internal/gatt"
	"github.com/srg/telebridge/internal/ringchan"
	"github.com/srg/telebridge/internal/sensor"
	"github.com/srg/telebridge/internal/telemetry"
)

// DefaultPeriod is the interval between cycle starts.
const DefaultPeriod = 2 * time.Second

// Publisher stores and notifies encoded payloads.
type Publisher interface {
	Publish(payloads []gatt.Payload) gatt.PublishResult
}

// CycleReport describes one completed cycle.
type CycleReport struct {
	Seq      uint64
	Started  time.Time
	Duration time.Duration
	Frame    telemetry.Frame
	// Failed maps source names to the error that kept them out of the cycle.
	Failed    map[string]error
	Published gatt.PublishResult
	// ClockEpoch is the peer-set clock at the end of the cycle, 0 if unset.
	ClockEpoch uint32
	// Skipped is set when the cycle did not run because another was active.
	Skipped bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithPeriod(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.period = d
		}
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock adds the peer-set clock to cycle reports.
func WithClock(c *gatt.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithReportBuffer sets how many unread reports observers may lag behind.
func WithReportBuffer(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.reports = ringchan.New[CycleReport](n)
		}
	}
}

// Scheduler owns the sampling loop. Sources are sampled in order every
// period; a failing source never stops the others.
type Scheduler struct {
	sources   []sensor.Source
	encoder   telemetry.Encoder
	publisher Publisher
	frame     *telemetry.Frame
	period    time.Duration
	logger    *logrus.Logger
	clock     *gatt.Clock
	reports   *ringchan.RingChannel[CycleReport]

	seq    atomic.Uint64
	active atomic.Bool
}

// New creates a scheduler over sources in sampling order.
func New(sources []sensor.Source, encoder telemetry.Encoder, publisher Publisher, opts ...Option) *Scheduler {
	s := &Scheduler{
		sources:   sources,
		encoder:   encoder,
		publisher: publisher,
		frame:     telemetry.NewFrame(),
		period:    DefaultPeriod,
		logger:    logrus.New(),
		reports:   ringchan.New[CycleReport](1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Period returns the cycle period.
func (s *Scheduler) Period() time.Duration {
	return s.period
}

// Reports delivers cycle reports to observers. Slow observers miss old
// reports rather than delaying the loop. The channel closes when Run returns.
func (s *Scheduler) Reports() <-chan CycleReport {
	return s.reports.C()
}

// Init initializes every source in order and stops at the first failure.
func (s *Scheduler) Init(ctx context.Context) error {
	for _, src := range s.sources {
		if err := src.Init(ctx); err != nil {
			s.logger.WithField("source", src.Name()).WithError(err).Error("Sensor initialization failed")
			return err
		}
		s.logger.WithField("source", src.Name()).Info("Sensor ready")
	}
	return nil
}

// Run ticks immediately and then every period until ctx is done. Ticks that
// fall due while a cycle is still running are dropped.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.reports.Close()

	s.logger.WithFields(logrus.Fields{
		"period":  s.period,
		"sources": len(s.sources),
	}).Info("Sampling started")

	s.Tick(ctx)

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sampling stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one cycle. It never panics and never returns an error: source,
// encoder and transport failures are logged and reported.
func (s *Scheduler) Tick(ctx context.Context) (report CycleReport) {
	if !s.active.CompareAndSwap(false, true) {
		s.logger.Warn("Cycle skipped, previous cycle still running")
		return CycleReport{Skipped: true}
	}
	defer s.active.Store(false)

	report = CycleReport{
		Seq:     s.seq.Add(1),
		Started: time.Now(),
		Failed:  make(map[string]error),
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("seq", report.Seq).Errorf("Cycle aborted: %v", r)
			report.Failed["cycle"] = fmt.Errorf("panic: %v", r)
		}
		report.Duration = time.Since(report.Started)
		report.Frame = s.frame.Snapshot()
		if s.clock != nil {
			report.ClockEpoch = s.clock.Read()
		}
		s.reports.Send(report)
	}()

	s.frame.BeginCycle()
	for _, src := range s.sources {
		if err := s.sampleInto(ctx, src); err != nil {
			report.Failed[src.Name()] = err
			s.logger.WithField("source", src.Name()).WithError(err).Warn("Sensor fetch failed")
		}
	}

	payloads := s.encoder.Encode(s.frame)
	report.Published = s.publisher.Publish(payloads)

	s.logger.WithFields(logrus.Fields{
		"seq":        report.Seq,
		"payloads":   len(payloads),
		"sent":       report.Published.Sent,
		"suppressed": report.Published.Suppressed,
		"failed":     len(report.Failed),
	}).Debug("Cycle complete")
	return report
}

func (s *Scheduler) sampleInto(ctx context.Context, src sensor.Source) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &sensor.FetchError{Source: src.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	samples, err := src.Sample(ctx)
	if err != nil {
		return err
	}
	if err := s.frame.ApplyAll(samples); err != nil {
		return &sensor.FetchError{Source: src.Name(), Err: err}
	}
	return nil
}
