package motion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/timeutil"
)

var (
	// ErrEngineDisabled is returned by Run once the fault controller has
	// disabled the pipeline.
	ErrEngineDisabled = errors.New("movement engine disabled by safe mode")
	// ErrNotSupported is returned by Run when the source reports that
	// motion sensing is unavailable.
	ErrNotSupported = errors.New("motion sensing not supported")
	// ErrAlreadyRunning is returned by a second concurrent call to Run.
	ErrAlreadyRunning = errors.New("movement engine already running")
)

const subscriberBuffer = 16

// Stats are engine counters for diagnostics.
type Stats struct {
	Ticks           uint64 `json:"ticks"`
	Published       uint64 `json:"published"`
	Rejected        uint64 `json:"rejected"`
	SkippedTicks    uint64 `json:"skipped_ticks"`
	AcceptedSamples uint64 `json:"accepted_samples"`
	DroppedSamples  uint64 `json:"dropped_samples"`
	MalformedEvents uint64 `json:"malformed_events"`
	Deferred        uint64 `json:"deferred"`
	LastTier        Tier   `json:"last_tier,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock driving the analysis timer.
func WithClock(c timeutil.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithChain replaces the default classifier chain.
func WithChain(ch *Chain) Option {
	return func(e *Engine) { e.chain = ch }
}

// WithSmoothFunc replaces the default smoothing function.
func WithSmoothFunc(fn SmoothFunc) Option {
	return func(e *Engine) { e.smoothFn = fn }
}

// WithFaultHook registers a non-blocking hook called for every fault.
func WithFaultHook(fn func(FaultEvent)) Option {
	return func(e *Engine) { e.faultHook = fn }
}

// Engine is the movement classification pipeline. The sample buffer,
// calibrator, classifiers and smoother are owned by the goroutine running
// Run (or the caller of Ingest/Tick when driven manually); State, Stats,
// Faults and the subscription methods are safe from any goroutine.
type Engine struct {
	cfg       Config
	src       Source
	clock     timeutil.Clock
	sessionID string

	buffer     *SampleBuffer
	calibrator *Calibrator
	filter     MedianFilter
	chain      *Chain
	smoothFn   SmoothFunc
	smoother   *TemporalSmoother
	gate       Gate
	faults     *FaultController
	faultHook  func(FaultEvent)
	ticker     timeutil.Ticker

	state   atomic.Pointer[MovementState]
	profile atomic.Pointer[CalibrationProfile]

	statsMu sync.Mutex
	stats   Stats

	subMu       sync.Mutex
	subscribers map[string]chan MovementState
	subsClosed  bool

	running      atomic.Bool
	done         chan struct{}
	shutdownOnce sync.Once
	disableOnce  sync.Once
}

// NewEngine creates an engine reading from src.
func NewEngine(cfg Config, src Source, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if src == nil {
		return nil, errors.New("nil source")
	}
	e := &Engine{
		cfg:         cfg,
		src:         src,
		clock:       timeutil.RealClock{},
		sessionID:   uuid.NewString(),
		buffer:      NewSampleBuffer(cfg.MaxSampleBufferSize, cfg.SampleSize),
		calibrator:  NewCalibrator(cfg.WalkingThreshold, cfg.VehicleThreshold),
		gate:        Gate{MinConfidence: cfg.MinConfidence, Adaptive: cfg.AdaptiveThresholds},
		subscribers: make(map[string]chan MovementState),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.chain == nil {
		e.chain = NewChain(cfg)
	}
	e.smoother = NewTemporalSmoother(e.smoothFn)
	e.faults = NewFaultController(e.clock, cfg.ErrorThreshold, cfg.SafeMode)
	e.faults.OnFault(e.faultHook)

	e.state.Store(&MovementState{Type: TypeUnknown})
	e.profile.Store(&CalibrationProfile{})
	return e, nil
}

// SessionID identifies this engine instance.
func (e *Engine) SessionID() string { return e.sessionID }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// State returns the most recently published state.
func (e *Engine) State() MovementState { return *e.state.Load() }

// Calibration returns the current calibration profile.
func (e *Engine) Calibration() CalibrationProfile { return *e.profile.Load() }

// Faults returns the fault controller snapshot.
func (e *Engine) Faults() FaultState { return e.faults.State() }

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// Run drives the engine until ctx is cancelled, Shutdown is called or the
// breaker opens. Raw events are drained into the buffer and the pipeline
// runs on every tick of the update interval.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)

	if e.faults.Disabled() {
		return ErrEngineDisabled
	}
	if !e.src.Supported() {
		monitoring.Logf("[motion] motion sensing not supported on this device")
		e.publishState(MovementState{Type: TypeUnknown, IsSupported: boolPtr(false)})
		return ErrNotSupported
	}
	e.publishState(MovementState{Type: TypeUnknown, IsSupported: boolPtr(true)})

	ticker := e.clock.NewTicker(e.cfg.UpdateInterval)
	e.ticker = ticker
	defer ticker.Stop()

	events := e.src.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.done:
			return nil
		case ev, ok := <-events:
			if !ok {
				// Source ended; keep analysing what is buffered.
				events = nil
				continue
			}
			e.Ingest(ev)
		case <-ticker.C():
			e.Tick()
		}
		if e.faults.Disabled() {
			return ErrEngineDisabled
		}
	}
}

// Shutdown stops the run loop and unregisters the source. In-flight work is
// not awaited. Subscriber channels are closed.
func (e *Engine) Shutdown() {
	e.shutdownOnce.Do(func() {
		close(e.done)
		if err := e.src.Close(); err != nil {
			monitoring.Logf("[motion] failed to close sample source: %v", err)
		}
		e.subMu.Lock()
		defer e.subMu.Unlock()
		for id, ch := range e.subscribers {
			close(ch)
			delete(e.subscribers, id)
		}
		e.subsClosed = true
	})
}

// Ingest handles one raw event. Malformed events are skipped silently.
func (e *Engine) Ingest(ev RawEvent) {
	if e.faults.Disabled() {
		return
	}
	if err := e.ingest(ev); err != nil {
		e.report(StageIngest, SeverityMedium, err)
	}
}

func (e *Engine) ingest(ev RawEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sample ingestion panic: %v", r)
		}
	}()

	if ev.X == nil || ev.Y == nil || ev.Z == nil || !isFinite(*ev.X) || !isFinite(*ev.Y) || !isFinite(*ev.Z) {
		e.bumpStats(func(s *Stats) { s.MalformedEvents++ })
		return nil
	}
	ts := e.clock.Now()
	if ev.TimestampMillis > 0 {
		ts = time.UnixMilli(ev.TimestampMillis)
	}
	s := NewSample(*ev.X, *ev.Y, *ev.Z, ts)
	if !e.buffer.Push(s) {
		e.bumpStats(func(s *Stats) { s.DroppedSamples++ })
		return nil
	}
	e.bumpStats(func(s *Stats) { s.AcceptedSamples++ })

	if e.calibrator.Calibrated() {
		return nil
	}
	done, cerr := e.calibrator.Add(s.Magnitude)
	if !done {
		return nil
	}
	p := e.calibrator.Profile()
	e.profile.Store(&p)
	e.chain.ApplyCalibration(p)
	if cerr != nil {
		e.report(StageCalibration, SeverityMedium, fmt.Errorf("calibration failed, using defaults: %w", cerr))
		return nil
	}
	monitoring.Logf("[motion] calibrated: baseline_noise=%.3f walking=%.3f vehicle=%.3f",
		p.BaselineNoise, p.AdjustedWalkingThreshold, p.AdjustedVehicleThreshold)
	return nil
}

// Tick runs filter, classify, smooth and gate over the buffered samples and
// publishes the result if the gate admits it.
func (e *Engine) Tick() {
	if e.faults.Disabled() {
		return
	}
	e.bumpStats(func(s *Stats) { s.Ticks++ })

	samples := e.buffer.Samples()
	if len(samples) < e.cfg.minAnalysisSamples() {
		e.bumpStats(func(s *Stats) { s.SkippedTicks++ })
		return
	}

	filtered, ok := e.runFilter(samples)
	if !ok {
		return
	}

	simpleOnly := e.cfg.UseSimpleMode || e.faults.OverThreshold()
	outcome := e.chain.Run(filtered, simpleOnly)
	for _, f := range outcome.Failures {
		if e.report(StageClassify, tierSeverity(f.Tier), fmt.Errorf("%s classifier failed: %w", f.Tier, f.Err)) {
			return
		}
	}
	e.bumpStats(func(s *Stats) {
		s.LastTier = outcome.Tier
		s.Deferred += uint64(len(outcome.Deferred))
	})

	result := outcome.Classification
	if e.cfg.TemporalSmoothing {
		smoothed, err := e.smoother.Apply(result)
		if err != nil && e.report(StageSmooth, SeverityLow, err) {
			return
		}
		result = smoothed
	}

	if !e.gate.Admit(result) {
		e.bumpStats(func(s *Stats) { s.Rejected++ })
		return
	}

	now := e.clock.Now()
	details := result.Details.clone()
	e.publishState(MovementState{
		Type:        result.Type,
		Confidence:  result.Confidence,
		LastUpdated: &now,
		IsSupported: boolPtr(true),
		Details:     &details,
	})
	e.bumpStats(func(s *Stats) { s.Published++ })
}

// runFilter returns the filtered samples, or the raw samples if filtering
// failed outright. ok is false only when a fault disabled the engine.
func (e *Engine) runFilter(samples []Sample) (out []Sample, ok bool) {
	filtered, stats, err := safeFilter(e.filter, samples)
	if err != nil {
		return samples, !e.report(StageFilter, SeverityMedium, err)
	}
	if stats.Degraded > 0 {
		err := fmt.Errorf("%d samples passed through unfiltered: %w", stats.Degraded, stats.LastErr)
		return filtered, !e.report(StageFilter, SeverityMedium, err)
	}
	return filtered, true
}

func safeFilter(f MedianFilter, samples []Sample) (out []Sample, stats FilterStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("median filter panic: %v", r)
		}
	}()
	out, stats = f.Filter(samples)
	return out, stats, nil
}

func tierSeverity(t Tier) Severity {
	switch t {
	case TierEnhanced:
		return SeverityHigh
	case TierSimple:
		return SeverityMedium
	default:
		return SeverityCritical
	}
}

// report forwards a fault to the controller and disables the engine if it
// tripped the breaker. It returns whether the engine is now disabled.
func (e *Engine) report(stage Stage, severity Severity, err error) bool {
	if e.faults.Report(stage, severity, err) {
		e.disable()
		return true
	}
	return e.faults.Disabled()
}

// disable unregisters the source, stops the analysis timer and publishes
// the unsupported state. It runs once.
func (e *Engine) disable() {
	e.disableOnce.Do(func() {
		if err := e.src.Close(); err != nil {
			monitoring.Logf("[motion] failed to unregister sample source: %v", err)
		}
		if e.ticker != nil {
			e.ticker.Stop()
		}
		now := e.clock.Now()
		e.publishState(MovementState{
			Type:        TypeUnknown,
			Confidence:  0,
			LastUpdated: &now,
			IsSupported: boolPtr(false),
		})
	})
}

func (e *Engine) publishState(st MovementState) {
	e.state.Store(&st)

	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subscribers {
		select {
		case ch <- st:
		default:
			// slow subscriber; skip rather than block the pipeline
		}
	}
}

// Subscribe returns a channel receiving every published state. Slow
// subscribers miss states rather than blocking the engine.
func (e *Engine) Subscribe() (string, <-chan MovementState) {
	id := uuid.NewString()
	ch := make(chan MovementState, subscriberBuffer)

	e.subMu.Lock()
	defer e.subMu.Unlock()
	if e.subsClosed {
		close(ch)
		return id, ch
	}
	e.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscription.
func (e *Engine) Unsubscribe(id string) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	if ch, ok := e.subscribers[id]; ok {
		close(ch)
		delete(e.subscribers, id)
	}
}

func (e *Engine) bumpStats(fn func(*Stats)) {
	e.statsMu.Lock()
	fn(&e.stats)
	e.statsMu.Unlock()
}
