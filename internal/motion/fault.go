package motion

import (
	"sync"
	"time"

	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/timeutil"
)

// FaultLogInterval is the minimum spacing between logged faults.
const FaultLogInterval = 10 * time.Second

// Stage identifies the pipeline stage that raised a fault.
type Stage string

const (
	StageIngest      Stage = "ingest"
	StageCalibration Stage = "calibration"
	StageFilter      Stage = "filter"
	StageClassify    Stage = "classify"
	StageSmooth      Stage = "smooth"
	StageHandler     Stage = "handler"
)

// Severity grades a fault.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	}
	return "UNKNOWN"
}

// FaultState is a snapshot of the fault controller.
type FaultState struct {
	ErrorCount    uint32    `json:"error_count"`
	LastErrorTime time.Time `json:"last_error_time"`
	Disabled      bool      `json:"disabled"`
}

// FaultEvent describes a single reported fault.
type FaultEvent struct {
	Stage      Stage
	Severity   Severity
	Err        error
	ErrorCount uint32
	At         time.Time
	// Tripped is set on the event that disabled the pipeline.
	Tripped bool
}

// FaultController counts stage faults, throttles their logging and opens
// the circuit breaker once the error count passes the threshold. There is
// no automatic recovery; a new engine is required.
type FaultController struct {
	mu         sync.Mutex
	clock      timeutil.Clock
	threshold  uint32
	safeMode   bool
	state      FaultState
	lastLogged time.Time
	suppressed int
	onFault    func(FaultEvent)
}

// NewFaultController creates an Active controller.
func NewFaultController(clock timeutil.Clock, threshold uint32, safeMode bool) *FaultController {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &FaultController{clock: clock, threshold: threshold, safeMode: safeMode}
}

// OnFault registers a hook invoked (without the lock held) for every
// reported fault. The hook must not block.
func (f *FaultController) OnFault(fn func(FaultEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onFault = fn
}

// Report records a fault. It returns true only on the report that moves the
// controller from Active to Disabled. Reports after that are ignored.
func (f *FaultController) Report(stage Stage, severity Severity, err error) bool {
	f.mu.Lock()
	if f.state.Disabled {
		f.mu.Unlock()
		return false
	}
	now := f.clock.Now()
	f.state.ErrorCount++
	f.state.LastErrorTime = now

	if f.lastLogged.IsZero() || now.Sub(f.lastLogged) >= FaultLogInterval {
		if f.suppressed > 0 {
			monitoring.Logf("[motion] %s %s: %v (error_count=%d, %d similar suppressed)", severity, stage, err, f.state.ErrorCount, f.suppressed)
		} else {
			monitoring.Logf("[motion] %s %s: %v (error_count=%d)", severity, stage, err, f.state.ErrorCount)
		}
		f.lastLogged = now
		f.suppressed = 0
	} else {
		f.suppressed++
	}

	tripped := false
	if f.safeMode && f.state.ErrorCount > f.threshold {
		f.state.Disabled = true
		tripped = true
		monitoring.Logf("[motion] CRITICAL safe mode: %d errors exceed threshold %d, disabling movement detection", f.state.ErrorCount, f.threshold)
	}

	ev := FaultEvent{
		Stage:      stage,
		Severity:   severity,
		Err:        err,
		ErrorCount: f.state.ErrorCount,
		At:         now,
		Tripped:    tripped,
	}
	hook := f.onFault
	f.mu.Unlock()

	if hook != nil {
		hook(ev)
	}
	return tripped
}

// State returns a snapshot of the controller.
func (f *FaultController) State() FaultState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Disabled reports whether the breaker has opened.
func (f *FaultController) Disabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Disabled
}

// OverThreshold reports whether the error count exceeds the threshold,
// regardless of safe mode. The classifier chain degrades to the simple
// tier once this holds.
func (f *FaultController) OverThreshold() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.ErrorCount > f.threshold
}
