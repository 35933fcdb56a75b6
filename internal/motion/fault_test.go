package motion

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.report/internal/testutil"
	"github.com/banshee-data/motion.report/internal/timeutil"
)

var captureLogs = testutil.CaptureLogs

func TestFaultController_TripsAfterThreshold(t *testing.T) {
	captureLogs(t)
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	fc := NewFaultController(clock, 3, true)

	var events []FaultEvent
	fc.OnFault(func(ev FaultEvent) { events = append(events, ev) })

	for i := 1; i <= 3; i++ {
		assert.False(t, fc.Report(StageClassify, SeverityHigh, errScripted), "report %d tripped", i)
		assert.False(t, fc.Disabled())
	}
	assert.True(t, fc.Report(StageClassify, SeverityHigh, errScripted))
	assert.True(t, fc.Disabled())

	// Disabled is absorbing; further reports are ignored.
	assert.False(t, fc.Report(StageFilter, SeverityMedium, errScripted))
	st := fc.State()
	assert.Equal(t, uint32(4), st.ErrorCount)
	assert.True(t, st.Disabled)
	assert.Equal(t, clock.Now(), st.LastErrorTime)

	require.Len(t, events, 4)
	assert.True(t, events[3].Tripped)
	assert.Equal(t, uint32(4), events[3].ErrorCount)
}

func TestFaultController_SafeModeOff(t *testing.T) {
	captureLogs(t)
	fc := NewFaultController(timeutil.NewMockClock(time.Unix(1000, 0)), 3, false)
	for i := 0; i < 10; i++ {
		assert.False(t, fc.Report(StageClassify, SeverityHigh, errScripted))
	}
	assert.False(t, fc.Disabled())
	assert.True(t, fc.OverThreshold())
	assert.Equal(t, uint32(10), fc.State().ErrorCount)
}

func TestFaultController_ThrottlesLogging(t *testing.T) {
	logs := captureLogs(t)
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	fc := NewFaultController(clock, 100, true)

	fc.Report(StageFilter, SeverityMedium, errScripted)
	clock.Advance(time.Second)
	fc.Report(StageFilter, SeverityMedium, errScripted)
	fc.Report(StageFilter, SeverityMedium, errScripted)
	require.Len(t, *logs, 1)

	clock.Advance(FaultLogInterval)
	fc.Report(StageSmooth, SeverityLow, errScripted)
	require.Len(t, *logs, 2)
	assert.True(t, strings.Contains((*logs)[1], "2 similar suppressed"), (*logs)[1])
	assert.True(t, strings.HasPrefix((*logs)[1], "[motion] LOW smooth"), (*logs)[1])
}

func TestSeverity_String(t *testing.T) {
	assert.Equal(t, "LOW", SeverityLow.String())
	assert.Equal(t, "CRITICAL", SeverityCritical.String())
	assert.Equal(t, "UNKNOWN", Severity(42).String())
}
