package monitoring

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// Now set to nil and verify it doesn't call our logger
	called = false
	SetLogger(nil)
	Logf("test")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()

	Logf("test message: %s", "value")
}

func TestZapLogf(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logf := ZapLogf(zap.New(core))

	logf("fault in %s: %d", "classify", 3)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if got, want := entries[0].Message, "fault in classify: 3"; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}

func TestZapLogf_Nil(t *testing.T) {
	if ZapLogf(nil) != nil {
		t.Error("ZapLogf(nil) should return nil so SetLogger installs a no-op")
	}
}

func TestNewZapLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := NewZapLogger("debug", format, "movementd")
		if err != nil {
			t.Fatalf("NewZapLogger(%q) error: %v", format, err)
		}
		if !l.Core().Enabled(zap.DebugLevel) {
			t.Errorf("format %q: debug level not enabled", format)
		}
	}
}
