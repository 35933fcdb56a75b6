package serialmux

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func receiveLine(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case line, ok := <-ch:
		if !ok {
			t.Fatal("subscriber channel closed")
		}
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
	}
	return ""
}

func TestSerialMux_MonitorFansOutLines(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	t.Cleanup(func() { mux.Close() })

	_, ch1 := mux.Subscribe()
	_, ch2 := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- mux.Monitor(ctx) }()

	port.AddReadData([]byte("first\nsecond\n"))
	for _, ch := range []chan string{ch1, ch2} {
		if got := receiveLine(t, ch); got != "first" {
			t.Errorf("line 1 = %q, want first", got)
		}
		if got := receiveLine(t, ch); got != "second" {
			t.Errorf("line 2 = %q, want second", got)
		}
	}

	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Monitor returned %v, want context.Canceled", err)
	}
}

func TestSerialMux_MonitorReturnsReadError(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	t.Cleanup(func() { mux.Close() })

	errBoom := errors.New("usb unplugged")
	errc := make(chan error, 1)
	go func() { errc <- mux.Monitor(context.Background()) }()
	port.FailRead(errBoom)

	select {
	case err := <-errc:
		if !errors.Is(err, errBoom) {
			t.Errorf("Monitor returned %v, want %v", err, errBoom)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after read error")
	}
}

func TestSerialMux_CloseEndsMonitor(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	errc := make(chan error, 1)
	go func() { errc <- mux.Monitor(context.Background()) }()

	if err := mux.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Monitor returned %v after Close, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after Close")
	}
	if _, ok := <-ch; ok {
		t.Error("subscriber channel still open after Close")
	}
	_, late := mux.Subscribe()
	if _, ok := <-late; ok {
		t.Error("Subscribe after Close returned an open channel")
	}
}

func TestSerialMux_Unsubscribe(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())
	id, ch := mux.Subscribe()
	mux.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Error("channel open after Unsubscribe")
	}
	// unknown IDs are ignored
	mux.Unsubscribe(id)
	mux.Unsubscribe("missing")
}

type shortWritePort struct{ *TestableSerialPort }

func (shortWritePort) Write(p []byte) (int, error) { return len(p) - 1, nil }

func TestSerialMux_SendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	if err := mux.SendCommand("RATE=50"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if err := mux.SendCommand("LIN=1\n"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if got := string(port.GetWrittenData()); got != "RATE=50\nLIN=1\n" {
		t.Errorf("written = %q", got)
	}

	port.WriteError = errors.New("io error")
	if err := mux.SendCommand("X"); err == nil {
		t.Error("expected write error")
	}

	short := NewSerialMux(shortWritePort{NewTestableSerialPort()})
	if err := short.SendCommand("FMT=JSON"); !errors.Is(err, ErrWriteFailed) {
		t.Errorf("short write returned %v, want ErrWriteFailed", err)
	}
}

func TestSerialMux_Initialize(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	now := time.UnixMilli(1717243200123)
	mux.now = func() time.Time { return now }

	if err := mux.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	want := "TS=1717243200123\nFMT=JSON\nLIN=1\nRATE=40\nSTREAM=1\n"
	if got := string(port.GetWrittenData()); got != want {
		t.Errorf("init commands = %q, want %q", got, want)
	}

	port.WriteError = errors.New("io error")
	if err := mux.Initialize(); err == nil || !strings.Contains(err.Error(), "TS=") {
		t.Errorf("Initialize error = %v, want failure naming the first command", err)
	}
}

func TestInitCommands_DefaultRate(t *testing.T) {
	cmds := InitCommands(time.UnixMilli(0), 0)
	if cmds[3] != "RATE=40" {
		t.Errorf("rate command = %q, want RATE=40", cmds[3])
	}
}
