package serialmux

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/motion.report/internal/synth"
)

// SyntheticPort is a SerialPorter that streams generated IMU JSON lines, for
// running the daemon without hardware. Writing "MODE=<mode>" switches the
// generated movement pattern.
type SyntheticPort struct {
	mu      sync.Mutex
	mode    synth.Mode
	start   time.Time
	rng     *rand.Rand
	written bytes.Buffer

	interval  time.Duration
	pr        *io.PipeReader
	pw        *io.PipeWriter
	done      chan struct{}
	closeOnce sync.Once
}

// NewSyntheticPort starts generating lines for mode at rateHz.
func NewSyntheticPort(mode synth.Mode, rateHz int, seed int64) *SyntheticPort {
	if rateHz <= 0 {
		rateHz = DefaultOutputRateHz
	}
	pr, pw := io.Pipe()
	p := &SyntheticPort{
		mode:     mode,
		start:    time.Now(),
		rng:      rand.New(rand.NewSource(seed)),
		interval: time.Second / time.Duration(rateHz),
		pr:       pr,
		pw:       pw,
		done:     make(chan struct{}),
	}
	go p.generate()
	return p
}

// NewSyntheticSerialMux returns a mux over a SyntheticPort.
func NewSyntheticSerialMux(mode synth.Mode, rateHz int, seed int64) *SerialMux[*SyntheticPort] {
	return NewSerialMux(NewSyntheticPort(mode, rateHz, seed))
}

func (p *SyntheticPort) generate() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case now := <-ticker.C:
			p.mu.Lock()
			a := synth.At(p.mode, p.start, now.Sub(p.start), p.rng)
			p.mu.Unlock()
			if _, err := io.WriteString(p.pw, synth.FormatJSON(a)+"\n"); err != nil {
				return
			}
		}
	}
}

func (p *SyntheticPort) Read(b []byte) (int, error) { return p.pr.Read(b) }

// Write records commands and applies MODE= switches.
func (p *SyntheticPort) Write(b []byte) (int, error) {
	select {
	case <-p.done:
		return 0, errors.New("serial port closed")
	default:
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written.Write(b)
	for _, line := range strings.Split(string(b), "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "MODE="); ok {
			if m, err := synth.ParseMode(v); err == nil {
				p.mode = m
			}
		}
	}
	return len(b), nil
}

func (p *SyntheticPort) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.pw.Close()
		p.pr.Close()
	})
	return nil
}

// Mode returns the pattern currently generated.
func (p *SyntheticPort) Mode() synth.Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// Written returns everything written to the port.
func (p *SyntheticPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// TestableSerialPort implements SerialPorter with configurable behaviour for
// testing: scripted reads, captured writes and injected errors.
type TestableSerialPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error

	// WriteError is returned by the next Write call if set
	WriteError error

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// BlockReads causes Read to block until data is added or Close is called
	BlockReads bool

	readCond *sync.Cond
}

// NewTestableSerialPort creates a TestableSerialPort with blocking reads.
func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
		BlockReads:  true,
	}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

// Read returns buffered data, blocking for more when BlockReads is set.
func (t *TestableSerialPort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}
	if t.BlockReads {
		for !t.Closed && t.ReadBuffer.Len() == 0 && t.ReadError == nil {
			t.readCond.Wait()
		}
		if t.ReadError != nil {
			err := t.ReadError
			t.ReadError = nil
			return 0, err
		}
	}
	if t.Closed && t.ReadBuffer.Len() == 0 {
		return 0, io.EOF
	}
	return t.ReadBuffer.Read(p)
}

// Write captures p, or returns the injected error once.
func (t *TestableSerialPort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errors.New("serial port closed")
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed and wakes blocked readers.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.readCond.Broadcast()
	return t.CloseError
}

// AddReadData appends data for subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
	t.readCond.Broadcast()
}

// FailRead makes the next (or a blocked) Read return err.
func (t *TestableSerialPort) FailRead(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadError = err
	t.readCond.Broadcast()
}

// GetWrittenData returns all data written to the port.
func (t *TestableSerialPort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]byte(nil), t.WriteBuffer.Bytes()...)
}
