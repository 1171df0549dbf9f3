package domain

import (
	"sync"
	"time"
)

// Diagnostic names recorded by the document processor.
const (
	DiagnosticPropertiesEncrypted = "properties_encrypted_count"
	DiagnosticPropertiesDecrypted = "properties_decrypted_count"
	DiagnosticEncryptStart        = "encrypt_start"
	DiagnosticDecryptStart        = "decrypt_start"
	DiagnosticEncryptDuration     = "encrypt_duration"
	DiagnosticDecryptDuration     = "decrypt_duration"
)

// DiagnosticsSink receives named counters and timings. It is never read for control flow.
type DiagnosticsSink interface {
	SetCounter(name string, value int)
	SetTimestamp(name string, at time.Time)
	SetDuration(name string, d time.Duration)
}

// Diagnostics is an in-memory DiagnosticsSink safe for concurrent use.
type Diagnostics struct {
	mu         sync.Mutex
	counters   map[string]int
	timestamps map[string]time.Time
	durations  map[string]time.Duration
}

// NewDiagnostics creates an empty Diagnostics.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{
		counters:   make(map[string]int),
		timestamps: make(map[string]time.Time),
		durations:  make(map[string]time.Duration),
	}
}

func (d *Diagnostics) SetCounter(name string, value int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counters[name] = value
}

func (d *Diagnostics) SetTimestamp(name string, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timestamps[name] = at
}

func (d *Diagnostics) SetDuration(name string, dur time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.durations[name] = dur
}

// Counter returns a recorded counter.
func (d *Diagnostics) Counter(name string) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.counters[name]
	return v, ok
}

// Timestamp returns a recorded timestamp.
func (d *Diagnostics) Timestamp(name string) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.timestamps[name]
	return v, ok
}

// Duration returns a recorded duration.
func (d *Diagnostics) Duration(name string) (time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.durations[name]
	return v, ok
}
