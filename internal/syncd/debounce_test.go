package syncd

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesBurst(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(50*time.Millisecond, func() { fired.Add(1) })

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("burst of 10 triggers fired %d times, want 1", got)
	}
}

func TestDebouncer_FiresPerQuietPeriod(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { fired.Add(1) })

	d.Trigger()
	time.Sleep(100 * time.Millisecond)
	d.Trigger()
	time.Sleep(100 * time.Millisecond)

	if got := fired.Load(); got != 2 {
		t.Errorf("two separated triggers fired %d times, want 2", got)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { fired.Add(1) })

	d.Trigger()
	d.Cancel()

	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("cancelled debouncer fired %d times, want 0", got)
	}

	// Cancel with nothing pending must not panic.
	d.Cancel()
}

func TestDebouncer_TriggerAfterCancel(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { fired.Add(1) })

	d.Trigger()
	d.Cancel()
	d.Trigger()

	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("re-armed debouncer fired %d times, want 1", got)
	}
}
