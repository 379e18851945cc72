package runtime

import (
	"testing"
	"time"
)

func TestUnboundedDeadlineNeverExceeds(t *testing.T) {
	d := NewDeadline(0)
	if d.Exceeded() {
		t.Fatal("unbounded deadline should never be exceeded")
	}
}

func TestBoundedDeadlineExceedsPastTimeout(t *testing.T) {
	d := NewDeadline(5 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if !d.Exceeded() {
		t.Fatal("expected deadline to be exceeded")
	}
}

func TestRemainingAccountsForStopOffset(t *testing.T) {
	d := NewDeadline(time.Minute)
	remaining := d.Remaining()
	if remaining > time.Minute-StopOffset {
		t.Fatalf("expected remaining <= timeout-StopOffset, got %v", remaining)
	}
}
