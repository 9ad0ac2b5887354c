package sender

import (
	"context"
	"errors"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestEnqueueRunsJob(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 4, Workers: 1})
	defer d.Close()

	done := make(chan struct{})
	err := d.Enqueue(context.Background(), "send_text", "51999", func() error {
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
}

func TestRetriesTransientFailure(t *testing.T) {
	d := NewDispatcher(Options{
		QueueSize:    4,
		Workers:      1,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	})
	defer d.Close()

	var calls atomic.Int32
	done := make(chan struct{})
	err := d.Enqueue(context.Background(), "send_text", "51999", func() error {
		if calls.Add(1) < 3 {
			return syscall.ECONNRESET
		}
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("ErrorCount = %d, want 0", d.ErrorCount())
	}
}

func TestNonRetryableFailsOnce(t *testing.T) {
	d := NewDispatcher(Options{
		QueueSize:    4,
		Workers:      1,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	})

	var calls atomic.Int32
	if err := d.Enqueue(context.Background(), "send_text", "51999", func() error {
		calls.Add(1)
		return errors.New("bad request (400)")
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	d.Close()

	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("ErrorCount = %d, want 1", d.ErrorCount())
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 1, Workers: 1})
	d.Close()
	err := d.Enqueue(context.Background(), "send_text", "51999", func() error { return nil })
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	err := errors.New("post https://api.telegram.org/bot123456:AAZZxx-yy/sendMessage failed")
	got := sanitizeErrorMessage(err)
	if got != "post https://api.telegram.org/bot<redacted>/sendMessage failed" {
		t.Fatalf("sanitized = %q", got)
	}
}
