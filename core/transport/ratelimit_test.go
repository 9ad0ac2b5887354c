package transport

import (
	"testing"
	"time"
)

func TestLimiterBlocksWithinInterval(t *testing.T) {
	l := NewLimiter(time.Hour)
	if !l.Allow("51999") {
		t.Fatal("first message must pass")
	}
	if l.Allow("51999") {
		t.Fatal("second message within the interval must be blocked")
	}
	if !l.Allow("51888") {
		t.Fatal("other identities are limited independently")
	}
}

func TestLimiterDisabled(t *testing.T) {
	l := NewLimiter(0)
	for i := 0; i < 3; i++ {
		if !l.Allow("51999") {
			t.Fatal("zero interval must disable limiting")
		}
	}
}
