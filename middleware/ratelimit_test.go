package middleware

import (
	"testing"
	"time"
)

func TestDuplicateGuard(t *testing.T) {
	// speed up TTL for test
	SetDuplicateTTL(50 * time.Millisecond)
	uid := "user-123"
	text := "Hello"

	if ok := DuplicateGuard(uid, text); !ok {
		t.Fatalf("expected first call to pass duplicate guard")
	}
	if ok := DuplicateGuard(uid, text); ok {
		t.Fatalf("expected immediate duplicate to be blocked")
	}
	if ok := DuplicateGuard(uid, text+"!"); !ok {
		t.Fatalf("expected different text to pass within TTL")
	}
	time.Sleep(70 * time.Millisecond)
	if ok := DuplicateGuard(uid, text); !ok {
		t.Fatalf("expected same text to pass after TTL")
	}
}

func TestTryAcquireUserSlot(t *testing.T) {
	SetRateLimitConfig(10*time.Second, 5, 1)
	uid := "slot-user"

	release, ok := TryAcquireUserSlot(uid)
	if !ok {
		t.Fatal("first acquire should succeed")
	}
	if _, ok := TryAcquireUserSlot(uid); ok {
		t.Fatal("second acquire while streaming should fail")
	}

	// another user is unaffected
	release2, ok := TryAcquireUserSlot("other-user")
	if !ok {
		t.Fatal("independent user should get a slot")
	}
	release2()

	release()
	release3, ok := TryAcquireUserSlot(uid)
	if !ok {
		t.Fatal("acquire after release should succeed")
	}
	release3()
}
