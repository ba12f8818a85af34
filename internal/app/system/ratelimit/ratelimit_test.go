package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowUpToLimit(t *testing.T) {
	l := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if l.Allow("k") {
		t.Error("fourth attempt should be blocked")
	}
	if l.Remaining("k") != 0 {
		t.Errorf("Remaining = %d, want 0", l.Remaining("k"))
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := New(1, time.Minute)

	if !l.Allow("a") {
		t.Fatal("first key should be allowed")
	}
	if !l.Allow("b") {
		t.Error("second key should have its own window")
	}
}

func TestLimiter_ResetReopensWindow(t *testing.T) {
	l := New(1, time.Minute)

	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("second attempt should be blocked")
	}
	l.Reset("k")
	if !l.Allow("k") {
		t.Error("attempt after Reset should be allowed")
	}
}

func TestClientIP_ForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ip := ClientIP(r); ip != "203.0.113.9" {
		t.Errorf("ClientIP = %q, want first forwarded entry", ip)
	}
}

func TestClientIP_RemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.4:51234"
	if ip := ClientIP(r); ip != "192.0.2.4" {
		t.Errorf("ClientIP = %q, want host without port", ip)
	}
}

func TestLoginLimiter_EmailWindow(t *testing.T) {
	ll := NewLoginLimiterWithConfig(100, time.Minute, 2, time.Minute)

	r := httptest.NewRequest("POST", "/login", nil)
	for i := 0; i < 2; i++ {
		if ok, _ := ll.Check(r, "Someone@Example.com"); !ok {
			t.Fatalf("attempt %d should pass", i+1)
		}
	}
	// Case never matters for the email key.
	if ok, reason := ll.Check(r, "someone@example.com"); ok {
		t.Error("third attempt for the same account should be blocked")
	} else if reason == "" {
		t.Error("blocked attempt should carry a reason")
	}

	ll.ResetEmail("SOMEONE@example.com")
	if ok, _ := ll.Check(r, "someone@example.com"); !ok {
		t.Error("attempt after ResetEmail should pass")
	}
}

func TestLoginLimiter_IPWindow(t *testing.T) {
	ll := NewLoginLimiterWithConfig(2, time.Minute, 100, time.Minute)

	r := httptest.NewRequest("POST", "/login", nil)
	r.RemoteAddr = "198.51.100.7:4000"
	ll.Check(r, "a@example.com")
	ll.Check(r, "b@example.com")
	if ok, _ := ll.Check(r, "c@example.com"); ok {
		t.Error("third attempt from the same IP should be blocked")
	}

	other := httptest.NewRequest("POST", "/login", nil)
	other.RemoteAddr = "198.51.100.8:4000"
	if ok, _ := ll.Check(other, "c@example.com"); !ok {
		t.Error("different IP should have its own window")
	}
}
