package middlewarex

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitIgnoresForwardingHeaders(t *testing.T) {
	h := RateLimit(NewMemoryLimiter(1, time.Hour))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var codes []int
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/api/payment/status/x", nil)
		r.RemoteAddr = "203.0.113.7:5000"
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		r.Header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v, want [200 429 429]", codes)
	}
}

func TestMemoryLimiterEvictionKeepsThrottledClients(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLimiter(5, time.Hour)
	m.maxBuckets = 3

	for i := 0; i < 5; i++ {
		if d, _ := m.Allow(ctx, "victim"); !d.Allowed {
			t.Fatalf("request %d refused", i)
		}
	}
	// fill the table with fresh keys well past capacity
	for i := 0; i < 10; i++ {
		_, _ = m.Allow(ctx, fmt.Sprintf("flood-%d", i))
	}
	if len(m.buckets) > 3 {
		t.Fatalf("buckets = %d, want at most 3", len(m.buckets))
	}
	if d, _ := m.Allow(ctx, "victim"); d.Allowed {
		t.Fatal("throttled client was reset by the flood")
	}
}
