package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// TestRateLimiting tests rate limiting with multiple client identifiers
func TestRateLimiting(t *testing.T) {
	limiter := NewRateLimiter(rate.Limit(10), 5)

	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}

	rateLimitedHandler := RateLimitMiddleware(limiter, handler)

	// Same IP but different user agents get independent rate limits
	req1 := httptest.NewRequest("GET", "/", nil)
	req1.Header.Set("User-Agent", "Mozilla/5.0")
	req1.RemoteAddr = "192.168.1.1:12345"

	req2 := httptest.NewRequest("GET", "/", nil)
	req2.Header.Set("User-Agent", "Chrome/91.0")
	req2.RemoteAddr = "192.168.1.1:12345"

	w1 := httptest.NewRecorder()
	w2 := httptest.NewRecorder()

	rateLimitedHandler(w1, req1)
	rateLimitedHandler(w2, req2)

	if w1.Code != http.StatusOK || w2.Code != http.StatusOK {
		t.Errorf("Both requests should be allowed initially")
	}

	// Requests with the same identifiers share one rate limit
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("User-Agent", "Mozilla/5.0")
		req.RemoteAddr = "192.168.1.1:12345"

		w := httptest.NewRecorder()
		rateLimitedHandler(w, req)

		if i < 4 && w.Code != http.StatusOK {
			t.Errorf("Request %d should be allowed", i)
		}
		if i >= 5 && w.Code != http.StatusTooManyRequests {
			t.Errorf("Request %d should be rate limited", i)
		}
	}
}

// TestClientIdentifier tests client identification factors
func TestClientIdentifier(t *testing.T) {
	testCases := []struct {
		name       string
		setupReq   func(*http.Request)
		expectSame bool
	}{
		{
			name: "Same IP and user agent",
			setupReq: func(req *http.Request) {
				req.RemoteAddr = "192.168.1.1:12345"
				req.Header.Set("User-Agent", "Mozilla/5.0")
			},
			expectSame: true,
		},
		{
			name: "Different IP, same user agent",
			setupReq: func(req *http.Request) {
				req.RemoteAddr = "192.168.1.2:12345"
				req.Header.Set("User-Agent", "Mozilla/5.0")
			},
			expectSame: false,
		},
		{
			name: "Same IP, different user agent",
			setupReq: func(req *http.Request) {
				req.RemoteAddr = "192.168.1.1:12345"
				req.Header.Set("User-Agent", "Chrome/91.0")
			},
			expectSame: false,
		},
		{
			name: "With session cookie",
			setupReq: func(req *http.Request) {
				req.RemoteAddr = "192.168.1.1:12345"
				req.Header.Set("User-Agent", "Mozilla/5.0")
				req.AddCookie(&http.Cookie{Name: "session_id", Value: "test-session-123"})
			},
			expectSame: false, // Different from previous due to session
		},
	}

	var previousID string

	for i, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			tc.setupReq(req)

			clientID := getClientIdentifier(req)

			if i > 0 {
				if tc.expectSame && clientID != previousID {
					t.Errorf("Expected same client ID, got different: %s vs %s", previousID, clientID)
				}
				if !tc.expectSame && clientID == previousID {
					t.Errorf("Expected different client ID, got same: %s", clientID)
				}
			}

			previousID = clientID

			if len(clientID) != 16 {
				t.Errorf("Expected client ID length 16, got %d", len(clientID))
			}
		})
	}
}

// TestClientIdentifierForwardedFor tests proxy header handling
func TestClientIdentifierForwardedFor(t *testing.T) {
	direct := httptest.NewRequest("GET", "/", nil)
	direct.RemoteAddr = "10.0.0.1:12345"
	direct.Header.Set("User-Agent", "Mozilla/5.0")

	forwarded := httptest.NewRequest("GET", "/", nil)
	forwarded.RemoteAddr = "10.0.0.1:12345"
	forwarded.Header.Set("User-Agent", "Mozilla/5.0")
	forwarded.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if getClientIdentifier(direct) == getClientIdentifier(forwarded) {
		t.Errorf("Forwarded client should be identified by the originating IP")
	}
}

// TestRateLimiterCleanup tests the rate limiter cleanup functionality
func TestRateLimiterCleanup(t *testing.T) {
	limiter := NewRateLimiter(rate.Limit(10), 5)

	limiter.Allow("client1")
	limiter.Allow("client2")
	limiter.Allow("client3")

	if len(limiter.clients) != 3 {
		t.Errorf("Expected 3 clients, got %d", len(limiter.clients))
	}

	// Age the clients past the cleanup horizon
	limiter.mutex.Lock()
	for _, client := range limiter.clients {
		client.lastSeen = time.Now().Add(-10 * time.Minute)
	}
	limiter.mutex.Unlock()

	limiter.Cleanup()

	if len(limiter.clients) != 0 {
		t.Errorf("Expected 0 clients after cleanup, got %d", len(limiter.clients))
	}
}
