package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPImageFetcher_RetryLogic(t *testing.T) {
	payload := []byte("fake image bytes")

	tests := []struct {
		name          string
		responses     []int // status codes returned in sequence
		expectCalls   int
		expectError   bool
		errorContains string
	}{
		{
			name:        "success on first attempt",
			responses:   []int{200},
			expectCalls: 1,
		},
		{
			name:        "success on second attempt after 5xx",
			responses:   []int{500, 200},
			expectCalls: 2,
		},
		{
			name:          "4xx client error - no retry",
			responses:     []int{404},
			expectCalls:   1,
			expectError:   true,
			errorContains: "status code 404",
		},
		{
			name:          "all 5xx errors - retry all attempts",
			responses:     []int{500, 502, 503},
			expectCalls:   3,
			expectError:   true,
			errorContains: "status code 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requestCount := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				statusCode := 500
				if requestCount < len(tt.responses) {
					statusCode = tt.responses[requestCount]
				}
				requestCount++

				if statusCode == 200 {
					w.Header().Set("Content-Type", "image/png")
					w.Write(payload)
					return
				}
				w.WriteHeader(statusCode)
				fmt.Fprintf(w, "Error %d", statusCode)
			}))
			defer server.Close()

			fetcher := NewHTTPImageFetcher(0)
			data, err := fetcher.FetchImage(context.Background(), server.URL)

			if requestCount != tt.expectCalls {
				t.Errorf("request count = %d, want %d", requestCount, tt.expectCalls)
			}
			if tt.expectError {
				if err == nil {
					t.Fatal("FetchImage succeeded, want error")
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("error %q does not contain %q", err, tt.errorContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("FetchImage: %v", err)
			}
			if !bytes.Equal(data, payload) {
				t.Errorf("payload mismatch: got %d bytes", len(data))
			}
		})
	}
}

func TestHTTPImageFetcher_SizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 1024))
	}))
	defer server.Close()

	fetcher := NewHTTPImageFetcher(100)
	if _, err := fetcher.FetchImage(context.Background(), server.URL); err == nil {
		t.Fatal("FetchImage accepted a payload above the byte limit")
	}

	fetcher = NewHTTPImageFetcher(4096)
	data, err := fetcher.FetchImage(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchImage: %v", err)
	}
	if len(data) != 1024 {
		t.Errorf("len(data) = %d, want 1024", len(data))
	}
}

func TestHTTPImageFetcher_InvalidURL(t *testing.T) {
	fetcher := NewHTTPImageFetcher(0)
	if _, err := fetcher.FetchImage(context.Background(), "http://\x00invalid"); err == nil {
		t.Fatal("FetchImage accepted an invalid URL")
	}
}
