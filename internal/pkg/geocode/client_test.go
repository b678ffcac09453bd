package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/resumehub/resumehub-api/internal/pkg/throttle"
)

func TestReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"display_name": "Bengaluru, Karnataka, India",
			"address": {"city": "Bengaluru", "state": "Karnataka", "country": "India", "country_code": "in"}
		}`))
	}))
	defer srv.Close()

	th := throttle.New(time.Millisecond, 4)
	defer th.Close()

	client := NewClient(srv.URL, th, nil, time.Hour)

	loc, err := client.Reverse(context.Background(), 12.9716, 77.5946)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.City != "Bengaluru" || loc.CountryCode != "in" {
		t.Fatalf("unexpected location: %+v", loc)
	}
}

func TestReverseProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	th := throttle.New(time.Millisecond, 4)
	defer th.Close()

	client := NewClient(srv.URL, th, nil, time.Hour)

	if _, err := client.Reverse(context.Background(), 0, 0); err == nil {
		t.Fatal("expected error from provider failure")
	}
}
