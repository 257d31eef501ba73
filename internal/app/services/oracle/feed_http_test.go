package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPFeedProvider(t *testing.T) {
	updated := time.Now().UTC().Truncate(time.Second)
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprintf(w, `{
			"round_id": 42,
			"price": "200012345678",
			"updated_at": %d,
			"answered_in_round": 42,
			"decimals": 8
		}`, updated.Unix())
	}))
	defer srv.Close()

	feed, err := NewHTTPFeedProvider(srv.Client(), srv.URL, "secret", nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	reading, err := feed.LatestReading(context.Background())
	if err != nil {
		t.Fatalf("latest reading: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("missing bearer auth, got %q", gotAuth)
	}
	if reading.RoundID != 42 || reading.AnsweredInRound != 42 {
		t.Fatalf("round fields wrong: %+v", reading)
	}
	if reading.Price.String() != "200012345678" {
		t.Fatalf("price = %s", reading.Price)
	}
	if !reading.UpdatedAt.Equal(updated) {
		t.Fatalf("updated_at = %v, want %v", reading.UpdatedAt, updated)
	}

	decimals, err := feed.Decimals(context.Background())
	if err != nil {
		t.Fatalf("decimals: %v", err)
	}
	if decimals != 8 {
		t.Fatalf("decimals = %d", decimals)
	}
}

func TestHTTPFeedProviderErrors(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		feed, _ := NewHTTPFeedProvider(srv.Client(), srv.URL, "", nil)
		if _, err := feed.LatestReading(context.Background()); err == nil {
			t.Fatal("expected error on 502 response")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "not json")
		}))
		defer srv.Close()

		feed, _ := NewHTTPFeedProvider(srv.Client(), srv.URL, "", nil)
		if _, err := feed.LatestReading(context.Background()); err == nil {
			t.Fatal("expected error on invalid JSON")
		}
	})

	t.Run("missing price", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"round_id": 1}`)
		}))
		defer srv.Close()

		feed, _ := NewHTTPFeedProvider(srv.Client(), srv.URL, "", nil)
		if _, err := feed.LatestReading(context.Background()); err == nil {
			t.Fatal("expected error on missing price")
		}
	})

	t.Run("empty endpoint", func(t *testing.T) {
		if _, err := NewHTTPFeedProvider(nil, "  ", "", nil); err == nil {
			t.Fatal("expected error on empty endpoint")
		}
	})
}
