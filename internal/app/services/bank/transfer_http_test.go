package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPTransferProviderTransferIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transfer-in" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload["from"] != "alice" || payload["asset_id"] != "TOKENX" || payload["amount"] != "100" {
			t.Errorf("payload = %v", payload)
		}
		fmt.Fprint(w, `{"received":"98"}`)
	}))
	defer srv.Close()

	provider, err := NewHTTPTransferProvider(srv.Client(), srv.URL, "", nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	received, err := provider.TransferIn(context.Background(), "alice", "TOKENX", big.NewInt(100))
	if err != nil {
		t.Fatalf("transfer in: %v", err)
	}
	if received.Cmp(big.NewInt(98)) != 0 {
		t.Fatalf("received = %s, want 98", received)
	}
}

func TestHTTPTransferProviderTransferOut(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantOK  bool
		wantErr bool
	}{
		{"success", `{"success":true}`, true, false},
		{"declined", `{"success":false}`, false, false},
		{"declined with reason", `{"success":false,"error":"frozen"}`, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/transfer-out" {
					t.Errorf("path = %s", r.URL.Path)
				}
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			provider, _ := NewHTTPTransferProvider(srv.Client(), srv.URL, "", nil)
			ok, err := provider.TransferOut(context.Background(), "alice", "TOKENX", big.NewInt(5))
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestHTTPTransferProviderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	provider, _ := NewHTTPTransferProvider(srv.Client(), srv.URL, "", nil)
	if _, err := provider.TransferIn(context.Background(), "alice", "TOKENX", big.NewInt(1)); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestPassthroughTransferProvider(t *testing.T) {
	provider := PassthroughTransferProvider{}

	received, err := provider.TransferIn(context.Background(), "alice", "TOKENX", big.NewInt(100))
	if err != nil {
		t.Fatalf("transfer in: %v", err)
	}
	if received.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("passthrough must deliver the full amount, got %s", received)
	}

	ok, err := provider.TransferOut(context.Background(), "alice", "TOKENX", big.NewInt(100))
	if err != nil || !ok {
		t.Fatalf("transfer out: ok=%v err=%v", ok, err)
	}
}
