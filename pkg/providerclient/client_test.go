package providerclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSubmitPayout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/payouts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var req payoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Amount != 4000 || req.Currency != "USD" || req.Reference == "" {
			t.Errorf("unexpected request payload %+v", req)
		}
		if got := r.Header.Get("Idempotency-Key"); got != req.Reference {
			t.Errorf("expected idempotency key to equal reference, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"prov-789","status":"initiated"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	providerID, err := client.SubmitPayout(context.Background(), "paypal:author@example.com", 4000, "USD", "ref-1")
	if err != nil {
		t.Fatalf("SubmitPayout returned error: %v", err)
	}
	if providerID != "prov-789" {
		t.Fatalf("expected provider id prov-789, got %q", providerID)
	}
}

func TestSubmitPayout_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors":[{"title":"Invalid destination","detail":"account closed","status":"422"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	_, err := client.SubmitPayout(context.Background(), "paypal:closed@example.com", 4000, "USD", "ref-2")
	if err == nil {
		t.Fatal("expected an error for a 422 response")
	}
	var apiErr *ErrorResponse
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *ErrorResponse, got %T", err)
	}
	if apiErr.Errors[0].Title != "Invalid destination" {
		t.Errorf("unexpected error title %q", apiErr.Errors[0].Title)
	}
}

func TestSubmitPayout_MissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"status":"initiated"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	if _, err := client.SubmitPayout(context.Background(), "dest", 4000, "USD", "ref-3"); err == nil {
		t.Fatal("expected an error when the provider returns no payout id")
	}
}
