package verify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testClient(url string) *Client {
	return New(url, "test-key", time.Second, zap.NewNop())
}

func TestVerifyAccepted(t *testing.T) {
	var got verifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		_, _ = w.Write([]byte(`{"is_replacement": "false"}`))
	}))
	defer srv.Close()

	d, err := testClient(srv.URL).Verify(context.Background(), "+15551234567", "a@b.com")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Verified || d.IsReplacement {
		t.Errorf("decision = %+v, want verified, not replacement", d)
	}
	if got.Key != "test-key" || got.Cell != "+15551234567" || got.Email != "a@b.com" {
		t.Errorf("request = %+v", got)
	}
}

func TestVerifyReplacement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"is_replacement": "true"}`))
	}))
	defer srv.Close()

	d, err := testClient(srv.URL).Verify(context.Background(), "+15551234567", "a@b.com")
	if err != nil {
		t.Fatal(err)
	}
	if !d.IsReplacement {
		t.Error("want IsReplacement = true")
	}
}

func TestVerifyNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Verify(context.Background(), "p", "e")
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *ServiceError", err)
	}
	if se.Status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", se.Status)
	}
}

func TestVerifyMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Verify(context.Background(), "p", "e")
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *ServiceError", err)
	}
}

func TestVerifyConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately, so the port refuses connections

	_, err := testClient(srv.URL).Verify(context.Background(), "p", "e")
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *ServiceError", err)
	}
}
