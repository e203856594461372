package mail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBrevoSendsMessage(t *testing.T) {
	var got brevoMessage
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("api-key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	b, err := NewBrevo(BrevoConfig{APIKey: "k1", SenderEmail: "no-reply@bakery.test", Endpoint: srv.URL}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := b.Send(context.Background(), "a@x.com", "Email Verification", "<h3>Your OTP is : 1234</h3>"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if key != "k1" {
		t.Fatalf("api key header = %q", key)
	}
	if len(got.To) != 1 || got.To[0].Email != "a@x.com" || got.Subject != "Email Verification" {
		t.Fatalf("unexpected message %+v", got)
	}
}

func TestBrevoBreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	b, err := NewBrevo(BrevoConfig{
		APIKey:      "k",
		SenderEmail: "s@bakery.test",
		Endpoint:    srv.URL,
		MaxFailures: 2,
		OpenTimeout: time.Minute,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := b.Send(ctx, "a@x.com", "s", "b"); err == nil || errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("send %d: expected upstream error, got %v", i, err)
		}
	}
	if err := b.Send(ctx, "a@x.com", "s", "b"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("open breaker must not reach upstream, calls=%d", calls.Load())
	}
}

func TestNewBrevoRequiresCredentials(t *testing.T) {
	if _, err := NewBrevo(BrevoConfig{SenderEmail: "s@x"}, nil); err == nil {
		t.Fatal("missing api key must fail")
	}
	if _, err := NewBrevo(BrevoConfig{APIKey: "k"}, nil); err == nil {
		t.Fatal("missing sender must fail")
	}
}

func TestLogMailer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewLogMailer(zap.New(core))
	if err := m.Send(context.Background(), "a@x.com", "Email Verification", "<h3>Your OTP is : 1234</h3>"); err != nil {
		t.Fatalf("send: %v", err)
	}
	entries := logs.FilterField(zap.String("to", "a@x.com")).All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
}
