package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"oracle-pricefeed/internal/oracle"
)

func inconsistentEvent() oracle.Event {
	return oracle.Event{
		Type:    oracle.EventConsistencyChanged,
		PairID:  7,
		Value:   *uint256.NewInt(1_250_000),
		Decimal: 6,
		Round:   42,
		From:    oracle.Consistent,
		To:      oracle.Inconsistent,
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.Notify(context.Background(), inconsistentEvent()); err != nil {
		t.Fatalf("Notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if !strings.Contains(received["text"], "1.25") {
		t.Fatalf("message should include the scaled value, got %q", received["text"])
	}
	if !strings.Contains(received["text"], "inconsistent") {
		t.Fatalf("message should include the new state, got %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.Notify(context.Background(), inconsistentEvent()); err == nil {
		t.Fatal("ok=false should return an error")
	}
}

func TestTelegramNotifierIgnoresOtherEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for non-alert events")
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	ev := inconsistentEvent()
	ev.Type = oracle.EventPriceUpdated
	if err := notifier.Notify(context.Background(), ev); err != nil {
		t.Fatalf("price update events should be skipped: %v", err)
	}

	recovery := inconsistentEvent()
	recovery.From = oracle.Inconsistent
	recovery.To = oracle.Consistent
	if err := notifier.Notify(context.Background(), recovery); err != nil {
		t.Fatalf("recovery transitions should be skipped: %v", err)
	}
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) Notify(context.Context, oracle.Event) error {
	f.calls++
	return context.DeadlineExceeded
}

func TestFanoutContinuesPastFailures(t *testing.T) {
	first := &failingNotifier{}
	second := &failingNotifier{}

	fanout := NewFanout(testLogger(), first, second)
	if err := fanout.Notify(context.Background(), inconsistentEvent()); err != nil {
		t.Fatalf("fanout should swallow channel errors: %v", err)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("every channel should be invoked, got %d and %d", first.calls, second.calls)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
