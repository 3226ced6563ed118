package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookNotifier(t *testing.T) {
	var received Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}))
	defer srv.Close()

	n := NewWebhook(srv.URL)
	a := Alert{Level: AlertInfo, Title: "Position opened", Message: "buy @ 50000.00"}
	if err := n.Send(context.Background(), a); err != nil {
		t.Fatalf("send: %v", err)
	}
	if received != a {
		t.Errorf("expected %+v, got %+v", a, received)
	}
}

func TestWebhookNotifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := NewWebhook(srv.URL).Send(context.Background(), Alert{}); err == nil {
		t.Error("expected error for 500 response")
	}
}

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Send(context.Context, Alert) error {
	s.calls++
	return s.err
}

func TestMulti_AttemptsAllChannels(t *testing.T) {
	failing := &stubNotifier{err: errors.New("down")}
	ok := &stubNotifier{}

	err := Multi{failing, ok}.Send(context.Background(), Alert{})
	if !errors.Is(err, failing.err) {
		t.Errorf("expected first error propagated, got %v", err)
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Errorf("expected both channels attempted, got %d/%d", failing.calls, ok.calls)
	}
}
