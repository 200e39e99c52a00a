package broadcast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRelay_CrossProcessDelivery(t *testing.T) {
	rs := NewRelayServer(nil)
	server := httptest.NewServer(rs.Handler())
	defer server.Close()

	a := NewRelayClient(http.DefaultClient, server.URL)
	defer a.Close()
	b := NewRelayClient(http.DefaultClient, server.URL)
	defer b.Close()

	bGot := make(chan Envelope, 1)
	sender := a.Subscribe(func(Envelope) {})
	b.Subscribe(func(env Envelope) { bGot <- env })

	waitForStreams(t, rs, 2)

	env, err := NewEnvelope("shared.channel", map[string]any{"n": float64(7)})
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	if err := a.Publish(context.Background(), sender.ID(), env); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-bGot:
		if got.Type != "shared.channel" {
			t.Errorf("delivered Type = %q, want shared.channel", got.Type)
		}
		if got.ID != env.ID {
			t.Errorf("delivered ID = %q, want %q", got.ID, env.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("client B never received the envelope")
	}
}

// waitForStreams polls until the relay reports n subscribed clients.
func waitForStreams(t *testing.T, rs *RelayServer, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rs.mu.Lock()
		count := len(rs.streams)
		rs.mu.Unlock()
		if count >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("relay never reached %d subscribed clients", n)
}
