package broadcast

import (
	"context"
	"testing"
)

func TestMemoryBus_SenderExcluded(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	var senderGot, otherGot []Envelope
	sender := bus.Subscribe(func(env Envelope) { senderGot = append(senderGot, env) })
	bus.Subscribe(func(env Envelope) { otherGot = append(otherGot, env) })

	env, err := NewEnvelope("app.state", map[string]any{"n": 1})
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	if err := bus.Publish(ctx, sender.ID(), env); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(senderGot) != 0 {
		t.Errorf("sender received %d envelopes, want 0", len(senderGot))
	}
	if len(otherGot) != 1 {
		t.Fatalf("other received %d envelopes, want 1", len(otherGot))
	}
	if otherGot[0].Type != "app.state" {
		t.Errorf("delivered Type = %q, want app.state", otherGot[0].Type)
	}
}

func TestMemoryBus_DeliveryOrder(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	var order []int
	bus.Subscribe(func(Envelope) { order = append(order, 1) })
	bus.Subscribe(func(Envelope) { order = append(order, 2) })
	bus.Subscribe(func(Envelope) { order = append(order, 3) })

	env, _ := NewEnvelope("ch", "v")
	if err := bus.Publish(ctx, "external", env); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("delivery order = %v, want [1 2 3]", order)
	}
}

func TestMemoryBus_DuplicateDropped(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	count := 0
	bus.Subscribe(func(Envelope) { count++ })

	env, _ := NewEnvelope("ch", "v")
	for i := 0; i < 3; i++ {
		if err := bus.Publish(ctx, "external", env); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	if count != 1 {
		t.Errorf("handler invoked %d times for one envelope ID, want 1", count)
	}
}

func TestMemoryBus_CancelDetaches(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	count := 0
	sub := bus.Subscribe(func(Envelope) { count++ })
	sub.Cancel()
	sub.Cancel() // idempotent

	env, _ := NewEnvelope("ch", "v")
	if err := bus.Publish(ctx, "external", env); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if count != 0 {
		t.Errorf("cancelled handler invoked %d times, want 0", count)
	}
}

func TestMemoryBus_Closed(t *testing.T) {
	bus := NewMemoryBus()
	bus.Close()

	env, _ := NewEnvelope("ch", "v")
	if err := bus.Publish(context.Background(), "x", env); err != ErrBusClosed {
		t.Errorf("Publish() error = %v, want ErrBusClosed", err)
	}
}

func TestShared_RefCounting(t *testing.T) {
	first := Shared()
	second := Shared()

	if first.Bus() != second.Bus() {
		t.Error("Shared() handles point at different buses")
	}

	first.Release()
	first.Release() // idempotent

	// Still alive: second holds a reference.
	env, _ := NewEnvelope("ch", "v")
	if err := second.Bus().Publish(context.Background(), "x", env); err != nil {
		t.Fatalf("Publish() on live shared bus error = %v", err)
	}

	second.Release()

	// Last release shut the bus down; a new lease gets a fresh one.
	next := Shared()
	defer next.Release()
	if next.Bus() == first.Bus() {
		t.Error("Shared() after full release returned the closed bus")
	}
}
