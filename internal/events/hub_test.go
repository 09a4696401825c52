package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a := h.Subscribe()
	b := h.Subscribe()
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	h.ScanProgress(ScanProgressData{Disk: "disk1", Percent: 50})

	for _, ch := range []chan Event{a, b} {
		select {
		case ev := <-ch:
			if ev.Type != TypeScanProgress {
				t.Errorf("type = %s, want %s", ev.Type, TypeScanProgress)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub(zerolog.Nop())
	ch := h.Subscribe()
	h.Unsubscribe(ch)

	if h.SubscriberCount() != 0 {
		t.Errorf("subscriber count = %d, want 0", h.SubscriberCount())
	}

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after Unsubscribe")
	}
}

func TestPublishNeverBlocksWhenSubscriberBufferFull(t *testing.T) {
	h := NewHub(zerolog.Nop())
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			h.DaemonError("overflow")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with a full subscriber buffer")
	}
}

func TestSubscriberCountTracksActiveSubscribers(t *testing.T) {
	h := NewHub(zerolog.Nop())
	if h.SubscriberCount() != 0 {
		t.Fatalf("initial count = %d, want 0", h.SubscriberCount())
	}
	a := h.Subscribe()
	b := h.Subscribe()
	if h.SubscriberCount() != 2 {
		t.Fatalf("count after 2 subscribes = %d, want 2", h.SubscriberCount())
	}
	h.Unsubscribe(a)
	if h.SubscriberCount() != 1 {
		t.Fatalf("count after 1 unsubscribe = %d, want 1", h.SubscriberCount())
	}
	h.Unsubscribe(b)
}
