package relay

import (
	"bytes"
	"testing"
	"time"
)

func recvChunk(t *testing.T, sub *Subscription) []byte {
	t.Helper()
	select {
	case chunk, ok := <-sub.Chunks():
		if !ok {
			t.Fatal("subscription channel closed unexpectedly")
		}
		return chunk
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for chunk")
		return nil
	}
}

func TestHubDeliversInOrder(t *testing.T) {
	t.Parallel()
	h := NewHub(10, nil)
	sub := h.Subscribe()

	h.Publish([]byte("one"))
	h.Publish([]byte("two"))
	h.Publish([]byte("three"))

	for _, want := range []string{"one", "two", "three"} {
		if got := string(recvChunk(t, sub)); got != want {
			t.Errorf("chunk: got %q, want %q", got, want)
		}
	}
	if sub.Delivered() != 3 {
		t.Errorf("Delivered: got %d, want 3", sub.Delivered())
	}
	if sub.Dropped() != 0 {
		t.Errorf("Dropped: got %d, want 0", sub.Dropped())
	}
}

func TestHubNoReplayForLateSubscriber(t *testing.T) {
	t.Parallel()
	h := NewHub(10, nil)

	h.Publish([]byte("early"))

	sub := h.Subscribe()
	h.Publish([]byte("late"))

	if got := string(recvChunk(t, sub)); got != "late" {
		t.Errorf("late subscriber got %q, want %q", got, "late")
	}
	select {
	case extra := <-sub.Chunks():
		t.Errorf("unexpected extra chunk %q", extra)
	default:
	}
}

func TestHubDropsOldestOnOverflow(t *testing.T) {
	t.Parallel()
	h := NewHub(2, nil)
	sub := h.Subscribe()

	for _, s := range []string{"1", "2", "3", "4", "5"} {
		h.Publish([]byte(s))
	}

	if got := string(recvChunk(t, sub)); got != "4" {
		t.Errorf("first surviving chunk: got %q, want %q", got, "4")
	}
	if got := string(recvChunk(t, sub)); got != "5" {
		t.Errorf("second surviving chunk: got %q, want %q", got, "5")
	}
	if sub.Dropped() != 3 {
		t.Errorf("Dropped: got %d, want 3", sub.Dropped())
	}
}

func TestHubSlowSubscriberDoesNotAffectOthers(t *testing.T) {
	t.Parallel()
	h := NewHub(2, nil)
	slow := h.Subscribe()
	fast := h.Subscribe()

	var got []byte
	for _, s := range []string{"a", "b", "c", "d"} {
		h.Publish([]byte(s))
		got = append(got, recvChunk(t, fast)...)
	}

	if !bytes.Equal(got, []byte("abcd")) {
		t.Errorf("fast subscriber got %q, want %q", got, "abcd")
	}
	if slow.Dropped() == 0 {
		t.Error("slow subscriber should have dropped chunks")
	}
}

func TestHubCancelRemovesSubscriber(t *testing.T) {
	t.Parallel()
	h := NewHub(10, nil)
	sub := h.Subscribe()

	if h.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount: got %d, want 1", h.SubscriberCount())
	}

	sub.Cancel()
	sub.Cancel() // idempotent

	if h.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount after Cancel: got %d, want 0", h.SubscriberCount())
	}
	if _, ok := <-sub.Chunks(); ok {
		t.Error("cancelled subscription channel should be closed")
	}

	// Publishing to a hub with no subscribers must not panic or block.
	h.Publish([]byte("x"))
}

func TestHubClose(t *testing.T) {
	t.Parallel()
	h := NewHub(10, nil)
	sub := h.Subscribe()

	h.Close()
	h.Close() // idempotent

	if _, ok := <-sub.Chunks(); ok {
		t.Error("subscription channel should be closed after hub Close")
	}

	h.Publish([]byte("ignored"))
	if h.Published() != 0 {
		t.Errorf("Publish after Close should be a no-op, published=%d", h.Published())
	}

	late := h.Subscribe()
	if _, ok := <-late.Chunks(); ok {
		t.Error("subscription on closed hub should start closed")
	}
}
