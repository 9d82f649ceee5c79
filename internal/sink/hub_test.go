package sink

import "testing"

func TestHub_PublishFansOutToAllSubscribers(t *testing.T) {
	h := NewHub[int](4, PolicyDrop, nil, nil)
	a := h.Subscribe()
	b := h.Subscribe()

	h.Publish(7)

	if v := <-a.Out; v != 7 {
		t.Fatalf("subscriber a got %d, want 7", v)
	}
	if v := <-b.Out; v != 7 {
		t.Fatalf("subscriber b got %d, want 7", v)
	}
}

func TestHub_DropPolicyDiscardsWhenFull(t *testing.T) {
	var drops int
	h := NewHub[int](1, PolicyDrop, func() { drops++ }, nil)
	s := h.Subscribe()

	h.Publish(1)
	h.Publish(2) // buffer full, should be dropped

	if drops != 1 {
		t.Fatalf("drops = %d, want 1", drops)
	}
	if v := <-s.Out; v != 1 {
		t.Fatalf("expected first message to survive, got %d", v)
	}
}

func TestHub_KickPolicyClosesSlowSubscriber(t *testing.T) {
	var kicks int
	h := NewHub[int](1, PolicyKick, nil, func() { kicks++ })
	s := h.Subscribe()

	h.Publish(1)
	h.Publish(2) // buffer full under PolicyKick should close the subscriber

	if kicks != 1 {
		t.Fatalf("kicks = %d, want 1", kicks)
	}
	select {
	case <-s.Closed():
	default:
		t.Fatalf("expected subscriber to be closed after kick")
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub[int](1, PolicyDrop, nil, nil)
	s := h.Subscribe()
	h.Unsubscribe(s)

	if h.Count() != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe, got %d", h.Count())
	}
	h.Publish(5) // should not panic or block with no subscribers
}
