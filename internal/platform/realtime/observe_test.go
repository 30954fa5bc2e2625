package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestObserve_DeliversCurrentThenChanges(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	topic := SessionTopic("s1")

	version := 1
	fetch := func(context.Context) (int, error) { return version, nil }

	var got []int
	stop, err := Observe(context.Background(), hub, topic, fetch, func(v int) { got = append(got, v) }, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	version = 2
	hub.Publish(topic)
	version = 3
	hub.Publish(topic)

	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("expected [1 2 3], got %v", got)
	}

	stop()
	stop()
	hub.Publish(topic)
	if len(got) != 3 {
		t.Errorf("expected no delivery after stop, got %v", got)
	}
	if hub.ListenerCount(topic) != 0 {
		t.Errorf("expected listener removed, got %d", hub.ListenerCount(topic))
	}
}

func TestObserve_InitialFetchErrorTearsDown(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	topic := SessionTopic("s1")

	_, err := Observe(context.Background(), hub, topic,
		func(context.Context) (string, error) { return "", errors.New("boom") },
		func(string) { t.Error("fn must not run") }, zerolog.Nop())
	if err == nil {
		t.Fatal("expected error")
	}
	if hub.ListenerCount(topic) != 0 {
		t.Errorf("expected no listener left, got %d", hub.ListenerCount(topic))
	}
}

func TestObserve_RefetchErrorSkipsDelivery(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	topic := SessionTopic("s1")

	fail := false
	calls := 0
	_, err := Observe(context.Background(), hub, topic,
		func(context.Context) (int, error) {
			if fail {
				return 0, errors.New("store down")
			}
			return 1, nil
		},
		func(int) { calls++ }, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fail = true
	hub.Publish(topic)
	if calls != 1 {
		t.Errorf("expected only the initial delivery, got %d", calls)
	}
}

func TestObserve_RefetchSurvivesCanceledContext(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	topic := SessionTopic("s1")
	ctx, cancel := context.WithCancel(context.Background())

	var seen []error
	_, err := Observe(ctx, hub, topic,
		func(ctx context.Context) (int, error) { seen = append(seen, ctx.Err()); return 0, nil },
		func(int) {}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cancel()
	hub.Publish(topic)

	if len(seen) != 2 || seen[1] != nil {
		t.Errorf("expected refetch with a live context, got %v", seen)
	}
}
