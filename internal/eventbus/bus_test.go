package eventbus

import (
	"testing"
	"time"
)

func TestSubscribeReceivesMatchingTopic(t *testing.T) {
	bus := New(DefaultBufferSize)
	sub := bus.Subscribe(PatternJobs)
	defer sub.Close()

	bus.Publish(TopicJobCreated, "job-1")

	select {
	case ev := <-sub.Recv():
		if ev.Topic != TopicJobCreated {
			t.Fatalf("got topic %v, want %v", ev.Topic, TopicJobCreated)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeIgnoresNonMatchingTopic(t *testing.T) {
	bus := New(DefaultBufferSize)
	sub := bus.Subscribe(PatternPerformance)
	defer sub.Close()

	bus.Publish(TopicJobCreated, "job-1")

	select {
	case ev := <-sub.Recv():
		t.Fatalf("did not expect an event, got %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBufferSizeIsRaisedToMinimum(t *testing.T) {
	bus := New(1)
	if bus.bufferSize != DefaultBufferSize {
		t.Fatalf("bufferSize = %d, want %d", bus.bufferSize, DefaultBufferSize)
	}
}

func TestOverflowEvictsOldestAndEnqueuesLossMarker(t *testing.T) {
	bus := New(DefaultBufferSize)
	sub := bus.Subscribe(PatternJobs)
	defer sub.Close()

	for i := 0; i < DefaultBufferSize+1; i++ {
		bus.Publish(TopicJobUpdated, i)
	}

	var lastSeenLossMarker bool
	for i := 0; i < DefaultBufferSize; i++ {
		select {
		case ev := <-sub.Recv():
			lastSeenLossMarker = ev.IsLossMarker()
		case <-time.After(time.Second):
			t.Fatal("timed out draining buffer")
		}
	}
	if !lastSeenLossMarker {
		t.Fatal("expected the final delivered event to be a loss marker")
	}
}

func TestCloseIsIdempotentAndClosesChannel(t *testing.T) {
	bus := New(DefaultBufferSize)
	sub := bus.Subscribe(PatternJobs)
	sub.Close()
	sub.Close()

	if _, ok := <-sub.Recv(); ok {
		t.Fatal("expected channel to be closed")
	}
}
