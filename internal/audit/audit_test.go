package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingSink struct {
	mu     sync.Mutex
	events []Event
	block  chan struct{}
}

func (s *countingSink) Emit(_ context.Context, e Event) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherDisabledReturnsNil(t *testing.T) {
	if d := NewDispatcher(Config{Enabled: false}, NoOpSink{}); d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	var d *Dispatcher
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success"})
	}
	d.Close()
	if sink.count() != 10 {
		t.Fatalf("expected 10 delivered events, got %d", sink.count())
	}
	d.Emit(context.Background(), Event{EventType: "after_close"})
	if sink.count() != 10 {
		t.Fatal("emit after close must be ignored")
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &countingSink{block: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{EventType: "refresh_failure"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink and buffer of 1")
	}
	close(sink.block)
	d.Close()
}

func TestDispatcherBlocksUntilContextEnds(t *testing.T) {
	sink := &countingSink{block: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	// One event is held by the blocked sink, one fills the queue.
	d.Emit(context.Background(), Event{})
	d.Emit(context.Background(), Event{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	d.Emit(ctx, Event{})
	if time.Since(start) < 15*time.Millisecond {
		t.Fatal("expected Emit to wait for queue space")
	}
	if d.Dropped() != 1 {
		t.Fatalf("expected the timed out event to count as dropped, got %d", d.Dropped())
	}

	close(sink.block)
	d.Close()
	if sink.count() != 2 {
		t.Fatalf("expected 2 delivered events, got %d", sink.count())
	}
}

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	var delivered int
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, SinkFunc(func(_ context.Context, e Event) {
		if e.EventType == "boom" {
			panic("sink failure")
		}
		delivered++
	}))
	d.Emit(context.Background(), Event{EventType: "boom"})
	d.Emit(context.Background(), Event{EventType: "login_success"})
	d.Close()
	d.Close()

	if delivered != 1 || d.Dropped() != 1 {
		t.Fatalf("delivered=%d dropped=%d", delivered, d.Dropped())
	}
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(0)
	sink.Emit(context.Background(), Event{EventType: "logout"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Emit(ctx, Event{EventType: "discarded"})

	if got := (<-sink.Events()).EventType; got != "logout" {
		t.Fatalf("unexpected event %q", got)
	}
	select {
	case e := <-sink.Events():
		t.Fatalf("unexpected second event %+v", e)
	default:
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{
		Timestamp: time.Unix(0, 0).UTC(),
		EventType: "refresh_reuse_detected",
		UserID:    "42",
		FamilyID:  "fam",
		Success:   false,
		Error:     "reuse_detected",
	})

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if decoded["event_type"] != "refresh_reuse_detected" || decoded["family_id"] != "fam" {
		t.Fatalf("unexpected payload: %v", decoded)
	}
}

func TestZerologSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewZerologSink(zerolog.New(&buf), "refresh_reuse_detected")

	emit := func(e Event) map[string]any {
		buf.Reset()
		sink.Emit(context.Background(), e)
		var out map[string]any
		if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
			t.Fatalf("decode log line %q: %v", buf.String(), err)
		}
		return out
	}

	ok := emit(Event{EventType: "login_success", Success: true, UserID: "42"})
	if ok["level"] != "info" || ok["user_id"] != "42" || ok["event"] != "login_success" {
		t.Fatalf("unexpected success record: %v", ok)
	}

	failed := emit(Event{EventType: "login_failure", Error: "invalid_credentials", Metadata: map[string]string{"reason": "unknown_user"}})
	if failed["level"] != "warn" || failed["reason"] != "invalid_credentials" {
		t.Fatalf("unexpected failure record: %v", failed)
	}
	meta, _ := failed["metadata"].(map[string]any)
	if meta["reason"] != "unknown_user" {
		t.Fatalf("unexpected metadata: %v", failed["metadata"])
	}

	reuse := emit(Event{EventType: "refresh_reuse_detected"})
	if reuse["level"] != "error" {
		t.Fatalf("reuse must log at error, got %v", reuse["level"])
	}
}
