package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mailmind/internal/engine"
	"mailmind/pkg/types"
)

func msgs(ids ...string) []types.Message {
	out := make([]types.Message, len(ids))
	for i, id := range ids {
		out[i] = types.Message{ID: id, Subject: "subject " + id, Snippet: "snippet"}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// constCategorizer answers every message with one category.
type constCategorizer struct{}

func (constCategorizer) Categorize(context.Context, types.Message) (string, error) {
	return "primary", nil
}

// gateCategorizer blocks on messages whose id is gated, signalling entry,
// until released or cancelled. Other messages pass straight through.
type gateCategorizer struct {
	mu      sync.Mutex
	gated   map[string]bool
	entered chan string
	release chan struct{}
}

func newGateCategorizer(ids ...string) *gateCategorizer {
	g := &gateCategorizer{
		gated:   make(map[string]bool),
		entered: make(chan string, 16),
		release: make(chan struct{}),
	}
	for _, id := range ids {
		g.gated[id] = true
	}
	return g
}

func (g *gateCategorizer) Categorize(ctx context.Context, msg types.Message) (string, error) {
	g.mu.Lock()
	gated := g.gated[msg.ID]
	g.mu.Unlock()
	if !gated {
		return "primary", nil
	}
	g.entered <- msg.ID
	select {
	case <-g.release:
		return "primary", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func newTestQueue(cat Categorizer) *Queue {
	return New(Config{
		Categorizer: cat,
		Spam:        NewKeywordSpamChecker(),
		ChunkSize:   2,
		Logger:      zerolog.Nop(),
	})
}

func TestEnqueueEmptyIsNoop(t *testing.T) {
	q := newTestQueue(constCategorizer{})
	if n := q.Enqueue(nil); n != 0 {
		t.Fatalf("accepted %d", n)
	}
	if st := q.State(); st.Processing || st.Generation != 0 {
		t.Fatalf("state %+v", st)
	}
}

func TestBatchRunsToCompletion(t *testing.T) {
	q := newTestQueue(constCategorizer{})
	batch := msgs("a", "b", "c", "d", "e")
	batch[1].Subject = "You are a WINNER, claim your prize"

	if n := q.Enqueue(batch); n != 5 {
		t.Fatalf("accepted %d", n)
	}
	waitFor(t, func() bool { return !q.State().Processing })

	st := q.State()
	if st.ProcessedCount != 5 || st.TotalCount != 5 {
		t.Fatalf("state %+v", st)
	}
	if st.LastCategorized != 5 {
		t.Fatalf("categorized %d", st.LastCategorized)
	}
	if st.LastSpam != 1 {
		t.Fatalf("spam %d", st.LastSpam)
	}
	if st.Generation != 1 {
		t.Fatalf("generation %d", st.Generation)
	}
}

func TestEnqueueFiltersProcessedIDs(t *testing.T) {
	q := newTestQueue(constCategorizer{})
	q.Enqueue(msgs("a", "b"))
	waitFor(t, func() bool { return !q.State().Processing })

	if n := q.Enqueue(msgs("a", "b")); n != 0 {
		t.Fatalf("accepted %d, want 0", n)
	}
	if n := q.Enqueue(msgs("a", "c")); n != 1 {
		t.Fatalf("accepted %d, want 1", n)
	}
	waitFor(t, func() bool { return !q.State().Processing })
}

func TestSupersededBatchNeverMutatesCounters(t *testing.T) {
	gate := newGateCategorizer("old-1")
	q := newTestQueue(gate)

	q.Enqueue(msgs("old-1", "old-2", "old-3"))
	<-gate.entered // first chunk of the old batch is mid-flight

	if n := q.Enqueue(msgs("new-1", "new-2")); n != 2 {
		t.Fatalf("accepted %d", n)
	}
	close(gate.release)

	waitFor(t, func() bool {
		st := q.State()
		return !st.Processing && st.ProcessedCount == 2
	})
	st := q.State()
	if st.Generation != 2 || st.TotalCount != 2 || st.LastCategorized != 2 {
		t.Fatalf("state %+v", st)
	}

	// The old batch published nothing, so its items are still fresh.
	if n := q.Enqueue(msgs("old-1", "old-2", "old-3")); n != 3 {
		t.Fatalf("accepted %d, want 3", n)
	}
	waitFor(t, func() bool { return !q.State().Processing })
}

func TestCancelStopsImmediately(t *testing.T) {
	gate := newGateCategorizer("a")
	q := newTestQueue(gate)

	q.Enqueue(msgs("a", "b"))
	<-gate.entered

	q.Cancel()
	if st := q.State(); st.Processing {
		t.Fatal("cancel must clear processing without waiting for the chunk")
	}
	close(gate.release)

	// The cancelled chunk must not publish.
	time.Sleep(20 * time.Millisecond)
	if st := q.State(); st.ProcessedCount != 0 {
		t.Fatalf("processed %d after cancel", st.ProcessedCount)
	}
	if n := q.Enqueue(msgs("a", "b")); n != 2 {
		t.Fatalf("accepted %d after cancel", n)
	}
	waitFor(t, func() bool { return !q.State().Processing })
}

func TestKeywordSpamChecker(t *testing.T) {
	k := NewKeywordSpamChecker()
	spam, err := k.IsSpam(context.Background(), types.Message{
		Subject: "Act NOW",
		Snippet: "limited time offer inside",
	})
	if err != nil || !spam {
		t.Fatalf("spam=%v err=%v", spam, err)
	}
	spam, err = k.IsSpam(context.Background(), types.Message{
		Subject: "Quarterly report",
		Snippet: "numbers attached",
	})
	if err != nil || spam {
		t.Fatalf("spam=%v err=%v", spam, err)
	}
}

type fallbackSource struct{}

func (fallbackSource) Resolve() engine.Engine { return engine.Fallback{} }

func TestEngineCategorizerDegradesWithFallback(t *testing.T) {
	c := NewEngineCategorizer(fallbackSource{}, nil)
	got, err := c.Categorize(context.Background(), types.Message{ID: "m", Subject: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if got != DefaultCategories[0] {
		t.Fatalf("got %q", got)
	}
}
