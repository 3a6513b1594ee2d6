package broadcast

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/researchgpt/orchestrator/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mutableState is a test stand-in for the orchestrator's owned state.
type mutableState struct {
	mu  sync.Mutex
	res []models.SubtopicResources
}

func (s *mutableState) set(urls ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := make([]models.WebResource, len(urls))
	for i, u := range urls {
		rs[i] = models.WebResource{URL: u}
	}
	s.res = []models.SubtopicResources{{Subtopic: "Main Resources", Resources: rs}}
}

func (s *mutableState) snapshot() models.AggregatedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.AggregatedResult{Resources: s.res, Summaries: models.NewSummarySet()}.Clone()
}

func TestDebounceCollapsesBurstIntoFinalSnapshot(t *testing.T) {
	state := &mutableState{}
	var mu sync.Mutex
	var delivered []models.AggregatedResult

	b := New(20*time.Millisecond, state.snapshot, zap.NewNop())
	defer b.Close()
	b.Subscribe(func(a models.AggregatedResult) {
		mu.Lock()
		delivered = append(delivered, a)
		mu.Unlock()
	})

	// A burst of rapid changes inside the quiet window.
	for _, u := range []string{"https://a.com", "https://b.com", "https://c.com"} {
		state.set(u)
		b.Signal()
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 1
	}, time.Second, 2*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, delivered, 1, "burst must collapse to exactly one delivery")
	require.Equal(t, "https://c.com", delivered[0].Resources[0].Resources[0].URL,
		"delivered snapshot must reflect the final state")
}

func TestIdenticalSnapshotSuppressed(t *testing.T) {
	state := &mutableState{}
	state.set("https://a.com")
	var mu sync.Mutex
	count := 0

	b := New(5*time.Millisecond, state.snapshot, zap.NewNop())
	defer b.Close()
	b.Subscribe(func(models.AggregatedResult) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	b.Signal()
	require.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return count == 1 }, time.Second, time.Millisecond)

	// Same logical state signalled again: nothing is delivered.
	b.Signal()
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	require.Equal(t, 1, count)
	mu.Unlock()

	// A real change goes through.
	state.set("https://b.com")
	b.Signal()
	require.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return count == 2 }, time.Second, time.Millisecond)
}

func TestResetForgetsLastDigest(t *testing.T) {
	state := &mutableState{}
	state.set("https://a.com")
	var mu sync.Mutex
	count := 0

	b := New(5*time.Millisecond, state.snapshot, zap.NewNop())
	defer b.Close()
	b.Subscribe(func(models.AggregatedResult) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	b.Signal()
	require.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return count == 1 }, time.Second, time.Millisecond)

	// After a reset the same bytes belong to a new task and deliver again.
	b.Reset()
	b.Signal()
	require.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return count == 2 }, time.Second, time.Millisecond)
}

func TestFlushBypassesQuietPeriod(t *testing.T) {
	state := &mutableState{}
	state.set("https://a.com")
	got := make(chan models.AggregatedResult, 1)

	b := New(10*time.Second, state.snapshot, zap.NewNop())
	defer b.Close()
	b.Subscribe(func(a models.AggregatedResult) { got <- a })

	b.Signal() // would otherwise wait 10s
	b.Flush()

	select {
	case a := <-got:
		require.Equal(t, "https://a.com", a.Resources[0].Resources[0].URL)
	case <-time.After(time.Second):
		t.Fatal("flush did not deliver")
	}
}

func TestConsumersGetIndependentClones(t *testing.T) {
	state := &mutableState{}
	state.set("https://a.com")

	b := New(5*time.Millisecond, state.snapshot, zap.NewNop())
	defer b.Close()

	first := make(chan models.AggregatedResult, 1)
	second := make(chan models.AggregatedResult, 1)
	b.Subscribe(func(a models.AggregatedResult) {
		a.Resources[0].Resources[0].URL = "mutated"
		first <- a
	})
	b.Subscribe(func(a models.AggregatedResult) { second <- a })

	b.Flush()
	<-first
	a := <-second
	require.Equal(t, "https://a.com", a.Resources[0].Resources[0].URL,
		"one consumer mutating its copy must not leak into another's")
}

func TestDebouncerCancel(t *testing.T) {
	fired := make(chan struct{}, 1)
	d := NewDebouncer(10*time.Millisecond, func() { fired <- struct{}{} })
	defer d.Close()

	d.Signal()
	d.Cancel()

	select {
	case <-fired:
		t.Fatal("cancelled debounce must not fire")
	case <-time.After(40 * time.Millisecond):
	}
}

func TestDigestStableAcrossEqualStates(t *testing.T) {
	set := models.NewSummarySet()
	set.Set("u1", models.SummaryEntry{Text: "one"})
	mk := func() models.AggregatedResult {
		return models.AggregatedResult{
			Resources: []models.SubtopicResources{{Subtopic: "S", Resources: []models.WebResource{{URL: "u1"}}}},
			Summaries: set.Clone(),
		}
	}
	d1, err := Digest(mk())
	require.NoError(t, err)
	d2, err := Digest(mk())
	require.NoError(t, err)
	require.Equal(t, d1, d2)
}
