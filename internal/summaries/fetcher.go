package summaries

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/researchgpt/orchestrator/internal/metrics"
	"github.com/researchgpt/orchestrator/internal/models"
)

// Client is the single backend call the fetcher needs.
type Client interface {
	SummarizeURL(ctx context.Context, url string) (string, error)
}

// Fetcher owns the per-URL summary cache and fills missing entries with a
// soft throttle: at most batch new fetches start per Trigger call, but a
// later trigger may start more before earlier ones complete. Per-URL
// failures are stored visibly as the summary text, never hidden.
type Fetcher struct {
	mu       sync.Mutex
	set      *models.SummarySet
	gen      uint64
	client   Client
	batch    int
	onStored func(url string)
	logger   *zap.Logger
}

// NewFetcher builds a Fetcher. onStored fires after each completed fetch
// (success or failure) with the cache already updated; it may be nil.
func NewFetcher(client Client, batch int, onStored func(url string), logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onStored == nil {
		onStored = func(string) {}
	}
	return &Fetcher{
		set:      models.NewSummarySet(),
		client:   client,
		batch:    batch,
		onStored: onStored,
		logger:   logger,
	}
}

// Seed installs a pre-fetched summary without going to the network.
// Existing entries are left alone, loading or not.
func (f *Fetcher) Seed(url, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.set.Get(url); ok {
		return
	}
	f.set.Set(url, models.SummaryEntry{Text: text})
}

// Trigger starts fetches for up to batch URLs that have no entry yet,
// preserving the given order. URLs already loading or already summarized
// are skipped, so no URL ever has two fetches in flight. Returns the
// number of fetches started.
func (f *Fetcher) Trigger(ctx context.Context, urls []string) int {
	f.mu.Lock()
	gen := f.gen
	var started []string
	for _, u := range urls {
		if len(started) >= f.batch {
			break
		}
		if _, ok := f.set.Get(u); ok {
			continue
		}
		f.set.Set(u, models.SummaryEntry{Loading: true})
		started = append(started, u)
	}
	f.mu.Unlock()

	for _, u := range started {
		metrics.SummariesLoading.Inc()
		go f.fetch(ctx, gen, u)
	}
	return len(started)
}

func (f *Fetcher) fetch(ctx context.Context, gen uint64, url string) {
	defer metrics.SummariesLoading.Dec()

	text, err := f.client.SummarizeURL(ctx, url)
	if err != nil {
		// The failure is the summary: users see why a source has no text.
		text = fmt.Sprintf("Could not summarize: %v", err)
		metrics.SummaryFetches.WithLabelValues("error").Inc()
		f.logger.Warn("Summary fetch failed", zap.String("url", url), zap.Error(err))
	} else {
		metrics.SummaryFetches.WithLabelValues("ok").Inc()
	}

	f.mu.Lock()
	if gen != f.gen {
		// The cache was reset while this fetch was in flight.
		f.mu.Unlock()
		return
	}
	f.set.Set(url, models.SummaryEntry{Text: text})
	f.mu.Unlock()

	f.onStored(url)
}

// Snapshot returns a deep copy of the current summary set.
func (f *Fetcher) Snapshot() *models.SummarySet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set.Clone()
}

// Missing reports how many of the given URLs have no entry at all.
func (f *Fetcher) Missing(urls []string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range urls {
		if _, ok := f.set.Get(u); !ok {
			n++
		}
	}
	return n
}

// Reset discards all entries and invalidates in-flight fetches so their
// results cannot leak into post-retry state.
func (f *Fetcher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.set = models.NewSummarySet()
}
