package broadcast

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/researchgpt/orchestrator/internal/metrics"
	"github.com/researchgpt/orchestrator/internal/models"
)

// Broadcaster delivers consolidated snapshots to registered consumers.
// Two separable mechanisms compose here: a trailing-edge debouncer that
// collapses update bursts, and a content digest that suppresses delivery
// when the resulting snapshot equals the last one delivered. A consumer
// therefore never observes the same logical snapshot twice.
type Broadcaster struct {
	deb      *Debouncer
	snapshot func() models.AggregatedResult
	logger   *zap.Logger

	mu         sync.Mutex
	consumers  []func(models.AggregatedResult)
	lastDigest string
}

// New builds a Broadcaster. snapshot must return a self-contained copy of
// the current aggregated state; it is called once per delivery attempt.
func New(quiet time.Duration, snapshot func() models.AggregatedResult, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Broadcaster{snapshot: snapshot, logger: logger}
	b.deb = NewDebouncer(quiet, b.deliver)
	return b
}

// Subscribe registers a consumer. Consumers receive independent deep
// clones and must treat them as read-only.
func (b *Broadcaster) Subscribe(fn func(models.AggregatedResult)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumers = append(b.consumers, fn)
}

// Signal notes that resources or summaries changed. Delivery happens
// after the quiet period elapses with no further signals.
func (b *Broadcaster) Signal() { b.deb.Signal() }

// Flush forces an immediate delivery attempt, bypassing the quiet period.
// Used on terminal states so the final snapshot is not left pending.
func (b *Broadcaster) Flush() { b.deb.Flush() }

// Reset drops any pending delivery and forgets the last digest. After a
// reset the next snapshot is always delivered, even if byte-identical to
// the pre-reset one: it belongs to a new task.
func (b *Broadcaster) Reset() {
	b.deb.Cancel()
	b.mu.Lock()
	b.lastDigest = ""
	b.mu.Unlock()
}

// Close stops the debounce timer permanently.
func (b *Broadcaster) Close() { b.deb.Close() }

func (b *Broadcaster) deliver() {
	snap := b.snapshot()
	digest, err := Digest(snap)
	if err != nil {
		b.logger.Error("Failed to digest snapshot", zap.Error(err))
		return
	}

	b.mu.Lock()
	if digest == b.lastDigest {
		b.mu.Unlock()
		metrics.SnapshotsSuppressed.Inc()
		return
	}
	b.lastDigest = digest
	consumers := make([]func(models.AggregatedResult), len(b.consumers))
	copy(consumers, b.consumers)
	b.mu.Unlock()

	metrics.SnapshotsDelivered.Inc()
	b.logger.Debug("Delivering aggregated snapshot",
		zap.String("digest", digest[:12]),
		zap.Int("consumers", len(consumers)),
	)
	for _, fn := range consumers {
		fn(snap.Clone())
	}
}

// Digest returns the hex SHA-256 of the snapshot's canonical JSON form.
// Canonical because bucket order is a slice and SummarySet marshals in
// insertion order; equal logical states produce equal digests.
func Digest(snap models.AggregatedResult) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
