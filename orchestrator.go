// Package orchestrator drives a long-running, server-executed research
// task from the client side: it submits a query, polls for completion
// under a wall-clock budget, aggregates and filters web resources per
// subtopic, fills in per-URL summaries under a soft throttle, and pushes
// debounced, deduplicated snapshots to registered consumers.
//
// The module is embedded in a host view layer; it exposes no process or
// CLI surface. All task-scoped state is owned here and handed out only
// as read-only copies.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/researchgpt/orchestrator/internal/aggregate"
	"github.com/researchgpt/orchestrator/internal/backend"
	"github.com/researchgpt/orchestrator/internal/broadcast"
	"github.com/researchgpt/orchestrator/internal/config"
	"github.com/researchgpt/orchestrator/internal/metrics"
	"github.com/researchgpt/orchestrator/internal/models"
	"github.com/researchgpt/orchestrator/internal/report"
	"github.com/researchgpt/orchestrator/internal/summaries"
	"github.com/researchgpt/orchestrator/internal/taskpoll"
)

// Orchestrator owns one research session at a time. All mutation of
// task-scoped state happens under one mutex; async completions carry the
// session token they started with and are discarded on mismatch, so a
// cancelled or superseded session can never write into fresh state.
type Orchestrator struct {
	cfg     *config.Config
	logger  *zap.Logger
	client  *backend.Client
	poller  *taskpoll.Poller
	fetcher *summaries.Fetcher
	caster  *broadcast.Broadcaster

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	token     string
	task      *models.ResearchTask
	session   *taskpoll.Session
	resources []models.SubtopicResources
	taskSubs  []func(models.ResearchTask)
}

// New builds an Orchestrator. A nil cfg uses production defaults; a nil
// logger disables logging.
func New(cfg *config.Config, logger *zap.Logger) *Orchestrator {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	client := backend.NewClient(cfg.BaseURL, cfg.HTTPTimeout, cfg.SummaryRPS, logger)

	o := &Orchestrator{
		cfg:    cfg,
		logger: logger,
		client: client,
		poller: taskpoll.New(client, cfg.PollInterval, cfg.PollBudget, logger),
		ctx:    ctx,
		cancel: cancel,
	}
	o.fetcher = summaries.NewFetcher(client, cfg.SummaryBatch, o.onSummaryStored, logger)
	o.caster = broadcast.New(cfg.DebounceQuiet, o.aggregated, logger)
	return o
}

// Submit starts a new research task and returns its server-assigned id.
// A pending task must be retried (reset) before resubmission.
func (o *Orchestrator) Submit(ctx context.Context, query string) (string, error) {
	o.mu.Lock()
	if o.task != nil && o.task.Status == models.StatusPending {
		o.mu.Unlock()
		return "", fmt.Errorf("a research task is already in progress; call Retry first")
	}
	o.mu.Unlock()

	resp, err := o.client.Submit(ctx, query, uuid.NewString())
	if err != nil {
		return "", err
	}

	o.fetcher.Reset()
	o.caster.Reset()

	token := uuid.NewString()
	task := &models.ResearchTask{
		ID:        resp.TaskID,
		Query:     query,
		Status:    models.StatusPending,
		Message:   resp.Message,
		CreatedAt: time.Now(),
	}

	o.mu.Lock()
	o.token = token
	o.task = task
	o.resources = nil
	o.session = o.poller.Start(o.ctx, resp.TaskID, o.pollUpdate(token), o.pollDone(token))
	o.mu.Unlock()

	o.logger.Info("Research task submitted",
		zap.String("task_id", resp.TaskID),
		zap.String("query", query),
	)

	if resp.ImmediateResults != nil {
		o.ingestImmediate(token, resp.ImmediateResults)
	}

	// Resource aggregation runs once per task-id change.
	go o.fetchResources(token, resp.TaskID)

	o.notifyTask()
	return resp.TaskID, nil
}

// Retry cancels the active session, clears server-side caches, and wipes
// all task-scoped state so the next Submit starts clean. No stale data
// survives: resources, summaries, the task record, and the broadcaster's
// last-delivered digest are all discarded.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	if o.session != nil {
		o.session.Cancel()
		o.session = nil
	}
	o.token = ""
	o.task = nil
	o.resources = nil
	o.mu.Unlock()

	o.fetcher.Reset()
	o.caster.Reset()

	go o.client.ClearCache(o.ctx)

	o.logger.Info("Research session reset")
	return nil
}

// GenerateQueries expands a topic into search queries via the backend,
// degrading to locally built perspective and research variants when the
// backend call fails.
func (o *Orchestrator) GenerateQueries(ctx context.Context, query string) ([]string, error) {
	qs, err := o.client.SearchQueries(ctx, query)
	if err == nil && len(qs) > 0 {
		return qs, nil
	}
	if err != nil {
		o.logger.Warn("Search query generation failed, using local variants", zap.Error(err))
	}
	return []string{
		query + " research paper",
		query + " scientific study",
		query + " academic analysis",
		query + " alternative perspective",
		query + " opposing views",
		query + " criticism",
	}, nil
}

// OnAggregatedResult registers a consumer for consolidated snapshots.
// Deliveries are debounced and deduplicated; snapshots are read-only.
func (o *Orchestrator) OnAggregatedResult(fn func(models.AggregatedResult)) {
	o.caster.Subscribe(fn)
}

// OnTaskUpdate registers a consumer for task lifecycle and progress
// changes (display-only hints included).
func (o *Orchestrator) OnTaskUpdate(fn func(models.ResearchTask)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.taskSubs = append(o.taskSubs, fn)
}

// Task returns a copy of the current task record, or a zero task with
// StatusUnknown when none is active.
func (o *Orchestrator) Task() models.ResearchTask {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.task == nil {
		return models.ResearchTask{Status: models.StatusUnknown}
	}
	return copyTask(o.task)
}

// Aggregated returns a read-only snapshot of the current aggregated state.
func (o *Orchestrator) Aggregated() models.AggregatedResult {
	return o.aggregated()
}

// AssembleReport builds the structured report document from the current
// task and summary set.
func (o *Orchestrator) AssembleReport() string {
	o.mu.Lock()
	var query, summary string
	if o.task != nil {
		query = o.task.Query
		summary = o.task.Summary
	}
	o.mu.Unlock()
	return report.Assemble(query, summary, o.fetcher.Snapshot())
}

// DownloadArtifact fetches a server-side artifact (e.g. the rendered
// report) by its opaque path reference.
func (o *Orchestrator) DownloadArtifact(ctx context.Context, path string) ([]byte, error) {
	return o.client.Download(ctx, path)
}

// Close cancels any active session and stops internal timers.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.session != nil {
		o.session.Cancel()
		o.session = nil
	}
	o.mu.Unlock()
	o.cancel()
	o.caster.Close()
}

// ---- internal plumbing ----

// aggregated snapshots current state; also the broadcaster's source.
func (o *Orchestrator) aggregated() models.AggregatedResult {
	o.mu.Lock()
	res := o.resources
	o.mu.Unlock()
	snap := models.AggregatedResult{
		Resources: res,
		Summaries: o.fetcher.Snapshot(),
	}
	return snap.Clone()
}

func (o *Orchestrator) pollUpdate(token string) func(taskpoll.Update) {
	return func(u taskpoll.Update) {
		o.mu.Lock()
		if o.token != token || o.task == nil {
			o.mu.Unlock()
			metrics.StaleCallbacksDiscarded.Inc()
			return
		}
		o.task.CurrentStep = u.Step
		o.task.Progress = u.Progress
		if u.Detail != "" {
			o.task.Message = u.Detail
		}
		o.mu.Unlock()
		o.notifyTask()
	}
}

func (o *Orchestrator) pollDone(token string) func(taskpoll.Result, error) {
	return func(res taskpoll.Result, err error) {
		o.mu.Lock()
		if o.token != token || o.task == nil {
			o.mu.Unlock()
			metrics.StaleCallbacksDiscarded.Inc()
			return
		}
		o.session = nil
		if err != nil {
			o.task.Status = models.StatusError
			o.task.Message = err.Error()
			o.logger.Warn("Polling session failed",
				zap.String("task_id", o.task.ID),
				zap.Error(err),
			)
		} else {
			o.task.Status = res.Status
			if res.Query != "" {
				o.task.Query = res.Query
			}
			if res.Summary != "" {
				o.task.Summary = res.Summary
			}
			if len(res.Subtopics) > 0 {
				o.task.Subtopics = res.Subtopics
			}
			if res.Message != "" {
				o.task.Message = res.Message
			}
			o.task.MDPath = res.MDPath
			o.task.PDFPath = res.PDFPath
		}
		completed := err == nil && res.Status == models.StatusCompleted
		o.mu.Unlock()

		o.notifyTask()
		if completed {
			// Don't strand the final snapshot behind the quiet period.
			o.caster.Flush()
		}
	}
}

// ingestImmediate runs the submit payload's early results through the
// same aggregation transform as a full resource fetch.
func (o *Orchestrator) ingestImmediate(token string, ir *backend.ImmediateResults) {
	buckets := aggregate.Transform(aggregate.ResolveImmediate(ir), o.cfg.BucketCap, o.cfg.DomainCap)

	o.mu.Lock()
	if o.token != token {
		o.mu.Unlock()
		metrics.StaleCallbacksDiscarded.Inc()
		return
	}
	o.resources = buckets
	if o.task != nil {
		if ir.Summary != "" {
			o.task.Summary = ir.Summary
		}
		if len(ir.Subtopics) > 0 {
			o.task.Subtopics = ir.Subtopics
		}
	}
	o.mu.Unlock()

	o.seedInline(buckets, map[string]string(ir.URLSummaries))
	o.caster.Signal()
}

// fetchResources fetches the raw resource payload once and atomically
// replaces prior resource state with the transformed result. Nothing is
// merged in place.
func (o *Orchestrator) fetchResources(token, taskID string) {
	resp, err := o.client.WebResources(o.ctx, taskID)

	o.mu.Lock()
	if o.token != token {
		o.mu.Unlock()
		metrics.StaleCallbacksDiscarded.Inc()
		return
	}
	if err != nil {
		metrics.ResourceFetches.WithLabelValues("error").Inc()
		// Session-terminal: empty state, never partial data.
		o.resources = nil
		if o.task != nil {
			o.task.Status = models.StatusError
			o.task.Message = err.Error()
		}
		session := o.session
		o.session = nil
		o.mu.Unlock()
		if session != nil {
			session.Cancel()
		}
		o.logger.Warn("Web resource fetch failed",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		o.notifyTask()
		return
	}
	metrics.ResourceFetches.WithLabelValues("ok").Inc()

	payload := aggregate.Resolve(resp)
	buckets := aggregate.Transform(payload, o.cfg.BucketCap, o.cfg.DomainCap)
	o.resources = buckets
	o.mu.Unlock()

	o.logger.Info("Aggregated web resources",
		zap.String("task_id", taskID),
		zap.Int("buckets", len(buckets)),
	)

	o.seedInline(buckets, payload.InlineSummaries)
	o.caster.Signal()
	o.triggerSummaries(token)
}

// seedInline installs inline summaries from the raw payload, bucket order
// first so report order stays deterministic, then any leftovers sorted.
func (o *Orchestrator) seedInline(buckets []models.SubtopicResources, inline map[string]string) {
	if len(inline) == 0 {
		return
	}
	seeded := make(map[string]bool, len(inline))
	for _, b := range buckets {
		for _, r := range b.Resources {
			if text, ok := inline[r.URL]; ok {
				o.fetcher.Seed(r.URL, text)
				seeded[r.URL] = true
			}
		}
	}
	rest := make([]string, 0, len(inline))
	for u := range inline {
		if !seeded[u] {
			rest = append(rest, u)
		}
	}
	sort.Strings(rest)
	for _, u := range rest {
		o.fetcher.Seed(u, inline[u])
	}
}

// triggerSummaries asks the fetcher to fill missing entries for the
// current resource set. The fetcher starts at most a batch per call;
// completions re-trigger until nothing is missing.
func (o *Orchestrator) triggerSummaries(token string) {
	o.mu.Lock()
	if o.token != token {
		o.mu.Unlock()
		metrics.StaleCallbacksDiscarded.Inc()
		return
	}
	var urls []string
	for _, b := range o.resources {
		for _, r := range b.Resources {
			urls = append(urls, r.URL)
		}
	}
	o.mu.Unlock()
	if len(urls) > 0 {
		o.fetcher.Trigger(o.ctx, urls)
	}
}

func (o *Orchestrator) onSummaryStored(url string) {
	o.caster.Signal()
	o.mu.Lock()
	token := o.token
	o.mu.Unlock()
	if token != "" {
		o.triggerSummaries(token)
	}
}

func (o *Orchestrator) notifyTask() {
	o.mu.Lock()
	if o.task == nil {
		o.mu.Unlock()
		return
	}
	task := copyTask(o.task)
	subs := make([]func(models.ResearchTask), len(o.taskSubs))
	copy(subs, o.taskSubs)
	o.mu.Unlock()
	for _, fn := range subs {
		fn(task)
	}
}

func copyTask(t *models.ResearchTask) models.ResearchTask {
	out := *t
	if t.Subtopics != nil {
		out.Subtopics = make([]string, len(t.Subtopics))
		copy(out.Subtopics, t.Subtopics)
	}
	return out
}
