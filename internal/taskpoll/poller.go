package taskpoll

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/researchgpt/orchestrator/internal/backend"
	"github.com/researchgpt/orchestrator/internal/metrics"
	"github.com/researchgpt/orchestrator/internal/models"
)

// StatusClient is the single backend call the poller needs.
type StatusClient interface {
	TaskStatus(ctx context.Context, taskID string) (*backend.StatusResponse, error)
}

// Update carries display-only progress hints from a pending poll.
// Never required for correctness.
type Update struct {
	Step     int
	Progress float64
	Detail   string
}

// Result is the terminal outcome of a polling session. Status is either
// StatusCompleted or StatusError; a server-side error is an outcome, not
// a transport failure.
type Result struct {
	Status    models.TaskStatus
	Query     string
	Summary   string
	Subtopics []string
	Message   string
	MDPath    string
	PDFPath   string
}

// Poller drives strictly sequential status polls for one task at a time
// until a terminal status, the wall-clock budget, or a failure. There is
// no backoff and no per-poll retry: a transport error ends the session.
type Poller struct {
	client   StatusClient
	interval time.Duration
	budget   time.Duration
	logger   *zap.Logger
}

func New(client StatusClient, interval, budget time.Duration, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{client: client, interval: interval, budget: budget, logger: logger}
}

// Session is a handle to one running poll loop.
type Session struct {
	TaskID string
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the loop deterministically. A response already in flight
// is discarded, never delivered: the loop re-checks its context between
// the transport call and any callback.
func (s *Session) Cancel() { s.cancel() }

// Done is closed when the loop has fully exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start begins polling taskID. onUpdate fires for each pending poll with
// fresh progress hints; onDone fires exactly once with either a terminal
// Result or an error from the taxonomy. Neither fires after Cancel.
func (p *Poller) Start(ctx context.Context, taskID string, onUpdate func(Update), onDone func(Result, error)) *Session {
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{TaskID: taskID, cancel: cancel, done: make(chan struct{})}
	go p.run(sctx, taskID, onUpdate, onDone, s.done)
	return s
}

func (p *Poller) run(ctx context.Context, taskID string, onUpdate func(Update), onDone func(Result, error), done chan struct{}) {
	defer close(done)

	// Budget is measured from the first poll, not per request.
	budget := time.NewTimer(p.budget)
	defer budget.Stop()
	wait := time.NewTimer(p.interval)
	defer wait.Stop()

	for {
		metrics.PollsIssued.Inc()
		resp, err := p.client.TaskStatus(ctx, taskID)
		if ctx.Err() != nil {
			// Cancelled while the request was in flight; discard whatever
			// came back so a stale session cannot mutate fresh state.
			metrics.PollSessions.WithLabelValues("cancelled").Inc()
			p.logger.Debug("Polling session cancelled", zap.String("task_id", taskID))
			return
		}
		if err != nil {
			metrics.PollSessions.WithLabelValues("transport_error").Inc()
			onDone(Result{}, err)
			return
		}
		if resp.Status == nil {
			metrics.PollSessions.WithLabelValues("protocol_error").Inc()
			onDone(Result{}, fmt.Errorf("poll response for task %s has no status field: %w", taskID, models.ErrProtocol))
			return
		}

		switch models.ParseTaskStatus(*resp.Status) {
		case models.StatusPending:
			detail := resp.StatusDetails
			if detail == "" {
				detail = resp.Message
			}
			onUpdate(Update{Step: resp.CurrentStep, Progress: resp.Progress, Detail: detail})
		case models.StatusCompleted:
			metrics.PollSessions.WithLabelValues("completed").Inc()
			onDone(terminal(models.StatusCompleted, resp), nil)
			return
		case models.StatusError:
			metrics.PollSessions.WithLabelValues("server_error").Inc()
			onDone(terminal(models.StatusError, resp), nil)
			return
		default:
			metrics.PollSessions.WithLabelValues("unrecognized_status").Inc()
			onDone(Result{}, fmt.Errorf("%w: %q", models.ErrUnrecognizedStatus, *resp.Status))
			return
		}

		if !wait.Stop() {
			select {
			case <-wait.C:
			default:
			}
		}
		wait.Reset(p.interval)

		select {
		case <-ctx.Done():
			metrics.PollSessions.WithLabelValues("cancelled").Inc()
			return
		case <-budget.C:
			metrics.PollSessions.WithLabelValues("timeout").Inc()
			onDone(Result{}, fmt.Errorf("%w: no terminal status within %s", models.ErrTimeout, p.budget))
			return
		case <-wait.C:
		}
	}
}

func terminal(status models.TaskStatus, resp *backend.StatusResponse) Result {
	return Result{
		Status:    status,
		Query:     resp.Query,
		Summary:   resp.Summary,
		Subtopics: resp.Subtopics,
		Message:   resp.Message,
		MDPath:    resp.MDPath,
		PDFPath:   resp.PDFPath,
	}
}
