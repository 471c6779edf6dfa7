package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/richinex/reportflow/llm"
	"github.com/richinex/reportflow/model"
	"github.com/richinex/reportflow/session"
	"github.com/richinex/reportflow/tools"
)

// Runtime errors.
var (
	ErrStepLimit          = errors.New("step limit reached")
	ErrNotAwaitingReview  = errors.New("session is not awaiting review")
	ErrSessionExists      = errors.New("session already exists")
	ErrMissingNodeHandler = errors.New("no handler for node")
)

// DefaultMaxSteps bounds the steps of one Start or Resume call.
const DefaultMaxSteps = 400

// NodeFunc runs one node against the current state. Returned errors are
// infrastructure failures; workflow outcomes travel in the directive.
type NodeFunc func(ctx context.Context, st session.State) (session.Update, error)

// StepEvent describes one executed step.
type StepEvent struct {
	SessionID  string
	Step       int
	Node       Node
	Next       Node
	Directive  session.Directive
	TaskCursor int
	TaskCount  int
	Elapsed    time.Duration
}

// Observer is notified after every step.
type Observer interface {
	OnStep(StepEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(StepEvent)

// OnStep calls f.
func (f ObserverFunc) OnStep(e StepEvent) { f(e) }

// Result is the outcome of a Start or Resume call.
type Result struct {
	SessionID string
	Status    session.Status
	Node      Node
	Step      int
	State     session.State
}

// Deps are the collaborators injected into every node.
type Deps struct {
	Provider  llm.Provider
	Documents Documents
	Sources   SourceLoader    // optional
	Resolver  ContentResolver // optional
	Tools     *tools.Registry
	Executor  *tools.Executor // optional
	Logger    *slog.Logger
	Metrics   Metrics // optional
}

// Options tune the policies of the engine. Zero values select defaults.
type Options struct {
	MaxSteps            int
	CheckpointEveryStep bool
	MaxRetries          int
	SearchLimit         int
	MinDraftLength      int
	SynthesisAttempts   int
	SynthesisBackoff    time.Duration
	ResumeConcurrency   int
	AllowedTools        []string
}

// Runtime drives sessions through the state machine, checkpointing as it
// goes. One session is only ever advanced by one goroutine at a time.
type Runtime struct {
	store     session.CheckpointStore
	nodes     map[Node]NodeFunc
	opts      Options
	logger    *slog.Logger
	metrics   Metrics
	runner    *ToolRunner
	mu        sync.RWMutex
	observers []Observer
	active    sync.Map // session id -> struct{}
}

// New wires the engine from its collaborators.
func New(store session.CheckpointStore, deps Deps, opts Options) *Runtime {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics{}
	}

	runner := &ToolRunner{
		Tools:    deps.Tools,
		Executor: deps.Executor,
		Allowed:  opts.AllowedTools,
		Breaker:  Breaker{Limit: opts.SearchLimit},
		Logger:   deps.Logger,
		Metrics:  deps.Metrics,
	}

	r := &Runtime{
		store:   store,
		opts:    opts,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		runner:  runner,
	}
	r.nodes = map[Node]NodeFunc{
		NodeHydrate: (&Hydrator{Sources: deps.Sources, Logger: deps.Logger}).Run,
		NodePlanner: (&Planner{Provider: deps.Provider, Documents: deps.Documents, Logger: deps.Logger, Metrics: deps.Metrics}).Run,
		NodeApproval: (&ApprovalGate{Documents: deps.Documents, Logger: deps.Logger}).Run,
		NodeDraft: (&Drafter{
			Provider: deps.Provider,
			Tools:    deps.Tools,
			Resolver: deps.Resolver,
			Allowed:  opts.AllowedTools,
			Logger:   deps.Logger,
			Metrics:  deps.Metrics,
		}).Run,
		NodeTools: runner.Run,
		NodeJudge: (&Judge{
			Committer:      deps.Documents,
			Tools:          deps.Tools,
			MaxRetries:     opts.MaxRetries,
			MinDraftLength: opts.MinDraftLength,
			Logger:         deps.Logger,
			Metrics:        deps.Metrics,
		}).Run,
		NodeSynthesize: (&Synthesizer{
			Provider:  deps.Provider,
			Documents: deps.Documents,
			Attempts:  opts.SynthesisAttempts,
			BaseDelay: opts.SynthesisBackoff,
			Logger:    deps.Logger,
			Metrics:   deps.Metrics,
		}).Run,
	}
	return r
}

// Observe registers an observer for step events.
func (r *Runtime) Observe(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// Start creates a session and runs it until it suspends or ends. An empty
// sessionID gets a generated id.
func (r *Runtime) Start(ctx context.Context, sessionID, constraints string) (Result, error) {
	if sessionID == "" {
		sessionID = session.NewID()
	}
	_, err := r.store.Get(ctx, sessionID)
	if err == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}
	if !errors.Is(err, session.ErrNotFound) {
		return Result{}, fmt.Errorf("failed to check session: %w", err)
	}

	release, err := r.acquire(sessionID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	st := session.New(sessionID, constraints)
	if err := r.checkpoint(ctx, st, 0, NodeHydrate, session.StatusRunning); err != nil {
		return Result{}, err
	}
	return r.run(ctx, st, NodeHydrate, 0, false)
}

// Resume continues a session from its latest checkpoint. A session waiting
// for review takes the decision; a nil decision there is handled by the
// gate as a missing decision.
func (r *Runtime) Resume(ctx context.Context, sessionID string, decision *Decision) (Result, error) {
	release, err := r.acquire(sessionID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	cp, err := r.store.Get(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	node, err := ParseNode(cp.Node)
	if err != nil {
		return Result{}, err
	}

	st := cp.State
	if decision != nil {
		if node != NodeApproval {
			return Result{}, fmt.Errorf("%w: %s is at %s", ErrNotAwaitingReview, sessionID, node)
		}
		st = st.Apply(session.Update{
			ApprovalStatus: session.Ptr(decision.Status),
			Feedback:       session.Ptr(decision.Feedback),
		})
	}

	if cp.Status == session.StatusCompleted {
		return Result{SessionID: sessionID, Status: cp.Status, Node: node, Step: cp.Step, State: st}, nil
	}
	return r.run(ctx, st, node, cp.Step, true)
}

// Status returns the latest checkpoint of a session as a Result.
func (r *Runtime) Status(ctx context.Context, sessionID string) (Result, error) {
	cp, err := r.store.Get(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	return Result{SessionID: sessionID, Status: cp.Status, Node: Node(cp.Node), Step: cp.Step, State: cp.State}, nil
}

// ResumeAll resumes every interrupted session concurrently. Sessions that
// are waiting for review, stalled or finished are left alone. Each session
// still runs on a single goroutine.
func (r *Runtime) ResumeAll(ctx context.Context) (map[string]Result, error) {
	sessions, err := r.store.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var (
		mu      sync.Mutex
		results = make(map[string]Result)
		errs    []error
	)

	g, gctx := errgroup.WithContext(ctx)
	if r.opts.ResumeConcurrency > 0 {
		g.SetLimit(r.opts.ResumeConcurrency)
	}
	for id, status := range sessions {
		if status != session.StatusRunning {
			continue
		}
		g.Go(func() error {
			res, err := r.Resume(gctx, id, nil)
			mu.Lock()
			defer mu.Unlock()
			results[id] = res
			if err != nil {
				errs = append(errs, fmt.Errorf("session %s: %w", id, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

func (r *Runtime) run(ctx context.Context, st session.State, node Node, step int, resumed bool) (Result, error) {
	log := r.logger.With("session_id", st.SessionID)
	executed := 0

	for {
		switch {
		case node == NodeEnd:
			status := session.StatusCompleted
			if st.Directive == session.DirectiveAbort {
				status = session.StatusFailed
			}
			r.runner.Forget(st.SessionID)
			log.Info("session finished", "status", status, "step", step, "skipped", len(st.Skipped))
			return r.suspend(ctx, st, step, node, status)

		case node == NodeApproval && !resumed:
			log.Info("awaiting review", "step", step)
			return r.suspend(ctx, st, step, node, session.StatusAwaitingReview)

		case executed >= r.maxSteps():
			log.Warn("step limit reached", "node", node, "steps", executed)
			res, err := r.suspend(ctx, st, step, node, session.StatusRunning)
			if err != nil {
				return res, err
			}
			return res, fmt.Errorf("%w after %d steps", ErrStepLimit, executed)
		}
		resumed = false

		fn, ok := r.nodes[node]
		if !ok {
			return r.fail(ctx, st, step, node, fmt.Errorf("%w: %s", ErrMissingNodeHandler, node))
		}

		started := time.Now()
		upd, err := fn(ctx, st)
		st = st.Apply(upd)
		if err != nil {
			if ctx.Err() != nil {
				res, cpErr := r.suspend(context.WithoutCancel(ctx), st, step, node, session.StatusRunning)
				return res, errors.Join(fmt.Errorf("node %s interrupted: %w", node, err), cpErr)
			}
			return r.fail(ctx, st, step, node, fmt.Errorf("node %s: %w", node, err))
		}
		step++
		executed++
		r.metrics.Step(string(node))

		next, err := Route(node, st.Directive)
		if err != nil {
			return r.fail(ctx, st, step, node, err)
		}
		if st.Directive == session.DirectiveNone {
			log.Warn("node left no directive, ending session", "node", node)
		}
		r.notify(st, step, node, next, time.Since(started))

		if st.Directive == session.DirectiveStalled {
			log.Warn("session stalled", "node", node, "error", st.LastError)
			return r.suspend(ctx, st, step, next, session.StatusStalled)
		}

		if r.opts.CheckpointEveryStep && next != NodeEnd && next != NodeApproval {
			if err := r.checkpoint(ctx, st, step, next, session.StatusRunning); err != nil {
				return r.result(st, step, next, session.StatusRunning), err
			}
		}
		node = next
	}
}

func (r *Runtime) suspend(ctx context.Context, st session.State, step int, node Node, status session.Status) (Result, error) {
	res := r.result(st, step, node, status)
	if err := r.checkpoint(ctx, st, step, node, status); err != nil {
		return res, err
	}
	return res, nil
}

func (r *Runtime) fail(ctx context.Context, st session.State, step int, node Node, cause error) (Result, error) {
	st = st.Apply(session.Update{LastError: session.Ptr(cause.Error()), Directive: st.Directive})
	r.logger.Error("session failed", "session_id", st.SessionID, "node", node, "error", cause)
	res, err := r.suspend(context.WithoutCancel(ctx), st, step, node, session.StatusFailed)
	return res, errors.Join(cause, err)
}

func (r *Runtime) checkpoint(ctx context.Context, st session.State, step int, node Node, status session.Status) error {
	if err := r.store.Put(ctx, session.NewCheckpoint(st, step, string(node), status)); err != nil {
		return fmt.Errorf("failed to checkpoint session %s: %w", st.SessionID, err)
	}
	return nil
}

func (r *Runtime) result(st session.State, step int, node Node, status session.Status) Result {
	return Result{SessionID: st.SessionID, Status: status, Node: node, Step: step, State: st}
}

func (r *Runtime) notify(st session.State, step int, node, next Node, elapsed time.Duration) {
	r.mu.RLock()
	observers := r.observers
	r.mu.RUnlock()
	if len(observers) == 0 {
		return
	}

	ev := StepEvent{
		SessionID:  st.SessionID,
		Step:       step,
		Node:       node,
		Next:       next,
		Directive:  st.Directive,
		TaskCursor: st.TaskCursor,
		TaskCount:  taskCount(st.Plan),
		Elapsed:    elapsed,
	}
	for _, o := range observers {
		o.OnStep(ev)
	}
}

// acquire marks a session as being advanced. A second concurrent call for
// the same session fails instead of interleaving steps.
func (r *Runtime) acquire(sessionID string) (func(), error) {
	if _, busy := r.active.LoadOrStore(sessionID, struct{}{}); busy {
		return nil, fmt.Errorf("session %s is already running", sessionID)
	}
	return func() { r.active.Delete(sessionID) }, nil
}

func (r *Runtime) maxSteps() int {
	if r.opts.MaxSteps <= 0 {
		return DefaultMaxSteps
	}
	return r.opts.MaxSteps
}

func taskCount(p *model.Plan) int {
	if p == nil {
		return 0
	}
	return len(Flatten(*p))
}
