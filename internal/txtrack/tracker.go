// Package txtrack follows registry writes from submission to their receipt
// and fires the cache invalidation for the scope each write touched. One
// write target has at most one operation in flight; finished operations stay
// queryable by ID.
package txtrack

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vitalia/internal/chain"
	"vitalia/internal/oplog"
	"vitalia/pkg/platform/sentinel"
)

// defaultWaitTimeout bounds how long a receipt watch may poll.
const defaultWaitTimeout = 2 * time.Minute

var operationsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vitalia_tx_operations_total",
	Help: "Tracked write operations by kind and terminal outcome",
}, []string{"kind", "outcome"})

// Status is the lifecycle state of a tracked write.
type Status string

const (
	StatusNone      Status = "none"
	StatusSubmitted Status = "submitted"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Operation is a snapshot of one tracked write.
type Operation struct {
	ID          uuid.UUID
	Kind        string
	Target      string
	Status      Status
	Handle      chain.TxHandle
	Err         error
	Reason      string
	SubmittedAt time.Time
	FinishedAt  time.Time
}

// Waiter blocks until a submitted transaction has a receipt.
type Waiter interface {
	Wait(ctx context.Context, handle chain.TxHandle) (chain.Receipt, error)
}

// Journal receives lifecycle events for the operation journal.
type Journal interface {
	Emit(ctx context.Context, event oplog.Event) error
}

// Tracker owns the write lifecycle state machine.
type Tracker struct {
	waiter      Waiter
	journal     Journal
	logger      *slog.Logger
	waitTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	ops      map[uuid.UUID]*trackedOp
	inFlight map[string]uuid.UUID

	watchers sync.WaitGroup
}

type trackedOp struct {
	op         Operation
	invalidate func(context.Context)
	once       sync.Once
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithJournal wires the operation journal.
func WithJournal(journal Journal) Option {
	return func(t *Tracker) {
		t.journal = journal
	}
}

// WithWaitTimeout bounds receipt polling per operation.
func WithWaitTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		t.waitTimeout = d
	}
}

// New builds a tracker over the receipt waiter.
func New(waiter Waiter, opts ...Option) (*Tracker, error) {
	if waiter == nil {
		return nil, fmt.Errorf("waiter is required")
	}
	t := &Tracker{
		waiter:      waiter,
		waitTimeout: defaultWaitTimeout,
		now:         time.Now,
		ops:         make(map[uuid.UUID]*trackedOp),
		inFlight:    make(map[string]uuid.UUID),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Submit broadcasts a write through submit and tracks it to its receipt.
// invalidate runs exactly once, and only when the write confirms. A second
// submission for a target with an operation still in flight is rejected
// before anything is broadcast.
func (t *Tracker) Submit(ctx context.Context, kind, target string, submit func(ctx context.Context) (chain.TxHandle, error), invalidate func(ctx context.Context)) (uuid.UUID, error) {
	id := uuid.New()

	t.mu.Lock()
	if inFlightID, busy := t.inFlight[target]; busy {
		t.mu.Unlock()
		return uuid.Nil, fmt.Errorf("target %s has operation %s in flight: %w", target, inFlightID, sentinel.ErrConflict)
	}
	t.inFlight[target] = id
	tracked := &trackedOp{
		op: Operation{
			ID:          id,
			Kind:        kind,
			Target:      target,
			Status:      StatusSubmitted,
			SubmittedAt: t.now(),
		},
		invalidate: invalidate,
	}
	t.ops[id] = tracked
	snapshot := tracked.op
	t.mu.Unlock()

	// Submitted covers the whole handoff, including a wallet prompt the
	// submit callback may block on; pending starts once the transport
	// acknowledges with a handle.
	t.emit(ctx, snapshot)

	handle, err := submit(ctx)
	if err != nil {
		t.finish(id, target, StatusFailed, err, "")
		return id, err
	}

	t.transition(ctx, id, StatusPending, func(op *Operation) {
		op.Handle = handle
	})

	t.watchers.Add(1)
	go t.watch(id, target, handle)
	return id, nil
}

// Status returns a snapshot of a tracked operation.
func (t *Tracker) Status(id uuid.UUID) (Operation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tracked, ok := t.ops[id]
	if !ok {
		return Operation{}, false
	}
	return tracked.op, true
}

// TargetStatus reports the lifecycle state of a write target. Targets with no
// operation in flight read as none, including targets whose last operation
// already finished.
func (t *Tracker) TargetStatus(target string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.inFlight[target]
	if !ok {
		return StatusNone
	}
	return t.ops[id].op.Status
}

// Drain waits for all receipt watchers to finish. Called on shutdown.
func (t *Tracker) Drain() {
	t.watchers.Wait()
}

func (t *Tracker) watch(id uuid.UUID, target string, handle chain.TxHandle) {
	defer t.watchers.Done()

	ctx, cancel := context.WithTimeout(context.Background(), t.waitTimeout)
	defer cancel()

	receipt, err := t.waiter.Wait(ctx, handle)
	if err != nil {
		t.finish(id, target, StatusFailed, err, "")
		return
	}
	if receipt.Status == chain.ReceiptReverted {
		t.finish(id, target, StatusFailed, nil, receipt.Reason)
		return
	}

	// Invalidation is tied to confirmation: a failed write changed no
	// registry state, so cached reads stay valid.
	t.mu.Lock()
	tracked := t.ops[id]
	t.mu.Unlock()
	if tracked.invalidate != nil {
		tracked.once.Do(func() { tracked.invalidate(ctx) })
	}

	t.finish(id, target, StatusConfirmed, nil, "")
}

func (t *Tracker) transition(ctx context.Context, id uuid.UUID, status Status, mutate func(*Operation)) {
	t.mu.Lock()
	tracked, ok := t.ops[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	tracked.op.Status = status
	if mutate != nil {
		mutate(&tracked.op)
	}
	snapshot := tracked.op
	t.mu.Unlock()

	t.emit(ctx, snapshot)
}

func (t *Tracker) finish(id uuid.UUID, target string, status Status, err error, reason string) {
	ctx := context.Background()

	t.mu.Lock()
	tracked, ok := t.ops[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	tracked.op.Status = status
	tracked.op.Err = err
	tracked.op.Reason = reason
	tracked.op.FinishedAt = t.now()
	if t.inFlight[target] == id {
		delete(t.inFlight, target)
	}
	snapshot := tracked.op
	t.mu.Unlock()

	operationsFinished.WithLabelValues(snapshot.Kind, string(status)).Inc()
	t.emit(ctx, snapshot)

	if t.logger != nil {
		t.logger.InfoContext(ctx, "write operation finished",
			"operation_id", snapshot.ID,
			"kind", snapshot.Kind,
			"target", snapshot.Target,
			"status", snapshot.Status,
			"reason", snapshot.Reason,
			"error", snapshot.Err,
		)
	}
}

func (t *Tracker) emit(ctx context.Context, op Operation) {
	if t.journal == nil {
		return
	}
	event := oplog.Event{
		OperationID: op.ID,
		Kind:        op.Kind,
		Target:      op.Target,
		Status:      string(op.Status),
		Handle:      string(op.Handle),
		Reason:      op.Reason,
	}
	if op.Err != nil {
		event.Reason = op.Err.Error()
	}
	if err := t.journal.Emit(ctx, event); err != nil && t.logger != nil {
		t.logger.WarnContext(ctx, "journal emit failed", "operation_id", op.ID, "error", err)
	}
}
