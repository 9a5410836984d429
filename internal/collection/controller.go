package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/jobtrail/internal/notify"
	"github.com/kalambet/jobtrail/internal/record"
)

// Outcome is the part of a remote reply the controller acts on.
type Outcome struct {
	Success bool
	Message string
}

// RemoteCall performs the remote side of a mutation.
type RemoteCall func(ctx context.Context) (Outcome, error)

// RemoteError describes a mutation the backend did not confirm.
type RemoteError struct {
	Op      string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Op + ": rejected by backend"
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Kind tells updates and removals apart.
type Kind int

const (
	KindUpdate Kind = iota
	KindRemove
)

func (k Kind) String() string {
	if k == KindRemove {
		return "remove"
	}
	return "update"
}

// Mutation is a local change waiting for remote confirmation.
type Mutation struct {
	ID        string
	Kind      Kind
	EntityID  string
	Op        string
	Previous  record.Patch // values before this mutation, captured when it was applied
	Applied   record.Patch
	StartedAt time.Time

	done chan struct{}
	err  error
}

// Done is closed once the remote call has settled and any rollback has run.
func (m *Mutation) Done() <-chan struct{} { return m.done }

// Err returns nil if the backend confirmed the mutation. Only meaningful
// after Done is closed.
func (m *Mutation) Err() error {
	select {
	case <-m.done:
		return m.err
	default:
		return nil
	}
}

// Wait blocks until the mutation settles or ctx ends.
func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Controller applies mutations to a Store immediately and reconciles them
// with the backend afterwards. It is the store's only writer.
type Controller struct {
	store    *Store
	notifier notify.Notifier
	logger   *slog.Logger
	confirm  bool

	// gate keeps new dispatches out while Wait drains inflight.
	gate     sync.RWMutex
	inflight errgroup.Group

	mu      sync.Mutex
	pending map[string]*Mutation
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfirmations makes the controller emit a success notification when
// the backend confirms a mutation.
func WithConfirmations(on bool) Option {
	return func(c *Controller) { c.confirm = on }
}

// WithLogger sets the logger (slog.Default otherwise).
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a Controller writing to store and reporting to n.
func NewController(store *Store, n notify.Notifier, opts ...Option) *Controller {
	if n == nil {
		n = notify.Discard
	}
	c := &Controller{
		store:    store,
		notifier: n,
		logger:   slog.Default(),
		pending:  make(map[string]*Mutation),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Store returns the controlled store.
func (c *Controller) Store() *Store { return c.store }

// Replace loads the authoritative collection.
func (c *Controller) Replace(items []record.Record) { c.store.Replace(items) }

// Insert adds a record the backend has already confirmed, or overwrites the
// local copy of it.
func (c *Controller) Insert(r record.Record) { c.store.Insert(r) }

// ApplyAndSync merges patch into entity id right away, then runs call in the
// background. If the backend does not confirm, the fields this mutation
// changed are restored to the values they had just before it, unless a later
// mutation has already overwritten them, and one failure notification naming
// op is emitted.
//
// The call runs to completion even if ctx is cancelled.
func (c *Controller) ApplyAndSync(ctx context.Context, op, id string, patch record.Patch, call RemoteCall) (*Mutation, error) {
	if len(patch) == 0 {
		return nil, fmt.Errorf("%s: empty patch", op)
	}
	prev, ok := c.store.Mutate(id, patch)
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", op, id, ErrNotFound)
	}

	m := c.track(KindUpdate, op, id, prev, patch)
	c.dispatch(ctx, m, call, func() {
		restored, _ := c.store.Revert(id, prev, patch)
		c.logger.Debug("mutation reverted", "op", op, "entity_id", id, "fields", restored)
	})
	return m, nil
}

// RemoveAndSync removes entity id right away and runs call in the
// background. On failure the entity is put back at its original position,
// or at the end when the collection changed shape in the meantime.
func (c *Controller) RemoveAndSync(ctx context.Context, op, id string, call RemoteCall) (*Mutation, error) {
	rm, ok := c.store.Remove(id)
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", op, id, ErrNotFound)
	}

	m := c.track(KindRemove, op, id, nil, nil)
	c.dispatch(ctx, m, call, func() {
		inPlace := c.store.Reinsert(rm)
		c.logger.Debug("removal reverted", "op", op, "entity_id", id, "original_position", inPlace)
	})
	return m, nil
}

// Pending returns the mutations still waiting for the backend, oldest first.
func (c *Controller) Pending() []*Mutation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Mutation, 0, len(c.pending))
	for _, m := range c.pending {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Wait blocks until every dispatched remote call has settled. Mutations
// started while it waits are dispatched once it returns.
func (c *Controller) Wait() {
	c.gate.Lock()
	defer c.gate.Unlock()
	_ = c.inflight.Wait()
}

func (c *Controller) track(kind Kind, op, id string, prev, applied record.Patch) *Mutation {
	m := &Mutation{
		ID:        uuid.New().String(),
		Kind:      kind,
		EntityID:  id,
		Op:        op,
		Previous:  prev,
		Applied:   applied,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
	c.mu.Lock()
	c.pending[m.ID] = m
	c.mu.Unlock()
	return m
}

func (c *Controller) dispatch(ctx context.Context, m *Mutation, call RemoteCall, rollback func()) {
	ctx = context.WithoutCancel(ctx)
	c.gate.RLock()
	defer c.gate.RUnlock()
	c.inflight.Go(func() error {
		defer c.settle(m)

		out, err := call(ctx)
		if err == nil && out.Success {
			c.logger.Debug("mutation confirmed", "op", m.Op, "entity_id", m.EntityID, "mutation_id", m.ID)
			if c.confirm {
				c.notifier.Notify(notify.Success(m.Op, out.Message))
			}
			return nil
		}

		rollback()
		rerr := &RemoteError{Op: m.Op, Message: out.Message, Err: err}
		m.err = rerr
		c.logger.Warn("mutation rolled back", "op", m.Op, "entity_id", m.EntityID, "error", rerr)
		c.notifier.Notify(notify.Failure(m.Op, failureMessage(m.Op, out.Message, err)))
		return nil
	})
}

func (c *Controller) settle(m *Mutation) {
	c.mu.Lock()
	delete(c.pending, m.ID)
	c.mu.Unlock()
	close(m.done)
}

func failureMessage(op, msg string, err error) string {
	switch {
	case msg != "":
		return msg
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("Failed to %s: request timed out", op)
	case err != nil:
		return fmt.Sprintf("Failed to %s: %v", op, err)
	}
	return "Failed to " + op
}
