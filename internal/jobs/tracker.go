package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/kalambet/jobtrail/internal/collection"
	"github.com/kalambet/jobtrail/internal/gateway"
	"github.com/kalambet/jobtrail/internal/notify"
	"github.com/kalambet/jobtrail/internal/record"
	"github.com/kalambet/jobtrail/internal/session"
)

// Operation names used in notifications.
const (
	OpUpdateStatus = "update job status"
	OpUpdateNotes  = "update notes"
	OpDelete       = "delete job"
	OpAnalyze      = "analyze job"
)

// maxPages bounds Load against a backend that never reports the last page.
const maxPages = 100

// Backend is the part of the gateway the tracker uses.
type Backend interface {
	ListJobs(ctx context.Context, page int) (gateway.Envelope[gateway.JobPage], error)
	UpdateJobStatus(ctx context.Context, id, status string) (gateway.Envelope[json.RawMessage], error)
	UpdateJobNotes(ctx context.Context, id, notes string) (gateway.Envelope[json.RawMessage], error)
	DeleteJob(ctx context.Context, id string) (gateway.Envelope[json.RawMessage], error)
	AnalyzeJobByURL(ctx context.Context, postingURL string) (gateway.Envelope[record.Record], error)
	AnalyzeJobManual(ctx context.Context, job gateway.ManualJob) (gateway.Envelope[record.Record], error)
}

// Snapshots persists the local job list between runs. The backend cannot
// list jobs yet, so the snapshot is the only way to see earlier analyses.
type Snapshots interface {
	SaveJobs(ctx context.Context, jobs []record.Record) error
	LoadJobs(ctx context.Context) ([]record.Record, error)
}

// Tracker is the job list of one user.
type Tracker struct {
	backend   Backend
	ctrl      *collection.Controller
	notifier  notify.Notifier
	snapshots Snapshots
	logger    *slog.Logger

	watchers sync.WaitGroup
}

// Option configures a Tracker.
type Option func(*trackerConfig)

type trackerConfig struct {
	snapshots Snapshots
	logger    *slog.Logger
	confirm   bool
}

// WithSnapshots persists the job list after every settled change.
func WithSnapshots(s Snapshots) Option {
	return func(c *trackerConfig) { c.snapshots = s }
}

// WithLogger sets the logger (slog.Default otherwise).
func WithLogger(l *slog.Logger) Option {
	return func(c *trackerConfig) { c.logger = l }
}

// WithConfirmations emits a success notification for confirmed changes.
func WithConfirmations(on bool) Option {
	return func(c *trackerConfig) { c.confirm = on }
}

// NewTracker creates a Tracker backed by b and reporting to n.
func NewTracker(b Backend, n notify.Notifier, opts ...Option) *Tracker {
	cfg := trackerConfig{logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	if n == nil {
		n = notify.Discard
	}
	store := collection.NewStore(FieldID)
	return &Tracker{
		backend:   b,
		ctrl:      collection.NewController(store, n, collection.WithConfirmations(cfg.confirm), collection.WithLogger(cfg.logger)),
		notifier:  n,
		snapshots: cfg.snapshots,
		logger:    cfg.logger,
	}
}

// Load replaces the local list with the backend's. When the backend returns
// nothing, the last saved snapshot is used instead.
func (t *Tracker) Load(ctx context.Context) (int, error) {
	var items []record.Record
	for page := 1; page <= maxPages; page++ {
		env, err := t.backend.ListJobs(ctx, page)
		if err != nil {
			return 0, fmt.Errorf("listing jobs: %w", err)
		}
		if !env.Success {
			return 0, &collection.RemoteError{Op: "list jobs", Message: env.Message}
		}
		items = append(items, env.Data.Items...)
		if !env.Data.HasMore || len(env.Data.Items) == 0 {
			break
		}
	}

	if len(items) == 0 && t.snapshots != nil {
		saved, err := t.snapshots.LoadJobs(ctx)
		if err != nil {
			return 0, fmt.Errorf("loading job snapshot: %w", err)
		}
		items = saved
		t.logger.Debug("jobs loaded from snapshot", "count", len(items))
	}

	t.ctrl.Replace(items)
	return len(items), nil
}

// Records returns the current job records in display order.
func (t *Tracker) Records() []record.Record {
	return t.ctrl.Store().Snapshot()
}

// List returns the jobs matching f in display order.
func (t *Tracker) List(f Filters) []Job {
	var out []Job
	for r := range collection.Filtered(t.Records(), f.Predicate()) {
		out = append(out, FromRecord(r))
	}
	return out
}

// Get returns the job with the given id.
func (t *Tracker) Get(id string) (Job, bool) {
	r, ok := t.ctrl.Store().Get(id)
	if !ok {
		return Job{}, false
	}
	return FromRecord(r), true
}

// Stats returns the dashboard counts of the current list.
func (t *Tracker) Stats() Dashboard {
	return DashboardOf(collection.CountBy(t.Records(), FieldStatus))
}

// Pending returns the changes still waiting for the backend.
func (t *Tracker) Pending() []*collection.Mutation {
	return t.ctrl.Pending()
}

// SetStatus changes a job's application status optimistically.
func (t *Tracker) SetStatus(ctx context.Context, id, status string) (*collection.Mutation, error) {
	if err := precheck(ctx, id); err != nil {
		return nil, err
	}
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	m, err := t.ctrl.ApplyAndSync(ctx, OpUpdateStatus, id, record.Patch{FieldStatus: string(st)},
		func(ctx context.Context) (collection.Outcome, error) {
			env, err := t.backend.UpdateJobStatus(ctx, id, string(st))
			return env.Outcome(), err
		})
	if err != nil {
		return nil, err
	}
	t.persistAfter(m)
	return m, nil
}

// SetNotes replaces a job's notes optimistically. Empty notes clear them.
func (t *Tracker) SetNotes(ctx context.Context, id, notes string) (*collection.Mutation, error) {
	if err := precheck(ctx, id); err != nil {
		return nil, err
	}
	m, err := t.ctrl.ApplyAndSync(ctx, OpUpdateNotes, id, record.Patch{FieldNotes: notes},
		func(ctx context.Context) (collection.Outcome, error) {
			env, err := t.backend.UpdateJobNotes(ctx, id, notes)
			return env.Outcome(), err
		})
	if err != nil {
		return nil, err
	}
	t.persistAfter(m)
	return m, nil
}

// Delete removes a job optimistically.
func (t *Tracker) Delete(ctx context.Context, id string) (*collection.Mutation, error) {
	if err := precheck(ctx, id); err != nil {
		return nil, err
	}
	m, err := t.ctrl.RemoveAndSync(ctx, OpDelete, id, func(ctx context.Context) (collection.Outcome, error) {
		env, err := t.backend.DeleteJob(ctx, id)
		return env.Outcome(), err
	})
	if err != nil {
		return nil, err
	}
	t.persistAfter(m)
	return m, nil
}

// AddByURL submits a posting URL for analysis and adds the resulting job to
// the end of the list.
func (t *Tracker) AddByURL(ctx context.Context, postingURL string) (Job, error) {
	postingURL = strings.TrimSpace(postingURL)
	u, err := url.Parse(postingURL)
	if postingURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Job{}, fmt.Errorf("%w: a http(s) job posting URL is required", ErrInvalid)
	}
	return t.add(ctx, func(ctx context.Context) (gateway.Envelope[record.Record], error) {
		return t.backend.AnalyzeJobByURL(ctx, postingURL)
	})
}

// AddManual submits a typed-in posting for analysis. Every field is
// required.
func (t *Tracker) AddManual(ctx context.Context, m gateway.ManualJob) (Job, error) {
	m.Title = strings.TrimSpace(m.Title)
	m.Company = strings.TrimSpace(m.Company)
	m.Location = strings.TrimSpace(m.Location)
	m.Description = strings.TrimSpace(m.Description)

	var missing []string
	for _, f := range []struct{ name, v string }{
		{"title", m.Title}, {"company", m.Company}, {"location", m.Location}, {"description", m.Description},
	} {
		if f.v == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return Job{}, fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return t.add(ctx, func(ctx context.Context) (gateway.Envelope[record.Record], error) {
		return t.backend.AnalyzeJobManual(ctx, m)
	})
}

func (t *Tracker) add(ctx context.Context, analyze func(context.Context) (gateway.Envelope[record.Record], error)) (Job, error) {
	if _, err := session.Require(ctx); err != nil {
		return Job{}, err
	}
	env, err := analyze(ctx)
	if errors.Is(err, gateway.ErrAuthRequired) {
		return Job{}, err
	}
	if err != nil || !env.Success {
		rerr := &collection.RemoteError{Op: OpAnalyze, Message: env.Message, Err: err}
		msg := env.Message
		if msg == "" {
			msg = "Failed to analyze job"
		}
		t.notifier.Notify(notify.Failure(OpAnalyze, msg))
		return Job{}, rerr
	}

	rec := env.Data
	if rec == nil || collection.IDString(rec[FieldID]) == "" {
		return Job{}, &collection.RemoteError{Op: OpAnalyze, Message: "backend returned a job without an id"}
	}
	if _, ok := rec[FieldStatus]; !ok {
		rec = record.Set(rec, FieldStatus, string(StatusSaved))
	}
	t.ctrl.Insert(rec)
	t.persist(ctx)

	if env.Message != "" {
		t.notifier.Notify(notify.Success(OpAnalyze, env.Message))
	}
	return FromRecord(rec), nil
}

// precheck rejects a change before it touches the store: a missing id is a
// validation error and a missing session an authentication one.
func precheck(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: job id is required", ErrInvalid)
	}
	_, err := session.Require(ctx)
	return err
}

// Flush waits for every in-flight change to settle and saves the snapshot.
func (t *Tracker) Flush(ctx context.Context) error {
	t.ctrl.Wait()
	t.watchers.Wait()
	if t.snapshots == nil {
		return nil
	}
	return t.snapshots.SaveJobs(ctx, t.Records())
}

func (t *Tracker) persistAfter(m *collection.Mutation) {
	if t.snapshots == nil {
		return
	}
	t.watchers.Go(func() {
		<-m.Done()
		t.persist(context.Background())
	})
}

func (t *Tracker) persist(ctx context.Context) {
	if t.snapshots == nil {
		return
	}
	if err := t.snapshots.SaveJobs(ctx, t.Records()); err != nil {
		t.logger.Warn("saving job snapshot", "error", err)
	}
}
