package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/jobtrail/internal/collection"
	"github.com/kalambet/jobtrail/internal/gateway"
	"github.com/kalambet/jobtrail/internal/notify"
	"github.com/kalambet/jobtrail/internal/record"
	"github.com/kalambet/jobtrail/internal/session"
	"github.com/kalambet/jobtrail/internal/upload"
)

const (
	OpSave   = "save profile"
	OpUpload = "upload resume"
)

// localID keys the profile in its single-entity store when the backend
// sends none. It is never sent back.
const localID = "me"

var (
	// ErrNoChange is returned by edits that would leave the profile as is,
	// such as adding a blank or duplicate list item.
	ErrNoChange = errors.New("no change")
	// ErrInvalidPath is returned for an empty path or one naming the id.
	ErrInvalidPath = errors.New("invalid profile path")
)

// Backend defines the gateway operations the Manager needs.
// Implemented by gateway.Client.
type Backend interface {
	GetProfile(ctx context.Context) (gateway.Envelope[record.Record], error)
	PutProfile(ctx context.Context, profile record.Record) (gateway.Envelope[record.Record], error)
	UploadFile(ctx context.Context, fileName string, content io.Reader) (gateway.Envelope[gateway.UploadedFile], error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager keeps a cached local copy of the profile and applies edits to it
// optimistically, syncing the whole aggregate with the backend after each.
type Manager struct {
	backend  Backend
	ctrl     *collection.Controller
	notifier notify.Notifier
	policy   upload.Policy
	logger   *slog.Logger
	clock    Clock
	ttl      time.Duration

	mu       sync.RWMutex
	loadedAt time.Time
	loaded   bool
	injected bool

	// edit serializes read-modify-apply so two edits of one section do not
	// lose each other.
	edit sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock and cache TTL (for testing).
func WithClock(c Clock, ttl time.Duration) Option {
	return func(m *Manager) {
		m.clock = c
		m.ttl = ttl
	}
}

// WithUploadPolicy sets the policy resumes are checked against.
func WithUploadPolicy(p upload.Policy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithLogger sets the logger (slog.Default otherwise).
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager with a 60-second cache TTL. Confirmed saves
// are reported to n as "Profile updated successfully".
func NewManager(b Backend, n notify.Notifier, opts ...Option) *Manager {
	if n == nil {
		n = notify.Discard
	}
	m := &Manager{
		backend:  b,
		notifier: n,
		policy:   upload.DefaultPolicy(),
		logger:   slog.Default(),
		clock:    realClock{},
		ttl:      60 * time.Second,
	}
	for _, o := range opts {
		o(m)
	}
	m.ctrl = collection.NewController(collection.NewStore(""), n,
		collection.WithConfirmations(true), collection.WithLogger(m.logger))
	return m
}

// Get returns the profile record, fetching it when the cache has expired.
// While edits are in flight the local copy is kept as is.
func (m *Manager) Get(ctx context.Context) (record.Record, error) {
	m.mu.RLock()
	if m.fresh() {
		r, _ := m.ctrl.Store().Get(m.id())
		m.mu.RUnlock()
		return r, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fresh() {
		r, _ := m.ctrl.Store().Get(m.id())
		return r, nil
	}

	env, err := m.backend.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if !env.Success {
		return nil, &collection.RemoteError{Op: "load profile", Message: env.Message}
	}

	r := env.Data
	if r == nil {
		r = record.Record{}
	}
	m.injected = collection.IDString(r[collection.DefaultIDField]) == ""
	if m.injected {
		r = record.Set(r, collection.DefaultIDField, localID)
	}
	m.ctrl.Replace([]record.Record{r})
	m.loaded = true
	m.loadedAt = m.clock.Now()
	return r, nil
}

// Profile returns the typed profile.
func (m *Manager) Profile(ctx context.Context) (Profile, error) {
	r, err := m.Get(ctx)
	if err != nil {
		return Profile{}, err
	}
	p, err := FromRecord(m.outbound(r))
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Invalidate drops the cache so the next Get refetches.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.loaded = false
	m.mu.Unlock()
}

// Set stores value at a dot path such as "professionalInfo.currentTitle".
func (m *Manager) Set(ctx context.Context, path string, value any) (*collection.Mutation, error) {
	return m.applyEdit(ctx, path, func(cur record.Record) (record.Patch, error) {
		return record.PathPatch(cur, path, value), nil
	})
}

// AddItem appends a trimmed value to the list at path. Blank and duplicate
// values are ignored with ErrNoChange.
func (m *Manager) AddItem(ctx context.Context, path, value string) (*collection.Mutation, error) {
	value = strings.TrimSpace(value)
	return m.applyEdit(ctx, path, func(cur record.Record) (record.Patch, error) {
		if value == "" {
			return nil, ErrNoChange
		}
		if existing, ok := cur.Lookup(path); ok {
			if slices.Contains(stringsOf(existing), value) {
				return nil, fmt.Errorf("%w: %q is already in %s", ErrNoChange, value, path)
			}
		}
		next, err := record.Append(cur, path, value)
		if err != nil {
			return nil, err
		}
		return record.SubtreePatch(next, path), nil
	})
}

// RemoveItem removes element i of the list at path.
func (m *Manager) RemoveItem(ctx context.Context, path string, i int) (*collection.Mutation, error) {
	return m.applyEdit(ctx, path, func(cur record.Record) (record.Patch, error) {
		next, err := record.RemoveAt(cur, path, i)
		if err != nil {
			return nil, err
		}
		return record.SubtreePatch(next, path), nil
	})
}

// Update replaces the whole profile with next, as a form save does. Only
// the top-level sections that differ are patched.
func (m *Manager) Update(ctx context.Context, next record.Record) (*collection.Mutation, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	m.edit.Lock()
	defer m.edit.Unlock()

	cur, err := m.Get(ctx)
	if err != nil {
		return nil, err
	}
	patch := record.Patch{}
	for k, v := range next {
		if k != collection.DefaultIDField && !record.Equal(cur[k], v) {
			patch[k] = v
		}
	}
	for k := range cur {
		if _, ok := next[k]; !ok && k != collection.DefaultIDField {
			patch[k] = record.Absent
		}
	}
	if len(patch) == 0 {
		return nil, ErrNoChange
	}
	return m.ctrl.ApplyAndSync(ctx, OpSave, m.currentID(), patch, m.put)
}

// Save pushes the current local profile to the backend.
func (m *Manager) Save(ctx context.Context) error {
	cur, err := m.Get(ctx)
	if err != nil {
		return err
	}
	env, err := m.backend.PutProfile(ctx, m.outbound(cur))
	if errors.Is(err, session.ErrAuthRequired) {
		return err
	}
	if err != nil || !env.Success {
		m.notifier.Notify(notify.Failure(OpSave, env.Message))
		return &collection.RemoteError{Op: OpSave, Message: env.Message, Err: err}
	}
	m.notifier.Notify(notify.Success(OpSave, successMessage(env.Message)))
	return nil
}

// AttachResume validates the file, uploads it and records it as the
// profile's resume. A rejected file is reported without any network call.
func (m *Manager) AttachResume(ctx context.Context, name string, content io.ReaderAt, size int64) (*collection.Mutation, error) {
	if err := m.policy.Check(name, content, size); err != nil {
		return nil, err
	}
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}

	env, err := m.backend.UploadFile(ctx, name, io.NewSectionReader(content, 0, size))
	if errors.Is(err, session.ErrAuthRequired) {
		return nil, err
	}
	if err != nil || !env.Success {
		m.notifier.Notify(notify.Failure(OpUpload, env.Message))
		return nil, &collection.RemoteError{Op: OpUpload, Message: env.Message, Err: err}
	}
	m.logger.Info("resume uploaded", "file", env.Data.OriginalName, "url", env.Data.URL)

	return m.Set(ctx, "documents.resume", map[string]any{
		"url":        env.Data.URL,
		"fileName":   env.Data.OriginalName,
		"uploadedAt": env.Data.UploadedAt.UTC().Format(time.RFC3339),
	})
}

// Summary returns a compact one-paragraph description of the profile.
func (m *Manager) Summary(ctx context.Context) (string, error) {
	p, err := m.Profile(ctx)
	if err != nil {
		return "", fmt.Errorf("getting profile for summary: %w", err)
	}
	return summarize(p), nil
}

// Pending returns the edits still waiting for the backend.
func (m *Manager) Pending() []*collection.Mutation {
	return m.ctrl.Pending()
}

// Wait blocks until every in-flight edit has settled.
func (m *Manager) Wait() {
	m.ctrl.Wait()
}

// applyEdit runs one path edit: it validates path, computes the patch from the
// current profile and applies it optimistically.
func (m *Manager) applyEdit(ctx context.Context, path string, mk func(record.Record) (record.Patch, error)) (*collection.Mutation, error) {
	path = strings.TrimSpace(path)
	top, _, _ := strings.Cut(path, ".")
	if path == "" || top == collection.DefaultIDField {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}

	m.edit.Lock()
	defer m.edit.Unlock()

	cur, err := m.Get(ctx)
	if err != nil {
		return nil, err
	}
	patch, err := mk(cur)
	if err != nil {
		return nil, err
	}
	if v, ok := cur[top]; ok && record.Equal(v, patch[top]) {
		return nil, ErrNoChange
	}
	return m.ctrl.ApplyAndSync(ctx, OpSave, m.currentID(), patch, m.put)
}

func (m *Manager) put(ctx context.Context) (collection.Outcome, error) {
	cur, ok := m.ctrl.Store().Get(m.currentID())
	if !ok {
		return collection.Outcome{}, collection.ErrNotFound
	}
	env, err := m.backend.PutProfile(ctx, m.outbound(cur))
	out := env.Outcome()
	if out.Success {
		out.Message = successMessage(out.Message)
	}
	return out, err
}

// outbound strips the local id before r leaves the process.
func (m *Manager) outbound(r record.Record) record.Record {
	m.mu.RLock()
	injected := m.injected
	m.mu.RUnlock()
	if injected {
		return record.Delete(r, collection.DefaultIDField)
	}
	return r
}

func (m *Manager) fresh() bool {
	if !m.loaded {
		return false
	}
	if len(m.ctrl.Pending()) > 0 {
		return true
	}
	return m.clock.Now().Before(m.loadedAt.Add(m.ttl))
}

func (m *Manager) id() string {
	if m.injected {
		return localID
	}
	if snap := m.ctrl.Store().Snapshot(); len(snap) > 0 {
		return m.ctrl.Store().IDOf(snap[0])
	}
	return localID
}

func (m *Manager) currentID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id()
}

func successMessage(msg string) string {
	if msg == "" {
		return "Profile updated successfully"
	}
	return msg
}

func stringsOf(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
