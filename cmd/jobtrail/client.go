package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/jobtrail/internal/collection"
	"github.com/kalambet/jobtrail/internal/config"
	"github.com/kalambet/jobtrail/internal/gateway"
	"github.com/kalambet/jobtrail/internal/jobs"
	"github.com/kalambet/jobtrail/internal/notify"
	"github.com/kalambet/jobtrail/internal/profile"
	"github.com/kalambet/jobtrail/internal/session"
	"github.com/kalambet/jobtrail/internal/storage"
	"github.com/kalambet/jobtrail/internal/upload"
)

// errReported marks a failure the user has already seen as a notification.
var errReported = errors.New("reported")

type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Is(target error) bool { return target == errReported }

func (e *reportedError) Unwrap() error { return e.err }

// app is what a command needs to talk to the backend and the local store.
type app struct {
	cfg    config.Config
	store  *storage.Store
	gw     *gateway.Client
	logger *slog.Logger
}

var openApp = func() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogging(cfg.Log.Level, false)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	gw, err := gateway.New(cfg.API.BaseURL,
		gateway.WithTimeout(cfg.API.TimeoutDuration()),
		gateway.WithLogger(logger),
	)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &app{cfg: cfg, store: store, gw: gw, logger: logger}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// notifier prints outcomes and records them in the notification log.
func (a *app) notifier() notify.Notifier {
	return notify.Multi{a.store.Notifier(a.logger), notify.Func(printNotification)}
}

func (a *app) uploadPolicy() upload.Policy {
	return upload.Policy{Extensions: a.cfg.Upload.Extensions(), MaxSizeMB: a.cfg.Upload.MaxSizeMB}
}

// signedIn returns ctx carrying the stored session.
func (a *app) signedIn(ctx context.Context) (context.Context, session.Session, error) {
	sess, err := a.store.LoadSession(ctx, storage.DefaultSession)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !sess.Valid(time.Now())) {
		return ctx, session.Session{}, errNotSignedIn
	}
	if err != nil {
		return ctx, session.Session{}, fmt.Errorf("reading session: %w", err)
	}
	return session.WithSession(ctx, sess), sess, nil
}

var errNotSignedIn = errors.New("authentication required: run `jobtrail login`")

// authErr turns a lost session into the sign-in hint and drops the stored
// session so the next command does not retry it.
func (a *app) authErr(ctx context.Context, err error) error {
	if errors.Is(err, session.ErrAuthRequired) {
		if derr := a.store.DeleteSession(ctx, storage.DefaultSession); derr != nil && !errors.Is(derr, storage.ErrNotFound) {
			a.logger.Warn("deleting stored session", "error", derr)
		}
		return errNotSignedIn
	}
	return err
}

func (a *app) tracker(ctx context.Context) (*jobs.Tracker, error) {
	t := jobs.NewTracker(a.gw, a.notifier(),
		jobs.WithSnapshots(a.store),
		jobs.WithLogger(a.logger),
		jobs.WithConfirmations(true),
	)
	if _, err := t.Load(ctx); err != nil {
		return nil, a.authErr(ctx, err)
	}
	return t, nil
}

func (a *app) profileManager() *profile.Manager {
	return profile.NewManager(a.gw, a.notifier(),
		profile.WithUploadPolicy(a.uploadPolicy()),
		profile.WithLogger(a.logger),
	)
}

// settleJobs waits for m, saves the job snapshot and returns m's outcome.
func (a *app) settleJobs(ctx context.Context, t *jobs.Tracker, m *collection.Mutation) error {
	if err := t.Flush(ctx); err != nil {
		a.logger.Warn("saving job snapshot", "error", err)
	}
	return a.outcome(ctx, m)
}

func (a *app) settleProfile(ctx context.Context, mgr *profile.Manager, m *collection.Mutation) error {
	mgr.Wait()
	return a.outcome(ctx, m)
}

// outcome returns m's result. A rolled-back change has already been shown
// by the notifier.
func (a *app) outcome(ctx context.Context, m *collection.Mutation) error {
	err := m.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, session.ErrAuthRequired) {
		return a.authErr(ctx, err)
	}
	return &reportedError{err: err}
}
