// Package publish writes accepted submissions to a remote repository: a
// README writeup and the raw solution file, created or updated with
// conflict-safe retries and guarded by a short-lived dedupe window.
package publish

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/odemirel/csessync/judge"
	"github.com/odemirel/csessync/notify"
	"github.com/odemirel/csessync/remote"
)

// Publish errors outside the remote API taxonomy.
var (
	ErrAuthMissing    = errors.New("no credential configured")
	ErrNotPublishable = errors.New("record is missing required fields")
)

// RemoteFiles is the slice of the repository API the publisher needs.
type RemoteFiles interface {
	GetFileSHA(ctx context.Context, owner, repo, path string) (string, error)
	PutFile(ctx context.Context, put remote.PutRequest) (*remote.FileInfo, error)
}

// DedupeStore guards against duplicate triggers for the same problem.
type DedupeStore interface {
	ClaimDedupe(key string, window time.Duration) (bool, error)
}

// Target identifies the repository a submission is written to.
type Target struct {
	Owner      string
	Repo       string
	Credential string
}

// Options carries the retry and dedupe knobs. Zero values fall back to the
// observed defaults: 3 attempts, 1s backoff step, 30s dedupe window.
type Options struct {
	ProblemsRoot string
	MaxAttempts  int
	Backoff      time.Duration
	DedupeWindow time.Duration
}

func (o Options) withDefaults() Options {
	if o.ProblemsRoot == "" {
		o.ProblemsRoot = "CSES_Problems"
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 1 * time.Second
	}
	if o.DedupeWindow <= 0 {
		o.DedupeWindow = 30 * time.Second
	}
	return o
}

// Result reports what a publish attempt did.
type Result struct {
	Suppressed   bool
	ReadmePath   string
	SolutionPath string
}

// Publisher performs create-or-update writes against a remote repository.
type Publisher struct {
	remote   RemoteFiles
	dedupe   DedupeStore
	notifier notify.Notifier
	opts     Options
	log      zerolog.Logger

	// sleep is swapped out in tests to observe backoff delays.
	sleep func(time.Duration)
}

// New creates a publisher. notifier receives exactly one event per completed
// publish attempt.
func New(files RemoteFiles, dedupe DedupeStore, notifier notify.Notifier, opts Options, log zerolog.Logger) *Publisher {
	return &Publisher{
		remote:   files,
		dedupe:   dedupe,
		notifier: notifier,
		opts:     opts.withDefaults(),
		log:      log,
		sleep:    time.Sleep,
	}
}

// Publish writes the README and solution file for record, sequentially, with
// conflict retries. A duplicate trigger inside the dedupe window is a silent
// no-op. A README that was written before the solution write failed is left
// in place; the partial publish is surfaced, not rolled back.
func (p *Publisher) Publish(ctx context.Context, target Target, record *judge.SubmissionRecord) (*Result, error) {
	if target.Credential == "" {
		p.notifier.Notify(notify.Failure, "no access token configured: run login before publishing")
		return nil, ErrAuthMissing
	}
	if !record.Publishable() {
		return nil, ErrNotPublishable
	}

	log := p.log.With().
		Str("attempt_id", uuid.New().String()).
		Str("problem_id", record.ProblemID).
		Logger()

	// Claim the dedupe key before any network activity so a concurrent
	// trigger for the same problem cannot start a second publish.
	key := record.ProblemID + "|" + record.ProblemName
	claimed, err := p.dedupe.ClaimDedupe(key, p.opts.DedupeWindow)
	if err != nil {
		log.Warn().Err(err).Msg("dedupe check failed, continuing without the guard")
	} else if !claimed {
		log.Debug().Msg("duplicate trigger suppressed within dedupe window")
		return &Result{Suppressed: true}, nil
	}

	dir := ProblemDir(p.opts.ProblemsRoot, record.ProblemID, record.ProblemName)
	readmePath := path.Join(dir, "README.md")
	solutionPath := path.Join(dir, "solution."+SolutionExt(record.SubmittedCode))

	readmeMessage := fmt.Sprintf("Add CSES problem %s: %s README", record.ProblemID, record.ProblemName)
	if err := p.putWithRetry(ctx, log, target, readmePath, RenderReadme(record), readmeMessage); err != nil {
		p.notifier.Notify(notify.Failure,
			fmt.Sprintf("failed to publish %s: %s", readmePath, reason(err)))
		return nil, err
	}

	solutionMessage := fmt.Sprintf("Add CSES problem %s: %s solution file", record.ProblemID, record.ProblemName)
	if err := p.putWithRetry(ctx, log, target, solutionPath, RenderSolution(record), solutionMessage); err != nil {
		p.notifier.Notify(notify.Failure,
			fmt.Sprintf("failed to publish %s: %s", solutionPath, reason(err)))
		return &Result{ReadmePath: readmePath}, err
	}

	log.Info().Str("dir", dir).Msg("published submission")
	p.notifier.Notify(notify.Success,
		fmt.Sprintf("published %s to %s/%s", record.ProblemName, target.Owner, target.Repo))
	return &Result{ReadmePath: readmePath, SolutionPath: solutionPath}, nil
}

// putWithRetry performs create-or-update for one file: look up the current
// revision marker, write with it, and on a conflicting write re-fetch the
// marker and try again after a linearly growing delay. Non-conflict errors
// are surfaced immediately.
func (p *Publisher) putWithRetry(ctx context.Context, log zerolog.Logger, target Target, filePath, content, message string) error {
	sha, err := p.remote.GetFileSHA(ctx, target.Owner, target.Repo, filePath)
	if err != nil {
		// Unknown revision: attempt a plain create.
		log.Warn().Err(err).Str("path", filePath).Msg("failed to read file revision")
		sha = ""
	}

	var lastErr error
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			p.sleep(time.Duration(attempt-1) * p.opts.Backoff)
			if fresh, err := p.remote.GetFileSHA(ctx, target.Owner, target.Repo, filePath); err == nil {
				sha = fresh
			}
		}

		_, err := p.remote.PutFile(ctx, remote.PutRequest{
			Owner:   target.Owner,
			Repo:    target.Repo,
			Path:    filePath,
			Message: message,
			Content: content,
			SHA:     sha,
		})
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *remote.APIError
		if !errors.As(err, &apiErr) || !apiErr.Retryable() {
			return err
		}
		log.Warn().Int("attempt", attempt).Str("path", filePath).Err(err).
			Msg("write conflict, will re-fetch revision and retry")
	}
	return lastErr
}

// reason renders an error for a user-visible notification.
func reason(err error) string {
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return err.Error()
}
