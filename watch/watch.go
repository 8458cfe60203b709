// Package watch drives one submission cycle: a persisted armed flag set when
// the user submits, an event-driven wait for a definitive verdict, and an
// at-most-once handoff to the publisher on accept.
package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/odemirel/csessync/judge"
)

// State is the watcher's disposition after a cycle.
type State int

const (
	// StateIdle means no terminal verdict was processed: the page never
	// showed a verdict and the watcher was not armed, the cycle was
	// cancelled, or extraction failed on an accepted page.
	StateIdle State = iota
	// StatePublished means an accepted verdict reached the publish path.
	StatePublished
	// StateRejected means a definitive non-accepted verdict was seen; no
	// publish was attempted.
	StateRejected
	// StateTimedOut means no definitive verdict appeared before the safety
	// timeout.
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StatePublished:
		return "published"
	case StateRejected:
		return "rejected"
	case StateTimedOut:
		return "timed out"
	default:
		return "idle"
	}
}

// PageSource fetches a fresh view of the watched page.
type PageSource interface {
	Fetch(ctx context.Context) (*judge.PageContext, error)
}

// Observer delivers structural-change notifications for the watched page.
// After Close no further events are delivered; Close must be safe to call
// more than once.
type Observer interface {
	Changes() <-chan *judge.PageContext
	Close()
}

// Extractor produces a record from a result page.
type Extractor interface {
	Extract(ctx context.Context, page *judge.PageContext) (*judge.SubmissionRecord, judge.Verdict, error)
}

// Publisher pushes an accepted record to the repository.
type Publisher interface {
	Publish(ctx context.Context, record *judge.SubmissionRecord) error
}

// ArmStore persists the armed flag across page loads and process restarts.
type ArmStore interface {
	Armed() (bool, error)
	Disarm() error
}

// Watcher runs the verdict-wait state machine for one armed cycle.
type Watcher struct {
	extractor Extractor
	publisher Publisher
	arm       ArmStore
	timeout   time.Duration
	log       zerolog.Logger
}

// New creates a watcher. A non-positive timeout falls back to 30 seconds.
func New(extractor Extractor, publisher Publisher, arm ArmStore, timeout time.Duration, log zerolog.Logger) *Watcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Watcher{
		extractor: extractor,
		publisher: publisher,
		arm:       arm,
		timeout:   timeout,
		log:       log,
	}
}

// Run performs one watch cycle against src. The page is checked immediately;
// if no verdict is visible and the watcher is armed, it waits for change
// events from obs until the safety timeout. The observer is closed before Run
// returns, so a cycle that reached a terminal state cannot be re-triggered.
func (w *Watcher) Run(ctx context.Context, src PageSource, obs Observer) (State, error) {
	defer obs.Close()

	log := w.log.With().Str("cycle", uuid.New().String()).Logger()

	armed, err := w.arm.Armed()
	if err != nil {
		return StateIdle, fmt.Errorf("failed to read armed flag: %w", err)
	}

	page, err := src.Fetch(ctx)
	if err != nil {
		return StateIdle, fmt.Errorf("failed to fetch result page: %w", err)
	}

	// An unarmed watcher still reacts to a page that already shows a final
	// verdict; it just won't wait around for one.
	state, done, err := w.check(ctx, log, page, armed)
	if done || err != nil {
		return state, err
	}
	if !armed {
		log.Debug().Msg("not armed and no verdict on page")
		return StateIdle, nil
	}

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return StateIdle, ctx.Err()
		case <-timer.C:
			// Timing out ends the cycle, so the armed flag must not outlive it.
			w.disarm(log, armed)
			log.Warn().Dur("timeout", w.timeout).Msg("no verdict appeared before the safety timeout")
			return StateTimedOut, nil
		case page, open := <-obs.Changes():
			if !open {
				return StateIdle, errors.New("observer closed before a verdict appeared")
			}
			state, done, err := w.check(ctx, log, page, armed)
			if err != nil {
				return state, err
			}
			if done {
				return state, nil
			}
		}
	}
}

// check runs one extraction pass against page. done reports a terminal
// outcome for the cycle.
func (w *Watcher) check(ctx context.Context, log zerolog.Logger, page *judge.PageContext, armed bool) (State, bool, error) {
	record, verdict, err := w.extractor.Extract(ctx, page)

	switch verdict {
	case judge.VerdictNotReady:
		return StateIdle, false, nil

	case judge.VerdictRejected:
		w.disarm(log, armed)
		log.Info().Msg("submission was not accepted")
		return StateRejected, true, nil
	}

	// Accepted. Disarm before publishing so further change events during the
	// publish cannot trigger a second cycle.
	w.disarm(log, armed)

	if err != nil {
		// An accepted page we could not scrape: log-only, cycle abandoned.
		log.Error().Err(err).Msg("failed to extract accepted submission")
		return StateIdle, true, nil
	}

	if perr := w.publisher.Publish(ctx, record); perr != nil {
		return StatePublished, true, fmt.Errorf("publish failed: %w", perr)
	}
	return StatePublished, true, nil
}

func (w *Watcher) disarm(log zerolog.Logger, armed bool) {
	if !armed {
		return
	}
	if err := w.arm.Disarm(); err != nil {
		log.Warn().Err(err).Msg("failed to clear armed flag")
	}
}
