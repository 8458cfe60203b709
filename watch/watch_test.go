package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odemirel/csessync/judge"
)

// extractResult scripts one Extract call.
type extractResult struct {
	record  *judge.SubmissionRecord
	verdict judge.Verdict
	err     error
}

// scriptedExtractor returns the scripted results in order, repeating the last
// one once the script runs out.
type scriptedExtractor struct {
	mu     sync.Mutex
	script []extractResult
	calls  int
}

func (e *scriptedExtractor) Extract(_ context.Context, _ *judge.PageContext) (*judge.SubmissionRecord, judge.Verdict, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.calls
	if i >= len(e.script) {
		i = len(e.script) - 1
	}
	e.calls++
	r := e.script[i]
	return r.record, r.verdict, r.err
}

func (e *scriptedExtractor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// fakeSource serves a static page.
type fakeSource struct {
	page *judge.PageContext
	err  error
}

func (s fakeSource) Fetch(context.Context) (*judge.PageContext, error) {
	return s.page, s.err
}

// fakeObserver hands the test a channel to push change events through.
type fakeObserver struct {
	events chan *judge.PageContext
	once   sync.Once
	closed chan struct{}
}

func newFakeObserver() *fakeObserver {
	return &fakeObserver{
		events: make(chan *judge.PageContext, 4),
		closed: make(chan struct{}),
	}
}

func (o *fakeObserver) Changes() <-chan *judge.PageContext { return o.events }

func (o *fakeObserver) Close() {
	o.once.Do(func() { close(o.closed) })
}

func (o *fakeObserver) isClosed() bool {
	select {
	case <-o.closed:
		return true
	default:
		return false
	}
}

// fakeArmStore tracks the armed flag in memory.
type fakeArmStore struct {
	mu    sync.Mutex
	armed bool
}

func (s *fakeArmStore) Armed() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed, nil
}

func (s *fakeArmStore) Disarm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = false
	return nil
}

// recordingPublisher captures published records; onPublish runs inside the
// call so tests can observe state at publish time.
type recordingPublisher struct {
	mu        sync.Mutex
	published []*judge.SubmissionRecord
	err       error
	onPublish func()
}

func (p *recordingPublisher) Publish(_ context.Context, record *judge.SubmissionRecord) error {
	p.mu.Lock()
	p.published = append(p.published, record)
	p.mu.Unlock()
	if p.onPublish != nil {
		p.onPublish()
	}
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func acceptedRecord() *judge.SubmissionRecord {
	return &judge.SubmissionRecord{
		ProblemID:     "1068",
		ProblemName:   "Weird Algorithm",
		ProblemURL:    "https://cses.fi/problemset/task/1068/",
		SubmittedCode: "#include <iostream>\nint main() {}\n",
	}
}

func testPage() *judge.PageContext {
	return &judge.PageContext{URL: "https://cses.fi/problemset/result/1/"}
}

// TestRun_ImmediateAccept verifies a verdict already on the page publishes
// without waiting for change events
func TestRun_ImmediateAccept(t *testing.T) {
	extractor := &scriptedExtractor{script: []extractResult{
		{record: acceptedRecord(), verdict: judge.VerdictAccepted},
	}}
	publisher := &recordingPublisher{}
	arm := &fakeArmStore{armed: true}
	obs := newFakeObserver()

	w := New(extractor, publisher, arm, time.Second, zerolog.Nop())
	state, err := w.Run(context.Background(), fakeSource{page: testPage()}, obs)
	require.NoError(t, err)

	assert.Equal(t, StatePublished, state)
	assert.Equal(t, 1, publisher.count())
	assert.True(t, obs.isClosed(), "observer should be closed when the cycle ends")

	armed, _ := arm.Armed()
	assert.False(t, armed, "accepting should clear the armed flag")
}

// TestRun_DisarmsBeforePublishing verifies the at-most-once ordering: the
// armed flag is already cleared by the time the publisher runs
func TestRun_DisarmsBeforePublishing(t *testing.T) {
	arm := &fakeArmStore{armed: true}
	publisher := &recordingPublisher{}
	publisher.onPublish = func() {
		armed, err := arm.Armed()
		require.NoError(t, err)
		assert.False(t, armed, "must disarm before publishing")
	}
	extractor := &scriptedExtractor{script: []extractResult{
		{record: acceptedRecord(), verdict: judge.VerdictAccepted},
	}}

	w := New(extractor, publisher, arm, time.Second, zerolog.Nop())
	_, err := w.Run(context.Background(), fakeSource{page: testPage()}, newFakeObserver())
	require.NoError(t, err)
	require.Equal(t, 1, publisher.count())
}

// TestRun_RejectedVerdict verifies a non-accepted verdict disarms and stops
// without touching the publisher
func TestRun_RejectedVerdict(t *testing.T) {
	extractor := &scriptedExtractor{script: []extractResult{
		{verdict: judge.VerdictRejected},
	}}
	publisher := &recordingPublisher{}
	arm := &fakeArmStore{armed: true}

	w := New(extractor, publisher, arm, time.Second, zerolog.Nop())
	state, err := w.Run(context.Background(), fakeSource{page: testPage()}, newFakeObserver())
	require.NoError(t, err)

	assert.Equal(t, StateRejected, state)
	assert.Zero(t, publisher.count(), "rejected submissions are never published")

	armed, _ := arm.Armed()
	assert.False(t, armed)
}

// TestRun_Timeout verifies the safety timeout ends a cycle that never sees a
// verdict
func TestRun_Timeout(t *testing.T) {
	extractor := &scriptedExtractor{script: []extractResult{
		{verdict: judge.VerdictNotReady},
	}}
	arm := &fakeArmStore{armed: true}

	w := New(extractor, &recordingPublisher{}, arm, 30*time.Millisecond, zerolog.Nop())
	state, err := w.Run(context.Background(), fakeSource{page: testPage()}, newFakeObserver())
	require.NoError(t, err)
	assert.Equal(t, StateTimedOut, state)
}

// TestRun_TimeoutDisarms verifies the timeout is terminal: the armed flag
// must not linger past the cycle it belonged to
func TestRun_TimeoutDisarms(t *testing.T) {
	extractor := &scriptedExtractor{script: []extractResult{
		{verdict: judge.VerdictNotReady},
	}}
	arm := &fakeArmStore{armed: true}

	w := New(extractor, &recordingPublisher{}, arm, 30*time.Millisecond, zerolog.Nop())
	state, err := w.Run(context.Background(), fakeSource{page: testPage()}, newFakeObserver())
	require.NoError(t, err)
	require.Equal(t, StateTimedOut, state)

	armed, _ := arm.Armed()
	assert.False(t, armed, "timing out should clear the armed flag")
}

// TestRun_EventDrivenAccept verifies the wait path: no verdict on the first
// look, then a change event carrying the accepted page
func TestRun_EventDrivenAccept(t *testing.T) {
	extractor := &scriptedExtractor{script: []extractResult{
		{verdict: judge.VerdictNotReady},
		{record: acceptedRecord(), verdict: judge.VerdictAccepted},
	}}
	publisher := &recordingPublisher{}
	arm := &fakeArmStore{armed: true}
	obs := newFakeObserver()
	obs.events <- testPage()

	w := New(extractor, publisher, arm, 5*time.Second, zerolog.Nop())
	state, err := w.Run(context.Background(), fakeSource{page: testPage()}, obs)
	require.NoError(t, err)

	assert.Equal(t, StatePublished, state)
	assert.Equal(t, 2, extractor.callCount(), "one immediate check plus one event check")
	assert.Equal(t, 1, publisher.count())
}

// TestRun_NotArmedIdle verifies an unarmed watcher with no visible verdict
// returns immediately instead of waiting
func TestRun_NotArmedIdle(t *testing.T) {
	extractor := &scriptedExtractor{script: []extractResult{
		{verdict: judge.VerdictNotReady},
	}}

	w := New(extractor, &recordingPublisher{}, &fakeArmStore{armed: false}, 5*time.Second, zerolog.Nop())

	start := time.Now()
	state, err := w.Run(context.Background(), fakeSource{page: testPage()}, newFakeObserver())
	require.NoError(t, err)

	assert.Equal(t, StateIdle, state)
	assert.Equal(t, 1, extractor.callCount())
	assert.Less(t, time.Since(start), time.Second, "unarmed cycle should not wait for the timeout")
}

// TestRun_NotArmedStillReactsToVerdict verifies a verdict already visible on
// the page is handled even without the armed flag
func TestRun_NotArmedStillReactsToVerdict(t *testing.T) {
	extractor := &scriptedExtractor{script: []extractResult{
		{record: acceptedRecord(), verdict: judge.VerdictAccepted},
	}}
	publisher := &recordingPublisher{}

	w := New(extractor, publisher, &fakeArmStore{armed: false}, time.Second, zerolog.Nop())
	state, err := w.Run(context.Background(), fakeSource{page: testPage()}, newFakeObserver())
	require.NoError(t, err)

	assert.Equal(t, StatePublished, state)
	assert.Equal(t, 1, publisher.count())
}

// TestRun_PublishFailureSurfaced verifies a failed publish still reports the
// state that was reached
func TestRun_PublishFailureSurfaced(t *testing.T) {
	extractor := &scriptedExtractor{script: []extractResult{
		{record: acceptedRecord(), verdict: judge.VerdictAccepted},
	}}
	publisher := &recordingPublisher{err: errors.New("conflict")}

	w := New(extractor, publisher, &fakeArmStore{armed: true}, time.Second, zerolog.Nop())
	state, err := w.Run(context.Background(), fakeSource{page: testPage()}, newFakeObserver())

	assert.Equal(t, StatePublished, state)
	assert.ErrorContains(t, err, "publish failed")
}

// TestRun_ExtractionFailureAbandonsCycle verifies an accepted page that cannot
// be scraped ends the cycle quietly, already disarmed
func TestRun_ExtractionFailureAbandonsCycle(t *testing.T) {
	extractor := &scriptedExtractor{script: []extractResult{
		{verdict: judge.VerdictAccepted, err: judge.ErrNoCode},
	}}
	publisher := &recordingPublisher{}
	arm := &fakeArmStore{armed: true}

	w := New(extractor, publisher, arm, time.Second, zerolog.Nop())
	state, err := w.Run(context.Background(), fakeSource{page: testPage()}, newFakeObserver())
	require.NoError(t, err)

	assert.Equal(t, StateIdle, state)
	assert.Zero(t, publisher.count())

	armed, _ := arm.Armed()
	assert.False(t, armed, "a failed extraction still consumes the armed cycle")
}

// TestRun_FetchFailure verifies a page that cannot be fetched is an error
func TestRun_FetchFailure(t *testing.T) {
	w := New(&scriptedExtractor{script: []extractResult{{}}}, &recordingPublisher{},
		&fakeArmStore{armed: true}, time.Second, zerolog.Nop())

	state, err := w.Run(context.Background(), fakeSource{err: errors.New("connection refused")}, newFakeObserver())
	assert.Equal(t, StateIdle, state)
	assert.ErrorContains(t, err, "failed to fetch result page")
}

// TestRun_ContextCancelled verifies cancellation ends the wait
func TestRun_ContextCancelled(t *testing.T) {
	extractor := &scriptedExtractor{script: []extractResult{
		{verdict: judge.VerdictNotReady},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	w := New(extractor, &recordingPublisher{}, &fakeArmStore{armed: true}, 5*time.Second, zerolog.Nop())
	state, err := w.Run(ctx, fakeSource{page: testPage()}, newFakeObserver())
	assert.Equal(t, StateIdle, state)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestState_String covers the user-facing state names
func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "published", StatePublished.String())
	assert.Equal(t, "rejected", StateRejected.String())
	assert.Equal(t, "timed out", StateTimedOut.String())
}
