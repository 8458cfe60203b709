package watch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odemirel/csessync/judge"
)

// mutableSource serves a result page whose verdict cell the test can flip
// between polls.
type mutableSource struct {
	mu     sync.Mutex
	result string
}

func (s *mutableSource) setResult(result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
}

func (s *mutableSource) Fetch(context.Context) (*judge.PageContext, error) {
	s.mu.Lock()
	result := s.result
	s.mu.Unlock()

	markup := fmt.Sprintf(`<html><body>
		<table><tr><td>Result:</td><td>%s</td></tr></table>
	</body></html>`, result)
	return judge.ParsePage("https://cses.fi/problemset/result/1/", markup)
}

func waitForEvent(t *testing.T, p *PagePoller) *judge.PageContext {
	t.Helper()
	select {
	case page := <-p.Changes():
		return page
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a change event")
		return nil
	}
}

// TestPagePoller_EmitsOnResultChange verifies events fire only when the
// verdict cell changes between polls
func TestPagePoller_EmitsOnResultChange(t *testing.T) {
	src := &mutableSource{result: "Testing"}
	p := NewPagePoller(context.Background(), src, 5*time.Millisecond, zerolog.Nop())
	defer p.Close()

	page := waitForEvent(t, p)
	assert.Equal(t, "Testing", judge.ResultCellText(page.Doc))

	// No further events while the cell is unchanged.
	select {
	case <-p.Changes():
		t.Fatal("got an event without a change")
	case <-time.After(40 * time.Millisecond):
	}

	src.setResult("ACCEPTED")
	page = waitForEvent(t, p)
	assert.Equal(t, "ACCEPTED", judge.ResultCellText(page.Doc))
}

// TestPagePoller_CloseStopsDelivery verifies no events arrive after Close and
// that closing twice is safe
func TestPagePoller_CloseStopsDelivery(t *testing.T) {
	src := &mutableSource{result: "Testing"}
	p := NewPagePoller(context.Background(), src, 5*time.Millisecond, zerolog.Nop())

	waitForEvent(t, p)
	p.Close()
	require.NotPanics(t, p.Close)

	// Let any iteration already in flight finish, drain what it buffered,
	// then expect silence.
	time.Sleep(20 * time.Millisecond)
	select {
	case <-p.Changes():
	default:
	}
	src.setResult("ACCEPTED")
	select {
	case <-p.Changes():
		t.Fatal("got an event after Close")
	case <-time.After(40 * time.Millisecond):
	}
}

// blockingSource blocks every fetch until its context is cancelled and
// reports when that happens.
type blockingSource struct {
	started   chan struct{}
	cancelled chan struct{}
}

func (s *blockingSource) Fetch(ctx context.Context) (*judge.PageContext, error) {
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	select {
	case s.cancelled <- struct{}{}:
	default:
	}
	return nil, ctx.Err()
}

// TestPagePoller_CloseCancelsFetchInFlight verifies a slow fetch does not
// outlive the poller
func TestPagePoller_CloseCancelsFetchInFlight(t *testing.T) {
	src := &blockingSource{
		started:   make(chan struct{}, 1),
		cancelled: make(chan struct{}, 1),
	}
	p := NewPagePoller(context.Background(), src, time.Millisecond, zerolog.Nop())

	select {
	case <-src.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the first fetch to start")
	}

	p.Close()

	select {
	case <-src.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the fetch in flight")
	}
}

// TestPagePoller_ParentContextStopsPolling verifies cancellation of the
// caller's context ends delivery without an explicit Close
func TestPagePoller_ParentContextStopsPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &mutableSource{result: "Testing"}
	p := NewPagePoller(ctx, src, 5*time.Millisecond, zerolog.Nop())
	defer p.Close()

	waitForEvent(t, p)
	cancel()

	// Let any iteration already in flight finish, drain what it buffered,
	// then expect silence.
	time.Sleep(20 * time.Millisecond)
	select {
	case <-p.Changes():
	default:
	}
	src.setResult("ACCEPTED")
	select {
	case <-p.Changes():
		t.Fatal("got an event after the parent context was cancelled")
	case <-time.After(40 * time.Millisecond):
	}
}
