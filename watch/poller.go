package watch

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/odemirel/csessync/judge"
)

// URLSource fetches a fixed URL as the watched page.
type URLSource struct {
	URL    string
	Client *http.Client
}

func (s URLSource) Fetch(ctx context.Context) (*judge.PageContext, error) {
	return judge.FetchPage(ctx, s.Client, s.URL)
}

// PagePoller implements Observer by re-fetching the page on an interval and
// emitting an event only when the result-label area changes. It stands in for
// a DOM mutation observer on a live document.
type PagePoller struct {
	src      PageSource
	interval time.Duration
	log      zerolog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	changes  chan *judge.PageContext
	once     sync.Once
	lastSeen string
}

// NewPagePoller starts polling src. Polling stops when ctx is cancelled or
// Close is called, whichever comes first; fetches in flight are cancelled with
// it. A non-positive interval falls back to 2 seconds.
func NewPagePoller(ctx context.Context, src PageSource, interval time.Duration, log zerolog.Logger) *PagePoller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	p := &PagePoller{
		src:      src,
		interval: interval,
		log:      log,
		changes:  make(chan *judge.PageContext, 1),
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	go p.loop()
	return p
}

func (p *PagePoller) Changes() <-chan *judge.PageContext {
	return p.changes
}

// Close disconnects the poller. Safe to call more than once.
func (p *PagePoller) Close() {
	p.once.Do(p.cancel)
}

func (p *PagePoller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
		}

		page, err := p.src.Fetch(p.ctx)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			p.log.Warn().Err(err).Msg("failed to re-fetch watched page")
			continue
		}

		snapshot := judge.ResultCellText(page.Doc)
		if snapshot == p.lastSeen {
			continue
		}
		p.lastSeen = snapshot

		// Non-blocking send: if the watcher is mid-check, one pending event
		// is enough for it to see the latest state.
		select {
		case p.changes <- page:
		default:
		}
	}
}
