package flush

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ioticlabs/qapi-core/internal/metrics"
	"github.com/ioticlabs/qapi-core/internal/protocol"
	"github.com/ioticlabs/qapi-core/internal/qerr"
	"github.com/ioticlabs/qapi-core/internal/resource"
)

// thingState is this pool's record of what has already been created
// container-side for a lid, so repeat diffs don't reissue
// EntityCreate/PointCreate, per ThreadPool.py's __cache.
type thingState struct {
	created bool
	points  map[string]bool
}

// Pool applies stash diffs to the container through a fixed set of
// workers, at most one diff in flight per local id at a time, grounded on
// Stash/ThreadPool.py's ThreadPool.
type Pool struct {
	name       string
	client     *protocol.Client
	numWorkers int
	logger     zerolog.Logger

	queue *lidQueue

	stateMu sync.Mutex
	state   map[string]*thingState

	wg      sync.WaitGroup
	stopCh  chan struct{}
	stopMu  sync.Mutex
	stopped bool

	abortOnce sync.Once
	abortCh   chan struct{}
}

// New constructs a Pool named name, applying diffs through client with
// numWorkers concurrent workers (each serialising one lid's diffs at a
// time).
func New(name string, client *protocol.Client, numWorkers int, logger zerolog.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool{
		name:       name,
		client:     client,
		numWorkers: numWorkers,
		logger:     logger,
		queue:      newLidQueue(),
		state:      make(map[string]*thingState),
		stopCh:     make(chan struct{}),
		abortCh:    make(chan struct{}),
	}
}

// Abort returns a channel closed once a worker hits an unrecoverable error
// (anything other than a transport failure), the Go-idiomatic substitute
// for ThreadPool.py's kill(getpid(), SIGUSR1) on IOTAccessDenied or an
// uncaught exception. Observing this channel and shutting down is the
// caller's responsibility (signal handling itself stays out of scope).
func (p *Pool) Abort() <-chan struct{} { return p.abortCh }

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop signals every worker to exit and waits for them to do so. A diff
// still waiting on a request is abandoned with a link-shutdown error (not
// applied, no completion callback).
func (p *Pool) Stop() {
	p.stopMu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.stopCh)
	}
	p.stopMu.Unlock()
	p.wg.Wait()
}

// Submit enqueues a diff for lid; diffs for the same lid are always
// handled by one worker, in submission order, never concurrently.
func (p *Pool) Submit(lid string, idx int, diff map[string]any, completeCB func(lid string, idx int)) {
	p.queue.put(Message{Lid: lid, Idx: idx, Diff: diff, CompleteCB: completeCB})
}

// QueueEmpty reports whether every submitted diff has been applied.
func (p *Pool) QueueEmpty() bool { return p.queue.empty() }

func (p *Pool) worker() {
	defer p.wg.Done()
	var ownLid string
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}
		msg, ok := p.queue.get(&ownLid, 250*time.Millisecond)
		metrics.FlushQueueDepth(p.name, p.queue.depth())
		if !ok {
			continue
		}
		if !p.apply(msg) {
			return
		}
	}
}

// apply retries msg against the container until it succeeds, a fatal
// error aborts the pool, or Stop is called mid-retry. Returns false if the
// worker should exit (abort or shutdown during a retry wait).
func (p *Pool) apply(msg Message) bool {
	for {
		err := p.handleThingChanges(msg.Lid, msg.Diff)
		if err == nil {
			break
		}
		if !qerr.Is(err, qerr.KindLinkError) {
			p.logger.Error().Str("lid", msg.Lid).Err(err).Msg("flush: unrecoverable error, aborting")
			metrics.FlushResult(p.name, false)
			p.abortOnce.Do(func() { close(p.abortCh) })
			return false
		}
		p.logger.Warn().Str("lid", msg.Lid).Err(err).Msg("flush: network error, will retry")
		select {
		case <-p.stopCh:
			return false
		case <-time.After(time.Second):
		}
	}
	p.logger.Debug().Str("lid", msg.Lid).Msg("flush: diff applied")
	metrics.FlushResult(p.name, true)
	if msg.CompleteCB != nil {
		msg.CompleteCB(msg.Lid, msg.Idx)
	}
	return true
}

func (p *Pool) thingCache(lid string) *thingState {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	st, ok := p.state[lid]
	if !ok {
		st = &thingState{points: make(map[string]bool)}
		p.state[lid] = st
	}
	return st
}

// focOf converts the FOC value stored in a point diff (an int, per
// resource.FOC) back into the typed constant.
func focOf(v any) resource.FOC {
	switch t := v.(type) {
	case resource.FOC:
		return t
	case int:
		return resource.FOC(t)
	case int64:
		return resource.FOC(t)
	default:
		return resource.FOCFeed
	}
}
