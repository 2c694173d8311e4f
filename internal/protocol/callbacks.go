package protocol

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/ioticlabs/qapi-core/internal/monitoring"
)

// callbackTask is a user callback invocation queued for dispatch.
type callbackTask func()

// callbackPool is a fixed-size goroutine pool draining a queue of
// callback closures with panic recovery, generalised from the teacher's
// WorkerPool (worker_pool.go). Unlike the teacher's broadcast pool (which
// drops tasks under backpressure, appropriate for best-effort fan-out),
// Submit here blocks: every response the container sends must eventually
// reach its callback, so silently dropping one would violate that
// contract. A full queue is exactly the signal that the consumer's
// callbacks are too slow, not a reason to lose the notification.
type callbackPool struct {
	name    string
	queue   chan callbackTask
	wg      sync.WaitGroup
	logger  zerolog.Logger
	stop    chan struct{}
	stopped sync.Once
}

// newCallbackPool starts workers workers draining a queue of the given
// depth, labelled name for logging.
func newCallbackPool(name string, workers, queueDepth int, logger zerolog.Logger) *callbackPool {
	p := &callbackPool{
		name:   name,
		queue:  make(chan callbackTask, queueDepth),
		logger: logger,
		stop:   make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *callbackPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(task)
		case <-p.stop:
			return
		}
	}
}

func (p *callbackPool) run(task callbackTask) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.LogPanic(p.logger, r, "callback panic recovered", map[string]any{"pool": p.name})
		}
	}()
	task()
}

// Submit enqueues task, blocking if the queue is momentarily full. A
// no-op once the pool has been stopped.
func (p *callbackPool) Submit(task callbackTask) {
	select {
	case p.queue <- task:
	case <-p.stop:
	}
}

// Stop drains no further tasks and waits for in-flight ones to finish.
func (p *callbackPool) Stop() {
	p.stopped.Do(func() { close(p.stop) })
	p.wg.Wait()
}
