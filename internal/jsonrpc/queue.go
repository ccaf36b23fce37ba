package jsonrpc

import (
	"sync"

	"github.com/inoxlang/lspcore/internal/utils"
	"github.com/rs/zerolog"
)

// serialQueue runs functions one at a time in the order they were pushed,
// pushing never blocks. A goroutine is running only while the queue is not empty.
type serialQueue struct {
	lock    sync.Mutex
	items   []func()
	running bool
	closed  bool
	drained chan struct{}
	logger  zerolog.Logger
}

func newSerialQueue(logger zerolog.Logger) *serialQueue {
	return &serialQueue{logger: logger, drained: make(chan struct{})}
}

// push returns false if the queue is closed.
func (q *serialQueue) push(fn func()) bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, fn)
	if !q.running {
		q.running = true
		go q.run()
	}
	return true
}

func (q *serialQueue) run() {
	for {
		q.lock.Lock()
		if len(q.items) == 0 {
			q.running = false
			if q.closed {
				close(q.drained)
			}
			q.lock.Unlock()
			return
		}
		fn := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.lock.Unlock()

		q.call(fn)
	}
}

func (q *serialQueue) call(fn func()) {
	defer utils.RecoverAndLog(q.logger, "panic in queued function")
	fn()
}

// close makes the queue reject new items, the pending ones are still run.
// It returns a channel that is closed once all pending items have run.
func (q *serialQueue) close() <-chan struct{} {
	q.lock.Lock()
	defer q.lock.Unlock()

	if !q.closed {
		q.closed = true
		if !q.running {
			close(q.drained)
		}
	}
	return q.drained
}
