package peer

import "sync"

// stepQueue runs steps one at a time, in push order, on a single worker.
type stepQueue struct {
	mu    sync.Mutex
	steps []func()
	wake  chan struct{}
	quit  chan struct{}
	once  sync.Once
}

func newStepQueue() *stepQueue {
	return &stepQueue{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
}

// push reports false once the queue has stopped.
func (q *stepQueue) push(step func()) bool {
	select {
	case <-q.quit:
		return false
	default:
	}

	q.mu.Lock()
	q.steps = append(q.steps, step)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *stepQueue) run() {
	for {
		q.mu.Lock()
		var step func()
		if len(q.steps) > 0 {
			step = q.steps[0]
			q.steps[0] = nil
			q.steps = q.steps[1:]
		}
		q.mu.Unlock()

		if step != nil {
			select {
			case <-q.quit:
				return
			default:
			}
			step()
			continue
		}

		select {
		case <-q.wake:
		case <-q.quit:
			return
		}
	}
}

// stop discards pending steps. A step already running finishes on its own.
func (q *stepQueue) stop() {
	q.once.Do(func() {
		close(q.quit)
		q.mu.Lock()
		q.steps = nil
		q.mu.Unlock()
	})
}
