package signaling

import (
	"context"
	"sync"
)

// Channel is an ordered, reliable message channel scoped to one room.
// Messages are delivered to the handler one at a time in send order.
// After Close no further handler calls begin.
type Channel interface {
	Send(ctx context.Context, msg Message) error
	// OnMessage registers the handler and starts delivery. Messages that
	// arrived earlier are held until a handler exists.
	OnMessage(handler func(Message))
	Close() error
	// Done is closed when the channel stops, by Close or by failure.
	Done() <-chan struct{}
	// Err reports why the channel stopped. It is nil after a local Close.
	Err() error
}

// Pipe returns two connected in-memory channels. Closing one end does not
// close the other; messages sent towards a closed end are dropped, as the
// relay does once a participant has left.
func Pipe() (Channel, Channel) {
	a, b := newPipeEnd(), newPipeEnd()
	a.peer, b.peer = b, a
	return a, b
}

type pipeEnd struct {
	peer *pipeEnd

	mu      sync.Mutex
	queue   []Message
	handler func(Message)
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newPipeEnd() *pipeEnd {
	return &pipeEnd{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (p *pipeEnd) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrChannelClosed
	}

	p.peer.deliver(msg)
	return nil
}

func (p *pipeEnd) deliver(msg Message) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, msg)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *pipeEnd) OnMessage(handler func(Message)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handler != nil || p.closed {
		p.handler = handler
		return
	}
	p.handler = handler
	go p.dispatch()
}

func (p *pipeEnd) dispatch() {
	for {
		p.mu.Lock()
		for len(p.queue) > 0 && !p.closed {
			msg := p.queue[0]
			p.queue = p.queue[1:]
			handler := p.handler
			p.mu.Unlock()

			handler(msg)

			p.mu.Lock()
		}
		p.mu.Unlock()

		select {
		case <-p.wake:
		case <-p.done:
			return
		}
	}
}

func (p *pipeEnd) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.queue = nil
	close(p.done)
	return nil
}

func (p *pipeEnd) Done() <-chan struct{} { return p.done }

func (p *pipeEnd) Err() error { return nil }
