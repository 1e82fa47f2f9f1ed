package weather

import (
	"log"
	"sync"
)

// Loop runs posted functions one at a time on a single goroutine. Every
// mutation of cycle state and every View call happens on the loop, so none of
// that state needs a lock.
type Loop struct {
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewLoop starts a loop with the given queue size.
func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 64
	}
	l := &Loop{
		tasks: make(chan func(), buffer),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.tasks:
			l.exec(fn)
		case <-l.quit:
			return
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: loop: task panicked: %v", r)
		}
	}()
	fn()
}

// Post queues fn in FIFO order. Tasks posted after Close are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.quit:
		return
	default:
	}
	select {
	case l.tasks <- fn:
	case <-l.quit:
	}
}

// Close stops the loop after the task currently running, if any.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.quit) })
	<-l.done
}
