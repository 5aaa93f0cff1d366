package session

import "sync"

// mailbox is an unbounded FIFO of jobs for the actor goroutine. Pushing
// never blocks, so transport callbacks can enqueue from any goroutine.
type mailbox struct {
	mu   sync.Mutex
	jobs []func()
	wake chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{}, 1)}
}

func (m *mailbox) push(job func()) {
	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs := m.jobs
	m.jobs = nil
	return jobs
}
