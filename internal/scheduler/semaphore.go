package scheduler

// Semaphore caps how many scheduler jobs run at once. It is a plain
// channel-based counting semaphore.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore creates a semaphore with the given capacity. Capacity below
// one is clamped to one.
func NewSemaphore(capacity int) *Semaphore {
	if capacity <= 0 {
		capacity = 1
	}
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

// TryAcquire takes a slot without blocking and reports whether it got one.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot taken by a successful TryAcquire.
func (s *Semaphore) Release() {
	<-s.slots
}

// Available returns the number of free slots.
func (s *Semaphore) Available() int {
	return cap(s.slots) - len(s.slots)
}

// Cap returns the total capacity.
func (s *Semaphore) Cap() int {
	return cap(s.slots)
}
