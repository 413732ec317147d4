package transcriber

import "context"

// Gate is a capacity-bounded limiter guarding the transcription resource.
// The external engine is assumed CPU-saturating, so every segment worker in
// the process competes for the same injected gate rather than a hidden
// global; tests instantiate their own.
type Gate struct {
	slots chan struct{}
}

func NewGate(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{slots: make(chan struct{}, capacity)}
}

func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gate) Release() {
	select {
	case <-g.slots:
	default:
		panic("transcriber: gate released without acquire")
	}
}

func (g *Gate) Capacity() int {
	return cap(g.slots)
}
