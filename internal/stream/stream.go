// Package stream implements the bounded-channel producer/consumer
// pipeline behind the engine's streaming query operation. A database
// cursor is a lazy, non-restartable sequence of rows that may be very
// large; decoupling its iteration (the producer) from whatever is
// reading the results (the consumer) lets the consumer apply
// backpressure simply by not receiving.
package stream

import (
	"context"
	"errors"

	"github.com/kyros-ent/reservation/internal/model"
)

// Capacity is the bounded channel size backing every Pipe. Chosen to
// absorb a burst of rows without unbounded memory growth while still
// giving the producer room to stay ahead of a consumer doing per-row
// work.
const Capacity = 128

// Item is one element of a streamed result: either a decoded
// Reservation or a terminal error. A Pipe never sends both a
// Reservation and a non-nil Err in the same Item.
type Item struct {
	Reservation model.Reservation
	Err         error
}

// Pipe is the consumer-facing handle for one streaming query. Items
// arrive in the order the producer sent them; the channel is closed
// once the producer has finished, which the consumer observes as the
// usual closed-channel zero value from a range or a two-value receive.
type Pipe struct {
	ch chan Item
}

// NewPipe allocates a Pipe with the package's fixed buffer capacity.
func NewPipe() *Pipe {
	return &Pipe{ch: make(chan Item, Capacity)}
}

// Items returns the receive-only channel of streamed results.
func (p *Pipe) Items() <-chan Item {
	return p.ch
}

// send pushes item, blocking until the channel has room (backpressure)
// or ctx is cancelled (the consumer has gone away). A cancellation is
// reported via the returned error so the caller can stop producing
// without treating it as a row-level failure.
func (p *Pipe) send(ctx context.Context, item Item) error {
	select {
	case p.ch <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipe) close() {
	close(p.ch)
}

// RowSource iterates a result set, invoking yield for each row in
// order. It mirrors store.Store.QueryRows so that Run never needs to
// import the store package directly — any component that can iterate
// rows and honor yield's error return qualifies as a source.
type RowSource func(ctx context.Context, yield func(model.Reservation) error) error

// Run starts a producer goroutine over source and returns the
// consumer-side Pipe immediately; the caller does not block on the
// query itself. The producer terminates, and the Pipe's channel is
// closed, when one of the following happens first: the row source is
// exhausted, ctx is cancelled, or a row-level error occurs. A
// cancellation never produces an error Item — only a genuine source
// failure does, and after sending it the producer sends nothing
// further.
func Run(ctx context.Context, source RowSource) *Pipe {
	pipe := NewPipe()

	go func() {
		defer pipe.close()

		err := source(ctx, func(r model.Reservation) error {
			return pipe.send(ctx, Item{Reservation: r})
		})

		switch {
		case err == nil:
			return
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// Consumer dropped the Pipe; nothing to report.
			return
		default:
			// Best-effort: if the consumer is also gone at this point the
			// send below will itself observe ctx.Done() and simply drop it.
			_ = pipe.send(ctx, Item{Err: err})
		}
	}()

	return pipe
}
