package parallel

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Comm is the point-to-point transport between ranks. Messages between an
// ordered pair of ranks arrive in the order they were sent.
type Comm interface {
	Rank() int
	Size() int
	Send(ctx context.Context, to int, msg []byte) error
	Recv(ctx context.Context, from int) ([]byte, error)
}

// queueDepth bounds the messages in flight from one rank to another
const queueDepth = 16

// LocalComm connects ranks running as goroutines of one process
type LocalComm struct {
	rank  int
	links [][]chan []byte // links[from][to]
}

// NewLocalWorld returns the communicators of n ranks sharing one set of links
func NewLocalWorld(n int) []*LocalComm {
	links := make([][]chan []byte, n)
	for from := range links {
		links[from] = make([]chan []byte, n)
		for to := range links[from] {
			links[from][to] = make(chan []byte, queueDepth)
		}
	}
	world := make([]*LocalComm, n)
	for r := range world {
		world[r] = &LocalComm{rank: r, links: links}
	}
	return world
}

func (c *LocalComm) Rank() int { return c.rank }
func (c *LocalComm) Size() int { return len(c.links) }

// Send queues a copy of msg for rank to
func (c *LocalComm) Send(ctx context.Context, to int, msg []byte) error {
	if to < 0 || to >= c.Size() {
		return errors.Errorf("rank %d: send to invalid rank %d", c.rank, to)
	}
	buf := append([]byte(nil), msg...)
	select {
	case c.links[c.rank][to] <- buf:
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "rank %d: send to %d", c.rank, to)
	}
}

// Recv waits for the next message from rank from
func (c *LocalComm) Recv(ctx context.Context, from int) ([]byte, error) {
	if from < 0 || from >= c.Size() {
		return nil, errors.Errorf("rank %d: receive from invalid rank %d", c.rank, from)
	}
	select {
	case msg := <-c.links[from][c.rank]:
		return msg, nil
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "rank %d: receive from %d", c.rank, from)
	}
}

// Run starts n ranks over a local world and waits for all of them. The
// first failure cancels the others; every rank's error is returned.
func Run(ctx context.Context, n int, fn func(ctx context.Context, comm Comm) error) error {
	if n <= 0 {
		return errors.Errorf("invalid number of ranks: %d", n)
	}
	world := NewLocalWorld(n)
	g, gctx := errgroup.WithContext(ctx)
	errs := make([]error, n)
	for r := 0; r < n; r++ {
		r := r
		g.Go(func() error {
			if err := fn(gctx, world[r]); err != nil {
				errs[r] = errors.Wrapf(err, "rank %d", r)
				return errs[r]
			}
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Combine(errs...)
}
