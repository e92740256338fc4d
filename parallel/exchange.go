package parallel

import (
	"context"

	"github.com/pkg/errors"

	"github.com/notargets/meshoctree/stream"
)

// ExchangeMap performs one round in which every rank sends one list,
// possibly empty, to every other rank. Lists addressed to the calling rank
// are returned as if received from itself. Ranks with nothing to say are
// absent from the result.
func ExchangeMap[T any](ctx context.Context, comm Comm, c Codec[T],
	send map[int][]Record[T]) (map[int][]Record[T], error) {
	me, size := comm.Rank(), comm.Size()
	for to := range send {
		if to < 0 || to >= size {
			return nil, errors.Errorf("%s: destination rank %d out of range", c.Name, to)
		}
	}

	for to := 0; to < size; to++ {
		if to == me {
			continue
		}
		w := stream.NewWriter()
		WriteRecords(w, c, send[to])
		if err := comm.Send(ctx, to, w.Bytes()); err != nil {
			return nil, errors.Wrapf(err, "sending %s", c.Name)
		}
	}

	received := make(map[int][]Record[T])
	if own := send[me]; len(own) > 0 {
		received[me] = append([]Record[T](nil), own...)
	}
	for from := 0; from < size; from++ {
		if from == me {
			continue
		}
		msg, err := comm.Recv(ctx, from)
		if err != nil {
			return nil, errors.Wrapf(err, "receiving %s", c.Name)
		}
		recs, err := ReadRecords(stream.NewReader(msg), c)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %s from rank %d", c.Name, from)
		}
		if len(recs) > 0 {
			received[from] = recs
		}
	}
	return received, nil
}

// AllGather sends local to every rank and returns all contributions
// indexed by rank
func AllGather[T any](ctx context.Context, comm Comm, c Codec[T], local []Record[T]) ([][]Record[T], error) {
	send := make(map[int][]Record[T], comm.Size())
	for to := 0; to < comm.Size(); to++ {
		send[to] = local
	}
	received, err := ExchangeMap(ctx, comm, c, send)
	if err != nil {
		return nil, err
	}
	all := make([][]Record[T], comm.Size())
	for from, recs := range received {
		all[from] = recs
	}
	return all, nil
}

// AllReduceSum returns the sum of v over all ranks
func AllReduceSum(ctx context.Context, comm Comm, v int64) (int64, error) {
	all, err := AllGather(ctx, comm, valueCodec, []Record[struct{}]{{Label: v}})
	if err != nil {
		return 0, err
	}
	var sum int64
	for from, recs := range all {
		if len(recs) != 1 {
			return 0, errors.Errorf("reduce: rank %d sent %d values", from, len(recs))
		}
		sum += recs[0].Label
	}
	return sum, nil
}

// AllReduceOr reports whether v is true on any rank
func AllReduceOr(ctx context.Context, comm Comm, v bool) (bool, error) {
	var n int64
	if v {
		n = 1
	}
	sum, err := AllReduceSum(ctx, comm, n)
	return sum > 0, err
}
