package parallel

import (
	"github.com/notargets/meshoctree/stream"
)

// Record binds a payload to the label of the item it describes on the
// sending rank. The pair is only meaningful as a whole.
type Record[T any] struct {
	Label   int64
	Payload T
}

// Codec writes and reads the payload of one record kind
type Codec[T any] struct {
	Name  string
	Write func(w *stream.Writer, v T)
	Read  func(r *stream.Reader) (T, error)
}

// SameLabel compares records by label only
func SameLabel[T any](a, b Record[T]) bool { return a.Label == b.Label }

// WriteRecord writes (label payload)
func WriteRecord[T any](w *stream.Writer, c Codec[T], rec Record[T]) {
	w.Begin()
	w.Label(rec.Label)
	w.Space()
	c.Write(w, rec.Payload)
	w.End()
}

// ReadRecord reads the form written by WriteRecord
func ReadRecord[T any](r *stream.Reader, c Codec[T]) (rec Record[T], err error) {
	if err = r.ReadBegin(c.Name); err != nil {
		return
	}
	if rec.Label, err = r.ReadLabel(c.Name); err != nil {
		return
	}
	if rec.Payload, err = c.Read(r); err != nil {
		return
	}
	err = r.ReadEnd(c.Name)
	return
}

// WriteRecords writes n(rec rec ...)
func WriteRecords[T any](w *stream.Writer, c Codec[T], recs []Record[T]) {
	w.BeginList(len(recs))
	for i, rec := range recs {
		if i > 0 {
			w.Space()
		}
		WriteRecord(w, c, rec)
	}
	w.End()
}

// ReadRecords reads the form written by WriteRecords
func ReadRecords[T any](r *stream.Reader, c Codec[T]) ([]Record[T], error) {
	n, err := r.ReadListSize(c.Name)
	if err != nil {
		return nil, err
	}
	recs := make([]Record[T], 0, min(n, r.Remaining()/4))
	for i := 0; i < n; i++ {
		rec, err := ReadRecord(r, c)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err = r.ReadEnd(c.Name); err != nil {
		return nil, err
	}
	return recs, nil
}
