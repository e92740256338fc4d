package stream

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"
)

// Token grammar shared by every exchanged record:
//
//	record := BEGIN_LIST label SPACE payload END_LIST
//	list   := size BEGIN_LIST record { SPACE record } END_LIST
const (
	BeginList = '('
	EndList   = ')'
	Space     = ' '
)

// Writer accumulates tokens into a byte buffer
type Writer struct {
	buf []byte
}

// NewWriter returns an empty writer
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 256)}
}

func (w *Writer) Begin() { w.buf = append(w.buf, BeginList) }
func (w *Writer) End()   { w.buf = append(w.buf, EndList) }
func (w *Writer) Space() { w.buf = append(w.buf, Space) }

// Label writes an integer token
func (w *Writer) Label(v int64) {
	w.buf = strconv.AppendInt(w.buf, v, 10)
}

// Scalar writes the shortest decimal form that reads back to the same float64
func (w *Writer) Scalar(v float64) {
	w.buf = strconv.AppendFloat(w.buf, v, 'g', -1, 64)
}

// Vector writes (x y z)
func (w *Writer) Vector(v r3.Vec) {
	w.Begin()
	w.Scalar(v.X)
	w.Space()
	w.Scalar(v.Y)
	w.Space()
	w.Scalar(v.Z)
	w.End()
}

// BeginList writes the size prefix of a list followed by BEGIN_LIST
func (w *Writer) BeginList(n int) {
	w.Label(int64(n))
	w.Begin()
}

// Bytes returns the written tokens. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) String() string { return string(w.buf) }

// ParseError reports a token that does not fit the grammar of the record
// being read
type ParseError struct {
	Record   string
	Expected string
	Found    string
	Offset   int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("reading %s: expected %s, found %s at offset %d",
		e.Record, e.Expected, e.Found, e.Offset)
}

// Reader splits a byte buffer into tokens. '(' and ')' are tokens on their
// own; everything else is separated by whitespace.
type Reader struct {
	data []byte
	pos  int
}

// NewReader reads tokens from data
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func (r *Reader) skipSpace() {
	for r.pos < len(r.data) && isSpace(r.data[r.pos]) {
		r.pos++
	}
}

// next returns the next token and its offset, or ok=false at the end of data
func (r *Reader) next() (tok string, offset int, ok bool) {
	r.skipSpace()
	if r.pos >= len(r.data) {
		return "", r.pos, false
	}
	offset = r.pos
	c := r.data[r.pos]
	if c == BeginList || c == EndList {
		r.pos++
		return string(c), offset, true
	}
	for r.pos < len(r.data) {
		c = r.data[r.pos]
		if isSpace(c) || c == BeginList || c == EndList {
			break
		}
		r.pos++
	}
	return string(r.data[offset:r.pos]), offset, true
}

func (r *Reader) expect(record string, want byte) error {
	tok, off, ok := r.next()
	if !ok {
		return &ParseError{Record: record, Expected: strconv.QuoteRune(rune(want)), Found: "end of stream", Offset: off}
	}
	if len(tok) != 1 || tok[0] != want {
		return &ParseError{Record: record, Expected: strconv.QuoteRune(rune(want)), Found: strconv.Quote(tok), Offset: off}
	}
	return nil
}

// ReadBegin consumes BEGIN_LIST for the named record
func (r *Reader) ReadBegin(record string) error { return r.expect(record, BeginList) }

// ReadEnd consumes END_LIST for the named record
func (r *Reader) ReadEnd(record string) error { return r.expect(record, EndList) }

// ReadLabel reads an integer token
func (r *Reader) ReadLabel(record string) (int64, error) {
	tok, off, ok := r.next()
	if !ok {
		return 0, &ParseError{Record: record, Expected: "label", Found: "end of stream", Offset: off}
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, &ParseError{Record: record, Expected: "label", Found: strconv.Quote(tok), Offset: off}
	}
	return v, nil
}

// ReadScalar reads a floating point token
func (r *Reader) ReadScalar(record string) (float64, error) {
	tok, off, ok := r.next()
	if !ok {
		return 0, &ParseError{Record: record, Expected: "scalar", Found: "end of stream", Offset: off}
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, &ParseError{Record: record, Expected: "scalar", Found: strconv.Quote(tok), Offset: off}
	}
	return v, nil
}

// ReadVector reads (x y z)
func (r *Reader) ReadVector(record string) (v r3.Vec, err error) {
	if err = r.ReadBegin(record); err != nil {
		return
	}
	if v.X, err = r.ReadScalar(record); err != nil {
		return
	}
	if v.Y, err = r.ReadScalar(record); err != nil {
		return
	}
	if v.Z, err = r.ReadScalar(record); err != nil {
		return
	}
	err = r.ReadEnd(record)
	return
}

// ReadListSize reads the size prefix of a list and its BEGIN_LIST
func (r *Reader) ReadListSize(record string) (int, error) {
	n, err := r.ReadLabel(record)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, &ParseError{Record: record, Expected: "non-negative list size", Found: strconv.FormatInt(n, 10), Offset: r.pos}
	}
	// Every entry takes at least one byte
	if n > int64(r.Remaining()) {
		return 0, &ParseError{Record: record, Expected: "list size within the remaining input",
			Found: strconv.FormatInt(n, 10), Offset: r.pos}
	}
	if err = r.ReadBegin(record); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Remaining returns the number of unread bytes
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// EOF reports whether only whitespace remains
func (r *Reader) EOF() bool {
	r.skipSpace()
	return r.pos >= len(r.data)
}
