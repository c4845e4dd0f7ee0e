package statement

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// writeRow writes one row as a JSON object keyed by column name.
func writeRow(stream *jsoniter.Stream, cols []string, vals []any) {
	stream.WriteObjectStart()
	for i, col := range cols {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(col)
		stream.WriteVal(vals[i])
	}
	stream.WriteObjectEnd()
}

func encodeRow(cols []string, vals []any) (string, error) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)

	writeRow(stream, cols, vals)
	if stream.Error != nil {
		return "", fmt.Errorf("%w: encoding row: %w", ErrExecute, stream.Error)
	}
	return string(stream.Buffer()), nil
}

// arrayWriter accumulates rows into one JSON array.
type arrayWriter struct {
	stream *jsoniter.Stream
	n      int
}

func newArrayWriter() *arrayWriter {
	stream := json.BorrowStream(nil)
	stream.WriteArrayStart()
	return &arrayWriter{stream: stream}
}

func (w *arrayWriter) add(cols []string, vals []any) error {
	if w.n > 0 {
		w.stream.WriteMore()
	}
	writeRow(w.stream, cols, vals)
	w.n++
	if w.stream.Error != nil {
		return fmt.Errorf("%w: encoding row: %w", ErrExecute, w.stream.Error)
	}
	return nil
}

func (w *arrayWriter) finish() (string, error) {
	w.stream.WriteArrayEnd()
	if w.stream.Error != nil {
		return "", fmt.Errorf("%w: encoding rows: %w", ErrExecute, w.stream.Error)
	}
	return string(w.stream.Buffer()), nil
}

func (w *arrayWriter) release() {
	json.ReturnStream(w.stream)
}
