package bscript

import (
	"bytes"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// ErrBufferFull is returned when a write would grow the buffer past its limit.
var ErrBufferFull = errors.New("response buffer is full")

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// ResponseBuffer holds the header, status and body of a response until it is flushed. Until then the response can
// be reset and formulated again, which is what internal redirects and status pages rely on. After the first flush
// the headers are committed and only the body can still grow.
type ResponseBuffer struct {
	resp    http.ResponseWriter
	limit   int
	buf     *bytes.Buffer
	header  http.Header
	status  int
	flushed bool
}

// NewResponseWriter wraps resp in a buffer that holds at most limit bytes between flushes. A negative limit means
// no limit.
func NewResponseWriter(resp http.ResponseWriter, limit int) ResponseWriter {
	return newBufferResponse(resp, limit)
}

func newBufferResponse(resp http.ResponseWriter, limit int) *ResponseBuffer {
	buf := bufPool.Get().(*bytes.Buffer) //nolint:forcetypeassert
	buf.Reset()

	return &ResponseBuffer{resp: resp, limit: limit, buf: buf, header: http.Header{}}
}

// Header returns the header that will be sent on the first flush. After that it returns the underlying header,
// changes to which have no effect anymore.
func (w *ResponseBuffer) Header() http.Header {
	if w.flushed {
		return w.resp.Header()
	}
	return w.header
}

// WriteHeader records the status code. The first code written wins, like it does for the standard library.
func (w *ResponseBuffer) WriteHeader(code int) {
	if w.flushed || w.status != 0 {
		return
	}
	w.status = code
}

// SetStatus sets the status code, replacing one that was written before. It has no effect once the headers are
// committed.
func (w *ResponseBuffer) SetStatus(code int) {
	if w.flushed {
		return
	}
	w.status = code
}

// Write buffers p. It fails with ErrBufferFull, without writing anything, if p does not fit.
func (w *ResponseBuffer) Write(p []byte) (int, error) {
	if w.buf == nil {
		return 0, errors.New("write to a freed response buffer")
	}

	if w.limit >= 0 && w.buf.Len()+len(p) > w.limit {
		return 0, errors.Wrapf(ErrBufferFull, "writing %d bytes", len(p))
	}

	return w.buf.Write(p)
}

// Committed reports whether the headers were sent to the client.
func (w *ResponseBuffer) Committed() bool { return w.flushed }

// Reset drops the buffered body, header and status. It panics after the headers have been committed.
func (w *ResponseBuffer) Reset() {
	if w.flushed {
		panic("bscript: cannot reset response, already flushed")
	}

	w.Discard()
	w.header = http.Header{}
	w.status = 0
}

// Discard drops the buffered body but keeps header and status.
func (w *ResponseBuffer) Discard() {
	if w.buf != nil {
		w.buf.Reset()
	}
}

// FlushError sends the buffered response and then flushes the underlying writer.
func (w *ResponseBuffer) FlushError() error {
	if err := w.FlushBuffer(); err != nil {
		return err
	}

	if err := http.NewResponseController(w.resp).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return errors.Wrap(err, "flush underlying writer")
	}

	return nil
}

// Flush implements http.Flusher. Errors are lost, use FlushError to see them.
func (w *ResponseBuffer) Flush() { _ = w.FlushError() }

// FlushBuffer commits the headers if that did not happen yet and writes the buffered body to the underlying writer.
func (w *ResponseBuffer) FlushBuffer() error {
	if !w.flushed {
		dst := w.resp.Header()
		for k, v := range w.header {
			dst[k] = v
		}

		w.flushed = true
		w.resp.WriteHeader(lo.Ternary(w.status == 0, http.StatusOK, w.status))
	}

	if w.buf == nil || w.buf.Len() == 0 {
		return nil
	}

	defer w.buf.Reset()
	if _, err := w.resp.Write(w.buf.Bytes()); err != nil {
		return errors.Wrap(err, "write buffered body")
	}

	return nil
}

// Free returns the buffer to the pool. The response must not be written to afterwards.
func (w *ResponseBuffer) Free() {
	if w.buf == nil {
		return
	}

	bufPool.Put(w.buf)
	w.buf = nil
}

// Unwrap returns the underlying writer, for http.ResponseController.
func (w *ResponseBuffer) Unwrap() http.ResponseWriter { return w.resp }

var _ ResponseWriter = &ResponseBuffer{}
