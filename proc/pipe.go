package proc

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// StreamChunkSize is one pipe buffer-full.
const StreamChunkSize = 4096

// DefaultStreamBufferChunks bounds the drain channel. The producer blocks
// once the consumer falls this far behind instead of growing without
// limit.
const DefaultStreamBufferChunks = 256

// StreamIOError marks a pipe read failure surfaced mid-stream.
type StreamIOError struct {
	Err error
}

func (e *StreamIOError) Error() string {
	return fmt.Sprintf("stream read failed: %v", e.Err)
}

func (e *StreamIOError) Unwrap() error { return e.Err }

type streamChunk struct {
	data []byte
	err  error
}

// PipedStreamReader drains a blocking byte source on a dedicated
// goroutine and publishes fixed-size chunks over a bounded channel. The
// worker exits on end of stream, on the first read error, or when Close
// releases it. The quit channel matters when the bounded channel is
// full: the worker is then parked on the send, not in Read, and killing
// the source alone would never unblock it.
type PipedStreamReader struct {
	ch   chan streamChunk
	quit chan struct{}
	once sync.Once
}

func NewPipedStreamReader(r io.Reader, bufferChunks int) *PipedStreamReader {
	if bufferChunks <= 0 {
		bufferChunks = DefaultStreamBufferChunks
	}
	p := &PipedStreamReader{
		ch:   make(chan streamChunk, bufferChunks),
		quit: make(chan struct{}),
	}
	go p.drain(r)
	return p
}

func (p *PipedStreamReader) drain(r io.Reader) {
	defer close(p.ch)
	for {
		buf := make([]byte, StreamChunkSize)
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case p.ch <- streamChunk{data: buf[:n]}:
			case <-p.quit:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				select {
				case p.ch <- streamChunk{err: &StreamIOError{Err: err}}:
				case <-p.quit:
				}
			}
			return
		}
	}
}

// Close releases the drain goroutine. Safe to call more than once and
// concurrently with Next.
func (p *PipedStreamReader) Close() {
	p.once.Do(func() { close(p.quit) })
}

// Next blocks for the next published chunk. Returns io.EOF once the
// source is exhausted and the channel drained.
func (p *PipedStreamReader) Next() ([]byte, error) {
	chunk, ok := <-p.ch
	if !ok {
		return nil, io.EOF
	}
	if chunk.err != nil {
		return nil, chunk.err
	}
	return chunk.data, nil
}

// ErrStreamClosed is returned by reads after the stream was torn down.
var ErrStreamClosed = errors.New("stream closed")

// MediaStream serves reads out of an append-only buffer fed by a
// PipedStreamReader, with a cursor that can seek within already-buffered
// bytes. The underlying source itself is not seekable and has no known
// length.
type MediaStream struct {
	reader *PipedStreamReader
	buf    []byte
	pos    int64
	err    error

	closed atomic.Bool
}

func NewMediaStream(reader *PipedStreamReader) *MediaStream {
	return &MediaStream{reader: reader}
}

// Close marks the stream failed and releases the drain goroutine.
// Reads fail immediately afterwards, even with bytes still buffered;
// a discarded track must not keep playing out of its backlog.
func (m *MediaStream) Close() error {
	m.closed.Store(true)
	m.reader.Close()
	return nil
}

func (m *MediaStream) Read(p []byte) (int, error) {
	if m.closed.Load() {
		return 0, ErrStreamClosed
	}
	for m.pos >= int64(len(m.buf)) {
		if m.err != nil {
			return 0, m.err
		}
		chunk, err := m.reader.Next()
		if err != nil {
			m.err = err
			return 0, err
		}
		m.buf = append(m.buf, chunk...)
	}

	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)
	return n, nil
}

// Seek moves the cursor within already-buffered bytes. Seeking relative
// to the end is impossible because the total length is unknown.
func (m *MediaStream) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = m.pos + offset
	case io.SeekEnd:
		return m.pos, errors.New("stream length unknown")
	default:
		return m.pos, fmt.Errorf("invalid whence: %d", whence)
	}

	if target < 0 || target > int64(len(m.buf)) {
		return m.pos, fmt.Errorf("seek target %d outside buffered range", target)
	}
	m.pos = target
	return m.pos, nil
}

// Seekable reports false: only already-buffered bytes can be revisited.
func (m *MediaStream) Seekable() bool { return false }

// Len reports that the total stream length is unknown.
func (m *MediaStream) Len() (int64, bool) { return 0, false }

// Buffered returns how many bytes have been accumulated so far.
func (m *MediaStream) Buffered() int64 { return int64(len(m.buf)) }
