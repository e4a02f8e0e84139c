package proc

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

func TestPipedStreamReaderSmallSource(t *testing.T) {
	reader := NewPipedStreamReader(bytes.NewReader([]byte{1, 2, 3, 4}), 4)

	chunk, err := reader.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !bytes.Equal(chunk, []byte{1, 2, 3, 4}) {
		t.Errorf("chunk = %v", chunk)
	}

	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
	// Exhausted readers keep reporting EOF
	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("repeat err = %v, want io.EOF", err)
	}
}

func TestPipedStreamReaderChunking(t *testing.T) {
	src := make([]byte, StreamChunkSize+100)
	for i := range src {
		src[i] = byte(i)
	}
	reader := NewPipedStreamReader(bytes.NewReader(src), 4)

	var got []byte
	for {
		chunk, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if len(chunk) > StreamChunkSize {
			t.Fatalf("chunk of %d bytes exceeds StreamChunkSize", len(chunk))
		}
		got = append(got, chunk...)
	}
	if !bytes.Equal(got, src) {
		t.Error("reassembled bytes differ from source")
	}
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	return 0, r.err
}

func TestPipedStreamReaderErrorPropagation(t *testing.T) {
	cause := errors.New("pipe burst")
	reader := NewPipedStreamReader(&failingReader{data: []byte{9}, err: cause}, 4)

	if _, err := reader.Next(); err != nil {
		t.Fatalf("first Next: %v", err)
	}

	_, err := reader.Next()
	var ioErr *StreamIOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("err = %v, want *StreamIOError", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause not wrapped: %v", err)
	}
}

func TestPipedStreamReaderCloseReleasesFullChannel(t *testing.T) {
	pr, pw := io.Pipe()
	reader := NewPipedStreamReader(pr, 1)

	go func() {
		chunk := make([]byte, StreamChunkSize)
		_, _ = pw.Write(chunk) // fills the bounded channel
		_, _ = pw.Write(chunk) // parks the drain on the send
	}()

	// Let the drain goroutine fill the channel and block on the send,
	// the state a killed subprocess alone can never unblock.
	time.Sleep(50 * time.Millisecond)

	reader.Close()
	_ = pw.CloseWithError(errors.New("killed"))

	result := make(chan error, 1)
	go func() {
		for {
			if _, err := reader.Next(); err != nil {
				result <- err
				return
			}
		}
	}()

	select {
	case err := <-result:
		if err == nil {
			t.Fatal("expected a terminal error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("drain goroutine still parked after Close")
	}
}

func TestMediaStreamCloseStopsBufferedPlayback(t *testing.T) {
	stream := NewMediaStream(NewPipedStreamReader(bytes.NewReader([]byte("abcdefgh")), 4))

	buf := make([]byte, 4)
	if _, err := io.ReadFull(stream, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}

	_ = stream.Close()

	// Buffered bytes behind the cursor must not keep playing out
	if _, err := stream.Read(buf); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("read after close: %v, want ErrStreamClosed", err)
	}
}

func TestMediaStreamReadAndSeek(t *testing.T) {
	src := []byte("abcdefghij")
	stream := NewMediaStream(NewPipedStreamReader(bytes.NewReader(src), 4))

	buf := make([]byte, 4)
	if n, err := io.ReadFull(stream, buf); err != nil || n != 4 {
		t.Fatalf("ReadFull = %d, %v", n, err)
	}
	if string(buf) != "abcd" {
		t.Errorf("read %q", buf)
	}

	// Rewind into the buffered region and re-read
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if _, err := io.ReadFull(stream, buf); err != nil {
		t.Fatalf("re-read: %v", err)
	}
	if string(buf) != "abcd" {
		t.Errorf("re-read %q", buf)
	}

	// SeekEnd cannot work without a known length
	if _, err := stream.Seek(0, io.SeekEnd); err == nil {
		t.Error("SeekEnd succeeded on unbounded stream")
	}

	// Beyond the buffered range is refused
	if _, err := stream.Seek(int64(len(src)*2), io.SeekStart); err == nil {
		t.Error("seek past buffer succeeded")
	}

	if stream.Seekable() {
		t.Error("Seekable() = true")
	}
	if _, known := stream.Len(); known {
		t.Error("Len() reported a known length")
	}
}

func TestMediaStreamReadsToEOF(t *testing.T) {
	src := []byte("0123456789")
	stream := NewMediaStream(NewPipedStreamReader(bytes.NewReader(src), 4))

	got, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Errorf("got %q", got)
	}
	if stream.Buffered() != int64(len(src)) {
		t.Errorf("Buffered = %d", stream.Buffered())
	}

	// Error is sticky
	if _, err := stream.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("read after EOF: %v", err)
	}
}
