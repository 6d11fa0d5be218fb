package record

import (
	"context"
	"io"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// pipe is a byte FIFO between the capture loop and the WAV encoder. It
// absorbs encoder stalls such as slow disk writes so the capture loop keeps
// draining the stream's source ring. Reads return whole frames only.
type pipe struct {
	rb         *ringbuffer.RingBuffer
	frameBytes int

	data  chan struct{} // signalled after a write or close
	space chan struct{} // signalled after a read

	mu     sync.Mutex
	closed bool
	err    error
}

func newPipe(capacity, frameBytes int) *pipe {
	capacity = max(capacity/frameBytes, 1) * frameBytes
	return &pipe{
		rb:         ringbuffer.New(capacity),
		frameBytes: frameBytes,
		data:       make(chan struct{}, 1),
		space:      make(chan struct{}, 1),
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// write copies all of p into the pipe, waiting for the reader to make room.
func (p *pipe) write(ctx context.Context, b []byte) error {
	for len(b) > 0 {
		if n := min(len(b), p.rb.Free()); n > 0 {
			written, err := p.rb.Write(b[:n])
			if err != nil {
				return err
			}
			b = b[written:]
			signal(p.data)
			continue
		}

		select {
		case <-p.space:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// closeWrite ends the stream. The reader gets the buffered bytes and then
// err, or io.EOF when err is nil.
func (p *pipe) closeWrite(err error) {
	p.mu.Lock()
	p.closed = true
	p.err = err
	p.mu.Unlock()
	signal(p.data)
}

func (p *pipe) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

// read fills dst with as many whole frames as are buffered, blocking until
// at least one frame is available or the writer has closed.
func (p *pipe) read(dst []byte) (int, error) {
	limit := len(dst) / p.frameBytes * p.frameBytes
	if limit == 0 {
		return 0, io.ErrShortBuffer
	}

	for {
		closed, err := p.state()

		if n := min(limit, p.rb.Length()/p.frameBytes*p.frameBytes); n > 0 {
			read, rerr := p.rb.Read(dst[:n])
			signal(p.space)
			return read, rerr
		}

		if closed {
			if err == nil {
				err = io.EOF
			}
			return 0, err
		}
		<-p.data
	}
}
