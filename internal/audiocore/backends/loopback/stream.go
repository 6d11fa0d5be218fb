package loopback

import (
	"sync"
	"time"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/logger"
)

// stream drives the host callback from a ticker goroutine.
type stream struct {
	cb       audiocore.HostCallback
	frames   int
	bps      int
	inChans  int
	outChans int
	loop     bool
	period   time.Duration

	// in and out are touched only by the callback goroutine while running
	in      []byte
	out     []byte
	silence byte

	mu      sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
	started time.Time
	closed  bool

	log logger.Logger
}

func (s *stream) fillInputSilence(format audiocore.SampleFormat) {
	if format == audiocore.FormatU8 {
		s.silence = 0x80
	}
	for i := range s.in {
		s.in[i] = s.silence
	}
}

func (s *stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return audiocore.ErrInvalidState
	}
	if s.done != nil {
		return nil
	}

	s.done = make(chan struct{})
	s.started = time.Now()
	done := s.done
	s.wg.Go(func() { s.run(done) })

	s.log.Debug("loopback stream started", logger.Duration("period", s.period))
	return nil
}

// Stop returns once the callback goroutine has exited.
func (s *stream) Stop() error {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	close(done)
	s.wg.Wait()

	s.log.Debug("loopback stream stopped")
	return nil
}

func (s *stream) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *stream) run(done <-chan struct{}) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			s.step(now.Sub(s.started))
		}
	}
}

// step runs one period.
func (s *stream) step(clock time.Duration) {
	s.cb(s.out, s.in, uint32(s.frames), audiocore.CallbackInfo{
		InputTime:   clock,
		OutputTime:  clock + s.period,
		CurrentTime: clock,
	})
	if s.loop && s.inChans > 0 && s.outChans > 0 {
		s.feedBack()
	}
}

// feedBack copies this period's output into the next period's input,
// channel by channel. Input channels beyond the output count capture silence.
func (s *stream) feedBack() {
	if s.inChans == s.outChans {
		copy(s.in, s.out)
		return
	}

	shared := min(s.inChans, s.outChans) * s.bps
	inFrame := s.inChans * s.bps
	outFrame := s.outChans * s.bps
	for f := range s.frames {
		dst := s.in[f*inFrame : (f+1)*inFrame]
		copy(dst[:shared], s.out[f*outFrame:f*outFrame+shared])
		for i := shared; i < inFrame; i++ {
			dst[i] = s.silence
		}
	}
}
