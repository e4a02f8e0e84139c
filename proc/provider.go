package proc

import (
	"encoding/binary"
	"io"
	"sync"

	"gopkg.in/hraban/opus.v2"
)

const opusFrameMillis = 20

// PCMOpusProvider encodes raw s16le PCM from the transcoder into 20 ms
// Opus frames for the voice connection. Implements the engine's
// OpusFrameProvider contract.
type PCMOpusProvider struct {
	reader io.Reader
	enc    *opus.Encoder

	pcm     []int16
	raw     []byte
	opusBuf []byte

	OnFinish func()
	once     sync.Once
}

func NewPCMOpusProvider(r io.Reader, channels, sampleRate int) (*PCMOpusProvider, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, err
	}

	samples := sampleRate / 1000 * opusFrameMillis * channels
	return &PCMOpusProvider{
		reader:  r,
		enc:     enc,
		pcm:     make([]int16, samples),
		raw:     make([]byte, samples*2),
		opusBuf: make([]byte, 4000),
	}, nil
}

// ProvideOpusFrame reads one full PCM frame and encodes it. A short read
// or stream error ends playback via OnFinish.
func (p *PCMOpusProvider) ProvideOpusFrame() ([]byte, error) {
	if _, err := io.ReadFull(p.reader, p.raw); err != nil {
		p.triggerFinish()
		return nil, err
	}

	for i := range p.pcm {
		p.pcm[i] = int16(binary.LittleEndian.Uint16(p.raw[i*2:]))
	}

	n, err := p.enc.Encode(p.pcm, p.opusBuf)
	if err != nil {
		p.triggerFinish()
		return nil, err
	}

	frame := make([]byte, n)
	copy(frame, p.opusBuf[:n])
	return frame, nil
}

func (p *PCMOpusProvider) Close() {
	// Stream teardown is the session's job
}

func (p *PCMOpusProvider) triggerFinish() {
	p.once.Do(func() {
		if p.OnFinish != nil {
			p.OnFinish()
		}
	})
}
