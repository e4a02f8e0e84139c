package proc

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/kkdai/youtube/v2"
)

// Fixed output contract of the transcoder subprocess.
const (
	StreamChannels   = 2
	StreamSampleRate = 48000

	SpeechChannels   = 1
	SpeechSampleRate = 24000
)

var ErrNoPlayableFormat = errors.New("no playable audio format")

// OpenError wraps a stream-open failure with the stage that produced it.
type OpenError struct {
	Stage string
	Err   error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open stream (%s): %v", e.Stage, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// audioQualityRank orders the platform's audio quality tiers. Formats
// with an unrecognized tier are unplayable.
func audioQualityRank(quality string) int {
	switch quality {
	case "AUDIO_QUALITY_HIGH":
		return 3
	case "AUDIO_QUALITY_MEDIUM":
		return 2
	case "AUDIO_QUALITY_LOW":
		return 1
	}
	return 0
}

// bestAudioFormat picks the highest-ranked audio format; ties keep the
// first seen.
func bestAudioFormat(formats youtube.FormatList) (*youtube.Format, error) {
	var best *youtube.Format
	bestRank := 0
	for i := range formats {
		rank := audioQualityRank(formats[i].AudioQuality)
		if rank > bestRank {
			best = &formats[i]
			bestRank = rank
		}
	}
	if best == nil {
		return nil, ErrNoPlayableFormat
	}
	return best, nil
}

// StreamSession is the live resource backing one playback attempt: one
// transcoder subprocess, its stdout pipe, the drain goroutine and the
// growing chunk buffer. Never reused; every restart creates a new one.
type StreamSession struct {
	cmd    *exec.Cmd
	stream *MediaStream

	closed    chan struct{}
	closeOnce sync.Once

	Channels   int
	SampleRate int
}

func (s *StreamSession) Read(p []byte) (int, error) {
	return s.stream.Read(p)
}

// Close kills and reaps the subprocess, fails the stream, and releases
// the drain goroutine. Idempotent.
func (s *StreamSession) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd != nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
			_ = s.cmd.Wait()
		}
		if s.stream != nil {
			_ = s.stream.Close()
		}
		close(s.closed)
	})
	return nil
}

// Done is closed once the session has been torn down.
func (s *StreamSession) Done() <-chan struct{} { return s.closed }

// Stream exposes the buffered cursor view for consumers that seek.
func (s *StreamSession) Stream() *MediaStream { return s.stream }

// StreamOpener creates StreamSessions. ResolveURL is swappable for tests
// and fault injection.
type StreamOpener struct {
	FFmpegPath   string
	BufferChunks int
	ResolveURL   func(ctx context.Context, videoID string) (string, error)
}

func NewStreamOpener(ffmpegPath string, bufferChunks int) *StreamOpener {
	return &StreamOpener{
		FFmpegPath:   ffmpegPath,
		BufferChunks: bufferChunks,
		ResolveURL:   resolveBestAudioURL,
	}
}

// OpenRemote resolves the best audio URL for a video and starts the
// transcoder against it.
func (o *StreamOpener) OpenRemote(ctx context.Context, videoID string) (*StreamSession, error) {
	url, err := o.ResolveURL(ctx, videoID)
	if err != nil {
		if errors.Is(err, ErrNoPlayableFormat) {
			return nil, &OpenError{Stage: "formats", Err: err}
		}
		return nil, &OpenError{Stage: "resolve", Err: err}
	}
	return o.spawn(ctx, url, StreamChannels, StreamSampleRate)
}

// OpenLocal feeds a file on disk straight into the transcoder, skipping
// the network resolution step.
func (o *StreamOpener) OpenLocal(ctx context.Context, path string, channels, sampleRate int) (*StreamSession, error) {
	return o.spawn(ctx, path, channels, sampleRate)
}

func (o *StreamOpener) spawn(ctx context.Context, input string, channels, sampleRate int) (*StreamSession, error) {
	args := []string{
		"-i", input,
		"-f", "s16le",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
		"-acodec", "pcm_s16le",
		"pipe:1",
	}

	if strings.HasPrefix(input, "http") {
		// Network inputs get reconnect handling
		args = append([]string{
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "2",
			"-user_agent", "Mozilla/5.0",
		}, args...)
	}

	ffmpegPath := o.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	// stdin and stderr stay at the default /dev/null; only stdout carries
	// the PCM contract.
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &OpenError{Stage: "spawn", Err: err}
	}

	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		return nil, &OpenError{Stage: "spawn", Err: err}
	}

	reader := NewPipedStreamReader(stdout, o.BufferChunks)
	return &StreamSession{
		cmd:        cmd,
		stream:     NewMediaStream(reader),
		closed:     make(chan struct{}),
		Channels:   channels,
		SampleRate: sampleRate,
	}, nil
}

func resolveBestAudioURL(ctx context.Context, videoID string) (string, error) {
	client := youtube.Client{}
	video, err := client.GetVideoContext(ctx, videoID)
	if err != nil {
		return "", err
	}

	formats := video.Formats.Type("audio")
	best, err := bestAudioFormat(formats)
	if err != nil {
		return "", err
	}

	return client.GetStreamURLContext(ctx, video, best)
}
