package proc

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/kkdai/youtube/v2"
)

func TestBestAudioFormat(t *testing.T) {
	tests := []struct {
		name      string
		qualities []string
		want      string
		wantErr   bool
	}{
		{"high wins", []string{"AUDIO_QUALITY_LOW", "AUDIO_QUALITY_HIGH", "AUDIO_QUALITY_MEDIUM"}, "AUDIO_QUALITY_HIGH", false},
		{"medium over low", []string{"AUDIO_QUALITY_LOW", "AUDIO_QUALITY_MEDIUM"}, "AUDIO_QUALITY_MEDIUM", false},
		{"single low", []string{"AUDIO_QUALITY_LOW"}, "AUDIO_QUALITY_LOW", false},
		{"unknown tiers only", []string{"", "AUDIO_QUALITY_ULTRA"}, "", true},
		{"empty list", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var formats youtube.FormatList
			for _, q := range tt.qualities {
				formats = append(formats, youtube.Format{AudioQuality: q})
			}

			best, err := bestAudioFormat(formats)
			if tt.wantErr {
				if !errors.Is(err, ErrNoPlayableFormat) {
					t.Errorf("err = %v, want ErrNoPlayableFormat", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("bestAudioFormat: %v", err)
			}
			if best.AudioQuality != tt.want {
				t.Errorf("picked %q, want %q", best.AudioQuality, tt.want)
			}
		})
	}
}

func TestBestAudioFormatTieKeepsFirst(t *testing.T) {
	formats := youtube.FormatList{
		{ItagNo: 1, AudioQuality: "AUDIO_QUALITY_MEDIUM"},
		{ItagNo: 2, AudioQuality: "AUDIO_QUALITY_MEDIUM"},
	}
	best, err := bestAudioFormat(formats)
	if err != nil {
		t.Fatalf("bestAudioFormat: %v", err)
	}
	if best.ItagNo != 1 {
		t.Errorf("picked itag %d, want 1", best.ItagNo)
	}
}

func TestOpenRemoteErrorStages(t *testing.T) {
	t.Run("no playable format", func(t *testing.T) {
		opener := NewStreamOpener("ffmpeg", 4)
		opener.ResolveURL = func(ctx context.Context, videoID string) (string, error) {
			return "", ErrNoPlayableFormat
		}

		_, err := opener.OpenRemote(context.Background(), "vid")
		var openErr *OpenError
		if !errors.As(err, &openErr) {
			t.Fatalf("err = %v, want *OpenError", err)
		}
		if openErr.Stage != "formats" {
			t.Errorf("Stage = %q, want formats", openErr.Stage)
		}
		if !errors.Is(err, ErrNoPlayableFormat) {
			t.Error("cause not wrapped")
		}
	})

	t.Run("resolution failure", func(t *testing.T) {
		cause := errors.New("video unavailable")
		opener := NewStreamOpener("ffmpeg", 4)
		opener.ResolveURL = func(ctx context.Context, videoID string) (string, error) {
			return "", cause
		}

		_, err := opener.OpenRemote(context.Background(), "vid")
		var openErr *OpenError
		if !errors.As(err, &openErr) {
			t.Fatalf("err = %v, want *OpenError", err)
		}
		if openErr.Stage != "resolve" {
			t.Errorf("Stage = %q, want resolve", openErr.Stage)
		}
	})
}

func TestStreamSessionClose(t *testing.T) {
	sess := &StreamSession{
		stream: NewMediaStream(NewPipedStreamReader(bytes.NewReader([]byte("pcm")), 4)),
		closed: make(chan struct{}),
	}

	select {
	case <-sess.Done():
		t.Fatal("Done closed before Close")
	default:
	}

	_ = sess.Close()
	_ = sess.Close() // idempotent

	select {
	case <-sess.Done():
	default:
		t.Fatal("Done not closed after Close")
	}

	if _, err := sess.Read(make([]byte, 1)); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("read after close: %v, want ErrStreamClosed", err)
	}
}

func TestSpawnMissingBinary(t *testing.T) {
	opener := NewStreamOpener("/nonexistent/ffmpeg-binary", 4)

	_, err := opener.OpenLocal(context.Background(), "input.mp3", StreamChannels, StreamSampleRate)
	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("err = %v, want *OpenError", err)
	}
	if openErr.Stage != "spawn" {
		t.Errorf("Stage = %q, want spawn", openErr.Stage)
	}
}
