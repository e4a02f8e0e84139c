package proc

import (
	"context"
	"errors"
	"testing"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name           string
		slot           *MetadataSlot
		wantChannels   int
		wantSampleRate int
		wantTitle      string
		wantLazy       bool
	}{
		{
			"pending slot",
			NewPendingSlot("q", testAttribution(), nil),
			StreamChannels, StreamSampleRate, LazyTitleSentinel, true,
		},
		{
			"remote video",
			NewResolvedSlot(TrackMetadata{Title: "Song", Source: RemoteVideo("v")}, testAttribution()),
			StreamChannels, StreamSampleRate, "Song", false,
		},
		{
			"generated clip",
			NewResolvedSlot(TrackMetadata{Title: "Joke", Source: GeneratedClip("g1")}, testAttribution()),
			SpeechChannels, SpeechSampleRate, "Joke", false,
		},
		{
			"local file",
			NewResolvedSlot(TrackMetadata{Title: "File", Source: LocalFile("/tmp/a.mp3")}, testAttribution()),
			StreamChannels, StreamSampleRate, "File", false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewLazyQueuedInput(tt.slot, nil, nil)
			channels, sampleRate, title, lazy := in.Describe()
			if channels != tt.wantChannels || sampleRate != tt.wantSampleRate {
				t.Errorf("format = %d ch %d Hz, want %d ch %d Hz", channels, sampleRate, tt.wantChannels, tt.wantSampleRate)
			}
			if title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
			if lazy != tt.wantLazy {
				t.Errorf("lazy = %v, want %v", lazy, tt.wantLazy)
			}
		})
	}
}

func TestRestartFailedResolutionLeavesNoSession(t *testing.T) {
	wantErr := errors.New("resolution refused")
	resolve := func(ctx context.Context, query string) (TrackMetadata, error) {
		return TrackMetadata{}, wantErr
	}
	slot := NewPendingSlot("q", testAttribution(), resolve)
	in := NewLazyQueuedInput(slot, NewStreamOpener("ffmpeg", 4), nil)

	if _, err := in.Restart(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if in.Session() != nil {
		t.Error("session left behind after failed restart")
	}
	if slot.IsResolved() {
		t.Error("slot marked resolved after failed resolution")
	}
}

func TestRestartFailedSpawnLeavesNoSession(t *testing.T) {
	slot := NewResolvedSlot(TrackMetadata{Title: "t", Source: LocalFile("in.mp3")}, testAttribution())
	in := NewLazyQueuedInput(slot, NewStreamOpener("/nonexistent/ffmpeg-binary", 4), nil)

	_, err := in.Restart(context.Background())
	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("err = %v, want *OpenError", err)
	}
	if in.Session() != nil {
		t.Error("session left behind after failed spawn")
	}
}

func TestDiscardWithoutSession(t *testing.T) {
	in := NewLazyQueuedInput(NewPendingSlot("q", testAttribution(), nil), nil, nil)
	// Safe to call with nothing live, repeatedly
	in.Discard()
	in.Discard()
	if in.Session() != nil {
		t.Error("Session() non-nil on fresh input")
	}
}

func TestRestartResolvesDeferredEntry(t *testing.T) {
	resolve := func(ctx context.Context, query string) (TrackMetadata, error) {
		return TrackMetadata{Title: "Resolved", Source: RemoteVideo("vid")}, nil
	}
	slot := NewPendingSlot("some song", testAttribution(), resolve)

	opener := NewStreamOpener("/nonexistent/ffmpeg-binary", 4)
	opener.ResolveURL = func(ctx context.Context, videoID string) (string, error) {
		return "", errors.New("not reachable in test")
	}
	in := NewLazyQueuedInput(slot, opener, nil)

	// The open fails, but resolution must have been written through first
	if _, err := in.Restart(context.Background()); err == nil {
		t.Fatal("expected open failure")
	}
	if !slot.IsResolved() {
		t.Fatal("deferred entry not resolved by restart")
	}
	meta := slot.ReadMetadata()
	if meta == nil || meta.Title != "Resolved" {
		t.Errorf("metadata = %+v", meta)
	}
}
