package proc

import (
	"context"
	"fmt"
	"sync"
)

// LazyTitleSentinel is the title reported before a deferred track has
// been resolved. Display code treats it as "resolution pending".
const LazyTitleSentinel = "$lazy$"

// LazyQueuedInput implements the restartable-input contract the playback
// engine consumes. Restart is the only entry point into producing bytes;
// each call fully discards the previous StreamSession before creating
// the next, so no two sessions for the same track are ever live at once.
type LazyQueuedInput struct {
	Slot *MetadataSlot

	opener *StreamOpener
	speech *SpeechGenerator

	mu      sync.Mutex
	session *StreamSession
}

func NewLazyQueuedInput(slot *MetadataSlot, opener *StreamOpener, speech *SpeechGenerator) *LazyQueuedInput {
	return &LazyQueuedInput{Slot: slot, opener: opener, speech: speech}
}

// Describe reports the stream's static characteristics without starting
// it. Unresolved tracks get placeholder stereo 48 kHz values plus the
// lazy sentinel title.
func (in *LazyQueuedInput) Describe() (channels, sampleRate int, title string, lazy bool) {
	meta := in.Slot.ReadMetadata()
	if meta == nil {
		return StreamChannels, StreamSampleRate, LazyTitleSentinel, true
	}
	if meta.Source.Kind == SourceGeneratedClip {
		return SpeechChannels, SpeechSampleRate, meta.Title, false
	}
	return StreamChannels, StreamSampleRate, meta.Title, false
}

// Restart tears down the previous session and produces a fresh byte
// stream for this track. Deferred entries resolve here, writing the slot
// so later readers see concrete metadata. Any failure is returned as a
// stream error; the queue loop skips the track. The session is returned
// typed: a concurrent Discard can nil the stored field at any time, so
// callers must not re-read it through Session.
func (in *LazyQueuedInput) Restart(ctx context.Context) (*StreamSession, error) {
	in.Discard()

	meta, err := in.Slot.ReadOrGenerate(ctx)
	if err != nil {
		return nil, err
	}

	var session *StreamSession
	switch meta.Source.Kind {
	case SourceRemoteVideo:
		session, err = in.opener.OpenRemote(ctx, meta.Source.VideoID)
	case SourceLocalFile:
		session, err = in.opener.OpenLocal(ctx, meta.Source.Path, StreamChannels, StreamSampleRate)
	case SourceGeneratedClip:
		var path string
		path, err = in.speech.GenerateClip(ctx, meta.Source.Key)
		if err == nil {
			session, err = in.opener.OpenLocal(ctx, path, SpeechChannels, SpeechSampleRate)
		}
	default:
		err = fmt.Errorf("unhandled source kind: %s", meta.Source)
	}
	if err != nil {
		return nil, err
	}

	in.mu.Lock()
	in.session = session
	in.mu.Unlock()
	return session, nil
}

// Discard releases the active StreamSession, if any. Called on restart,
// skip and stop; safe to call redundantly.
func (in *LazyQueuedInput) Discard() {
	in.mu.Lock()
	session := in.session
	in.session = nil
	in.mu.Unlock()

	if session != nil {
		_ = session.Close()
	}
}

// Session exposes the live session for consumers that need its format
// parameters; nil between restarts.
func (in *LazyQueuedInput) Session() *StreamSession {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.session
}
