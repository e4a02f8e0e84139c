package proc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"

	"github.com/ayameko/hibiki/sys"
)

const ClipCacheDir = "cache"

var (
	VoiceManager *VoiceSystem
	OnceVoice    sync.Once
)

// TrackEvent is published when a queued track becomes the active one.
// The now-playing daemon consumes these.
type TrackEvent struct {
	GuildID       snowflake.ID
	TextChannelID snowflake.ID
	Track         *QueuedTrack
}

// QueuedTrack pairs a restartable input with its shared metadata slot.
type QueuedTrack struct {
	Input *LazyQueuedInput
	Slot  *MetadataSlot

	TextChannelID snowflake.ID
}

// --- 1. SYSTEM MANAGER ---

type VoiceSystem struct {
	mu       sync.Mutex
	sessions map[snowflake.ID]*VoiceSession

	opener      *StreamOpener
	speech      *SpeechGenerator
	resolver    *Resolver
	events      chan TrackEvent
	idleTimeout time.Duration
}

// GetVoiceManager returns the singleton VoiceSystem instance.
func GetVoiceManager() *VoiceSystem {
	OnceVoice.Do(func() {
		if err := os.MkdirAll(ClipCacheDir, 0755); err != nil {
			sys.LogError("Failed to create clip cache dir: %v", err)
		}

		cfg := sys.GlobalConfig

		var spotify SpotifyCatalog
		if cfg.SpotifyID != "" && cfg.SpotifySecret != "" {
			client, err := NewSpotifyClient(context.Background(), cfg.SpotifyID, cfg.SpotifySecret)
			if err != nil {
				sys.LogWarn("Spotify client unavailable: %v", err)
			} else {
				spotify = client
			}
		}

		VoiceManager = &VoiceSystem{
			sessions:    make(map[snowflake.ID]*VoiceSession),
			opener:      NewStreamOpener(cfg.FFmpegPath, cfg.StreamBufferChunks),
			speech:      NewSpeechGenerator(ClipCacheDir, cfg.TTSMaxAttempts, cfg.TTSMaxChars),
			resolver:    NewResolver(spotify),
			events:      make(chan TrackEvent, 16),
			idleTimeout: cfg.IdleTimeout,
		}
	})
	return VoiceManager
}

func (vs *VoiceSystem) Resolver() *Resolver { return vs.resolver }

// Events exposes the track-active subscription channel.
func (vs *VoiceSystem) Events() <-chan TrackEvent { return vs.events }

func (vs *VoiceSystem) publish(ev TrackEvent) {
	select {
	case vs.events <- ev:
	default:
		// Display is best effort; never block the queue loop on it
	}
}

// NewResolvedTrack builds a queued track from eagerly resolved metadata.
func (vs *VoiceSystem) NewResolvedTrack(meta TrackMetadata, attr Attribution, textChannelID snowflake.ID) *QueuedTrack {
	slot := NewResolvedSlot(meta, attr)
	return &QueuedTrack{
		Input:         NewLazyQueuedInput(slot, vs.opener, vs.speech),
		Slot:          slot,
		TextChannelID: textChannelID,
	}
}

// NewPendingTrack builds a queued track holding only a deferred search
// query; resolution happens on first playback or display.
func (vs *VoiceSystem) NewPendingTrack(query string, attr Attribution, textChannelID snowflake.ID) *QueuedTrack {
	slot := NewPendingSlot(query, attr, vs.resolver.ResolveText)
	return &QueuedTrack{
		Input:         NewLazyQueuedInput(slot, vs.opener, vs.speech),
		Slot:          slot,
		TextChannelID: textChannelID,
	}
}

// NewSpeechTrack builds a generated-clip track keyed by guild.
func (vs *VoiceSystem) NewSpeechTrack(guildID snowflake.ID, attr Attribution, textChannelID snowflake.ID) *QueuedTrack {
	meta := TrackMetadata{
		Title:  "Joke of the moment",
		Source: GeneratedClip(guildID.String()),
	}
	slot := NewResolvedSlot(meta, attr)
	return &QueuedTrack{
		Input:         NewLazyQueuedInput(slot, vs.opener, vs.speech),
		Slot:          slot,
		TextChannelID: textChannelID,
	}
}

// Prepare ensures a session exists for the guild and channel, creating it
// if necessary. It returns instantly and does NOT perform the actual
// voice connection.
func (vs *VoiceSystem) Prepare(client *bot.Client, guildID, channelID snowflake.ID) *VoiceSession {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if sess, ok := vs.sessions[guildID]; ok {
		if sess.ChannelID == channelID {
			return sess
		}
		// If on a different channel, stop and recreate
		sess.Stop()
	}

	conn := client.VoiceManager.CreateConn(guildID)
	ctx, cancel := context.WithCancel(context.Background())
	sess := &VoiceSession{
		GuildID:    guildID,
		ChannelID:  channelID,
		Conn:       conn,
		system:     vs,
		client:     client,
		cancelCtx:  ctx,
		cancelFunc: cancel,
		queue:      make([]*QueuedTrack, 0),
	}
	sess.queueCond = sync.NewCond(&sess.queueMu)
	sess.joinedCond = sync.NewCond(&sess.joinedMu)

	vs.sessions[guildID] = sess
	return sess
}

// Join connects the bot to a voice channel.
func (vs *VoiceSystem) Join(ctx context.Context, client *bot.Client, guildID, channelID snowflake.ID) error {
	sess := vs.Prepare(client, guildID, channelID)

	sess.joinedMu.Lock()
	if sess.joined {
		sess.joinedMu.Unlock()
		return nil
	}
	sess.joinedMu.Unlock()

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = client.UpdateVoiceState(ctx, guildID, &channelID, false, true); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
		}
	}
	if err != nil {
		sess.Conn.Close(ctx)
		vs.mu.Lock()
		delete(vs.sessions, guildID)
		vs.mu.Unlock()
		sess.cancelFunc()
		return err
	}

	sess.joinedMu.Lock()
	sess.joined = true
	sess.joinedCond.Broadcast()
	sess.joinedMu.Unlock()

	sys.LogVoice(sys.MsgVoiceJoined, channelID.String(), guildID.String())
	go sess.processQueue()
	return nil
}

// Leave disconnects the bot from voice and tears the session down.
func (vs *VoiceSystem) Leave(ctx context.Context, guildID snowflake.ID) {
	vs.mu.Lock()
	sess, ok := vs.sessions[guildID]
	if ok {
		delete(vs.sessions, guildID)
	}
	vs.mu.Unlock()

	if !ok {
		return
	}

	sess.Stop()
	if sess.client != nil {
		_ = sess.client.UpdateVoiceState(ctx, guildID, nil, false, false)
	}
	if sess.Conn != nil {
		sess.Conn.Close(ctx)
	}
	sys.LogVoice(sys.MsgVoiceLeft, guildID.String())
}

// Drop removes a session whose voice connection was closed externally
// (kick, channel delete). No gateway call is made.
func (vs *VoiceSystem) Drop(guildID snowflake.ID) {
	vs.mu.Lock()
	sess, ok := vs.sessions[guildID]
	if ok {
		delete(vs.sessions, guildID)
	}
	vs.mu.Unlock()

	if ok {
		sess.Stop()
	}
}

func (vs *VoiceSystem) GetSession(guildID snowflake.ID) *VoiceSession {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.sessions[guildID]
}

// Shutdown stops every session; used by the daemon shutdown hook.
func (vs *VoiceSystem) Shutdown(ctx context.Context) {
	vs.mu.Lock()
	sessions := make([]*VoiceSession, 0, len(vs.sessions))
	for _, sess := range vs.sessions {
		sessions = append(sessions, sess)
	}
	vs.sessions = make(map[snowflake.ID]*VoiceSession)
	vs.mu.Unlock()

	for _, sess := range sessions {
		sess.Stop()
		if sess.Conn != nil {
			sess.Conn.Close(ctx)
		}
	}
}

// --- 2. SESSION & STATE ---

// VoiceSession handles the voice connection and playback queue for one
// guild. The queue mutex is held only for queue mutation, never across
// resolution calls or subprocess spawns.
type VoiceSession struct {
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	Conn      voice.Conn

	system *VoiceSystem
	client *bot.Client

	queue     []*QueuedTrack
	current   *QueuedTrack
	looping   bool
	skipped   bool
	queueMu   sync.Mutex
	queueCond *sync.Cond

	joined     bool
	joinedMu   sync.Mutex
	joinedCond *sync.Cond

	provider *PCMOpusProvider
	paused   bool
	pauseMu  sync.Mutex

	idleTimer *time.Timer

	cancelCtx  context.Context
	cancelFunc context.CancelFunc
}

// WaitJoined blocks until the session is successfully connected to voice.
func (s *VoiceSession) WaitJoined(ctx context.Context) error {
	s.joinedMu.Lock()
	defer s.joinedMu.Unlock()

	for !s.joined {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.cancelCtx.Done():
			return errors.New("session closed")
		default:
			s.joinedCond.Wait()
		}
	}
	return nil
}

// Enqueue adds tracks to the queue. Mode "now" discards everything
// queued plus the active track; "next" prepends; anything else appends.
func (s *VoiceSession) Enqueue(tracks []*QueuedTrack, mode string) {
	s.queueMu.Lock()
	switch mode {
	case "now":
		discarded := s.queue
		s.queue = append([]*QueuedTrack{}, tracks...)
		s.skipped = true
		current := s.current
		s.queueMu.Unlock()

		for _, t := range discarded {
			t.Input.Discard()
		}
		if current != nil {
			current.Input.Discard()
		}

		s.queueMu.Lock()
	case "next":
		s.queue = append(append([]*QueuedTrack{}, tracks...), s.queue...)
	default:
		s.queue = append(s.queue, tracks...)
	}
	s.stopIdleTimer()
	s.queueCond.Broadcast()
	s.queueMu.Unlock()
}

// Skip aborts the active playback attempt. Killing the session's
// subprocess surfaces as a read error which ends the provider.
func (s *VoiceSession) Skip() {
	s.queueMu.Lock()
	current := s.current
	s.skipped = true
	s.queueMu.Unlock()

	if current != nil {
		current.Input.Discard()
	}
}

// Stop terminates playback and clears the queue.
func (s *VoiceSession) Stop() {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}

	s.queueMu.Lock()
	discarded := s.queue
	current := s.current
	s.queue = nil
	s.stopIdleTimer()
	s.queueCond.Broadcast()
	s.queueMu.Unlock()

	for _, t := range discarded {
		t.Input.Discard()
	}
	if current != nil {
		current.Input.Discard()
	}

	if s.Conn != nil {
		s.Conn.SetOpusFrameProvider(nil)
		_ = s.Conn.SetSpeaking(context.TODO(), 0)
	}
}

// Pause detaches the frame provider; the subprocess keeps buffering.
func (s *VoiceSession) Pause() {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	if s.paused || s.provider == nil {
		return
	}
	s.paused = true
	s.Conn.SetOpusFrameProvider(nil)
}

func (s *VoiceSession) Resume() {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	if !s.paused || s.provider == nil {
		return
	}
	s.paused = false
	s.Conn.SetOpusFrameProvider(s.provider)
}

// SetLoop toggles restarting the active track when it ends.
func (s *VoiceSession) SetLoop(loop bool) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	s.looping = loop
}

func (s *VoiceSession) Looping() bool {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return s.looping
}

// QueueSnapshot returns the queued tracks in order, for display.
func (s *VoiceSession) QueueSnapshot() (current *QueuedTrack, queued []*QueuedTrack) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return s.current, append([]*QueuedTrack{}, s.queue...)
}

// --- 3. QUEUE LOOP ---

func (s *VoiceSession) processQueue() {
	for {
		select {
		case <-s.cancelCtx.Done():
			return
		default:
		}

		s.queueMu.Lock()
		for len(s.queue) == 0 {
			s.startIdleTimer()
			s.queueCond.Wait()
			select {
			case <-s.cancelCtx.Done():
				s.queueMu.Unlock()
				return
			default:
			}
		}

		track := s.queue[0]
		s.queue = s.queue[1:]
		s.current = track
		s.skipped = false
		s.stopIdleTimer()
		s.queueMu.Unlock()

		s.playTrack(track)

		s.queueMu.Lock()
		s.current = nil
		s.queueMu.Unlock()
	}
}

// playTrack runs one track to completion, honoring loop mode. Restart
// failures skip the track; they are never fatal to the queue.
func (s *VoiceSession) playTrack(track *QueuedTrack) {
	for {
		s.system.publish(TrackEvent{
			GuildID:       s.GuildID,
			TextChannelID: track.TextChannelID,
			Track:         track,
		})

		session, err := track.Input.Restart(s.cancelCtx)
		if err != nil {
			sys.LogVoice(sys.MsgVoiceTrackSkipped, err)
			return
		}

		provider, err := NewPCMOpusProvider(session, session.Channels, session.SampleRate)
		if err != nil {
			sys.LogVoice(sys.MsgVoiceTrackSkipped, err)
			track.Input.Discard()
			return
		}

		s.recordHistory(track)

		if meta := track.Slot.ReadMetadata(); meta != nil {
			sys.LogVoice(sys.MsgVoiceTrackStarting, meta.Title)
		}

		done := make(chan struct{})
		provider.OnFinish = func() { close(done) }

		s.pauseMu.Lock()
		s.provider = provider
		s.paused = false
		s.pauseMu.Unlock()

		s.Conn.SetOpusFrameProvider(provider)
		_ = s.Conn.SetSpeaking(s.cancelCtx, voice.SpeakingFlagMicrophone)

		// session.Done covers discards while the provider is detached
		// (skip during pause), where no read ever surfaces the teardown.
		select {
		case <-done:
			time.Sleep(100 * time.Millisecond)
		case <-session.Done():
		case <-s.cancelCtx.Done():
		}

		track.Input.Discard()

		s.pauseMu.Lock()
		s.provider = nil
		s.pauseMu.Unlock()

		s.Conn.SetOpusFrameProvider(nil)
		_ = s.Conn.SetSpeaking(context.TODO(), 0)

		select {
		case <-s.cancelCtx.Done():
			return
		default:
		}

		s.queueMu.Lock()
		again := s.looping && !s.skipped
		s.queueMu.Unlock()
		if !again {
			return
		}
	}
}

func (s *VoiceSession) recordHistory(track *QueuedTrack) {
	meta := track.Slot.ReadMetadata()
	if meta == nil || meta.Source.Kind != SourceRemoteVideo {
		return
	}
	attr := track.Slot.ReadAttribution()
	if attr == nil {
		return
	}

	record := &sys.PlayRecord{
		GuildID:     s.GuildID,
		VideoID:     meta.Source.VideoID,
		Title:       meta.Title,
		AddedBy:     attr.UserID,
		AddedByName: attr.DisplayName,
	}
	if err := sys.AddPlayRecord(s.cancelCtx, record); err != nil {
		sys.LogError("Failed to record play history: %v", err)
	}
}

// --- 4. IDLE TIMEOUT ---

// startIdleTimer arms the auto-leave timer; called with queueMu held.
func (s *VoiceSession) startIdleTimer() {
	if s.idleTimer != nil || s.system.idleTimeout <= 0 {
		return
	}
	guildID := s.GuildID
	s.idleTimer = time.AfterFunc(s.system.idleTimeout, func() {
		sys.LogVoice(sys.MsgVoiceIdleTimeout, guildID.String())
		s.system.Leave(context.Background(), guildID)
	})
}

// stopIdleTimer disarms the auto-leave timer; called with queueMu held.
func (s *VoiceSession) stopIdleTimer() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

// DisplayTitle renders a track for queue listings. Pending entries show
// their stored search query.
func (t *QueuedTrack) DisplayTitle() string {
	if meta := t.Slot.ReadMetadata(); meta != nil {
		return meta.Title
	}
	if q := t.Slot.ReadQuery(); q != "" {
		return fmt.Sprintf("%s %s", q, sys.MsgVoicePendingSearch)
	}
	return "Unknown track"
}
