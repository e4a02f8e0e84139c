package home

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/ppalone/ytsearch"

	"github.com/ayameko/hibiki/proc"
	"github.com/ayameko/hibiki/sys"
)

func handleVoicePlay(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	query, _ := data.OptString("query")
	mode, _ := data.OptString("queue")

	// Instant Defer
	_ = event.DeferCreateMessage(false)

	if err := startPlayback(event, query, mode); err != nil {
		sys.LogError("Playback error: %v", err)
		respondUpdate(event, playbackErrorMessage(err))
	}
}

func startPlayback(event *events.ApplicationCommandInteractionCreate, query, mode string) error {
	// 1. Get User's Voice State
	var voiceState discord.VoiceState
	var ok bool
	if event.Member() != nil {
		voiceState, ok = event.Client().Caches.VoiceState(*event.GuildID(), event.User().ID)
	}
	if !ok || voiceState.ChannelID == nil {
		respondUpdate(event, sys.ErrVoiceNotInChannel)
		return nil
	}

	vm := proc.GetVoiceManager()

	// 2. Prepare the session structure synchronously first so parallel
	// callers see it, then join and resolve concurrently.
	sess := vm.Prepare(event.Client(), *event.GuildID(), *voiceState.ChannelID)

	joinErr := make(chan error, 1)
	go func() {
		joinErr <- vm.Join(context.Background(), event.Client(), *event.GuildID(), *voiceState.ChannelID)
	}()

	// 3. Classify and resolve while the connection is being established
	mq, err := proc.ParseQuery(query)
	if err != nil {
		return err
	}

	converted, err := vm.Resolver().Resolve(context.Background(), mq)
	if err != nil {
		return err
	}

	attr := proc.Attribution{
		UserID:      event.User().ID,
		DisplayName: event.User().Username,
		AvatarURL:   event.User().EffectiveAvatarURL(),
	}

	tracks := make([]*proc.QueuedTrack, 0, len(converted.Tracks))
	for _, rt := range converted.Tracks {
		if rt.Pending() {
			tracks = append(tracks, vm.NewPendingTrack(rt.Query, attr, event.Channel().ID()))
		} else {
			tracks = append(tracks, vm.NewResolvedTrack(*rt.Meta, attr, event.Channel().ID()))
		}
	}

	if err := <-joinErr; err != nil {
		return err
	}

	sess.Enqueue(tracks, mode)

	return finishPlaybackResponse(event, tracks, mode)
}

func finishPlaybackResponse(event *events.ApplicationCommandInteractionCreate, tracks []*proc.QueuedTrack, mode string) error {
	prefix := "✅ Added to queue:"
	if mode == "now" {
		prefix = "🎶 Playing:"
	}

	if len(tracks) > 1 {
		respondUpdate(event, fmt.Sprintf("%s %d tracks", prefix, len(tracks)))
		return nil
	}

	title := tracks[0].DisplayTitle()
	if meta := tracks[0].Slot.ReadMetadata(); meta != nil && meta.Source.Kind == proc.SourceRemoteVideo {
		title = fmt.Sprintf("[%s](https://www.youtube.com/watch?v=%s)", meta.Title, meta.Source.VideoID)
	}
	respondUpdate(event, prefix+" "+title)
	return nil
}

func handleVoiceAutocomplete(event *events.AutocompleteInteractionCreate) {
	focused := event.Data.Focused()
	if focused.Name != "query" {
		return
	}
	query := focused.String()
	if query == "" {
		_ = event.AutocompleteResult(nil)
		return
	}

	c := ytsearch.NewClient(nil)
	res, err := c.Search(context.Background(), query)
	if err != nil {
		_ = event.AutocompleteResult(nil)
		return
	}

	var choices []discord.AutocompleteChoice
	for i, v := range res.Results {
		if i >= 25 {
			break
		}
		name := v.Title
		if len(name) > 100 {
			name = name[:97] + "..."
		}

		// Use URL as value for instant playback
		val := "https://www.youtube.com/watch?v=" + v.VideoID
		if len(val) > 100 {
			val = name
		}

		choices = append(choices, discord.AutocompleteChoiceString{
			Name:  name,
			Value: val,
		})
	}
	_ = event.AutocompleteResult(choices)
}

// playbackErrorMessage maps internal failures to user-facing text.
func playbackErrorMessage(err error) string {
	var parseErr *proc.ParseError
	var unsupported *proc.UnsupportedContentError
	switch {
	case errors.As(err, &unsupported):
		return sys.ErrResolverUnsupported
	case errors.As(err, &parseErr):
		return sys.ErrResolverBadLink
	case errors.Is(err, proc.ErrNoResults):
		return sys.ErrResolverNoResults
	default:
		return sys.ErrVoicePlayFailed
	}
}

func respondUpdate(event *events.ApplicationCommandInteractionCreate, content string) {
	_, _ = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), discord.NewMessageUpdateBuilder().
		SetContent(content).
		Build())
}
