package home

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"

	"github.com/ayameko/hibiki/proc"
	"github.com/ayameko/hibiki/sys"
)

const nowPlayingTTL = 10 * time.Second

func init() {
	sys.OnClientReady(func(ctx context.Context, client bot.Client) {
		sys.RegisterDaemon(sys.LogVoice, func(ctx context.Context) (bool, func(), func()) {
			return startNowPlayingDaemon(ctx, client)
		})
	})
}

// startNowPlayingDaemon consumes track-active events and posts transient
// now-playing embeds to the channel the track was queued from. Its
// shutdown hook tears down all live voice sessions.
func startNowPlayingDaemon(ctx context.Context, client bot.Client) (bool, func(), func()) {
	vm := proc.GetVoiceManager()

	run := func() {
		for {
			select {
			case ev := <-vm.Events():
				announceTrack(ctx, client, ev)
			case <-ctx.Done():
				return
			}
		}
	}

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		vm.Shutdown(shutdownCtx)
	}

	return true, run, shutdown
}

func announceTrack(ctx context.Context, client bot.Client, ev proc.TrackEvent) {
	if ev.TextChannelID == 0 || ev.Track == nil {
		return
	}

	// Deferred tracks resolve here so the embed shows a real title. A
	// failed resolution also fails the playback path, which reports it.
	_ = ev.Track.Slot.EnsureResolved(ctx)
	meta := ev.Track.Slot.ReadMetadata()
	if meta == nil {
		return
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Now playing").
		SetDescription(meta.Title)
	if meta.Source.Kind == proc.SourceRemoteVideo {
		embed.SetURL("https://www.youtube.com/watch?v=" + meta.Source.VideoID)
	}
	if meta.Thumbnail != "" {
		embed.SetThumbnail(meta.Thumbnail)
	}
	if meta.Duration > 0 {
		embed.AddField("Duration", meta.Duration.Round(time.Second).String(), true)
	}
	if attr := ev.Track.Slot.ReadAttribution(); attr != nil {
		embed.SetAuthor(attr.DisplayName, "", attr.AvatarURL)
	}

	msg, err := client.Rest.CreateMessage(ev.TextChannelID, discord.NewMessageCreateBuilder().
		SetEmbeds(embed.Build()).
		Build())
	if err != nil {
		sys.LogVoice("Failed to announce track: %v", err)
		return
	}

	// Keep channels tidy; the announcement is only relevant briefly
	time.AfterFunc(nowPlayingTTL, func() {
		_ = client.Rest.DeleteMessage(ev.TextChannelID, msg.ID)
	})
}
