package home

import (
	"context"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/ayameko/hibiki/proc"
	"github.com/ayameko/hibiki/sys"
)

func init() {
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "joke",
		Description: "Speak a random joke in your voice channel",
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
	}, handleJoke)
}

func handleJoke(event *events.ApplicationCommandInteractionCreate) {
	_ = event.DeferCreateMessage(true)

	var voiceState discord.VoiceState
	var ok bool
	if event.Member() != nil {
		voiceState, ok = event.Client().Caches.VoiceState(*event.GuildID(), event.User().ID)
	}
	if !ok || voiceState.ChannelID == nil {
		respondUpdate(event, sys.ErrVoiceNotInChannel)
		return
	}

	vm := proc.GetVoiceManager()
	sess := vm.Prepare(event.Client(), *event.GuildID(), *voiceState.ChannelID)

	if err := vm.Join(context.Background(), event.Client(), *event.GuildID(), *voiceState.ChannelID); err != nil {
		sys.LogError("Joke playback error: %v", err)
		respondUpdate(event, sys.ErrSpeechUnavailable)
		return
	}

	attr := proc.Attribution{
		UserID:      event.User().ID,
		DisplayName: event.User().Username,
		AvatarURL:   event.User().EffectiveAvatarURL(),
	}

	// Jump the queue; jokes are short and people want them now
	track := vm.NewSpeechTrack(*event.GuildID(), attr, event.Channel().ID())
	sess.Enqueue([]*proc.QueuedTrack{track}, "next")

	respondUpdate(event, "🎙️ Coming right up.")
}
