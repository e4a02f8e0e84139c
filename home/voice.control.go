package home

import (
	"context"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/ayameko/hibiki/proc"
	"github.com/ayameko/hibiki/sys"
)

// sessionFor pulls the guild's active session or responds with the
// standard "nothing playing" message.
func sessionFor(event *events.ApplicationCommandInteractionCreate) *proc.VoiceSession {
	sess := proc.GetVoiceManager().GetSession(*event.GuildID())
	if sess == nil {
		respondEphemeral(event, sys.ErrVoiceNoSession)
	}
	return sess
}

func handleVoiceSkip(event *events.ApplicationCommandInteractionCreate) {
	sess := sessionFor(event)
	if sess == nil {
		return
	}
	sess.Skip()
	respondEphemeral(event, sys.MsgVoiceSkipped)
}

func handleVoiceStop(event *events.ApplicationCommandInteractionCreate) {
	sess := sessionFor(event)
	if sess == nil {
		return
	}
	proc.GetVoiceManager().Leave(context.Background(), *event.GuildID())
	respondEphemeral(event, sys.MsgVoiceStopped)
}

func handleVoicePause(event *events.ApplicationCommandInteractionCreate) {
	sess := sessionFor(event)
	if sess == nil {
		return
	}
	sess.Pause()
	respondEphemeral(event, sys.MsgVoicePaused)
}

func handleVoiceResume(event *events.ApplicationCommandInteractionCreate) {
	sess := sessionFor(event)
	if sess == nil {
		return
	}
	sess.Resume()
	respondEphemeral(event, sys.MsgVoiceResumed)
}

func handleVoiceLoop(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	sess := sessionFor(event)
	if sess == nil {
		return
	}
	enabled := data.Bool("enabled")
	sess.SetLoop(enabled)
	if enabled {
		respondEphemeral(event, sys.MsgVoiceLoopEnabled)
	} else {
		respondEphemeral(event, sys.MsgVoiceLoopDisabled)
	}
}

func respondEphemeral(event *events.ApplicationCommandInteractionCreate, content string) {
	_ = event.CreateMessage(discord.NewMessageCreate().
		WithContent(content).
		WithEphemeral(true))
}
