package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/ayameko/hibiki/proc"
	"github.com/ayameko/hibiki/sys"
)

func init() {
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "voice",
		Description: "Voice System",
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "play",
				Description: "Play audio from a link or search",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:         "query",
						Description:  "A YouTube/Spotify link or a song name",
						Required:     true,
						Autocomplete: true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "queue",
						Description: "Playback mode",
						Required:    false,
						Choices: []discord.ApplicationCommandOptionChoiceString{
							{Name: "now", Value: "now"},
							{Name: "next", Value: "next"},
							{Name: "end", Value: "end"},
						},
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "skip",
				Description: "Skip the current track",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "stop",
				Description: "Stop playback and leave",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "pause",
				Description: "Pause playback",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "resume",
				Description: "Resume playback",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "loop",
				Description: "Loop the current track",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionBool{
						Name:        "enabled",
						Description: "Whether to loop",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "queue",
				Description: "Show the queue",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "history",
				Description: "Show recently played tracks",
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		if data.SubCommandName == nil {
			return
		}

		switch *data.SubCommandName {
		case "play":
			handleVoicePlay(event, data)
		case "skip":
			handleVoiceSkip(event)
		case "stop":
			handleVoiceStop(event)
		case "pause":
			handleVoicePause(event)
		case "resume":
			handleVoiceResume(event)
		case "loop":
			handleVoiceLoop(event, data)
		case "queue":
			handleVoiceQueue(event)
		case "history":
			handleVoiceHistory(event)
		}
	})

	sys.RegisterAutocompleteHandler("voice", handleVoiceAutocomplete)

	// Sessions the gateway disconnects out from under us get torn down
	sys.RegisterVoiceStateUpdateHandler(func(event *events.GuildVoiceStateUpdate) {
		selfUser, ok := event.Client().Caches.SelfUser()
		if !ok || event.VoiceState.UserID != selfUser.ID {
			return
		}
		if event.VoiceState.ChannelID == nil {
			proc.GetVoiceManager().Drop(event.VoiceState.GuildID)
		}
	})
}
