package home

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"

	"github.com/ayameko/hibiki/sys"
)

const (
	MsgBotRebootCommanded   = "Reboot commanded by user %s (%s)"
	MsgBotShutdownCommanded = "Shutdown commanded by user %s (%s)"
	MsgBotRebooting         = "**Rebooting...**"
	MsgBotShuttingDown      = "**Shutting down...**"
	MsgBotCleanupFail       = "Failed to clear commands: %v"
	MsgBotCleanupSuccess    = "Successfully cleared all guild commands from this server."
)

func init() {
	adminPerm := discord.PermissionAdministrator

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "bot",
		Description:              "Bot management utilities (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "reboot",
				Description: "Restart the bot process",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "shutdown",
				Description: "Shut down the bot process",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "cleanup",
				Description: "Clear all guild commands from the current server",
			},
		},
	}, handleBot)
}

func handleBot(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	if data.SubCommandName == nil {
		return
	}

	switch *data.SubCommandName {
	case "reboot":
		handleBotReboot(event)
	case "shutdown":
		handleBotShutdown(event)
	case "cleanup":
		handleBotCleanup(event)
	}
}

func handleBotReboot(event *events.ApplicationCommandInteractionCreate) {
	sys.LogWarn(MsgBotRebootCommanded, event.User().Username, event.User().ID)
	respondEphemeral(event, MsgBotRebooting)

	sys.RestartRequested = true
	time.AfterFunc(1500*time.Millisecond, func() {
		_ = syscall.Kill(os.Getpid(), syscall.SIGTERM)
	})
}

func handleBotShutdown(event *events.ApplicationCommandInteractionCreate) {
	sys.LogWarn(MsgBotShutdownCommanded, event.User().Username, event.User().ID)
	respondEphemeral(event, MsgBotShuttingDown)

	time.AfterFunc(1*time.Second, func() {
		_ = syscall.Kill(os.Getpid(), syscall.SIGTERM)
	})
}

func handleBotCleanup(event *events.ApplicationCommandInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		return
	}

	_, err := event.Client().Rest.SetGuildCommands(event.ApplicationID(), *guildID, []discord.ApplicationCommandCreate{})
	if err != nil {
		respondEphemeral(event, fmt.Sprintf(MsgBotCleanupFail, err))
		return
	}
	respondEphemeral(event, MsgBotCleanupSuccess)
}
