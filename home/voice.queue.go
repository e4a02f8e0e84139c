package home

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/events"

	"github.com/ayameko/hibiki/proc"
	"github.com/ayameko/hibiki/sys"
)

const queueDisplayLimit = 15

func handleVoiceQueue(event *events.ApplicationCommandInteractionCreate) {
	sess := proc.GetVoiceManager().GetSession(*event.GuildID())
	if sess == nil {
		respondEphemeral(event, sys.MsgVoiceQueueEmpty)
		return
	}

	current, queued := sess.QueueSnapshot()
	if current == nil && len(queued) == 0 {
		respondEphemeral(event, sys.MsgVoiceQueueEmpty)
		return
	}

	var b strings.Builder
	if current != nil {
		fmt.Fprintf(&b, "🎶 **Now playing:** %s\n", current.DisplayTitle())
	}
	for i, t := range queued {
		if i >= queueDisplayLimit {
			fmt.Fprintf(&b, "...and %d more\n", len(queued)-queueDisplayLimit)
			break
		}
		fmt.Fprintf(&b, "`%2d.` %s\n", i+1, t.DisplayTitle())
	}

	respondEphemeral(event, b.String())
}

func handleVoiceHistory(event *events.ApplicationCommandInteractionCreate) {
	records, err := sys.GetRecentPlays(context.Background(), *event.GuildID(), queueDisplayLimit)
	if err != nil {
		sys.LogError("Failed to load play history: %v", err)
		respondEphemeral(event, sys.MsgVoiceHistoryEmpty)
		return
	}
	if len(records) == 0 {
		respondEphemeral(event, sys.MsgVoiceHistoryEmpty)
		return
	}

	var b strings.Builder
	if total, err := sys.GetPlayCount(context.Background(), *event.GuildID()); err == nil && total > len(records) {
		fmt.Fprintf(&b, "📜 **Recently played** (%d total):\n", total)
	} else {
		b.WriteString("📜 **Recently played:**\n")
	}
	for i, r := range records {
		fmt.Fprintf(&b, "`%2d.` [%s](https://www.youtube.com/watch?v=%s) by %s <t:%d:R>\n",
			i+1, r.Title, r.VideoID, r.AddedByName, r.PlayedAt.Unix())
	}

	respondEphemeral(event, b.String())
}
