package assemble

import "github.com/ail-project/ail-feeder-discord/internal/schema"

// resolveReply decides whether a message reference is a same-scope reply.
// A reference counts as a reply when its guild matches the message's chat
// scope (both absent is a DM-scope match) and, when the message sits in a
// subchannel, the reference's channel matches that subchannel. A guild
// match with a different channel is kept as a cross-reference instead of
// being dropped. A reference without a message ID resolves to nothing.
func resolveReply(chat *schema.Chat, ref *schema.Reference) (replyTo, crossRef string) {
	if chat == nil || ref == nil || ref.MessageID == "" {
		return "", ""
	}

	guildID := ""
	if chat.Kind == schema.KindServer {
		guildID = chat.ID
	}
	if guildID != ref.GuildID {
		return "", ""
	}

	if chat.Subchannel == nil {
		return ref.MessageID, ""
	}
	if chat.Subchannel.ID == ref.ChannelID {
		return ref.MessageID, ""
	}
	return "", ref.MessageID
}
