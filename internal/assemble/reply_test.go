package assemble

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ail-project/ail-feeder-discord/internal/schema"
)

func serverChat(guildID, subchannelID string) *schema.Chat {
	chat := &schema.Chat{Kind: schema.KindServer, ID: guildID}
	if subchannelID != "" {
		chat.Subchannel = &schema.Chat{Kind: schema.KindSubchannel, ID: subchannelID}
	}
	return chat
}

func TestResolveReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		chat      *schema.Chat
		ref       *schema.Reference
		wantReply string
		wantCross string
	}{
		{
			name:      "same guild same subchannel is a reply",
			chat:      serverChat("G", "S"),
			ref:       &schema.Reference{MessageID: "M", GuildID: "G", ChannelID: "S"},
			wantReply: "M",
		},
		{
			name:      "same guild different subchannel is a cross reference",
			chat:      serverChat("G", "S"),
			ref:       &schema.Reference{MessageID: "M", GuildID: "G", ChannelID: "S2"},
			wantCross: "M",
		},
		{
			name: "different guild resolves to nothing",
			chat: serverChat("G", "S"),
			ref:  &schema.Reference{MessageID: "M", GuildID: "G2", ChannelID: "S"},
		},
		{
			name:      "guild match without subchannel is a reply",
			chat:      serverChat("G", ""),
			ref:       &schema.Reference{MessageID: "M", GuildID: "G"},
			wantReply: "M",
		},
		{
			name:      "dm scope matches absent guild",
			chat:      &schema.Chat{Kind: schema.KindDM, ID: "D"},
			ref:       &schema.Reference{MessageID: "M", ChannelID: "D"},
			wantReply: "M",
		},
		{
			name: "dm scope rejects guild reference",
			chat: &schema.Chat{Kind: schema.KindDM, ID: "D"},
			ref:  &schema.Reference{MessageID: "M", GuildID: "G"},
		},
		{
			name: "reference without message id resolves to nothing",
			chat: serverChat("G", "S"),
			ref:  &schema.Reference{GuildID: "G", ChannelID: "S"},
		},
		{
			name: "nil reference resolves to nothing",
			chat: serverChat("G", "S"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reply, cross := resolveReply(tt.chat, tt.ref)
			assert.Equal(t, tt.wantReply, reply)
			assert.Equal(t, tt.wantCross, cross)
		})
	}
}
