// Package unpack maps raw Discord objects to canonical schema entities.
// Every unpacker is a structural projection: fields absent on the raw
// object stay absent on the entity. Chat dispatch is by the platform's
// channel type tag; a tag this package does not know is surfaced as an
// UnknownChatKindError, never mapped to a known kind.
package unpack

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/ail-project/ail-feeder-discord/internal/schema"
)

// UnknownChatKindError reports a channel type tag with no canonical chat
// kind. It is a schema gap, distinct from transient or permission
// failures.
type UnknownChatKindError struct {
	ChannelID string
	Type      discordgo.ChannelType
}

func (e *UnknownChatKindError) Error() string {
	return fmt.Sprintf("unknown chat kind %d for channel %s", e.Type, e.ChannelID)
}

// createdAt derives the creation time from a snowflake ID. A malformed ID
// yields the zero time; platform IDs are well-formed in practice.
func createdAt(id string) time.Time {
	t, err := discordgo.SnowflakeTimestamp(id)
	if err != nil {
		return time.Time{}
	}
	return t
}

// User projects a raw user.
func User(u *discordgo.User) schema.User {
	display := u.GlobalName
	if display == "" {
		display = u.Username
	}
	return schema.User{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: display,
		Bot:         u.Bot,
		CreatedAt:   createdAt(u.ID),
	}
}

// Member projects a raw user together with its guild membership. Member
// objects on gateway events carry no user of their own, so the author is
// passed separately.
func Member(u *discordgo.User, m *discordgo.Member) schema.User {
	user := User(u)
	if m != nil && m.Nick != "" {
		user.Nickname = m.Nick
	}
	return user
}

// Guild projects a raw guild into a server chat.
func Guild(g *discordgo.Guild) *schema.Chat {
	return &schema.Chat{
		Kind:        schema.KindServer,
		ID:          g.ID,
		Name:        g.Name,
		CreatedAt:   createdAt(g.ID),
		Description: g.Description,
		MemberCount: g.MemberCount,
	}
}

// Channel projects a raw channel by its type tag. Guild surfaces become
// subchannels, private channels become DM or group chats and thread types
// become threads.
func Channel(ch *discordgo.Channel) (*schema.Chat, error) {
	switch ch.Type {
	case discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildVoice,
		discordgo.ChannelTypeGuildCategory,
		discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeGuildStore,
		discordgo.ChannelTypeGuildStageVoice,
		discordgo.ChannelTypeGuildForum:
		return Subchannel(ch), nil
	case discordgo.ChannelTypeDM:
		return dmChannel(ch), nil
	case discordgo.ChannelTypeGroupDM:
		return groupChannel(ch), nil
	case discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread:
		return Thread(ch), nil
	default:
		return nil, &UnknownChatKindError{ChannelID: ch.ID, Type: ch.Type}
	}
}

// Subchannel projects a guild channel.
func Subchannel(ch *discordgo.Channel) *schema.Chat {
	return &schema.Chat{
		Kind:      schema.KindSubchannel,
		ID:        ch.ID,
		Name:      ch.Name,
		CreatedAt: createdAt(ch.ID),
	}
}

// Thread projects a thread channel, recording its parent guild and
// subchannel.
func Thread(ch *discordgo.Channel) *schema.Chat {
	return &schema.Chat{
		Kind:               schema.KindThread,
		ID:                 ch.ID,
		Name:               ch.Name,
		CreatedAt:          createdAt(ch.ID),
		ParentServerID:     ch.GuildID,
		ParentSubchannelID: ch.ParentID,
	}
}

func dmChannel(ch *discordgo.Channel) *schema.Chat {
	chat := &schema.Chat{
		Kind:      schema.KindDM,
		ID:        ch.ID,
		CreatedAt: createdAt(ch.ID),
	}
	if len(ch.Recipients) > 0 {
		u := User(ch.Recipients[0])
		chat.Recipient = &u
	}
	return chat
}

func groupChannel(ch *discordgo.Channel) *schema.Chat {
	chat := &schema.Chat{
		Kind:      schema.KindGroup,
		ID:        ch.ID,
		Name:      ch.Name,
		CreatedAt: createdAt(ch.ID),
	}
	for _, r := range ch.Recipients {
		u := User(r)
		chat.Participants = append(chat.Participants, u)
		if r.ID == ch.OwnerID {
			owner := u
			chat.Owner = &owner
		}
	}
	if chat.Owner == nil && ch.OwnerID != "" {
		chat.Owner = &schema.User{ID: ch.OwnerID, CreatedAt: createdAt(ch.OwnerID)}
	}
	return chat
}

// Attachment projects a raw attachment.
func Attachment(a *discordgo.MessageAttachment) schema.Attachment {
	return schema.Attachment{
		ID:          a.ID,
		Filename:    a.Filename,
		URL:         a.URL,
		ProxyURL:    a.ProxyURL,
		ContentType: a.ContentType,
	}
}

// Embed projects the flattening-relevant part of a raw embed. An absent
// inline flag stays false.
func Embed(e *discordgo.MessageEmbed) schema.Embed {
	embed := schema.Embed{
		Title:       e.Title,
		URL:         e.URL,
		Description: e.Description,
	}
	for _, f := range e.Fields {
		if f == nil {
			continue
		}
		embed.Fields = append(embed.Fields, schema.EmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if e.Footer != nil {
		embed.Footer = &schema.EmbedFooter{
			Text:    e.Footer.Text,
			IconURL: e.Footer.IconURL,
		}
	}
	return embed
}

// Reference projects a raw message reference. Nil in, nil out.
func Reference(r *discordgo.MessageReference) *schema.Reference {
	if r == nil {
		return nil
	}
	return &schema.Reference{
		MessageID: r.MessageID,
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
	}
}

// MessageMentions projects who a raw message pings.
func MessageMentions(m *discordgo.Message) schema.Mentions {
	mentions := schema.Mentions{
		RoleIDs:  m.MentionRoles,
		Everyone: m.MentionEveryone,
	}
	for _, u := range m.Mentions {
		if u != nil {
			mentions.UserIDs = append(mentions.UserIDs, u.ID)
		}
	}
	return mentions
}
