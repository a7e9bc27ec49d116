// Package schema defines the canonical entities the feeder emits and their
// rendering into the nested key-value documents the AIL sink ingests.
// Entities are constructed once by the unpackers and read-only afterwards.
// Document keys are stable snake_case; optional fields are omitted when
// absent, never null-filled.
package schema

import (
	"encoding/base64"
	"time"
)

// ChatKind tags the chat variant. It is decided once at ingestion time from
// platform type metadata, never guessed from structure.
type ChatKind string

const (
	KindServer     ChatKind = "server"
	KindSubchannel ChatKind = "server_channel"
	KindThread     ChatKind = "thread"
	KindDM         ChatKind = "dm"
	KindGroup      ChatKind = "group"
)

// DateParts is the sink representation of a point in time.
type DateParts struct {
	Datestamp string
	Timestamp float64
	Timezone  string
}

// SplitTime renders t in the feeder's date layout. Times are normalized to
// UTC before rendering so the datestamp and timezone agree.
func SplitTime(t time.Time) DateParts {
	t = t.UTC()
	return DateParts{
		Datestamp: t.Format("2006-01-02 15:04:05"),
		Timestamp: float64(t.UnixNano()) / float64(time.Second),
		Timezone:  t.Format("MST"),
	}
}

// Meta renders the date triple.
func (d DateParts) Meta() map[string]any {
	return map[string]any{
		"datestamp": d.Datestamp,
		"timestamp": d.Timestamp,
		"timezone":  d.Timezone,
	}
}

// User is a platform account, optionally guild-scoped (Nickname) and
// optionally enriched (Bio, Avatar). Bio and Avatar are present only after
// a successful profile fetch; absence is not an error.
type User struct {
	ID          string
	Username    string
	DisplayName string
	Bot         bool
	CreatedAt   time.Time

	Nickname string
	Bio      string
	Avatar   []byte
}

// Meta renders the user document. The avatar is base64-encoded for the
// sink, matching the payload encoding rules of the import API.
func (u User) Meta() map[string]any {
	meta := map[string]any{
		"id":           u.ID,
		"username":     u.Username,
		"display_name": u.DisplayName,
		"bot":          u.Bot,
		"date":         SplitTime(u.CreatedAt).Meta(),
	}
	if u.Nickname != "" {
		meta["nick"] = u.Nickname
	}
	if u.Bio != "" {
		meta["info"] = u.Bio
	}
	if len(u.Avatar) > 0 {
		meta["icon"] = base64.StdEncoding.EncodeToString(u.Avatar)
	}
	return meta
}

// Chat is the tagged union over chat variants. Only the fields matching
// Kind are set:
//
//   - KindServer: Description, MemberCount, and optionally Subchannel
//   - KindThread: ParentServerID, ParentSubchannelID
//   - KindDM: Recipient
//   - KindGroup: Owner, Participants
type Chat struct {
	Kind      ChatKind
	ID        string
	Name      string
	CreatedAt time.Time

	Description string
	MemberCount int
	Subchannel  *Chat

	ParentServerID     string
	ParentSubchannelID string

	Recipient *User

	Owner        *User
	Participants []User
}

// Meta renders the chat document for the sink.
func (c *Chat) Meta() map[string]any {
	meta := map[string]any{
		"id":   c.ID,
		"type": string(c.Kind),
		"date": SplitTime(c.CreatedAt).Meta(),
	}
	if c.Name != "" {
		meta["name"] = c.Name
	}

	switch c.Kind {
	case KindServer:
		if c.Description != "" {
			meta["info"] = c.Description
		}
		if c.MemberCount > 0 {
			meta["participants"] = c.MemberCount
		}
		if c.Subchannel != nil {
			meta["subchannel"] = c.Subchannel.Meta()
		}
	case KindThread:
		meta["parent"] = map[string]any{
			"chat":       c.ParentServerID,
			"subchannel": c.ParentSubchannelID,
		}
	case KindDM:
		if c.Recipient != nil {
			meta["user"] = c.Recipient.Meta()
		}
	case KindGroup:
		if c.Owner != nil {
			meta["owner"] = c.Owner.Meta()
		}
		users := make([]map[string]any, 0, len(c.Participants))
		for _, u := range c.Participants {
			users = append(users, u.Meta())
		}
		meta["users"] = users
	}
	return meta
}

// Attachment is a file attached to a message.
type Attachment struct {
	ID          string
	Filename    string
	URL         string
	ProxyURL    string
	ContentType string
}

// IsImage reports whether the attachment carries image content.
func (a Attachment) IsImage() bool {
	return len(a.ContentType) >= 6 && a.ContentType[:6] == "image/"
}

func (a Attachment) Meta() map[string]any {
	meta := map[string]any{
		"id":        a.ID,
		"filename":  a.Filename,
		"url":       a.URL,
		"proxy_url": a.ProxyURL,
	}
	if a.ContentType != "" {
		meta["type"] = a.ContentType
	}
	return meta
}

// EmbedField is one name/value pair of a rich embed. An absent inline flag
// unpacks to false, the more verbose rendering.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type EmbedFooter struct {
	Text    string
	IconURL string
}

// Embed is the structured part of a rich embed relevant to flattening.
type Embed struct {
	Title       string
	URL         string
	Description string
	Fields      []EmbedField
	Footer      *EmbedFooter
}

// Reference identifies a message this message replies to or relates to.
// All fields are optional.
type Reference struct {
	MessageID string
	GuildID   string
	ChannelID string
}

func (r *Reference) Meta() map[string]any {
	meta := map[string]any{}
	if r.MessageID != "" {
		meta["message_id"] = r.MessageID
	}
	if r.GuildID != "" {
		meta["guild_id"] = r.GuildID
	}
	if r.ChannelID != "" {
		meta["channel_id"] = r.ChannelID
	}
	return meta
}

// Mentions collects who a message pings.
type Mentions struct {
	UserIDs  []string
	RoleIDs  []string
	Everyone bool
}

func (m Mentions) isZero() bool {
	return len(m.UserIDs) == 0 && len(m.RoleIDs) == 0 && !m.Everyone
}

// Message is the root record handed to the sink.
type Message struct {
	ID        string
	Sender    User
	Chat      *Chat
	Thread    *Chat
	CreatedAt time.Time
	EditedAt  *time.Time

	Reference *Reference
	// ReplyTo is set when the reference resolves to a same-scope reply.
	ReplyTo string
	// CrossReference is set when the reference stays in the same guild
	// but points at a different subchannel.
	CrossReference string

	Attachments []Attachment
	Embeds      []Embed

	// TextContent is the raw text plus flattened embed text, newline
	// joined.
	TextContent string

	// URL is the web link to the message, when guild-scoped.
	URL string

	Mentions Mentions
}

// Meta renders the message document with type "message". Image records
// derived from attachments reuse this document via ImageMeta.
func (m *Message) Meta() map[string]any {
	meta := map[string]any{
		"id":     m.ID,
		"type":   "message",
		"sender": m.Sender.Meta(),
		"date":   SplitTime(m.CreatedAt).Meta(),
		"data":   m.TextContent,
	}
	if m.Chat != nil {
		meta["chat"] = m.Chat.Meta()
	}
	if m.Thread != nil {
		meta["thread"] = m.Thread.Meta()
	}
	if m.EditedAt != nil {
		meta["edit_date"] = SplitTime(*m.EditedAt).Meta()
	}
	if m.Reference != nil {
		meta["reference"] = m.Reference.Meta()
	}
	if m.ReplyTo != "" {
		meta["reply_to"] = m.ReplyTo
	}
	if m.CrossReference != "" {
		meta["cross_reference"] = m.CrossReference
	}
	if len(m.Attachments) > 0 {
		atts := make([]map[string]any, 0, len(m.Attachments))
		for _, a := range m.Attachments {
			atts = append(atts, a.Meta())
		}
		meta["attachments"] = atts
	}
	if !m.Mentions.isZero() {
		mentions := map[string]any{}
		if len(m.Mentions.UserIDs) > 0 {
			mentions["users"] = m.Mentions.UserIDs
		}
		if len(m.Mentions.RoleIDs) > 0 {
			mentions["roles"] = m.Mentions.RoleIDs
		}
		if m.Mentions.Everyone {
			mentions["everyone"] = true
		}
		meta["mentions"] = mentions
	}
	if m.URL != "" {
		meta["url"] = m.URL
	}
	return meta
}

// ImageMeta renders the document for an image attachment record. It shares
// the message metadata with type "image" and the attachment detail
// attached.
func (m *Message) ImageMeta(a Attachment) map[string]any {
	meta := m.Meta()
	meta["type"] = "image"
	meta["attachment"] = a.Meta()
	return meta
}
