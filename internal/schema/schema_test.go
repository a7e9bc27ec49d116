package schema

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTime(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	parts := SplitTime(ts)
	assert.Equal(t, "2024-03-01 12:30:45", parts.Datestamp)
	assert.Equal(t, float64(ts.Unix()), parts.Timestamp)
	assert.Equal(t, "UTC", parts.Timezone)
}

func TestSplitTimeNormalizesZone(t *testing.T) {
	t.Parallel()

	zone := time.FixedZone("CET", 3600)
	parts := SplitTime(time.Date(2024, 3, 1, 13, 0, 0, 0, zone))
	assert.Equal(t, "2024-03-01 12:00:00", parts.Datestamp)
	assert.Equal(t, "UTC", parts.Timezone)
}

func TestUserMetaOptionalFields(t *testing.T) {
	t.Parallel()

	user := User{ID: "u1", Username: "alice", DisplayName: "Alice"}
	meta := user.Meta()
	assert.Equal(t, "u1", meta["id"])
	assert.NotContains(t, meta, "nick")
	assert.NotContains(t, meta, "info")
	assert.NotContains(t, meta, "icon")

	user.Nickname = "queen"
	user.Bio = "hello"
	user.Avatar = []byte{1, 2}
	meta = user.Meta()
	assert.Equal(t, "queen", meta["nick"])
	assert.Equal(t, "hello", meta["info"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{1, 2}), meta["icon"])
}

func TestChatMetaVariants(t *testing.T) {
	t.Parallel()

	server := &Chat{
		Kind:        KindServer,
		ID:          "g1",
		Name:        "ops",
		Description: "desc",
		MemberCount: 10,
		Subchannel:  &Chat{Kind: KindSubchannel, ID: "c1", Name: "general"},
	}
	meta := server.Meta()
	assert.Equal(t, "server", meta["type"])
	assert.Equal(t, "desc", meta["info"])
	assert.Equal(t, 10, meta["participants"])
	sub, ok := meta["subchannel"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "server_channel", sub["type"])

	thread := &Chat{Kind: KindThread, ID: "t1", Name: "incident", ParentServerID: "g1", ParentSubchannelID: "c1"}
	meta = thread.Meta()
	parent, ok := meta["parent"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "g1", parent["chat"])
	assert.Equal(t, "c1", parent["subchannel"])

	recipient := User{ID: "u1", Username: "alice"}
	dm := &Chat{Kind: KindDM, ID: "d1", Recipient: &recipient}
	meta = dm.Meta()
	assert.Equal(t, "dm", meta["type"])
	require.Contains(t, meta, "user")

	owner := User{ID: "u2", Username: "bob"}
	group := &Chat{Kind: KindGroup, ID: "gr1", Owner: &owner, Participants: []User{recipient, owner}}
	meta = group.Meta()
	assert.Equal(t, "group", meta["type"])
	users, ok := meta["users"].([]map[string]any)
	require.True(t, ok)
	assert.Len(t, users, 2)
}

func TestMessageMetaOptionalFields(t *testing.T) {
	t.Parallel()

	msg := &Message{
		ID:          "m1",
		Sender:      User{ID: "u1", Username: "alice"},
		Chat:        &Chat{Kind: KindServer, ID: "g1"},
		CreatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		TextContent: "hello",
	}
	meta := msg.Meta()
	assert.Equal(t, "message", meta["type"])
	assert.Equal(t, "hello", meta["data"])
	assert.NotContains(t, meta, "edit_date")
	assert.NotContains(t, meta, "reference")
	assert.NotContains(t, meta, "reply_to")
	assert.NotContains(t, meta, "cross_reference")
	assert.NotContains(t, meta, "attachments")
	assert.NotContains(t, meta, "mentions")

	edited := msg.CreatedAt.Add(time.Minute)
	msg.EditedAt = &edited
	msg.Reference = &Reference{MessageID: "m0", GuildID: "g1"}
	msg.ReplyTo = "m0"
	msg.Attachments = []Attachment{{ID: "a1", Filename: "f.png"}}
	msg.Mentions = Mentions{UserIDs: []string{"u2"}, Everyone: true}

	meta = msg.Meta()
	assert.Contains(t, meta, "edit_date")
	assert.Equal(t, "m0", meta["reply_to"])
	ref, ok := meta["reference"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "m0", ref["message_id"])
	assert.NotContains(t, ref, "channel_id")
	assert.Contains(t, meta, "attachments")
	mentions, ok := meta["mentions"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, mentions["everyone"])
}

func TestImageMetaSharesMessageMetadata(t *testing.T) {
	t.Parallel()

	msg := &Message{
		ID:          "m1",
		Sender:      User{ID: "u1"},
		CreatedAt:   time.Now(),
		TextContent: "hello",
	}
	att := Attachment{ID: "a1", Filename: "shot.png", ContentType: "image/png"}

	imageMeta := msg.ImageMeta(att)
	assert.Equal(t, "image", imageMeta["type"])
	assert.Equal(t, "m1", imageMeta["id"])
	require.Contains(t, imageMeta, "attachment")

	// The message document is unaffected.
	assert.Equal(t, "message", msg.Meta()["type"])
}

func TestAttachmentIsImage(t *testing.T) {
	t.Parallel()

	assert.True(t, Attachment{ContentType: "image/png"}.IsImage())
	assert.True(t, Attachment{ContentType: "image/jpeg"}.IsImage())
	assert.False(t, Attachment{ContentType: "video/mp4"}.IsImage())
	assert.False(t, Attachment{}.IsImage())
}
