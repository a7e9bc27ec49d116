// Package assemble builds one canonical message record from a raw Discord
// message and decides what reaches the sink. One message is assembled at a
// time; records are emitted in discovery order.
package assemble

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/ail-project/ail-feeder-discord/internal/enrich"
	"github.com/ail-project/ail-feeder-discord/internal/profile"
	"github.com/ail-project/ail-feeder-discord/internal/schema"
	"github.com/ail-project/ail-feeder-discord/internal/unpack"
	"github.com/ail-project/ail-feeder-discord/internal/urlscan"
)

const (
	// SourceMessage labels message and image records on the sink side.
	SourceMessage = "ail_feeder_discord"
	// SourceURL labels extracted-link records.
	SourceURL = "ail_feeder_urlextract"

	mediaTimeout  = 30 * time.Second
	maxMediaBytes = 50 << 20
)

// Sink accepts one normalized record plus its raw payload.
type Sink interface {
	Submit(ctx context.Context, meta map[string]any, payload []byte, source, sourceUUID string) error
}

// Enricher extracts article metadata from one external URL.
type Enricher interface {
	Enrich(ctx context.Context, link string) (enrich.Article, []byte, error)
}

// Options control per-message behavior.
type Options struct {
	// DownloadMedia emits image attachments as their own records.
	DownloadMedia bool
	// EnrichURLs forwards external links to page enrichment.
	EnrichURLs bool
}

// Scope carries the raw chat containers a message was discovered in. The
// orchestrator resolves them once per channel rather than per message.
type Scope struct {
	// Guild is nil for private channels.
	Guild *discordgo.Guild
	// Channel is the channel or thread the message lives in.
	Channel *discordgo.Channel
	// Parent is the thread's parent subchannel when Channel is a
	// thread.
	Parent *discordgo.Channel
}

// Assembler orchestrates unpacking, embed flattening, reply resolution
// and URL classification for one message at a time.
type Assembler struct {
	logger     *slog.Logger
	profiles   *profile.Cache
	sink       Sink
	enricher   Enricher
	media      *http.Client
	sourceUUID string

	// OnInvite is called for every invite link found in message text.
	// The scan orchestrator hooks guild joins in here.
	OnInvite func(ctx context.Context, code string)
}

func New(log *slog.Logger, profiles *profile.Cache, sink Sink, enricher Enricher, sourceUUID string) *Assembler {
	if log == nil {
		log = slog.Default()
	}
	return &Assembler{
		logger:     log.With(slog.String("component", "assemble")),
		profiles:   profiles,
		sink:       sink,
		enricher:   enricher,
		media:      &http.Client{Timeout: mediaTimeout},
		sourceUUID: sourceUUID,
	}
}

// Assemble normalizes raw into a canonical record and forwards it to the
// sink: the message record when its text content is non-empty, one image
// record per image attachment when media download is enabled, and one
// record per enriched external link. An unknown chat kind aborts the
// message with an error; enrichment and sink failures degrade and
// continue.
func (a *Assembler) Assemble(ctx context.Context, raw *discordgo.Message, scope Scope, opts Options) (*schema.Message, error) {
	if raw.Author == nil {
		return nil, fmt.Errorf("message %s has no author", raw.ID)
	}

	msg := &schema.Message{
		ID:        raw.ID,
		CreatedAt: raw.Timestamp,
		EditedAt:  raw.EditedTimestamp,
		Mentions:  unpack.MessageMentions(raw),
	}

	sender := unpack.Member(raw.Author, raw.Member)
	msg.Sender = a.profiles.GetOrFetch(ctx, sender)

	if err := a.attachChat(msg, scope); err != nil {
		return nil, err
	}

	for _, att := range raw.Attachments {
		if att != nil {
			msg.Attachments = append(msg.Attachments, unpack.Attachment(att))
		}
	}

	parts := []string{raw.Content}
	for _, e := range raw.Embeds {
		if e == nil {
			continue
		}
		embed := unpack.Embed(e)
		msg.Embeds = append(msg.Embeds, embed)
		parts = append(parts, unpack.FlattenEmbed(embed))
	}
	msg.TextContent = strings.Join(parts, "\n")

	msg.Reference = unpack.Reference(raw.MessageReference)
	msg.ReplyTo, msg.CrossReference = resolveReply(msg.Chat, msg.Reference)

	// Classification runs over the raw text only; embed content is
	// carried structurally.
	links := urlscan.Extract(raw.Content)

	if strings.TrimSpace(msg.TextContent) != "" {
		a.submit(ctx, msg.Meta(), []byte(msg.TextContent), SourceMessage)
	}

	a.handleLinks(ctx, msg, raw, links, opts)

	if opts.DownloadMedia {
		a.emitImages(ctx, msg)
	}

	return msg, nil
}

func (a *Assembler) attachChat(msg *schema.Message, scope Scope) error {
	if scope.Channel == nil {
		return nil
	}

	if scope.Guild == nil {
		chat, err := unpack.Channel(scope.Channel)
		if err != nil {
			return err
		}
		msg.Chat = chat
		return nil
	}

	chat := unpack.Guild(scope.Guild)
	if scope.Channel.IsThread() {
		msg.Thread = unpack.Thread(scope.Channel)
		if scope.Parent != nil {
			chat.Subchannel = unpack.Subchannel(scope.Parent)
		}
	} else {
		sub, err := unpack.Channel(scope.Channel)
		if err != nil {
			return err
		}
		chat.Subchannel = sub
	}
	msg.Chat = chat
	msg.URL = fmt.Sprintf("https://discord.com/channels/%s/%s/%s", scope.Guild.ID, scope.Channel.ID, msg.ID)
	return nil
}

func (a *Assembler) handleLinks(ctx context.Context, msg *schema.Message, raw *discordgo.Message, links []urlscan.Link, opts Options) {
	for _, link := range links {
		switch link.Class {
		case urlscan.ClassInvite:
			if a.OnInvite != nil && link.InviteCode != "" {
				a.OnInvite(ctx, link.InviteCode)
			}
		case urlscan.ClassSelf:
			// Platform links are never enriched.
		case urlscan.ClassExternal:
			if opts.EnrichURLs {
				a.emitLink(ctx, msg, raw, link)
			}
		}
	}
}

// emitLink submits one extracted external link. Enrichment failures
// degrade the record to the link itself plus whatever raw embed fields
// the message carried.
func (a *Assembler) emitLink(ctx context.Context, msg *schema.Message, raw *discordgo.Message, link urlscan.Link) {
	meta := map[string]any{
		"parent:discord:message_id": msg.ID,
		"discord:url-extracted":     link.Raw,
	}

	article, payload, err := a.enricher.Enrich(ctx, link.Raw)
	if err != nil {
		a.logger.Warn("enrichment failed", slog.String("url", link.Raw), slog.Any("error", err))
		if objects := rawEmbedObjects(raw); len(objects) > 0 {
			meta["embedded-objects"] = objects
		}
		if len(payload) == 0 {
			payload = []byte(link.Raw)
		}
	} else {
		for k, v := range article.Meta() {
			meta[k] = v
		}
	}

	a.submit(ctx, meta, payload, SourceURL)
}

// emitImages submits each image attachment as its own record sharing the
// message metadata.
func (a *Assembler) emitImages(ctx context.Context, msg *schema.Message) {
	for _, att := range msg.Attachments {
		if !att.IsImage() {
			continue
		}
		payload, err := a.download(ctx, att.URL)
		if err != nil {
			a.logger.Warn("media download failed", slog.String("url", att.URL), slog.Any("error", err))
			continue
		}
		a.submit(ctx, msg.ImageMeta(att), payload, SourceMessage)
	}
}

func (a *Assembler) download(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", link, err)
	}
	resp, err := a.media.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", link, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", link, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
}

func (a *Assembler) submit(ctx context.Context, meta map[string]any, payload []byte, source string) {
	if a.sink == nil {
		return
	}
	if err := a.sink.Submit(ctx, meta, payload, source, a.sourceUUID); err != nil {
		a.logger.Error("sink submit failed", slog.String("source", source), slog.Any("error", err))
	}
}

// rawEmbedObjects projects the verbatim embed fields used when a link
// record degrades.
func rawEmbedObjects(raw *discordgo.Message) []map[string]any {
	var objects []map[string]any
	for _, e := range raw.Embeds {
		if e == nil {
			continue
		}
		obj := map[string]any{}
		if e.Title != "" {
			obj["title"] = e.Title
		}
		if e.Type != "" {
			obj["type"] = string(e.Type)
		}
		if e.URL != "" {
			obj["url"] = e.URL
		}
		if e.Description != "" {
			obj["description"] = e.Description
		}
		if len(obj) > 0 {
			objects = append(objects, obj)
		}
	}
	return objects
}
