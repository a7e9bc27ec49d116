// Package scan walks guilds, channels and threads, feeding every
// discovered message through the assembler. It owns the scanned-guild set
// used to deduplicate invite joins.
package scan

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/ail-project/ail-feeder-discord/internal/assemble"
	"github.com/ail-project/ail-feeder-discord/internal/unpack"
)

const guildPageSize = 100

// Session is the REST surface the scanner needs from a Discord session.
type Session interface {
	UserGuilds(limit int, beforeID, afterID string, withCounts bool, options ...discordgo.RequestOption) ([]*discordgo.UserGuild, error)
	UserChannels(options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ThreadsArchived(channelID string, before *time.Time, limit int, options ...discordgo.RequestOption) (*discordgo.ThreadsList, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	Invite(inviteID string, options ...discordgo.RequestOption) (*discordgo.Invite, error)
	InviteAccept(inviteID string, options ...discordgo.RequestOption) (*discordgo.Invite, error)
	GuildLeave(guildID string, options ...discordgo.RequestOption) error
}

// Config bounds one scanner.
type Config struct {
	// MessageLimit caps how many messages are fetched per channel or
	// thread.
	MessageLimit int
	// JoinDelay is waited after accepting an invite, before scanning
	// the joined guild. Joining too fast risks a platform ban.
	JoinDelay time.Duration
	// GuildDelay is waited between guild scans.
	GuildDelay time.Duration
	Options    assemble.Options
}

// Scanner drives full scans and the gateway monitor. The scanned-guild
// set lives for the process lifetime and never shrinks.
type Scanner struct {
	logger  *slog.Logger
	session Session
	asm     *assemble.Assembler
	cfg     Config

	mu      sync.Mutex
	scanned map[string]struct{}
}

// New builds a scanner and hooks the assembler's invite handling to it.
func New(log *slog.Logger, session Session, asm *assemble.Assembler, cfg Config) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	s := &Scanner{
		logger:  log.With(slog.String("component", "scan")),
		session: session,
		asm:     asm,
		cfg:     cfg,
		scanned: make(map[string]struct{}),
	}
	if asm != nil {
		asm.OnInvite = s.JoinByInvite
	}
	return s
}

// ScanAll walks every guild the account is on, then its private channels.
// The guilds are marked scanned up front so invites resolving to them are
// no-ops.
func (s *Scanner) ScanAll(ctx context.Context) error {
	afterID := ""
	for {
		guilds, err := s.session.UserGuilds(guildPageSize, "", afterID, false)
		if err != nil {
			return err
		}
		for _, g := range guilds {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.markScanned(g.ID)
			s.logger.Info("scanning guild", slog.String("guild_id", g.ID), slog.String("name", g.Name))
			if err := s.ScanGuild(ctx, g.ID); err != nil {
				return err
			}
			s.sleep(ctx, s.cfg.GuildDelay)
			afterID = g.ID
		}
		if len(guilds) < guildPageSize {
			break
		}
	}

	channels, err := s.session.UserChannels()
	if err != nil {
		if isStatus(err, http.StatusForbidden) {
			s.logger.Warn("private channels forbidden, skipping")
			return nil
		}
		return err
	}
	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.scanChannel(ctx, nil, ch)
	}
	return nil
}

// ScanGuild walks one guild's channels and forum threads. A vanished
// guild is a skip with a notice, not an error.
func (s *Scanner) ScanGuild(ctx context.Context, guildID string) error {
	guild, err := s.session.Guild(guildID)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			s.logger.Warn("guild not found, skipping", slog.String("guild_id", guildID))
			return nil
		}
		return err
	}

	channels, err := s.session.GuildChannels(guildID)
	if err != nil {
		if isStatus(err, http.StatusForbidden) || isStatus(err, http.StatusNotFound) {
			s.logger.Warn("guild channels unavailable, skipping", slog.String("guild_id", guildID), slog.Any("error", err))
			return nil
		}
		return err
	}

	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch ch.Type {
		case discordgo.ChannelTypeGuildCategory:
			// Containers only, no messages.
		case discordgo.ChannelTypeGuildForum:
			s.scanForum(ctx, guild, ch)
		default:
			if ch.LastMessageID == "" {
				continue
			}
			s.scanChannel(ctx, guild, ch)
		}
	}
	return nil
}

// scanForum walks the archived threads of a forum channel.
func (s *Scanner) scanForum(ctx context.Context, guild *discordgo.Guild, forum *discordgo.Channel) {
	list, err := s.session.ThreadsArchived(forum.ID, nil, 0)
	if err != nil {
		if isStatus(err, http.StatusForbidden) {
			s.logger.Warn("forum threads forbidden, skipping", slog.String("channel_id", forum.ID))
			return
		}
		s.logger.Error("list forum threads failed", slog.String("channel_id", forum.ID), slog.Any("error", err))
		return
	}
	for _, thread := range list.Threads {
		if ctx.Err() != nil {
			return
		}
		s.scanThread(ctx, guild, thread, forum)
	}
}

func (s *Scanner) scanThread(ctx context.Context, guild *discordgo.Guild, thread, parent *discordgo.Channel) {
	scope := assemble.Scope{Guild: guild, Channel: thread, Parent: parent}
	s.scanMessages(ctx, thread.ID, scope)
}

// scanChannel walks one channel's recent messages. Forbidden channels are
// skipped, not fatal.
func (s *Scanner) scanChannel(ctx context.Context, guild *discordgo.Guild, ch *discordgo.Channel) {
	scope := assemble.Scope{Guild: guild, Channel: ch}
	if ch.IsThread() && ch.ParentID != "" {
		if parent, err := s.session.Channel(ch.ParentID); err == nil {
			scope.Parent = parent
		}
	}
	s.scanMessages(ctx, ch.ID, scope)
}

// scanMessages pages through a channel newest-first up to the message
// budget.
func (s *Scanner) scanMessages(ctx context.Context, channelID string, scope assemble.Scope) {
	remaining := s.cfg.MessageLimit
	beforeID := ""
	for remaining > 0 {
		pageSize := remaining
		if pageSize > 100 {
			pageSize = 100
		}
		messages, err := s.session.ChannelMessages(channelID, pageSize, beforeID, "", "")
		if err != nil {
			if isStatus(err, http.StatusForbidden) {
				s.logger.Warn("channel forbidden, skipping", slog.String("channel_id", channelID))
			} else if isStatus(err, http.StatusNotFound) {
				s.logger.Warn("channel not found, skipping", slog.String("channel_id", channelID))
			} else {
				s.logger.Error("fetch messages failed", slog.String("channel_id", channelID), slog.Any("error", err))
			}
			return
		}
		if len(messages) == 0 {
			return
		}

		for _, m := range messages {
			if ctx.Err() != nil {
				return
			}
			if _, err := s.asm.Assemble(ctx, m, scope, s.cfg.Options); err != nil {
				var unknown *unpack.UnknownChatKindError
				if errors.As(err, &unknown) {
					// A channel with an unmapped kind fails every
					// message the same way; surface once and move on.
					s.logger.Error("unknown chat kind, skipping channel", slog.String("channel_id", channelID), slog.Any("error", err))
					return
				}
				s.logger.Error("assemble failed", slog.String("message_id", m.ID), slog.Any("error", err))
			}
			beforeID = m.ID
			remaining--
			if remaining == 0 {
				return
			}
		}
	}
}

// JoinByInvite resolves an invite code, joins the guild when it has not
// been scanned yet and scans it. Re-encountering an invite to a known
// guild is a no-op.
func (s *Scanner) JoinByInvite(ctx context.Context, code string) {
	invite, err := s.session.Invite(code)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			s.logger.Warn("invite not found", slog.String("code", code))
			return
		}
		s.logger.Error("resolve invite failed", slog.String("code", code), slog.Any("error", err))
		return
	}
	if invite.Guild == nil {
		s.logger.Warn("invite resolves to no guild", slog.String("code", code))
		return
	}

	guildID := invite.Guild.ID
	// Marking before the scan keeps a self-referencing invite from
	// recursing forever.
	if !s.markScanned(guildID) {
		s.logger.Debug("guild already scanned", slog.String("guild_id", guildID))
		return
	}

	if _, err := s.session.InviteAccept(code); err != nil {
		s.logger.Error("join guild failed", slog.String("code", code), slog.String("guild_id", guildID), slog.Any("error", err))
		return
	}
	s.logger.Info("joined guild", slog.String("guild_id", guildID), slog.String("name", invite.Guild.Name))

	s.sleep(ctx, s.cfg.JoinDelay)

	if err := s.ScanGuild(ctx, guildID); err != nil {
		s.logger.Error("scan joined guild failed", slog.String("guild_id", guildID), slog.Any("error", err))
	}
}

// LeaveGuild leaves a guild, treating not-found as already left.
func (s *Scanner) LeaveGuild(guildID string) error {
	if err := s.session.GuildLeave(guildID); err != nil && !isStatus(err, http.StatusNotFound) {
		return err
	}
	return nil
}

// markScanned records a guild in the scanned set. It reports whether the
// guild was new.
func (s *Scanner) markScanned(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scanned[guildID]; ok {
		return false
	}
	s.scanned[guildID] = struct{}{}
	return true
}

// Scanned reports whether a guild is in the scanned set.
func (s *Scanner) Scanned(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.scanned[guildID]
	return ok
}

func (s *Scanner) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func isStatus(err error, code int) bool {
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) && rerr.Response != nil {
		return rerr.Response.StatusCode == code
	}
	return false
}
