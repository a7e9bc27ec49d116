package scan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/ail-project/ail-feeder-discord/internal/assemble"
)

// Monitor feeds gateway message-create events through the assembler until
// the context is cancelled. Chat scope is resolved per event over REST;
// discordgo caches the lookups in its state.
func (s *Scanner) Monitor(ctx context.Context, gateway *discordgo.Session) error {
	remove := gateway.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if ctx.Err() != nil {
			return
		}
		scope, err := s.resolveScope(m.Message)
		if err != nil {
			s.logger.Warn("resolve message scope failed", slog.String("message_id", m.ID), slog.Any("error", err))
			return
		}
		if _, err := s.asm.Assemble(ctx, m.Message, scope, s.cfg.Options); err != nil {
			s.logger.Error("assemble failed", slog.String("message_id", m.ID), slog.Any("error", err))
		}
	})
	defer remove()

	if err := gateway.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	s.logger.Info("monitoring gateway events")

	<-ctx.Done()
	return gateway.Close()
}

func (s *Scanner) resolveScope(m *discordgo.Message) (assemble.Scope, error) {
	scope := assemble.Scope{}

	ch, err := s.session.Channel(m.ChannelID)
	if err != nil {
		return scope, fmt.Errorf("fetch channel %s: %w", m.ChannelID, err)
	}
	scope.Channel = ch

	if ch.IsThread() && ch.ParentID != "" {
		if parent, err := s.session.Channel(ch.ParentID); err == nil {
			scope.Parent = parent
		}
	}

	if m.GuildID != "" {
		guild, err := s.session.Guild(m.GuildID)
		if err != nil {
			return scope, fmt.Errorf("fetch guild %s: %w", m.GuildID, err)
		}
		scope.Guild = guild
	}
	return scope, nil
}
