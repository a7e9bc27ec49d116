package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"

	"github.com/ail-project/ail-feeder-discord/internal/ail"
	"github.com/ail-project/ail-feeder-discord/internal/assemble"
	"github.com/ail-project/ail-feeder-discord/internal/enrich"
	"github.com/ail-project/ail-feeder-discord/internal/logger"
	"github.com/ail-project/ail-feeder-discord/internal/profile"
	"github.com/ail-project/ail-feeder-discord/internal/scan"
	"github.com/ail-project/ail-feeder-discord/internal/unpack"
)

// buildScanner wires the whole pipeline: session, sink, profile cache,
// enricher, assembler, scanner. A sink that cannot be reached is fatal
// here, before any scanning begins.
func buildScanner(ctx context.Context) (*scan.Scanner, *discordgo.Session, error) {
	session, err := discordgo.New(cfg.Discord.Token)
	if err != nil {
		return nil, nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsAll

	var sink assemble.Sink
	if cfg.AIL.Enabled {
		client := ail.NewClient(logger.L, cfg.AIL.URL, cfg.AIL.APIKey, cfg.AIL.VerifyCert)
		if err := client.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("ail instance unreachable, check [ail] url and api_key: %w", err)
		}
		sink = client
	} else {
		logger.L.Info("ail submission disabled, records will not be forwarded")
	}

	profiles := profile.NewCache(logger.L, scan.NewProfileFetcher(session))
	enricher := enrich.NewEnricher(logger.L)
	asm := assemble.New(logger.L, profiles, sink, enricher, cfg.AIL.FeederUUID)

	scanner := scan.New(logger.L, session, asm, scan.Config{
		MessageLimit: cfg.Scan.MessageLimit,
		JoinDelay:    time.Duration(cfg.Scan.JoinDelaySec) * time.Second,
		GuildDelay:   time.Duration(cfg.Scan.GuildDelaySec) * time.Second,
		Options: assemble.Options{
			DownloadMedia: cfg.Scan.DownloadMedia,
			EnrichURLs:    cfg.Scan.EnrichURLs,
		},
	})
	return scanner, session, nil
}

func newScanCmd() *cobra.Command {
	var guildID string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan joined guilds, then join and scan configured invite codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			scanner, _, err := buildScanner(ctx)
			if err != nil {
				return err
			}

			if guildID != "" {
				return scanner.ScanGuild(ctx, guildID)
			}

			if err := scanner.ScanAll(ctx); err != nil {
				return err
			}
			for _, code := range cfg.Scan.InviteCodes {
				if ctx.Err() != nil {
					break
				}
				scanner.JoinByInvite(ctx, code)
			}
			return ctx.Err()
		},
	}
	cmd.Flags().StringVar(&guildID, "guild", "", "scan a single guild instead of all")
	return cmd
}

func newMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Feed live gateway messages to the sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			scanner, session, err := buildScanner(ctx)
			if err != nil {
				return err
			}
			return scanner.Monitor(ctx, session)
		},
	}
}

func newChatsCmd() *cobra.Command {
	var withChannels bool
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List joined guilds and private channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, session, err := buildScanner(cmd.Context())
			if err != nil {
				return err
			}
			return listChats(session, withChannels)
		},
	}
	cmd.Flags().BoolVar(&withChannels, "channels", false, "include each guild's subchannels")
	return cmd
}

func newEntityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entity <id>",
		Short: "Look up a guild, channel or user by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, session, err := buildScanner(cmd.Context())
			if err != nil {
				return err
			}
			return lookupEntity(session, args[0])
		},
	}
}

func newJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <invite-code>...",
		Short: "Join guilds by invite code and scan them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			scanner, _, err := buildScanner(ctx)
			if err != nil {
				return err
			}
			for _, code := range args {
				if ctx.Err() != nil {
					break
				}
				scanner.JoinByInvite(ctx, code)
			}
			return ctx.Err()
		},
	}
}

func newLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave <guild-id>",
		Short: "Leave a guild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner, _, err := buildScanner(cmd.Context())
			if err != nil {
				return err
			}
			return scanner.LeaveGuild(args[0])
		},
	}
}

func listChats(session *discordgo.Session, withChannels bool) error {
	var chats []map[string]any

	guilds, err := session.UserGuilds(100, "", "", true)
	if err != nil {
		return fmt.Errorf("list guilds: %w", err)
	}
	for _, g := range guilds {
		guild, err := session.Guild(g.ID)
		if err != nil {
			logger.L.Warn("fetch guild failed", "guild_id", g.ID, "error", err)
			continue
		}
		meta := unpack.Guild(guild).Meta()
		if withChannels {
			channels, err := session.GuildChannels(g.ID)
			if err != nil {
				logger.L.Warn("fetch guild channels failed", "guild_id", g.ID, "error", err)
			} else {
				var subs []map[string]any
				for _, ch := range channels {
					chat, err := unpack.Channel(ch)
					if err != nil {
						logger.L.Error("unknown chat kind", "channel_id", ch.ID, "error", err)
						continue
					}
					subs = append(subs, chat.Meta())
				}
				meta["subchannels"] = subs
			}
		}
		chats = append(chats, meta)
	}

	private, err := session.UserChannels()
	if err != nil {
		logger.L.Warn("fetch private channels failed", "error", err)
	}
	for _, ch := range private {
		chat, err := unpack.Channel(ch)
		if err != nil {
			logger.L.Error("unknown chat kind", "channel_id", ch.ID, "error", err)
			continue
		}
		chats = append(chats, chat.Meta())
	}

	return printJSON(chats)
}

func lookupEntity(session *discordgo.Session, id string) error {
	if guild, err := session.Guild(id); err == nil {
		meta := unpack.Guild(guild).Meta()
		if channels, err := session.GuildChannels(id); err == nil {
			var subs []map[string]any
			for _, ch := range channels {
				if chat, err := unpack.Channel(ch); err == nil {
					subs = append(subs, chat.Meta())
				}
			}
			meta["subchannels"] = subs
		}
		return printJSON(meta)
	}
	if ch, err := session.Channel(id); err == nil {
		chat, err := unpack.Channel(ch)
		if err != nil {
			return err
		}
		return printJSON(chat.Meta())
	}
	if user, err := session.User(id); err == nil {
		return printJSON(unpack.User(user).Meta())
	}
	return fmt.Errorf("no guild, channel or user with id %s", id)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}
