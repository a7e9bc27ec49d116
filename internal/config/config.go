// Package config loads and validates the feeder configuration from a TOML
// file.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	DefaultConfigPath      = "etc/feeder.toml"
	DefaultMessageLimit    = 80
	DefaultJoinDelaySec    = 10
	DefaultGuildDelaySec   = 5
	DefaultFetchTimeoutSec = 10
	DefaultSourceMessage   = "ail_feeder_discord"
	DefaultSourceURL       = "ail_feeder_urlextract"
)

type Config struct {
	Log     LogConfig     `toml:"log"`
	AIL     AILConfig     `toml:"ail"`
	Discord DiscordConfig `toml:"discord"`
	Scan    ScanConfig    `toml:"scan"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// AILConfig points the feeder at an AIL framework import API. When Enabled
// is false records are rendered but never submitted, which is useful for
// dry runs.
type AILConfig struct {
	Enabled    bool   `toml:"enabled"`
	URL        string `toml:"url" validate:"required_if=Enabled true,omitempty,url"`
	APIKey     string `toml:"api_key" validate:"required_if=Enabled true"`
	FeederUUID string `toml:"feeder_uuid" validate:"omitempty,uuid"`
	VerifyCert bool   `toml:"verify_cert"`
}

type DiscordConfig struct {
	// Token is passed to the session verbatim. Bot tokens need the
	// "Bot " prefix.
	Token string `toml:"token" validate:"required"`
}

type ScanConfig struct {
	MessageLimit  int      `toml:"message_limit" validate:"gte=0"`
	DownloadMedia bool     `toml:"download_media"`
	EnrichURLs    bool     `toml:"enrich_urls"`
	JoinDelaySec  int      `toml:"join_delay_seconds" validate:"gte=0"`
	GuildDelaySec int      `toml:"guild_delay_seconds" validate:"gte=0"`
	InviteCodes   []string `toml:"invite_codes"`
}

// Load reads the TOML file at path, applies defaults and validates the
// result. Validation failures name the offending setting.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{Level: "info", Format: "text"},
		AIL: AILConfig{VerifyCert: true},
		Scan: ScanConfig{
			MessageLimit:  DefaultMessageLimit,
			EnrichURLs:    true,
			JoinDelaySec:  DefaultJoinDelaySec,
			GuildDelaySec: DefaultGuildDelaySec,
		},
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config file %s not found, copy feeder.toml.sample and update its contents: %w", path, err)
		}
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.AIL.FeederUUID == "" {
		cfg.AIL.FeederUUID = uuid.NewString()
	}

	if err := validator.New().Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return Config{}, fmt.Errorf("config %s: field %s failed %q validation", path, e.Namespace(), e.Tag())
		}
		return Config{}, fmt.Errorf("validate config %s: %w", path, err)
	}

	return cfg, nil
}
