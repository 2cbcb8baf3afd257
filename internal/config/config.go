// Package config loads and validates the bot configuration.
//
// Startup-fatal checks live in Validate: a missing token, a malformed
// application or fixed-channel id, or an unknown timezone must stop the
// process before any scheduling starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// snowflakeRE is the basic format check for platform identifiers.
var snowflakeRE = regexp.MustCompile(`^\d{17,20}$`)

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`

	// ApplicationID is the bot's application identifier, checked at startup.
	ApplicationID string `yaml:"application_id"`

	// DefaultTZ is the IANA timezone applied uniformly to all schedules.
	DefaultTZ string `yaml:"default_tz"`

	Fixed    FixedConfig    `yaml:"fixed"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Notifier NotifierConfig `yaml:"notifier"`
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied via ALERTBOT_TOKEN.
	Token       string        `yaml:"token"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

type FixedConfig struct {
	// ChannelID is the destination for the fixed minute table, same format
	// check as ApplicationID.
	ChannelID string `yaml:"channel_id"`
	// Mention is prepended to every fixed broadcast; empty disables tagging.
	Mention string `yaml:"mention"`
	// Messages overrides the built-in minute -> message table when non-empty.
	Messages map[int]string `yaml:"messages"`
}

type AlertsConfig struct {
	MaxPerUser       int `yaml:"max_per_user"`
	MaxOffsetMinutes int `yaml:"max_offset_minutes"`
}

type NotifierConfig struct {
	Workers    int `yaml:"workers"`
	QueueSize  int `yaml:"queue_size"`
	RatePerSec int `yaml:"rate_per_sec"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
	File    string `yaml:"file"`
}

type StorageConfig struct {
	// Driver is "none" (default) or "sqlite".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Load reads, strictly decodes and validates the config file. The bot token
// may come from the ALERTBOT_TOKEN environment variable instead of the file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(string(b)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if env := strings.TrimSpace(os.Getenv("ALERTBOT_TOKEN")); env != "" {
		cfg.Telegram.Token = env
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("missing telegram token (set telegram.token or ALERTBOT_TOKEN)")
	}
	if !snowflakeRE.MatchString(strings.TrimSpace(c.ApplicationID)) {
		return errors.New("missing/invalid application_id (expected 17-20 digits)")
	}
	if !snowflakeRE.MatchString(strings.TrimSpace(c.Fixed.ChannelID)) {
		return errors.New("missing/invalid fixed.channel_id (expected 17-20 digits)")
	}
	if _, err := c.FixedChannelID(); err != nil {
		return fmt.Errorf("fixed.channel_id: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("default_tz: %w", err)
	}
	for m := range c.Fixed.Messages {
		if m < 0 || m > 59 {
			return fmt.Errorf("fixed.messages: minute %d out of range", m)
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "none", "sqlite":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	return nil
}

// FixedChannelID parses the fixed destination id.
func (c *Config) FixedChannelID() (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(c.Fixed.ChannelID), 10, 64)
}

// Location resolves the configured timezone, defaulting to Asia/Taipei.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.DefaultTZ)
	if tz == "" {
		tz = "Asia/Taipei"
	}
	return time.LoadLocation(tz)
}
