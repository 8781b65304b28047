// Package bridge implements the messaging bridge (spec.md §4.3): a Slack
// Web API + Socket Mode client that classifies inbound messages, runs
// asynchronous 5-Whys intake on new feature/defect submissions, answers
// questions from a rolling conversation history, and routes suspension-
// thread replies back to paused work items.
package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config mirrors .claude/slack.local.yaml (spec.md §6).
type Config struct {
	Enabled             bool               `mapstructure:"enabled"`
	BotToken            string             `mapstructure:"bot_token"`
	AppToken            string             `mapstructure:"app_token"`
	ChannelID           string             `mapstructure:"channel_id"`
	ChannelPrefix       string             `mapstructure:"channel_prefix"`
	Notify              NotifyConfig       `mapstructure:"notify"`
	Questions           QuestionsConfig    `mapstructure:"questions"`
	ConversationHistory HistoryConfig      `mapstructure:"conversation_history"`
	PollInterval        time.Duration      `mapstructure:"-"`
}

// NotifyConfig toggles which events the bridge posts to chat.
type NotifyConfig struct {
	OnCompletion bool `mapstructure:"on_completion"`
	OnFailure    bool `mapstructure:"on_failure"`
	OnWarning    bool `mapstructure:"on_warning"`
	OnInfo       bool `mapstructure:"on_info"`
}

// QuestionsConfig governs suspension-protocol question posting (spec §4.3.6).
type QuestionsConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	TimeoutMinutes int    `mapstructure:"timeout_minutes"`
	Fallback       string `mapstructure:"fallback"`
}

// HistoryConfig governs the rolling Q&A window (spec §4.3.5).
type HistoryConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	MaxTurns int  `mapstructure:"max_turns"`
}

// DefaultConfig matches the teacher's config.DefaultConfig idiom: safe
// defaults for every field an unset .claude/slack.local.yaml would omit.
func DefaultConfig() *Config {
	return &Config{
		Enabled:       false,
		ChannelPrefix: "ralph",
		Notify: NotifyConfig{
			OnCompletion: true,
			OnFailure:    true,
			OnWarning:    true,
			OnInfo:       false,
		},
		Questions: QuestionsConfig{
			Enabled:        true,
			TimeoutMinutes: 30,
			Fallback:       "proceed with best judgment",
		},
		ConversationHistory: HistoryConfig{
			Enabled:  true,
			MaxTurns: 3,
		},
		PollInterval: 5 * time.Second,
	}
}

// Load reads .claude/slack.local.yaml under projectRoot, falling back to
// DefaultConfig (disabled) if the file doesn't exist, following the
// teacher's config.Load tolerant-missing-file pattern.
func Load(projectRoot string) (*Config, error) {
	path := filepath.Join(projectRoot, ".claude", "slack.local.yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read slack config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse slack config %s: %w", path, err)
	}
	return cfg, nil
}

// ChannelNames enumerates the five role-suffixed channels discovered by
// prefix (spec.md §4.3.2).
func (c *Config) ChannelNames() map[string]string {
	return map[string]string{
		"notifications": c.ChannelPrefix + "-notifications",
		"features":      c.ChannelPrefix + "-features",
		"defects":       c.ChannelPrefix + "-defects",
		"questions":     c.ChannelPrefix + "-questions",
		"reports":       c.ChannelPrefix + "-reports",
	}
}
