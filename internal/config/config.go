// Package config loads process configuration from the environment, with an
// optional YAML file underneath it. Environment variables always win, so a
// deployment can ship a config file and still override single keys per host.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v3"
)

// DefaultTutorialVideoURL is used when no tutorial link is configured.
const DefaultTutorialVideoURL = "https://youtube.com/shorts/UhccqnGY3PY?si=1aswpXBhcFP8L8tM"

type Config struct {
	// Token is the Telegram bot token.
	Token string `yaml:"token"`
	// DatabasePath is the sqlite database file path.
	DatabasePath string `yaml:"database_path"`
	// AdminID is the owner's Telegram user ID. It is kept as a string and
	// compared by exact equality against the sender ID; there is no role
	// system, just the one superuser.
	AdminID string `yaml:"admin_id"`

	// ChannelID and GroupID are the chats a user must join before the bot
	// serves them. Either may be a "@username" or a numeric "-100..." ID.
	// Both empty disables verification entirely. These are fixed for the
	// lifetime of the process and are never hot-reloaded.
	ChannelID string `yaml:"channel_id"`
	GroupID   string `yaml:"group_id"`

	TutorialVideoURL string `yaml:"tutorial_video_url"`
	ListenAddr       string `yaml:"listen_addr"`
	// DigestCron, when set, schedules a periodic stats digest to the admin
	// (cron spec, e.g. "0 9 * * *"). Empty disables the digest.
	DigestCron string `yaml:"digest_cron"`

	LogLevel   string `yaml:"log_level"`
	LogConsole bool   `yaml:"log_console"`
}

func defaults() Config {
	return Config{
		TutorialVideoURL: DefaultTutorialVideoURL,
		ListenAddr:       ":8080",
		LogLevel:         "info",
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (if any), then environment variables. A .env file in the working
// directory is folded into the environment first, best-effort.
//
// A MissingKeysError is returned when required values are absent so the caller
// can log the full list before exiting.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		if err := readFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	if missing := cfg.missingRequired(); len(missing) > 0 {
		return Config{}, &MissingKeysError{Keys: missing}
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	// Unknown keys are almost always typos; reject them outright.
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	envStr("BOT_TOKEN", &cfg.Token)
	envStr("DATABASE_PATH", &cfg.DatabasePath)
	envStr("ADMIN_USER_ID", &cfg.AdminID)
	envStr("CHANNEL_ID", &cfg.ChannelID)
	envStr("GROUP_ID", &cfg.GroupID)
	envStr("TUTORIAL_VIDEO_URL", &cfg.TutorialVideoURL)
	envStr("LISTEN_ADDR", &cfg.ListenAddr)
	envStr("DIGEST_CRON", &cfg.DigestCron)
	envStr("LOG_LEVEL", &cfg.LogLevel)
	envBool("LOG_CONSOLE", &cfg.LogConsole)
}

func envStr(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
}

func envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}
}

func (c Config) missingRequired() []string {
	var missing []string
	if strings.TrimSpace(c.Token) == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		missing = append(missing, "DATABASE_PATH")
	}
	if strings.TrimSpace(c.AdminID) == "" {
		missing = append(missing, "ADMIN_USER_ID")
	}
	return missing
}

// RequiredChat is one chat a user must be a member of.
type RequiredChat struct {
	// Label is "channel" or "group"; user-facing prompts use it.
	Label string
	// Ref is the raw chat reference ("@name" or numeric ID).
	Ref string
}

// RequiredChats returns the configured verification chats in a fixed order.
// An empty slice means verification is disabled.
func (c Config) RequiredChats() []RequiredChat {
	var chats []RequiredChat
	if v := strings.TrimSpace(c.ChannelID); v != "" {
		chats = append(chats, RequiredChat{Label: "channel", Ref: v})
	}
	if v := strings.TrimSpace(c.GroupID); v != "" {
		chats = append(chats, RequiredChat{Label: "group", Ref: v})
	}
	return chats
}

// MissingKeysError carries every absent required key so startup can report
// them all at once instead of one per restart.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return "missing required configuration: " + strings.Join(e.Keys, ", ")
}
