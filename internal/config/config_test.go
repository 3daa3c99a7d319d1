package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("DATABASE_PATH", "/tmp/bot.db")
	t.Setenv("ADMIN_USER_ID", "42")
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"BOT_TOKEN", "DATABASE_PATH", "ADMIN_USER_ID", "CHANNEL_ID", "GROUP_ID",
		"TUTORIAL_VIDEO_URL", "LISTEN_ADDR", "DIGEST_CRON", "LOG_LEVEL", "LOG_CONSOLE",
	} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func TestLoadReportsAllMissingKeys(t *testing.T) {
	clearEnv(t)

	_, err := Load("")
	var miss *MissingKeysError
	if !errors.As(err, &miss) {
		t.Fatalf("Load = %v, want MissingKeysError", err)
	}
	want := []string{"BOT_TOKEN", "DATABASE_PATH", "ADMIN_USER_ID"}
	if len(miss.Keys) != len(want) {
		t.Fatalf("missing keys = %v, want %v", miss.Keys, want)
	}
	for i, k := range want {
		if miss.Keys[i] != k {
			t.Fatalf("missing keys = %v, want %v", miss.Keys, want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	setRequiredEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TutorialVideoURL != DefaultTutorialVideoURL {
		t.Fatalf("TutorialVideoURL = %q", cfg.TutorialVideoURL)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
	if len(cfg.RequiredChats()) != 0 {
		t.Fatalf("RequiredChats = %v, want none", cfg.RequiredChats())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	setRequiredEnv(t)
	t.Setenv("LISTEN_ADDR", ":9999")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "listen_addr: \":8081\"\nlog_level: debug\nchannel_id: \"@mychannel\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Fatalf("env did not win: ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("file value lost: LogLevel = %q", cfg.LogLevel)
	}
	if cfg.ChannelID != "@mychannel" {
		t.Fatalf("ChannelID = %q", cfg.ChannelID)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listne_addr: \":8080\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestRequiredChatsOrderAndLabels(t *testing.T) {
	cfg := Config{ChannelID: "@chan", GroupID: "-100123"}
	chats := cfg.RequiredChats()
	if len(chats) != 2 {
		t.Fatalf("RequiredChats = %v", chats)
	}
	if chats[0].Label != "channel" || chats[0].Ref != "@chan" {
		t.Fatalf("first chat = %+v", chats[0])
	}
	if chats[1].Label != "group" || chats[1].Ref != "-100123" {
		t.Fatalf("second chat = %+v", chats[1])
	}

	if got := (Config{GroupID: " -100 "}).RequiredChats(); len(got) != 1 || got[0].Ref != "-100" {
		t.Fatalf("trimmed group = %v", got)
	}
	if got := (Config{}).RequiredChats(); len(got) != 0 {
		t.Fatalf("empty config chats = %v", got)
	}
}

func TestManagerAppliesOnlyDynamicFields(t *testing.T) {
	base := Config{
		Token:            "secret",
		AdminID:          "42",
		ChannelID:        "@chan",
		TutorialVideoURL: "https://old",
		LogLevel:         "info",
	}
	m := NewManager(base, "", zerolog.Nop())

	next := base
	next.Token = "evil"
	next.ChannelID = "@other"
	next.TutorialVideoURL = "https://new"
	next.LogLevel = "debug"
	m.apply(next)

	cur := m.Current()
	if cur.Token != "secret" || cur.ChannelID != "@chan" {
		t.Fatalf("static fields changed: %+v", cur)
	}
	if cur.TutorialVideoURL != "https://new" || cur.LogLevel != "debug" {
		t.Fatalf("dynamic fields not applied: %+v", cur)
	}
	if m.TutorialVideoURL() != "https://new" {
		t.Fatalf("TutorialVideoURL() = %q", m.TutorialVideoURL())
	}
}
