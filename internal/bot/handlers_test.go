package bot

import (
	"strings"
	"testing"
	"time"

	"lecturebot/internal/config"
)

func TestNormalizeCommandName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Maths", "maths"},
		{"/maths", "maths"},
		{"  /PHYSICS  ", "physics"},
		{"chemistry", "chemistry"},
	}
	for _, tt := range tests {
		if got := normalizeCommandName(tt.in); got != tt.want {
			t.Errorf("normalizeCommandName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidCommandName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"maths", true},
		{"physik", true},
		{"математика", true},
		{"", false},
		{"maths2", false},
		{"ma-ths", false},
		{"maths!", false},
		{"ma ths", false},
	}
	for _, tt := range tests {
		if got := validCommandName(tt.name); got != tt.ok {
			t.Errorf("validCommandName(%q) = %v, want %v", tt.name, got, tt.ok)
		}
	}
}

func TestCommandToken(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"/maths", "maths", true},
		{"/MATHS", "maths", true},
		{"/maths@LectureBot", "maths", true},
		{"/maths some args", "maths", true},
		{"  /maths  ", "maths", true},
		{"maths", "", false},
		{"hello there", "", false},
		{"/", "", false},
	}
	for _, tt := range tests {
		got, ok := commandToken(tt.text)
		if got != tt.want || ok != tt.ok {
			t.Errorf("commandToken(%q) = (%q, %v), want (%q, %v)", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCapitalize(t *testing.T) {
	if got := capitalize("maths"); got != "Maths" {
		t.Errorf("capitalize(maths) = %q", got)
	}
	if got := capitalize(""); got != "" {
		t.Errorf("capitalize(empty) = %q", got)
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0d 0h 0m 0s"},
		{90 * time.Second, "0d 0h 1m 30s"},
		{26*time.Hour + 3*time.Minute + 5*time.Second, "1d 2h 3m 5s"},
	}
	for _, tt := range tests {
		if got := formatUptime(tt.d); got != tt.want {
			t.Errorf("formatUptime(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestPromptText(t *testing.T) {
	channel := config.RequiredChat{Label: "channel", Ref: "@lectures"}
	group := config.RequiredChat{Label: "group", Ref: "-1001"}

	tests := []struct {
		name       string
		chats      []config.RequiredChat
		wantTarget string
		wantLinks  string
	}{
		{"both", []config.RequiredChat{channel, group}, "Channel and Group", "Invite links expire"},
		{"channel only", []config.RequiredChat{channel}, "Join Our Channel to", "Invite link expires"},
		{"group only", []config.RequiredChat{group}, "Join Our Group to", "Invite link expires"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := promptText(tt.chats)
			if !strings.Contains(got, tt.wantTarget) {
				t.Errorf("prompt missing %q:\n%s", tt.wantTarget, got)
			}
			if !strings.Contains(got, tt.wantLinks) {
				t.Errorf("prompt missing %q:\n%s", tt.wantLinks, got)
			}
		})
	}
}
