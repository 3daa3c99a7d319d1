package verify

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"

	"lecturebot/internal/config"
)

// fakeChatAPI scripts membership lookups per chat reference.
type fakeChatAPI struct {
	mu sync.Mutex

	// roles maps chat ref to the role reported for any user.
	roles map[string]tele.MemberStatus
	// failAll makes every call return an error.
	failAll bool

	memberCalls  int
	resolveCalls int
}

func (f *fakeChatAPI) ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberCalls++
	if f.failAll {
		return nil, errors.New("api unavailable")
	}
	role, ok := f.roles[chat.Recipient()]
	if !ok {
		return nil, errors.New("chat not found")
	}
	return &tele.ChatMember{Role: role}, nil
}

func (f *fakeChatAPI) ChatByUsername(name string) (*tele.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	if f.failAll {
		return nil, errors.New("api unavailable")
	}
	return &tele.Chat{ID: 1, Username: name}, nil
}

func (f *fakeChatAPI) ChatByID(id int64) (*tele.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	if f.failAll {
		return nil, errors.New("api unavailable")
	}
	return &tele.Chat{ID: id}, nil
}

func newTestVerifier(api ChatAPI, chats ...config.RequiredChat) *Verifier {
	v := New(api, chats, zerolog.Nop())
	v.delay = 0
	return v
}

func TestNoChatsConfiguredSkipsLookups(t *testing.T) {
	api := &fakeChatAPI{}
	v := newTestVerifier(api)

	if !v.IsMemberOfAll(42) {
		t.Fatal("expected trivially true with no configured chats")
	}
	if api.memberCalls != 0 || api.resolveCalls != 0 {
		t.Fatalf("expected no lookups, got member=%d resolve=%d", api.memberCalls, api.resolveCalls)
	}
	if v.Required() {
		t.Fatal("Required() should be false with no chats")
	}
}

func TestIsMemberOfAllRequiresEveryChat(t *testing.T) {
	tests := []struct {
		name  string
		roles map[string]tele.MemberStatus
		want  bool
	}{
		{
			name:  "member of both",
			roles: map[string]tele.MemberStatus{"@chan": tele.Member, "-100": tele.Administrator},
			want:  true,
		},
		{
			name:  "missing from group",
			roles: map[string]tele.MemberStatus{"@chan": tele.Member, "-100": tele.Left},
			want:  false,
		},
		{
			name:  "missing from channel",
			roles: map[string]tele.MemberStatus{"@chan": tele.Kicked, "-100": tele.Member},
			want:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeChatAPI{roles: tt.roles}
			v := newTestVerifier(api,
				config.RequiredChat{Label: "channel", Ref: "@chan"},
				config.RequiredChat{Label: "group", Ref: "-100"},
			)
			if got := v.IsMemberOfAll(42); got != tt.want {
				t.Fatalf("IsMemberOfAll = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		role tele.MemberStatus
		want bool
	}{
		{tele.Member, true},
		{tele.Administrator, true},
		{tele.Creator, true},
		{tele.Restricted, true},
		{tele.Left, false},
		{tele.Kicked, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			api := &fakeChatAPI{roles: map[string]tele.MemberStatus{"@chan": tt.role}}
			v := newTestVerifier(api, config.RequiredChat{Label: "channel", Ref: "@chan"})
			if got := v.IsMember(42, v.chats[0]); got != tt.want {
				t.Fatalf("IsMember with role %q = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestFailClosedAfterRetries(t *testing.T) {
	api := &fakeChatAPI{failAll: true}
	v := newTestVerifier(api, config.RequiredChat{Label: "channel", Ref: "@chan"})

	if v.IsMember(42, v.chats[0]) {
		t.Fatal("expected not-a-member after exhausted retries")
	}
	// Each attempt tries the direct lookup and then the resolve fallback.
	if api.memberCalls != maxAttempts {
		t.Fatalf("expected %d direct lookups, got %d", maxAttempts, api.memberCalls)
	}
	if api.resolveCalls != maxAttempts {
		t.Fatalf("expected %d resolve calls, got %d", maxAttempts, api.resolveCalls)
	}
}

func TestMissingListsFailedChats(t *testing.T) {
	api := &fakeChatAPI{roles: map[string]tele.MemberStatus{"@chan": tele.Member, "-100": tele.Left}}
	v := newTestVerifier(api,
		config.RequiredChat{Label: "channel", Ref: "@chan"},
		config.RequiredChat{Label: "group", Ref: "-100"},
	)

	missing := v.Missing(42)
	if len(missing) != 1 || missing[0] != "group" {
		t.Fatalf("Missing = %v, want [group]", missing)
	}
}

func TestMode(t *testing.T) {
	v := newTestVerifier(&fakeChatAPI{})
	if got := v.Mode(); got != "no verification required" {
		t.Fatalf("Mode = %q", got)
	}
	v = newTestVerifier(&fakeChatAPI{},
		config.RequiredChat{Label: "channel", Ref: "@chan"},
		config.RequiredChat{Label: "group", Ref: "-100"},
	)
	if got := v.Mode(); got != "requires channel (@chan) and group (-100)" {
		t.Fatalf("Mode = %q", got)
	}
}
