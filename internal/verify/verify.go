// Package verify answers "is this user a member of the required chats".
//
// Lookups go through the ChatAPI interface so tests can script outcomes
// without a live bot.
package verify

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"

	"lecturebot/internal/config"
)

// ChatAPI is the slice of the Telegram API the verifier needs.
// *tele.Bot satisfies it.
type ChatAPI interface {
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
	ChatByUsername(name string) (*tele.Chat, error)
	ChatByID(id int64) (*tele.Chat, error)
}

const (
	maxAttempts  = 3
	attemptDelay = time.Second
)

// Verifier checks chat membership with retry and fails closed: if Telegram
// cannot be reached after all attempts, the user is treated as not a member.
type Verifier struct {
	api   ChatAPI
	chats []config.RequiredChat
	log   zerolog.Logger

	// delay between retry attempts; tests shrink it to zero.
	delay time.Duration
}

func New(api ChatAPI, chats []config.RequiredChat, log zerolog.Logger) *Verifier {
	return &Verifier{api: api, chats: chats, log: log, delay: attemptDelay}
}

// Required reports whether any verification chat is configured at all.
func (v *Verifier) Required() bool { return len(v.chats) > 0 }

// Chats returns the configured required chats.
func (v *Verifier) Chats() []config.RequiredChat { return v.chats }

// Mode describes the verification setup for diagnostics.
func (v *Verifier) Mode() string {
	if len(v.chats) == 0 {
		return "no verification required"
	}
	parts := make([]string, 0, len(v.chats))
	for _, c := range v.chats {
		parts = append(parts, c.Label+" ("+c.Ref+")")
	}
	return "requires " + strings.Join(parts, " and ")
}

// IsMemberOfAll requires every configured chat to individually report
// membership. With no chats configured it returns true without any lookup.
func (v *Verifier) IsMemberOfAll(userID int64) bool {
	if len(v.chats) == 0 {
		return true
	}
	for _, c := range v.chats {
		if !v.IsMember(userID, c) {
			return false
		}
	}
	return true
}

// Missing returns the labels of configured chats the user is not a member of.
func (v *Verifier) Missing(userID int64) []string {
	var missing []string
	for _, c := range v.chats {
		if !v.IsMember(userID, c) {
			missing = append(missing, c.Label)
		}
	}
	return missing
}

// IsMember checks one chat. A lookup error triggers a fallback (resolve the
// chat reference, then re-query); the whole two-step is retried up to
// maxAttempts before giving up and reporting not-a-member.
func (v *Verifier) IsMember(userID int64, chat config.RequiredChat) bool {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		role, err := v.lookup(userID, chat.Ref)
		if err == nil {
			ok := present(role)
			v.log.Info().
				Int64("user", userID).
				Str("chat", chat.Ref).
				Str("status", string(role)).
				Int("attempt", attempt).
				Bool("member", ok).
				Msg("membership check")
			return ok
		}
		v.log.Warn().
			Err(err).
			Int64("user", userID).
			Str("chat", chat.Ref).
			Int("attempt", attempt).
			Msg("membership check failed")
		if attempt < maxAttempts {
			time.Sleep(v.delay)
		}
	}
	// fail closed
	return false
}

func (v *Verifier) lookup(userID int64, ref string) (tele.MemberStatus, error) {
	member, err := v.api.ChatMemberOf(chatRef(ref), tele.ChatID(userID))
	if err == nil {
		return member.Role, nil
	}
	v.log.Debug().Err(err).Str("chat", ref).Msg("direct membership lookup failed; resolving chat")

	chat, rerr := v.resolve(ref)
	if rerr != nil {
		return "", rerr
	}
	member, err = v.api.ChatMemberOf(chat, tele.ChatID(userID))
	if err != nil {
		return "", err
	}
	return member.Role, nil
}

func (v *Verifier) resolve(ref string) (tele.Recipient, error) {
	if strings.HasPrefix(ref, "@") {
		return v.api.ChatByUsername(ref)
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return v.api.ChatByUsername(ref)
	}
	return v.api.ChatByID(id)
}

func present(role tele.MemberStatus) bool {
	switch role {
	case tele.Member, tele.Administrator, tele.Creator, tele.Restricted:
		return true
	default:
		// "left", "kicked" and anything Telegram adds later count as absent.
		return false
	}
}

// chatRef lets a raw "@username" or "-100..." string be used as a Recipient;
// the Bot API accepts both forms as chat_id.
type chatRef string

func (r chatRef) Recipient() string { return string(r) }

// ChatRef wraps a raw chat reference string as a tele.Recipient.
func ChatRef(ref string) tele.Recipient { return chatRef(ref) }
