// Package bot wires the Telegram command surface: the dispatcher, the
// membership access gate, and every handler.
package bot

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"

	"lecturebot/internal/broadcast"
	"lecturebot/internal/config"
	"lecturebot/internal/storage"
	"lecturebot/internal/verify"
)

// checkJoinBtn is the "I've Joined" callback button on verification prompts.
var checkJoinBtn = tele.Btn{Unique: "check_membership", Text: "🔄 I've Joined"}

// telegramAPI is the slice of the Telegram API handlers send through.
// *tele.Bot satisfies it.
type telegramAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	CreateInviteLink(chat tele.Recipient, inviteLink *tele.ChatInviteLink) (*tele.ChatInviteLink, error)
}

// broadcastRunner is what the admin commands need from the broadcast engine.
// *broadcast.Runner satisfies it.
type broadcastRunner interface {
	Active() bool
	Start(ctx context.Context, p broadcast.Payload, progress *tele.Message) error
	Cancel(wait time.Duration) error
}

type Bot struct {
	tb       *tele.Bot
	api      telegramAPI
	store    storage.Store
	verifier *verify.Verifier
	runner   broadcastRunner
	cfg      *config.Manager
	log      zerolog.Logger

	// adminID is compared as an exact string against the sender ID; there is
	// exactly one superuser.
	adminID   string
	startedAt time.Time

	ctx context.Context
}

func New(tb *tele.Bot, store storage.Store, verifier *verify.Verifier, runner *broadcast.Runner, cfg *config.Manager, log zerolog.Logger) *Bot {
	b := &Bot{
		tb:        tb,
		api:       tb,
		store:     store,
		verifier:  verifier,
		runner:    runner,
		cfg:       cfg,
		log:       log,
		adminID:   cfg.Current().AdminID,
		startedAt: time.Now(),
		ctx:       context.Background(),
	}
	b.register()
	return b
}

func (b *Bot) register() {
	// The gate wraps handlers at registration time; /start runs its own
	// membership flow so it stays unwrapped.
	b.tb.Handle("/start", b.wrap("start", b.handleStart))
	b.tb.Handle("/lecture", b.wrap("lecture", b.restricted(b.handleLecture)))
	b.tb.Handle("/addlecture", b.wrap("addlecture", b.restricted(b.handleAddLecture)))
	b.tb.Handle("/removelecture", b.wrap("removelecture", b.restricted(b.handleRemoveLecture)))
	b.tb.Handle("/stats", b.wrap("stats", b.restricted(b.handleStats)))
	b.tb.Handle("/broadcast", b.wrap("broadcast", b.restricted(b.handleBroadcast)))
	b.tb.Handle("/fcast", b.wrap("fcast", b.restricted(b.handleFcast)))
	b.tb.Handle("/cancel", b.wrap("cancel", b.restricted(b.handleCancel)))
	b.tb.Handle("/export", b.wrap("export", b.restricted(b.handleExport)))
	b.tb.Handle("/help", b.wrap("help", b.restricted(b.handleHelp)))
	b.tb.Handle(&checkJoinBtn, b.guard("check_membership", b.handleCheckMembership))

	// Anything else that looks like a slash command in a private chat is a
	// candidate lecture command. Plain chatter never reaches the gate.
	b.tb.Handle(tele.OnText, b.wrap("lecture_lookup", b.slashOnly(b.restricted(b.handleDynamic))))
}

// Start begins long polling and blocks until Stop is called.
func (b *Bot) Start(ctx context.Context) {
	b.ctx = ctx
	b.tb.Start()
}

func (b *Bot) Stop() { b.tb.Stop() }

// wrap is the standard middleware stack for command handlers: swallow errors
// at the handler boundary, and drop anything outside a private chat.
func (b *Bot) wrap(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return b.guard(name, b.privateOnly(h))
}

// guard catches handler errors: they are logged and swallowed so one bad
// update never takes the dispatcher down. The user may simply get no reply.
func (b *Bot) guard(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if err := h(c); err != nil {
			b.log.Error().Err(err).Str("handler", name).Msg("handler error")
		}
		return nil
	}
}

// slashOnly drops text that is not a slash command before the membership gate
// runs, so plain conversation costs no lookups and draws no prompt.
func (b *Bot) slashOnly(h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, ok := commandToken(c.Text()); !ok {
			return nil
		}
		return h(c)
	}
}

// privateOnly silently drops commands issued in groups and channels.
func (b *Bot) privateOnly(h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil || chat.Type != tele.ChatPrivate {
			b.log.Debug().Msg("command dropped outside private chat")
			return nil
		}
		return h(c)
	}
}

func (b *Bot) isOwner(u *tele.User) bool {
	return u != nil && strconv.FormatInt(u.ID, 10) == b.adminID
}

// adminRecipient returns the admin as a sendable chat, when the configured
// admin ID is numeric.
func (b *Bot) adminRecipient() (tele.Recipient, bool) {
	id, err := strconv.ParseInt(b.adminID, 10, 64)
	if err != nil {
		return nil, false
	}
	return tele.ChatID(id), true
}
