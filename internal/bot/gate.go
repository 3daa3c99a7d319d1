package bot

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"lecturebot/internal/config"
	"lecturebot/internal/verify"
	"lecturebot/pkg/tgui"
)

// inviteLinkTTL bounds how long a verification invite link stays valid.
const inviteLinkTTL = 5 * time.Minute

// restricted wraps a handler with the membership gate. When verification is
// configured and the sender fails it, the handler is not invoked; the user
// gets the verification prompt instead.
func (b *Bot) restricted(h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !b.verifier.Required() {
			return h(c)
		}
		if b.verifier.IsMemberOfAll(c.Sender().ID) {
			return h(c)
		}
		b.log.Warn().Int64("user", c.Sender().ID).Msg("unverified access attempt")
		return b.sendVerificationPrompt(c)
	}
}

// sendVerificationPrompt offers single-use, time-limited invite links for
// every required chat plus the "I've Joined" re-check button.
func (b *Bot) sendVerificationPrompt(c tele.Context) error {
	chats := b.verifier.Chats()
	if len(chats) == 0 {
		return nil
	}

	kb := tgui.NewInline()
	for _, chat := range chats {
		label := "✅ Join Channel"
		if chat.Label == "group" {
			label = "✅ Join Group"
		}
		kb.Row(tgui.URLBtn(label, b.inviteLink(chat)))
	}
	kb.Row(checkJoinBtn)

	return c.Send(promptText(chats), kb.Markup(), &tele.SendOptions{Protected: true})
}

func promptText(chats []config.RequiredChat) string {
	target := "Group"
	if len(chats) == 2 {
		target = "Channel and Group"
	} else if chats[0].Label == "channel" {
		target = "Channel"
	}

	links := "Invite links expire"
	if len(chats) == 1 {
		links = "Invite link expires"
	}

	return "⚠️ Please Join Our " + target + " to Use This Bot!\n\n" +
		"📢 Our community provides:\n" +
		"— 📝 Important Updates\n" +
		"— 🎁 Free Resources\n" +
		"— 📚 Daily Quiz & Guidance\n" +
		"— ❗ Exclusive Content\n\n" +
		"✅ After Joining, tap \"I've Joined\" below to continue!\n\n" +
		"🔒 " + links + " in 5 minutes\n\n" +
		"ℹ️ If you've already joined, please wait a moment and try again. " +
		"Sometimes it takes a few seconds for the system to update."
}

// inviteLink creates a fresh single-use invite link for the chat. When the
// API call fails we fall back to a plain t.me link so the prompt still works.
func (b *Bot) inviteLink(chat config.RequiredChat) string {
	inv, err := b.api.CreateInviteLink(verify.ChatRef(chat.Ref), &tele.ChatInviteLink{
		ExpireUnixtime: time.Now().Add(inviteLinkTTL).Unix(),
		MemberLimit:    1,
	})
	if err == nil && inv != nil && inv.InviteLink != "" {
		return inv.InviteLink
	}
	b.log.Error().Err(err).Str("chat", chat.Ref).Msg("invite link creation failed")

	switch {
	case strings.HasPrefix(chat.Ref, "@"):
		return "https://t.me/" + chat.Ref[1:]
	case strings.HasPrefix(chat.Ref, "-"):
		// Private group IDs have no public link; point at the bot instead.
		return "https://t.me/" + b.tb.Me.Username + "?startgroup=true"
	default:
		return "https://t.me/" + chat.Ref
	}
}

// handleCheckMembership is the "I've Joined" callback: re-check membership
// and edit the prompt in place with the outcome.
func (b *Bot) handleCheckMembership(c tele.Context) error {
	_ = c.Respond()
	userID := c.Sender().ID
	b.log.Info().Int64("user", userID).Msg("membership re-check requested")

	if b.verifier.IsMemberOfAll(userID) {
		b.log.Info().Int64("user", userID).Msg("verification successful")
		return c.Edit("✅ Verification successful!\n" +
			"Use /lecture to see all available groups or /help for assistance.")
	}

	missing := b.verifier.Missing(userID)
	b.log.Info().Int64("user", userID).Strs("missing", missing).Msg("verification still incomplete")

	if len(missing) == 0 {
		return c.Edit("❌ We couldn't verify your membership!\n\n" +
			"Please make sure you've joined all required chats and wait a moment before trying again.\n\n" +
			"If the problem persists, please contact support.")
	}
	return c.Edit("❌ We couldn't verify your membership in the " + strings.Join(missing, ", ") + "!\n\n" +
		"This could be because:\n" +
		"1. You haven't joined yet\n" +
		"2. You just joined and the system needs time to update\n" +
		"3. There's a temporary issue with verification\n\n" +
		"Please make sure you've joined and wait a moment before trying again.\n\n" +
		"If the problem persists, please contact support.")
}
