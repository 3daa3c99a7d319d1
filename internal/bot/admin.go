package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"lecturebot/internal/broadcast"
)

// cancelWait bounds how long /cancel waits for the running broadcast to
// acknowledge the flag before reporting back anyway.
const cancelWait = 5 * time.Second

func (b *Bot) handleBroadcast(c tele.Context) error {
	if !b.isOwner(c.Sender()) {
		b.log.Warn().Int64("user", c.Sender().ID).Msg("unauthorized broadcast attempt")
		return c.Send("❌ This command is for bot owner only!")
	}

	replied := c.Message().ReplyTo
	text := strings.TrimSpace(c.Message().Payload)
	if replied == nil && text == "" {
		return c.Send("⚠️ Please provide a message to broadcast or reply to a message.\n" +
			"Usage: /broadcast <your message> OR reply to a message with /broadcast")
	}

	// The reply takes precedence over literal text.
	p := broadcast.Payload{Mode: broadcast.ModeBroadcast, Source: replied}
	if replied == nil {
		p.Text = text
	}
	return b.startRun(c, p)
}

func (b *Bot) handleFcast(c tele.Context) error {
	if !b.isOwner(c.Sender()) {
		b.log.Warn().Int64("user", c.Sender().ID).Msg("unauthorized fcast attempt")
		return c.Send("❌ This command is for bot owner only!")
	}

	replied := c.Message().ReplyTo
	if replied == nil {
		return c.Send("⚠️ Please reply to a message to forward it.\n" +
			"Usage: Reply to a message with /fcast")
	}
	return b.startRun(c, broadcast.Payload{Mode: broadcast.ModeForward, Source: replied})
}

func (b *Bot) startRun(c tele.Context, p broadcast.Payload) error {
	const busy = "⚠️ A broadcast is already in progress. Please wait for it to finish or use /cancel to stop it."
	if b.runner.Active() {
		return c.Send(busy)
	}

	total, err := b.store.CountUsers(b.ctx)
	if err != nil {
		_ = c.Send(fmt.Sprintf("⚠️ An error occurred while starting %s.", p.Mode))
		return fmt.Errorf("count users: %w", err)
	}

	progress, err := b.api.Send(c.Chat(), fmt.Sprintf(
		"📢 Starting %s to %d users...\n✅ Success: 0\n❌ Failed: 0\n\n⏸️ Use /cancel to stop the %s",
		p.Mode, total, p.Mode))
	if err != nil {
		return fmt.Errorf("send progress message: %w", err)
	}

	if err := b.runner.Start(b.ctx, p, progress); err != nil {
		if errors.Is(err, broadcast.ErrBusy) {
			// Lost the start race to another run; the progress message is
			// stale, so turn it into the busy notice instead of leaving it.
			_, _ = b.api.Edit(progress, busy)
			return nil
		}
		return err
	}
	b.log.Info().Str("mode", p.Mode.String()).Int64("total", total).Msg("run started")
	return nil
}

func (b *Bot) handleCancel(c tele.Context) error {
	if !b.isOwner(c.Sender()) {
		b.log.Warn().Int64("user", c.Sender().ID).Msg("unauthorized cancel attempt")
		return c.Send("❌ This command is for bot owner only!")
	}

	err := b.runner.Cancel(cancelWait)
	if errors.Is(err, broadcast.ErrIdle) {
		return c.Send("❌ No active broadcast to cancel!")
	}
	if err != nil {
		_ = c.Send("⚠️ An error occurred while trying to cancel.")
		return err
	}
	b.log.Info().Int64("user", c.Sender().ID).Msg("broadcast cancel requested")
	return c.Send("⏹️ Broadcast cancelled successfully.")
}
