package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// StartDigest schedules the periodic stats digest to the admin. The returned
// stop function blocks until any in-flight digest run finishes. spec is a
// standard cron expression; scheduling fails fast on a bad one.
func (b *Bot) StartDigest(ctx context.Context, spec string) (stop func(), err error) {
	admin, ok := b.adminRecipient()
	if !ok {
		return nil, fmt.Errorf("digest needs a numeric admin id, got %q", b.adminID)
	}

	c := cron.New()
	_, err = c.AddFunc(spec, func() {
		dctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		users, uerr := b.store.CountUsers(dctx)
		cmds, cerr := b.store.CountCommands(dctx)
		if uerr != nil || cerr != nil {
			b.log.Error().AnErr("users_err", uerr).AnErr("commands_err", cerr).Msg("digest counts failed")
			return
		}
		text := fmt.Sprintf(
			"📊 Daily digest\n\n👥 Total Users: %d\n📚 Lecture Groups: %d\n⏱️ Uptime: %s",
			users, cmds, formatUptime(time.Since(b.startedAt)))
		if _, serr := b.api.Send(admin, text); serr != nil {
			b.log.Error().Err(serr).Msg("digest send failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule digest %q: %w", spec, err)
	}

	c.Start()
	b.log.Info().Str("cron", spec).Msg("stats digest scheduled")
	return func() { <-c.Stop().Done() }, nil
}
