package bot

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/mem"
	tele "gopkg.in/telebot.v4"
)

func (b *Bot) handleStats(c tele.Context) error {
	if !b.isOwner(c.Sender()) {
		b.log.Warn().Int64("user", c.Sender().ID).Msg("unauthorized stats attempt")
		return c.Send("❌ This command is for bot owner only!")
	}

	// Round-trip latency: time the probe send, then edit it into the report.
	start := time.Now()
	probe, err := b.api.Send(c.Chat(), "🏓 Pinging...")
	if err != nil {
		return fmt.Errorf("send ping probe: %w", err)
	}
	ping := time.Since(start)

	userCount, err := b.store.CountUsers(b.ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	cmdCount, err := b.store.CountCommands(b.ctx)
	if err != nil {
		return fmt.Errorf("count commands: %w", err)
	}

	sqliteVersion, err := b.store.Version(b.ctx)
	if err != nil {
		b.log.Error().Err(err).Msg("sqlite version lookup failed")
		sqliteVersion = "Unknown"
	}

	memLine := "n/a"
	if vm, err := mem.VirtualMemory(); err == nil {
		memLine = fmt.Sprintf("%s / %s (%.1f%%)",
			humanize.IBytes(vm.Used), humanize.IBytes(vm.Total), vm.UsedPercent)
	}

	report := fmt.Sprintf(
		"📊 Bot Statistics:\n\n"+
			"🏓 Ping: %.2f ms\n"+
			"👥 Total Users: %d\n"+
			"📚 Lecture Groups: %d\n"+
			"⏱️ Uptime: %s\n"+
			"🔐 Verification: %s\n"+
			"💾 Memory: %s\n\n"+
			"🐹 Go: %s\n"+
			"🗃️ SQLite: %s",
		float64(ping.Microseconds())/1000,
		userCount, cmdCount,
		formatUptime(time.Since(b.startedAt)),
		b.verifier.Mode(),
		memLine,
		strings.TrimPrefix(runtime.Version(), "go"),
		sqliteVersion)

	b.log.Info().Int64("users", userCount).Int64("commands", cmdCount).Msg("stats requested")
	_, err = b.api.Edit(probe, report)
	return err
}

func formatUptime(d time.Duration) string {
	secs := int64(d.Seconds())
	days, secs := secs/86400, secs%86400
	hours, secs := secs/3600, secs%3600
	mins, secs := secs/60, secs%60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, mins, secs)
}
