package bot

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	tele "gopkg.in/telebot.v4"
)

// handleExport sends the admin the whole user directory as a spreadsheet.
func (b *Bot) handleExport(c tele.Context) error {
	if !b.isOwner(c.Sender()) {
		b.log.Warn().Int64("user", c.Sender().ID).Msg("unauthorized export attempt")
		return c.Send("❌ This command is for bot owner only!")
	}

	users, err := b.store.ListUsers(b.ctx)
	if err != nil {
		_ = c.Send("⚠️ Failed to export users. Please try again.")
		return fmt.Errorf("list users: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Users"
	f.SetSheetName("Sheet1", sheet)
	for col, title := range []string{"User ID", "Username", "First Name", "Date Added"} {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, title)
	}
	for i, u := range users {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), u.ID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), u.Username)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), u.FirstName)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), u.DateAdded.Format(time.RFC3339))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		_ = c.Send("⚠️ Failed to export users. Please try again.")
		return fmt.Errorf("write spreadsheet: %w", err)
	}

	b.log.Info().Int("users", len(users)).Msg("user export generated")
	return c.Send(&tele.Document{
		File:     tele.FromReader(buf),
		FileName: fmt.Sprintf("users-%s.xlsx", time.Now().Format("2006-01-02")),
	})
}
