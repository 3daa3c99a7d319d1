package bot

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	tele "gopkg.in/telebot.v4"

	"lecturebot/internal/storage"
	"lecturebot/pkg/tgui"
)

// protected marks outbound content as not forwardable/savable by the client.
var protected = &tele.SendOptions{Protected: true}

func (b *Bot) handleStart(c tele.Context) error {
	sender := c.Sender()
	username := sender.Username
	if username == "" {
		username = "User"
	}
	firstName := sender.FirstName
	if firstName == "" {
		firstName = "Member"
	}

	created, err := b.store.AddUserIfAbsent(b.ctx, storage.User{
		ID:        sender.ID,
		Username:  username,
		FirstName: firstName,
	})
	if err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	if created {
		b.log.Info().Int64("user", sender.ID).Str("username", username).Msg("new user registered")
	}

	if b.verifier.Required() && !b.verifier.IsMemberOfAll(sender.ID) {
		b.log.Info().Int64("user", sender.ID).Msg("user needs verification")
		return b.sendVerificationPrompt(c)
	}

	welcome := fmt.Sprintf(
		"🎉 Welcome, %s!\n\n"+
			"We're glad to have you here.\n\n"+
			"➡️ Use these commands:\n\n"+
			"📚 /lecture - Show all available lecture groups\n"+
			"❓ /help - Get help with bot commands",
		firstName)
	return c.Send(welcome, protected)
}

func (b *Bot) handleLecture(c tele.Context) error {
	cmds, err := b.store.ListCommands(b.ctx)
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}
	if len(cmds) == 0 {
		return c.Send("📚 No lecture groups available yet. Check back later!", protected)
	}

	var sb strings.Builder
	sb.WriteString("📚 Available Lecture Groups:\n\n")
	for _, cmd := range cmds {
		desc := cmd.Description
		if desc == "" {
			desc = "No description"
		}
		fmt.Fprintf(&sb, "🔹 /%s - %s\n\n", cmd.Command, desc)
	}
	sb.WriteString("\nUse any command above to join its group!")
	return c.Send(sb.String(), protected)
}

func (b *Bot) handleAddLecture(c tele.Context) error {
	if !b.isOwner(c.Sender()) {
		b.log.Warn().Int64("user", c.Sender().ID).Msg("unauthorized addlecture attempt")
		return c.Send("❌ This command is for bot owner only!")
	}

	args := c.Args()
	if len(args) < 3 {
		return c.Send("⚠️ Please provide command name, link, and description.\n" +
			"Usage: /addlecture <command_name> <link> <description>\n" +
			"Example: /addlecture maths https://t.me/mathsgroup Mathematics study group")
	}

	name := normalizeCommandName(args[0])
	if !validCommandName(name) {
		return c.Send("❌ Command name must contain only letters!")
	}
	link := strings.TrimSpace(args[1])
	description := strings.Join(args[2:], " ")

	err := b.store.UpsertCommand(b.ctx, storage.LectureCommand{
		Command:     name,
		Link:        link,
		Description: description,
	})
	if err != nil {
		_ = c.Send("⚠️ Failed to add lecture command. Please try again.")
		return fmt.Errorf("upsert command %q: %w", name, err)
	}

	b.log.Info().Str("command", name).Str("link", link).Msg("lecture command added")
	return c.Send(fmt.Sprintf(
		"✅ Lecture group command added successfully!\n\n"+
			"🔹 Command: /%s\n"+
			"🔗 Link: %s\n"+
			"📝 Description: %s\n\n"+
			"Users can now use /%s to join this group.",
		name, link, description, name))
}

func (b *Bot) handleRemoveLecture(c tele.Context) error {
	if !b.isOwner(c.Sender()) {
		b.log.Warn().Int64("user", c.Sender().ID).Msg("unauthorized removelecture attempt")
		return c.Send("❌ This command is for bot owner only!")
	}

	args := c.Args()
	if len(args) == 0 {
		return c.Send("⚠️ Please provide a command to remove.\n" +
			"Usage: /removelecture <command_name>\n" +
			"Example: /removelecture maths")
	}

	name := normalizeCommandName(args[0])
	found, err := b.store.DeleteCommand(b.ctx, name)
	if err != nil {
		_ = c.Send("⚠️ Failed to remove lecture command. Please try again.")
		return fmt.Errorf("delete command %q: %w", name, err)
	}
	if !found {
		return c.Send(fmt.Sprintf("❌ Command /%s not found.", name))
	}
	b.log.Info().Str("command", name).Msg("lecture command removed")
	return c.Send(fmt.Sprintf("✅ Command /%s has been removed.", name))
}

// handleDynamic resolves unmatched slash commands against the lecture
// catalog. Unknown commands are intentionally a silent no-op.
func (b *Bot) handleDynamic(c tele.Context) error {
	name, ok := commandToken(c.Text())
	if !ok {
		return nil
	}

	cmd, err := b.store.GetCommand(b.ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup command %q: %w", name, err)
	}

	desc := cmd.Description
	if desc == "" {
		desc = fmt.Sprintf("Join the %s group", cmd.Command)
	}

	kb := tgui.NewInline().
		Row(tgui.URLBtn(fmt.Sprintf("👉 Join %s Group 👈", capitalize(cmd.Command)), cmd.Link)).
		Row(tgui.URLBtn("📺 Watch Tutorial Video", b.cfg.TutorialVideoURL()))

	b.log.Info().Int64("user", c.Sender().ID).Str("command", name).Msg("lecture link served")
	return c.Send(fmt.Sprintf(
		"📚 %s\n\n"+
			"Click the button below to join the group:\n"+
			"Need help joining? Watch the tutorial video!", desc),
		kb.Markup(), protected)
}

func (b *Bot) handleHelp(c tele.Context) error {
	lines := []string{
		"/start - Begin using the bot",
		"/lecture - Show all lecture groups",
		"/help - Show this help message",
	}
	if b.isOwner(c.Sender()) {
		lines = append(lines,
			"",
			"👑 Admin Commands:",
			"/addlecture <name> <link> <description> - Add new lecture group",
			"/removelecture <name> - Remove a lecture group",
			"/stats - View bot statistics",
			"/broadcast <message> - Send message to all users (or reply to a message)",
			"/fcast - Forward a message to all users (reply to a message)",
			"/cancel - Cancel ongoing broadcast/forward",
			"/export - Export the user list as a spreadsheet",
		)
	}

	kb := tgui.NewInline().Row(tgui.URLBtn("📺 Watch Tutorial Video", b.cfg.TutorialVideoURL()))
	text := strings.Join(lines, "\n") + "\n\nNeed help using the bot? Watch our tutorial video!"
	return c.Send(text, kb.Markup(), protected)
}

// normalizeCommandName lowercases and strips a leading slash.
func normalizeCommandName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimPrefix(s, "/")
}

// validCommandName reports whether the name is non-empty and letters-only.
// Digits, punctuation and whitespace are rejected before anything is persisted.
func validCommandName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// commandToken extracts the lowercase command name from a "/cmd" message,
// tolerating arguments and the "/cmd@BotName" form.
func commandToken(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	token := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(token, '@'); i >= 0 {
		token = token[:i]
	}
	if token == "" {
		return "", false
	}
	return strings.ToLower(token), true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
