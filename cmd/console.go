package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/botlink/internal/bus"
	"github.com/nextlevelbuilder/botlink/internal/channels/telegram"
	"github.com/nextlevelbuilder/botlink/internal/config"
	"github.com/nextlevelbuilder/botlink/internal/roster"
)

func consoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive session: link, verify and manage users in one place",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signalContext()
			defer stop()
			a := mustApp(ctx)
			runConsole(ctx, a)
		},
	}
}

type consoleCommand struct {
	usage string
	help  string
	run   func(ctx context.Context, a *app, args []string) error
}

// errQuit ends the console loop.
var errQuit = errors.New("quit")

var consoleCommands map[string]consoleCommand

func init() {
	consoleCommands = map[string]consoleCommand{
		"help":    {"help", "show this list", func(context.Context, *app, []string) error { printConsoleHelp(); return nil }},
		"state":   {"state", "show the session mode and selected bot", consoleState},
		"bots":    {"bots", "list linked bots", func(_ context.Context, a *app, _ []string) error { printBots(os.Stdout, a.ctrl.State()); return nil }},
		"restore": {"restore", "reload linked bots from the service", consoleRestore},
		"link":    {"link <token>", "link a bot and start verification", consoleLink},
		"select":  {"select <bot-id>", "select a linked bot", consoleSelect},
		"qr":      {"qr", "show the pending verification link again", consoleQR},
		"cancel":  {"cancel", "cancel the pending verification", func(_ context.Context, a *app, _ []string) error { a.ctrl.CancelVerification(); return nil }},
		"users":   {"users", "fetch and show the current page", consoleUsers},
		"page":    {"page <n>", "go to page n", consolePage},
		"next":    {"next", "next page", func(ctx context.Context, a *app, _ []string) error { return consoleStep(ctx, a, 1) }},
		"prev":    {"prev", "previous page", func(ctx context.Context, a *app, _ []string) error { return consoleStep(ctx, a, -1) }},
		"search":  {"search [text]", "filter by text (empty clears)", consoleSearch},
		"status":  {"status any|active|inactive", "filter by status", consoleStatus},
		"toggle":  {"toggle <user-id>", "activate or deactivate a user", consoleToggle},
		"delete":  {"delete <user-id>", "remove a user", consoleDelete},
		"invite":  {"invite", "create an invitation link", consoleInvite},
		"refresh": {"refresh", "regenerate the constructor URL", consoleRefresh},
		"logout":  {"logout", "end the selected bot's session", func(ctx context.Context, a *app, _ []string) error { return a.ctrl.Logout(ctx) }},
		"quit":    {"quit", "leave the console", func(context.Context, *app, []string) error { return errQuit }},
	}
	consoleCommands["exit"] = consoleCommands["quit"]
}

func runConsole(ctx context.Context, a *app) {
	a.bus.Subscribe("console", func(ev bus.Event) {
		switch p := ev.Payload.(type) {
		case bus.AdminEntered:
			fmt.Println(okStyle.Render(fmt.Sprintf("✓ @%s verified. Type `users` to list its users.", p.Bot.BotName)))
		case bus.ModeChange:
			fmt.Println(mutedStyle.Render("[" + p.From + " → " + p.To + "]"))
		}
	})

	if w, err := config.NewWatcher(a.cfgPath, a.cfg); err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	} else {
		w.OnChange(func(cfg *config.Config) {
			a.ctrl.SetPollInterval(cfg.PollInterval())
			a.roster.SetPageSize(cfg.Roster.PageSize)
			logLevel.Set(parseLevel(cfg.Log.Level))
			slog.Info("config reloaded", "poll_interval", cfg.PollInterval())
		})
		if err := w.Start(); err != nil {
			slog.Warn("config watcher unavailable", "error", err)
		}
		defer w.Stop()
	}

	if _, err := a.ctrl.Restore(ctx); err != nil {
		slog.Debug("initial restore failed", "error", err)
	}
	fmt.Println(titleStyle.Render("botlink console") + mutedStyle.Render("  (type `help`)"))

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		fmt.Print("> ")
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			ok = false
		case line, ok = <-lines:
		}
		if !ok {
			break
		}
		if err := runConsoleLine(ctx, a, line); errors.Is(err, errQuit) {
			break
		} else if err != nil && !a.noticed.Swap(false) {
			fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+userMessage(err)))
		}
		a.noticed.Store(false)
	}

	fmt.Println()
	a.ctrl.Unload()
	a.close()
}

func runConsoleLine(ctx context.Context, a *app, line string) error {
	args, err := shellwords.Parse(line)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if len(args) == 0 {
		return nil
	}
	c, ok := consoleCommands[strings.ToLower(args[0])]
	if !ok {
		return fmt.Errorf("unknown command %q (type `help`)", args[0])
	}
	return c.run(ctx, a, args[1:])
}

func printConsoleHelp() {
	names := []string{"state", "bots", "restore", "link", "select", "qr", "cancel",
		"users", "page", "next", "prev", "search", "status", "toggle", "delete",
		"invite", "refresh", "logout", "help", "quit"}
	for _, n := range names {
		c := consoleCommands[n]
		fmt.Printf("  %-28s %s\n", c.usage, mutedStyle.Render(c.help))
	}
}

func consoleState(_ context.Context, a *app, _ []string) error {
	st := a.ctrl.State()
	fmt.Printf("mode: %s\n", st.Mode)
	if st.Selected != nil {
		fmt.Printf("selected: @%s (%d)\n", st.Selected.BotName, st.Selected.BotID)
	}
	fmt.Printf("linked: %d\n", len(st.Linked))
	return nil
}

func consoleRestore(ctx context.Context, a *app, _ []string) error {
	a.cache.Forget()
	n, err := a.ctrl.Restore(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d new bot(s).\n", n)
	return nil
}

func consoleLink(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: link <token>")
	}
	if err := telegram.ValidateToken(args[0]); err != nil {
		return err
	}
	b, err := a.ctrl.Link(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Linked @%s (%d).\n", b.BotName, b.BotID)
	return consoleQR(ctx, a, nil)
}

func consoleSelect(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: select <bot-id>")
	}
	id, err := parseBotID(args[0])
	if err != nil {
		return err
	}
	if err := a.ctrl.SelectBot(ctx, id); err != nil {
		return err
	}
	if st := a.ctrl.State(); st.Selected == nil || st.Selected.BotID != id {
		return fmt.Errorf("bot %d is not linked", id)
	}
	if _, pending := a.ctrl.VerificationLink(); pending {
		return consoleQR(ctx, a, nil)
	}
	return nil
}

func consoleQR(_ context.Context, a *app, _ []string) error {
	link, ok := a.ctrl.VerificationLink()
	if !ok {
		return errors.New("no verification pending")
	}
	printLink("Open this link in Telegram and share your contact with the bot:", link)
	return nil
}

func consoleUsers(ctx context.Context, a *app, _ []string) error {
	if err := a.roster.Fetch(ctx); err != nil {
		return err
	}
	printRoster(os.Stdout, a.roster.Snapshot())
	return nil
}

func consoleQuery(ctx context.Context, a *app, p roster.QueryPatch) error {
	if err := a.roster.SetQuery(ctx, p); err != nil {
		return err
	}
	printRoster(os.Stdout, a.roster.Snapshot())
	return nil
}

func consolePage(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: page <n>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return fmt.Errorf("invalid page %q", args[0])
	}
	return consoleQuery(ctx, a, roster.QueryPatch{Page: &n})
}

func consoleStep(ctx context.Context, a *app, delta int) error {
	snap := a.roster.Snapshot()
	n := snap.Query.Page + delta
	if n < 1 || n > snap.Query.Pages(snap.Total) {
		return errors.New("no such page")
	}
	return consoleQuery(ctx, a, roster.QueryPatch{Page: &n})
}

func consoleSearch(ctx context.Context, a *app, args []string) error {
	text := strings.Join(args, " ")
	return consoleQuery(ctx, a, roster.QueryPatch{Search: &text})
}

func consoleStatus(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: status any|active|inactive")
	}
	st := roster.ParseStatus(args[0])
	return consoleQuery(ctx, a, roster.QueryPatch{Status: &st})
}

func consoleToggle(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: toggle <user-id>")
	}
	if err := a.roster.ToggleStatus(ctx, args[0]); err != nil {
		return err
	}
	printRoster(os.Stdout, a.roster.Snapshot())
	return nil
}

func consoleDelete(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: delete <user-id>")
	}
	if err := a.roster.DeleteRow(ctx, args[0]); err != nil {
		return err
	}
	printRoster(os.Stdout, a.roster.Snapshot())
	return nil
}

func consoleInvite(ctx context.Context, a *app, _ []string) error {
	inv, err := a.ctrl.Invite(ctx)
	if err != nil {
		return err
	}
	printLink("Invitation link:", inv.URL)
	return nil
}

func consoleRefresh(ctx context.Context, a *app, _ []string) error {
	webURL, err := a.ctrl.Refresh(ctx)
	if err != nil {
		return err
	}
	fmt.Println(webURL)
	return nil
}
