package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/nextlevelbuilder/botlink/internal/bus"
	"github.com/nextlevelbuilder/botlink/internal/session"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// restore loads the owner's bots or exits.
func (a *app) restore(ctx context.Context) session.State {
	if _, err := a.ctrl.Restore(ctx); err != nil {
		a.fail(err)
	}
	return a.ctrl.State()
}

// pickBot resolves the --bot flag. With no flag, a single linked bot is
// chosen silently and several are offered in a prompt.
func (a *app) pickBot(st session.State, flag int64) int64 {
	if flag != 0 {
		for _, b := range st.Linked {
			if b.BotID == flag {
				return flag
			}
		}
		a.fail(fmt.Errorf("bot %d is not linked to this owner", flag))
	}
	switch len(st.Linked) {
	case 0:
		a.fail(errors.New("no linked bots; run `botlink link` first"))
	case 1:
		return st.Linked[0].BotID
	}
	var current int64
	if st.Selected != nil {
		current = st.Selected.BotID
	}
	id, err := promptBot(st.Linked, current)
	if err != nil {
		fmt.Println("Cancelled.")
		a.close()
		os.Exit(0)
	}
	return id
}

// admin restores, selects the bot and requires it to be verified. It does
// not wait for verification.
func (a *app) admin(ctx context.Context, flag int64) int64 {
	st := a.restore(ctx)
	id := a.pickBot(st, flag)
	if err := a.ctrl.SelectBot(ctx, id); err != nil {
		a.fail(err)
	}
	if a.ctrl.Mode() != session.ModeAdmin {
		a.fail(fmt.Errorf("bot %d is not verified yet; run `botlink select %d` and finish the check in Telegram", id, id))
	}
	return id
}

// waitForAdmin blocks until the session reaches Admin or ctx ends.
func (a *app) waitForAdmin(ctx context.Context) error {
	entered := make(chan bus.AdminEntered, 1)
	a.bus.Subscribe("wait-admin", func(ev bus.Event) {
		if p, ok := ev.Payload.(bus.AdminEntered); ok {
			select {
			case entered <- p:
			default:
			}
		}
	})
	defer a.bus.Unsubscribe("wait-admin")

	if a.ctrl.Mode() == session.ModeAdmin {
		return nil
	}
	select {
	case <-entered:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// awaitVerification prints the deep link and waits. Ctrl+C cancels the
// verification.
func (a *app) awaitVerification(ctx context.Context) {
	link, ok := a.ctrl.VerificationLink()
	if !ok {
		return
	}
	printLink("Open this link in Telegram and share your contact with the bot:", link)
	fmt.Println(mutedStyle.Render("Waiting for verification... (Ctrl+C to cancel)"))

	if err := a.waitForAdmin(ctx); err != nil {
		a.ctrl.CancelVerification()
		fmt.Println("Verification cancelled.")
		a.close()
		os.Exit(1)
	}
	st := a.ctrl.State()
	fmt.Println(okStyle.Render(fmt.Sprintf("✓ @%s verified.", st.Selected.BotName)))
}

func parseBotID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid bot id %q", s)
	}
	return id, nil
}
