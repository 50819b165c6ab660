package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/botlink/internal/channels/telegram"
	"github.com/nextlevelbuilder/botlink/internal/session"
)

func linkCmd() *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "link [token]",
		Short: "Link a Telegram bot by its token (interactive if no token given)",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				t, err := promptToken()
				if err != nil {
					fmt.Println("Cancelled.")
					return
				}
				token = t
			}
			if err := telegram.ValidateToken(token); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}

			ctx, stop := signalContext()
			defer stop()
			a := mustApp(ctx)
			defer a.close()

			if probe {
				info, err := telegram.Probe(ctx, token)
				if err != nil {
					slog.Warn("telegram probe failed", "error", err)
				} else {
					fmt.Printf("Token belongs to @%s (%d)\n", info.Username, info.ID)
				}
			}

			a.restore(ctx)
			b, err := a.ctrl.Link(ctx, token)
			if err != nil {
				a.fail(err)
			}
			fmt.Printf("Linked @%s (%d).\n", b.BotName, b.BotID)
			a.awaitVerification(ctx)
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "ask the Telegram Bot API about the token first")
	return cmd
}

func selectCmd() *cobra.Command {
	var botID int64
	var noWait bool
	cmd := &cobra.Command{
		Use:   "select [bot-id]",
		Short: "Select a linked bot and finish its verification if needed",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) == 1 {
				id, err := parseBotID(args[0])
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %s\n", err)
					os.Exit(1)
				}
				botID = id
			}
			ctx, stop := signalContext()
			defer stop()
			a := mustApp(ctx)
			defer a.close()

			st := a.restore(ctx)
			id := a.pickBot(st, botID)
			if err := a.ctrl.SelectBot(ctx, id); err != nil {
				a.fail(err)
			}
			if a.ctrl.Mode() == session.ModeAdmin {
				fmt.Println(okStyle.Render(fmt.Sprintf("✓ bot %d is verified.", id)))
				return
			}
			if noWait {
				link, _ := a.ctrl.VerificationLink()
				printLink("Not verified yet. Open this link in Telegram:", link)
				return
			}
			a.awaitVerification(ctx)
		},
	}
	cmd.Flags().Int64Var(&botID, "bot", 0, "bot id")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "print the verification link and exit")
	return cmd
}

func botsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bots",
		Short: "List bots linked to this owner",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signalContext()
			defer stop()
			a := mustApp(ctx)
			defer a.close()
			printBots(os.Stdout, a.restore(ctx))
		},
	}
}

func inviteCmd() *cobra.Command {
	var botID int64
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Create an invitation link for a verified bot",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signalContext()
			defer stop()
			a := mustApp(ctx)
			defer a.close()

			a.admin(ctx, botID)
			inv, err := a.ctrl.Invite(ctx)
			if err != nil {
				a.fail(err)
			}
			printLink("Invitation link:", inv.URL)
		},
	}
	cmd.Flags().Int64Var(&botID, "bot", 0, "bot id")
	return cmd
}

func refreshCmd() *cobra.Command {
	var botID int64
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Regenerate the constructor URL of a verified bot",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signalContext()
			defer stop()
			a := mustApp(ctx)
			defer a.close()

			a.admin(ctx, botID)
			webURL, err := a.ctrl.Refresh(ctx)
			if err != nil {
				a.fail(err)
			}
			fmt.Println(webURL)
		},
	}
	cmd.Flags().Int64Var(&botID, "bot", 0, "bot id")
	return cmd
}

func logoutCmd() *cobra.Command {
	var botID int64
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End a bot's admin session on the service",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signalContext()
			defer stop()
			a := mustApp(ctx)
			defer a.close()

			st := a.restore(ctx)
			id := a.pickBot(st, botID)
			if err := a.ctrl.SelectBot(ctx, id); err != nil {
				a.fail(err)
			}
			if err := a.ctrl.Logout(ctx); err != nil {
				a.fail(err)
			}
			fmt.Printf("Logged out of bot %d.\n", id)
		},
	}
	cmd.Flags().Int64Var(&botID, "bot", 0, "bot id")
	return cmd
}
