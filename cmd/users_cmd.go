package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/botlink/internal/roster"
)

func usersCmd() *cobra.Command {
	var botID int64
	cmd := &cobra.Command{
		Use:   "users",
		Short: "View and manage the users of a verified bot",
	}
	cmd.PersistentFlags().Int64Var(&botID, "bot", 0, "bot id")
	cmd.AddCommand(usersListCmd(&botID))
	cmd.AddCommand(usersToggleCmd(&botID))
	cmd.AddCommand(usersDeleteCmd(&botID))
	return cmd
}

func usersListCmd(botID *int64) *cobra.Command {
	var (
		page     int
		pageSize int
		search   string
		status   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show one page of users",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signalContext()
			defer stop()
			a := mustApp(ctx)
			defer a.close()

			a.admin(ctx, *botID)
			st := roster.ParseStatus(status)
			patch := roster.QueryPatch{Search: &search, Status: &st}
			if pageSize > 0 {
				patch.PageSize = &pageSize
			}
			if err := a.roster.SetQuery(ctx, patch); err != nil {
				a.fail(err)
			}
			// Page is applied after the filter so it is not reset to 1.
			if page > 1 {
				if err := a.roster.SetQuery(ctx, roster.QueryPatch{Page: &page}); err != nil {
					a.fail(err)
				}
			}
			printRoster(os.Stdout, a.roster.Snapshot())
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "rows per page (default from config)")
	cmd.Flags().StringVar(&search, "search", "", "filter by name or phone")
	cmd.Flags().StringVar(&status, "status", "any", "filter by status: any, active, inactive")
	return cmd
}

func usersToggleCmd(botID *int64) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [user-id]",
		Short: "Activate or deactivate a user",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signalContext()
			defer stop()
			a := mustApp(ctx)
			defer a.close()

			a.admin(ctx, *botID)
			row := a.findRow(ctx, args[0])
			if err := a.roster.ToggleStatus(ctx, row.ID); err != nil {
				a.fail(err)
			}
			fmt.Printf("%s is now %s.\n", displayName(row), roster.StatusLabel(!row.Active))
		},
	}
}

func usersDeleteCmd(botID *int64) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete [user-id]",
		Short: "Remove a user from the bot",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signalContext()
			defer stop()
			a := mustApp(ctx)
			defer a.close()

			a.admin(ctx, *botID)
			row := a.findRow(ctx, args[0])
			if row.IsOwner {
				a.fail(roster.ErrOwnerRow)
			}
			if !yes {
				ok, err := confirmDelete(row)
				if err != nil || !ok {
					fmt.Println("Cancelled.")
					return
				}
			}
			if err := a.roster.DeleteRow(ctx, row.ID); err != nil {
				a.fail(err)
			}
			fmt.Printf("Deleted %s.\n", displayName(row))
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation")
	return cmd
}

// findRow pages through the roster until the user shows up. Mutations only
// apply to rows in the current view.
func (a *app) findRow(ctx context.Context, userID string) roster.Row {
	if err := a.roster.Fetch(ctx); err != nil {
		a.fail(err)
	}
	for {
		snap := a.roster.Snapshot()
		for _, r := range snap.Rows {
			if r.ID == userID {
				return r
			}
		}
		if snap.Query.Page >= snap.Query.Pages(snap.Total) {
			a.fail(fmt.Errorf("user %s: %w", userID, roster.ErrRowNotFound))
		}
		next := snap.Query.Page + 1
		if err := a.roster.SetQuery(ctx, roster.QueryPatch{Page: &next}); err != nil {
			a.fail(err)
		}
	}
}

func displayName(r roster.Row) string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return "user " + r.ID
}

