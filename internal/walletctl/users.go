package walletctl

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/server/services"
	"github.com/spf13/cobra"
)

func (a *App) usersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Administer connected wallets",
	}
	cmd.AddCommand(a.usersListCommand(), a.usersDeleteCommand())
	return cmd
}

// withUsers opens the configured database for the duration of fn.
func (a *App) withUsers(ctx context.Context, fn func(*services.UserService) error) error {
	repos, err := a.openRepos(ctx, a.cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer func() {
		if err := repos.Close(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn(ctx, "db close error", "error", err)
		}
	}()

	if err := repos.RunMigrations(ctx); err != nil {
		return fmt.Errorf("db migration error: %w", err)
	}

	// Listing and deleting never issue tokens.
	return fn(services.NewUserService(repos.Users(), nil, a.logger))
}

func (a *App) usersListCommand() *cobra.Command {
	var page, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users, most recently created first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withUsers(cmd.Context(), func(us *services.UserService) error {
				p, err := us.List(cmd.Context(), page, limit)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "WALLET\tCREATED\tLAST LOGIN")
				for _, u := range p.Users {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", u.WalletAddress,
						u.CreatedAt.UTC().Format(time.RFC3339), u.LastLogin.UTC().Format(time.RFC3339))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d, %d users\n", p.Page, p.Pages, p.Total)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 10, "users per page (max 100)")
	return cmd
}

func (a *App) usersDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <wallet>",
		Short: "Delete a user record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withUsers(cmd.Context(), func(us *services.UserService) error {
				if err := us.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}
