package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jon4hz/parley/internal/chat"
	"github.com/jon4hz/parley/internal/session"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage user accounts (admins only)",
}

var adminUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List all other accounts",
	Args:  cobra.NoArgs,
	RunE:  adminUsers,
}

var adminRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Short:   "Remove an account",
	Example: `parley admin remove 3`,
	Args:    cobra.ExactArgs(1),
	RunE:    adminRemove,
}

func init() {
	adminCmd.AddCommand(adminUsersCmd, adminRemoveCmd)
	rootCmd.AddCommand(adminCmd)
}

func adminUsers(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a := openApp(ctx)
	defer a.Close()

	if err := a.authorize(session.AccessAdmin); err != nil {
		return err
	}

	users, err := chat.NewAdmin(a.client, a.session).Users(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	return printUsers(cmd.OutOrStdout(), users)
}

func adminRemove(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q", args[0])
	}

	ctx := cmd.Context()
	a := openApp(ctx)
	defer a.Close()

	if err := a.authorize(session.AccessAdmin); err != nil {
		return err
	}

	admin := chat.NewAdmin(a.client, a.session)
	if err := admin.Remove(ctx, id); err != nil {
		if errors.Is(err, chat.ErrRemoveSelf) {
			return err
		}
		return fmt.Errorf("failed to remove user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed user %d\n", id)
	return nil
}
