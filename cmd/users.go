package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize/english"
	"github.com/jon4hz/parley/internal/chat"
	"github.com/jon4hz/parley/internal/session"
	"github.com/jon4hz/parley/pkg/chatapi"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List the users you can talk to",
	Args:  cobra.NoArgs,
	RunE:  listUsers,
}

func init() {
	rootCmd.AddCommand(usersCmd)
}

func listUsers(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a := openApp(ctx)
	defer a.Close()

	if err := a.authorize(session.AccessAuthenticated); err != nil {
		return err
	}

	peers, err := chat.NewDirectory(a.client, a.session).Peers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	return printUsers(cmd.OutOrStdout(), peers)
}

func printUsers(out io.Writer, users []chatapi.User) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tROLE")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", u.ID, u.Username, role(u))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(out, english.Plural(len(users), "user", ""))
	return err
}
